package common

import "errors"

var ErrActionPaused = errors.New("action paused")

// PauseView reports whether a module action is administratively paused.
type PauseView interface {
	IsPaused(module, action string) bool
}

// Guard rejects the call when the given module action is paused. A nil view
// or empty module means no pause policy applies.
func Guard(p PauseView, module, action string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module, action) {
		return ErrActionPaused
	}
	return nil
}

// Switchboard is a PauseView backed by an explicit action set.
type Switchboard struct {
	paused map[string]bool
}

// NewSwitchboard constructs an empty switchboard; nothing is paused.
func NewSwitchboard() *Switchboard {
	return &Switchboard{paused: make(map[string]bool)}
}

// SetPaused flips the pause switch for a module action.
func (s *Switchboard) SetPaused(module, action string, paused bool) {
	if s == nil {
		return
	}
	s.paused[module+"/"+action] = paused
}

// IsPaused implements PauseView.
func (s *Switchboard) IsPaused(module, action string) bool {
	if s == nil {
		return false
	}
	return s.paused[module+"/"+action]
}
