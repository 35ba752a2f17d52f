package common

import (
	"errors"
	"testing"
)

func TestGuard(t *testing.T) {
	if err := Guard(nil, "lending", "mint"); err != nil {
		t.Fatalf("nil view must not pause: %v", err)
	}

	board := NewSwitchboard()
	if err := Guard(board, "lending", "mint"); err != nil {
		t.Fatalf("empty switchboard must not pause: %v", err)
	}

	board.SetPaused("lending", "mint", true)
	if err := Guard(board, "lending", "mint"); !errors.Is(err, ErrActionPaused) {
		t.Fatalf("expected ErrActionPaused, got %v", err)
	}
	if err := Guard(board, "lending", "borrow"); err != nil {
		t.Fatalf("unrelated action must not pause: %v", err)
	}
	if err := Guard(board, "swap", "mint"); err != nil {
		t.Fatalf("unrelated module must not pause: %v", err)
	}

	board.SetPaused("lending", "mint", false)
	if err := Guard(board, "lending", "mint"); err != nil {
		t.Fatalf("unpause must clear the guard: %v", err)
	}
}

func TestGuardNilReceivers(t *testing.T) {
	var board *Switchboard
	if board.IsPaused("lending", "mint") {
		t.Fatalf("nil switchboard must report unpaused")
	}
	board.SetPaused("lending", "mint", true) // must not panic
}
