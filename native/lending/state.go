package lending

import (
	"math/big"
	"sort"
	"strings"
)

// State is the persistence boundary the engine mutates through. Market and
// position records are keyed by asset identifier; the underlying token ledger
// lives in the same store so one commit covers both protocol bookkeeping and
// token movement.
type State interface {
	Market(asset string) (*MarketState, error)
	PutMarket(market *MarketState) error
	Markets() ([]string, error)

	Position(asset, account string) (*Position, error)
	PutPosition(asset string, position *Position) error

	Membership(account string) ([]string, error)
	PutMembership(account string, assets []string) error
	Accounts() ([]string, error)

	Balance(account, asset string) *big.Int
	SetBalance(account, asset string, amount *big.Int)
	Allowance(owner, spender, asset string) *big.Int
	SetAllowance(owner, spender, asset string, amount *big.Int)

	Clone() State
}

// MemState is the in-memory State implementation. Calls are strictly serial
// per the execution model, so no internal locking is required; the engine's
// clone-and-commit executor provides isolation.
type MemState struct {
	markets     map[string]*MarketState
	positions   map[string]map[string]*Position
	memberships map[string][]string
	balances    map[string]map[string]*big.Int
	allowances  map[string]*big.Int
}

// NewMemState constructs an empty store.
func NewMemState() *MemState {
	return &MemState{
		markets:     make(map[string]*MarketState),
		positions:   make(map[string]map[string]*Position),
		memberships: make(map[string][]string),
		balances:    make(map[string]map[string]*big.Int),
		allowances:  make(map[string]*big.Int),
	}
}

// Market returns a copy of the stored market record, or nil when unknown.
func (s *MemState) Market(asset string) (*MarketState, error) {
	if s == nil {
		return nil, ErrNilState
	}
	market, ok := s.markets[asset]
	if !ok {
		return nil, nil
	}
	return market.Clone(), nil
}

func (s *MemState) PutMarket(market *MarketState) error {
	if s == nil {
		return ErrNilState
	}
	if market == nil || strings.TrimSpace(market.Asset) == "" {
		return ErrMarketNotListed
	}
	s.markets[market.Asset] = market.Clone()
	return nil
}

// Markets lists known market assets in lexical order.
func (s *MemState) Markets() ([]string, error) {
	if s == nil {
		return nil, ErrNilState
	}
	assets := make([]string, 0, len(s.markets))
	for asset := range s.markets {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	return assets, nil
}

// Position returns a copy of the stored position, or nil when the account has
// never touched the market.
func (s *MemState) Position(asset, account string) (*Position, error) {
	if s == nil {
		return nil, ErrNilState
	}
	byAccount, ok := s.positions[asset]
	if !ok {
		return nil, nil
	}
	position, ok := byAccount[account]
	if !ok {
		return nil, nil
	}
	return position.Clone(), nil
}

func (s *MemState) PutPosition(asset string, position *Position) error {
	if s == nil {
		return ErrNilState
	}
	if position == nil || strings.TrimSpace(position.Account) == "" {
		return ErrInvalidAmount
	}
	byAccount, ok := s.positions[asset]
	if !ok {
		byAccount = make(map[string]*Position)
		s.positions[asset] = byAccount
	}
	byAccount[position.Account] = position.Clone()
	return nil
}

// Membership returns the account's entered markets in insertion order.
func (s *MemState) Membership(account string) ([]string, error) {
	if s == nil {
		return nil, ErrNilState
	}
	return append([]string(nil), s.memberships[account]...), nil
}

func (s *MemState) PutMembership(account string, assets []string) error {
	if s == nil {
		return ErrNilState
	}
	if len(assets) == 0 {
		delete(s.memberships, account)
		return nil
	}
	s.memberships[account] = append([]string(nil), assets...)
	return nil
}

// Accounts lists every account with at least one entered market, in lexical
// order.
func (s *MemState) Accounts() ([]string, error) {
	if s == nil {
		return nil, ErrNilState
	}
	accounts := make([]string, 0, len(s.memberships))
	for account := range s.memberships {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	return accounts, nil
}

// Balance returns the account's underlying asset balance.
func (s *MemState) Balance(account, asset string) *big.Int {
	if s == nil {
		return big.NewInt(0)
	}
	byAsset, ok := s.balances[account]
	if !ok {
		return big.NewInt(0)
	}
	return copyBig(byAsset[asset])
}

func (s *MemState) SetBalance(account, asset string, amount *big.Int) {
	if s == nil {
		return
	}
	byAsset, ok := s.balances[account]
	if !ok {
		byAsset = make(map[string]*big.Int)
		s.balances[account] = byAsset
	}
	byAsset[asset] = copyBig(amount)
}

func allowanceKey(owner, spender, asset string) string {
	return owner + "\x00" + spender + "\x00" + asset
}

func (s *MemState) Allowance(owner, spender, asset string) *big.Int {
	if s == nil {
		return big.NewInt(0)
	}
	return copyBig(s.allowances[allowanceKey(owner, spender, asset)])
}

func (s *MemState) SetAllowance(owner, spender, asset string, amount *big.Int) {
	if s == nil {
		return
	}
	key := allowanceKey(owner, spender, asset)
	if amount == nil || amount.Sign() <= 0 {
		delete(s.allowances, key)
		return
	}
	s.allowances[key] = new(big.Int).Set(amount)
}

// Clone deep-copies the entire store. The engine commits a mutation by
// swapping in the clone it worked on, which is what makes every call
// all-or-nothing.
func (s *MemState) Clone() State {
	if s == nil {
		return nil
	}
	clone := NewMemState()
	for asset, market := range s.markets {
		clone.markets[asset] = market.Clone()
	}
	for asset, byAccount := range s.positions {
		cloned := make(map[string]*Position, len(byAccount))
		for account, position := range byAccount {
			cloned[account] = position.Clone()
		}
		clone.positions[asset] = cloned
	}
	for account, assets := range s.memberships {
		clone.memberships[account] = append([]string(nil), assets...)
	}
	for account, byAsset := range s.balances {
		cloned := make(map[string]*big.Int, len(byAsset))
		for asset, amount := range byAsset {
			cloned[asset] = new(big.Int).Set(amount)
		}
		clone.balances[account] = cloned
	}
	for key, amount := range s.allowances {
		clone.allowances[key] = new(big.Int).Set(amount)
	}
	return clone
}
