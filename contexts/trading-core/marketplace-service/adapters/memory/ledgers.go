package memory

import (
	"context"
	"sync"

	domainerrors "tokenmart/contexts/trading-core/marketplace-service/domain/errors"
	"tokenmart/contexts/trading-core/marketplace-service/ports"
)

// Ledgers is an in-memory rendition of the external collaborators: the two
// asset ledgers and the payment ledger. Production wiring talks to real
// ledger backends through the same resolver port; this implementation backs
// tests and the in-memory bootstrap.
type Ledgers struct {
	mu        sync.Mutex
	multiUnit map[string]*MultiUnitLedger
	unique    map[string]*UniqueLedger
	payment   map[string]*PaymentLedger
}

func NewLedgers() *Ledgers {
	return &Ledgers{
		multiUnit: make(map[string]*MultiUnitLedger),
		unique:    make(map[string]*UniqueLedger),
		payment:   make(map[string]*PaymentLedger),
	}
}

// RegisterMultiUnit creates (or returns) the multi-unit collection for a
// contract reference.
func (l *Ledgers) RegisterMultiUnit(contractRef string) *MultiUnitLedger {
	l.mu.Lock()
	defer l.mu.Unlock()

	ledger, ok := l.multiUnit[contractRef]
	if !ok {
		ledger = &MultiUnitLedger{
			balances:  make(map[string]map[string]int64),
			approvals: make(map[string]map[string]bool),
		}
		l.multiUnit[contractRef] = ledger
	}
	return ledger
}

func (l *Ledgers) RegisterUnique(contractRef string) *UniqueLedger {
	l.mu.Lock()
	defer l.mu.Unlock()

	ledger, ok := l.unique[contractRef]
	if !ok {
		ledger = &UniqueLedger{
			owners:    make(map[string]string),
			approvals: make(map[string]map[string]bool),
		}
		l.unique[contractRef] = ledger
	}
	return ledger
}

func (l *Ledgers) RegisterPayment(tokenRef string) *PaymentLedger {
	l.mu.Lock()
	defer l.mu.Unlock()

	ledger, ok := l.payment[tokenRef]
	if !ok {
		ledger = &PaymentLedger{
			balances:   make(map[string]int64),
			allowances: make(map[string]map[string]int64),
		}
		l.payment[tokenRef] = ledger
	}
	return ledger
}

func (l *Ledgers) MultiUnit(contractRef string) (ports.MultiUnitLedger, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ledger, ok := l.multiUnit[contractRef]
	if !ok {
		return nil, domainerrors.ErrLedgerNotFound
	}
	return ledger, nil
}

func (l *Ledgers) Unique(contractRef string) (ports.UniqueLedger, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ledger, ok := l.unique[contractRef]
	if !ok {
		return nil, domainerrors.ErrLedgerNotFound
	}
	return ledger, nil
}

func (l *Ledgers) Payment(tokenRef string) (ports.PaymentLedger, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ledger, ok := l.payment[tokenRef]
	if !ok {
		return nil, domainerrors.ErrLedgerNotFound
	}
	return ledger, nil
}

// MultiUnitLedger tracks per-id quantities with approval-for-all semantics.
type MultiUnitLedger struct {
	mu        sync.Mutex
	balances  map[string]map[string]int64 // owner -> asset id -> quantity
	approvals map[string]map[string]bool  // owner -> operator -> approved
}

func (m *MultiUnitLedger) Mint(owner string, assetID string, quantity int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.balances[owner] == nil {
		m.balances[owner] = make(map[string]int64)
	}
	m.balances[owner][assetID] += quantity
}

func (m *MultiUnitLedger) SetApprovalForAll(owner string, operator string, approved bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.approvals[owner] == nil {
		m.approvals[owner] = make(map[string]bool)
	}
	m.approvals[owner][operator] = approved
}

func (m *MultiUnitLedger) BalanceOf(ctx context.Context, owner string, assetID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[owner][assetID], nil
}

func (m *MultiUnitLedger) IsApprovedForAll(ctx context.Context, owner string, operator string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.approvals[owner][operator], nil
}

func (m *MultiUnitLedger) TransferFrom(ctx context.Context, from string, to string, assetID string, quantity int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if quantity <= 0 || m.balances[from][assetID] < quantity {
		return domainerrors.ErrTransferFailed
	}
	m.balances[from][assetID] -= quantity
	if m.balances[to] == nil {
		m.balances[to] = make(map[string]int64)
	}
	m.balances[to][assetID] += quantity
	return nil
}

// UniqueLedger tracks single-unit ownership per asset id.
type UniqueLedger struct {
	mu        sync.Mutex
	owners    map[string]string
	approvals map[string]map[string]bool
}

func (u *UniqueLedger) Mint(owner string, assetID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.owners[assetID] = owner
}

func (u *UniqueLedger) SetApprovalForAll(owner string, operator string, approved bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.approvals[owner] == nil {
		u.approvals[owner] = make(map[string]bool)
	}
	u.approvals[owner][operator] = approved
}

func (u *UniqueLedger) OwnerOf(ctx context.Context, assetID string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	owner, ok := u.owners[assetID]
	if !ok {
		return "", domainerrors.ErrAssetNotFound
	}
	return owner, nil
}

func (u *UniqueLedger) IsApprovedForAll(ctx context.Context, owner string, operator string) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.approvals[owner][operator], nil
}

func (u *UniqueLedger) TransferFrom(ctx context.Context, from string, to string, assetID string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.owners[assetID] != from {
		return domainerrors.ErrTransferFailed
	}
	u.owners[assetID] = to
	return nil
}

// PaymentLedger tracks fungible balances and spending allowances.
type PaymentLedger struct {
	mu         sync.Mutex
	balances   map[string]int64
	allowances map[string]map[string]int64 // owner -> spender -> amount
}

func (p *PaymentLedger) Mint(owner string, amount int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balances[owner] += amount
}

func (p *PaymentLedger) Approve(owner string, spender string, amount int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.allowances[owner] == nil {
		p.allowances[owner] = make(map[string]int64)
	}
	p.allowances[owner][spender] = amount
}

func (p *PaymentLedger) BalanceOf(ctx context.Context, owner string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balances[owner], nil
}

func (p *PaymentLedger) Allowance(ctx context.Context, owner string, spender string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allowances[owner][spender], nil
}

func (p *PaymentLedger) TransferFrom(ctx context.Context, from string, to string, amount int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if amount <= 0 || p.balances[from] < amount {
		return domainerrors.ErrTransferFailed
	}
	p.balances[from] -= amount
	p.balances[to] += amount
	return nil
}

var _ ports.LedgerResolver = (*Ledgers)(nil)
var _ ports.MultiUnitLedger = (*MultiUnitLedger)(nil)
var _ ports.UniqueLedger = (*UniqueLedger)(nil)
var _ ports.PaymentLedger = (*PaymentLedger)(nil)
