package storage

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"qrvend-backend/models"
)

// Memory is an in-process Store used by tests and local development.
// A single mutex serializes the exchange transition, mirroring the
// row-level atomicity the Postgres store gets from its conditional
// UPDATE.
type Memory struct {
	mu    sync.Mutex
	codes map[string]*models.QRCode
	order []string
}

func NewMemory() *Memory {
	return &Memory{codes: make(map[string]*models.QRCode)}
}

func (m *Memory) Insert(_ context.Context, code *models.QRCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *code
	m.codes[code.ID] = &cp
	m.order = append(m.order, code.ID)
	return nil
}

func (m *Memory) Exists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.codes[id]
	return ok, nil
}

func (m *Memory) GetByID(_ context.Context, id string) (*models.QRCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	code, ok := m.codes[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *code
	return &cp, nil
}

func (m *Memory) List(_ context.Context, offset, limit int) ([]models.QRCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.QRCode
	for i := offset; i < len(m.order) && len(out) < limit; i++ {
		out = append(out, *m.codes[m.order[i]])
	}
	return out, nil
}

func (m *Memory) Replace(_ context.Context, code *models.QRCode) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.codes[code.ID]; !ok {
		return false, nil
	}
	cp := *code
	m.codes[code.ID] = &cp
	return true, nil
}

func (m *Memory) Exchange(_ context.Context, id string, min decimal.Decimal, usedAt time.Time) (decimal.Decimal, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	code, ok := m.codes[id]
	if !ok {
		return decimal.Zero, false, nil
	}
	if code.State != models.StateValid || !code.NewValue.GreaterThan(min) {
		return decimal.Zero, false, nil
	}

	payout := code.NewValue
	code.OldValue = payout
	code.NewValue = decimal.Zero
	code.State = models.StateUsed
	used := usedAt
	code.UsedDate = &used
	return payout, true, nil
}
