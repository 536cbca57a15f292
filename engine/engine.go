// Package engine implements the redemption state machine: a code moves
// from valid to used at most once, and the transition reports the
// payout to dispense.
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"qrvend-backend/models"
	"qrvend-backend/storage"
)

type Engine struct {
	store    storage.Store
	logger   *zap.Logger
	minValue decimal.Decimal
}

// New builds an engine. minValue is the smallest currency unit the
// machines dispense; a code must hold strictly more than it to be
// exchangeable.
func New(store storage.Store, logger *zap.Logger, minValue decimal.Decimal) *Engine {
	return &Engine{
		store:    store,
		logger:   logger,
		minValue: minValue,
	}
}

// Exchange consumes the code's value. Of N concurrent calls on the
// same id exactly one succeeds; the rest fail with NotExchangeable.
// A repeat call after a success is a failure too, never an idempotent
// success: a second payout would be a double dispense.
func (e *Engine) Exchange(ctx context.Context, id string) (*models.ExchangeResult, error) {
	payout, done, err := e.store.Exchange(ctx, id, e.minValue, time.Now())
	if err != nil {
		return nil, err
	}
	if done {
		e.logger.Info("qr code exchanged",
			zap.String("qrcode_id", id),
			zap.String("payout", payout.String()))
		return &models.ExchangeResult{OldValue: payout, NewValue: decimal.Zero}, nil
	}

	// The conditional write matched nothing: either the code does not
	// exist or it failed the eligibility check. Re-read to tell the
	// caller which, and why.
	code, err := e.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	e.logger.Info("qr code exchange rejected",
		zap.String("qrcode_id", id),
		zap.String("state", code.State),
		zap.String("new_value", code.NewValue.String()))
	return nil, &models.NotExchangeableError{State: code.State, NewValue: code.NewValue}
}
