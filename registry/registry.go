package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"qrvend-backend/models"
	"qrvend-backend/storage"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 500

	// How many candidate identifiers to try before giving up. With an
	// 8-char id over 58 characters a single retry is already unusual.
	maxIDAttempts = 10
)

// Registry owns creation, validation and lookup of QR code records.
// Redemption is deliberately not here; only the engine may consume a
// code's value.
type Registry struct {
	store    storage.Store
	logger   *zap.Logger
	idLength int
}

func New(store storage.Store, logger *zap.Logger, idLength int) *Registry {
	if idLength < MinIDLength || idLength > MaxIDLength {
		idLength = DefaultIDLength
	}
	return &Registry{
		store:    store,
		logger:   logger,
		idLength: idLength,
	}
}

func validateValueAndDate(value decimal.Decimal, creationDate time.Time) error {
	if value.Sign() <= 0 {
		return &models.InvalidInputError{Reason: "new_value must be greater than 0"}
	}
	if creationDate.After(time.Now()) {
		return &models.InvalidInputError{Reason: "creation_date cannot be in the future"}
	}
	return nil
}

// Create validates the request, allocates a fresh identifier and
// persists the record as valid with no redeemed value. The caller
// cannot choose state or old_value; those belong to redemption.
func (r *Registry) Create(ctx context.Context, req models.CreateQRCodeRequest) (*models.QRCode, error) {
	if err := validateValueAndDate(req.NewValue, req.CreationDate); err != nil {
		return nil, err
	}

	image, err := models.DecodeImage(req.Image)
	if err != nil {
		return nil, err
	}

	id, err := r.allocateID(ctx)
	if err != nil {
		return nil, err
	}

	code := &models.QRCode{
		ID:           id,
		NewValue:     req.NewValue,
		OldValue:     decimal.Zero,
		State:        models.StateValid,
		CreationDate: req.CreationDate,
		UsedDate:     nil,
		Image:        image,
	}

	if err := r.store.Insert(ctx, code); err != nil {
		return nil, err
	}

	r.logger.Info("qr code created",
		zap.String("qrcode_id", code.ID),
		zap.String("new_value", code.NewValue.String()))
	return code, nil
}

// allocateID generates candidate identifiers until one is not already
// present in storage. Collisions are rare but checked, not assumed.
func (r *Registry) allocateID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := GenerateID(r.idLength)
		if err != nil {
			return "", err
		}
		exists, err := r.store.Exists(ctx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
		r.logger.Warn("qr code id collision, retrying", zap.String("qrcode_id", id))
	}
	return "", fmt.Errorf("could not allocate a unique qr code id after %d attempts", maxIDAttempts)
}

// Get returns the full record for id.
func (r *Registry) Get(ctx context.Context, id string) (*models.QRCode, error) {
	return r.store.GetByID(ctx, id)
}

// GetFields returns a projection of the record holding only the named
// fields plus the identifier. Unknown field names are rejected before
// the lookup.
func (r *Registry) GetFields(ctx context.Context, id string, fields []string) (map[string]any, error) {
	var unknown []string
	for _, f := range fields {
		if !models.ProjectionFields[f] {
			unknown = append(unknown, f)
		}
	}
	if len(unknown) > 0 {
		return nil, &models.InvalidFieldsError{Fields: unknown}
	}

	code, err := r.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return code.Project(fields), nil
}

// List returns records in storage order. The limit defaults to
// DefaultListLimit and is capped at MaxListLimit; callers page by
// re-supplying an offset.
func (r *Registry) List(ctx context.Context, offset, limit int) ([]models.QRCode, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return r.store.List(ctx, offset, limit)
}

// Update is a privileged full replace of the mutable fields, meant for
// administrative correction. It bypasses the single-use transition, so
// every call is logged for audit. The used_date is preserved as-is;
// only redemption sets it.
func (r *Registry) Update(ctx context.Context, id string, req models.UpdateQRCodeRequest) (*models.QRCode, error) {
	if err := validateValueAndDate(req.NewValue, req.CreationDate); err != nil {
		return nil, err
	}
	if req.OldValue.Sign() < 0 {
		return nil, &models.InvalidInputError{Reason: "old_value cannot be negative"}
	}
	if !models.ValidStates[req.State] {
		return nil, &models.InvalidInputError{Reason: "unknown state: " + req.State}
	}

	image, err := models.DecodeImage(req.Image)
	if err != nil {
		return nil, err
	}

	code, err := r.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	code.NewValue = req.NewValue
	code.OldValue = req.OldValue
	code.State = req.State
	code.CreationDate = req.CreationDate
	code.Image = image

	found, err := r.store.Replace(ctx, code)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, models.ErrNotFound
	}

	r.logger.Info("qr code updated by admin",
		zap.String("qrcode_id", id),
		zap.String("state", code.State),
		zap.String("new_value", code.NewValue.String()),
		zap.String("old_value", code.OldValue.String()))
	return code, nil
}
