package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// QR code state constants
const (
	StateValid = "valid"
	StateUsed  = "used"

	// Reserved states. Accepted on admin updates for forward
	// compatibility; the redemption engine never writes them.
	StateExpired     = "expired"
	StateInvalidated = "invalidated"
)

// ValidStates lists every state accepted at write time.
var ValidStates = map[string]bool{
	StateValid:       true,
	StateUsed:        true,
	StateExpired:     true,
	StateInvalidated: true,
}

// QRCode is a single-use value-bearing code. NewValue holds the
// currently redeemable amount and drops to zero at redemption, when
// OldValue takes over the redeemed amount and UsedDate is set.
type QRCode struct {
	ID           string          `json:"qrcode_id" db:"qrcode_id"`
	NewValue     decimal.Decimal `json:"new_value" db:"new_value"`
	OldValue     decimal.Decimal `json:"old_value" db:"old_value"`
	State        string          `json:"state" db:"state"`
	CreationDate time.Time       `json:"creation_date" db:"creation_date"`
	UsedDate     *time.Time      `json:"used_date,omitempty" db:"used_date"`
	Image        []byte          `json:"-" db:"qr_image"`
}

// View is the wire representation of a QRCode, with the image
// re-encoded as base64.
type View struct {
	ID           string          `json:"qrcode_id"`
	NewValue     decimal.Decimal `json:"new_value"`
	OldValue     decimal.Decimal `json:"old_value"`
	State        string          `json:"state"`
	CreationDate time.Time       `json:"creation_date"`
	UsedDate     *time.Time      `json:"used_date"`
	Image        *string         `json:"qr_image"`
}

// ToView builds the wire representation of c.
func (c *QRCode) ToView() View {
	v := View{
		ID:           c.ID,
		NewValue:     c.NewValue,
		OldValue:     c.OldValue,
		State:        c.State,
		CreationDate: c.CreationDate,
		UsedDate:     c.UsedDate,
	}
	if len(c.Image) > 0 {
		img := EncodeImage(c.Image)
		v.Image = &img
	}
	return v
}

type CreateQRCodeRequest struct {
	NewValue     decimal.Decimal `json:"new_value" binding:"required"`
	CreationDate time.Time       `json:"creation_date" binding:"required"`
	Image        string          `json:"qr_image"`
}

type UpdateQRCodeRequest struct {
	NewValue     decimal.Decimal `json:"new_value" binding:"required"`
	OldValue     decimal.Decimal `json:"old_value"`
	State        string          `json:"state" binding:"required"`
	CreationDate time.Time       `json:"creation_date" binding:"required"`
	Image        string          `json:"qr_image"`
}

// ExchangeResult is what the vending machine acts on: OldValue is the
// payout to dispense, NewValue is always zero after a successful
// exchange.
type ExchangeResult struct {
	OldValue decimal.Decimal `json:"old_value"`
	NewValue decimal.Decimal `json:"new_value"`
}

// Fields addressable through the read projection.
var ProjectionFields = map[string]bool{
	"qrcode_id":     true,
	"new_value":     true,
	"old_value":     true,
	"state":         true,
	"creation_date": true,
	"used_date":     true,
	"qr_image":      true,
}

// Project returns a partial wire representation of c holding only the
// requested fields. The identifier is always included. Callers must
// validate field names first.
func (c *QRCode) Project(fields []string) map[string]any {
	out := map[string]any{"qrcode_id": c.ID}
	for _, f := range fields {
		switch f {
		case "new_value":
			out[f] = c.NewValue
		case "old_value":
			out[f] = c.OldValue
		case "state":
			out[f] = c.State
		case "creation_date":
			out[f] = c.CreationDate
		case "used_date":
			out[f] = c.UsedDate
		case "qr_image":
			if len(c.Image) > 0 {
				out[f] = EncodeImage(c.Image)
			} else {
				out[f] = nil
			}
		}
	}
	return out
}
