package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound means no record exists for the requested id.
	ErrNotFound = errors.New("qr code not found")

	// ErrStorageUnavailable means the persistence layer could not be
	// reached or failed mid-operation. Retryable; never conflated with
	// ErrNotFound.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrImageDecode means the qr_image payload was not valid base64.
	ErrImageDecode = errors.New("invalid qr image payload")
)

// InvalidInputError rejects a create/update before any write happens.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Reason
}

// InvalidFieldsError rejects a read projection naming unknown fields.
type InvalidFieldsError struct {
	Fields []string
}

func (e *InvalidFieldsError) Error() string {
	return "invalid fields: " + strings.Join(e.Fields, ", ")
}

// NotExchangeableError reports why a code failed the eligibility check,
// carrying the current state and value so field operators can diagnose
// a rejection without log access.
type NotExchangeableError struct {
	State    string
	NewValue decimal.Decimal
}

func (e *NotExchangeableError) Error() string {
	return fmt.Sprintf("qr code cannot be exchanged (state: %s, new_value: %s)", e.State, e.NewValue)
}

// AlreadyUsed reports whether the rejection was a spent code rather
// than a value below the redemption threshold.
func (e *NotExchangeableError) AlreadyUsed() bool {
	return e.State != StateValid
}
