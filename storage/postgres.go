package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"qrvend-backend/models"
)

// Store is the persistence contract shared by the registry and the
// redemption engine. Every operation re-reads storage; no record state
// is cached between calls.
type Store interface {
	Insert(ctx context.Context, code *models.QRCode) error
	Exists(ctx context.Context, id string) (bool, error)
	GetByID(ctx context.Context, id string) (*models.QRCode, error)
	List(ctx context.Context, offset, limit int) ([]models.QRCode, error)
	Replace(ctx context.Context, code *models.QRCode) (bool, error)

	// Exchange performs the redemption transition as a single
	// conditional write: old_value takes the current new_value,
	// new_value drops to zero, state becomes used and used_date is set,
	// but only if the record is still valid and its value strictly
	// exceeds min. Returns the payout and whether the write matched a
	// row. Two concurrent calls on the same id serialize on the row;
	// at most one can match.
	Exchange(ctx context.Context, id string, min decimal.Decimal, usedAt time.Time) (decimal.Decimal, bool, error)
}

type Postgres struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(db *pgxpool.Pool, logger *zap.Logger) *Postgres {
	return &Postgres{db: db, logger: logger}
}

const qrColumns = "qrcode_id, new_value, old_value, state, creation_date, used_date, qr_image"

func (s *Postgres) Insert(ctx context.Context, code *models.QRCode) error {
	query := `
		INSERT INTO qr_codes (qrcode_id, new_value, old_value, state, creation_date, used_date, qr_image)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.Exec(ctx, query,
		code.ID,
		code.NewValue,
		code.OldValue,
		code.State,
		code.CreationDate,
		code.UsedDate,
		code.Image,
	)
	if err != nil {
		s.logger.Error("failed to insert qr code", zap.Error(err), zap.String("qrcode_id", code.ID))
		return fmt.Errorf("%w: insert qr code: %v", models.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *Postgres) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM qr_codes WHERE qrcode_id = $1)", id).Scan(&exists)
	if err != nil {
		s.logger.Error("failed to check qr code existence", zap.Error(err), zap.String("qrcode_id", id))
		return false, fmt.Errorf("%w: check qr code existence: %v", models.ErrStorageUnavailable, err)
	}
	return exists, nil
}

func (s *Postgres) GetByID(ctx context.Context, id string) (*models.QRCode, error) {
	query := "SELECT " + qrColumns + " FROM qr_codes WHERE qrcode_id = $1"

	var code models.QRCode
	err := s.db.QueryRow(ctx, query, id).Scan(
		&code.ID,
		&code.NewValue,
		&code.OldValue,
		&code.State,
		&code.CreationDate,
		&code.UsedDate,
		&code.Image,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get qr code", zap.Error(err), zap.String("qrcode_id", id))
		return nil, fmt.Errorf("%w: get qr code: %v", models.ErrStorageUnavailable, err)
	}
	return &code, nil
}

func (s *Postgres) List(ctx context.Context, offset, limit int) ([]models.QRCode, error) {
	query := "SELECT " + qrColumns + " FROM qr_codes LIMIT $1 OFFSET $2"

	rows, err := s.db.Query(ctx, query, limit, offset)
	if err != nil {
		s.logger.Error("failed to list qr codes", zap.Error(err))
		return nil, fmt.Errorf("%w: list qr codes: %v", models.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var codes []models.QRCode
	for rows.Next() {
		var code models.QRCode
		err := rows.Scan(
			&code.ID,
			&code.NewValue,
			&code.OldValue,
			&code.State,
			&code.CreationDate,
			&code.UsedDate,
			&code.Image,
		)
		if err != nil {
			s.logger.Error("failed to scan qr code row", zap.Error(err))
			return nil, fmt.Errorf("%w: scan qr code: %v", models.ErrStorageUnavailable, err)
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list qr codes: %v", models.ErrStorageUnavailable, err)
	}
	return codes, nil
}

func (s *Postgres) Replace(ctx context.Context, code *models.QRCode) (bool, error) {
	query := `
		UPDATE qr_codes
		SET new_value = $1, old_value = $2, state = $3, creation_date = $4, used_date = $5, qr_image = $6
		WHERE qrcode_id = $7
	`

	tag, err := s.db.Exec(ctx, query,
		code.NewValue,
		code.OldValue,
		code.State,
		code.CreationDate,
		code.UsedDate,
		code.Image,
		code.ID,
	)
	if err != nil {
		s.logger.Error("failed to replace qr code", zap.Error(err), zap.String("qrcode_id", code.ID))
		return false, fmt.Errorf("%w: replace qr code: %v", models.ErrStorageUnavailable, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Postgres) Exchange(ctx context.Context, id string, min decimal.Decimal, usedAt time.Time) (decimal.Decimal, bool, error) {
	// The eligibility predicate rides in the WHERE clause so the check
	// and the transition are one write. Concurrent exchanges serialize
	// on the row lock and only the first still matches.
	query := `
		UPDATE qr_codes
		SET old_value = new_value,
		    new_value = 0,
		    state = $2,
		    used_date = $3
		WHERE qrcode_id = $1 AND state = $4 AND new_value > $5
		RETURNING old_value
	`

	var payout decimal.Decimal
	err := s.db.QueryRow(ctx, query, id, models.StateUsed, usedAt, models.StateValid, min).Scan(&payout)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, false, nil
		}
		s.logger.Error("failed to exchange qr code", zap.Error(err), zap.String("qrcode_id", id))
		return decimal.Zero, false, fmt.Errorf("%w: exchange qr code: %v", models.ErrStorageUnavailable, err)
	}
	return payout, true, nil
}
