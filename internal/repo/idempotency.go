// Idempotency records let POST /purchases answer a retried submission with
// the purchase it already created.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/tbourn/go-purchase-backend/internal/domain"
)

// ErrDuplicate is returned when (actor_id, scope, key) is already recorded.
var ErrDuplicate = errors.New("repo: duplicate idempotency key")

// pgUniqueViolation is SQLSTATE unique_violation.
const pgUniqueViolation = "23505"

// sqliteUniqueMarkers are the lower-cased fragments SQLite drivers put in
// unique-constraint error text.
var sqliteUniqueMarkers = []string{"unique constraint failed", "constraint failed: unique"}

// GetIdempotency returns the unexpired record for the triple, or ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, actorID int64, scope, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where(map[string]any{"actor_id": actorID, "scope": scope, "key": key}).
		Where("expires_at > ?", now).
		Take(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, err
	}
	return &rec, nil
}

// CreateIdempotency stores the outcome of a first request. A concurrent or
// earlier insert of the same triple yields ErrDuplicate.
func CreateIdempotency(ctx context.Context, db *gorm.DB, actorID int64, scope, key string, purchaseID int64, status int, ttl time.Duration) (*domain.Idempotency, error) {
	now := time.Now().UTC()
	rec := &domain.Idempotency{
		ID:         uuid.NewString(),
		ActorID:    actorID,
		Scope:      scope,
		Key:        key,
		PurchaseID: purchaseID,
		Status:     status,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
	err := db.WithContext(ctx).Create(rec).Error
	if IsUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// IsUniqueViolation reports whether err is a unique-constraint failure on
// PostgreSQL or SQLite.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	msg := strings.ToLower(err.Error())
	for _, m := range sqliteUniqueMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return strings.Contains(msg, "duplicate key")
}
