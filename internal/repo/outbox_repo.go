package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-purchase-backend/internal/domain"
)

// CreateOutboxEntry inserts a pending entry.
func CreateOutboxEntry(ctx context.Context, db *gorm.DB, e *domain.OutboxEntry) error {
	return db.WithContext(ctx).Create(e).Error
}

// GetOutboxEntry fetches an entry by id.
func GetOutboxEntry(ctx context.Context, db *gorm.DB, id int64) (*domain.OutboxEntry, error) {
	var e domain.OutboxEntry
	if err := db.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// ClaimDueOutbox selects up to limit pending entries that are due at now and
// leases them until leaseUntil: attempts is incremented and next_retry_at is
// pushed forward so no other worker selects them while they are delivered.
// It must run inside tx. On PostgreSQL rows locked by a concurrent claim are
// skipped.
func ClaimDueOutbox(ctx context.Context, tx *gorm.DB, now, leaseUntil time.Time, limit int) ([]domain.OutboxEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	q := tx.WithContext(ctx).
		Where("status = ?", domain.OutboxPending).
		Where("next_retry_at IS NULL OR next_retry_at <= ?", now).
		Order("id asc").
		Limit(limit)
	if IsPostgres(tx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}

	var rows []domain.OutboxEntry
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return rows, nil
	}

	ids := make([]int64, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	err := tx.WithContext(ctx).
		Model(&domain.OutboxEntry{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"attempts":      gorm.Expr("attempts + 1"),
			"next_retry_at": leaseUntil,
			"updated_at":    now,
		}).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Attempts++
		lu := leaseUntil
		rows[i].NextRetryAt = &lu
		rows[i].UpdatedAt = now
	}
	return rows, nil
}

// RenewOutboxLease extends the lease on a claimed entry to leaseUntil. The
// claim's attempts count fences the update: once another worker re-claims
// the row after the lease expired, attempts has moved on and ErrNotFound is
// returned.
func RenewOutboxLease(ctx context.Context, db *gorm.DB, id int64, attempts int, leaseUntil, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.OutboxEntry{}).
		Where("id = ? AND status = ? AND attempts = ?", id, domain.OutboxPending, attempts).
		Updates(map[string]any{
			"next_retry_at": leaseUntil,
			"updated_at":    now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkOutboxSent finalizes a claimed entry as delivered.
func MarkOutboxSent(ctx context.Context, db *gorm.DB, id int64, now time.Time) error {
	return finalizeOutbox(ctx, db, id, map[string]any{
		"status":        domain.OutboxSent,
		"next_retry_at": nil,
		"last_error":    nil,
		"updated_at":    now,
	})
}

// RescheduleOutbox returns a claimed entry to pending, due at next.
func RescheduleOutbox(ctx context.Context, db *gorm.DB, id int64, next time.Time, lastErr string, now time.Time) error {
	return finalizeOutbox(ctx, db, id, map[string]any{
		"status":        domain.OutboxPending,
		"next_retry_at": next,
		"last_error":    lastErr,
		"updated_at":    now,
	})
}

// MarkOutboxFailed finalizes a claimed entry as permanently failed.
func MarkOutboxFailed(ctx context.Context, db *gorm.DB, id int64, lastErr string, now time.Time) error {
	return finalizeOutbox(ctx, db, id, map[string]any{
		"status":        domain.OutboxFailed,
		"next_retry_at": nil,
		"last_error":    lastErr,
		"updated_at":    now,
	})
}

// finalizeOutbox only touches rows that are still pending, so a terminal
// entry is never resurrected.
func finalizeOutbox(ctx context.Context, db *gorm.DB, id int64, cols map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.OutboxEntry{}).
		Where("id = ? AND status = ?", id, domain.OutboxPending).
		Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountOutbox returns how many entries match status ("" = all).
func CountOutbox(ctx context.Context, db *gorm.DB, status string) (int64, error) {
	var total int64
	err := outboxScope(db.WithContext(ctx).Model(&domain.OutboxEntry{}), status).
		Count(&total).Error
	return total, err
}

// ListOutboxPage returns a page of entries, newest first.
func ListOutboxPage(ctx context.Context, db *gorm.DB, status string, offset, limit int) ([]domain.OutboxEntry, error) {
	var out []domain.OutboxEntry
	err := outboxScope(db.WithContext(ctx), status).
		Order("id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

func outboxScope(q *gorm.DB, status string) *gorm.DB {
	if s := strings.TrimSpace(status); s != "" {
		q = q.Where("status = ?", s)
	}
	return q
}
