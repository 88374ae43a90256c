// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for purchases and
// their append-only audit trail.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only persistence and query composition.
//
// Error semantics:
//   - When a purchase is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-purchase-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreatePurchase inserts p and fills its generated ID.
func CreatePurchase(ctx context.Context, db *gorm.DB, p *domain.Purchase) error {
	return db.WithContext(ctx).Create(p).Error
}

// GetPurchase fetches a purchase by id without locking.
func GetPurchase(ctx context.Context, db *gorm.DB, id int64) (*domain.Purchase, error) {
	var p domain.Purchase
	if err := db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPurchaseForUpdate reads a purchase with an exclusive row lock held until
// tx ends. PostgreSQL issues SELECT ... FOR UPDATE; SQLite drops the clause
// and relies on its single writer.
func GetPurchaseForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*domain.Purchase, error) {
	var p domain.Purchase
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&p, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SavePurchaseState writes the status and transition columns of p. Nil
// pointers are written as NULL.
func SavePurchaseState(ctx context.Context, tx *gorm.DB, p *domain.Purchase) error {
	res := tx.WithContext(ctx).
		Model(p).
		Select("status", "taken_at", "taken_by", "bought_at", "bought_by", "archived_at", "archived_by", "updated_at").
		Updates(p)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountPurchases returns how many purchases match status ("" = all).
func CountPurchases(ctx context.Context, db *gorm.DB, status string) (int64, error) {
	var total int64
	err := purchaseScope(db.WithContext(ctx).Model(&domain.Purchase{}), status).
		Count(&total).Error
	return total, err
}

// ListPurchasesPage returns a page of purchases, newest first.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListPurchasesPage(ctx context.Context, db *gorm.DB, status string, offset, limit int) ([]domain.Purchase, error) {
	var out []domain.Purchase
	err := purchaseScope(db.WithContext(ctx), status).
		Order("id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

func purchaseScope(q *gorm.DB, status string) *gorm.DB {
	if s := strings.TrimSpace(status); s != "" {
		q = q.Where("status = ?", s)
	}
	return q
}

// CreateEvent appends an audit event.
func CreateEvent(ctx context.Context, db *gorm.DB, ev *domain.PurchaseEvent) error {
	return db.WithContext(ctx).Omit(clause.Associations).Create(ev).Error
}

// ListEvents returns the audit trail of a purchase in insertion order.
func ListEvents(ctx context.Context, db *gorm.DB, purchaseID int64) ([]domain.PurchaseEvent, error) {
	var out []domain.PurchaseEvent
	err := db.WithContext(ctx).
		Where("purchase_id = ?", purchaseID).
		Order("id asc").
		Find(&out).Error
	return out, err
}
