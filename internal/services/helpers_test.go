package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-purchase-backend/internal/domain"
	"github.com/tbourn/go-purchase-backend/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := repo.Open(repo.Options{Driver: repo.DriverSQLite, SQLitePath: dsn, Silent: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// fakeClock is a settable clock shared by services under test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// deliverFunc adapts a function to Deliverer.
type deliverFunc func(ctx context.Context, purchaseID int64) error

func (f deliverFunc) Deliver(ctx context.Context, purchaseID int64) error { return f(ctx, purchaseID) }

type countingKicker struct{ n atomic.Int32 }

func (k *countingKicker) Kick() { k.n.Add(1) }

// fixture wires a purchase and an outbox service over one database.
type fixture struct {
	db     *gorm.DB
	clock  *fakeClock
	kicker *countingKicker
	calls  atomic.Int32
	errFn  func(attempt int32) error
	outbox *OutboxService
	svc    *PurchaseService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{db: newTestDB(t), clock: newClock(), kicker: &countingKicker{}}
	f.outbox = NewOutboxService(f.db, deliverFunc(func(ctx context.Context, id int64) error {
		n := f.calls.Add(1)
		if f.errFn != nil {
			return f.errFn(n)
		}
		return nil
	}))
	f.outbox.Now = f.clock.Now
	f.outbox.Kicker = f.kicker
	f.svc = NewPurchaseService(f.db, f.outbox)
	f.svc.Now = f.clock.Now
	return f
}

func seedPurchase(t *testing.T, db *gorm.DB, status domain.Status) *domain.Purchase {
	t.Helper()
	p := &domain.Purchase{RequesterID: 100, Description: "whiteboard markers", Priority: domain.PriorityNormal, Status: status}
	if status == domain.StatusInProgress || status == domain.StatusBought {
		taker := int64(1)
		p.TakenBy = &taker
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed purchase: %v", err)
	}
	return p
}

func reload(t *testing.T, db *gorm.DB, id int64) *domain.Purchase {
	t.Helper()
	p, err := repo.GetPurchase(context.Background(), db, id)
	if err != nil {
		t.Fatalf("reload purchase %d: %v", id, err)
	}
	return p
}

func countEvents(t *testing.T, db *gorm.DB, purchaseID int64, typ domain.EventType) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&domain.PurchaseEvent{}).Where("purchase_id = ? AND type = ?", purchaseID, typ).Count(&n).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	return n
}

func countOutbox(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&domain.OutboxEntry{}).Count(&n).Error; err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	return n
}

func outboxEntry(t *testing.T, db *gorm.DB, id int64) *domain.OutboxEntry {
	t.Helper()
	e, err := repo.GetOutboxEntry(context.Background(), db, id)
	if err != nil {
		t.Fatalf("get outbox %d: %v", id, err)
	}
	return e
}
