package repo

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-purchase-backend/internal/domain"
)

// newTestDB opens a private in-memory database. migrate=false leaves it empty
// so error paths can be exercised.
func newTestDB(t *testing.T, migrate bool) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := Open(Options{Driver: DriverSQLite, SQLitePath: dsn, Silent: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })
	if migrate {
		if err := AutoMigrate(db); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func seedPurchase(t *testing.T, db *gorm.DB, status domain.Status) *domain.Purchase {
	t.Helper()
	p := &domain.Purchase{
		RequesterID: 42,
		Description: "printer paper",
		Priority:    domain.PriorityNormal,
		Status:      status,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed purchase: %v", err)
	}
	return p
}
