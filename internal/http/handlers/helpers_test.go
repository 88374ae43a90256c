package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-purchase-backend/internal/http/middleware"
	"github.com/tbourn/go-purchase-backend/internal/repo"
	"github.com/tbourn/go-purchase-backend/internal/services"
)

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := repo.Open(repo.Options{Driver: repo.DriverSQLite, SQLitePath: dsn, Silent: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// stack is a fully wired handler set over an in-memory database.
type stack struct {
	db       *gorm.DB
	outbox   *services.OutboxService
	purchase *services.PurchaseService
	h        *Handlers
	r        *gin.Engine
}

func newStack(t *testing.T, worker Ticker) *stack {
	t.Helper()
	db := newHandlerDB(t)
	outbox := services.NewOutboxService(db, nil)
	svc := services.NewPurchaseService(db, outbox)
	h := New(Deps{Purchases: svc, Outbox: outbox, Worker: worker, DB: db})
	return &stack{db: db, outbox: outbox, purchase: svc, h: h, r: newRouter(h)}
}

// newRouter mounts h the way the production router does, minus the
// observability middleware.
func newRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Actor())
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))
	r.POST("/purchases", h.CreatePurchase)
	r.GET("/purchases", h.ListPurchases)
	r.GET("/purchases/:id", h.GetPurchase)
	r.GET("/purchases/:id/events", h.ListEvents)
	r.POST("/purchases/:id/take", h.Take)
	r.POST("/purchases/:id/bought", h.MarkBought)
	r.POST("/purchases/:id/cancel", h.Cancel)
	r.POST("/purchases/:id/comments", h.AddComment)
	r.GET("/outbox", h.ListOutbox)
	r.POST("/outbox/tick", h.Tick)
	return r
}

type call struct {
	method  string
	path    string
	body    string
	user    string
	headers map[string]string
}

func do(t *testing.T, r http.Handler, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if c.body != "" {
		body = bytes.NewBufferString(c.body)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	if c.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user != "" {
		req.Header.Set(middleware.HeaderUserID, c.user)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %T: %v (body=%s)", out, err, w.Body.String())
	}
	return out
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d; want %d (body=%s)", w.Code, status, w.Body.String())
	}
	er := decode[ErrorResponse](t, w)
	if er.Code != code {
		t.Fatalf("code = %q; want %q", er.Code, code)
	}
}

// tickFunc adapts a function to Ticker.
type tickFunc func(ctx context.Context) (services.DrainResult, error)

func (f tickFunc) Tick(ctx context.Context) (services.DrainResult, error) { return f(ctx) }
