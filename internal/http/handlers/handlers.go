// Package handlers exposes the purchase workflow over HTTP.
//
// Handlers are transport-thin: they validate input, resolve the acting user,
// call application services, and translate results into HTTP responses
// (including conditional and idempotent replay responses).
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-purchase-backend/internal/domain"
	"github.com/tbourn/go-purchase-backend/internal/http/middleware"
	"github.com/tbourn/go-purchase-backend/internal/services"
	"github.com/tbourn/go-purchase-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// PurchaseService is the state machine and intake surface consumed by the
// purchase endpoints.
type PurchaseService interface {
	Create(ctx context.Context, in services.CreatePurchaseInput) (*domain.Purchase, error)
	Get(ctx context.Context, purchaseID int64) (*domain.Purchase, error)
	ListPage(ctx context.Context, status string, page, pageSize int) ([]domain.Purchase, int64, error)
	Events(ctx context.Context, purchaseID int64) ([]domain.PurchaseEvent, error)
	Comment(ctx context.Context, purchaseID, actorID int64, text string) (*domain.PurchaseEvent, error)

	Take(ctx context.Context, purchaseID, actorID int64) (services.TransitionResult, error)
	MarkBought(ctx context.Context, purchaseID, actorID int64) (services.TransitionResult, error)
	Cancel(ctx context.Context, purchaseID, actorID int64) (services.TransitionResult, error)
}

// OutboxService lists outbox entries for the audit endpoints.
type OutboxService interface {
	List(ctx context.Context, status string, page, pageSize int) ([]domain.OutboxEntry, int64, error)
}

// Ticker runs one delivery tick on demand.
type Ticker interface {
	Tick(ctx context.Context) (services.DrainResult, error)
}

//
// Handler wiring
//

// Deps are the collaborators of Handlers. DB is optional; without it list
// endpoints skip ETags and POST /purchases ignores Idempotency-Key.
type Deps struct {
	Purchases PurchaseService
	Outbox    OutboxService
	Worker    Ticker
	DB        *gorm.DB

	// IdempotencyTTL bounds how long a create can be replayed. Defaults to 24h.
	IdempotencyTTL time.Duration
}

// Handlers groups HTTP endpoints for purchases and the outbox.
type Handlers struct {
	purchases PurchaseService
	outbox    OutboxService
	worker    Ticker
	db        *gorm.DB
	idemTTL   time.Duration
	now       func() time.Time
}

// New constructs Handlers bound to the given services.
func New(d Deps) *Handlers {
	ttl := d.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Handlers{
		purchases: d.Purchases,
		outbox:    d.Outbox,
		worker:    d.Worker,
		db:        d.DB,
		idemTTL:   ttl,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// actorID returns the acting user set by middleware.Actor, aborting with 401
// when absent.
func actorID(c *gin.Context) (int64, bool) {
	id, ok := middleware.ActorID(c)
	if !ok {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "X-User-ID header required")
		return 0, false
	}
	return id, true
}

// purchaseID parses the :id path parameter, aborting with 400 when invalid.
func purchaseID(c *gin.Context) (int64, bool) {
	id, ok := utils.ParseID(c.Param("id"))
	if !ok {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "purchase id must be a positive integer")
		return 0, false
	}
	return id, true
}

//
// Pagination
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	pages := utils.TotalPages(total, pageSize)
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: pages,
		HasNext:    page < pages,
	}
}

// clampPagination reads page (>= 1, default 1) and page_size (1..100,
// default 20).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.IntInRange(c.Query("page"), 1, 1, 0)
	pageSize = utils.IntInRange(c.Query("page_size"), defaultPageSize, 1, maxPageSize)
	return page, pageSize
}

// weakETag sets a weak ETag derived from (count, latest update) and reports
// whether the client's If-None-Match already matches it.
func weakETag(c *gin.Context, prefix string, count int64, latest *time.Time) bool {
	var ts int64
	if latest != nil {
		ts = latest.UnixNano()
	}
	etag := fmt.Sprintf(`W/"%s:%d:%d"`, prefix, count, ts)
	c.Header("ETag", etag)
	return c.GetHeader("If-None-Match") == etag
}
