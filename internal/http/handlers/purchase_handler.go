// Purchase HTTP handlers.
//
// This file exposes REST endpoints for purchase requests:
//   - POST /purchases                 (intake, Idempotency-Key aware)
//   - GET  /purchases                 (list, paginated, ETag support)
//   - GET  /purchases/{id}            (read)
//   - GET  /purchases/{id}/events     (audit trail)
//   - POST /purchases/{id}/take       (NEW → IN_PROGRESS)
//   - POST /purchases/{id}/bought     (IN_PROGRESS → BOUGHT)
//   - POST /purchases/{id}/cancel     (NEW|IN_PROGRESS → CANCELED)
//   - POST /purchases/{id}/comments   (append a comment event)
//
// Idempotency:
// If the client supplies an Idempotency-Key header on create and a previous
// successful create exists for (actor, key), the handler returns that
// purchase with the recorded status and sets `Idempotency-Replayed: true`.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-purchase-backend/internal/domain"
	"github.com/tbourn/go-purchase-backend/internal/http/middleware"
	"github.com/tbourn/go-purchase-backend/internal/repo"
	"github.com/tbourn/go-purchase-backend/internal/services"
)

// ScopeCreatePurchase is the idempotency scope of POST /purchases.
const ScopeCreatePurchase = "purchases.create"

//
// DTOs
//

// CreatePurchaseRequest is the JSON payload for a new purchase request.
type CreatePurchaseRequest struct {
	// Description says what to buy. Required, at most 2000 characters.
	Description string `json:"description" binding:"required" example:"Printer paper A4, 5 packs"`
	// Priority is "normal" (default) or "urgent".
	Priority string `json:"priority" example:"urgent"`
	// PhotoRef is an opaque reference from the photo store.
	PhotoRef *string `json:"photo_ref,omitempty" example:"AgACAgIAAxkBAAIB"`
}

// CommentRequest is the JSON payload for adding a comment.
type CommentRequest struct {
	Text string `json:"text" binding:"required" example:"Ordered, arrives Thursday"`
}

// ListPurchasesResponse wraps a page of purchases and pagination information.
type ListPurchasesResponse struct {
	Purchases  []domain.Purchase `json:"purchases"`
	Pagination Pagination        `json:"pagination"`
}

// ListEventsResponse wraps the audit trail of a purchase.
type ListEventsResponse struct {
	Events []domain.PurchaseEvent `json:"events"`
}

//
// Handlers
//

// CreatePurchase godoc
// @ID          createPurchase
// @Summary     Create a purchase request
// @Description Stores a NEW purchase for the acting user and queues a chat notification.
// @Description Supports idempotency via the Idempotency-Key header (same key → same purchase).
// @Tags        Purchases
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  int     true  "Acting user id"  example(123456789)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.CreatePurchaseRequest  true  "Purchase payload"
//
// @Success     201  {object}  domain.Purchase
// @Header      201  {string}  Idempotency-Replayed  "true when the response is a replay"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing X-User-ID"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /purchases [post]
func (h *Handlers) CreatePurchase(c *gin.Context) {
	ctx := c.Request.Context()
	actor, valid := actorID(c)
	if !valid {
		return
	}

	var req CreatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Description) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "description required")
		return
	}

	key := idempotencyKey(c)
	if key != "" && h.db != nil {
		if rec, err := repo.GetIdempotency(ctx, h.db, actor, ScopeCreatePurchase, key, h.now()); err == nil {
			if prev, err := h.purchases.Get(ctx, rec.PurchaseID); err == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, rec.Status, prev)
				return
			}
		}
	}

	p, err := h.purchases.Create(ctx, services.CreatePurchaseInput{
		RequesterID: actor,
		Description: req.Description,
		Priority:    domain.Priority(req.Priority),
		PhotoRef:    req.PhotoRef,
	})
	if err != nil {
		failService(c, err)
		return
	}

	if key != "" && h.db != nil {
		_, err := repo.CreateIdempotency(ctx, h.db, actor, ScopeCreatePurchase, key, p.ID, http.StatusCreated, h.idemTTL)
		if err != nil && !errors.Is(err, repo.ErrDuplicate) {
			middleware.LoggerFrom(c).Warn().Err(err).Int64("purchase_id", p.ID).Msg("idempotency record not stored")
		}
	}
	ok(c, http.StatusCreated, p)
}

// ListPurchases godoc
// @ID          listPurchases
// @Summary     List purchases (paginated)
// @Description Returns purchases newest first, optionally filtered by status. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Purchases
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"purchases:NEW:3:1717236000000000000\")
// @Param       status         query   string  false "Status filter"  Enums(NEW, IN_PROGRESS, BOUGHT, CANCELED)
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListPurchasesResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /purchases [get]
func (h *Handlers) ListPurchases(c *gin.Context) {
	ctx := c.Request.Context()
	status := strings.ToUpper(strings.TrimSpace(c.Query("status")))
	if status != "" && !domain.Status(status).Valid() {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown status")
		return
	}
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if h.db != nil {
		if count, latest, err := repo.PurchasesStats(ctx, h.db, status); err == nil {
			if weakETag(c, "purchases:"+status, count, latest) {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.purchases.ListPage(ctx, status, page, pageSize)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, ListPurchasesResponse{
		Purchases:  items,
		Pagination: newPagination(page, pageSize, total),
	})
}

// GetPurchase godoc
// @ID          getPurchase
// @Summary     Get a purchase
// @Tags        Purchases
// @Produce     json
// @Param       id   path  int  true  "Purchase ID"  minimum(1)
// @Success     200  {object} domain.Purchase
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Purchase not found"
// @Router      /purchases/{id} [get]
func (h *Handlers) GetPurchase(c *gin.Context) {
	id, valid := purchaseID(c)
	if !valid {
		return
	}
	p, err := h.purchases.Get(c.Request.Context(), id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// ListEvents godoc
// @ID          listPurchaseEvents
// @Summary     Audit trail of a purchase
// @Description Returns transition and comment events, oldest first.
// @Tags        Purchases
// @Produce     json
// @Param       id   path  int  true  "Purchase ID"  minimum(1)
// @Success     200  {object} handlers.ListEventsResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Purchase not found"
// @Router      /purchases/{id}/events [get]
func (h *Handlers) ListEvents(c *gin.Context) {
	id, valid := purchaseID(c)
	if !valid {
		return
	}
	events, err := h.purchases.Events(c.Request.Context(), id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, ListEventsResponse{Events: events})
}

type transitionFunc func(ctx context.Context, purchaseID, actorID int64) (services.TransitionResult, error)

func (h *Handlers) transition(c *gin.Context, fn transitionFunc) {
	id, valid := purchaseID(c)
	if !valid {
		return
	}
	actor, valid := actorID(c)
	if !valid {
		return
	}
	res, err := fn(c.Request.Context(), id, actor)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// Take godoc
// @ID          takePurchase
// @Summary     Take a purchase into work
// @Description NEW → IN_PROGRESS. Repeating the call on an IN_PROGRESS purchase returns changed=false.
// @Tags        Transitions
// @Produce     json
// @Param       X-User-ID  header  int  true  "Acting user id"  example(123456789)
// @Param       id         path    int  true  "Purchase ID"     minimum(1)
// @Success     200  {object} services.TransitionResult
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Missing X-User-ID"
// @Failure     404  {object} handlers.ErrorResponse "Purchase not found"
// @Failure     409  {object} handlers.ErrorResponse "Invalid transition or conflict"
// @Router      /purchases/{id}/take [post]
func (h *Handlers) Take(c *gin.Context) { h.transition(c, h.purchases.Take) }

// MarkBought godoc
// @ID          markPurchaseBought
// @Summary     Mark a purchase as bought
// @Description IN_PROGRESS → BOUGHT. Repeating the call on a BOUGHT purchase returns changed=false.
// @Tags        Transitions
// @Produce     json
// @Param       X-User-ID  header  int  true  "Acting user id"  example(123456789)
// @Param       id         path    int  true  "Purchase ID"     minimum(1)
// @Success     200  {object} services.TransitionResult
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Missing X-User-ID"
// @Failure     404  {object} handlers.ErrorResponse "Purchase not found"
// @Failure     409  {object} handlers.ErrorResponse "Invalid transition"
// @Router      /purchases/{id}/bought [post]
func (h *Handlers) MarkBought(c *gin.Context) { h.transition(c, h.purchases.MarkBought) }

// Cancel godoc
// @ID          cancelPurchase
// @Summary     Cancel a purchase
// @Description NEW or IN_PROGRESS → CANCELED. Repeating the call on a CANCELED purchase returns changed=false; a BOUGHT purchase cannot be canceled.
// @Tags        Transitions
// @Produce     json
// @Param       X-User-ID  header  int  true  "Acting user id"  example(123456789)
// @Param       id         path    int  true  "Purchase ID"     minimum(1)
// @Success     200  {object} services.TransitionResult
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Missing X-User-ID"
// @Failure     404  {object} handlers.ErrorResponse "Purchase not found"
// @Failure     409  {object} handlers.ErrorResponse "Conflict"
// @Router      /purchases/{id}/cancel [post]
func (h *Handlers) Cancel(c *gin.Context) { h.transition(c, h.purchases.Cancel) }

// AddComment godoc
// @ID          commentPurchase
// @Summary     Comment on a purchase
// @Description Appends a comment event. Does not change status and does not notify.
// @Tags        Purchases
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  int  true  "Acting user id"  example(123456789)
// @Param       id         path    int  true  "Purchase ID"     minimum(1)
// @Param       body       body    handlers.CommentRequest  true  "Comment"
// @Success     201  {object} domain.PurchaseEvent
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Missing X-User-ID"
// @Failure     404  {object} handlers.ErrorResponse "Purchase not found"
// @Router      /purchases/{id}/comments [post]
func (h *Handlers) AddComment(c *gin.Context) {
	id, valid := purchaseID(c)
	if !valid {
		return
	}
	actor, valid := actorID(c)
	if !valid {
		return
	}
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text required")
		return
	}
	ev, err := h.purchases.Comment(c.Request.Context(), id, actor, req.Text)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, ev)
}

// idempotencyKey prefers the key validated by middleware and falls back to
// the raw header when no validator is installed.
func idempotencyKey(c *gin.Context) string {
	if k, found := middleware.GetIdempotencyKey(c); found {
		return k
	}
	return strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey))
}
