// Outbox HTTP handlers.
//
//   - GET  /outbox        (audit trail of notification deliveries)
//   - POST /outbox/tick   (run one delivery tick now)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-purchase-backend/internal/domain"
	"github.com/tbourn/go-purchase-backend/internal/repo"
)

// ListOutboxResponse wraps a page of outbox entries.
type ListOutboxResponse struct {
	Entries    []domain.OutboxEntry `json:"entries"`
	Pagination Pagination           `json:"pagination"`
}

// ListOutbox godoc
// @ID          listOutbox
// @Summary     List notification outbox entries
// @Description Newest first, optionally filtered by status. Supports weak ETag via If-None-Match.
// @Tags        Outbox
// @Produce     json
// @Param       status     query  string  false "Status filter"   Enums(pending, sent, failed)
// @Param       page       query  int     false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object} handlers.ListOutboxResponse
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /outbox [get]
func (h *Handlers) ListOutbox(c *gin.Context) {
	if h.outbox == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "outbox not configured")
		return
	}
	ctx := c.Request.Context()
	status := strings.ToLower(strings.TrimSpace(c.Query("status")))
	if status != "" && !domain.OutboxStatus(status).Valid() {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown status")
		return
	}
	page, pageSize := clampPagination(c)

	if h.db != nil {
		if count, latest, err := repo.OutboxStats(ctx, h.db, status); err == nil {
			if weakETag(c, "outbox:"+status, count, latest) {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.outbox.List(ctx, status, page, pageSize)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, ListOutboxResponse{
		Entries:    items,
		Pagination: newPagination(page, pageSize, total),
	})
}

// Tick godoc
// @ID          outboxTick
// @Summary     Run one delivery tick
// @Description Drains due outbox entries now. Concurrent calls share one drain.
// @Tags        Outbox
// @Produce     json
// @Success     200  {object} services.DrainResult
// @Failure     503  {object} handlers.ErrorResponse "No delivery channel configured"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /outbox/tick [post]
func (h *Handlers) Tick(c *gin.Context) {
	if h.worker == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "delivery worker not configured")
		return
	}
	res, err := h.worker.Tick(c.Request.Context())
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}
