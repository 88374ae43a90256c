// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the acting user. The bot front end forwards the
// Telegram user id of whoever pressed a button in the X-User-ID header;
// Actor parses it once so handlers, the rate limiter and the idempotency
// validator all key on the same identity.
package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderUserID carries the numeric id of the acting user.
const HeaderUserID = "X-User-ID"

const (
	ctxKeyActorID = "actorID"
	ctxKeyUserID  = "userID"
)

// Actor parses X-User-ID into a positive int64. On success the id is stored
// under "actorID" (int64) and "userID" (string, for log and bucket keys).
// A missing header is allowed; handlers that need an actor reject it. A
// malformed header is rejected with 400.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if raw == "" {
			c.Next()
			return
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_request",
				"message":    "X-User-ID must be a positive integer",
			})
			return
		}
		c.Set(ctxKeyActorID, id)
		c.Set(ctxKeyUserID, strconv.FormatInt(id, 10))
		c.Next()
	}
}

// ActorID returns the id stored by Actor.
func ActorID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ctxKeyActorID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id > 0
}
