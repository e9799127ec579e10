// Session history HTTP handlers.
//
// This file exposes the listing endpoint feeding the history sidebar:
//   - GET /sessions  (list the user's sessions, paginated, ETag support)
//
// The listing returns summaries, not full documents; the conversation
// endpoints hydrate individual sessions.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/univassist/chat-engine/internal/domain"
	"github.com/univassist/chat-engine/internal/utils"
)

// SessionLister defines the session listing operations consumed by HTTP
// handlers. Implementations must be safe for concurrent use and honor the
// provided context.
type SessionLister interface {
	// ListPage returns a page of the user's sessions and the total count.
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.ChatSession, int64, error)
	// Stats returns the count and latest update time, for weak ETags.
	Stats(ctx context.Context, userID string) (int64, *time.Time, error)
}

//
// DTOs
//

// SessionSummary is one history sidebar entry.
type SessionSummary struct {
	ID           string    `json:"id" example:"user123_1724630400000"`
	Title        string    `json:"title" example:"¿Cuáles son los temas del parcial?"`
	MessageCount int       `json:"messageCount" example:"6"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListSessionsResponse wraps a page of session summaries.
type ListSessionsResponse struct {
	Sessions   []SessionSummary `json:"sessions"`
	Pagination Pagination       `json:"pagination"`
}

// clampPagination bounds the page and page_size query params to the
// listing's defaults and limits.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPageSize = 20
		maxPageSize     = 100
	)
	return utils.ClampPageWindow(c.Query("page"), c.Query("page_size"), defaultPageSize, maxPageSize)
}

// ListSessions godoc
// @ID          listSessions
// @Summary     List sessions (paginated)
// @Description Returns a page of the user's session summaries, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Sessions
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListSessionsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /sessions [get]
func (h *Handlers) ListSessions(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if count, maxTS, err := h.sessions.Stats(ctx, uid); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.Unix()
		}
		etag := fmt.Sprintf(`W/"sessions:%s:%d:%d"`, uid, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.sessions.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	summaries := make([]SessionSummary, 0, len(items))
	for _, s := range items {
		summaries = append(summaries, SessionSummary{
			ID:           s.ID,
			Title:        s.Title,
			MessageCount: len(s.Messages),
			CreatedAt:    s.CreatedAt,
			UpdatedAt:    s.UpdatedAt,
		})
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListSessionsResponse{
		Sessions: summaries,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}
