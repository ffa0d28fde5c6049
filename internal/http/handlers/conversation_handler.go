// Conversation HTTP handlers.
//
// This file exposes the operator inbox endpoints:
//   - GET /conversations                      (list per business, paginated)
//   - GET /conversations/{id}/messages        (message history, paginated)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bryanriosb/beauty-business-sub002/internal/domain"
	"github.com/bryanriosb/beauty-business-sub002/internal/services"
	"github.com/bryanriosb/beauty-business-sub002/internal/utils"
)

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListConversationsResponse wraps a page of conversations.
type ListConversationsResponse struct {
	Conversations []domain.Conversation `json:"conversations"`
	Pagination    Pagination            `json:"pagination"`
}

// ListMessagesResponse wraps a page of messages.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// paginate computes the response metadata for a page.
func paginate(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// ListConversations handles GET /conversations?business_id=…
//
// @Summary  List a business's conversations, most recently active first
// @Produce  json
// @Success  200 {object} ListConversationsResponse
// @Failure  400 {object} ErrorResponse
// @Router   /conversations [get]
func (h *Handlers) ListConversations(c *gin.Context) {
	account := accountID(c)
	if account == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing account identity")
		return
	}
	businessID := c.Query("business_id")
	if businessID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "business_id is required")
		return
	}

	page, pageSize := clampPagination(c)
	items, total, err := h.convs.ListPage(c.Request.Context(), account, businessID, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list conversations")
		return
	}
	ok(c, http.StatusOK, ListConversationsResponse{
		Conversations: items,
		Pagination:    paginate(page, pageSize, total),
	})
}

// ListConversationMessages handles GET /conversations/:id/messages.
//
// @Summary  List a conversation's messages in persisted order
// @Produce  json
// @Success  200 {object} ListMessagesResponse
// @Failure  404 {object} ErrorResponse
// @Router   /conversations/{id}/messages [get]
func (h *Handlers) ListConversationMessages(c *gin.Context) {
	account := accountID(c)
	if account == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing account identity")
		return
	}
	convID := c.Param("id")

	page, pageSize := clampPagination(c)
	items, total, err := h.convs.MessagesPage(c.Request.Context(), account, convID, page, pageSize)
	if err != nil {
		if errors.Is(err, services.ErrConversationNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list messages")
		return
	}
	ok(c, http.StatusOK, ListMessagesResponse{
		Messages:   items,
		Pagination: paginate(page, pageSize, total),
	})
}
