// Channel configuration HTTP handlers.
//
// Minimal management surface for MessagingConfig rows:
//   - POST  /configs            (register a channel for the account)
//   - GET   /configs            (list the account's channels)
//   - PATCH /configs/{id}       (enable/disable)
//
// The shared/global config is provisioned operationally (it has no owning
// account), so this API only creates tenant-scoped rows.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bryanriosb/beauty-business-sub002/internal/domain"
	"github.com/bryanriosb/beauty-business-sub002/internal/repo"
	"github.com/bryanriosb/beauty-business-sub002/internal/services"
)

// CreateConfigRequest is the JSON payload for registering a channel.
type CreateConfigRequest struct {
	// BusinessID scopes the channel to one business; empty means the whole
	// account.
	BusinessID    string `json:"business_id"`
	PhoneNumberID string `json:"phone_number_id" binding:"required"`
	AccessToken   string `json:"access_token"    binding:"required"`
	VerifyToken   string `json:"verify_token"`
	DisplayPhone  string `json:"display_phone"`
}

// UpdateConfigRequest toggles a channel.
type UpdateConfigRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// CreateConfig handles POST /configs.
func (h *Handlers) CreateConfig(c *gin.Context) {
	account := accountID(c)
	if account == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing account identity")
		return
	}

	var req CreateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	cfg := &domain.MessagingConfig{
		AccountID:     account,
		BusinessID:    req.BusinessID,
		PhoneNumberID: req.PhoneNumberID,
		AccessToken:   req.AccessToken,
		VerifyToken:   req.VerifyToken,
		DisplayPhone:  req.DisplayPhone,
		Enabled:       true,
	}
	if err := h.configs.Create(c.Request.Context(), cfg); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			fail(c, http.StatusConflict, ErrCodeConflict, "a channel already exists for this scope")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeCreateFailed, err.Error())
		return
	}
	ok(c, http.StatusCreated, cfg)
}

// ListConfigs handles GET /configs.
func (h *Handlers) ListConfigs(c *gin.Context) {
	account := accountID(c)
	if account == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing account identity")
		return
	}
	items, err := h.configs.List(c.Request.Context(), account)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list channels")
		return
	}
	ok(c, http.StatusOK, gin.H{"configs": items})
}

// UpdateConfig handles PATCH /configs/:id.
func (h *Handlers) UpdateConfig(c *gin.Context) {
	account := accountID(c)
	if account == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing account identity")
		return
	}

	var req UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	err := h.configs.SetEnabled(c.Request.Context(), c.Param("id"), account, *req.Enabled)
	if err != nil {
		if errors.Is(err, services.ErrConfigNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "channel not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not update channel")
		return
	}
	noContent(c)
}
