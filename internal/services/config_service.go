// Package services – ConfigService
//
// This file implements the channel-configuration resolver. A tenant can hold
// a WhatsApp configuration at business scope, at account scope, or fall back
// to the single shared platform number. Resolution is a pure read with fixed
// precedence; "not configured" is a normal outcome surfaced as
// ErrConfigNotFound so triggering callers can log and move on.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/bryanriosb/beauty-business-sub002/internal/domain"
	"github.com/bryanriosb/beauty-business-sub002/internal/repo"
)

// ConfigRepo defines the repository contract required by ConfigService.
type ConfigRepo interface {
	// CreateConfig inserts a new config row; repo.ErrDuplicate on scope clash.
	CreateConfig(ctx context.Context, db *gorm.DB, c *domain.MessagingConfig) error

	// FindConfigByScope returns the enabled non-shared config for the pair.
	FindConfigByScope(ctx context.Context, db *gorm.DB, accountID, businessID string) (*domain.MessagingConfig, error)

	// FindSharedConfig returns the single enabled shared config.
	FindSharedConfig(ctx context.Context, db *gorm.DB) (*domain.MessagingConfig, error)

	// FindConfigByPhoneID returns the enabled config owning a channel id.
	FindConfigByPhoneID(ctx context.Context, db *gorm.DB, phoneNumberID string) (*domain.MessagingConfig, error)

	// HasVerifyToken reports whether an enabled config holds the token.
	HasVerifyToken(ctx context.Context, db *gorm.DB, token string) (bool, error)

	// ListConfigs returns an account's configs.
	ListConfigs(ctx context.Context, db *gorm.DB, accountID string) ([]domain.MessagingConfig, error)

	// SetConfigEnabled toggles a config owned by the account.
	SetConfigEnabled(ctx context.Context, db *gorm.DB, id, accountID string, enabled bool) error
}

// ConfigService resolves and manages per-tenant channel configurations.
type ConfigService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the config repository used by this service.
	Repo ConfigRepo
}

// NewConfigService constructs a ConfigService.
func NewConfigService(db *gorm.DB, r ConfigRepo) *ConfigService {
	return &ConfigService{DB: db, Repo: r}
}

// Resolve picks the applicable configuration for a tenant scope. Precedence,
// first enabled hit wins:
//
//  1. business-scoped config for (accountID, businessID)
//  2. account-scoped config (business empty)
//  3. the single shared/global config
//
// The result is deterministic for any query order because each step targets
// a distinct unique scope pair. ErrConfigNotFound when all three miss.
func (s *ConfigService) Resolve(ctx context.Context, accountID, businessID string) (*domain.MessagingConfig, error) {
	if businessID != "" {
		c, err := s.Repo.FindConfigByScope(ctx, s.DB, accountID, businessID)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	c, err := s.Repo.FindConfigByScope(ctx, s.DB, accountID, "")
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	c, err = s.Repo.FindSharedConfig(ctx, s.DB)
	if err == nil {
		return c, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConfigNotFound
	}
	return nil, err
}

// ResolveByPhoneID returns the config owning the provider channel id carried
// by an inbound webhook, or ErrConfigNotFound.
func (s *ConfigService) ResolveByPhoneID(ctx context.Context, phoneNumberID string) (*domain.MessagingConfig, error) {
	c, err := s.Repo.FindConfigByPhoneID(ctx, s.DB, phoneNumberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}
	return c, nil
}

// Create registers a new channel configuration. Shared configs carry empty
// scope ids; tenant configs require an account. The unique scope index turns
// a second config for the same pair (or a second shared row) into
// repo.ErrDuplicate, which is passed through for the handler to map to 409.
func (s *ConfigService) Create(ctx context.Context, c *domain.MessagingConfig) error {
	c.AccountID = strings.TrimSpace(c.AccountID)
	c.BusinessID = strings.TrimSpace(c.BusinessID)
	if c.Shared {
		c.AccountID = ""
		c.BusinessID = ""
	} else if c.AccountID == "" {
		return errors.New("account id is required for tenant configs")
	}
	if strings.TrimSpace(c.PhoneNumberID) == "" {
		return errors.New("phone number id is required")
	}
	if strings.TrimSpace(c.AccessToken) == "" {
		return errors.New("access token is required")
	}
	return s.Repo.CreateConfig(ctx, s.DB, c)
}

// VerifyWebhookToken answers the provider's webhook subscription handshake:
// the offered token must match an enabled config's verification token.
func (s *ConfigService) VerifyWebhookToken(ctx context.Context, token string) (bool, error) {
	return s.Repo.HasVerifyToken(ctx, s.DB, token)
}

// List returns the configs owned by an account.
func (s *ConfigService) List(ctx context.Context, accountID string) ([]domain.MessagingConfig, error) {
	return s.Repo.ListConfigs(ctx, s.DB, accountID)
}

// SetEnabled toggles a config. ErrConfigNotFound when the row is missing or
// owned by another account.
func (s *ConfigService) SetEnabled(ctx context.Context, id, accountID string, enabled bool) error {
	err := s.Repo.SetConfigEnabled(ctx, s.DB, id, accountID, enabled)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrConfigNotFound
	}
	return err
}

// configRepoShim adapts the repo free functions to ConfigRepo. It keeps the
// service decoupled from the concrete repo package while reusing the
// existing functions.
type configRepoShim struct{}

func (configRepoShim) CreateConfig(ctx context.Context, db *gorm.DB, c *domain.MessagingConfig) error {
	return repo.CreateConfig(ctx, db, c)
}

func (configRepoShim) FindConfigByScope(ctx context.Context, db *gorm.DB, accountID, businessID string) (*domain.MessagingConfig, error) {
	return repo.FindConfigByScope(ctx, db, accountID, businessID)
}

func (configRepoShim) FindSharedConfig(ctx context.Context, db *gorm.DB) (*domain.MessagingConfig, error) {
	return repo.FindSharedConfig(ctx, db)
}

func (configRepoShim) FindConfigByPhoneID(ctx context.Context, db *gorm.DB, phoneNumberID string) (*domain.MessagingConfig, error) {
	return repo.FindConfigByPhoneID(ctx, db, phoneNumberID)
}

func (configRepoShim) HasVerifyToken(ctx context.Context, db *gorm.DB, token string) (bool, error) {
	return repo.HasVerifyToken(ctx, db, token)
}

func (configRepoShim) ListConfigs(ctx context.Context, db *gorm.DB, accountID string) ([]domain.MessagingConfig, error) {
	return repo.ListConfigs(ctx, db, accountID)
}

func (configRepoShim) SetConfigEnabled(ctx context.Context, db *gorm.DB, id, accountID string, enabled bool) error {
	return repo.SetConfigEnabled(ctx, db, id, accountID, enabled)
}

// DefaultConfigRepo returns the production ConfigRepo backed by the repo
// package free functions.
func DefaultConfigRepo() ConfigRepo { return configRepoShim{} }
