package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bryanriosb/beauty-business-sub002/internal/domain"
)

// test DB helper
func newRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("repo_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestCreateConfig_AssignsIDAndRejectsScopeClash(t *testing.T) {
	db := newRepoDB(t, &domain.MessagingConfig{})
	ctx := context.Background()

	c := &domain.MessagingConfig{
		AccountID:     "a1",
		BusinessID:    "b1",
		PhoneNumberID: "pn-1",
		AccessToken:   "tok",
		Enabled:       true,
	}
	if err := CreateConfig(ctx, db, c); err != nil {
		t.Fatalf("CreateConfig: %v", err)
	}
	if c.ID == "" || c.CreatedAt.IsZero() {
		t.Fatalf("id/created_at not assigned: %+v", c)
	}

	// second row for the same (account, business) pair must clash
	dup := &domain.MessagingConfig{
		AccountID:     "a1",
		BusinessID:    "b1",
		PhoneNumberID: "pn-2",
		AccessToken:   "tok2",
		Enabled:       true,
	}
	if err := CreateConfig(ctx, db, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestCreateConfig_SingleSharedRow(t *testing.T) {
	db := newRepoDB(t, &domain.MessagingConfig{})
	ctx := context.Background()

	first := &domain.MessagingConfig{Shared: true, PhoneNumberID: "pn-shared", AccessToken: "tok", Enabled: true}
	if err := CreateConfig(ctx, db, first); err != nil {
		t.Fatalf("create shared: %v", err)
	}
	// a second shared row carries the same empty scope pair
	second := &domain.MessagingConfig{Shared: true, PhoneNumberID: "pn-shared-2", AccessToken: "tok", Enabled: true}
	if err := CreateConfig(ctx, db, second); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for second shared row, got %v", err)
	}
}

func TestFindConfigByScope_SkipsDisabledAndShared(t *testing.T) {
	db := newRepoDB(t, &domain.MessagingConfig{})
	ctx := context.Background()

	seed := []*domain.MessagingConfig{
		{AccountID: "a1", BusinessID: "b1", PhoneNumberID: "pn-b", AccessToken: "t", Enabled: true},
		{AccountID: "a2", BusinessID: "b2", PhoneNumberID: "pn-off", AccessToken: "t", Enabled: false},
		{Shared: true, PhoneNumberID: "pn-shared", AccessToken: "t", Enabled: true},
	}
	for _, c := range seed {
		if err := CreateConfig(ctx, db, c); err != nil {
			t.Fatalf("seed %s: %v", c.PhoneNumberID, err)
		}
	}

	got, err := FindConfigByScope(ctx, db, "a1", "b1")
	if err != nil {
		t.Fatalf("FindConfigByScope: %v", err)
	}
	if got.PhoneNumberID != "pn-b" {
		t.Fatalf("unexpected config: %+v", got)
	}

	// disabled row must not resolve
	if _, err := FindConfigByScope(ctx, db, "a2", "b2"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found for disabled config, got %v", err)
	}

	// the shared row must not leak into scope lookups for ("","")
	if _, err := FindConfigByScope(ctx, db, "", ""); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found for shared row via scope lookup, got %v", err)
	}

	shared, err := FindSharedConfig(ctx, db)
	if err != nil {
		t.Fatalf("FindSharedConfig: %v", err)
	}
	if shared.PhoneNumberID != "pn-shared" {
		t.Fatalf("unexpected shared config: %+v", shared)
	}
}

func TestFindConfigByPhoneID(t *testing.T) {
	db := newRepoDB(t, &domain.MessagingConfig{})
	ctx := context.Background()

	c := &domain.MessagingConfig{AccountID: "a1", PhoneNumberID: "pn-42", AccessToken: "t", Enabled: true}
	if err := CreateConfig(ctx, db, c); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := FindConfigByPhoneID(ctx, db, "pn-42")
	if err != nil {
		t.Fatalf("FindConfigByPhoneID: %v", err)
	}
	if got.ID != c.ID {
		t.Fatalf("unexpected row: %+v", got)
	}

	if _, err := FindConfigByPhoneID(ctx, db, "pn-unknown"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestHasVerifyToken(t *testing.T) {
	db := newRepoDB(t, &domain.MessagingConfig{})
	ctx := context.Background()

	c := &domain.MessagingConfig{AccountID: "a1", PhoneNumberID: "pn", AccessToken: "t", VerifyToken: "vt-1", Enabled: true}
	if err := CreateConfig(ctx, db, c); err != nil {
		t.Fatalf("seed: %v", err)
	}

	ok, err := HasVerifyToken(ctx, db, "vt-1")
	if err != nil || !ok {
		t.Fatalf("expected token match, got ok=%v err=%v", ok, err)
	}
	ok, err = HasVerifyToken(ctx, db, "nope")
	if err != nil || ok {
		t.Fatalf("expected no match, got ok=%v err=%v", ok, err)
	}
	// empty token never matches, even if a row had an empty verify_token
	ok, err = HasVerifyToken(ctx, db, "")
	if err != nil || ok {
		t.Fatalf("expected empty token rejected, got ok=%v err=%v", ok, err)
	}
}

func TestSetConfigEnabled_OwnershipScoped(t *testing.T) {
	db := newRepoDB(t, &domain.MessagingConfig{})
	ctx := context.Background()

	c := &domain.MessagingConfig{AccountID: "a1", PhoneNumberID: "pn", AccessToken: "t", Enabled: true}
	if err := CreateConfig(ctx, db, c); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// another account cannot toggle it
	if err := SetConfigEnabled(ctx, db, c.ID, "a2", false); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found for foreign account, got %v", err)
	}

	if err := SetConfigEnabled(ctx, db, c.ID, "a1", false); err != nil {
		t.Fatalf("SetConfigEnabled: %v", err)
	}
	var got domain.MessagingConfig
	if err := db.First(&got, "id = ?", c.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Enabled {
		t.Fatalf("expected disabled, got %+v", got)
	}
}

func TestListConfigs_OnlyOwnAccount(t *testing.T) {
	db := newRepoDB(t, &domain.MessagingConfig{})
	ctx := context.Background()

	for i, acct := range []string{"a1", "a1", "a2"} {
		c := &domain.MessagingConfig{AccountID: acct, BusinessID: fmt.Sprintf("b%d", i), PhoneNumberID: fmt.Sprintf("pn%d", i), AccessToken: "t", Enabled: true}
		if err := CreateConfig(ctx, db, c); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	out, err := ListConfigs(ctx, db, "a1")
	if err != nil {
		t.Fatalf("ListConfigs: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 configs for a1, got %d", len(out))
	}
}
