package services

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/bryanriosb/beauty-business-sub002/internal/domain"
	"github.com/bryanriosb/beauty-business-sub002/internal/repo"
)

func seedSentMessage(t *testing.T, db *gorm.DB, providerID string) *domain.Message {
	t.Helper()
	pid := providerID
	m := &domain.Message{
		ConversationID: "c1", AccountID: "a1", BusinessID: "b1",
		Direction: domain.DirectionOutbound, Kind: domain.KindTemplate,
		Body: "hola", ProviderMessageID: &pid, Status: domain.StatusSent,
	}
	if err := repo.CreateMessage(context.Background(), db, m); err != nil {
		t.Fatalf("seed message: %v", err)
	}
	return m
}

func reloadMessage(t *testing.T, db *gorm.DB, id string) *domain.Message {
	t.Helper()
	m, err := repo.GetMessage(context.Background(), db, id)
	if err != nil {
		t.Fatalf("reload message: %v", err)
	}
	return m
}

func TestApplyStatus_UnknownProviderID_NoOp(t *testing.T) {
	db := newServiceDB(t)
	svc := NewStatusService(db)

	err := svc.ApplyStatus(context.Background(), StatusUpdate{
		ProviderMessageID: "wamid.untracked", Status: domain.StatusDelivered,
	})
	if err != nil {
		t.Fatalf("unknown provider id must be a no-op, got %v", err)
	}
}

func TestApplyStatus_UnrecognizedStatus_NoOp(t *testing.T) {
	db := newServiceDB(t)
	svc := NewStatusService(db)
	m := seedSentMessage(t, db, "wamid.s1")

	err := svc.ApplyStatus(context.Background(), StatusUpdate{
		ProviderMessageID: "wamid.s1", Status: "warehoused",
	})
	if err != nil {
		t.Fatalf("unrecognized status must be a no-op, got %v", err)
	}
	if got := reloadMessage(t, db, m.ID); got.Status != domain.StatusSent {
		t.Fatalf("status must not change: %+v", got)
	}
}

func TestApplyStatus_UpgradeAndTimestamps(t *testing.T) {
	db := newServiceDB(t)
	svc := NewStatusService(db)
	m := seedSentMessage(t, db, "wamid.s2")
	ctx := context.Background()

	deliveredAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := svc.ApplyStatus(ctx, StatusUpdate{
		ProviderMessageID: "wamid.s2", Status: domain.StatusDelivered, Timestamp: &deliveredAt,
	}); err != nil {
		t.Fatalf("ApplyStatus(delivered): %v", err)
	}

	got := reloadMessage(t, db, m.ID)
	if got.Status != domain.StatusDelivered {
		t.Fatalf("status not upgraded: %+v", got)
	}
	if got.DeliveredAt == nil || !got.DeliveredAt.Equal(deliveredAt) {
		t.Fatalf("delivered_at not applied: %+v", got)
	}

	// duplicate event: same status, timestamps last-write-wins
	laterDelivery := deliveredAt.Add(time.Minute)
	if err := svc.ApplyStatus(ctx, StatusUpdate{
		ProviderMessageID: "wamid.s2", Status: domain.StatusDelivered, Timestamp: &laterDelivery,
	}); err != nil {
		t.Fatalf("ApplyStatus(duplicate): %v", err)
	}
	got = reloadMessage(t, db, m.ID)
	if got.DeliveredAt == nil || !got.DeliveredAt.Equal(laterDelivery) {
		t.Fatalf("duplicate event should overwrite the timestamp: %+v", got)
	}
}

func TestApplyStatus_OutOfOrder_ReadBeforeDelivered(t *testing.T) {
	db := newServiceDB(t)
	svc := NewStatusService(db)
	m := seedSentMessage(t, db, "wamid.s3")
	ctx := context.Background()

	readAt := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)
	deliveredAt := readAt.Add(-time.Minute)

	// "read" arrives first and becomes terminal
	if err := svc.ApplyStatus(ctx, StatusUpdate{
		ProviderMessageID: "wamid.s3", Status: domain.StatusRead, Timestamp: &readAt,
	}); err != nil {
		t.Fatalf("ApplyStatus(read): %v", err)
	}
	// the late "delivered" lands its timestamp but must not demote
	if err := svc.ApplyStatus(ctx, StatusUpdate{
		ProviderMessageID: "wamid.s3", Status: domain.StatusDelivered, Timestamp: &deliveredAt,
	}); err != nil {
		t.Fatalf("ApplyStatus(late delivered): %v", err)
	}

	got := reloadMessage(t, db, m.ID)
	if got.Status != domain.StatusRead {
		t.Fatalf("out-of-order event demoted the status: %+v", got)
	}
	if got.ReadAt == nil || !got.ReadAt.Equal(readAt) {
		t.Fatalf("read_at missing: %+v", got)
	}
	if got.DeliveredAt == nil || !got.DeliveredAt.Equal(deliveredAt) {
		t.Fatalf("delivered_at missing: %+v", got)
	}
}

func TestApplyStatus_FailedAfterRead_IsTerminal(t *testing.T) {
	db := newServiceDB(t)
	svc := NewStatusService(db)
	m := seedSentMessage(t, db, "wamid.s5")
	ctx := context.Background()

	readAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := svc.ApplyStatus(ctx, StatusUpdate{
		ProviderMessageID: "wamid.s5", Status: domain.StatusRead, Timestamp: &readAt,
	}); err != nil {
		t.Fatalf("ApplyStatus(read): %v", err)
	}

	// a late failure outranks read; the read receipt stays on record
	failedAt := readAt.Add(time.Minute)
	if err := svc.ApplyStatus(ctx, StatusUpdate{
		ProviderMessageID: "wamid.s5", Status: domain.StatusFailed,
		Timestamp: &failedAt, ErrorDetail: "131049: message undeliverable",
	}); err != nil {
		t.Fatalf("ApplyStatus(failed): %v", err)
	}

	got := reloadMessage(t, db, m.ID)
	if got.Status != domain.StatusFailed {
		t.Fatalf("failure must be terminal over read: %+v", got)
	}
	if got.FailedAt == nil || !got.FailedAt.Equal(failedAt) {
		t.Fatalf("failed_at missing: %+v", got)
	}
	if got.ReadAt == nil || !got.ReadAt.Equal(readAt) {
		t.Fatalf("read_at must survive the failure: %+v", got)
	}
}

func TestApplyStatus_Failed(t *testing.T) {
	db := newServiceDB(t)
	svc := NewStatusService(db)
	m := seedSentMessage(t, db, "wamid.s4")

	failedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := svc.ApplyStatus(context.Background(), StatusUpdate{
		ProviderMessageID: "wamid.s4", Status: domain.StatusFailed,
		Timestamp: &failedAt, ErrorDetail: "131026: recipient unreachable",
	})
	if err != nil {
		t.Fatalf("ApplyStatus(failed): %v", err)
	}

	got := reloadMessage(t, db, m.ID)
	if got.Status != domain.StatusFailed || got.FailedAt == nil || !got.FailedAt.Equal(failedAt) {
		t.Fatalf("failure not recorded: %+v", got)
	}
	if got.ErrorDetail != "131026: recipient unreachable" {
		t.Fatalf("error detail missing: %+v", got)
	}
}
