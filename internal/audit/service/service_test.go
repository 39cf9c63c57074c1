package service

import (
	"context"
	"testing"
	"time"

	auditdomain "github.com/smallbiznis/metalid/internal/audit/domain"
	"github.com/smallbiznis/metalid/internal/audit/repository"
	"github.com/smallbiznis/metalid/internal/clock"
	obscontext "github.com/smallbiznis/metalid/internal/observability/context"
	"github.com/smallbiznis/metalid/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (auditdomain.Service, *clock.FakeClock) {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&auditdomain.AuditLog{}))

	fake := clock.NewFakeClock(time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC))
	return NewService(Params{
		DB:    dbConn,
		Log:   zap.NewNop(),
		Clock: fake,
		Repo:  repository.Provide(),
	}), fake
}

func TestAuditLogResolvesActorFromContext(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := obscontext.WithActor(context.Background(), "admin", "000001")
	ctx = obscontext.WithRequestID(ctx, "req-1")

	target := "000123"
	require.NoError(t, svc.AuditLog(ctx, "", nil, auditdomain.ActionInviteIssued, "member", &target, map[string]any{
		"invite_token": "abcdefghijklmnopqrstuvwxyz",
	}))
	fake.Advance(time.Second)
	require.NoError(t, svc.AuditLog(ctx, "", nil, auditdomain.ActionMemberCreated, "member", &target, nil))

	logs, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{TargetType: "member", TargetID: "000123"})
	require.NoError(t, err)
	require.Len(t, logs, 2)

	assert.Equal(t, auditdomain.ActionMemberCreated, logs[0].Action, "newest first")
	issued := logs[1]
	assert.Equal(t, "admin", issued.ActorType)
	require.NotNil(t, issued.ActorID)
	assert.Equal(t, "000001", *issued.ActorID)
	assert.Equal(t, "****wxyz", issued.Metadata["invite_token"])
	assert.Equal(t, "req-1", issued.Metadata["request_id"])
}

func TestAuditLogDefaultsToSystemActor(t *testing.T) {
	svc, _ := newTestService(t)

	require.NoError(t, svc.AuditLog(context.Background(), "", nil, auditdomain.ActionMemberActivated, "member", nil, nil))

	logs, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{Action: auditdomain.ActionMemberActivated})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "system", logs[0].ActorType)
	assert.Nil(t, logs[0].TargetID)
}

func TestAuditLogRequiresAction(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.AuditLog(context.Background(), "", nil, "  ", "member", nil, nil)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestListPagesWithBeforeCursor(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.AuditLog(ctx, "", nil, auditdomain.ActionInviteIssued, auditdomain.TargetMember, nil, nil))
		fake.Advance(time.Second)
	}

	first, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)

	rest, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Limit: 2, Before: first[1].ID})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Less(t, rest[0].ID, first[1].ID)

	empty, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Action: "nothing"})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
