package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/metalid/internal/clock"
	invitedomain "github.com/smallbiznis/metalid/internal/invite/domain"
	"github.com/smallbiznis/metalid/internal/member/domain"
	"github.com/smallbiznis/metalid/internal/member/repository"
	"github.com/smallbiznis/metalid/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(&domain.Member{}, &invitedomain.InviteToken{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	fake := clock.NewFakeClock(time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:    dbConn,
		Log:   zap.NewNop(),
		Clock: fake,
		Repo:  repository.Provide(),
	})
	return svc, dbConn, fake
}

func TestCreateRejectsMalformedIDs(t *testing.T) {
	svc, _, _ := newTestService(t)

	cases := []string{"", "12345", "1234567", "12a456", " 12345", "１２３４５６", "-12345"}
	for _, id := range cases {
		_, err := svc.Create(context.Background(), domain.CreateMemberRequest{ID: id, Type: domain.TypeProfile})
		assert.ErrorIs(t, err, domain.ErrInvalidID, "id %q", id)
	}
}

func TestCreateProfileMember(t *testing.T) {
	svc, _, _ := newTestService(t)

	member, err := svc.Create(context.Background(), domain.CreateMemberRequest{
		ID:          "000123",
		Type:        domain.TypeProfile,
		RedirectURL: "https://ignored.example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, member.Status)
	assert.Nil(t, member.RedirectURL)

	stored, err := svc.Get(context.Background(), "000123")
	require.NoError(t, err)
	assert.Equal(t, domain.TypeProfile, stored.Type)
	assert.Nil(t, stored.AuthIdentity)
}

func TestCreateRedirectRequiresURL(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), domain.CreateMemberRequest{
		ID:          "000200",
		Type:        domain.TypeRedirect,
		RedirectURL: "   ",
	})
	assert.ErrorIs(t, err, domain.ErrMissingRedirect)

	member, err := svc.Create(context.Background(), domain.CreateMemberRequest{
		ID:          "000200",
		Type:        domain.TypeRedirect,
		RedirectURL: " https://sponsor.example.com/page ",
	})
	require.NoError(t, err)
	require.NotNil(t, member.RedirectURL)
	assert.Equal(t, "https://sponsor.example.com/page", *member.RedirectURL)
}

func TestCreateRejectsUnknownType(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), domain.CreateMemberRequest{ID: "000300", Type: "vip"})
	assert.ErrorIs(t, err, domain.ErrInvalidType)
}

func TestCreateDuplicateID(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), domain.CreateMemberRequest{ID: "000001", Type: domain.TypeProfile})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), domain.CreateMemberRequest{ID: "000001", Type: domain.TypeProfile})
	assert.ErrorIs(t, err, domain.ErrDuplicateID)
}

func TestListOrderedByIDAndStats(t *testing.T) {
	svc, dbConn, _ := newTestService(t)
	ctx := context.Background()

	for _, id := range []string{"000300", "000100", "000200"} {
		_, err := svc.Create(ctx, domain.CreateMemberRequest{ID: id, Type: domain.TypeProfile})
		require.NoError(t, err)
	}
	require.NoError(t, dbConn.Exec(`UPDATE members SET status = 'active' WHERE id = '000200'`).Error)

	members, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t, "000100", members[0].ID)
	assert.Equal(t, "000200", members[1].ID)
	assert.Equal(t, "000300", members[2].ID)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Stats{Total: 3, Active: 1, Pending: 2}, stats)
}

func TestGetUnknownMember(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Get(context.Background(), "999999")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBindIdentityOnlyOnce(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateMemberRequest{ID: "000010", Type: domain.TypeProfile})
	require.NoError(t, err)

	require.NoError(t, svc.BindIdentity(ctx, nil, "000010", "identity-1", "a@example.com"))
	assert.ErrorIs(t, svc.BindIdentity(ctx, nil, "000010", "identity-2", "b@example.com"), domain.ErrAlreadyBound)
	assert.ErrorIs(t, svc.BindIdentity(ctx, nil, "000011", "identity-3", "c@example.com"), domain.ErrNotFound)

	found, err := svc.FindByAuthIdentity(ctx, "identity-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "000010", found.ID)

	missing, err := svc.FindByAuthIdentity(ctx, "identity-2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestActivateRequiresConsumedToken(t *testing.T) {
	svc, dbConn, fake := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateMemberRequest{ID: "000020", Type: domain.TypeProfile})
	require.NoError(t, err)
	require.NoError(t, svc.BindIdentity(ctx, nil, "000020", "identity-20", "m@example.com"))

	now := fake.Now()
	require.NoError(t, dbConn.Create(&invitedomain.InviteToken{
		Token:     "live-token",
		MemberID:  "000020",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}).Error)

	changed, err := svc.Activate(ctx, nil, "000020")
	assert.ErrorIs(t, err, domain.ErrNotActivatable)
	assert.False(t, changed)

	require.NoError(t, dbConn.Exec(`UPDATE invite_tokens SET used_at = ? WHERE token = ?`, now, "live-token").Error)

	changed, err = svc.Activate(ctx, nil, "000020")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = svc.Activate(ctx, nil, "000020")
	require.NoError(t, err)
	assert.False(t, changed, "second activation is a no-op")

	member, err := svc.Get(ctx, "000020")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, member.Status)
}

func TestActivateRequiresBoundIdentity(t *testing.T) {
	svc, dbConn, fake := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateMemberRequest{ID: "000030", Type: domain.TypeProfile})
	require.NoError(t, err)
	now := fake.Now()
	require.NoError(t, dbConn.Create(&invitedomain.InviteToken{
		Token:     "used-token",
		MemberID:  "000030",
		ExpiresAt: now.Add(time.Hour),
		UsedAt:    &now,
		CreatedAt: now,
	}).Error)

	_, err = svc.Activate(ctx, nil, "000030")
	assert.ErrorIs(t, err, domain.ErrNotActivatable)
}
