package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/metalid/internal/clock"
	"github.com/smallbiznis/metalid/internal/config"
	"github.com/smallbiznis/metalid/internal/invite/domain"
	"github.com/smallbiznis/metalid/internal/invite/repository"
	memberdomain "github.com/smallbiznis/metalid/internal/member/domain"
	memberrepo "github.com/smallbiznis/metalid/internal/member/repository"
	"github.com/smallbiznis/metalid/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	svc   domain.Service
	db    *gorm.DB
	clock *clock.FakeClock
}

func newTestEnv(t *testing.T, ttl time.Duration) testEnv {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(&memberdomain.Member{}, &domain.InviteToken{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	policy := config.DefaultInvitePolicy()
	if ttl > 0 {
		policy.TokenTTL = ttl
	}

	fake := clock.NewFakeClock(time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:      dbConn,
		Log:     zap.NewNop(),
		Clock:   fake,
		Cfg:     config.Config{AppURL: "https://metalid.example.com/"},
		Policy:  config.NewStaticInvitePolicyHolder(policy),
		Repo:    repository.Provide(),
		Members: memberrepo.Provide(),
	})
	return testEnv{svc: svc, db: dbConn, clock: fake}
}

func (e testEnv) seedMember(t *testing.T, id string) {
	t.Helper()
	now := e.clock.Now()
	err := e.db.Create(&memberdomain.Member{
		ID:        id,
		Type:      memberdomain.TypeProfile,
		Status:    memberdomain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}).Error
	if err != nil {
		t.Fatalf("failed to seed member: %v", err)
	}
}

func TestIssueReturnsInviteURL(t *testing.T) {
	env := newTestEnv(t, 0)
	env.seedMember(t, "000123")

	issued, err := env.svc.Issue(context.Background(), "000123")
	require.NoError(t, err)

	assert.Equal(t, "000123", issued.MemberID)
	assert.True(t, strings.HasPrefix(issued.URL, "https://metalid.example.com/register?token="))
	assert.Equal(t, env.clock.Now().Add(30*24*time.Hour), issued.ExpiresAt)
	assert.Len(t, issued.Token, 43)

	memberID, err := env.svc.Validate(context.Background(), issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "000123", memberID)
}

func TestIssueUnknownMember(t *testing.T) {
	env := newTestEnv(t, 0)

	_, err := env.svc.Issue(context.Background(), "000999")
	assert.ErrorIs(t, err, memberdomain.ErrNotFound)

	var count int64
	require.NoError(t, env.db.Model(&domain.InviteToken{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestReissueSupersedesPreviousToken(t *testing.T) {
	env := newTestEnv(t, 0)
	env.seedMember(t, "000123")
	ctx := context.Background()

	first, err := env.svc.Issue(ctx, "000123")
	require.NoError(t, err)

	env.clock.Advance(time.Minute)
	second, err := env.svc.Issue(ctx, "000123")
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)

	_, err = env.svc.Validate(ctx, first.Token)
	assert.ErrorIs(t, err, domain.ErrExpired)

	memberID, err := env.svc.Validate(ctx, second.Token)
	require.NoError(t, err)
	assert.Equal(t, "000123", memberID)

	active, err := env.svc.ActiveFor(ctx, "000123")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second.Token, active.Token)
}

func TestValidateClassification(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	env.seedMember(t, "000123")
	ctx := context.Background()

	_, err := env.svc.Validate(ctx, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = env.svc.Validate(ctx, "does-not-exist")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	issued, err := env.svc.Issue(ctx, "000123")
	require.NoError(t, err)

	env.clock.Advance(time.Hour - time.Nanosecond)
	_, err = env.svc.Validate(ctx, issued.Token)
	require.NoError(t, err)

	env.clock.Advance(time.Nanosecond)
	_, err = env.svc.Validate(ctx, issued.Token)
	assert.ErrorIs(t, err, domain.ErrExpired, "expiry boundary is inclusive")
}

func TestConsumeMarksUsed(t *testing.T) {
	env := newTestEnv(t, 0)
	env.seedMember(t, "000123")
	ctx := context.Background()

	issued, err := env.svc.Issue(ctx, "000123")
	require.NoError(t, err)

	memberID, err := env.svc.Consume(ctx, nil, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "000123", memberID)

	_, err = env.svc.Validate(ctx, issued.Token)
	assert.ErrorIs(t, err, domain.ErrAlreadyUsed)

	_, err = env.svc.Consume(ctx, nil, issued.Token)
	assert.ErrorIs(t, err, domain.ErrAlreadyUsed)

	env.clock.Advance(60 * 24 * time.Hour)
	_, err = env.svc.Validate(ctx, issued.Token)
	assert.ErrorIs(t, err, domain.ErrAlreadyUsed, "used is reported before expired")

	active, err := env.svc.ActiveFor(ctx, "000123")
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestConsumeExpiredToken(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	env.seedMember(t, "000123")
	ctx := context.Background()

	issued, err := env.svc.Issue(ctx, "000123")
	require.NoError(t, err)

	env.clock.Advance(2 * time.Hour)
	_, err = env.svc.Consume(ctx, nil, issued.Token)
	assert.ErrorIs(t, err, domain.ErrExpired)
}

func TestConsumeRolledBackLeavesTokenUsable(t *testing.T) {
	env := newTestEnv(t, 0)
	env.seedMember(t, "000123")
	ctx := context.Background()

	issued, err := env.svc.Issue(ctx, "000123")
	require.NoError(t, err)

	err = env.db.Transaction(func(tx *gorm.DB) error {
		if _, err := env.svc.Consume(ctx, tx, issued.Token); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	_, err = env.svc.Validate(ctx, issued.Token)
	assert.NoError(t, err)
}

func TestConcurrentIssueLeavesOneLiveToken(t *testing.T) {
	env := newTestEnv(t, 0)
	env.seedMember(t, "000123")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Issue(ctx, "000123")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var live int64
	err := env.db.Model(&domain.InviteToken{}).
		Where("member_id = ? AND used_at IS NULL AND expires_at > ?", "000123", env.clock.Now()).
		Count(&live).Error
	require.NoError(t, err)
	assert.Equal(t, int64(1), live)
}
