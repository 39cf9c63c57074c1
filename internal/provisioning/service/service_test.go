package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	auditdomain "github.com/smallbiznis/metalid/internal/audit/domain"
	auditrepo "github.com/smallbiznis/metalid/internal/audit/repository"
	auditservice "github.com/smallbiznis/metalid/internal/audit/service"
	"github.com/smallbiznis/metalid/internal/clock"
	"github.com/smallbiznis/metalid/internal/config"
	invitedomain "github.com/smallbiznis/metalid/internal/invite/domain"
	inviterepo "github.com/smallbiznis/metalid/internal/invite/repository"
	inviteservice "github.com/smallbiznis/metalid/internal/invite/service"
	memberdomain "github.com/smallbiznis/metalid/internal/member/domain"
	memberrepo "github.com/smallbiznis/metalid/internal/member/repository"
	memberservice "github.com/smallbiznis/metalid/internal/member/service"
	"github.com/smallbiznis/metalid/internal/observability/metrics"
	"github.com/smallbiznis/metalid/internal/provisioning/domain"
	"github.com/smallbiznis/metalid/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type failingIssuer struct {
	invitedomain.Service
}

func (failingIssuer) IssueTx(context.Context, *gorm.DB, string) (invitedomain.IssuedToken, error) {
	return invitedomain.IssuedToken{}, errors.New("issuer down")
}

type testEnv struct {
	db      *gorm.DB
	members memberdomain.Service
	invites invitedomain.Service
	audit   auditdomain.Service
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&memberdomain.Member{}, &invitedomain.InviteToken{}, &auditdomain.AuditLog{}))

	fake := clock.NewFakeClock(time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	mrepo := memberrepo.Provide()

	return testEnv{
		db: dbConn,
		members: memberservice.New(memberservice.Params{
			DB: dbConn, Log: log, Clock: fake, Repo: mrepo,
		}),
		invites: inviteservice.New(inviteservice.Params{
			DB:      dbConn,
			Log:     log,
			Clock:   fake,
			Cfg:     config.Config{AppURL: "https://metalid.example.com"},
			Policy:  config.NewStaticInvitePolicyHolder(config.DefaultInvitePolicy()),
			Repo:    inviterepo.Provide(),
			Members: mrepo,
		}),
		audit: auditservice.NewService(auditservice.Params{
			DB: dbConn, Log: log, Clock: fake, Repo: auditrepo.Provide(),
		}),
	}
}

func (e testEnv) service(invites invitedomain.Service) domain.Service {
	return New(Params{
		DB:      e.db,
		Log:     zap.NewNop(),
		Members: e.members,
		Invites: invites,
		Audit:   e.audit,
		Metrics: metrics.NewNoop(),
	})
}

func TestCreateMemberIssuesFirstInvite(t *testing.T) {
	env := newTestEnv(t)
	svc := env.service(env.invites)
	ctx := context.Background()

	resp, err := svc.CreateMember(ctx, domain.CreateMemberRequest{ID: "000123", Type: memberdomain.TypeProfile})
	require.NoError(t, err)
	assert.Equal(t, "000123", resp.MemberID)
	require.True(t, strings.HasPrefix(resp.InviteURL, "https://metalid.example.com/register?token="))

	token := strings.TrimPrefix(resp.InviteURL, "https://metalid.example.com/register?token=")
	memberID, err := env.invites.Validate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "000123", memberID)

	logs, err := env.audit.List(ctx, auditdomain.ListAuditLogRequest{TargetID: "000123"})
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestCreateMemberRollsBackWhenIssueFails(t *testing.T) {
	env := newTestEnv(t)
	svc := env.service(failingIssuer{Service: env.invites})
	ctx := context.Background()

	_, err := svc.CreateMember(ctx, domain.CreateMemberRequest{ID: "000123", Type: memberdomain.TypeProfile})
	require.Error(t, err)

	_, err = env.members.Get(ctx, "000123")
	assert.ErrorIs(t, err, memberdomain.ErrNotFound)
}

func TestCreateMemberValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := env.service(env.invites)
	ctx := context.Background()

	_, err := svc.CreateMember(ctx, domain.CreateMemberRequest{ID: "12345", Type: memberdomain.TypeProfile})
	assert.ErrorIs(t, err, memberdomain.ErrInvalidID)

	_, err = svc.CreateMember(ctx, domain.CreateMemberRequest{ID: "000124", Type: memberdomain.TypeRedirect})
	assert.ErrorIs(t, err, memberdomain.ErrMissingRedirect)

	var count int64
	require.NoError(t, env.db.Model(&invitedomain.InviteToken{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestReissueTokenSupersedesFirst(t *testing.T) {
	env := newTestEnv(t)
	svc := env.service(env.invites)
	ctx := context.Background()

	created, err := svc.CreateMember(ctx, domain.CreateMemberRequest{ID: "000123", Type: memberdomain.TypeProfile})
	require.NoError(t, err)
	first := strings.TrimPrefix(created.InviteURL, "https://metalid.example.com/register?token=")

	reissued, err := svc.ReissueToken(ctx, "000123")
	require.NoError(t, err)
	assert.NotEqual(t, created.InviteURL, reissued.InviteURL)

	_, err = env.invites.Validate(ctx, first)
	assert.ErrorIs(t, err, invitedomain.ErrExpired)
}

func TestReissueTokenErrors(t *testing.T) {
	env := newTestEnv(t)
	svc := env.service(env.invites)

	_, err := svc.ReissueToken(context.Background(), " ")
	assert.ErrorIs(t, err, domain.ErrMissingMemberID)

	_, err = svc.ReissueToken(context.Background(), "000999")
	assert.ErrorIs(t, err, memberdomain.ErrNotFound)
}
