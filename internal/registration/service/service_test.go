package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/mock/gomock"
	"github.com/smallbiznis/metalid/internal/clock"
	"github.com/smallbiznis/metalid/internal/config"
	identitydomain "github.com/smallbiznis/metalid/internal/identity/domain"
	"github.com/smallbiznis/metalid/internal/identity/local"
	"github.com/smallbiznis/metalid/internal/identity/mocks"
	identityrepo "github.com/smallbiznis/metalid/internal/identity/repository"
	invitedomain "github.com/smallbiznis/metalid/internal/invite/domain"
	inviterepo "github.com/smallbiznis/metalid/internal/invite/repository"
	inviteservice "github.com/smallbiznis/metalid/internal/invite/service"
	memberdomain "github.com/smallbiznis/metalid/internal/member/domain"
	memberrepo "github.com/smallbiznis/metalid/internal/member/repository"
	memberservice "github.com/smallbiznis/metalid/internal/member/service"
	"github.com/smallbiznis/metalid/internal/registration/domain"
	"github.com/smallbiznis/metalid/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeMailer struct {
	mu   sync.Mutex
	urls []string
}

func (f *fakeMailer) Send(context.Context, []string, string, string) error { return nil }

func (f *fakeMailer) SendTemplate(_ context.Context, _ []string, _ string, data map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, data["confirm_url"].(string))
	return nil
}

func (f *fakeMailer) lastCode(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.urls)
	parsed, err := url.Parse(f.urls[len(f.urls)-1])
	require.NoError(t, err)
	return parsed.Query().Get("code")
}

type busyLocker struct{}

func (busyLocker) TryLock(context.Context, string, time.Duration) (string, bool, error) {
	return "", false, nil
}

func (busyLocker) Release(context.Context, string, string) error { return nil }

type testEnv struct {
	db       *gorm.DB
	clock    *clock.FakeClock
	mailer   *fakeMailer
	members  memberdomain.Service
	invites  invitedomain.Service
	identity identitydomain.Provider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(
		&memberdomain.Member{},
		&invitedomain.InviteToken{},
		&identitydomain.Identity{},
		&identitydomain.Session{},
		&identitydomain.Confirmation{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	fake := clock.NewFakeClock(time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC))
	cfg := config.Config{AppURL: "https://metalid.example.com"}
	mailer := &fakeMailer{}
	mrepo := memberrepo.Provide()

	return &testEnv{
		db:      dbConn,
		clock:   fake,
		mailer:  mailer,
		members: memberservice.New(memberservice.Params{DB: dbConn, Log: log, Clock: fake, Repo: mrepo}),
		invites: inviteservice.New(inviteservice.Params{
			DB:      dbConn,
			Log:     log,
			Clock:   fake,
			Cfg:     cfg,
			Policy:  config.NewStaticInvitePolicyHolder(config.DefaultInvitePolicy()),
			Repo:    inviterepo.Provide(),
			Members: mrepo,
		}),
		identity: local.New(local.Params{
			DB:    dbConn,
			Log:   log,
			Clock: fake,
			GenID: node,
			Cfg:   cfg,
			Email: mailer,
			Repo:  identityrepo.Provide(),
		}),
	}
}

func (e *testEnv) service(provider identitydomain.Provider, locker domain.TokenLocker) domain.Service {
	return New(Params{
		DB:       e.db,
		Log:      zap.NewNop(),
		Invites:  e.invites,
		Members:  e.members,
		Identity: provider,
		Locker:   locker,
	})
}

func (e *testEnv) memberWithToken(t *testing.T, id string) string {
	t.Helper()
	ctx := context.Background()
	_, err := e.members.Create(ctx, memberdomain.CreateMemberRequest{ID: id, Type: memberdomain.TypeProfile})
	require.NoError(t, err)
	issued, err := e.invites.Issue(ctx, id)
	require.NoError(t, err)
	return issued.Token
}

func validRequest(token string) domain.RegisterRequest {
	return domain.RegisterRequest{
		Token:           token,
		Email:           "taro@example.com",
		Password:        "password123",
		PasswordConfirm: "password123",
	}
}

func TestRegisterThenConfirmActivates(t *testing.T) {
	env := newTestEnv(t)
	svc := env.service(env.identity, nil)
	ctx := context.Background()
	token := env.memberWithToken(t, "000123")

	memberID, err := svc.Inspect(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "000123", memberID)

	result, err := svc.Register(ctx, validRequest(token))
	require.NoError(t, err)
	assert.True(t, result.PendingConfirmation)

	member, err := env.members.Get(ctx, "000123")
	require.NoError(t, err)
	assert.Equal(t, memberdomain.StatusPending, member.Status)
	require.NotNil(t, member.AuthIdentity)
	require.NotNil(t, member.Email)
	assert.Equal(t, "taro@example.com", *member.Email)

	_, err = svc.Inspect(ctx, token)
	assert.ErrorIs(t, err, domain.ErrUsedLink)

	confirmed, err := svc.Confirm(ctx, env.mailer.lastCode(t), "")
	require.NoError(t, err)
	assert.Equal(t, "/my/edit", confirmed.Redirect)
	assert.Equal(t, "000123", confirmed.MemberID)
	require.NotNil(t, confirmed.Grant)
	assert.NotEmpty(t, confirmed.Grant.Token)

	member, err = env.members.Get(ctx, "000123")
	require.NoError(t, err)
	assert.Equal(t, memberdomain.StatusActive, member.Status)
}

func TestRegisterValidationLeavesTokenUsable(t *testing.T) {
	env := newTestEnv(t)
	svc := env.service(env.identity, nil)
	ctx := context.Background()
	token := env.memberWithToken(t, "000123")

	weak := validRequest(token)
	weak.Password, weak.PasswordConfirm = "short", "short"
	_, err := svc.Register(ctx, weak)
	assert.ErrorIs(t, err, domain.ErrWeakPassword)

	mismatch := validRequest(token)
	mismatch.PasswordConfirm = "password124"
	_, err = svc.Register(ctx, mismatch)
	assert.ErrorIs(t, err, domain.ErrPasswordMismatch)

	badEmail := validRequest(token)
	badEmail.Email = "not-an-email"
	_, err = svc.Register(ctx, badEmail)
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = svc.Inspect(ctx, token)
	assert.NoError(t, err, "token stays valid after rejected submissions")

	member, err := env.members.Get(ctx, "000123")
	require.NoError(t, err)
	assert.Nil(t, member.AuthIdentity)
}

func TestRegisterLinkErrors(t *testing.T) {
	env := newTestEnv(t)
	svc := env.service(env.identity, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, validRequest("unknown"))
	assert.ErrorIs(t, err, domain.ErrInvalidLink)

	_, err = svc.Inspect(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidLink)

	token := env.memberWithToken(t, "000123")
	env.clock.Advance(31 * 24 * time.Hour)
	_, err = svc.Register(ctx, validRequest(token))
	assert.ErrorIs(t, err, domain.ErrExpiredLink)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	svc := env.service(env.identity, nil)
	ctx := context.Background()

	first := env.memberWithToken(t, "000001")
	second := env.memberWithToken(t, "000002")

	_, err := svc.Register(ctx, validRequest(first))
	require.NoError(t, err)

	_, err = svc.Register(ctx, validRequest(second))
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)

	_, err = svc.Inspect(ctx, second)
	assert.NoError(t, err)
}

func TestRegisterProviderFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	svc := env.service(provider, nil)
	ctx := context.Background()
	token := env.memberWithToken(t, "000123")

	provider.EXPECT().Exists(gomock.Any(), "taro@example.com").Return(false, nil)
	provider.EXPECT().SignUp(gomock.Any(), gomock.Any(), gomock.Any()).Return(identitydomain.Ref{}, errors.New("provider unavailable"))

	_, err := svc.Register(ctx, validRequest(token))
	var depErr *domain.DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, domain.DependencyIdentity, depErr.Dependency)

	_, err = svc.Inspect(ctx, token)
	assert.NoError(t, err, "token is not consumed when the provider fails")
}

func TestRegisterBindFailureCompensates(t *testing.T) {
	env := newTestEnv(t)
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	svc := env.service(provider, nil)
	ctx := context.Background()
	token := env.memberWithToken(t, "000123")
	require.NoError(t, env.db.Exec(`UPDATE members SET auth_identity = 'someone-else' WHERE id = '000123'`).Error)

	provider.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(false, nil)
	provider.EXPECT().SignUp(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(identitydomain.Ref{ID: "external-1", Email: "taro@example.com"}, nil)
	provider.EXPECT().Delete(gomock.Any(), "external-1").Return(nil)

	_, err := svc.Register(ctx, validRequest(token))
	assert.ErrorIs(t, err, domain.ErrAlreadyRegistered)

	_, err = svc.Inspect(ctx, token)
	assert.NoError(t, err)
}

func TestRegisterConcurrentSubmissionRejected(t *testing.T) {
	env := newTestEnv(t)
	svc := env.service(env.identity, busyLocker{})
	token := env.memberWithToken(t, "000123")

	_, err := svc.Register(context.Background(), validRequest(token))
	assert.ErrorIs(t, err, domain.ErrInProgress)
}

func TestConfirmRejectsBadCodeAndUnsafeNext(t *testing.T) {
	env := newTestEnv(t)
	svc := env.service(env.identity, nil)
	ctx := context.Background()

	_, err := svc.Confirm(ctx, "bogus", "")
	assert.ErrorIs(t, err, domain.ErrAuthFailed)

	token := env.memberWithToken(t, "000123")
	_, err = svc.Register(ctx, validRequest(token))
	require.NoError(t, err)

	confirmed, err := svc.Confirm(ctx, env.mailer.lastCode(t), "https://evil.example.com")
	require.NoError(t, err)
	assert.Equal(t, "/my/edit", confirmed.Redirect)
}

func TestResendConfirmation(t *testing.T) {
	env := newTestEnv(t)
	svc := env.service(env.identity, nil)
	ctx := context.Background()

	token := env.memberWithToken(t, "000123")
	_, err := svc.Register(ctx, validRequest(token))
	require.NoError(t, err)
	first := env.mailer.lastCode(t)

	require.NoError(t, svc.ResendConfirmation(ctx, "taro@example.com"))
	second := env.mailer.lastCode(t)
	assert.NotEqual(t, first, second)

	require.NoError(t, svc.ResendConfirmation(ctx, "nobody@example.com"))
	assert.ErrorIs(t, svc.ResendConfirmation(ctx, "nope"), domain.ErrInvalidEmail)
	assert.True(t, strings.HasPrefix(env.mailer.urls[0], "https://metalid.example.com/auth/callback?code="))
}
