package local

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/metalid/internal/clock"
	"github.com/smallbiznis/metalid/internal/config"
	"github.com/smallbiznis/metalid/internal/identity/domain"
	"github.com/smallbiznis/metalid/internal/identity/repository"
	"github.com/smallbiznis/metalid/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturedMail struct {
	to   []string
	data map[string]any
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []capturedMail
}

func (f *fakeMailer) Send(context.Context, []string, string, string) error { return nil }

func (f *fakeMailer) SendTemplate(_ context.Context, to []string, _ string, data map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, capturedMail{to: to, data: data})
	return nil
}

func (f *fakeMailer) lastCode(t *testing.T) (string, string) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	raw := f.sent[len(f.sent)-1].data["confirm_url"].(string)
	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	return parsed.Query().Get("code"), parsed.Query().Get("next")
}

func newTestProvider(t *testing.T) (domain.Provider, *fakeMailer, *clock.FakeClock) {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&domain.Identity{}, &domain.Session{}, &domain.Confirmation{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	mailer := &fakeMailer{}
	fake := clock.NewFakeClock(time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC))
	provider := New(Params{
		DB:    dbConn,
		Log:   zap.NewNop(),
		Clock: fake,
		GenID: node,
		Cfg:   config.Config{AppURL: "https://metalid.example.com"},
		Email: mailer,
		Repo:  repository.Provide(),
	})
	return provider, mailer, fake
}

func TestSignUpConfirmAndSignIn(t *testing.T) {
	provider, mailer, _ := newTestProvider(t)
	ctx := context.Background()

	ref, err := provider.SignUp(ctx, nil, domain.SignUpRequest{Email: "Taro@Example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "taro@example.com", ref.Email)

	exists, err := provider.Exists(ctx, "taro@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = provider.SignIn(ctx, "taro@example.com", "password123")
	assert.ErrorIs(t, err, domain.ErrEmailNotConfirmed)

	require.NoError(t, provider.SendConfirmation(ctx, ref.ID, ""))
	code, next := mailer.lastCode(t)
	assert.Equal(t, "/my/edit", next)

	grant, err := provider.ExchangeCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, ref.ID, grant.ID)
	assert.Equal(t, "/my/edit", grant.Next)

	_, err = provider.ExchangeCode(ctx, code)
	assert.ErrorIs(t, err, domain.ErrInvalidCode, "codes are single use")

	authed, err := provider.Authenticate(ctx, grant.Token)
	require.NoError(t, err)
	assert.Equal(t, ref.ID, authed.ID)

	login, err := provider.SignIn(ctx, "taro@example.com", "password123")
	require.NoError(t, err)
	assert.NotEqual(t, grant.Token, login.Token)

	_, err = provider.SignIn(ctx, "taro@example.com", "wrong-password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestSignUpDuplicateEmail(t *testing.T) {
	provider, _, _ := newTestProvider(t)
	ctx := context.Background()

	_, err := provider.SignUp(ctx, nil, domain.SignUpRequest{Email: "a@example.com", Password: "password123"})
	require.NoError(t, err)

	_, err = provider.SignUp(ctx, nil, domain.SignUpRequest{Email: "A@example.com", Password: "password123"})
	assert.ErrorIs(t, err, domain.ErrEmailExists)
}

func TestConfirmationCodeExpires(t *testing.T) {
	provider, mailer, fake := newTestProvider(t)
	ctx := context.Background()

	ref, err := provider.SignUp(ctx, nil, domain.SignUpRequest{Email: "a@example.com", Password: "password123"})
	require.NoError(t, err)
	require.NoError(t, provider.SendConfirmation(ctx, ref.ID, "/my"))

	code, next := mailer.lastCode(t)
	assert.Equal(t, "/my", next)

	fake.Advance(25 * time.Hour)
	_, err = provider.ExchangeCode(ctx, code)
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
}

func TestSessionLifecycle(t *testing.T) {
	provider, mailer, fake := newTestProvider(t)
	ctx := context.Background()

	ref, err := provider.SignUp(ctx, nil, domain.SignUpRequest{Email: "a@example.com", Password: "password123"})
	require.NoError(t, err)
	require.NoError(t, provider.SendConfirmation(ctx, ref.ID, ""))
	code, _ := mailer.lastCode(t)
	grant, err := provider.ExchangeCode(ctx, code)
	require.NoError(t, err)

	_, err = provider.Authenticate(ctx, "unknown")
	assert.ErrorIs(t, err, domain.ErrInvalidSession)

	require.NoError(t, provider.SignOut(ctx, grant.Token))
	_, err = provider.Authenticate(ctx, grant.Token)
	assert.ErrorIs(t, err, domain.ErrSessionRevoked)

	login, err := provider.SignIn(ctx, "a@example.com", "password123")
	require.NoError(t, err)
	fake.Advance(7 * 24 * time.Hour)
	_, err = provider.Authenticate(ctx, login.Token)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestDeleteRemovesIdentity(t *testing.T) {
	provider, _, _ := newTestProvider(t)
	ctx := context.Background()

	ref, err := provider.SignUp(ctx, nil, domain.SignUpRequest{Email: "a@example.com", Password: "password123"})
	require.NoError(t, err)
	require.NoError(t, provider.Delete(ctx, ref.ID))

	exists, err := provider.Exists(ctx, "a@example.com")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, provider.Delete(ctx, ref.ID), domain.ErrIdentityNotFound)
}
