// Package local is the built-in identity provider: email/password
// credentials, emailed confirmation codes and cookie sessions, all stored in
// the application database.
package local

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/metalid/internal/clock"
	"github.com/smallbiznis/metalid/internal/config"
	"github.com/smallbiznis/metalid/internal/identity/domain"
	"github.com/smallbiznis/metalid/internal/identity/password"
	"github.com/smallbiznis/metalid/internal/providers/email"
	"github.com/smallbiznis/metalid/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	secretBytes     = 32
	sessionTTL      = 7 * 24 * time.Hour
	confirmationTTL = 24 * time.Hour
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	GenID *snowflake.Node
	Cfg   config.Config
	Email email.Provider
	Repo  domain.Repository
}

type Provider struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	genID   *snowflake.Node
	baseURL string
	email   email.Provider
	repo    domain.Repository
}

func New(p Params) domain.Provider {
	return &Provider{
		db:      p.DB,
		log:     p.Log.Named("identity.local"),
		clock:   p.Clock,
		genID:   p.GenID,
		baseURL: strings.TrimRight(p.Cfg.AppURL, "/"),
		email:   p.Email,
		repo:    p.Repo,
	}
}

func (p *Provider) SignUp(ctx context.Context, tx *gorm.DB, req domain.SignUpRequest) (domain.Ref, error) {
	if tx == nil {
		tx = p.db
	}
	address, err := domain.NormalizeEmail(req.Email)
	if err != nil {
		return domain.Ref{}, err
	}

	existing, err := p.repo.FindByEmail(ctx, tx, address)
	if err != nil {
		return domain.Ref{}, err
	}
	if existing != nil {
		return domain.Ref{}, domain.ErrEmailExists
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return domain.Ref{}, err
	}

	now := p.clock.Now()
	identity := &domain.Identity{
		ID:           p.genID.Generate(),
		Email:        address,
		PasswordHash: hashed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if token := strings.TrimSpace(req.InviteToken); token != "" {
		identity.InviteToken = &token
	}

	if err := p.repo.InsertIdentity(ctx, tx, identity); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Ref{}, domain.ErrEmailExists
		}
		return domain.Ref{}, err
	}

	return domain.Ref{ID: identity.ID.String(), Email: identity.Email}, nil
}

func (p *Provider) Exists(ctx context.Context, rawEmail string) (bool, error) {
	address, err := domain.NormalizeEmail(rawEmail)
	if err != nil {
		return false, err
	}
	existing, err := p.repo.FindByEmail(ctx, p.db, address)
	if err != nil {
		return false, err
	}
	return existing != nil, nil
}

func (p *Provider) Delete(ctx context.Context, identityID string) error {
	id, err := snowflake.ParseString(strings.TrimSpace(identityID))
	if err != nil {
		return domain.ErrIdentityNotFound
	}
	return p.repo.DeleteIdentity(ctx, p.db, id)
}

func (p *Provider) SendConfirmation(ctx context.Context, identityID, next string) error {
	id, err := snowflake.ParseString(strings.TrimSpace(identityID))
	if err != nil {
		return domain.ErrIdentityNotFound
	}
	identity, err := p.repo.FindByID(ctx, p.db, id)
	if err != nil {
		return err
	}
	if identity == nil {
		return domain.ErrIdentityNotFound
	}

	code, err := newSecret()
	if err != nil {
		return err
	}

	next = domain.SafeNext(next)
	now := p.clock.Now()
	confirmation := &domain.Confirmation{
		ID:         p.genID.Generate(),
		IdentityID: identity.ID,
		CodeHash:   hashSecret(code),
		NextPath:   next,
		ExpiresAt:  now.Add(confirmationTTL),
		CreatedAt:  now,
	}
	if err := p.repo.InsertConfirmation(ctx, p.db, confirmation); err != nil {
		return err
	}

	confirmURL := p.baseURL + "/auth/callback?code=" + url.QueryEscape(code) + "&next=" + url.QueryEscape(next)
	if err := p.email.SendTemplate(ctx, []string{identity.Email}, "confirm_email", map[string]any{
		"confirm_url":   confirmURL,
		"expires_hours": int(confirmationTTL.Hours()),
	}); err != nil {
		return err
	}

	p.log.Info("confirmation sent", zap.String("identity_id", identity.ID.String()))
	return nil
}

func (p *Provider) ExchangeCode(ctx context.Context, code string) (*domain.Grant, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.ErrInvalidCode
	}

	var grant *domain.Grant
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := p.clock.Now()
		confirmation, err := p.repo.UseConfirmation(ctx, tx, hashSecret(code), now)
		if err != nil {
			return err
		}
		if confirmation == nil {
			return domain.ErrInvalidCode
		}

		identity, err := p.repo.FindByID(ctx, tx, confirmation.IdentityID)
		if err != nil {
			return err
		}
		if identity == nil {
			return domain.ErrInvalidCode
		}
		if err := p.repo.MarkConfirmed(ctx, tx, identity.ID, now); err != nil {
			return err
		}

		grant, err = p.openSession(ctx, tx, identity, now)
		if err != nil {
			return err
		}
		grant.Next = confirmation.NextPath
		return nil
	})
	if err != nil {
		return nil, err
	}
	return grant, nil
}

func (p *Provider) SignIn(ctx context.Context, rawEmail, pw string) (*domain.Grant, error) {
	address, err := domain.NormalizeEmail(rawEmail)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if pw == "" {
		return nil, domain.ErrInvalidCredentials
	}

	identity, err := p.repo.FindByEmail(ctx, p.db, address)
	if err != nil {
		return nil, err
	}
	if identity == nil || !password.Verify(pw, identity.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	if !identity.Confirmed() {
		return nil, domain.ErrEmailNotConfirmed
	}

	return p.openSession(ctx, p.db, identity, p.clock.Now())
}

func (p *Provider) Authenticate(ctx context.Context, token string) (*domain.Ref, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrInvalidSession
	}

	session, err := p.repo.FindSessionByTokenHash(ctx, p.db, hashSecret(token))
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrInvalidSession
	}

	now := p.clock.Now()
	if session.RevokedAt != nil {
		return nil, domain.ErrSessionRevoked
	}
	if !now.Before(session.ExpiresAt) {
		return nil, domain.ErrSessionExpired
	}

	identity, err := p.repo.FindByID(ctx, p.db, session.IdentityID)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, domain.ErrInvalidSession
	}

	if err := p.repo.TouchSession(ctx, p.db, session.ID, now); err != nil {
		return nil, err
	}

	return &domain.Ref{ID: identity.ID.String(), Email: identity.Email}, nil
}

func (p *Provider) SignOut(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.ErrInvalidSession
	}
	session, err := p.repo.FindSessionByTokenHash(ctx, p.db, hashSecret(token))
	if err != nil {
		return err
	}
	if session == nil {
		return domain.ErrInvalidSession
	}
	return p.repo.RevokeSession(ctx, p.db, session.ID, p.clock.Now())
}

func (p *Provider) openSession(ctx context.Context, tx *gorm.DB, identity *domain.Identity, now time.Time) (*domain.Grant, error) {
	raw, err := newSecret()
	if err != nil {
		return nil, err
	}
	session := &domain.Session{
		ID:         p.genID.Generate(),
		IdentityID: identity.ID,
		TokenHash:  hashSecret(raw),
		ExpiresAt:  now.Add(sessionTTL),
		CreatedAt:  now,
		LastSeenAt: now,
	}
	if err := p.repo.InsertSession(ctx, tx, session); err != nil {
		return nil, err
	}
	return &domain.Grant{
		Ref:       domain.Ref{ID: identity.ID.String(), Email: identity.Email},
		Token:     raw,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

func newSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashSecret(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
