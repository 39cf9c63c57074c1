package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/metalid/internal/config"
	"github.com/smallbiznis/metalid/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	keyRegister = "metalid:rl:register:%s"
	keyPublic   = "metalid:rl:public:%s"
)

const (
	EndpointRegister = "register"
	EndpointPublic   = "public"
)

type LimiterParams struct {
	fx.In

	Log     *zap.Logger
	Bucket  *TokenBucket               `optional:"true"`
	Policy  *config.InvitePolicyHolder `optional:"true"`
	Metrics *metrics.Metrics           `optional:"true"`
}

// RequestLimiter throttles invite-token guessing per client address.
// A nil bucket allows everything.
type RequestLimiter struct {
	log     *zap.Logger
	bucket  *TokenBucket
	policy  *config.InvitePolicyHolder
	metrics *metrics.Metrics
}

func NewRequestLimiter(p LimiterParams) *RequestLimiter {
	return &RequestLimiter{
		log:     p.Log.Named("ratelimit"),
		bucket:  p.Bucket,
		policy:  p.Policy,
		metrics: p.Metrics,
	}
}

func (l *RequestLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *RequestLimiter) AllowRegister(ctx context.Context, clientKey string) (*RateLimitResult, error) {
	policy := l.currentPolicy()
	return l.allow(ctx, EndpointRegister, fmt.Sprintf(keyRegister, normalizeKey(clientKey)), policy.RegisterRate, policy.RegisterBurst)
}

func (l *RequestLimiter) AllowPublic(ctx context.Context, clientKey string) (*RateLimitResult, error) {
	policy := l.currentPolicy()
	return l.allow(ctx, EndpointPublic, fmt.Sprintf(keyPublic, normalizeKey(clientKey)), policy.PublicRate, policy.PublicBurst)
}

func (l *RequestLimiter) allow(ctx context.Context, endpoint, key string, rate float64, burst int) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	result, err := l.bucket.Allow(ctx, key, rate, burst)
	if err != nil {
		l.metrics.RecordRateLimitDenied(ctx, endpoint, "error")
		return result, err
	}
	if result.Allowed {
		l.metrics.RecordRateLimitAllowed(ctx, endpoint)
	} else {
		l.metrics.RecordRateLimitDenied(ctx, endpoint, "exhausted")
	}
	return result, nil
}

func (l *RequestLimiter) currentPolicy() config.InvitePolicy {
	if l == nil {
		return config.DefaultInvitePolicy()
	}
	return l.policy.Get()
}

func normalizeKey(clientKey string) string {
	clientKey = strings.TrimSpace(clientKey)
	if clientKey == "" {
		return "unknown"
	}
	return clientKey
}
