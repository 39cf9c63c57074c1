package server

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/metalid/internal/observability/logger"
	"github.com/smallbiznis/metalid/internal/ratelimit"
	"go.uber.org/zap"
)

type allowFunc func(ctx context.Context, clientKey string) (*ratelimit.RateLimitResult, error)

// RegisterRateLimit throttles invite-token probing per client address.
func (s *Server) RegisterRateLimit() gin.HandlerFunc {
	return s.rateLimit(ratelimit.EndpointRegister, func(ctx context.Context, key string) (*ratelimit.RateLimitResult, error) {
		return s.limiter.AllowRegister(ctx, key)
	})
}

// PublicRateLimit throttles public profile lookups per client address.
func (s *Server) PublicRateLimit() gin.HandlerFunc {
	return s.rateLimit(ratelimit.EndpointPublic, func(ctx context.Context, key string) (*ratelimit.RateLimitResult, error) {
		return s.limiter.AllowPublic(ctx, key)
	})
}

func (s *Server) rateLimit(endpoint string, allow allowFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		result, err := allow(ctx, c.ClientIP())
		if err != nil {
			// fail open
			logger.FromContext(ctx).Warn("rate limit check failed", zap.String("endpoint", endpoint), zap.Error(err))
			c.Next()
			return
		}

		if result.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		}
		if !result.Allowed {
			retry := int(result.RetryAfter.Seconds())
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
