package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/chromecollective/marketplace-backend/api/responses"
	pkgerrors "github.com/chromecollective/marketplace-backend/pkg/errors"
	"github.com/chromecollective/marketplace-backend/pkg/logger"
	"github.com/chromecollective/marketplace-backend/pkg/metrics"
	"github.com/chromecollective/marketplace-backend/pkg/ratelimit"
)

// RateLimitPolicy names a throttled surface and the message callers see when blocked.
type RateLimitPolicy struct {
	Name    string
	Window  time.Duration
	Message string
}

func (p RateLimitPolicy) normalizedName() string {
	name := strings.ToLower(strings.TrimSpace(p.Name))
	if name == "" {
		return "default"
	}
	return name
}

// RateLimit admits requests through limiter, keyed by user id when authenticated and by
// client IP otherwise. Limiter failures let the request through.
func RateLimit(policy RateLimitPolicy, limiter ratelimit.Limiter, m *metrics.Marketplace, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := callerKey(r)

			decision, err := limiter.Allow(ctx, key)
			if err != nil {
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{
						"policy": policy.normalizedName(),
						"error":  err.Error(),
					}), "rate_limit.unavailable")
				}
				next.ServeHTTP(w, r)
				return
			}
			if !decision.Allowed {
				m.IncRateLimited(policy.normalizedName())
				respondRateLimited(ctx, logg, w, policy, key, decision)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
			next.ServeHTTP(w, r)
		})
	}
}

func callerKey(r *http.Request) string {
	if id := UserIDFromContext(r.Context()); id != "" {
		return "user:" + id
	}
	return "ip:" + clientIP(r)
}

func respondRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy RateLimitPolicy, key string, decision ratelimit.Decision) {
	retryAfter := decision.RetryAfter
	if retryAfter <= 0 {
		retryAfter = policy.Window
	}
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))

	if logg != nil {
		logCtx := logg.WithFields(ctx, map[string]any{
			"policy":         policy.normalizedName(),
			"key":            key,
			"retry_after_s":  seconds,
			"window_seconds": int(policy.Window.Seconds()),
		})
		logg.Warn(logCtx, "rate_limit.blocked")
	}

	message := policy.Message
	if message == "" {
		message = "rate limit exceeded"
	}
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, message))
}

// clientIP reads only RemoteAddr. Forwarding headers are applied upstream by
// chi's RealIP, and only when the proxy is trusted.
func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
