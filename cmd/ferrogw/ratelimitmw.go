package main

import (
	"net/http"

	"github.com/ferro-labs/ai-gateway/auth"
	"github.com/ferro-labs/ai-gateway/internal/ratelimit"
)

// rateLimitMiddleware enforces the fixed-order bucket chain for every
// authenticated request, emitting the X-RateLimit-*/Retry-After headers on
// both allow and deny, and releasing the concurrency slot once the handler
// returns.
func rateLimitMiddleware(limiter *ratelimit.Limiter, routeKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			subjectKey := "anonymous"
			subject := ratelimit.Subject{}
			if ok {
				subjectKey = principal.UserID
				subject = ratelimit.Subject{
					IsAdmin: principal.Role == auth.RoleAdmin,
					KeyTier: principal.Tier,
					UserTier: string(principal.Role),
				}
			}

			decision, err := limiter.CheckRequest(r.Context(), subjectKey, routeKey, subject, 0)
			if err != nil {
				writeGatewayError(w, http.StatusInternalServerError, "internal", "rate limit check failed")
				return
			}
			for k, v := range decision.Headers() {
				w.Header().Set(k, v)
			}
			if !decision.Allowed {
				writeGatewayError(w, http.StatusTooManyRequests, "rate_limited", "request rate exceeded")
				return
			}
			// The unlimited (admin) tier returns early without acquiring a
			// concurrency slot, so only release when one was actually taken.
			if decision.Tier != ratelimit.TierAdmin {
				defer func() { _ = limiter.Release(r.Context(), subjectKey) }()
			}
			next.ServeHTTP(w, r)
		})
	}
}
