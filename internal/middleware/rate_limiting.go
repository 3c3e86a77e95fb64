package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/2beens/rolegate/internal/telemetry/metrics"
	"github.com/2beens/rolegate/pkg"

	"github.com/go-redis/redis_rate/v9"
	log "github.com/sirupsen/logrus"
)

type RequestRateLimiter interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}

// RateLimitPerIP limits requests per client IP under the given limiter name.
// Only the methods listed are limited; no methods means all of them.
func RateLimitPerIP(
	rateLimiter RequestRateLimiter,
	limiterName string,
	allowedPerMin int,
	metricsManager *metrics.Manager,
	methods ...string,
) func(next http.Handler) http.Handler {
	limitedMethods := make(map[string]bool, len(methods))
	for _, m := range methods {
		limitedMethods[m] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(limitedMethods) > 0 && !limitedMethods[r.Method] {
				next.ServeHTTP(w, r)
				return
			}

			ip, err := pkg.ReadUserIP(r)
			if err != nil {
				log.Debugf("rate limit, read user ip: %s", err)
				ip = "unknown"
			}

			res, err := rateLimiter.Allow(
				r.Context(),
				limiterName+"||"+ip,
				redis_rate.PerMinute(allowedPerMin),
			)
			if err != nil {
				log.Errorf("rate limit [%s]: %s", limiterName, err)
				http.Error(w, "rate limit internal error", http.StatusInternalServerError)
				return
			}

			if res.Allowed > 0 {
				next.ServeHTTP(w, r)
				return
			}

			if metricsManager != nil {
				metricsManager.CounterRateLimitedRequests.Inc()
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			http.Error(
				w,
				fmt.Sprintf("retry after %.0f seconds", math.Ceil(res.RetryAfter.Seconds())),
				http.StatusTooManyRequests,
			)
		})
	}
}
