// ratelimit.go — ограничение частоты запросов с одного адреса (SS_RATE_LIMIT).
// Token bucket (golang.org/x/time/rate) на каждый адрес; реестр ограничителей —
// expirable LRU, неактивные адреса вытесняются.
package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	apierrors "github.com/bigkaa/simple-storage/internal/api/errors"
)

const (
	// limiterCacheSize — максимальное количество отслеживаемых адресов.
	limiterCacheSize = 10000
	// limiterIdleTTL — время жизни ограничителя неактивного адреса.
	limiterIdleTTL = 10 * time.Minute
)

// RateLimiter — ограничитель частоты запросов по адресу клиента.
type RateLimiter struct {
	limit      rate.Limit
	burst      int
	retryAfter int
	limiters   *expirable.LRU[string, *rate.Limiter]
	logger     *slog.Logger
}

// NewRateLimiter создаёт ограничитель на perMinute запросов в минуту.
// Допускается всплеск до perMinute запросов.
func NewRateLimiter(perMinute int, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		limit:      rate.Every(time.Minute / time.Duration(perMinute)),
		burst:      perMinute,
		retryAfter: max(1, 60/perMinute),
		limiters:   expirable.NewLRU[string, *rate.Limiter](limiterCacheSize, nil, limiterIdleTTL),
		logger:     logger.With(slog.String("component", "ratelimit")),
	}
}

// Middleware возвращает HTTP middleware ограничения частоты.
// При превышении — 429 с заголовком Retry-After.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := clientAddr(r)
			if !rl.limiter(addr).Allow() {
				rl.logger.Warn("Превышен лимит запросов",
					slog.String("remote_addr", addr),
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter))
				apierrors.TooManyRequests(w, "Превышен лимит запросов")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) limiter(addr string) *rate.Limiter {
	if l, ok := rl.limiters.Get(addr); ok {
		return l
	}
	l := rate.NewLimiter(rl.limit, rl.burst)
	rl.limiters.Add(addr, l)
	return l
}

// clientAddr возвращает IP клиента без порта.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
