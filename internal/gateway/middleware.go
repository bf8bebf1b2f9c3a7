package gateway

import (
	"log"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gclef-cmu/music-arena/internal/httputil"
)

func clientIP(r *http.Request) string {
	if xr := r.Header.Get("X-Real-IP"); xr != "" {
		return xr
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		return xf
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("req: %s %s ip=%s", r.Method, r.URL.Path, clientIP(r))
		next.ServeHTTP(w, r)
	})
}

type rateInfo struct {
	count   int
	resetAt time.Time
}

var (
	rateMu   sync.Mutex
	rateData = map[string]*rateInfo{}
)

// rateLimitMiddleware is a per-IP fixed-window limiter, the same
// mutex+map shape as api-gateway's own rateLimitMiddleware, collapsed to
// one global tier since the Gateway has a single public surface.
func rateLimitMiddleware(rps int) func(http.Handler) http.Handler {
	window := time.Second
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			now := time.Now()

			rateMu.Lock()
			ri, ok := rateData[ip]
			if !ok || now.After(ri.resetAt) {
				ri = &rateInfo{resetAt: now.Add(window)}
				rateData[ip] = ri
			}
			ri.count++
			count := ri.count
			reset := ri.resetAt
			rateMu.Unlock()

			if count > rps {
				w.Header().Set("Retry-After", strconv.Itoa(int(reset.Sub(now).Seconds())))
				httputil.WriteErrorStatus(w, http.StatusTooManyRequests, "too many requests", "RateLimited")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// flakyMiddleware injects a transient 500 with probability flakiness.
// Test-mode only, left at 0 in production config.
func flakyMiddleware(flakiness float64) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if flakiness > 0 && rand.Float64() < flakiness {
				httputil.WriteErrorStatus(w, http.StatusInternalServerError, "flaky error", "InternalError")
				return
			}
			next(w, r)
		}
	}
}
