package middleware

import (
	"net"
	"net/http"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/thegovlab/reboot-chat/backend/internal/metrics"
	"github.com/thegovlab/reboot-chat/backend/pkg/utils"
)

// maxTrackedClients bounds the limiter pool; the least recently seen client
// is evicted first and starts over with a full bucket.
const maxTrackedClients = 10000

type limiterPool struct {
	mu    sync.Mutex
	m     *lru.Cache[string, *rate.Limiter]
	rps   float64
	burst int
}

func newLimiterPool(size int, rps float64, burst int) *limiterPool {
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[string, *rate.Limiter](max(size, 1))
	return &limiterPool{m: cache, rps: rps, burst: burst}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.m.Get(key); ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m.Add(key, l)
	return l
}

func (p *limiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}

// RateLimit limits each client IP to rps requests per second with the given
// burst. Rejected requests get 429. rps <= 0 disables limiting. Place it
// after chi's RealIP so RemoteAddr reflects the forwarded client.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst <= 0 {
		burst = 1
	}
	pool := newLimiterPool(maxTrackedClients, rps, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodOptions && !pool.Allow(clientKey(r)) {
				metrics.RateLimited.Inc()
				w.Header().Set("Retry-After", "1")
				utils.RespondError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
