package mw

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/MrSnakeDoc/noor/internal/httpserver/respond"
	"github.com/MrSnakeDoc/noor/internal/utils"
)

type RateLimitConfig struct {
	Burst             int
	RefillPerIPPerMin int
	MaxEntries        int // clients tracked before idle ones are swept early
	SweepInterval     time.Duration
	IdleTTL           time.Duration
	TrustProxy        bool // resolve IP from proxy headers

	// Cost returns how many tokens a request takes. Nil means one.
	Cost func(*http.Request) int
	Now  func() time.Time
}

// tokens is one client's bucket. Guarded by limiter.mu.
type tokens struct {
	level    float64
	refilled time.Time
}

type limiter struct {
	cfg      RateLimitConfig
	perSec   float64
	capacity float64

	mu        sync.Mutex
	clients   map[string]*tokens
	lastSweep time.Time
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 15 * time.Minute
	}
	cfg.Burst = max(cfg.Burst, 1)
	cfg.RefillPerIPPerMin = max(cfg.RefillPerIPPerMin, 1)
	if cfg.Cost == nil {
		cfg.Cost = func(*http.Request) int { return 1 }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &limiter{
		cfg:       cfg,
		perSec:    float64(cfg.RefillPerIPPerMin) / 60,
		capacity:  float64(cfg.Burst),
		clients:   make(map[string]*tokens),
		lastSweep: cfg.Now(),
	}
}

// take removes cost tokens from the client's bucket. When the bucket is
// short it reports how many seconds until it holds enough.
func (l *limiter) take(client string, cost int, now time.Time) (ok bool, left int, wait int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.cfg.SweepInterval ||
		(l.cfg.MaxEntries > 0 && len(l.clients) >= l.cfg.MaxEntries) {
		l.sweep(now)
	}

	b, found := l.clients[client]
	if !found {
		b = &tokens{level: l.capacity, refilled: now}
		l.clients[client] = b
	}
	if dt := now.Sub(b.refilled).Seconds(); dt > 0 {
		b.level = math.Min(l.capacity, b.level+dt*l.perSec)
		b.refilled = now
	}

	// a request costlier than the whole bucket would never pass
	need := math.Min(float64(max(cost, 1)), l.capacity)
	if b.level >= need {
		b.level -= need
		return true, int(b.level), 0
	}
	return false, int(b.level), max(1, int(math.Ceil((need-b.level)/l.perSec)))
}

// sweep forgets clients whose bucket has been full long enough.
func (l *limiter) sweep(now time.Time) {
	for client, b := range l.clients {
		if now.Sub(b.refilled) > l.cfg.IdleTTL {
			delete(l.clients, client)
		}
	}
	l.lastSweep = now
}

// RateLimit is a per-client token bucket: Burst tokens at once, refilled
// at RefillPerIPPerMin. Rejected requests get 429 with Retry-After.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	l := newLimiter(cfg)
	limit := strconv.Itoa(l.cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := utils.ClientIP(r, l.cfg.TrustProxy)
			ok, left, wait := l.take(client, l.cfg.Cost(r), l.cfg.Now())

			// headers must be set before the handler writes its status
			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(left))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(wait))
				respond.Error(w, http.StatusTooManyRequests, "rate limit exceeded, retry later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
