package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/blueshift-gg/solgov/api/metrics"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// Per-IP address lookups: 60 per minute with a burst of 10.
const (
	DefaultLookupRate    = rate.Limit(1)
	DefaultLookupBurst   = 10
	DefaultLookupIdleTTL = 5 * time.Minute
)

// LookupLimitResponse is the 429 body for a throttled lookup.
type LookupLimitResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

type LookupLimiterConfig struct {
	Rate  rate.Limit
	Burst int
	Clock clockwork.Clock

	// IdleTTL is how long a client's bucket survives without requests.
	IdleTTL time.Duration
}

func (cfg *LookupLimiterConfig) Validate() error {
	if cfg.Rate <= 0 {
		return errors.New("lookup rate must be positive")
	}
	if cfg.Burst < 1 {
		return errors.New("lookup burst must be at least 1")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultLookupIdleTTL
	}
	return nil
}

// LookupLimiter keeps one token bucket per client IP for the address lookup
// routes. Buckets idle longer than IdleTTL are dropped by the sweep loop.
type LookupLimiter struct {
	cfg LookupLimiterConfig

	mu      sync.Mutex
	clients map[string]*lookupClient
}

type lookupClient struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

func NewLookupLimiter(cfg LookupLimiterConfig) (*LookupLimiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &LookupLimiter{cfg: cfg, clients: make(map[string]*lookupClient)}, nil
}

// Allow takes a token for ip. When none is available it reports how long
// until the next one without consuming it.
func (l *LookupLimiter) Allow(ip string) (bool, time.Duration) {
	now := l.cfg.Clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[ip]
	if !ok {
		c = &lookupClient{bucket: rate.NewLimiter(l.cfg.Rate, l.cfg.Burst)}
		l.clients[ip] = c
	}
	c.lastSeen = now

	r := c.bucket.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Minute
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Len reports how many clients currently hold a bucket.
func (l *LookupLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Start runs the idle sweep until ctx is done.
func (l *LookupLimiter) Start(ctx context.Context) {
	go func() {
		ticker := l.cfg.Clock.NewTicker(l.cfg.IdleTTL)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				l.sweep()
			}
		}
	}()
}

func (l *LookupLimiter) sweep() {
	cutoff := l.cfg.Clock.Now().Add(-l.cfg.IdleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, ip)
		}
	}
}

// LookupLimitMiddleware rejects lookups over the client's budget with a JSON 429.
func LookupLimitMiddleware(l *LookupLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, retryAfter := l.Allow(GetIPFromRequest(r))
			if allowed {
				next.ServeHTTP(w, r)
				return
			}
			metrics.RecordRateLimited(r)

			secs := max(int(retryAfter.Seconds()), 1)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(LookupLimitResponse{
				Error:      "rate_limit_exceeded",
				Message:    "Too many lookups. Please slow down.",
				RetryAfter: secs,
			})
		})
	}
}

// GetIPFromRequest returns the client IP, preferring the first X-Forwarded-For
// hop, then X-Real-IP, then the connection's remote address.
func GetIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
