package lim

import (
	"sync"
	"time"

	"codebin/metrics"
	"codebin/pkg/domain"
	"codebin/svc/util"

	"golang.org/x/time/rate"
)

const (
	DefaultLimit   = 60
	window         = time.Minute
	sweepInterval  = time.Minute
	defaultMaxKeys = 100000
)

// Limiter is a fixed-window admission controller. Each client gets a counter per
// wall-clock minute; a request is refused once its post-increment count exceeds the
// limit. Bursts straddling a window boundary can reach twice the limit.
//
// Counters live in this process only. Several instances each enforce their own limit.
type Limiter struct {
	mu      sync.Mutex
	hits    map[windowKey]int
	limit   int
	maxKeys int
	global  *rate.Limiter
	now     func() time.Time
	quit    chan struct{}
	stop    sync.Once
}

type windowKey struct {
	client string
	start  int64
}

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

type Option func(*Limiter)

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithGlobalRate adds a process-wide token bucket checked after the per-client
// window. rps <= 0 disables it.
func WithGlobalRate(rps float64) Option {
	return func(l *Limiter) {
		if rps <= 0 {
			l.global = nil
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		l.global = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMaxKeys caps the number of counters held at once. When the cap is reached
// and sweeping stale windows frees nothing, new clients are refused.
func WithMaxKeys(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.maxKeys = n
		}
	}
}

func New(limit int, opts ...Option) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	l := &Limiter{
		hits:    make(map[windowKey]int),
		limit:   limit,
		maxKeys: defaultMaxKeys,
		now:     time.Now,
		quit:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	go l.cleanupLoop()
	return l
}

func (l *Limiter) Limit() int { return l.limit }

// Admit counts one request for client in the current window. It returns
// domain.ErrRateLimitExceeded when the request must be refused.
func (l *Limiter) Admit(client string) (Result, error) {
	now := l.now()
	start := now.Truncate(window)
	res := Result{Limit: l.limit, Reset: start.Add(window)}
	key := windowKey{client: client, start: start.UnixNano()}

	l.mu.Lock()
	count, tracked := l.hits[key]
	if !tracked && len(l.hits) >= l.maxKeys {
		l.sweepLocked(start)
		if len(l.hits) >= l.maxKeys {
			size := len(l.hits)
			l.mu.Unlock()
			util.Warn().
				Int("keys", size).
				Str("client", util.RedactIP(client)).
				Msg("rate limiter at capacity, rejecting request")
			metrics.RateLimitHits.WithLabelValues("capacity").Inc()
			return res, domain.ErrRateLimitExceeded
		}
	}
	count++
	l.hits[key] = count
	l.mu.Unlock()

	if count > l.limit {
		metrics.RateLimitHits.WithLabelValues("client").Inc()
		return res, domain.ErrRateLimitExceeded
	}
	if l.global != nil && !l.global.AllowN(now, 1) {
		metrics.RateLimitHits.WithLabelValues("global").Inc()
		return res, domain.ErrRateLimitExceeded
	}
	res.Allowed = true
	res.Remaining = l.limit - count
	return res, nil
}

// Sweep drops counters from windows that have already closed.
func (l *Limiter) Sweep() int {
	start := l.now().Truncate(window)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sweepLocked(start)
}

func (l *Limiter) sweepLocked(current time.Time) int {
	cutoff := current.UnixNano()
	evicted := 0
	for k := range l.hits {
		if k.start < cutoff {
			delete(l.hits, k)
			evicted++
		}
	}
	metrics.RateLimitKeys.Set(float64(len(l.hits)))
	return evicted
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if evicted := l.Sweep(); evicted > 0 {
				util.Debug().Int("evicted", evicted).Int("remaining", l.Len()).Msg("rate limiter cleanup")
			}
		case <-l.quit:
			return
		}
	}
}

func (l *Limiter) Stop() {
	l.stop.Do(func() { close(l.quit) })
}
