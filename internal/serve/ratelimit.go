package serve

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"taeu.kr/filebox/internal/platform/web"
)

const limiterIdleTTL = 10 * time.Minute

// RateLimitConfig는 클라이언트 IP별 허용 속도입니다. RequestsPerSecond가 0이면 제한하지 않습니다.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter는 공개 경로를 IP 단위로 제한합니다
type IPRateLimiter struct {
	cfg     RateLimitConfig
	mu      sync.Mutex
	clients map[string]*clientLimiter
	now     func() time.Time
}

func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &IPRateLimiter{cfg: cfg, clients: make(map[string]*clientLimiter), now: time.Now}
}

func (l *IPRateLimiter) Allow(ip string) bool {
	if l == nil || l.cfg.RequestsPerSecond <= 0 {
		return true
	}

	l.mu.Lock()
	now := l.now()
	client, ok := l.clients[ip]
	if !ok {
		client = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.Burst)}
		l.clients[ip] = client
	}
	client.lastSeen = now
	l.evict(now)
	l.mu.Unlock()

	return client.limiter.AllowN(now, 1)
}

// evict는 오래 쓰이지 않은 리미터를 지웁니다. mu를 잡은 상태에서 호출합니다.
func (l *IPRateLimiter) evict(now time.Time) {
	for ip, client := range l.clients {
		if now.Sub(client.lastSeen) > limiterIdleTTL {
			delete(l.clients, ip)
		}
	}
}

func (l *IPRateLimiter) Middleware(next web.Handler) web.Handler {
	return func(w http.ResponseWriter, r *http.Request) *web.Error {
		if !l.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			return &web.Error{Code: http.StatusTooManyRequests, Message: "rate limit exceeded"}
		}
		return next(w, r)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
