// Package ratelimit provides per-client-IP token-bucket limiting for route
// groups with different traffic profiles.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const maxBuckets = 10000

// Limiter tracks one token bucket per client IP. Stale buckets are pruned
// inline on access, so no background goroutine is needed.
type Limiter struct {
	rate    rate.Limit
	burst   int
	idleTTL time.Duration
	trusted []*net.IPNet

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastPrune time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New builds a limiter allowing r requests per second with the given burst.
// Buckets idle longer than idleTTL are dropped. trustedProxies lists CIDRs
// (or bare IPs) whose forwarding headers are believed.
func New(r rate.Limit, burst int, idleTTL time.Duration, trustedProxies []string) *Limiter {
	l := &Limiter{
		rate:      r,
		burst:     burst,
		idleTTL:   idleTTL,
		buckets:   make(map[string]*bucket),
		lastPrune: time.Now(),
	}
	for _, entry := range trustedProxies {
		if ipnet := parseCIDR(entry); ipnet != nil {
			l.trusted = append(l.trusted, ipnet)
		}
	}
	return l
}

// Middleware rejects over-limit requests with a JSON 429.
func (l *Limiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(l.clientIP(r)) {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"success":false,"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (l *Limiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastPrune) > l.idleTTL {
		l.pruneLocked(now)
	}

	b, ok := l.buckets[ip]
	if !ok {
		if len(l.buckets) >= maxBuckets {
			l.pruneLocked(now)
		}
		b = &bucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now
	return b.limiter.Allow()
}

// pruneLocked drops idle buckets; when the table is still full afterwards it
// drops the least recently seen entry so growth stays bounded.
func (l *Limiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-l.idleTTL)
	for ip, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, ip)
		}
	}
	l.lastPrune = now

	if len(l.buckets) < maxBuckets {
		return
	}
	var oldestIP string
	var oldest time.Time
	for ip, b := range l.buckets {
		if oldestIP == "" || b.lastSeen.Before(oldest) {
			oldestIP = ip
			oldest = b.lastSeen
		}
	}
	if oldestIP != "" {
		delete(l.buckets, oldestIP)
	}
}

// clientIP resolves the address rate limiting keys on. Forwarding headers are
// honored only when the direct peer is a trusted proxy.
func (l *Limiter) clientIP(r *http.Request) string {
	remote := parseAddr(r.RemoteAddr)
	if remote == nil {
		return r.RemoteAddr
	}

	if len(l.trusted) > 0 && !l.isTrusted(remote) {
		return remote.String()
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(xri); ip != nil {
			return ip.String()
		}
	}
	return remote.String()
}

func (l *Limiter) isTrusted(ip net.IP) bool {
	for _, ipnet := range l.trusted {
		if ipnet.Contains(ip) {
			return true
		}
	}
	return false
}

func parseCIDR(entry string) *net.IPNet {
	if _, ipnet, err := net.ParseCIDR(entry); err == nil {
		return ipnet
	}
	ip := net.ParseIP(entry)
	if ip == nil {
		return nil
	}
	suffix := "/32"
	if ip.To4() == nil {
		suffix = "/128"
	}
	_, ipnet, _ := net.ParseCIDR(entry + suffix)
	return ipnet
}

func parseAddr(addr string) net.IP {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return net.ParseIP(host)
	}
	return net.ParseIP(addr)
}
