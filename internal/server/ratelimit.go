package server

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// visitorLimiter keeps one token bucket per client IP. The map never grows
// past maxVisitors: stale entries are pruned when a new IP needs a slot, and
// if every entry is still fresh the least-recently-seen one is evicted.
type visitorLimiter struct {
	mu          sync.Mutex
	visitors    map[string]*visitor
	limit       rate.Limit
	burst       int
	maxVisitors int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const (
	maxVisitors = 10_000
	visitorTTL  = 10 * time.Minute
)

func newVisitorLimiter(limit rate.Limit, burst int) *visitorLimiter {
	return &visitorLimiter{
		visitors:    make(map[string]*visitor),
		limit:       limit,
		burst:       burst,
		maxVisitors: maxVisitors,
	}
}

func (vl *visitorLimiter) allow(ip string) bool {
	vl.mu.Lock()
	defer vl.mu.Unlock()

	v, ok := vl.visitors[ip]
	if !ok {
		if len(vl.visitors) >= vl.maxVisitors {
			vl.evict()
		}
		v = &visitor{limiter: rate.NewLimiter(vl.limit, vl.burst)}
		vl.visitors[ip] = v
	}
	v.lastSeen = time.Now()

	return v.limiter.Allow()
}

// evict frees at least one slot: it drops every entry idle past visitorTTL,
// and when all entries are fresh it drops the least-recently-seen one.
func (vl *visitorLimiter) evict() {
	cutoff := time.Now().Add(-visitorTTL)
	var oldestIP string
	var oldest time.Time

	for ip, v := range vl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(vl.visitors, ip)
			continue
		}
		if oldestIP == "" || v.lastSeen.Before(oldest) {
			oldestIP = ip
			oldest = v.lastSeen
		}
	}

	if len(vl.visitors) >= vl.maxVisitors && oldestIP != "" {
		delete(vl.visitors, oldestIP)
	}
}

// RateLimitMiddleware applies a per-IP token bucket to the submission
// endpoint. It is an abuse guard in the same spirit as the payload ceilings,
// not a billing-grade quota.
func RateLimitMiddleware(limit rate.Limit, burst int) func(http.Handler) http.Handler {
	vl := newVisitorLimiter(limit, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			if !vl.allow(ip) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]any{
					"message": "Too many requests.",
					"success": false,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
