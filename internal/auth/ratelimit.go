// internal/auth/ratelimit.go
package auth

import (
	"sync"
	"time"
)

// clientWindow tracks request timestamps for a single client
type clientWindow struct {
	requests []time.Time
	mutex    sync.Mutex
	lastSeen time.Time
}

// RateLimiter provides in-memory rate limiting with a sliding one-minute window
type RateLimiter struct {
	clients map[string]*clientWindow
	mutex   sync.RWMutex
}

var (
	globalRateLimiter *RateLimiter
	once              sync.Once
)

// NewRateLimiter creates a new rate limiter
func NewRateLimiter() *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*clientWindow),
	}

	go rl.cleanupLoop()

	return rl
}

// Allow checks if a request should be allowed based on rate limit
func (rl *RateLimiter) Allow(clientID string, limitPerMinute int) bool {
	rl.mutex.Lock()
	client, exists := rl.clients[clientID]
	if !exists {
		client = &clientWindow{lastSeen: time.Now()}
		rl.clients[clientID] = client
	}
	rl.mutex.Unlock()

	return client.allow(limitPerMinute)
}

func (cw *clientWindow) allow(limitPerMinute int) bool {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()

	now := time.Now()
	windowStart := now.Add(-time.Minute)

	valid := cw.requests[:0]
	for _, req := range cw.requests {
		if req.After(windowStart) {
			valid = append(valid, req)
		}
	}
	cw.requests = valid

	if len(cw.requests) >= limitPerMinute {
		return false
	}

	cw.requests = append(cw.requests, now)
	cw.lastSeen = now

	return true
}

// cleanup removes clients with no requests in the last 5 minutes
func (rl *RateLimiter) cleanup() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	cutoff := time.Now().Add(-5 * time.Minute)

	for clientID, client := range rl.clients {
		client.mutex.Lock()
		if client.lastSeen.Before(cutoff) {
			delete(rl.clients, clientID)
		}
		client.mutex.Unlock()
	}
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.cleanup()
	}
}

// GetStats returns rate limiting statistics
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.mutex.RLock()
	defer rl.mutex.RUnlock()

	clientStats := make([]map[string]interface{}, 0, len(rl.clients))
	for clientID, client := range rl.clients {
		client.mutex.Lock()
		clientStats = append(clientStats, map[string]interface{}{
			"client_id":     clientID,
			"request_count": len(client.requests),
			"last_request":  client.lastSeen,
		})
		client.mutex.Unlock()
	}

	return map[string]interface{}{
		"total_clients": len(rl.clients),
		"clients":       clientStats,
	}
}

// GetGlobalRateLimiter returns the singleton rate limiter instance
func GetGlobalRateLimiter() *RateLimiter {
	once.Do(func() {
		globalRateLimiter = NewRateLimiter()
	})
	return globalRateLimiter
}

// CheckRateLimit checks if a request should be allowed (convenience function)
func CheckRateLimit(clientID string, limitPerMinute int) bool {
	return GetGlobalRateLimiter().Allow(clientID, limitPerMinute)
}

// GetRateLimitStats returns rate limiting statistics (convenience function)
func GetRateLimitStats() map[string]interface{} {
	return GetGlobalRateLimiter().GetStats()
}
