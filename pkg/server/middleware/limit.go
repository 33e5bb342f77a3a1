/* Copyright 2025 Leafsync Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package middleware

import (
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/fasalvaidya/leafsync/pkg/server/log"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per remote address
type RateLimiter struct {
	visitors map[string]*visitor
	mu       sync.RWMutex
	limit    rate.Limit
	burst    int
}

// NewRateLimiter creates a rate limiter allowing the given number of
// requests per second with the given burst size.
func NewRateLimiter(limit rate.Limit, burst int) *RateLimiter {
	rl := &RateLimiter{
		visitors: map[string]*visitor{},
		limit:    limit,
		burst:    burst,
	}

	go rl.cleanupVisitors()

	return rl
}

func (rl *RateLimiter) addVisitor(ip string) *rate.Limiter {
	limiter := rate.NewLimiter(rl.limit, rl.burst)

	rl.mu.Lock()
	rl.visitors[ip] = &visitor{limiter: limiter, lastSeen: time.Now()}
	rl.mu.Unlock()

	return limiter
}

func (rl *RateLimiter) getVisitor(ip string) *rate.Limiter {
	rl.mu.RLock()
	v, ok := rl.visitors[ip]
	rl.mu.RUnlock()

	if !ok {
		return rl.addVisitor(ip)
	}

	rl.mu.Lock()
	v.lastSeen = time.Now()
	rl.mu.Unlock()

	return v.limiter
}

// cleanupVisitors evicts visitors that have been idle for over 3 minutes
func (rl *RateLimiter) cleanupVisitors() {
	for {
		time.Sleep(time.Minute)

		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if time.Since(v.lastSeen) > 3*time.Minute {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

func lookupIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return ip
}

// Limit wraps the given handler with rate limiting
func (rl *RateLimiter) Limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := lookupIP(r)

		if !rl.getVisitor(ip).Allow() {
			log.WithFields(log.Fields{"ip": ip}).Warn("rate limit exceeded")
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	}
}

// ApplyLimit conditionally applies rate limiting. Limiting is disabled in
// the test environment.
func ApplyLimit(rl *RateLimiter, next http.HandlerFunc, rateLimit bool) http.HandlerFunc {
	if rateLimit && os.Getenv("APP_ENV") != "TEST" {
		return rl.Limit(next)
	}

	return next
}
