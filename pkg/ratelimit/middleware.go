// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
)

// IdentifierFunc extracts the rate limit identifier from a request.
type IdentifierFunc func(r *http.Request) string

// ClientIP identifies requests by the host part of RemoteAddr. Put chi's
// RealIP middleware in front when running behind a proxy.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware rejects requests over quota with 429. A nil limiter passes
// everything through. Store failures fail open.
func Middleware(limiter *Limiter, identify IdentifierFunc) func(http.Handler) http.Handler {
	if limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if identify == nil {
		identify = ClientIP
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := identify(r)
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}

			result, err := limiter.CheckAndRecord(r.Context(), id, 1)
			if err != nil {
				slog.Error("Rate limit check failed", "error", err, "identifier", id)
				next.ServeHTTP(w, r)
				return
			}

			setHeaders(w, result)
			if !result.Allowed {
				writeLimited(w, result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeLimited(w http.ResponseWriter, result *CheckResult) {
	retry := int64(result.RetryAfter.Seconds())
	if result.RetryAfter > 0 && retry == 0 {
		retry = 1
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":               result.Reason,
		"retry_after_seconds": retry,
	})
}

func setHeaders(w http.ResponseWriter, result *CheckResult) {
	u := result.Tightest()
	if u == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(u.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(u.Remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(u.WindowEnd.Unix(), 10))
}
