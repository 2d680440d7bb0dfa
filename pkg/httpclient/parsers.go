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

package httpclient

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

func parseRetryAfter(headers http.Header) time.Duration {
	if v := headers.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return time.Duration(seconds) * time.Second
		}
		if t, err := http.ParseTime(v); err == nil {
			return time.Until(t)
		}
	}
	return 0
}

// ParseOpenAIHeaders reads Retry-After and the x-ratelimit-* family.
func ParseOpenAIHeaders(headers http.Header) RateLimitInfo {
	info := RateLimitInfo{RetryAfter: parseRetryAfter(headers)}

	for _, h := range []string{"x-ratelimit-reset-requests", "x-ratelimit-reset-tokens"} {
		v := headers.Get(h)
		if v == "" {
			continue
		}
		// OpenAI reports resets as durations such as "6m0s" or "20ms".
		if d, err := time.ParseDuration(v); err == nil {
			info.ResetTime = time.Now().Add(d).Unix()
			break
		}
	}

	info.RequestsRemaining, _ = strconv.Atoi(headers.Get("x-ratelimit-remaining-requests"))
	info.TokensRemaining, _ = strconv.Atoi(headers.Get("x-ratelimit-remaining-tokens"))
	return info
}

// ParseRetryAfterHeader reads only Retry-After; Gemini, Ollama and Tavily
// expose nothing richer.
func ParseRetryAfterHeader(headers http.Header) RateLimitInfo {
	return RateLimitInfo{RetryAfter: parseRetryAfter(headers)}
}

// ParseBraveHeaders reads Brave's X-RateLimit-Remaining and X-RateLimit-Reset.
// Both carry comma separated per-window values, shortest window first.
func ParseBraveHeaders(headers http.Header) RateLimitInfo {
	info := RateLimitInfo{RetryAfter: parseRetryAfter(headers)}

	if v := firstField(headers.Get("X-RateLimit-Remaining")); v != "" {
		info.RequestsRemaining, _ = strconv.Atoi(v)
	}
	if v := firstField(headers.Get("X-RateLimit-Reset")); v != "" && info.RetryAfter == 0 {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			info.ResetTime = time.Now().Add(time.Duration(seconds) * time.Second).Unix()
		}
	}
	return info
}

func firstField(v string) string {
	head, _, _ := strings.Cut(v, ",")
	return strings.TrimSpace(head)
}
