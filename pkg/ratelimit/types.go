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

// Package ratelimit enforces fixed-window request quotas per identifier.
//
// A Limiter evaluates every Rule against a Store atomically: a request is
// admitted only when it fits into all windows, and only admitted requests
// are recorded. The same limiter gates outbound web search calls per API
// key and inbound /ask requests per client.
package ratelimit

import (
	"fmt"
	"time"
)

// TimeWindow is the length of a fixed quota window.
type TimeWindow string

const (
	WindowSecond TimeWindow = "second"
	WindowMinute TimeWindow = "minute"
	WindowHour   TimeWindow = "hour"
	WindowDay    TimeWindow = "day"
)

// Duration returns the duration for the time window.
func (w TimeWindow) Duration() time.Duration {
	switch w {
	case WindowSecond:
		return time.Second
	case WindowMinute:
		return time.Minute
	case WindowHour:
		return time.Hour
	case WindowDay:
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

// Valid reports whether w is a known window.
func (w TimeWindow) Valid() bool {
	switch w {
	case WindowSecond, WindowMinute, WindowHour, WindowDay:
		return true
	}
	return false
}

// Rule admits at most Limit requests per Window.
type Rule struct {
	Window TimeWindow
	Limit  int64
}

func (r Rule) validate() error {
	if !r.Window.Valid() {
		return fmt.Errorf("invalid window %q (valid: second, minute, hour, day)", r.Window)
	}
	if r.Limit < 1 {
		return fmt.Errorf("limit for %s window must be at least 1", r.Window)
	}
	return nil
}

// Usage is the state of one rule for one identifier.
type Usage struct {
	Window    TimeWindow `json:"window"`
	Current   int64      `json:"current"`
	Limit     int64      `json:"limit"`
	Remaining int64      `json:"remaining"`
	WindowEnd time.Time  `json:"window_end"`
}

// CheckResult is the outcome of CheckAndRecord.
type CheckResult struct {
	Allowed    bool          `json:"allowed"`
	Reason     string        `json:"reason,omitempty"`
	Usages     []Usage       `json:"usages"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// Tightest returns the usage with the fewest remaining requests.
func (r *CheckResult) Tightest() *Usage {
	var tightest *Usage
	for i := range r.Usages {
		u := &r.Usages[i]
		if tightest == nil || u.Remaining < tightest.Remaining {
			tightest = u
		}
	}
	return tightest
}
