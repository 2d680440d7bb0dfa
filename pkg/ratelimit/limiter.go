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
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Limiter applies a set of rules to identifiers.
type Limiter struct {
	rules []Rule
	store Store
	now   func() time.Time

	mu sync.Mutex
}

// New creates a limiter. At least one rule is required.
func New(store Store, rules ...Rule) (*Limiter, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("at least one rule is required")
	}
	for _, r := range rules {
		if err := r.validate(); err != nil {
			return nil, err
		}
	}
	return &Limiter{
		rules: append([]Rule(nil), rules...),
		store: store,
		now:   time.Now,
	}, nil
}

// CheckAndRecord admits amount requests for identifier if every rule has
// room, and records them. Rejected requests are not recorded.
func (l *Limiter) CheckAndRecord(ctx context.Context, identifier string, amount int64) (*CheckResult, error) {
	if identifier == "" {
		return nil, fmt.Errorf("identifier cannot be empty")
	}
	if amount < 1 {
		amount = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	result := &CheckResult{Allowed: true, Usages: make([]Usage, 0, len(l.rules))}

	for _, rule := range l.rules {
		current, windowEnd, err := l.store.GetUsage(ctx, identifier, rule.Window)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s usage: %w", rule.Window, err)
		}
		if current+amount > rule.Limit {
			result.Allowed = false
			if result.Reason == "" {
				result.Reason = fmt.Sprintf("limit of %d per %s reached", rule.Limit, rule.Window)
			}
			if wait := windowEnd.Sub(now); wait > result.RetryAfter {
				result.RetryAfter = wait
			}
		}
		result.Usages = append(result.Usages, usage(rule, current, windowEnd))
	}

	if !result.Allowed {
		return result, nil
	}

	for i, rule := range l.rules {
		current, windowEnd, err := l.store.IncrementUsage(ctx, identifier, rule.Window, amount)
		if err != nil {
			return nil, fmt.Errorf("failed to record %s usage: %w", rule.Window, err)
		}
		result.Usages[i] = usage(rule, current, windowEnd)
	}
	return result, nil
}

// Wait blocks until identifier is admitted or ctx is done.
func (l *Limiter) Wait(ctx context.Context, identifier string) error {
	for {
		result, err := l.CheckAndRecord(ctx, identifier, 1)
		if err != nil {
			return err
		}
		if result.Allowed {
			return nil
		}

		timer := time.NewTimer(max(result.RetryAfter, time.Millisecond))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(&Error{Identifier: identifier, Result: result}, ctx.Err())
		case <-timer.C:
		}
	}
}

// Reset clears every window of identifier.
func (l *Limiter) Reset(ctx context.Context, identifier string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.DeleteUsage(ctx, identifier)
}

// Sweep drops expired records.
func (l *Limiter) Sweep(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.DeleteExpired(ctx, l.now())
}

func usage(rule Rule, current int64, windowEnd time.Time) Usage {
	return Usage{
		Window:    rule.Window,
		Current:   current,
		Limit:     rule.Limit,
		Remaining: max(rule.Limit-current, 0),
		WindowEnd: windowEnd,
	}
}
