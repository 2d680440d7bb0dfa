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
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clock is a manually advanced time source shared by limiter and store.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestLimiter(t *testing.T, rules ...Rule) (*Limiter, *MemoryStore, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	store.now = c.Now
	l, err := New(store, rules...)
	require.NoError(t, err)
	l.now = c.Now
	return l, store, c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name  string
		store Store
		rules []Rule
	}{
		{"nil store", nil, []Rule{{WindowMinute, 1}}},
		{"no rules", NewMemoryStore(), nil},
		{"unknown window", NewMemoryStore(), []Rule{{"fortnight", 1}}},
		{"zero limit", NewMemoryStore(), []Rule{{WindowSecond, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.store, tt.rules...)
			assert.Error(t, err)
		})
	}
}

func TestLimiter_CountLimit(t *testing.T) {
	l, _, c := newTestLimiter(t, Rule{WindowMinute, 3})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.CheckAndRecord(ctx, "a", 1)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i+1)
	}

	res, err := l.CheckAndRecord(ctx, "a", 1)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Minute, res.RetryAfter)
	assert.Contains(t, res.Reason, "3 per minute")

	other, err := l.CheckAndRecord(ctx, "b", 1)
	require.NoError(t, err)
	assert.True(t, other.Allowed, "identifiers are independent")

	c.Advance(time.Minute)
	res, err = l.CheckAndRecord(ctx, "a", 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "window rolled over")
	assert.Equal(t, int64(2), res.Usages[0].Remaining)
}

func TestLimiter_RejectedRequestsAreNotRecorded(t *testing.T) {
	l, _, _ := newTestLimiter(t, Rule{WindowSecond, 1}, Rule{WindowMinute, 10})
	ctx := context.Background()

	_, err := l.CheckAndRecord(ctx, "k", 1)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		res, err := l.CheckAndRecord(ctx, "k", 1)
		require.NoError(t, err)
		require.False(t, res.Allowed)
	}

	res, err := l.CheckAndRecord(ctx, "k", 0)
	require.NoError(t, err)
	require.Len(t, res.Usages, 2)
	assert.Equal(t, int64(1), res.Usages[1].Current)
	assert.Equal(t, WindowSecond, res.Tightest().Window)
}

func TestLimiter_Wait(t *testing.T) {
	store := NewMemoryStore()
	l, err := New(store, Rule{WindowSecond, 1})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, l.Wait(ctx, "key"))

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err = l.Wait(short, "key")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimitExceeded))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestLimiter_ResetAndSweep(t *testing.T) {
	l, store, c := newTestLimiter(t, Rule{WindowSecond, 1})
	ctx := context.Background()

	_, _ = l.CheckAndRecord(ctx, "a", 1)
	_, _ = l.CheckAndRecord(ctx, "b", 1)
	assert.Equal(t, 2, store.Size())

	require.NoError(t, l.Reset(ctx, "a"))
	assert.Equal(t, 1, store.Size())

	c.Advance(2 * time.Second)
	require.NoError(t, l.Sweep(ctx))
	assert.Equal(t, 0, store.Size())
}

func TestMiddleware(t *testing.T) {
	l, _, _ := newTestLimiter(t, Rule{WindowMinute, 1})
	handler := Middleware(l, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/ask", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := do()
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	second := do()
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), "limit of 1 per minute reached")
}

func TestMiddleware_NilLimiterPassesThrough(t *testing.T) {
	handler := Middleware(nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.9:1234"
	assert.Equal(t, "192.168.1.9", ClientIP(req))
	req.RemoteAddr = "unix"
	assert.Equal(t, "unix", ClientIP(req))
}
