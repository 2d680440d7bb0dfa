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

package provider

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-zookeeper/zk"
)

// fakeZK serves a znode that can be deleted and recreated, and hands out
// one-shot watch channels the way a real ensemble does.
type fakeZK struct {
	mu      sync.Mutex
	exists  bool
	data    []byte
	watches []chan zk.Event
}

func (f *fakeZK) Get(string) ([]byte, *zk.Stat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.exists {
		return nil, nil, zk.ErrNoNode
	}
	return f.data, &zk.Stat{}, nil
}

func (f *fakeZK) GetW(string) ([]byte, *zk.Stat, <-chan zk.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.exists {
		return nil, nil, nil, zk.ErrNoNode
	}
	return f.data, &zk.Stat{}, f.watch(), nil
}

func (f *fakeZK) ExistsW(string) (bool, *zk.Stat, <-chan zk.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exists, &zk.Stat{}, f.watch(), nil
}

func (f *fakeZK) Close() {}

func (f *fakeZK) watch() chan zk.Event {
	w := make(chan zk.Event, 1)
	f.watches = append(f.watches, w)
	return w
}

// fire sets the node state and delivers ev to every pending watch.
func (f *fakeZK) fire(exists bool, data string, ev zk.EventType) {
	f.mu.Lock()
	f.exists = exists
	f.data = []byte(data)
	watches := f.watches
	f.watches = nil
	f.mu.Unlock()
	for _, w := range watches {
		w <- zk.Event{Type: ev}
	}
}

// waitArmed blocks until the watch goroutine holds a fresh watch.
func (f *fakeZK) waitArmed(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		n := len(f.watches)
		f.mu.Unlock()
		if n > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("watch was not re-armed")
}

func expectSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case _, ok := <-ch:
		if !ok {
			t.Fatal("watch channel closed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected a change notification")
	}
}

func TestZookeeperProvider_WatchSurvivesNodeDeletion(t *testing.T) {
	conn := &fakeZK{exists: true, data: []byte("llm:\n  model: a\n")}
	p := &ZookeeperProvider{conn: conn, path: "/scout/config"}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := p.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	conn.waitArmed(t)
	conn.fire(false, "", zk.EventNodeDeleted)

	// The goroutine falls back to an exists watch instead of exiting.
	conn.waitArmed(t)
	select {
	case _, ok := <-ch:
		if !ok {
			t.Fatal("watch channel closed after node deletion")
		}
		t.Fatal("deletion must not signal a reload")
	default:
	}

	conn.fire(true, "llm:\n  model: b\n", zk.EventNodeCreated)
	expectSignal(t, ch)

	data, err := p.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(data) != "llm:\n  model: b\n" {
		t.Errorf("Load() = %q", data)
	}

	conn.waitArmed(t)
	conn.fire(true, "llm:\n  model: c\n", zk.EventNodeDataChanged)
	expectSignal(t, ch)

	cancel()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("watch channel not closed after cancel")
		}
	}
}

func TestZookeeperProvider_RecreatedBeforeArm(t *testing.T) {
	conn := &racyZK{}
	p := &ZookeeperProvider{conn: conn, path: "/scout/config"}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := p.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	expectSignal(t, ch)
}

// racyZK reports the node missing on GetW and present on ExistsW, as when
// the node is recreated between the two calls.
type racyZK struct {
	fakeZK
}

func (r *racyZK) GetW(string) ([]byte, *zk.Stat, <-chan zk.Event, error) {
	return nil, nil, nil, zk.ErrNoNode
}

func (r *racyZK) ExistsW(string) (bool, *zk.Stat, <-chan zk.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return true, &zk.Stat{}, r.watch(), nil
}
