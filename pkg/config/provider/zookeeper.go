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
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-zookeeper/zk"
)

// zkConn is the subset of *zk.Conn the provider uses.
type zkConn interface {
	Get(path string) ([]byte, *zk.Stat, error)
	GetW(path string) ([]byte, *zk.Stat, <-chan zk.Event, error)
	ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error)
	Close()
}

// ZookeeperProvider reads config from a znode.
type ZookeeperProvider struct {
	conn zkConn
	path string
}

type zkLogger struct{}

func (zkLogger) Printf(format string, args ...any) {
	slog.Debug(fmt.Sprintf(format, args...), "component", "zookeeper")
}

// NewZookeeperProvider connects to the ensemble in cfg.Endpoints.
func NewZookeeperProvider(cfg Config) (*ZookeeperProvider, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("zookeeper endpoints are required")
	}
	conn, _, err := zk.Connect(cfg.Endpoints, cfg.DialTimeout, zk.WithLogger(zkLogger{}))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to zookeeper: %w", err)
	}
	return &ZookeeperProvider{conn: conn, path: cfg.Path}, nil
}

func (p *ZookeeperProvider) Type() Type { return TypeZookeeper }

func (p *ZookeeperProvider) Load(_ context.Context) ([]byte, error) {
	data, _, err := p.conn.Get(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read zookeeper path %s: %w", p.path, err)
	}
	return data, nil
}

// Watch re-arms a watch after every event, since zookeeper watches fire
// once. While the znode is missing an exists watch waits for it to be
// created again.
func (p *ZookeeperProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	go func() {
		defer close(ch)
		for {
			events, err := p.arm(ch)
			if err != nil {
				slog.Error("Failed to watch zookeeper path", "path", p.path, "error", err)
				return
			}
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				switch ev.Type {
				case zk.EventNodeDataChanged, zk.EventNodeCreated:
					notify(ch)
				case zk.EventNodeDeleted:
					slog.Warn("Zookeeper config node deleted", "path", p.path)
				case zk.EventNotWatching:
					slog.Warn("Zookeeper watch lost", "path", p.path)
					return
				}
			}
		}
	}()

	slog.Info("Watching zookeeper path", "path", p.path)
	return ch, nil
}

// arm sets a data watch on the znode, or an exists watch when it is gone.
// A node that reappears between the two calls is reported right away.
func (p *ZookeeperProvider) arm(ch chan<- struct{}) (<-chan zk.Event, error) {
	_, _, events, err := p.conn.GetW(p.path)
	if err == nil {
		return events, nil
	}
	if !errors.Is(err, zk.ErrNoNode) {
		return nil, err
	}
	exists, _, events, err := p.conn.ExistsW(p.path)
	if err != nil {
		return nil, err
	}
	if exists {
		notify(ch)
	}
	return events, nil
}

func (p *ZookeeperProvider) Close() error {
	p.conn.Close()
	return nil
}

var _ Provider = (*ZookeeperProvider)(nil)
