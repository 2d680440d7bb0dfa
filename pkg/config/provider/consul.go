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
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/consul/api"
)

// ConsulProvider reads config from a Consul KV key and watches it with
// blocking queries.
type ConsulProvider struct {
	client *api.Client
	key    string
}

// NewConsulProvider connects to the first endpoint in cfg.
func NewConsulProvider(cfg Config) (*ConsulProvider, error) {
	consulCfg := api.DefaultConfig()
	if len(cfg.Endpoints) > 0 {
		consulCfg.Address = cfg.Endpoints[0]
	}
	consulCfg.WaitTime = 5 * time.Minute

	client, err := api.NewClient(consulCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}
	return &ConsulProvider{client: client, key: strings.TrimPrefix(cfg.Path, "/")}, nil
}

func (p *ConsulProvider) Type() Type { return TypeConsul }

func (p *ConsulProvider) Load(ctx context.Context) ([]byte, error) {
	data, _, err := p.get(ctx, 0)
	return data, err
}

func (p *ConsulProvider) get(ctx context.Context, waitIndex uint64) ([]byte, uint64, error) {
	opts := (&api.QueryOptions{WaitIndex: waitIndex}).WithContext(ctx)
	pair, meta, err := p.client.KV().Get(p.key, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read consul key %s: %w", p.key, err)
	}
	if pair == nil {
		return nil, meta.LastIndex, fmt.Errorf("consul key %s not found", p.key)
	}
	return pair.Value, meta.LastIndex, nil
}

// Watch long-polls the key and signals when its value changes.
func (p *ConsulProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	data, index, err := p.get(ctx, 0)
	if err != nil {
		return nil, err
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		last := data
		for ctx.Err() == nil {
			next, nextIndex, err := p.get(ctx, index)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("Consul watch failed, retrying", "key", p.key, "error", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(2 * time.Second):
				}
				continue
			}
			// Consul may return early with an unchanged index.
			if nextIndex < index {
				nextIndex = 0
			}
			index = nextIndex
			if !bytes.Equal(next, last) {
				last = next
				notify(ch)
			}
		}
	}()

	slog.Info("Watching consul key", "key", p.key)
	return ch, nil
}

func (p *ConsulProvider) Close() error { return nil }

var _ Provider = (*ConsulProvider)(nil)
