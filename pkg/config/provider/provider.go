// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package provider defines the sources scout can read its configuration from.
//
// A provider returns raw YAML or JSON bytes and may signal changes so the
// loader can rebuild the configuration snapshot.
package provider

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Type identifies the config source type.
type Type string

const (
	TypeFile      Type = "file"
	TypeConsul    Type = "consul"
	TypeEtcd      Type = "etcd"
	TypeZookeeper Type = "zookeeper"
)

// ParseType converts a string to a Type.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(s) {
	case "file", "":
		return TypeFile, nil
	case "consul":
		return TypeConsul, nil
	case "etcd":
		return TypeEtcd, nil
	case "zookeeper", "zk":
		return TypeZookeeper, nil
	default:
		return "", fmt.Errorf("unknown provider type: %s", s)
	}
}

// Provider abstracts config sources.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	Type() Type

	// Load reads raw config bytes from the source.
	Load(ctx context.Context) ([]byte, error)

	// Watch signals on the returned channel whenever the source changes.
	// The channel is closed when ctx is cancelled or the watch is lost.
	Watch(ctx context.Context) (<-chan struct{}, error)

	Close() error
}

// Config configures provider creation.
type Config struct {
	// Type specifies the provider type (file, consul, etcd, zookeeper).
	Type Type

	// Path is a file path for the file provider and a key path otherwise.
	Path string

	// Endpoints for remote providers.
	Endpoints []string

	// DialTimeout bounds the initial connection to remote providers.
	DialTimeout time.Duration
}

// New creates a Provider based on cfg.
func New(cfg Config) (Provider, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("config path is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}

	switch cfg.Type {
	case TypeFile, "":
		return NewFileProvider(cfg.Path)
	case TypeConsul:
		return NewConsulProvider(cfg)
	case TypeEtcd:
		return NewEtcdProvider(cfg)
	case TypeZookeeper:
		return NewZookeeperProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}

// notify performs a non-blocking send; a pending signal already covers the change.
func notify(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
