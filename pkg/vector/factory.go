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

package vector

import "fmt"

// ProviderType identifies a vector provider implementation.
type ProviderType string

const (
	ProviderChromem  ProviderType = "chromem"
	ProviderQdrant   ProviderType = "qdrant"
	ProviderPinecone ProviderType = "pinecone"
)

// ProviderConfig selects and configures one provider.
type ProviderConfig struct {
	Type     ProviderType
	Chromem  ChromemConfig
	Qdrant   QdrantConfig
	Pinecone PineconeConfig
}

// NewProvider creates the configured provider.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Type {
	case "", ProviderChromem:
		return NewChromemProvider(cfg.Chromem)
	case ProviderQdrant:
		return NewQdrantProvider(cfg.Qdrant)
	case ProviderPinecone:
		return NewPineconeProvider(cfg.Pinecone)
	default:
		return nil, fmt.Errorf("unknown vector provider %q (valid: chromem, qdrant, pinecone)", cfg.Type)
	}
}

// Flusher is implemented by providers that buffer writes locally.
type Flusher interface {
	Flush() error
}

// Flush persists p if it buffers writes.
func Flush(p Provider) error {
	if f, ok := p.(Flusher); ok {
		return f.Flush()
	}
	return nil
}
