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

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// PineconeConfig configures the Pinecone provider. The collection name is
// the index name; indexes must be created in Pinecone beforehand.
type PineconeConfig struct {
	APIKey string

	// Host overrides the control plane URL.
	Host      string
	Namespace string
}

// PineconeProvider implements Provider using a managed Pinecone index.
type PineconeProvider struct {
	client    *pinecone.Client
	namespace string

	mu    sync.Mutex
	conns map[string]*pinecone.IndexConnection
}

func NewPineconeProvider(cfg PineconeConfig) (*PineconeProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for Pinecone")
	}
	params := pinecone.NewClientParams{ApiKey: cfg.APIKey}
	if cfg.Host != "" {
		params.Host = cfg.Host
	}
	client, err := pinecone.NewClient(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pinecone client: %w", err)
	}
	return &PineconeProvider{
		client:    client,
		namespace: cfg.Namespace,
		conns:     make(map[string]*pinecone.IndexConnection),
	}, nil
}

func (p *PineconeProvider) Name() string {
	return "pinecone"
}

func (p *PineconeProvider) index(ctx context.Context, name string) (*pinecone.IndexConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if conn, ok := p.conns[name]; ok {
		return conn, nil
	}

	idx, err := p.client.DescribeIndex(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: pinecone index %s: %v", ErrCollectionNotFound, name, err)
	}
	conn, err := p.client.Index(pinecone.NewIndexConnParams{Host: idx.Host, Namespace: p.namespace})
	if err != nil {
		return nil, fmt.Errorf("failed to create index connection: %w", err)
	}
	p.conns[name] = conn
	return conn, nil
}

func (p *PineconeProvider) Upsert(ctx context.Context, collection string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	conn, err := p.index(ctx, collection)
	if err != nil {
		return err
	}

	vectors := make([]*pinecone.Vector, 0, len(records))
	for _, r := range records {
		fields := make(map[string]any, len(r.Metadata)+1)
		for k, v := range r.Metadata {
			fields[k] = v
		}
		fields[payloadContent] = r.Content
		metadata, err := structpb.NewStruct(fields)
		if err != nil {
			return fmt.Errorf("failed to convert metadata: %w", err)
		}
		vectors = append(vectors, &pinecone.Vector{
			Id:       r.ID,
			Values:   r.Vector,
			Metadata: metadata,
		})
	}

	if _, err := conn.UpsertVectors(ctx, vectors); err != nil {
		return fmt.Errorf("failed to upsert vectors: %w", err)
	}
	return nil
}

func (p *PineconeProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	conn, err := p.index(ctx, collection)
	if err != nil {
		return nil, err
	}

	resp, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query Pinecone: %w", err)
	}
	return convertPineconeResults(resp.Matches), nil
}

func (p *PineconeProvider) Count(ctx context.Context, collection string) (int, error) {
	conn, err := p.index(ctx, collection)
	if err != nil {
		return 0, err
	}
	stats, err := conn.DescribeIndexStats(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to describe index stats: %w", err)
	}
	if ns, ok := stats.Namespaces[p.namespace]; ok && ns != nil {
		return int(ns.VectorCount), nil
	}
	if p.namespace == "" {
		return int(stats.TotalVectorCount), nil
	}
	return 0, nil
}

func (p *PineconeProvider) DeleteSource(ctx context.Context, collection, source string) error {
	conn, err := p.index(ctx, collection)
	if errors.Is(err, ErrCollectionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	filter, err := structpb.NewStruct(map[string]any{
		MetaSource: map[string]any{"$eq": source},
	})
	if err != nil {
		return fmt.Errorf("failed to build filter: %w", err)
	}
	if err := conn.DeleteVectorsByFilter(ctx, filter); err != nil {
		return fmt.Errorf("failed to delete vectors of %s: %w", source, err)
	}
	return nil
}

func (p *PineconeProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for name, conn := range p.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.conns, name)
	}
	return firstErr
}

func convertPineconeResults(matches []*pinecone.ScoredVector) []Result {
	results := make([]Result, 0, len(matches))
	for _, match := range matches {
		if match == nil || match.Vector == nil {
			continue
		}
		r := Result{
			ID:       match.Vector.Id,
			Score:    match.Score,
			Metadata: make(map[string]string),
		}
		if match.Vector.Metadata != nil {
			for k, v := range match.Vector.Metadata.AsMap() {
				s := fmt.Sprint(v)
				if k == payloadContent {
					r.Content = s
					continue
				}
				r.Metadata[k] = s
			}
		}
		results = append(results, r)
	}
	return results
}

var _ Provider = (*PineconeProvider)(nil)
