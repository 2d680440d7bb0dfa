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

// Package observability wires OpenTelemetry tracing and metrics for scout.
// Metrics are exported in Prometheus format; traces go to an OTLP collector
// or stdout. Everything is off by default and degrades to no-ops.
package observability

import (
	"fmt"
	"time"
)

// Config is the observability section of the scout config.
type Config struct {
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Exporter is "otlp" (gRPC) or "stdout".
	Exporter     string            `yaml:"exporter"`
	Endpoint     string            `yaml:"endpoint"`
	Insecure     *bool             `yaml:"insecure"`
	Headers      map[string]string `yaml:"headers"`
	SamplingRate float64           `yaml:"sampling_rate"`
	ServiceName  string            `yaml:"service_name"`
	Timeout      time.Duration     `yaml:"timeout"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Endpoint is the HTTP path metrics are served on.
	Endpoint string `yaml:"endpoint"`

	// Namespace prefixes every metric name.
	Namespace string `yaml:"namespace"`
}

func (c *Config) SetDefaults() {
	c.Tracing.SetDefaults()
	c.Metrics.SetDefaults()
}

func (c *Config) Validate() error {
	if err := c.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

func (c *TracingConfig) SetDefaults() {
	if c.Exporter == "" {
		c.Exporter = ExporterOTLP
	}
	if c.Endpoint == "" {
		c.Endpoint = DefaultOTLPEndpoint
	}
	if c.Insecure == nil {
		insecure := true
		c.Insecure = &insecure
	}
	if c.SamplingRate == 0 {
		c.SamplingRate = 1.0
	}
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

func (c *TracingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Exporter {
	case ExporterOTLP, ExporterStdout:
	default:
		return fmt.Errorf("invalid exporter %q (valid: otlp, stdout)", c.Exporter)
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("sampling_rate must be within [0, 1]")
	}
	return nil
}

func (c *MetricsConfig) SetDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "/metrics"
	}
	if c.Namespace == "" {
		c.Namespace = DefaultServiceName
	}
}

func (c *MetricsConfig) Validate() error {
	if c.Enabled && (c.Endpoint == "" || c.Endpoint[0] != '/') {
		return fmt.Errorf("endpoint must start with '/'")
	}
	return nil
}
