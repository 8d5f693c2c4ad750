// Copyright 2026 The Admingate Authors
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

package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Meter wraps OpenTelemetry meter
type Meter struct {
	meter metric.Meter
}

// New creates a new meter instance
func New(ctx context.Context, cfg Config, serviceName string) (*Meter, error) {
	if !cfg.Enabled {
		return &Meter{meter: noop.NewMeterProvider().Meter(serviceName)}, nil
	}

	// Exporters are configured on the global provider
	return &Meter{meter: otel.Meter(serviceName)}, nil
}

// GetMeter returns the underlying meter
func (m *Meter) GetMeter() metric.Meter {
	return m.meter
}

// CreateCounter creates a new counter metric
func (m *Meter) CreateCounter(name, description string) (metric.Int64Counter, error) {
	counter, err := m.meter.Int64Counter(
		name,
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return counter, nil
}

// CreateHistogram creates a new histogram metric
func (m *Meter) CreateHistogram(name, description, unit string) (metric.Float64Histogram, error) {
	histogram, err := m.meter.Float64Histogram(
		name,
		metric.WithDescription(description),
		metric.WithUnit(unit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", name, err)
	}
	return histogram, nil
}

// GateMetrics records access-control outcomes.
type GateMetrics struct {
	decisions       metric.Int64Counter
	csrfRejections  metric.Int64Counter
	lookupLatencyMs metric.Float64Histogram
}

// NewGateMetrics registers the gate instruments on m.
func NewGateMetrics(m *Meter) (*GateMetrics, error) {
	decisions, err := m.CreateCounter("admingate.gate.decisions", "Gate decisions by outcome and reason")
	if err != nil {
		return nil, err
	}
	csrf, err := m.CreateCounter("admingate.csrf.rejections", "State-changing requests rejected for CSRF")
	if err != nil {
		return nil, err
	}
	latency, err := m.CreateHistogram("admingate.authz.lookup.duration", "Authorization lookup latency", "ms")
	if err != nil {
		return nil, err
	}
	return &GateMetrics{decisions: decisions, csrfRejections: csrf, lookupLatencyMs: latency}, nil
}

// NopGateMetrics returns instruments backed by the no-op provider.
func NopGateMetrics() *GateMetrics {
	gm, _ := NewGateMetrics(&Meter{meter: noop.NewMeterProvider().Meter("noop")})
	return gm
}

// RecordDecision counts one gate outcome.
func (g *GateMetrics) RecordDecision(ctx context.Context, outcome, reason string) {
	if g == nil {
		return
	}
	g.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("reason", reason),
	))
}

// RecordCSRFRejection counts one rejected state-changing request.
func (g *GateMetrics) RecordCSRFRejection(ctx context.Context, method string) {
	if g == nil {
		return
	}
	g.csrfRejections.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))
}

// RecordLookup records the latency of one authorization lookup.
func (g *GateMetrics) RecordLookup(ctx context.Context, ms float64, found bool) {
	if g == nil {
		return
	}
	g.lookupLatencyMs.Record(ctx, ms, metric.WithAttributes(attribute.Bool("found", found)))
}
