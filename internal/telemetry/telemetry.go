package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Telemetry owns the MeterProvider the HTTP metrics record into.
type Telemetry struct {
	config        *Config
	meterProvider *sdkmetric.MeterProvider
}

// New creates a Telemetry and, when enabled, installs its MeterProvider as
// the global one. A disabled config yields a no-op instance.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Telemetry, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	t := &Telemetry{config: cfg}
	if !cfg.Enabled {
		return t, nil
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	mp, err := newMeterProvider(ctx, cfg, o.reader)
	if err != nil {
		return nil, err
	}
	t.meterProvider = mp
	otel.SetMeterProvider(mp)
	return t, nil
}

// MeterProvider returns the SDK provider, or a no-op provider when
// telemetry is disabled.
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	if t == nil || t.meterProvider == nil {
		return noop.NewMeterProvider()
	}
	return t.meterProvider
}

// IsEnabled returns true if telemetry is exporting.
func (t *Telemetry) IsEnabled() bool {
	return t != nil && t.meterProvider != nil
}

// Shutdown flushes pending metrics and stops the exporter. Uses the shutdown
// timeout from config when ctx has no deadline.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.meterProvider == nil {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.ShutdownTimeout)
		defer cancel()
	}

	if err := t.meterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("meter provider shutdown: %w", err)
	}
	return nil
}
