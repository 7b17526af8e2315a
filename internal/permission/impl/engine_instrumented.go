package impl

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/global"
	"go.opentelemetry.io/otel/metric/instrument/syncint64"

	"github.com/onchainwatch/permresolve/internal/permission"
)

// InstrumentedEngine wraps a Resolver with run-count and latency metrics.
type InstrumentedEngine struct {
	resolver         permission.Resolver
	runCount         syncint64.Counter
	latencyHistogram syncint64.Histogram
	contractCount    syncint64.Histogram
	warningCount     syncint64.Counter
}

// NewInstrumentedEngine wraps resolver with OpenTelemetry metrics
// recorded under the "permresolve" meter.
func NewInstrumentedEngine(resolver permission.Resolver) (permission.Resolver, error) {
	meter := global.MeterProvider().Meter(permission.ServiceName)

	runCount, err := meter.SyncInt64().Counter("permresolve.engine.run.count")
	if err != nil {
		return nil, fmt.Errorf("registering run counter: %s", err)
	}
	latencyHistogram, err := meter.SyncInt64().Histogram("permresolve.engine.run.latency")
	if err != nil {
		return nil, fmt.Errorf("registering latency histogram: %s", err)
	}
	contractCount, err := meter.SyncInt64().Histogram("permresolve.engine.run.resolved_contracts")
	if err != nil {
		return nil, fmt.Errorf("registering resolved-contracts histogram: %s", err)
	}
	warningCount, err := meter.SyncInt64().Counter("permresolve.engine.run.warning.count")
	if err != nil {
		return nil, fmt.Errorf("registering warning counter: %s", err)
	}

	return &InstrumentedEngine{resolver, runCount, latencyHistogram, contractCount, warningCount}, nil
}

// Resolve runs the wrapped resolver and records its outcome.
func (e *InstrumentedEngine) Resolve(
	ctx context.Context,
	overrides permission.OverridesDocument,
	snapshot permission.DiscoveredSnapshot,
) (permission.ResolvedDocument, error) {
	start := time.Now()
	doc, err := e.resolver.Resolve(ctx, overrides, snapshot)
	latency := time.Since(start).Milliseconds()

	attrs := []attribute.KeyValue{
		{Key: "success", Value: attribute.BoolValue(err == nil)},
	}
	e.runCount.Add(ctx, 1, attrs...)
	e.latencyHistogram.Record(ctx, latency, attrs...)
	if err == nil {
		e.contractCount.Record(ctx, int64(len(doc.Contracts)), attrs...)
		e.warningCount.Add(ctx, int64(countWarnings(doc)), attrs...)
	}

	return doc, err
}

func countWarnings(doc permission.ResolvedDocument) int {
	n := 0
	for _, c := range doc.Contracts {
		for _, f := range c.Functions {
			n += len(f.Warnings)
		}
	}
	return n
}
