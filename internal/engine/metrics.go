package engine

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/talgya/warfront/internal/engine"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// metrics are the engine's counters. With no provider configured the global
// meter is a no-op.
type metrics struct {
	ticks    metric.Int64Counter
	combos   metric.Int64Counter
	grants   metric.Int64Counter
	kills    metric.Int64Counter
	respawns metric.Int64Counter
	stuck    metric.Int64Counter
	clamps   metric.Int64Counter
	commands metric.Int64Counter
}

func newMetrics() *metrics {
	m := meter()
	c := &metrics{}
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&c.ticks, "warfront.ticks", "Simulation ticks processed"},
		{&c.combos, "warfront.combo.events", "Squad combo stage transitions"},
		{&c.grants, "warfront.catchup.gold", "Gold paid by the catch-up controller"},
		{&c.kills, "warfront.units.killed", "Units brought to zero health"},
		{&c.respawns, "warfront.units.respawned", "Respawns, including voided guard respawns"},
		{&c.stuck, "warfront.units.stuck", "Stuck-unit diagnostics emitted"},
		{&c.clamps, "warfront.invariant.clamps", "Invariant violations clamped outside debug mode"},
		{&c.commands, "warfront.commands", "External commands applied"},
	}
	for _, ctr := range counters {
		var err error
		*ctr.dst, err = m.Int64Counter(ctr.name, metric.WithDescription(ctr.desc))
		if err != nil {
			// The API only fails on invalid names; fall back to a no-op.
			slog.Warn("creating counter failed", "name", ctr.name, "error", err)
		}
	}
	return c
}

func (m *metrics) add(ctr metric.Int64Counter, n int64, attrs ...attribute.KeyValue) {
	if m == nil || ctr == nil || n == 0 {
		return
	}
	ctr.Add(context.Background(), n, metric.WithAttributes(attrs...))
}
