// internal/lifecycle/metrics.go
package lifecycle

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type counters struct {
	transactions metric.Int64Counter
	conflicts    metric.Int64Counter
	payments     metric.Int64Counter
}

func newCounters(m metric.Meter) counters {
	return counters{
		transactions: int64Counter(m, "ironcore.transactions.created", "Transactions submitted to the backend."),
		conflicts:    int64Counter(m, "ironcore.conflicts", "Purchases or enrollments blocked by a conflict."),
		payments:     int64Counter(m, "ironcore.payments", "Payment confirmations by outcome."),
	}
}

func int64Counter(m metric.Meter, name, desc string) metric.Int64Counter {
	c, err := m.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}

func (c counters) conflict(ctx context.Context, reason string) {
	c.conflicts.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (c counters) created(ctx context.Context, kind string) {
	c.transactions.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (c counters) payment(ctx context.Context, outcome string) {
	c.payments.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
