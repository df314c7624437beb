package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("org_id", "123"),
		attribute.String("house_unit_id", "456"),
		attribute.String("outcome", "fallback"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "org_id" && attrs[1].Key != "org_id" {
		t.Fatalf("expected org_id to be retained")
	}
	if attrs[0].Key != "outcome" && attrs[1].Key != "outcome" {
		t.Fatalf("expected outcome to be retained")
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordAllocation(ctx, "ok")
	m.RecordCacheRecompute(ctx, "stale_read")
	m.RecordCacheInvalidation(ctx, "price_changed", 3)
	m.RecordLedgerEntry(ctx, "contract")
	m.RecordReportWarning(ctx, "stale_cache")
	m.RecordExport(ctx, "pdf")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "estatebook"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.RecordAllocation(context.Background(), "invalid_schedule")
}
