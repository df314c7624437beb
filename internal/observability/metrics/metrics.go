package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	allocations        metric.Int64Counter
	cacheRecomputes    metric.Int64Counter
	cacheInvalidations metric.Int64Counter
	ledgerEntries      metric.Int64Counter
	reportWarnings     metric.Int64Counter
	exports            metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "estatebook"
	}
	meter := provider.Meter(name)

	allocations, err := meter.Int64Counter("estatebook_allocations_total")
	if err != nil {
		return nil, err
	}
	cacheRecomputes, err := meter.Int64Counter("estatebook_payment_cache_recomputes_total")
	if err != nil {
		return nil, err
	}
	cacheInvalidations, err := meter.Int64Counter("estatebook_payment_cache_invalidations_total")
	if err != nil {
		return nil, err
	}
	ledgerEntries, err := meter.Int64Counter("estatebook_ledger_entries_total")
	if err != nil {
		return nil, err
	}
	reportWarnings, err := meter.Int64Counter("estatebook_payment_status_warnings_total")
	if err != nil {
		return nil, err
	}
	exports, err := meter.Int64Counter("estatebook_report_exports_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		allocations:        allocations,
		cacheRecomputes:    cacheRecomputes,
		cacheInvalidations: cacheInvalidations,
		ledgerEntries:      ledgerEntries,
		reportWarnings:     reportWarnings,
		exports:            exports,
	}, nil
}

// RecordAllocation counts allocator runs by outcome (ok, fallback, invalid_schedule).
func (m *Metrics) RecordAllocation(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.allocations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCacheRecompute counts payment cache refreshes by trigger.
func (m *Metrics) RecordCacheRecompute(ctx context.Context, source string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("source", strings.TrimSpace(source)))
	m.cacheRecomputes.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCacheInvalidation counts payment caches cleared by an upstream write.
func (m *Metrics) RecordCacheInvalidation(ctx context.Context, reason string, count int64) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.cacheInvalidations.Add(ctx, count, metric.WithAttributes(attrs...))
}

// RecordLedgerEntry increments ledger entry counts.
func (m *Metrics) RecordLedgerEntry(ctx context.Context, sourceType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("source_type", strings.TrimSpace(sourceType)))
	m.ledgerEntries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordReportWarning counts non-fatal findings raised while building a report.
func (m *Metrics) RecordReportWarning(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("warning", strings.TrimSpace(kind)))
	m.reportWarnings.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordExport counts rendered report files by format.
func (m *Metrics) RecordExport(ctx context.Context, format string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("format", strings.TrimSpace(format)))
	m.exports.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"org_id":      {},
	"outcome":     {},
	"source":      {},
	"reason":      {},
	"source_type": {},
	"warning":     {},
	"format":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
