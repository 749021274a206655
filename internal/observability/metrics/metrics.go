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

// Metrics exposes the ledger's application-level instruments.
type Metrics struct {
	debits           metric.Int64Counter
	debitDenials     metric.Int64Counter
	refunds          metric.Int64Counter
	refundNoOps      metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
	tokensCredited   metric.Int64Counter
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
		name = "verdant"
	}
	meter := provider.Meter(name)

	debits, err := meter.Int64Counter("verdant_ledger_debits_total")
	if err != nil {
		return nil, err
	}
	debitDenials, err := meter.Int64Counter("verdant_ledger_debit_denials_total")
	if err != nil {
		return nil, err
	}
	refunds, err := meter.Int64Counter("verdant_ledger_refunds_total")
	if err != nil {
		return nil, err
	}
	refundNoOps, err := meter.Int64Counter("verdant_ledger_refund_noops_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("verdant_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}
	tokensCredited, err := meter.Int64Counter("verdant_tokens_credited_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		debits:          debits,
		debitDenials:    debitDenials,
		refunds:         refunds,
		refundNoOps:     refundNoOps,
		rateLimitDenied: rateLimitDenied,
		tokensCredited:  tokensCredited,
	}, nil
}

// RecordDebit increments successful debit counts per funding source.
func (m *Metrics) RecordDebit(ctx context.Context, source string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("funding_source", strings.TrimSpace(source)))
	m.debits.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDebitDenial increments denied authorization counts per reason.
func (m *Metrics) RecordDebitDenial(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.debitDenials.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRefund increments applied refund counts per funding source.
func (m *Metrics) RecordRefund(ctx context.Context, source string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("funding_source", strings.TrimSpace(source)))
	m.refunds.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRefundNoOp increments repeated-refund no-op counts.
func (m *Metrics) RecordRefundNoOp(ctx context.Context) {
	if m == nil {
		return
	}
	m.refundNoOps.Add(ctx, 1)
}

// RecordRateLimitDenied increments rolling-window denial counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTokensCredited adds purchased token amounts.
func (m *Metrics) RecordTokensCredited(ctx context.Context, amount int64) {
	if m == nil {
		return
	}
	m.tokensCredited.Add(ctx, amount)
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
	"funding_source": {},
	"reason":         {},
	"endpoint":       {},
	"status_code":    {},
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
