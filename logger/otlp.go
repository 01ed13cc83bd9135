package logger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/bouthilx/track/structure"
)

const (
	serviceName    = "track"
	serviceVersion = "0.1.0"
)

func init() {
	Register("otlp", func(ctx context.Context, opts Options) (Backend, error) {
		return NewOTLP(ctx, opts)
	})
}

// OTLP pushes trial metrics to an OTEL collector: a counter of started and
// finished trials, a histogram of run durations and one histogram per logged
// metric name, all attributed with the trial identity.
type OTLP struct {
	provider *sdkmetric.MeterProvider
	meter    metric.Meter

	trialsStarted  metric.Int64Counter
	trialsFinished metric.Int64Counter
	durationHist   metric.Float64Histogram

	mu         sync.Mutex
	histograms map[string]metric.Float64Histogram
	started    map[string]time.Time
}

// NewOTLP connects to the collector at opts.Endpoint.
func NewOTLP(ctx context.Context, opts Options) (*OTLP, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("otlp backend: endpoint not configured")
	}

	grpcOpts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(opts.Endpoint),
	}
	if opts.Insecure {
		grpcOpts = append(grpcOpts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		grpcOpts = append(grpcOpts, otlpmetricgrpc.WithInsecure())
	}

	exp, err := otlpmetricgrpc.New(ctx, grpcOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	)
	meter := provider.Meter(serviceName)

	trialsStarted, err := meter.Int64Counter(
		"track_trials_started_total",
		metric.WithDescription("Trials started"),
		metric.WithUnit("{trial}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating trials counter: %w", err)
	}

	trialsFinished, err := meter.Int64Counter(
		"track_trials_finished_total",
		metric.WithDescription("Trials finished, by final status"),
		metric.WithUnit("{trial}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating finished counter: %w", err)
	}

	durationHist, err := meter.Float64Histogram(
		"track_trial_duration_seconds",
		metric.WithDescription("Trial wall-clock duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return &OTLP{
		provider:       provider,
		meter:          meter,
		trialsStarted:  trialsStarted,
		trialsFinished: trialsFinished,
		durationHist:   durationHist,
		histograms:     map[string]metric.Float64Histogram{},
		started:        map[string]time.Time{},
	}, nil
}

func trialAttributes(trial *structure.Trial) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("trial_uid", trial.UID),
	}
	if trial.ProjectID != "" {
		attrs = append(attrs, attribute.String("project_id", trial.ProjectID))
	}
	if trial.GroupID != "" {
		attrs = append(attrs, attribute.String("group_id", trial.GroupID))
	}
	return attrs
}

func (o *OTLP) LogTrialStart(ctx context.Context, trial *structure.Trial) error {
	o.mu.Lock()
	o.started[trial.UID] = time.Now()
	o.mu.Unlock()

	o.trialsStarted.Add(ctx, 1, metric.WithAttributes(trialAttributes(trial)...))
	return nil
}

func (o *OTLP) LogTrialFinish(ctx context.Context, trial *structure.Trial) error {
	attrs := trialAttributes(trial)
	attrs = append(attrs, attribute.String("status", trial.Status.Name))
	opt := metric.WithAttributes(attrs...)

	o.trialsFinished.Add(ctx, 1, opt)

	o.mu.Lock()
	start, ok := o.started[trial.UID]
	delete(o.started, trial.UID)
	o.mu.Unlock()
	if ok {
		o.durationHist.Record(ctx, time.Since(start).Seconds(), opt)
	}
	return nil
}

func (o *OTLP) LogMetrics(ctx context.Context, trial *structure.Trial, step int64, metrics map[string]any) error {
	attrs := trialAttributes(trial)
	if step != NoStep {
		attrs = append(attrs, attribute.Int64("step", step))
	}
	opt := metric.WithAttributes(attrs...)

	for name, value := range metrics {
		v, ok := asFloat(value)
		if !ok {
			continue
		}
		hist, err := o.histogram(name)
		if err != nil {
			return err
		}
		hist.Record(ctx, v, opt)
	}
	return nil
}

func (o *OTLP) LogArguments(ctx context.Context, trial *structure.Trial, args map[string]any) error {
	// Arguments are configuration, not measurements. Nothing to push.
	return nil
}

// histogram returns the instrument for a metric name, creating it on first
// use.
func (o *OTLP) histogram(name string) (metric.Float64Histogram, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if hist, ok := o.histograms[name]; ok {
		return hist, nil
	}
	hist, err := o.meter.Float64Histogram(
		"track_metric_" + sanitizeInstrumentName(name),
		metric.WithDescription(fmt.Sprintf("Logged values of metric %q", name)),
	)
	if err != nil {
		return nil, fmt.Errorf("creating histogram for %q: %w", name, err)
	}
	o.histograms[name] = hist
	return hist, nil
}

// sanitizeInstrumentName maps a metric key onto the character set OTEL
// instrument names allow.
func sanitizeInstrumentName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '_', r == '.', r == '-', r == '/':
			return r
		default:
			return '_'
		}
	}, name)
}

// Close flushes pending metrics and shuts the provider down.
func (o *OTLP) Close(ctx context.Context) error {
	return o.provider.Shutdown(ctx)
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}
