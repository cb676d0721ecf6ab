// Package telemetry exports relay traces over OTLP/HTTP. Loading the
// telemetry.otlp module installs a global tracer provider; without it the
// spans opened by the relay go to the no-op provider.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/tgrelay/internal/core"
)

func init() {
	core.RegisterModule(&Module{})
}

var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Config holds the telemetry.otlp configuration.
type Config struct {
	// Endpoint is host:port of the OTLP/HTTP collector.
	Endpoint string            `yaml:"endpoint"`
	URLPath  string            `yaml:"url_path"`
	Insecure bool              `yaml:"insecure"`
	Headers  map[string]string `yaml:"headers"`

	ServiceName string `yaml:"service_name"`

	// SampleRatio is the fraction of root spans kept, 0 to 1.
	SampleRatio *float64 `yaml:"sample_ratio"`

	ExportTimeout time.Duration `yaml:"export_timeout"`
}

func (c *Config) defaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.ServiceName == "" {
		c.ServiceName = "tgrelay"
	}
	if c.SampleRatio == nil {
		ratio := 1.0
		c.SampleRatio = &ratio
	}
	if c.ExportTimeout <= 0 {
		c.ExportTimeout = 10 * time.Second
	}
}

func (c *Config) validate() error {
	if r := *c.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("telemetry: sample_ratio must be between 0 and 1, got %v", r)
	}
	return nil
}

// Module owns the SDK tracer provider for the lifetime of the app.
type Module struct {
	config   Config
	logger   *slog.Logger
	provider *sdktrace.TracerProvider
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "telemetry.otlp",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("telemetry: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner. The exporter connects lazily, so
// an unreachable collector does not fail startup.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(m.config.Endpoint),
		otlptracehttp.WithTimeout(m.config.ExportTimeout),
	}
	if m.config.URLPath != "" {
		opts = append(opts, otlptracehttp.WithURLPath(m.config.URLPath))
	}
	if m.config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(m.config.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(m.config.Headers))
	}

	exporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return fmt.Errorf("telemetry: create exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", m.config.ServiceName),
	)
	m.provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(*m.config.SampleRatio))),
	)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Start implements core.Starter.
func (m *Module) Start() error {
	otel.SetTracerProvider(m.provider)
	m.logger.Info("tracing enabled", "endpoint", m.config.Endpoint, "sample_ratio", *m.config.SampleRatio)
	return nil
}

// Stop implements core.Stopper. Buffered spans are flushed before the
// provider shuts down.
func (m *Module) Stop(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	return errors.Join(m.provider.ForceFlush(ctx), m.provider.Shutdown(ctx))
}

// TracerProvider returns the provisioned provider.
func (m *Module) TracerProvider() *sdktrace.TracerProvider { return m.provider }
