package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogsConfig holds logs bridge configuration.
type LogsConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ServiceName       string
	Insecure          bool
}

// LoggerProvider sends zap entries to the OpenTelemetry logs pipeline.
// A nil provider means the bridge is off.
type LoggerProvider struct {
	provider *sdklog.LoggerProvider
	scope    string
	logger   *zap.Logger
}

// NewLoggerProvider batches records to the OTLP collector when cfg is
// enabled. Extra processors are attached as well, so tests can capture
// records without a collector.
func NewLoggerProvider(ctx context.Context, cfg LogsConfig, logger *zap.Logger, processors ...sdklog.Processor) (*LoggerProvider, error) {
	lp := &LoggerProvider{scope: cfg.ServiceName, logger: logger}

	if cfg.Enabled {
		opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.CollectorEndpoint)}
		if cfg.Insecure {
			opts = append(opts, otlploggrpc.WithInsecure())
		}
		exporter, err := otlploggrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP logs exporter: %w", err)
		}
		processors = append(processors, sdklog.NewBatchProcessor(exporter))
	}
	if len(processors) == 0 {
		return lp, nil
	}

	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}
	opts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	for _, p := range processors {
		opts = append(opts, sdklog.WithProcessor(p))
	}
	lp.provider = sdklog.NewLoggerProvider(opts...)
	global.SetLoggerProvider(lp.provider)

	logger.Info("OpenTelemetry log bridge initialized",
		zap.Bool("otlp_export", cfg.Enabled),
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
	)
	return lp, nil
}

// Bridge returns base teed into the logs pipeline for entries at minLevel
// and above. Local output keeps every level base allows.
func (lp *LoggerProvider) Bridge(base *zap.Logger, minLevel zapcore.Level) *zap.Logger {
	if lp.provider == nil {
		return base
	}
	otelCore, err := zapcore.NewIncreaseLevelCore(
		otelzap.NewCore(lp.scope, otelzap.WithLoggerProvider(lp.provider)),
		minLevel,
	)
	if err != nil {
		base.Warn("Log bridge disabled", zap.Error(err))
		return base
	}
	return base.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, otelCore)
	}))
}

// IsEnabled reports whether entries leave the process.
func (lp *LoggerProvider) IsEnabled() bool {
	return lp.provider != nil
}

// Shutdown flushes pending records and stops the provider.
func (lp *LoggerProvider) Shutdown(ctx context.Context) error {
	if lp.provider == nil {
		return nil
	}
	return shutdown(ctx, "logger", lp.logger, lp.provider.Shutdown)
}
