package main

import (
	"fmt"

	"go.uber.org/zap"

	"csvbatch/internal/config"
	"csvbatch/internal/metrics"
	"csvbatch/internal/metrics/datadog"
	"csvbatch/internal/metrics/prompush"
)

// setupMetrics installs the configured metrics backend and returns the flush
// to run at shutdown.
func setupMetrics(p config.Pipeline, logger *zap.Logger) (func(), error) {
	var (
		b   metrics.Backend
		err error
	)
	switch p.Metrics.Backend {
	case "", "none":
		logger.Debug("metrics disabled", zap.String("backend", p.Metrics.Backend))
		return func() {}, nil
	case "pushgateway":
		b, err = prompush.NewBackend(p.JobName(), p.Metrics.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       p.Metrics.DatadogAddr,
			Namespace:  p.Metrics.Namespace,
			GlobalTags: p.Metrics.Tags,
		})
	default:
		return nil, fmt.Errorf("unsupported metrics.backend=%s", p.Metrics.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	logger.Info("metrics enabled", zap.String("backend", p.Metrics.Backend), zap.String("job", p.JobName()))
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			logger.Warn("metrics flush failed", zap.Error(err))
		}
	}, nil
}
