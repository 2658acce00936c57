package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"csvbatch/internal/batcherr"
	"csvbatch/internal/destination"
	"csvbatch/internal/storage"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path is a dotted path into
// the config, e.g. "compression.gzip.level".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// ValidatePipeline lints p without mutating it. Callers decide whether
// warnings are fatal. Destination and manifest kinds are checked against the
// backends registered at call time.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Target.TapName) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "target.tap_name",
			Message:  "target.tap_name must not be empty; it is part of every batch filename",
		})
	}
	if strings.ContainsAny(p.Target.StreamPrefix, `/\`) {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "target.stream_prefix",
			Message:  "stream_prefix contains a path separator; use destination.prefix for directories",
		})
	}

	issues = append(issues, validateBatch(p.Batch)...)
	issues = append(issues, validateDestination(p.Destination)...)
	issues = append(issues, validateCompression(p)...)
	issues = append(issues, validateManifest(p.Manifest)...)
	issues = append(issues, validateMetrics(p.Metrics)...)

	if p.Runtime.ChannelBuffer < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.channel_buffer",
			Message:  "channel_buffer must not be negative",
		})
	}
	return issues
}

// Errors returns only the error-severity issues.
func Errors(issues []Issue) []Issue {
	var out []Issue
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			out = append(out, iss)
		}
	}
	return out
}

func validateBatch(b Batch) []Issue {
	var issues []Issue
	if b.Size < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "batch.size",
			Message:  fmt.Sprintf("size must not be negative, got %d", b.Size),
		})
	}
	if b.MaxLevel < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "batch.max_level",
			Message:  fmt.Sprintf("max_level must not be negative, got %d", b.MaxLevel),
		})
	}
	if b.MaxLevel > 10 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "batch.max_level",
			Message:  fmt.Sprintf("max_level=%d; deep flattening produces very wide files", b.MaxLevel),
		})
	}
	return issues
}

func validateDestination(d Destination) []Issue {
	var issues []Issue
	if strings.TrimSpace(d.Kind) == "" {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "destination.kind",
			Message:  "destination.kind must not be empty",
		})
	}
	if kinds := destination.ListKinds(); !slices.Contains(kinds, d.Kind) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "destination.kind",
			Message:  fmt.Sprintf("unknown destination kind %q; supported: %s", d.Kind, strings.Join(kinds, ", ")),
		})
	}
	if d.Kind == destination.KindLocal && strings.TrimSpace(d.Root) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "destination.root",
			Message:  "destination.root is empty; files are written to the working directory",
		})
	}
	if d.Kind == destination.KindMemory {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "destination.kind",
			Message:  "memory destination discards all files when the process exits",
		})
	}
	return issues
}

func validateCompression(p Pipeline) []Issue {
	err := p.Compression.Validate()
	if err == nil {
		return nil
	}
	path := "compression"
	var cfgErr *batcherr.ConfigurationError
	if errors.As(err, &cfgErr) && cfgErr.Field != "" {
		path = cfgErr.Field
	}
	return []Issue{{Severity: SeverityError, Path: path, Message: err.Error()}}
}

func validateManifest(m Manifest) []Issue {
	if !m.Enabled() {
		return nil
	}
	var issues []Issue
	if kinds := storage.ListKinds(); !slices.Contains(kinds, m.Kind) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "manifest.kind",
			Message:  fmt.Sprintf("unknown manifest kind %q; supported: %s", m.Kind, strings.Join(kinds, ", ")),
		})
	}
	if strings.TrimSpace(m.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "manifest.dsn",
			Message:  "manifest.dsn must not be empty",
		})
	}
	if strings.TrimSpace(m.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "manifest.table",
			Message:  "manifest.table must not be empty",
		})
	}
	if m.BatchSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "manifest.batch_size",
			Message:  "batch_size must not be negative",
		})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	switch m.Backend {
	case "", "none":
		return nil
	case "pushgateway":
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			return []Issue{{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  "pushgateway backend requires pushgateway_url",
			}}
		}
	case "datadog":
		if strings.TrimSpace(m.DatadogAddr) == "" {
			return []Issue{{
				Severity: SeverityError,
				Path:     "metrics.datadog_addr",
				Message:  "datadog backend requires datadog_addr",
			}}
		}
	default:
		return []Issue{{
			Severity: SeverityError,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; supported: none, pushgateway, datadog", m.Backend),
		}}
	}
	return nil
}
