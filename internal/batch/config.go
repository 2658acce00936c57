// Package batch encodes a stream of records into compressed, schema-ordered
// CSV files, one file per fixed-size chunk, and reports each written file as
// a manifest.
package batch

import (
	"fmt"

	"csvbatch/internal/batcherr"
	"csvbatch/internal/compression"
)

const DefaultBatchSize = 10000

// Config describes one stream's batching.
type Config struct {
	// Job labels metrics; defaults to TapName.
	Job string

	TapName    string
	StreamName string

	// Prefix is prepended verbatim to every filename, e.g. "raw/2024/".
	Prefix string

	BatchSize int
	// MaxLevel is the maximum flattening depth; 0 disables flattening.
	MaxLevel int

	Compression compression.Config
}

// NewConfig returns a Config with default batch size and gzip compression.
func NewConfig(tap, stream string) Config {
	return Config{
		TapName:     tap,
		StreamName:  stream,
		BatchSize:   DefaultBatchSize,
		Compression: compression.NewConfig(),
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return &batcherr.ConfigurationError{
			Field:   "batch_size",
			Message: fmt.Sprintf("must be > 0, got %d", c.BatchSize),
		}
	}
	if c.MaxLevel < 0 {
		return &batcherr.ConfigurationError{
			Field:   "max_level",
			Message: fmt.Sprintf("must be >= 0, got %d", c.MaxLevel),
		}
	}
	return c.Compression.Validate()
}

func (c Config) job() string {
	if c.Job != "" {
		return c.Job
	}
	return c.TapName
}
