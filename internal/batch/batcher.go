package batch

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"csvbatch/internal/batcherr"
	"csvbatch/internal/chunk"
	"csvbatch/internal/compression"
	"csvbatch/internal/destination"
	"csvbatch/internal/flatten"
	"csvbatch/internal/metrics"
	"csvbatch/internal/schema"
)

// IDGenerator returns a fresh run identifier.
type IDGenerator func() string

// Option configures a Batcher.
type Option func(*Batcher)

// WithIDGenerator replaces the default UUID run identifiers.
func WithIDGenerator(g IDGenerator) Option {
	return func(b *Batcher) {
		if g != nil {
			b.newID = g
		}
	}
}

// WithLogger sets the progress logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Batcher) {
		if l != nil {
			b.logger = l
		}
	}
}

// Batcher turns a record stream into batch files for one stream.
type Batcher struct {
	cfg     Config
	columns []string
	writer  *Writer
	newID   IDGenerator
	logger  *zap.Logger
}

// New validates cfg and derives the column order by flattening sch to
// cfg.MaxLevel. An empty compression type selects the gzip default.
func New(cfg Config, sch schema.Schema, dest destination.Factory, opts ...Option) (*Batcher, error) {
	if cfg.Compression.Type == "" {
		cfg.Compression = compression.NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dest == nil {
		return nil, &batcherr.ConfigurationError{Field: "destination", Message: "is required"}
	}

	// Flatten rejects layouts that produce the same column twice.
	if _, err := sch.Flatten(cfg.MaxLevel); err != nil {
		return nil, err
	}
	flattener := flatten.New(sch, cfg.MaxLevel)

	b := &Batcher{
		cfg:     cfg,
		columns: flattener.Columns(),
		writer:  NewWriter(dest, flattener, cfg.Compression),
		newID:   uuid.NewString,
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(b)
	}
	b.logger = b.logger.With(zap.String("tap", cfg.TapName), zap.String("stream", cfg.StreamName))
	return b, nil
}

// Columns returns the column order of every written line.
func (b *Batcher) Columns() []string { return b.columns }

// Filename returns the name of chunk seq within run runID.
func (b *Batcher) Filename(runID string, seq int) (string, error) {
	base := fmt.Sprintf("%s%s--%s-%s-%d.csv", b.cfg.Prefix, b.cfg.TapName, b.cfg.StreamName, runID, seq)
	return compression.Filename(base, b.cfg.Compression.Type)
}

// GetBatches writes records in chunks of Config.BatchSize and yields one
// manifest per chunk, in order, as soon as its file is closed. The run
// identifier is fixed when GetBatches is called.
//
// The first error is yielded once and ends the iteration; the failing
// chunk's manifest is never yielded. Stopping the iteration early stops all
// work with no file left open.
func (b *Batcher) GetBatches(ctx context.Context, records iter.Seq2[flatten.Record, error]) iter.Seq2[Manifest, error] {
	runID := b.newID()
	job := b.cfg.job()

	return func(yield func(Manifest, error) bool) {
		chunks, err := chunk.Chunks(records, b.cfg.BatchSize)
		if err != nil {
			yield(Manifest{}, err)
			return
		}

		var (
			total     int
			start     = time.Now()
			lastFlush = start
		)
		for c, err := range chunks {
			if err == nil {
				err = ctx.Err()
			}
			if err != nil {
				b.logger.Error("read failed", zap.String("run_id", runID), zap.Error(err))
				yield(Manifest{}, err)
				return
			}
			metrics.RecordRow(job, "received", int64(len(c.Items)))

			m, err := b.writeChunk(ctx, runID, c)
			if err != nil {
				var invalid *batcherr.InvalidRecordError
				if errors.As(err, &invalid) {
					metrics.RecordRow(job, "invalid", 1)
				}
				b.logger.Error("batch failed", zap.String("run_id", runID), zap.Int("seq", c.Seq), zap.Error(err))
				yield(Manifest{}, err)
				return
			}

			total += m.Records()
			now := time.Now()
			sinceLast := now.Sub(lastFlush)
			rps := float64(0)
			if sinceLast > 0 {
				rps = float64(m.Records()) / sinceLast.Seconds()
			}
			f := m.Files[0]
			b.logger.Info("batch written",
				zap.String("run_id", runID),
				zap.Int("seq", m.Seq),
				zap.String("url", f.URL),
				zap.Int("records", f.Records),
				zap.Int("total_records", total),
				zap.Int64("bytes", f.UncompressedBytes),
				zap.Int64("compressed_bytes", f.CompressedBytes),
				zap.String("rps", fmt.Sprintf("%.0f", rps)),
				zap.Duration("elapsed", now.Sub(start).Truncate(time.Millisecond)),
			)
			lastFlush = now

			if !yield(m, nil) {
				return
			}
		}
		b.logger.Debug("stream drained", zap.String("run_id", runID), zap.Int("total_records", total))
	}
}

func (b *Batcher) writeChunk(ctx context.Context, runID string, c chunk.Chunk[flatten.Record]) (Manifest, error) {
	name, err := b.Filename(runID, c.Seq)
	if err != nil {
		return Manifest{}, err
	}

	job := b.cfg.job()
	t0 := time.Now()
	info, err := b.writer.Write(ctx, name, c.Items)
	metrics.RecordStep(job, "write_batch", err, time.Since(t0))
	if err != nil {
		return Manifest{}, err
	}

	metrics.RecordRow(job, "written", int64(info.Records))
	metrics.RecordBatches(job, 1)
	metrics.RecordBytes(job, "uncompressed", info.UncompressedBytes)
	metrics.RecordBytes(job, "compressed", info.CompressedBytes)

	return Manifest{
		RunID:  runID,
		Tap:    b.cfg.TapName,
		Stream: b.cfg.StreamName,
		Seq:    c.Seq,
		URLs:   []string{info.URL},
		Files:  []FileInfo{info},
	}, nil
}
