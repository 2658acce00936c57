// This file wires the streaming run: one reader/dispatcher goroutine, one
// batching goroutine per Singer stream and a single sink that prints
// manifests and optionally stores them. It depends only on registry-based
// packages and never imports backend details.

package main

import (
	"context"
	"fmt"
	"io"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"csvbatch/internal/batch"
	"csvbatch/internal/config"
	"csvbatch/internal/destination"
	"csvbatch/internal/flatten"
	"csvbatch/internal/log"
	"csvbatch/internal/singer"
	"csvbatch/internal/storage"
)

// Function variables used to introduce test seams.
// In production these point to real implementations; tests can override them.
var (
	newDestinationFn = destination.New

	newRepositoryFn = func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return storage.New(ctx, cfg)
	}

	newIDFn batch.IDGenerator

	nowFn = time.Now
)

// streamStats summarises one batching run of a stream.
type streamStats struct {
	Stream        string
	KeyProperties []string
	RunID         string
	Records       int
	Files         int
	Bytes         int64
}

// summary is the result of runStreamed.
type summary struct {
	Streams   []streamStats
	Messages  int
	States    int
	Manifests int64
}

// streamRun feeds one Batcher from the dispatcher.
type streamRun struct {
	name    string
	batcher *batch.Batcher
	in      chan flatten.Record
	stats   streamStats
}

// records adapts the run's channel to the record sequence GetBatches consumes.
func (s *streamRun) records(ctx context.Context) iter.Seq2[flatten.Record, error] {
	return func(yield func(flatten.Record, error) bool) {
		for {
			select {
			case rec, ok := <-s.in:
				if !ok {
					return
				}
				if !yield(rec, nil) {
					return
				}
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			}
		}
	}
}

// runStreamed reads Singer messages from in until EOF and batches every
// stream concurrently.
//
// Concurrency model:
//
//	Reader/dispatcher (1)
//	     → per-stream Batcher (1 per SCHEMA)
//	     → sink (prints manifests as JSON lines to out)
//	     → manifest loader (optional, LoadBatches into the manifest store)
//
// Channels are bounded by runtime.channel_buffer. The first error cancels
// every stage and is returned.
func runStreamed(ctx context.Context, p config.Pipeline, in io.Reader, out io.Writer, logger *zap.Logger) (summary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	buf := p.ChannelBuffer()
	logger.Info("stream runtime",
		zap.Int("batch_size", p.BatchSize()),
		zap.Int("max_level", p.Batch.MaxLevel),
		zap.Int("buffer", buf),
	)

	dest, err := newDestinationFn(ctx, p.Destination.Factory())
	if err != nil {
		return summary{}, fmt.Errorf("destination: %w", err)
	}

	var copyFn storage.CopyFn
	if p.Manifest.Enabled() {
		repo, err := initRepository(ctx, p)
		if err != nil {
			return summary{}, err
		}
		defer repo.Close()
		copyFn = repo.CopyFrom
	}

	g, gctx := errgroup.WithContext(ctx)

	manCh := make(chan batch.Manifest, buf)
	var rowCh chan []any
	if copyFn != nil {
		rowCh = make(chan []any, buf)
	}

	d := &dispatcher{
		pipeline: p,
		dest:     dest,
		logger:   log.Component(logger, "dispatcher"),
		group:    g,
		out:      manCh,
		runs:     map[string]*streamRun{},

		batchLogger: log.Component(logger, "batcher"),
	}

	// Producers: the dispatcher and every stream it starts. manCh is closed
	// once all of them are done.
	d.producers.Add(1)
	g.Go(func() error {
		defer d.producers.Done()
		return d.dispatch(gctx, singer.NewReader(in))
	})
	g.Go(func() error {
		d.producers.Wait()
		close(manCh)
		return nil
	})

	var stored int64
	g.Go(func() error {
		return sink(gctx, manCh, out, rowCh)
	})
	if copyFn != nil {
		g.Go(func() error {
			n, err := storage.LoadBatches(gctx, log.Component(logger, "manifest"), storage.ManifestColumns(), rowCh, p.ManifestBatchSize(), copyFn)
			stored = n
			if err != nil {
				return fmt.Errorf("store manifests: %w", err)
			}
			return nil
		})
	}

	err = g.Wait()
	sum := d.summary()
	sum.Manifests = stored

	for _, st := range sum.Streams {
		logger.Info("stream summary",
			zap.String("stream", st.Stream),
			zap.Strings("key_properties", st.KeyProperties),
			zap.String("run_id", st.RunID),
			zap.Int("records", st.Records),
			zap.Int("files", st.Files),
			zap.Int64("compressed_bytes", st.Bytes),
		)
	}
	if err != nil {
		return sum, err
	}
	logger.Info("run complete",
		zap.Int("messages", sum.Messages),
		zap.Int("states", sum.States),
		zap.Int("streams", len(sum.Streams)),
		zap.Int64("manifest_rows", stored),
	)
	return sum, nil
}

// initRepository opens the manifest store and creates its table when asked.
func initRepository(ctx context.Context, p config.Pipeline) (storage.Repository, error) {
	repo, err := newRepositoryFn(ctx, storage.Config{
		Kind:    p.Manifest.Kind,
		DSN:     p.Manifest.DSN,
		Table:   p.Manifest.Table,
		Columns: storage.ManifestColumns(),
	})
	if err != nil {
		return nil, fmt.Errorf("manifest store: %w", err)
	}
	if p.Manifest.AutoCreateTable {
		if err := storage.EnsureTable(ctx, p.Manifest.Kind, repo, p.Manifest.Table); err != nil {
			repo.Close()
			return nil, fmt.Errorf("apply DDL: %w", err)
		}
	}
	return repo, nil
}

// sink prints every manifest as one JSON line and forwards its rows to
// rowCh when a manifest store is configured.
func sink(ctx context.Context, manCh <-chan batch.Manifest, out io.Writer, rowCh chan<- []any) error {
	if rowCh != nil {
		defer close(rowCh)
	}
	enc := json.NewEncoder(out)
	for m := range manCh {
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("write manifest: %w", err)
		}
		if rowCh == nil {
			continue
		}
		for _, row := range storage.ManifestRows(m, nowFn()) {
			select {
			case rowCh <- row:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// dispatcher routes decoded messages to per-stream runs.
type dispatcher struct {
	pipeline config.Pipeline
	dest     destination.Factory
	logger   *zap.Logger
	group    *errgroup.Group
	out      chan<- batch.Manifest

	batchLogger *zap.Logger

	producers sync.WaitGroup

	mu       sync.Mutex
	runs     map[string]*streamRun
	finished []*streamRun
	messages int
	states   int
}

// dispatch ends every run's input once r is drained. On error the runs are
// left to stop on the canceled context so no partial chunk is flushed.
func (d *dispatcher) dispatch(ctx context.Context, r *singer.Reader) error {
	for msg, err := range r.Messages() {
		if err != nil {
			return err
		}
		d.messages++

		switch msg.Type {
		case singer.TypeSchema:
			if err := d.onSchema(ctx, msg); err != nil {
				return err
			}

		case singer.TypeRecord:
			run, ok := d.runs[msg.Stream]
			if !ok {
				return fmt.Errorf("line %d: RECORD for stream %q has no running batcher", msg.Line, msg.Stream)
			}
			select {
			case run.in <- msg.Record:
			case <-ctx.Done():
				return ctx.Err()
			}

		case singer.TypeState:
			d.states++
			d.logger.Debug("state", zap.Int("line", msg.Line), zap.ByteString("value", msg.Value))

		case singer.TypeActivateVersion:
			d.logger.Debug("activate version", zap.String("stream", msg.Stream), zap.Int64("version", msg.Version))
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	d.closeAll()
	return nil
}

// onSchema starts a run for a new stream. A repeated SCHEMA with the same
// columns keeps the current run; changed columns end it and start a new run
// with a fresh run id.
func (d *dispatcher) onSchema(ctx context.Context, msg singer.Message) error {
	stream, sch := msg.Stream, msg.Schema
	p := d.pipeline
	cfg := batch.Config{
		Job:         p.JobName(),
		TapName:     p.Target.TapName,
		StreamName:  p.Target.StreamPrefix + stream,
		Prefix:      p.Destination.Prefix,
		BatchSize:   p.BatchSize(),
		MaxLevel:    p.Batch.MaxLevel,
		Compression: p.Compression,
	}
	opts := []batch.Option{batch.WithLogger(d.batchLogger)}
	if newIDFn != nil {
		opts = append(opts, batch.WithIDGenerator(newIDFn))
	}
	b, err := batch.New(cfg, sch, d.dest, opts...)
	if err != nil {
		return fmt.Errorf("stream %q: %w", stream, err)
	}

	if cur, ok := d.runs[stream]; ok {
		if slices.Equal(cur.batcher.Columns(), b.Columns()) {
			return nil
		}
		d.logger.Info("schema changed; starting new run", zap.String("stream", stream))
		close(cur.in)
		delete(d.runs, stream)
	}

	run := &streamRun{
		name:    cfg.StreamName,
		batcher: b,
		in:      make(chan flatten.Record, p.ChannelBuffer()),
		stats:   streamStats{Stream: cfg.StreamName, KeyProperties: msg.KeyProperties},
	}
	d.logger.Debug("stream started",
		zap.String("stream", cfg.StreamName),
		zap.Strings("columns", b.Columns()),
		zap.Strings("key_properties", msg.KeyProperties),
	)
	d.runs[stream] = run
	d.mu.Lock()
	d.finished = append(d.finished, run)
	d.mu.Unlock()

	d.producers.Add(1)
	d.group.Go(func() error {
		defer d.producers.Done()
		return d.batch(ctx, run)
	})
	return nil
}

// batch drains one run and forwards its manifests to the sink.
func (d *dispatcher) batch(ctx context.Context, run *streamRun) error {
	for m, err := range run.batcher.GetBatches(ctx, run.records(ctx)) {
		if err != nil {
			return fmt.Errorf("stream %q: %w", run.name, err)
		}

		d.mu.Lock()
		run.stats.RunID = m.RunID
		run.stats.Records += m.Records()
		run.stats.Files += len(m.Files)
		for _, f := range m.Files {
			run.stats.Bytes += f.CompressedBytes
		}
		d.mu.Unlock()

		select {
		case d.out <- m:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// closeAll ends the input of every running stream.
func (d *dispatcher) closeAll() {
	for stream, run := range d.runs {
		close(run.in)
		delete(d.runs, stream)
	}
}

func (d *dispatcher) summary() summary {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := summary{Messages: d.messages, States: d.states}
	for _, run := range d.finished {
		out.Streams = append(out.Streams, run.stats)
	}
	return out
}
