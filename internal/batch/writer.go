package batch

import (
	"context"
	"fmt"
	"io"

	"github.com/zeebo/xxh3"
	"go.uber.org/multierr"

	"csvbatch/internal/batcherr"
	"csvbatch/internal/compression"
	"csvbatch/internal/destination"
	"csvbatch/internal/encoder"
	"csvbatch/internal/flatten"
)

// Writer writes one chunk of records to one compressed file.
//
// A Writer reuses its line buffer between calls and is not safe for
// concurrent use.
type Writer struct {
	dest        destination.Factory
	compression compression.Config
	flattener   *flatten.Flattener
	line        *encoder.Line
	buf         []byte
}

// NewWriter returns a Writer emitting the columns of flattener in order.
func NewWriter(dest destination.Factory, flattener *flatten.Flattener, comp compression.Config) *Writer {
	return &Writer{
		dest:        dest,
		compression: comp,
		flattener:   flattener,
		line:        encoder.NewLine(flattener.Columns()),
		buf:         make([]byte, 0, 4096),
	}
}

// Write encodes records into the file name and returns its description.
//
// The compressor is closed before the destination on every path. The URL is
// requested only after both are closed.
func (w *Writer) Write(ctx context.Context, name string, records []flatten.Record) (FileInfo, error) {
	info := FileInfo{Name: name}
	if err := w.write(ctx, name, records, &info); err != nil {
		return info, err
	}

	url, err := w.dest.URL(name)
	if err != nil {
		return info, &batcherr.StorageError{Op: "url", Name: name, Err: err}
	}
	info.URL = url
	return info, nil
}

func (w *Writer) write(ctx context.Context, name string, records []flatten.Record, info *FileInfo) (err error) {
	out, err := w.dest.Open(ctx, name)
	if err != nil {
		return &batcherr.StorageError{Op: "open", Name: name, Err: err}
	}
	defer func() {
		if cerr := out.Close(); cerr != nil {
			err = multierr.Append(err, &batcherr.StorageError{Op: "close", Name: name, Err: cerr})
		}
	}()

	compressed := &countingWriter{w: out}
	zw, err := compression.NewWriter(compressed, w.compression)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := zw.Close(); cerr != nil {
			err = multierr.Append(err, &batcherr.StorageError{Op: "close", Name: name, Err: cerr})
		}
		info.CompressedBytes = compressed.n
	}()

	return w.encode(ctx, zw, name, records, info)
}

func (w *Writer) encode(ctx context.Context, zw io.Writer, name string, records []flatten.Record, info *FileInfo) error {
	hash := xxh3.New()
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		flat, err := w.flattener.Flatten(rec)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		w.buf, err = w.line.Append(w.buf[:0], flat)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		w.buf = append(w.buf, '\n')

		_, _ = hash.Write(w.buf)
		n, err := zw.Write(w.buf)
		info.UncompressedBytes += int64(n)
		if err != nil {
			return &batcherr.StorageError{Op: "write", Name: name, Err: err}
		}
		info.Records++
	}
	info.Checksum = fmt.Sprintf("%016x", hash.Sum64())
	return nil
}

// countingWriter counts bytes passed through to w.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
