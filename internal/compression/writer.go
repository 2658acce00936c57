package compression

import (
	stdgzip "compress/gzip"
	"fmt"
	"io"

	fastgzip "github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
)

// NewWriter wraps w in a compressing writer. Closing the returned writer
// flushes the compressed stream but never closes w.
func NewWriter(w io.Writer, cfg Config) (io.WriteCloser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case TypeNone:
		return nopCloser{Writer: w}, nil
	case TypeGZIP:
		return newGZIPWriter(w, cfg.GZIP)
	case TypeZSTD:
		opts := []zstd.EOption{
			zstd.WithEncoderLevel(cfg.ZSTD.Level),
			zstd.WithWindowSize(int(cfg.ZSTD.WindowSize.Bytes())),
		}
		if cfg.ZSTD.Concurrency > 0 {
			opts = append(opts, zstd.WithEncoderConcurrency(cfg.ZSTD.Concurrency))
		}
		enc, err := zstd.NewWriter(w, opts...)
		if err != nil {
			return nil, fmt.Errorf("cannot create zstd writer: %w", err)
		}
		return enc, nil
	default:
		return nil, fmt.Errorf("unexpected compression type %q", cfg.Type)
	}
}

func newGZIPWriter(w io.Writer, cfg *GZIPConfig) (io.WriteCloser, error) {
	switch cfg.Impl {
	case GZIPImplStandard:
		gz, err := stdgzip.NewWriterLevel(w, cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("cannot create gzip writer: %w", err)
		}
		return gz, nil
	case GZIPImplFast:
		gz, err := fastgzip.NewWriterLevel(w, cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("cannot create gzip writer: %w", err)
		}
		return gz, nil
	case GZIPImplParallel:
		gz, err := pgzip.NewWriterLevel(w, cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("cannot create parallel gzip writer: %w", err)
		}
		if cfg.Concurrency > 0 {
			if err := gz.SetConcurrency(int(cfg.BlockSize.Bytes()), cfg.Concurrency); err != nil {
				return nil, fmt.Errorf("cannot set parallel gzip concurrency: %w", err)
			}
		}
		return gz, nil
	default:
		return nil, fmt.Errorf("unexpected gzip implementation %q", cfg.Impl)
	}
}

// NewReader wraps r in a decompressing reader for typ.
func NewReader(r io.Reader, typ Type) (io.ReadCloser, error) {
	switch typ {
	case TypeNone:
		return io.NopCloser(r), nil
	case TypeGZIP:
		gz, err := fastgzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("cannot create gzip reader: %w", err)
		}
		return gz, nil
	case TypeZSTD:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("cannot create zstd reader: %w", err)
		}
		return dec.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unexpected compression type %q", typ)
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
