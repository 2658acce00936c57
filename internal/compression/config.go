// Package compression selects and constructs the stream compressor applied to
// every batch file.
package compression

import (
	"compress/gzip"
	"fmt"
	"runtime"

	"github.com/c2h5oh/datasize"
	"github.com/klauspost/compress/zstd"

	"csvbatch/internal/batcherr"
)

const (
	TypeNone Type = "none"
	TypeGZIP Type = "gzip"
	TypeZSTD Type = "zstd"
)

const (
	GZIPImplStandard GZIPImplementation = "standard"
	GZIPImplFast     GZIPImplementation = "fast"
	GZIPImplParallel GZIPImplementation = "parallel"
)

const (
	DefaultGZIPLevel     = gzip.BestSpeed // 1-9
	DefaultGZIPImpl      = GZIPImplFast
	DefaultGZIPBlockSize = 256 * datasize.KB

	DefaultZSTDLevel      = zstd.SpeedFastest // 1-4
	DefaultZSTDWindowSize = 256 * datasize.KB
)

// Type of the compression.
type Type string

// GZIPImplementation selects the gzip library.
type GZIPImplementation string

// Config for the compression writer and reader.
type Config struct {
	Type Type        `json:"type" yaml:"type"`
	GZIP *GZIPConfig `json:"gzip,omitempty" yaml:"gzip,omitempty"`
	ZSTD *ZSTDConfig `json:"zstd,omitempty" yaml:"zstd,omitempty"`
}

type GZIPConfig struct {
	Level       int                `json:"level" yaml:"level"`
	Impl        GZIPImplementation `json:"impl" yaml:"impl"`
	BlockSize   datasize.ByteSize  `json:"block_size" yaml:"block_size"`
	Concurrency int                `json:"concurrency" yaml:"concurrency"` // 0 = auto
}

type ZSTDConfig struct {
	Level       zstd.EncoderLevel `json:"level" yaml:"level"`
	WindowSize  datasize.ByteSize `json:"window_size" yaml:"window_size"`
	Concurrency int               `json:"concurrency" yaml:"concurrency"` // 0 = auto
}

func NewConfig() Config {
	return NewGZIPConfig()
}

func NewNoneConfig() Config {
	return Config{Type: TypeNone}
}

func NewGZIPConfig() Config {
	return Config{
		Type: TypeGZIP,
		GZIP: &GZIPConfig{
			Level:       DefaultGZIPLevel,
			Impl:        DefaultGZIPImpl,
			BlockSize:   DefaultGZIPBlockSize,
			Concurrency: runtime.GOMAXPROCS(0),
		},
	}
}

func NewZSTDConfig() Config {
	return Config{
		Type: TypeZSTD,
		ZSTD: &ZSTDConfig{
			Level:       DefaultZSTDLevel,
			WindowSize:  DefaultZSTDWindowSize,
			Concurrency: runtime.GOMAXPROCS(0),
		},
	}
}

// Validate checks the config for the selected type.
func (c Config) Validate() error {
	switch c.Type {
	case TypeNone:
		return nil
	case TypeGZIP:
		if c.GZIP == nil {
			return invalid("gzip", "is required for type gzip")
		}
		return c.GZIP.validate()
	case TypeZSTD:
		if c.ZSTD == nil {
			return invalid("zstd", "is required for type zstd")
		}
		return c.ZSTD.validate()
	default:
		return invalid("type", fmt.Sprintf("must be one of [none gzip zstd], got %q", c.Type))
	}
}

func (c *GZIPConfig) validate() error {
	if c.Level < gzip.BestSpeed || c.Level > gzip.BestCompression {
		return invalid("gzip.level", fmt.Sprintf("must be between 1 and 9, got %d", c.Level))
	}
	switch c.Impl {
	case GZIPImplStandard, GZIPImplFast:
	case GZIPImplParallel:
		if c.BlockSize < 16*datasize.KB || c.BlockSize > 100*datasize.MB {
			return invalid("gzip.block_size", fmt.Sprintf("must be between 16KB and 100MB, got %s", c.BlockSize.HumanReadable()))
		}
	default:
		return invalid("gzip.impl", fmt.Sprintf("must be one of [standard fast parallel], got %q", c.Impl))
	}
	if c.Concurrency < 0 {
		return invalid("gzip.concurrency", "must be >= 0")
	}
	return nil
}

func (c *ZSTDConfig) validate() error {
	if c.Level < zstd.SpeedFastest || c.Level > zstd.SpeedBestCompression {
		return invalid("zstd.level", fmt.Sprintf("must be between 1 and 4, got %d", c.Level))
	}
	ws := c.WindowSize.Bytes()
	if ws < zstd.MinWindowSize || ws > zstd.MaxWindowSize || ws&(ws-1) != 0 {
		return invalid("zstd.window_size", fmt.Sprintf("must be a power of two between 1KB and 512MB, got %s", c.WindowSize.HumanReadable()))
	}
	if c.Concurrency < 0 {
		return invalid("zstd.concurrency", "must be >= 0")
	}
	return nil
}

func invalid(field, msg string) error {
	return &batcherr.ConfigurationError{Field: "compression." + field, Message: msg}
}
