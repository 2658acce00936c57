package compression

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csvbatch/internal/batcherr"
)

func TestFilename(t *testing.T) {
	t.Parallel()

	cases := []struct {
		expected string
		t        Type
	}{
		{"file.csv", TypeNone},
		{"file.csv.gz", TypeGZIP},
		{"file.csv.zstd", TypeZSTD},
		{"", "invalid"},
	}

	for _, tc := range cases {
		filename, err := Filename("file.csv", tc.t)
		if tc.expected == "" {
			require.Error(t, err)
		} else {
			require.NoError(t, err)
			assert.Equal(t, tc.expected, filename)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name          string
		expectedField string
		config        Config
	}{
		{name: "default ok", config: NewConfig()},
		{name: "none ok", config: NewNoneConfig()},
		{name: "zstd ok", config: NewZSTDConfig()},
		{name: "empty", expectedField: "compression.type", config: Config{}},
		{name: "gzip missing", expectedField: "compression.gzip", config: Config{Type: TypeGZIP}},
		{
			name:          "gzip level",
			expectedField: "compression.gzip.level",
			config:        Config{Type: TypeGZIP, GZIP: &GZIPConfig{Level: 0, Impl: GZIPImplFast}},
		},
		{
			name:          "gzip impl",
			expectedField: "compression.gzip.impl",
			config:        Config{Type: TypeGZIP, GZIP: &GZIPConfig{Level: 1, Impl: "turbo"}},
		},
		{
			name:          "parallel block size",
			expectedField: "compression.gzip.block_size",
			config:        Config{Type: TypeGZIP, GZIP: &GZIPConfig{Level: 1, Impl: GZIPImplParallel, BlockSize: datasize.KB}},
		},
		{
			name:          "zstd window not power of two",
			expectedField: "compression.zstd.window_size",
			config:        Config{Type: TypeZSTD, ZSTD: &ZSTDConfig{Level: DefaultZSTDLevel, WindowSize: 3 * datasize.KB}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.config.Validate()
			if tc.expectedField == "" {
				require.NoError(t, err)
				return
			}
			var cfgErr *batcherr.ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tc.expectedField, cfgErr.Field)
		})
	}
}

func TestWriter_RoundTrip(t *testing.T) {
	t.Parallel()

	standard := NewGZIPConfig()
	standard.GZIP.Impl = GZIPImplStandard
	parallel := NewGZIPConfig()
	parallel.GZIP.Impl = GZIPImplParallel
	parallel.GZIP.Concurrency = 2

	configs := map[string]Config{
		"none":          NewNoneConfig(),
		"gzip fast":     NewGZIPConfig(),
		"gzip standard": standard,
		"gzip parallel": parallel,
		"zstd":          NewZSTDConfig(),
	}

	payload := strings.Repeat("1,\"value\",0.10\n", 5000)

	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			w, err := NewWriter(&buf, cfg)
			require.NoError(t, err)
			_, err = io.WriteString(w, payload)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			if cfg.Type != TypeNone {
				assert.Less(t, buf.Len(), len(payload))
			}

			r, err := NewReader(&buf, cfg.Type)
			require.NoError(t, err)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			require.NoError(t, r.Close())
			assert.Equal(t, payload, string(got))
		})
	}
}

func TestNewWriter_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := NewWriter(io.Discard, Config{Type: "lz4"})
	var cfgErr *batcherr.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
}
