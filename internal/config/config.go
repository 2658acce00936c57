// Package config defines the pipeline file consumed by the csvbatch CLI.
//
// Files ending in .yaml or .yml are decoded as YAML, anything else as JSON.
// Unknown keys are rejected. Example (YAML):
//
//	target:
//	  tap_name: tap-postgres
//	  stream_prefix: "prod_"
//	batch:
//	  size: 10000
//	  max_level: 1
//	destination:
//	  kind: local
//	  root: /var/lib/csvbatch
//	  prefix: "raw/"
//	  create: true
//	compression:
//	  type: gzip
//	  gzip: { level: 1, impl: fast }
//	manifest:
//	  kind: sqlite
//	  dsn: manifests.db
//	  table: batch_manifests
//	  auto_create_table: true
//	metrics:
//	  backend: pushgateway
//	  pushgateway_url: http://pushgateway:9091
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"csvbatch/internal/compression"
	"csvbatch/internal/destination"
)

const (
	DefaultBatchSize     = 10000
	DefaultChannelBuffer = 4096
	DefaultManifestTable = "batch_manifests"
)

// Pipeline is the top-level object of a pipeline file.
type Pipeline struct {
	// Job labels metrics; defaults to Target.TapName.
	Job string `json:"job" yaml:"job"`

	Target      Target             `json:"target" yaml:"target"`
	Batch       Batch              `json:"batch" yaml:"batch"`
	Destination Destination        `json:"destination" yaml:"destination"`
	Compression compression.Config `json:"compression" yaml:"compression"`
	Manifest    Manifest           `json:"manifest" yaml:"manifest"`
	Metrics     Metrics            `json:"metrics" yaml:"metrics"`
	Runtime     Runtime            `json:"runtime" yaml:"runtime"`
}

// Target names the tap whose output is being batched.
type Target struct {
	TapName string `json:"tap_name" yaml:"tap_name"`
	// StreamPrefix is prepended to every stream name in filenames.
	StreamPrefix string `json:"stream_prefix" yaml:"stream_prefix"`
}

// Batch controls chunking and flattening.
type Batch struct {
	// Size is the number of records per file; 0 means CSVBATCH_BATCH_SIZE or
	// DefaultBatchSize.
	Size     int `json:"size" yaml:"size"`
	MaxLevel int `json:"max_level" yaml:"max_level"`
}

// Destination selects where batch files are written.
type Destination struct {
	Kind   string `json:"kind" yaml:"kind"`
	Root   string `json:"root" yaml:"root"`
	Prefix string `json:"prefix" yaml:"prefix"`
	Create bool   `json:"create" yaml:"create"`
}

// Factory returns the destination.Config for the selected backend.
func (d Destination) Factory() destination.Config {
	return destination.Config{Kind: d.Kind, Root: d.Root, Create: d.Create}
}

// Manifest optionally records every written file in a SQL table. An empty
// Kind disables it.
type Manifest struct {
	Kind            string `json:"kind" yaml:"kind"`
	DSN             string `json:"dsn" yaml:"dsn"`
	Table           string `json:"table" yaml:"table"`
	AutoCreateTable bool   `json:"auto_create_table" yaml:"auto_create_table"`
	// BatchSize is the number of manifest rows per insert.
	BatchSize int `json:"batch_size" yaml:"batch_size"`
}

// Enabled reports whether a manifest store is configured.
func (m Manifest) Enabled() bool { return strings.TrimSpace(m.Kind) != "" }

// Metrics selects the metrics backend: "", "none", "pushgateway" or
// "datadog".
type Metrics struct {
	Backend        string   `json:"backend" yaml:"backend"`
	PushgatewayURL string   `json:"pushgateway_url" yaml:"pushgateway_url"`
	DatadogAddr    string   `json:"datadog_addr" yaml:"datadog_addr"`
	Namespace      string   `json:"namespace" yaml:"namespace"`
	Tags           []string `json:"tags" yaml:"tags"`
}

// Runtime controls buffering between the reader and stream pipelines.
type Runtime struct {
	ChannelBuffer int `json:"channel_buffer" yaml:"channel_buffer"`
}

// Default returns a Pipeline with defaults for every optional section. Files
// are decoded on top of it.
func Default() Pipeline {
	gz := compression.NewGZIPConfig()
	zs := compression.NewZSTDConfig()
	return Pipeline{
		Destination: Destination{Kind: destination.KindLocal, Root: ".", Create: true},
		Compression: compression.Config{Type: compression.TypeGZIP, GZIP: gz.GZIP, ZSTD: zs.ZSTD},
		Manifest:    Manifest{Table: DefaultManifestTable, AutoCreateTable: true},
	}
}

// Load reads and decodes the pipeline file at path from the OS filesystem.
func Load(path string) (Pipeline, error) {
	return LoadFS(afero.NewOsFs(), path)
}

// LoadFS reads and decodes the pipeline file at path from fs.
func LoadFS(fs afero.Fs, path string) (Pipeline, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("read config %q: %w", path, err)
	}
	p, err := Decode(data, filepath.Ext(path))
	if err != nil {
		return Pipeline{}, fmt.Errorf("decode config %q: %w", path, err)
	}
	return p, nil
}

// Decode decodes data on top of Default. ext selects the format.
func Decode(data []byte, ext string) (Pipeline, error) {
	p := Default()
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil {
			return Pipeline{}, err
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return Pipeline{}, err
		}
	}
	return p, nil
}

// JobName returns Job, falling back to the tap name.
func (p Pipeline) JobName() string {
	if strings.TrimSpace(p.Job) != "" {
		return p.Job
	}
	return p.Target.TapName
}

// BatchSize returns batch.size, else CSVBATCH_BATCH_SIZE, else the default.
func (p Pipeline) BatchSize() int {
	return pickInt(p.Batch.Size, getenvInt("CSVBATCH_BATCH_SIZE", DefaultBatchSize))
}

// ChannelBuffer returns runtime.channel_buffer, else CSVBATCH_CH_BUFFER,
// else the default.
func (p Pipeline) ChannelBuffer() int {
	return pickInt(p.Runtime.ChannelBuffer, getenvInt("CSVBATCH_CH_BUFFER", DefaultChannelBuffer))
}

// ManifestBatchSize returns manifest.batch_size or 100.
func (p Pipeline) ManifestBatchSize() int {
	return pickInt(p.Manifest.BatchSize, 100)
}

// getenvInt reads an int from environment, returning def when unset/invalid.
func getenvInt(k string, def int) int {
	if s := os.Getenv(k); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

// pickInt chooses the first positive value 'a', otherwise returns 'b'.
func pickInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}
