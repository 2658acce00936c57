package storage

import (
	"time"

	"csvbatch/internal/batch"
	"csvbatch/internal/storage/ddl"
)

// Column is a manifest table column with a logical type.
type Column struct {
	Name string
	// Kind is one of "id", "name", "text", "int", "bigint" or "timestamp";
	// each backend maps it to a SQL type.
	Kind string
	Key  bool
}

// ManifestSchema is the manifest table layout. One row is stored per batch
// file.
var ManifestSchema = []Column{
	{Name: "run_id", Kind: "id", Key: true},
	{Name: "tap", Kind: "name"},
	{Name: "stream", Kind: "name", Key: true},
	{Name: "seq", Kind: "int", Key: true},
	{Name: "url", Kind: "text"},
	{Name: "records", Kind: "bigint"},
	{Name: "uncompressed_bytes", Kind: "bigint"},
	{Name: "compressed_bytes", Kind: "bigint"},
	{Name: "checksum", Kind: "id"},
	{Name: "created_at", Kind: "timestamp"},
}

// ManifestColumns returns the column names of ManifestSchema in order.
func ManifestColumns() []string {
	out := make([]string, len(ManifestSchema))
	for i, c := range ManifestSchema {
		out[i] = c.Name
	}
	return out
}

// ManifestTable describes the manifest table fqn using mapType to pick SQL
// types.
func ManifestTable(fqn string, mapType func(kind string) string) ddl.TableDef {
	cols := make([]ddl.ColumnDef, len(ManifestSchema))
	for i, c := range ManifestSchema {
		cols[i] = ddl.ColumnDef{
			Name:       c.Name,
			SQLType:    mapType(c.Kind),
			PrimaryKey: c.Key,
		}
	}
	return ddl.TableDef{FQN: fqn, Columns: cols}
}

// ManifestRows converts m into rows aligned to ManifestColumns.
func ManifestRows(m batch.Manifest, createdAt time.Time) [][]any {
	rows := make([][]any, 0, len(m.Files))
	for _, f := range m.Files {
		rows = append(rows, []any{
			m.RunID,
			m.Tap,
			m.Stream,
			m.Seq,
			f.URL,
			int64(f.Records),
			f.UncompressedBytes,
			f.CompressedBytes,
			f.Checksum,
			createdAt.UTC(),
		})
	}
	return rows
}
