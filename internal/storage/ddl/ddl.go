// Package ddl renders CREATE TABLE statements for the supported SQL
// dialects from a database-agnostic table model.
package ddl

import (
	"fmt"
	"strings"
)

// ColumnDef describes one column. Name is unquoted; quoting happens at
// render time.
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// TableDef is a dotted table name ("schema.table") plus ordered columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// Dialect holds the per-database rendering rules.
type Dialect struct {
	Name string
	// QuoteIdent quotes one identifier segment.
	QuoteIdent func(id string) string
	// Guard wraps a plain CREATE TABLE for databases without
	// CREATE TABLE IF NOT EXISTS. Nil means IF NOT EXISTS is supported.
	Guard func(fqn, create string) string
}

// QuoteFQN quotes each dot-separated segment of fqn.
func (d Dialect) QuoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, d.QuoteIdent(p))
	}
	return strings.Join(out, ".")
}

// CreateTable renders an idempotent CREATE TABLE statement for t:
//
//	CREATE TABLE IF NOT EXISTS "table" (
//	  "col1" TYPE NOT NULL,
//	  "col2" TYPE,
//	  PRIMARY KEY ("col1")
//	);
func (d Dialect) CreateTable(t TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("%s ddl: table FQN must not be empty", d.Name)
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("%s ddl: at least one column is required", d.Name)
	}

	cols := make([]string, 0, len(t.Columns)+1)
	var pks []string
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("%s ddl: column with empty name in table %s", d.Name, fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("%s ddl: column %s missing SQLType", d.Name, name)
		}

		var sb strings.Builder
		sb.WriteString(d.QuoteIdent(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, d.QuoteIdent(name))
		}
	}
	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	body := fmt.Sprintf("(\n  %s\n)", strings.Join(cols, ",\n  "))
	if d.Guard != nil {
		return d.Guard(fqn, fmt.Sprintf("CREATE TABLE %s %s;", d.QuoteFQN(fqn), body)), nil
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s %s;", d.QuoteFQN(fqn), body), nil
}

// DoubleQuote quotes an identifier with double quotes (ANSI, Postgres,
// SQLite).
func DoubleQuote(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// Brackets quotes an identifier with [brackets] (SQL Server).
func Brackets(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

// Backticks quotes an identifier with `backticks` (MySQL).
func Backticks(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }
