package mysql

import (
	"context"
	"strings"
	"testing"

	"csvbatch/internal/storage"
)

type execRecorder struct {
	storage.Repository
	stmts []string
}

func (e *execRecorder) Exec(_ context.Context, sql string) error {
	e.stmts = append(e.stmts, sql)
	return nil
}

// TestQuoting verifies backtick quoting of identifiers and dotted names.
func TestQuoting(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want string
	}{
		{"table", "`table`"},
		{"hr.table", "`hr`.`table`"},
		{"tick`name", "`tick``name`"},
	}
	for _, tc := range cases {
		if got := Dialect.QuoteFQN(tc.in); got != tc.want {
			t.Fatalf("QuoteFQN(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestBuildInsert(t *testing.T) {
	t.Parallel()

	query, args, err := buildInsert("etl.manifests", []string{"a", "b"}, [][]any{{1, "x"}, {2, nil}})
	if err != nil {
		t.Fatalf("buildInsert error: %v", err)
	}
	want := "INSERT INTO `etl`.`manifests` (`a`, `b`) VALUES (?, ?), (?, ?)"
	if query != want {
		t.Fatalf("query = %q; want %q", query, want)
	}
	if len(args) != 4 || args[0] != 1 || args[1] != "x" || args[3] != nil {
		t.Fatalf("args = %#v", args)
	}

	if _, _, err := buildInsert("t", []string{"a", "b"}, [][]any{{1}}); err == nil {
		t.Fatal("expected row length error")
	}
}

func TestAdapterRegistration(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var gotCfg Config
	closed := false
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		gotCfg = cfg
		return &Repository{}, func() { closed = true }, nil
	}

	repo, err := storage.New(context.Background(), storage.Config{Kind: Kind, DSN: "u:p@tcp(localhost:3306)/etl", Table: "manifests"})
	if err != nil {
		t.Fatalf("storage.New error: %v", err)
	}
	if gotCfg.DSN != "u:p@tcp(localhost:3306)/etl" || gotCfg.Table != "manifests" {
		t.Fatalf("cfg = %+v", gotCfg)
	}
	repo.Close()
	if !closed {
		t.Fatal("Close() did not invoke closeFn")
	}
}

func TestDDLBootstrap(t *testing.T) {
	t.Parallel()

	rec := &execRecorder{}
	if err := storage.EnsureTable(context.Background(), Kind, rec, "manifests"); err != nil {
		t.Fatalf("EnsureTable error: %v", err)
	}
	stmt := rec.stmts[0]
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS `manifests` (",
		"`stream` VARCHAR(255) NOT NULL",
		"`created_at` DATETIME(6) NOT NULL",
		"PRIMARY KEY (`run_id`, `stream`, `seq`)",
	} {
		if !strings.Contains(stmt, want) {
			t.Fatalf("DDL missing %q:\n%s", want, stmt)
		}
	}
}

func TestNewRepository_InvalidDSN(t *testing.T) {
	t.Parallel()

	if _, _, err := NewRepository(context.Background(), Config{DSN: "not a dsn"}); err == nil {
		t.Fatal("expected DSN parse error")
	}
}

func TestCopyFrom_EmptyInput(t *testing.T) {
	t.Parallel()

	r := &Repository{}
	if _, err := r.CopyFrom(context.Background(), nil, [][]any{{1}}); err == nil {
		t.Fatal("expected error for empty columns")
	}
	if n, err := r.CopyFrom(context.Background(), []string{"a"}, nil); err != nil || n != 0 {
		t.Fatalf("CopyFrom(no rows) = %d, %v", n, err)
	}
}
