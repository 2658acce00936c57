package config

import (
	"strings"
	"testing"

	"csvbatch/internal/compression"

	// manifest kinds are validated against the registered backends.
	_ "csvbatch/internal/storage/all"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func valid() Pipeline {
	p := Default()
	p.Target.TapName = "tap"
	p.Destination.Root = "/data"
	return p
}

func TestValidatePipeline_ValidMinimal(t *testing.T) {
	t.Parallel()

	if issues := ValidatePipeline(valid()); len(issues) != 0 {
		t.Fatalf("expected no issues, got %+v", issues)
	}
}

func TestValidatePipeline_Cases(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(p *Pipeline)
		sev    IssueSeverity
		path   string
		msg    string
	}{
		{"missing tap", func(p *Pipeline) { p.Target.TapName = " " }, SeverityError, "target.tap_name", "must not be empty"},
		{"prefix with slash", func(p *Pipeline) { p.Target.StreamPrefix = "a/" }, SeverityWarning, "target.stream_prefix", "path separator"},
		{"negative size", func(p *Pipeline) { p.Batch.Size = -1 }, SeverityError, "batch.size", "negative"},
		{"negative level", func(p *Pipeline) { p.Batch.MaxLevel = -2 }, SeverityError, "batch.max_level", "negative"},
		{"deep level", func(p *Pipeline) { p.Batch.MaxLevel = 11 }, SeverityWarning, "batch.max_level", "wide"},
		{"no destination", func(p *Pipeline) { p.Destination.Kind = "" }, SeverityError, "destination.kind", "must not be empty"},
		{"unknown destination", func(p *Pipeline) { p.Destination.Kind = "s3" }, SeverityError, "destination.kind", `unknown destination kind "s3"`},
		{"empty root", func(p *Pipeline) { p.Destination.Root = "" }, SeverityWarning, "destination.root", "working directory"},
		{"memory destination", func(p *Pipeline) { p.Destination.Kind = "memory" }, SeverityWarning, "destination.kind", "discards"},
		{"bad gzip level", func(p *Pipeline) { p.Compression.GZIP.Level = 42 }, SeverityError, "compression.gzip.level", "between 1 and 9"},
		{"bad compression type", func(p *Pipeline) { p.Compression.Type = compression.Type("lz4") }, SeverityError, "compression.type", "lz4"},
		{"unknown manifest kind", func(p *Pipeline) { p.Manifest = Manifest{Kind: "oracle", DSN: "x", Table: "t"} }, SeverityError, "manifest.kind", "oracle"},
		{"manifest without dsn", func(p *Pipeline) { p.Manifest.Kind = "sqlite" }, SeverityError, "manifest.dsn", "must not be empty"},
		{"manifest without table", func(p *Pipeline) { p.Manifest = Manifest{Kind: "sqlite", DSN: "m.db"} }, SeverityError, "manifest.table", "must not be empty"},
		{"pushgateway without url", func(p *Pipeline) { p.Metrics.Backend = "pushgateway" }, SeverityError, "metrics.pushgateway_url", "requires"},
		{"datadog without addr", func(p *Pipeline) { p.Metrics.Backend = "datadog" }, SeverityError, "metrics.datadog_addr", "requires"},
		{"unknown metrics", func(p *Pipeline) { p.Metrics.Backend = "graphite" }, SeverityError, "metrics.backend", "graphite"},
		{"negative buffer", func(p *Pipeline) { p.Runtime.ChannelBuffer = -1 }, SeverityError, "runtime.channel_buffer", "negative"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := valid()
			gz := *p.Compression.GZIP
			p.Compression.GZIP = &gz
			tc.mutate(&p)
			issues := ValidatePipeline(p)
			if !hasIssue(t, issues, tc.sev, tc.path, tc.msg) {
				t.Fatalf("expected %s at %s containing %q; got %+v", tc.sev, tc.path, tc.msg, issues)
			}
		})
	}
}

func TestErrors(t *testing.T) {
	t.Parallel()

	issues := []Issue{
		{Severity: SeverityWarning, Path: "a"},
		{Severity: SeverityError, Path: "b", Message: "boom"},
	}
	errs := Errors(issues)
	if len(errs) != 1 || errs[0].Path != "b" {
		t.Fatalf("Errors() = %+v", errs)
	}
	if got := errs[0].Error(); got != "error at b: boom" {
		t.Fatalf("Issue.Error() = %q", got)
	}
}
