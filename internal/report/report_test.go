package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cintfix/internal/absint"
	"cintfix/internal/cfa"
	"cintfix/internal/fixguide"
	"cintfix/internal/rewrite"
)

func sampleResult() *RunResult {
	loc := func(line, off, n int) cfa.FileLocation {
		return cfa.FileLocation{File: "a.c", StartLine: line, EndLine: line, Offset: off, Length: n}
	}
	return &RunResult{
		Workers:  2,
		Duration: time.Second,
		Units: []UnitResult{
			{
				File:      "b.c",
				Stage:     StageFix,
				Objective: -1,
				Err:       errors.New("b.c: solver failed"),
			},
			{
				File:        "a.c",
				Stage:       StageFix,
				Output:      "a.fixed.i",
				Constraints: 4,
				Variables:   2,
				Guides:      1,
				Solved:      2,
				Objective:   3,
				Locations:   2,
				Changes: []rewrite.Change{
					{Loc: loc(1, 0, 14), Mode: fixguide.ModeSpecifier, Type: absint.Short, Node: "declaration", Detail: "short"},
					{Loc: loc(3, 40, 5), Mode: fixguide.ModeSanityCheck, Type: absint.Short, Node: "binary_expression", Detail: "__INTCHECK_SHORT_S"},
					{Loc: loc(3, 40, 5), Mode: fixguide.ModeConversion, Type: absint.Long, Node: "binary_expression", Detail: "(long)"},
				},
			},
		},
	}
}

func TestRunResultCounts(t *testing.T) {
	r := sampleResult()
	if r.Failed() != 1 {
		t.Errorf("Failed = %d", r.Failed())
	}
	if r.Locations() != 2 {
		t.Errorf("Locations = %d", r.Locations())
	}
	byMode := r.ByMode()
	if byMode[fixguide.ModeSpecifier] != 1 || byMode[fixguide.ModeSanityCheck] != 1 || byMode[fixguide.ModeConversion] != 1 {
		t.Errorf("ByMode = %v", byMode)
	}
	r.Sort()
	if r.Units[0].File != "a.c" {
		t.Errorf("Sort did not order by file: %s", r.Units[0].File)
	}
}

func TestTextWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewTextWriter(&buf, WithVerbose()).Write(sampleResult()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Translation units: 2 (1 failed)",
		"Fixed locations: 2",
		"check: 1",
		"FAIL",
		"b.c: solver failed",
		"2 locations -> a.fixed.i",
		"__INTCHECK_SHORT_S",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text report missing %q:\n%s", want, out)
		}
	}
}

func TestJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONWriter(&buf).Write(sampleResult()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var got JSONReport
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Tool.Name != ToolName || got.Summary.Units != 2 || got.Summary.Failed != 1 {
		t.Fatalf("summary = %+v", got.Summary)
	}
	if got.Summary.ByMode["specifier"] != 1 {
		t.Errorf("by_mode = %v", got.Summary.ByMode)
	}
	if got.Units[0].Error == "" || got.Units[0].Objective != nil {
		t.Errorf("failed unit = %+v", got.Units[0])
	}
	ok := got.Units[1]
	if ok.Objective == nil || *ok.Objective != 3 || len(ok.Changes) != 3 {
		t.Fatalf("unit = %+v", ok)
	}
	if c := ok.Changes[1]; c.Mode != "check" || c.Type != "SHORT" || c.Offset != 40 || c.Length != 5 {
		t.Errorf("change = %+v", c)
	}
}

func TestSARIFWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewSARIFWriter(&buf).Write(sampleResult()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var got SARIF
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid SARIF: %v", err)
	}
	if got.Version != "2.1.0" || len(got.Runs) != 1 {
		t.Fatalf("sarif = %+v", got)
	}
	run := got.Runs[0]
	if len(run.Tool.Driver.Rules) != 3 {
		t.Fatalf("rules = %+v", run.Tool.Driver.Rules)
	}
	if len(run.Results) != 3 {
		t.Fatalf("results = %d", len(run.Results))
	}
	for _, r := range run.Results {
		if run.Tool.Driver.Rules[r.RuleIndex].ID != r.RuleID {
			t.Errorf("rule index %d does not match %s", r.RuleIndex, r.RuleID)
		}
	}
	if r := run.Results[1]; r.RuleID != RuleCheck || r.Level != "warning" {
		t.Errorf("check result = %+v", r)
	}
	if reg := run.Results[0].Locations[0].PhysicalLocation.Region; reg == nil || reg.StartLine != 1 || reg.CharLength != 14 {
		t.Errorf("region = %+v", reg)
	}
	inv := run.Invocations[0]
	if inv.ExecutionSuccessful || len(inv.ToolExecutionNotifications) != 1 {
		t.Errorf("invocation = %+v", inv)
	}
}

func TestManagerGenerate(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(WithFormat(FormatAll), WithOutputDir(dir), WithConsoleColor(true))
	files, err := m.Generate(sampleResult())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("files = %v", files)
	}
	for _, ext := range []string{"json", "text", "sarif"} {
		path := filepath.Join(dir, "cintfix_report."+ext)
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		// 文件里不应有终端转义序列
		if bytes.Contains(data, []byte("\x1b[")) {
			t.Errorf("%s contains color escapes", path)
		}
	}
}

func TestManagerPrintRejectsUnknownFormat(t *testing.T) {
	m := NewManager(WithFormat("xml"))
	if err := m.Print(&bytes.Buffer{}, sampleResult()); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		ok   bool
	}{
		{"JSON", FormatJSON, true},
		{"", FormatText, true},
		{"sarif", FormatSARIF, true},
		{"all", FormatAll, true},
		{"xml", "", false},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}
