package artifact

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cintfix/internal/absint"
	"cintfix/internal/cfa"
	"cintfix/internal/constraint"
	"cintfix/internal/fixguide"
)

func loc(line, off, length int) cfa.FileLocation {
	return cfa.FileLocation{File: "t.c", StartLine: line, EndLine: line, Offset: off, Length: length}
}

func TestName2LocExactFormat(t *testing.T) {
	var buf bytes.Buffer
	err := WriteName2Loc(&buf, map[string]cfa.FileLocation{
		"main::x": loc(3, 20, 10),
		"g":       loc(1, 0, 6),
	})
	if err != nil {
		t.Fatal(err)
	}
	want := `[{"varname":"g","startline":1,"endline":1,"filename":"t.c","offset":0,"length":6},` +
		`{"varname":"main::x","startline":3,"endline":3,"filename":"t.c","offset":20,"length":10}]`
	if buf.String() != want {
		t.Fatalf("got  %s\nwant %s", buf.String(), want)
	}
	back, err := ReadName2Loc(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if back["main::x"] != loc(3, 20, 10) {
		t.Fatalf("round trip: %+v", back)
	}
}

func TestEmptyArrays(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteLoc2Guide(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "[]" {
		t.Fatalf("got %q", buf.String())
	}
}

func TestNullTargetRoundTrip(t *testing.T) {
	in := `[{"startline":2,"endline":2,"filename":"t.c","offset":14,"length":3,"kind":"int","method":"check","basetype":"UINT","reflevel":-1,"target":"$NULLSTR$"}]`
	guides, err := ReadLoc2Guide(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(guides) != 1 {
		t.Fatalf("got %d guides", len(guides))
	}
	g := guides[0].Guide
	if _, ok := g.TargetName(); ok || g.Target != "" {
		t.Fatalf("null target should decode to no target, got %q", g.Target)
	}
	if g.Type != absint.UInt || g.Method != fixguide.MethodCheck {
		t.Fatalf("got %+v", g)
	}

	var buf bytes.Buffer
	if err := WriteLoc2Guide(&buf, map[cfa.FileLocation]fixguide.Guide{guides[0].Loc: g}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != in {
		t.Fatalf("re-encode:\n got  %s\n want %s", buf.String(), in)
	}
}

func TestLoc2GuideSortedAndPointer(t *testing.T) {
	m := map[cfa.FileLocation]fixguide.Guide{
		loc(5, 80, 2):  fixguide.NewPointerConv(absint.Long, 1, "main::v"),
		loc(2, 10, 30): fixguide.NewConv(absint.Short),
		loc(2, 10, 4):  fixguide.NewShiftCheck(absint.Int, true),
	}
	var buf bytes.Buffer
	if err := WriteLoc2Guide(&buf, m); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	i30 := strings.Index(out, `"length":30`)
	i4 := strings.Index(out, `"length":4,`)
	i2 := strings.Index(out, `"length":2,`)
	if !(i30 < i4 && i4 < i2) {
		t.Fatalf("records not sorted by location: %s", out)
	}
	if !strings.Contains(out, `"kind":"ptr","method":"conv","basetype":"LINT","reflevel":1,"target":"main::v"`) {
		t.Fatalf("pointer record: %s", out)
	}
	if !strings.Contains(out, `"basetype":"INT","reflevel":-10,"target":"$NULLSTR$"`) {
		t.Fatalf("shift record: %s", out)
	}
}

func TestReadLoc2GuideRejectsBadKind(t *testing.T) {
	in := `[{"startline":1,"endline":1,"filename":"t.c","offset":0,"length":1,"kind":"float","method":"check","basetype":"INT","reflevel":-1,"target":"$NULLSTR$"}]`
	if _, err := ReadLoc2Guide(strings.NewReader(in)); !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("got %v", err)
	}
}

func TestBundleRoundTrip(t *testing.T) {
	dir := Dir(t.TempDir())
	b := &Bundle{
		Source:     "t.c",
		SourceHash: HashSource([]byte("int main(void){return 0;}")),
		Constraints: []constraint.Constraint{
			constraint.Soft(constraint.DP(constraint.Var("main::x"), constraint.TypeTerm(absint.Int))),
			constraint.Hard(constraint.EQ(constraint.Var("g"), constraint.TypeTerm(absint.ULong))),
		},
		Name2Loc:  map[string]cfa.FileLocation{"main::x": loc(1, 16, 10)},
		Loc2Guide: map[cfa.FileLocation]fixguide.Guide{loc(1, 20, 3): fixguide.NewCheck(absint.Char)},
		PointsTo:  map[string]string{"main::p": "main::x"},
		IntNames:  []string{"main::x"},
	}
	if err := dir.SaveBundle(b); err != nil {
		t.Fatal(err)
	}
	got, err := dir.LoadBundle(b.SourceHash)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Constraints) != 2 || got.Constraints[0].Preds[0].Kind != constraint.PredDP || got.Constraints[1].Soft {
		t.Fatalf("constraints: %+v", got.Constraints)
	}
	if got.Constraints[1].Preds[0].Right.Type != absint.ULong {
		t.Fatalf("type term lost: %+v", got.Constraints[1])
	}
	if got.Loc2Guide[loc(1, 20, 3)].Type != absint.Char || got.PointsTo["main::p"] != "main::x" {
		t.Fatalf("bundle: %+v", got)
	}
	if _, err := dir.LoadBundle("other"); !errors.Is(err, ErrStaleCache) {
		t.Fatalf("expected stale cache, got %v", err)
	}
}

func TestWriteAtomicLeavesNoPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.fixed.i")
	if err := WriteFileAtomic(path, []byte("old")); err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	err := WriteAtomic(path, func(w io.Writer) error {
		if _, err := w.Write([]byte("partial")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "old" {
		t.Fatalf("target overwritten: %q", data)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp file left behind: %v", entries)
	}
}
