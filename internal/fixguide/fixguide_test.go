package fixguide

import (
	"testing"

	"cintfix/internal/absint"
)

func permutations(in []Solution) [][]Solution {
	if len(in) <= 1 {
		return [][]Solution{append([]Solution(nil), in...)}
	}
	var out [][]Solution
	for i := range in {
		rest := make([]Solution, 0, len(in)-1)
		rest = append(rest, in[:i]...)
		rest = append(rest, in[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]Solution{in[i]}, p...))
		}
	}
	return out
}

func TestMergeOrderIndependent(t *testing.T) {
	sets := [][]absint.IntType{
		{absint.Char, absint.UInt, absint.Short},
		{absint.UChar, absint.Long, absint.ULongLong},
		{absint.Int, absint.UInt, absint.LongLong},
	}
	for _, types := range sets {
		for _, mode := range []Mode{ModeSpecifier, ModeConversion} {
			var sols []Solution
			for _, ty := range types {
				s := NewSpecifier(ty)
				s.Mode = mode
				sols = append(sols, s)
			}
			var want *absint.IntType
			for _, perm := range permutations(sols) {
				got := mergeList("test", perm)
				if want == nil {
					w := got.Type
					want = &w
					continue
				}
				if got.Type != *want {
					t.Fatalf("order dependent merge for %v: %s vs %s", types, got.Type.Code(), want.Code())
				}
			}
		}
	}
}

func TestConversionCollapsesIntoSpecifier(t *testing.T) {
	plan := MergeAt("x", []Solution{
		NewSpecifier(absint.Short),
		NewConv(absint.UShort).Solution(),
		NewCheck(absint.Char).Solution(),
	})
	if plan.Conversion != nil {
		t.Fatalf("conversion should be absorbed")
	}
	if plan.Specifier == nil || plan.Specifier.Type != absint.Int {
		t.Fatalf("specifier should become int, got %+v", plan.Specifier)
	}
	if plan.Check == nil || plan.Check.Type != absint.Char {
		t.Fatalf("check should be kept alongside")
	}
	if plan.Count() != 2 {
		t.Fatalf("count = %d", plan.Count())
	}
}

func TestOverlongMergeKeepsSpecifier(t *testing.T) {
	plan := MergeAt("x", []Solution{
		NewSpecifier(absint.LongLong),
		NewConv(absint.Overlong).Solution(),
	})
	if plan.Specifier == nil || plan.Specifier.Type != absint.LongLong {
		t.Fatalf("specifier should stay long long, got %+v", plan.Specifier)
	}
}

func TestWideMergesStayNative(t *testing.T) {
	tests := []struct {
		name string
		sols []Solution
		want absint.IntType
	}{
		{"long and unsigned long specifiers", []Solution{NewSpecifier(absint.Long), NewSpecifier(absint.ULong)}, absint.ULongLong},
		{"long long specifier and unsigned conversion", []Solution{NewSpecifier(absint.LongLong), NewConv(absint.ULongLong).Solution()}, absint.ULongLong},
		{"long long conversions", []Solution{NewConv(absint.LongLong).Solution(), NewConv(absint.ULongLong).Solution()}, absint.ULongLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := MergeAt("x", tt.sols)
			got := plan.Specifier
			if got == nil {
				got = plan.Conversion
			}
			if got == nil || got.Type != tt.want || got.Type.String() == "" {
				t.Fatalf("merged = %+v, want %s", got, tt.want.Code())
			}
		})
	}
}

func TestNonNativeConversionDropped(t *testing.T) {
	plan := MergeAt("x", []Solution{
		NewConv(absint.UChar).Solution(),
		NewConv(absint.Overlong).Solution(),
	})
	if plan.Conversion != nil {
		t.Fatalf("overlong conversion should be dropped, got %+v", plan.Conversion)
	}
	if !plan.Empty() {
		t.Fatalf("plan = %+v", plan)
	}
}

func TestDuplicateChecksKeepFirst(t *testing.T) {
	plan := MergeAt("x", []Solution{
		NewCheck(absint.Int).Solution(),
		NewCheck(absint.Char).Solution(),
	})
	if plan.Check == nil || plan.Check.Type != absint.Int {
		t.Fatalf("first check should win, got %+v", plan.Check)
	}
}

func TestPointerTargetMismatchRejected(t *testing.T) {
	a := NewPointerConv(absint.Int, 1, "main::x").Solution()
	b := NewPointerConv(absint.Long, 1, "main::y").Solution()
	if _, ok := a.Merge(b); ok {
		t.Fatalf("different targets must not merge")
	}
	c := NewPointerConv(absint.Long, 1, "main::x").Solution()
	m, ok := a.Merge(c)
	if !ok || m.Type != absint.Long {
		t.Fatalf("same target should merge, got %+v %v", m, ok)
	}
}

func TestGuideMergeAndTarget(t *testing.T) {
	g := NewConv(absint.Char).Merge(NewConv(absint.UChar))
	if g.Type != absint.Short {
		t.Fatalf("got %s", g.Type.Code())
	}
	if kept := NewCheck(absint.Int).Merge(NewConv(absint.Long)); kept.Method != MethodCheck || kept.Type != absint.Int {
		t.Fatalf("incompatible guide should keep the first")
	}
	if _, ok := NewConv(absint.Int).TargetName(); ok {
		t.Fatalf("integer guide has no target")
	}
	if name, ok := NewPointerConv(absint.Int, 2, "f::p").TargetName(); !ok || name != "f::p" {
		t.Fatalf("got %q %v", name, ok)
	}
	if NewShiftCheck(absint.Int, true).RefLevel != LevelShiftLeft {
		t.Fatalf("left shift level")
	}
}
