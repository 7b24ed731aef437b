package rewrite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cintfix/internal/absint"
	"cintfix/internal/analysis"
	"cintfix/internal/artifact"
	"cintfix/internal/cfa"
	"cintfix/internal/fixguide"
	"cintfix/internal/frontend"
	"cintfix/internal/sourcetree"
)

func parseTree(t *testing.T, src string) *sourcetree.Tree {
	t.Helper()
	tree, err := sourcetree.Parse(context.Background(), "t.c", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return tree
}

func buildProg(t *testing.T, src string) *cfa.Program {
	t.Helper()
	prog, err := frontend.Build(context.Background(), "t.c", []byte(src))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return prog
}

// locOf 源码中第 n 次出现 text 的位置
func locOf(t *testing.T, src, text string, n int) cfa.FileLocation {
	t.Helper()
	from := 0
	for i := 0; ; i++ {
		k := strings.Index(src[from:], text)
		if k < 0 {
			t.Fatalf("%q occurs fewer than %d times", text, n+1)
		}
		if i == n {
			off := from + k
			return cfa.FileLocation{
				File:      "t.c",
				StartLine: strings.Count(src[:off], "\n") + 1,
				EndLine:   strings.Count(src[:off+len(text)], "\n") + 1,
				Offset:    off,
				Length:    len(text),
			}
		}
		from += k + 1
	}
}

// firstN 只取位置的前 n 个字节
func firstN(l cfa.FileLocation, n int) cfa.FileLocation {
	l.Length = n
	l.EndLine = l.StartLine
	return l
}

func specPlan(t absint.IntType) fixguide.Plan {
	s := fixguide.NewSpecifier(t)
	return fixguide.Plan{Specifier: &s}
}

func checkPlan(g fixguide.Guide) fixguide.Plan {
	s := g.Solution()
	return fixguide.Plan{Check: &s}
}

func convPlan(g fixguide.Guide) fixguide.Plan {
	s := g.Solution()
	return fixguide.Plan{Conversion: &s}
}

// fix 在 src 上应用计划，prog 为空时不使用前端的类型信息
func fix(t *testing.T, prog *cfa.Program, src string, types map[string]absint.IntType, plans map[cfa.FileLocation]fixguide.Plan) (string, *Result) {
	t.Helper()
	if prog == nil {
		prog = cfa.NewProgram("t.c")
	}
	tree := parseTree(t, src)
	res, err := New(prog, tree, types).Apply(plans)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return tree.String(), res
}

func TestSpecifierOnDeclaration(t *testing.T) {
	src := "int main(void) {\n    static const char c = 300, d;\n    return c;\n}\n"
	plans := map[cfa.FileLocation]fixguide.Plan{
		locOf(t, src, "static const char c = 300, d;", 0): specPlan(absint.Short),
	}
	got, res := fix(t, nil, src, nil, plans)
	want := "int main(void) {\n    static const short c = 300, d;\n    return c;\n}\n"
	if got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
	if res.Locations != 1 || len(res.Changes) != 1 || res.Changes[0].Mode != fixguide.ModeSpecifier {
		t.Errorf("result = %+v", res)
	}
}

func TestSpecifierPropagatesToGlobalRedeclarations(t *testing.T) {
	src := "extern char g;\nconst char g = 1;\nint h;\nint main(void) { char g; return g; }\n"
	plans := map[cfa.FileLocation]fixguide.Plan{
		locOf(t, src, "const char g = 1;", 0): specPlan(absint.UShort),
	}
	got, _ := fix(t, nil, src, nil, plans)
	want := "extern unsigned short g;\nconst unsigned short g = 1;\nint h;\nint main(void) { char g; return g; }\n"
	if got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
}

func TestSpecifierOnCast(t *testing.T) {
	src := "long f(long v) { return (int)v * 2; }"
	plans := map[cfa.FileLocation]fixguide.Plan{
		locOf(t, src, "(int)v", 0): specPlan(absint.Long),
	}
	got, _ := fix(t, nil, src, nil, plans)
	if want := "long f(long v) { return (long)v * 2; }"; got != want {
		t.Errorf("got %q", got)
	}
}

func TestParameterSpecifierAddsShadow(t *testing.T) {
	src := "int f(char a, char b) {\n    return a + b;\n}\n"
	plans := map[cfa.FileLocation]fixguide.Plan{
		locOf(t, src, "char a", 0): specPlan(absint.Short),
		locOf(t, src, "char b", 0): specPlan(absint.Int),
	}
	got, res := fix(t, nil, src, nil, plans)
	want := "int f(char __intfix_repl_a, char __intfix_repl_b) {\n" +
		"    short a = __intfix_repl_a;\n" +
		"    int b = __intfix_repl_b;\n" +
		"    return a + b;\n}\n"
	if got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
	if res.Locations != 2 {
		t.Errorf("locations = %d", res.Locations)
	}
}

func TestCheckSignFollowsOperandType(t *testing.T) {
	src := "struct S { short f; };\n" +
		"void f(struct S *p, int a, unsigned b) {\n" +
		"    p->f = a + 1;\n" +
		"    p->f = b;\n" +
		"}\n"
	prog := buildProg(t, src)
	plans := map[cfa.FileLocation]fixguide.Plan{
		locOf(t, src, "a + 1", 0): checkPlan(fixguide.NewCheck(absint.Short)),
		firstN(locOf(t, src, "b;", 0), 1): checkPlan(fixguide.NewCheck(absint.Short)),
	}
	got, _ := fix(t, prog, src, nil, plans)
	for _, want := range []string{
		"p->f = __INTCHECK_SHORT_S(a + 1);",
		"p->f = __INTCHECK_SHORT_U(b);",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in\n%s", want, got)
		}
	}
}

func TestSolvedTypeDecidesCheckSign(t *testing.T) {
	src := "struct S { short f; };\nvoid f(struct S *p, int a) {\n    p->f = a;\n}\n"
	prog := buildProg(t, src)
	plans := map[cfa.FileLocation]fixguide.Plan{
		firstN(locOf(t, src, "a;", 0), 1): checkPlan(fixguide.NewCheck(absint.Short)),
	}
	got, _ := fix(t, prog, src, map[string]absint.IntType{"f::a": absint.ULong}, plans)
	if !strings.Contains(got, "p->f = __INTCHECK_SHORT_U(a);") {
		t.Errorf("got\n%s", got)
	}
}

func TestShiftCheck(t *testing.T) {
	src := "int f(int a, int b) { return (a << b); }"
	plans := map[cfa.FileLocation]fixguide.Plan{
		locOf(t, src, "a << b", 0): checkPlan(fixguide.NewShiftCheck(absint.Int, true)),
	}
	got, _ := fix(t, nil, src, nil, plans)
	if want := "int f(int a, int b) { return ((int)__INTLEFTSHIFT(a, b)); }"; got != want {
		t.Errorf("got %q", got)
	}

	src = "unsigned g(unsigned a) { return a >> 3; }"
	plans = map[cfa.FileLocation]fixguide.Plan{
		locOf(t, src, "a >> 3", 0): checkPlan(fixguide.NewShiftCheck(absint.UInt, false)),
	}
	got, _ = fix(t, nil, src, nil, plans)
	if want := "unsigned g(unsigned a) { return (unsigned int)__INTRIGHTSHIFT(a, 3); }"; got != want {
		t.Errorf("got %q", got)
	}
}

func TestCompoundAssignmentIsExpanded(t *testing.T) {
	src := "void f(int a, int b) { a <<= b; }"
	plans := map[cfa.FileLocation]fixguide.Plan{
		locOf(t, src, "a <<= b", 0): checkPlan(fixguide.NewShiftCheck(absint.Int, true)),
	}
	got, _ := fix(t, nil, src, nil, plans)
	if want := "void f(int a, int b) { a = (int)__INTLEFTSHIFT(a, b); }"; got != want {
		t.Errorf("got %q", got)
	}

	src = "struct S { short f; };\nvoid g(struct S *p, int x) { p->f += x; }\n"
	prog := buildProg(t, src)
	plans = map[cfa.FileLocation]fixguide.Plan{
		locOf(t, src, "p->f += x", 0): checkPlan(fixguide.NewCheck(absint.Short)),
	}
	got, _ = fix(t, prog, src, nil, plans)
	if !strings.Contains(got, "{ p->f = __INTCHECK_SHORT_S(p->f + (x)); }") {
		t.Errorf("got %q", got)
	}
}

func TestConversionInsideCheck(t *testing.T) {
	src := "int f(int a, int b) { return a + b; }"
	s := fixguide.NewConv(absint.ULong).Solution()
	c := fixguide.NewCheck(absint.Int).Solution()
	plans := map[cfa.FileLocation]fixguide.Plan{
		locOf(t, src, "a + b", 0): {Conversion: &s, Check: &c},
	}
	got, res := fix(t, buildProg(t, src), src, nil, plans)
	// 转换锁定了表达式的类型，检查函数按无符号选择
	if want := "int f(int a, int b) { return __INTCHECK_INT_U((unsigned long)(a + b)); }"; got != want {
		t.Errorf("got %q", got)
	}
	if res.Locations != 1 || len(res.Changes) != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestRedundantConversionIsSkipped(t *testing.T) {
	src := "int f(int a, long b) { return a < b; }"
	plans := map[cfa.FileLocation]fixguide.Plan{
		firstN(locOf(t, src, "a < b", 0), 1): convPlan(fixguide.NewConv(absint.Int)),
		firstN(locOf(t, src, "b;", 0), 1):    convPlan(fixguide.NewConv(absint.LongLong)),
	}
	got, res := fix(t, buildProg(t, src), src, nil, plans)
	if want := "int f(int a, long b) { return a < (long long)(b); }"; got != want {
		t.Errorf("got %q", got)
	}
	if res.Locations != 1 {
		t.Errorf("locations = %d", res.Locations)
	}
}

func TestPointerConversion(t *testing.T) {
	src := "int x;\nvoid f(int *p) { *p = 1; }\n"
	plans := map[cfa.FileLocation]fixguide.Plan{
		firstN(locOf(t, src, "p = 1", 0), 1): convPlan(fixguide.NewPointerConv(absint.Int, 1, "x")),
	}
	got, _ := fix(t, nil, src, map[string]absint.IntType{"x": absint.Long}, plans)
	if want := "int x;\nvoid f(int *p) { *(long *)(p) = 1; }\n"; got != want {
		t.Errorf("got %q", got)
	}
}

func TestCheckOnAssignmentTargetCoversAssignment(t *testing.T) {
	src := "void f(int a) { (a) = 1; }"
	plans := map[cfa.FileLocation]fixguide.Plan{
		firstN(locOf(t, src, "a) =", 0), 1): checkPlan(fixguide.NewCheck(absint.Int)),
	}
	got, _ := fix(t, nil, src, nil, plans)
	if want := "void f(int a) { __INTCHECK_INT_S((a) = 1); }"; got != want {
		t.Errorf("got %q", got)
	}
}

func TestUnresolvedLocationLeavesTreeUntouched(t *testing.T) {
	src := "int f(int a) { return a + 1; }"
	tree := parseTree(t, src)
	plans := map[cfa.FileLocation]fixguide.Plan{
		locOf(t, src, "a + 1", 0):  checkPlan(fixguide.NewCheck(absint.Int)),
		locOf(t, src, "nt f(", 0): checkPlan(fixguide.NewCheck(absint.Int)),
	}
	_, err := New(cfa.NewProgram("t.c"), tree, nil).Apply(plans)
	if !errors.Is(err, sourcetree.ErrNoNode) {
		t.Fatalf("err = %v, want ErrNoNode", err)
	}
	if tree.String() != src {
		t.Errorf("tree changed: %q", tree.String())
	}
}

func TestInvalidShiftIsReported(t *testing.T) {
	src := "int f(int a) { return a; }"
	tree := parseTree(t, src)
	plans := map[cfa.FileLocation]fixguide.Plan{
		firstN(locOf(t, src, "a;", 0), 1): checkPlan(fixguide.NewShiftCheck(absint.Int, true)),
	}
	_, err := New(cfa.NewProgram("t.c"), tree, nil).Apply(plans)
	if !errors.Is(err, ErrUnfixable) {
		t.Fatalf("err = %v, want ErrUnfixable", err)
	}
}

func TestPlansFromAnalysis(t *testing.T) {
	src := "int main(void) {\n    char c = 300;\n    return 0;\n}\n"
	prog := buildProg(t, src)
	acc, err := analysis.Analyze(context.Background(), prog, analysis.Options{})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	guides := artifact.SortedGuides(acc.Loc2Guide)
	tree := parseTree(t, src)

	// 类型没有变化时不改写
	same := New(prog, tree, map[string]absint.IntType{"main::c": absint.Char})
	if plans := same.Plans(acc.Name2Loc, guides); len(plans) != len(guides) {
		t.Errorf("unchanged type produced %d plans for %d guides", len(plans), len(guides))
	}

	types := map[string]absint.IntType{
		"main::c":        absint.Short,
		"main::__retval": absint.Int,
	}
	f := New(prog, tree, types)
	plans := f.Plans(acc.Name2Loc, guides)
	p, ok := plans[acc.Name2Loc["main::c"]]
	if !ok || p.Specifier == nil || p.Specifier.Type != absint.Short {
		t.Fatalf("plans = %v", plans)
	}
	if _, err := f.Apply(plans); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !strings.Contains(tree.String(), "    short c = 300;\n") {
		t.Errorf("got\n%s", tree.String())
	}
}

func TestSymbolTable(t *testing.T) {
	src := "extern int g;\nint g = 1, *q;\nint f(int);\nint main(void) { int g; return g; }\n"
	st := NewSymbolTable(parseTree(t, src))
	if n := len(st.Lookup("g")); n != 2 {
		t.Errorf("g declared %d times at file scope", n)
	}
	if syms := st.Lookup("f"); len(syms) != 1 || syms[0].Kind != SymbolFunction {
		t.Errorf("f = %+v", syms)
	}
	if syms := st.Lookup("q"); len(syms) != 1 || syms[0].Line != 2 {
		t.Errorf("q = %+v", syms)
	}
	if st.Lookup("main") != nil {
		t.Errorf("function definitions are not declarations")
	}
}

func TestHeader(t *testing.T) {
	want := "typedef unsigned long size_t;\n" +
		"extern int __INTCHECK_INT_S(long long signed int x);\n" +
		"extern int __INTCHECK_INT_U(long long unsigned int x);\n" +
		"extern unsigned int __INTCHECK_UINT_S(long long signed int x);\n" +
		"extern unsigned int __INTCHECK_UINT_U(long long unsigned int x);\n" +
		"extern short __INTCHECK_SHORT_S(long long signed int x);\n" +
		"extern short __INTCHECK_SHORT_U(long long unsigned int x);\n" +
		"extern unsigned short __INTCHECK_USHORT_S(long long signed int x);\n" +
		"extern unsigned short __INTCHECK_USHORT_U(long long unsigned int x);\n" +
		"extern signed char __INTCHECK_CHAR_S(long long signed int x);\n" +
		"extern signed char __INTCHECK_CHAR_U(long long unsigned int x);\n" +
		"extern unsigned char __INTCHECK_UCHAR_S(long long signed int x);\n" +
		"extern unsigned char __INTCHECK_UCHAR_U(long long unsigned int x);\n" +
		"extern long int __INTCHECK_LINT_S(long long signed int x);\n" +
		"extern long int __INTCHECK_LINT_U(long long unsigned int x);\n" +
		"extern long unsigned int __INTCHECK_ULINT_S(long long signed int x);\n" +
		"extern long unsigned int __INTCHECK_ULINT_U(long long unsigned int x);\n" +
		"extern long long int __INTCHECK_LLINT_S(long long signed int x);\n" +
		"extern long long int __INTCHECK_LLINT_U(long long unsigned int x);\n" +
		"extern long long unsigned int __INTCHECK_ULLINT_S(long long signed int x);\n" +
		"extern long long unsigned int __INTCHECK_ULLINT_U(long long unsigned int x);\n" +
		"extern size_t __INTCHECK_INDEX_S(long long signed int x);\n" +
		"extern size_t __INTCHECK_INDEX_U(long long unsigned int x);\n" +
		"extern long long unsigned int __INTLEFTSHIFT(long long unsigned int op1, long long unsigned int op2);\n" +
		"extern long long unsigned int __INTRIGHTSHIFT(long long unsigned int op1, long long unsigned int op2);\n"
	if Header != want {
		t.Errorf("header mismatch:\n%s", Header)
	}
}

func TestRuntime(t *testing.T) {
	rt := Runtime()
	for _, k := range checkKinds {
		for _, signed := range []bool{true, false} {
			name := CheckName(k.Code, signed)
			if !strings.Contains(rt, " "+name+"(") {
				t.Errorf("runtime lacks %s", name)
			}
		}
	}
	for _, want := range []string{
		"long long int __INTCHECK_LLINT_S(long long signed int x)\n{\n\treturn x;\n}",
		"if (x <= LLONG_MAX)",
		"if (x >= 0 && x <= SIZE_MAX)",
		"\tint y = (int)x;\n\tif (x == (long long signed int)y)",
		"__INTCHECK_ERROR(\"Error!(Failed in: __INTCHECK_UCHAR_U)\\n\");",
		"long long unsigned int __INTLEFTSHIFT(long long unsigned int op1, long long unsigned int op2)",
		"long long unsigned int __INTRIGHTSHIFT(long long unsigned int op1, long long unsigned int op2)",
	} {
		if !strings.Contains(rt, want) {
			t.Errorf("runtime lacks %q", want)
		}
	}
}

func TestOutputPath(t *testing.T) {
	cases := map[string]string{
		"dir/a.c": "dir/a.fixed.i",
		"b.i":     "b.fixed.i",
		"x":       "x.fixed.i",
	}
	for in, want := range cases {
		if got := OutputPath(in); got != want {
			t.Errorf("OutputPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSave(t *testing.T) {
	src := "int main(void) { return 0; }\n"
	path := filepath.Join(t.TempDir(), OutputPath("m.c"))
	if err := Save(path, parseTree(t, src)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != Header+src {
		t.Errorf("saved %q", data)
	}
}

func TestConditionParenthesesStay(t *testing.T) {
	tests := []struct {
		name string
		src  string
		loc  func(t *testing.T, src string) cfa.FileLocation
		want string
	}{
		{
			name: "switch operand",
			src:  "int f(int idx) { switch (idx) { case -1: return 1; } return 0; }",
			loc:  func(t *testing.T, src string) cfa.FileLocation { return firstN(locOf(t, src, "idx)", 0), 3) },
			want: "int f(int idx) { switch ((char)(idx)) { case -1: return 1; } return 0; }",
		},
		{
			name: "switch condition node",
			src:  "int f(int idx) { switch (idx) { case -1: return 1; } return 0; }",
			loc:  func(t *testing.T, src string) cfa.FileLocation { return locOf(t, src, "(idx)", 0) },
			want: "int f(int idx) { switch ((char)(idx)) { case -1: return 1; } return 0; }",
		},
		{
			name: "if operand",
			src:  "int f(int v) { if (v) return 1; return 0; }",
			loc:  func(t *testing.T, src string) cfa.FileLocation { return firstN(locOf(t, src, "v)", 0), 1) },
			want: "int f(int v) { if ((char)(v)) return 1; return 0; }",
		},
		{
			name: "while operand",
			src:  "int f(int v) { while (v) v--; return 0; }",
			loc:  func(t *testing.T, src string) cfa.FileLocation { return firstN(locOf(t, src, "v)", 0), 1) },
			want: "int f(int v) { while ((char)(v)) v--; return 0; }",
		},
		{
			name: "do-while operand",
			src:  "int f(int v) { do v--; while (v); return 0; }",
			loc:  func(t *testing.T, src string) cfa.FileLocation { return firstN(locOf(t, src, "v)", 0), 1) },
			want: "int f(int v) { do v--; while ((char)(v)); return 0; }",
		},
		{
			name: "inner parentheses still elevate",
			src:  "int f(int v) { if ((v)) return 1; return 0; }",
			loc:  func(t *testing.T, src string) cfa.FileLocation { return firstN(locOf(t, src, "v))", 0), 1) },
			want: "int f(int v) { if ((char)((v))) return 1; return 0; }",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plans := map[cfa.FileLocation]fixguide.Plan{
				tt.loc(t, tt.src): convPlan(fixguide.NewConv(absint.Char)),
			}
			got, res := fix(t, nil, tt.src, nil, plans)
			if got != tt.want {
				t.Errorf("got  %q\nwant %q", got, tt.want)
			}
			if res.Locations != 1 {
				t.Errorf("result = %+v", res)
			}
		})
	}
}

func TestCheckOnConditionKeepsParentheses(t *testing.T) {
	src := "int f(int a, int b) { if (a + b) return 1; return 0; }"
	plans := map[cfa.FileLocation]fixguide.Plan{
		locOf(t, src, "a + b", 0): checkPlan(fixguide.NewCheck(absint.Int)),
	}
	got, _ := fix(t, nil, src, nil, plans)
	if !strings.HasPrefix(got, "int f(int a, int b) { if (__INTCHECK_INT_") || !strings.Contains(got, "(a + b)) return 1;") {
		t.Errorf("got %q", got)
	}
}

func TestNonNativeTypesAreUnfixable(t *testing.T) {
	src := "int f(int a) {\n    int x = a;\n    return x + 1;\n}\n"
	index := fixguide.NewConv(absint.Index).Solution()
	tests := []struct {
		name string
		loc  cfa.FileLocation
		plan fixguide.Plan
	}{
		{"specifier", locOf(t, src, "int x = a;", 0), specPlan(absint.Index)},
		{"overlong specifier", locOf(t, src, "int x = a;", 0), specPlan(absint.Overlong)},
		{"conversion", locOf(t, src, "x + 1", 0), fixguide.Plan{Conversion: &index}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := parseTree(t, src)
			_, err := New(cfa.NewProgram("t.c"), tree, nil).Apply(map[cfa.FileLocation]fixguide.Plan{tt.loc: tt.plan})
			if !errors.Is(err, ErrUnfixable) {
				t.Fatalf("err = %v, want ErrUnfixable", err)
			}
			if tree.String() != src {
				t.Errorf("tree changed: %q", tree.String())
			}
		})
	}
}

func TestMultiDeclaratorSpecifiersMerge(t *testing.T) {
	tests := []struct {
		name  string
		types map[string]absint.IntType
		want  string
	}{
		{"long and unsigned long", map[string]absint.IntType{"main::a": absint.Long, "main::b": absint.ULong}, "unsigned long long"},
		{"long long and unsigned long long", map[string]absint.IntType{"main::a": absint.LongLong, "main::b": absint.ULongLong}, "unsigned long long"},
		{"short and unsigned char", map[string]absint.IntType{"main::a": absint.Short, "main::b": absint.UChar}, "short"},
		{"char and unsigned char", map[string]absint.IntType{"main::a": absint.Char, "main::b": absint.UChar}, "short"},
	}
	src := "int main(void) {\n    int a = 0, b = 0;\n    return a + b;\n}\n"
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := buildProg(t, src)
			acc, err := analysis.Analyze(context.Background(), prog, analysis.Options{})
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			if acc.Name2Loc["main::a"] != acc.Name2Loc["main::b"] {
				t.Fatalf("declarators located apart: %v", acc.Name2Loc)
			}
			tree := parseTree(t, src)
			f := New(prog, tree, tt.types)
			if _, err := f.Apply(f.Plans(acc.Name2Loc, artifact.SortedGuides(acc.Loc2Guide))); err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if want := "    " + tt.want + " a = 0, b = 0;\n"; !strings.Contains(tree.String(), want) {
				t.Errorf("want %q in\n%s", want, tree.String())
			}
		})
	}
}
