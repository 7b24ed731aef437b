package frontend

import (
	"context"
	"errors"
	"strings"
	"testing"

	"cintfix/internal/absint"
	"cintfix/internal/analysis"
	"cintfix/internal/cfa"
	"cintfix/internal/constraint"
	"cintfix/internal/fixguide"
)

func build(t *testing.T, src string) *cfa.Program {
	t.Helper()
	prog, err := Build(context.Background(), "t.c", []byte(src))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return prog
}

func edges(prog *cfa.Program, kind cfa.EdgeKind) []*cfa.Edge {
	var out []*cfa.Edge
	for _, n := range prog.Nodes {
		for _, e := range n.Leaving {
			if e.Kind == kind {
				out = append(out, e)
			}
		}
	}
	return out
}

func findDecl(prog *cfa.Program, qualified string) *cfa.Declaration {
	for _, e := range edges(prog, cfa.DeclarationEdge) {
		if e.Decl.Qualified == qualified {
			return e.Decl
		}
	}
	return nil
}

func TestBuildSimpleFunction(t *testing.T) {
	prog := build(t, "int main(void) {\n  char c = 300;\n  return 0;\n}\n")
	if prog.Entry != "main" {
		t.Fatalf("entry = %q, want main", prog.Entry)
	}
	main := prog.Functions["main"]
	if main == nil || len(main.Params) != 0 {
		t.Fatalf("main = %+v", main)
	}
	d := findDecl(prog, "main::c")
	if d == nil {
		t.Fatalf("no declaration of main::c")
	}
	if d.Type.Int != absint.Char {
		t.Errorf("c has type %s, want char", d.Type)
	}
	lit, ok := d.Init.(*cfa.IntLiteral)
	if !ok || lit.Value.Int64() != 300 {
		t.Fatalf("init = %s", cfa.ExprString(d.Init))
	}
	if d.Loc.StartLine != 2 {
		t.Errorf("declaration line = %d, want 2", d.Loc.StartLine)
	}
	rets := edges(prog, cfa.ReturnStatementEdge)
	if len(rets) != 1 || rets[0].To != main.Exit {
		t.Fatalf("return edges = %v", rets)
	}
}

func TestCompoundAssignmentIsExpanded(t *testing.T) {
	prog := build(t, "int main(void) { int a = 1; a += 2; return a; }")
	var assign *cfa.AssignStmt
	for _, e := range edges(prog, cfa.StatementEdge) {
		if s, ok := e.Stmt.(*cfa.AssignStmt); ok {
			assign = s
		}
	}
	if assign == nil {
		t.Fatalf("no assignment edge")
	}
	lhs, ok := assign.LHS.(*cfa.IDExpr)
	if !ok || lhs.Qualified != "main::a" {
		t.Fatalf("lhs = %s", cfa.ExprString(assign.LHS))
	}
	bin, ok := assign.RHS.(*cfa.BinaryExpr)
	if !ok || bin.Op != cfa.OpPlus {
		t.Fatalf("rhs = %s", cfa.ExprString(assign.RHS))
	}
	if !bin.Left.Loc().IsDummy() {
		t.Errorf("copied operand should have no location, got %s", bin.Left.Loc())
	}
	if bin.Right.Loc().IsDummy() {
		t.Errorf("right operand keeps its source location")
	}
}

func TestIncrementStatement(t *testing.T) {
	prog := build(t, "int main(void) { int i = 0; i++; --i; return i; }")
	var ops []cfa.BinaryOp
	for _, e := range edges(prog, cfa.StatementEdge) {
		if s, ok := e.Stmt.(*cfa.AssignStmt); ok {
			ops = append(ops, s.RHS.(*cfa.BinaryExpr).Op)
		}
	}
	if len(ops) != 2 || ops[0] != cfa.OpPlus || ops[1] != cfa.OpMinus {
		t.Fatalf("ops = %v", ops)
	}
}

func TestPostfixValueUsesTemporary(t *testing.T) {
	prog := build(t, "int main(void) { int i = 0; int j = i++; return j; }")
	var temp *cfa.Declaration
	for _, e := range edges(prog, cfa.DeclarationEdge) {
		if e.Decl.Synthetic {
			temp = e.Decl
		}
	}
	if temp == nil {
		t.Fatalf("postfix increment in an initializer needs a temporary")
	}
	j := findDecl(prog, "main::j")
	id, ok := j.Init.(*cfa.IDExpr)
	if !ok || id.Qualified != temp.Qualified {
		t.Fatalf("j init = %s, want %s", cfa.ExprString(j.Init), temp.Qualified)
	}
}

func TestShadowedLocalIsRenamed(t *testing.T) {
	prog := build(t, "int main(void) { int x = 1; { int x = 2; x = 3; } return x; }")
	if findDecl(prog, "main::x") == nil || findDecl(prog, "main::x__1") == nil {
		t.Fatalf("expected main::x and main::x__1")
	}
	for _, e := range edges(prog, cfa.StatementEdge) {
		s := e.Stmt.(*cfa.AssignStmt)
		if got := s.LHS.(*cfa.IDExpr).Qualified; got != "main::x__1" {
			t.Errorf("inner assignment targets %s", got)
		}
	}
	ret := edges(prog, cfa.ReturnStatementEdge)[0]
	if got := ret.Return.Expr.(*cfa.IDExpr).Qualified; got != "main::x" {
		t.Errorf("return refers to %s, want main::x", got)
	}
}

func TestCallToDefinedFunction(t *testing.T) {
	prog := build(t, `
int f(int a) { return a + 1; }
int main(void) { int r = f(3); return r; }
`)
	f := prog.Functions["f"]
	if f == nil || len(f.Params) != 1 || f.Params[0].Qualified != "f::a" {
		t.Fatalf("f = %+v", f)
	}
	calls := edges(prog, cfa.CallEdge)
	if len(calls) != 1 {
		t.Fatalf("call edges = %d", len(calls))
	}
	cs := calls[0].Call
	if calls[0].To != f.Entry || cs.Callee != f || cs.Caller != "main" {
		t.Fatalf("call site = %+v", cs)
	}
	if lhs, ok := cs.LHS.(*cfa.IDExpr); !ok || lhs.Qualified != "main::r" {
		t.Errorf("call result goes to %s", cfa.ExprString(cs.LHS))
	}
	back := edges(prog, cfa.FunctionReturnEdge)
	if len(back) != 1 || back[0].From != f.Exit || back[0].To != cs.ReturnNode || back[0].Call != cs {
		t.Fatalf("return edge = %v", back)
	}
}

func TestCallBeforeDefinition(t *testing.T) {
	prog := build(t, `
int g(int);
int main(void) { return g(1) + 1; }
int g(int v) { return v; }
`)
	calls := edges(prog, cfa.CallEdge)
	if len(calls) != 1 || calls[0].Call.Callee.Name != "g" {
		t.Fatalf("call edges = %v", calls)
	}
	if calls[0].Call.LHS == nil {
		t.Fatalf("call used as a value needs a receiving temporary")
	}
}

func TestLibraryCallStaysExpression(t *testing.T) {
	prog := build(t, "int abs(int);\nint main(void) { int v = abs(-3); return v; }")
	if n := len(edges(prog, cfa.CallEdge)); n != 0 {
		t.Fatalf("library call produced %d call edges", n)
	}
	call, ok := findDecl(prog, "main::v").Init.(*cfa.CallExpr)
	if !ok {
		t.Fatalf("init is not a call")
	}
	if call.Defined || call.Variadic || len(call.Params) != 1 || call.Params[0].Int != absint.Int {
		t.Errorf("call = %+v", call)
	}
}

func TestTypedefAndEnum(t *testing.T) {
	prog := build(t, `
typedef unsigned short u16;
enum color { RED = 3, GREEN };
u16 g = GREEN;
size_t n;
int main(void) { return g; }
`)
	g := findDecl(prog, "g")
	if g == nil || !g.Global {
		t.Fatalf("global g = %+v", g)
	}
	if g.Type.Int != absint.UShort {
		t.Errorf("g type = %s", g.Type)
	}
	id, ok := g.Init.(*cfa.IDExpr)
	if !ok || id.Enumerator == nil || id.Enumerator.Int64() != 4 {
		t.Fatalf("g init = %s", cfa.ExprString(g.Init))
	}
	n := findDecl(prog, "n")
	if n == nil || n.Type.Int != absint.ULong {
		t.Fatalf("size_t should be unsigned long: %+v", n)
	}
	if lit, ok := n.Init.(*cfa.IntLiteral); !ok || lit.Value.Sign() != 0 {
		t.Errorf("uninitialized global should start at zero")
	}
	if prog.Start == nil || len(prog.Start.Leaving) == 0 || prog.Start.Function != "" {
		t.Fatalf("global declarations must hang off the start node")
	}
}

func TestStructFieldAndPointerTypes(t *testing.T) {
	prog := build(t, `
struct rec { short len; struct rec *next; };
int main(void) {
  struct rec r;
  struct rec *p = &r;
  p->len = 70000;
  return 0;
}
`)
	var assign *cfa.AssignStmt
	for _, e := range edges(prog, cfa.StatementEdge) {
		assign = e.Stmt.(*cfa.AssignStmt)
	}
	field, ok := assign.LHS.(*cfa.FieldRef)
	if !ok || !field.Arrow || field.Field != "len" {
		t.Fatalf("lhs = %s", cfa.ExprString(assign.LHS))
	}
	if field.Type().Int != absint.Short {
		t.Errorf("field type = %s", field.Type())
	}
	p := findDecl(prog, "main::p")
	if !p.Type.IsPointer() || !p.Type.Elem.IsStruct() || p.Type.Elem.FieldType("next").Elem != p.Type.Elem {
		t.Errorf("self-referential struct not resolved: %s", p.Type)
	}
}

func TestIfElseShape(t *testing.T) {
	prog := build(t, `
int main(void) {
  int x = 3, y = 0;
  if (x > 2 && y == 0) { y = 1; } else { y = 2; }
  return y;
}
`)
	assumes := edges(prog, cfa.AssumeEdge)
	if len(assumes) != 4 {
		t.Fatalf("assume edges = %d, want 4", len(assumes))
	}
	ops := map[cfa.BinaryOp]int{}
	for _, e := range assumes {
		ops[e.Assume.Expr.Op]++
	}
	if ops[cfa.OpGreaterThan] != 2 || ops[cfa.OpEquals] != 2 {
		t.Errorf("ops = %v", ops)
	}
	// 第二个条件只能从第一个条件为真的分支到达
	for _, e := range assumes {
		if e.Assume.Expr.Op != cfa.OpEquals {
			continue
		}
		for _, in := range e.From.Entering {
			if in.Kind != cfa.AssumeEdge || !in.Assume.Truth {
				t.Errorf("y == 0 reached from %s", in)
			}
		}
	}
}

func TestPlainConditionComparesWithZero(t *testing.T) {
	prog := build(t, "int main(void) { int x = 1; while (x) { x--; } return x; }")
	assumes := edges(prog, cfa.AssumeEdge)
	if len(assumes) != 2 {
		t.Fatalf("assume edges = %d", len(assumes))
	}
	cond := assumes[0].Assume.Expr
	if cond.Op != cfa.OpNotEquals || !cond.Loc().IsDummy() {
		t.Fatalf("cond = %s", cfa.ExprString(cond))
	}
	if lit, ok := cond.Right.(*cfa.IntLiteral); !ok || lit.Value.Sign() != 0 {
		t.Errorf("right = %s", cfa.ExprString(cond.Right))
	}
}

func TestLoopHasBackEdge(t *testing.T) {
	prog := build(t, `
int main(void) {
  int s = 0;
  for (int i = 0; i < 10; i++) {
    if (i == 5) continue;
    if (s > 100) break;
    s += i;
  }
  return s;
}
`)
	back := 0
	for _, e := range edges(prog, cfa.BlankEdge) {
		if e.To.ID < e.From.ID {
			back++
		}
	}
	if back == 0 {
		t.Fatalf("loop without back edge")
	}
	if findDecl(prog, "main::i") == nil {
		t.Errorf("for-loop declaration missing")
	}
}

func TestInfiniteLoopConstantCondition(t *testing.T) {
	prog := build(t, "int main(void) { int n = 0; while (1) { n++; if (n > 3) break; } return n; }")
	for _, e := range edges(prog, cfa.AssumeEdge) {
		if _, ok := e.Assume.Expr.Left.(*cfa.IntLiteral); ok {
			t.Errorf("constant condition should fold into a blank edge: %s", e)
		}
	}
}

func TestSwitchLowering(t *testing.T) {
	prog := build(t, `
int main(void) {
  int k = 2, r = 0;
  switch (k) {
  case 1: r = 10; break;
  case 2: r = 20;
  default: r = 30;
  }
  return r;
}
`)
	eq := 0
	for _, e := range edges(prog, cfa.AssumeEdge) {
		if e.Assume.Expr.Op == cfa.OpEquals {
			eq++
		}
	}
	if eq != 4 {
		t.Fatalf("case comparisons = %d, want 4 (true and false per case)", eq)
	}
	// case 2 落到 default
	fall := 0
	for _, e := range edges(prog, cfa.BlankEdge) {
		if e.Label == "fallthrough" {
			fall++
		}
	}
	if fall == 0 {
		t.Errorf("missing fallthrough edge")
	}
}

func TestGotoAndLabel(t *testing.T) {
	prog := build(t, `
int main(void) {
  int i = 0;
again:
  i++;
  if (i < 3) goto again;
  return i;
}
`)
	found := false
	for _, e := range edges(prog, cfa.BlankEdge) {
		if e.Label == "goto again" {
			found = true
		}
	}
	if !found {
		t.Fatalf("goto edge missing")
	}
}

func TestUndefinedLabel(t *testing.T) {
	_, err := Build(context.Background(), "t.c", []byte("int main(void) { goto nowhere; return 0; }"))
	if !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("err = %v, want ErrMalformedInput", err)
	}
}

func TestSyntaxErrorIsMalformed(t *testing.T) {
	_, err := Build(context.Background(), "t.c", []byte("int main( { return 0; }"))
	if !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("err = %v, want ErrMalformedInput", err)
	}
}

func TestCastAndSizeof(t *testing.T) {
	prog := build(t, "int main(void) { long v = 5; int a[4]; int s = (int)v + sizeof a; return s; }")
	bin, ok := findDecl(prog, "main::s").Init.(*cfa.BinaryExpr)
	if !ok {
		t.Fatalf("init is not binary")
	}
	cast, ok := bin.Left.(*cfa.CastExpr)
	if !ok || cast.Type().Int != absint.Int {
		t.Fatalf("left = %s", cfa.ExprString(bin.Left))
	}
	size, ok := bin.Right.(*cfa.UnaryExpr)
	if !ok || size.Op != cfa.OpSizeof || size.TypeOperand == nil || size.TypeOperand.SizeOf() != 16 {
		t.Fatalf("right = %s", cfa.ExprString(bin.Right))
	}
	if got := bin.Type().Int; got != absint.ULong {
		t.Errorf("int + size_t = %s, want unsigned long", got)
	}
	if ty, ok := prog.ExprTypes[cast.Loc()]; !ok || ty.Int != absint.Int {
		t.Errorf("cast type not recorded")
	}
}

func TestParseIntLiteral(t *testing.T) {
	tests := []struct {
		text string
		want int64
		typ  absint.IntType
	}{
		{"1", 1, absint.Int},
		{"2147483648", 2147483648, absint.Long},
		{"0xFFFFFFFF", 0xFFFFFFFF, absint.UInt},
		{"1u", 1, absint.UInt},
		{"10L", 10, absint.Long},
		{"3000000000u", 3000000000, absint.UInt},
		{"1ull", 1, absint.ULongLong},
		{"017", 15, absint.Int},
		{"0", 0, absint.Int},
	}
	for _, tc := range tests {
		v, typ, ok := parseIntLiteral(tc.text)
		if !ok {
			t.Errorf("%s: not parsed", tc.text)
			continue
		}
		if v.Int64() != tc.want || typ != tc.typ {
			t.Errorf("%s = %s:%s, want %d:%s", tc.text, v, typ, tc.want, tc.typ)
		}
	}
	for _, text := range []string{"1.5", "1e3", "2.0f", "0x1p3"} {
		if _, _, ok := parseIntLiteral(text); ok {
			t.Errorf("%s should be a floating literal", text)
		}
	}
}

func TestParseCharLiteral(t *testing.T) {
	tests := map[string]int64{
		`'a'`:    97,
		`'\n'`:   10,
		`'\0'`:   0,
		`'\xff'`: -1,
		`'\377'`: -1,
		`'\''`:   39,
	}
	for text, want := range tests {
		got, ok := parseCharLiteral(text)
		if !ok || got != want {
			t.Errorf("%s = %d, %v; want %d", text, got, ok, want)
		}
	}
}

func TestArithmeticConversion(t *testing.T) {
	tests := []struct {
		l, r, want absint.IntType
	}{
		{absint.Char, absint.UChar, absint.Int},
		{absint.UInt, absint.Long, absint.Long},
		{absint.Int, absint.UInt, absint.UInt},
		{absint.Long, absint.ULong, absint.ULong},
		{absint.LongLong, absint.ULong, absint.ULongLong},
		{absint.Short, absint.UShort, absint.Int},
	}
	for _, tc := range tests {
		if got := arithmetic(tc.l, tc.r); got != tc.want {
			t.Errorf("%s + %s = %s, want %s", tc.l, tc.r, got, tc.want)
		}
	}
}

func TestBuildThenAnalyze(t *testing.T) {
	prog := build(t, `
int main(void) {
  char c = 300;
  unsigned char k = 0;
  while (k < 10) { k++; }
  return c;
}
`)
	acc, err := analysis.Analyze(context.Background(), prog, analysis.Options{})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	want := constraint.Soft(constraint.P(constraint.Var("main::c"), constraint.TypeTerm(absint.UShort))).String()
	found := false
	for _, c := range acc.Constraints {
		if c.String() == want {
			found = true
		}
	}
	if !found {
		t.Errorf("missing %s in %v", want, acc.Constraints)
	}
	if loc, ok := acc.Name2Loc["main::c"]; !ok || loc.StartLine != 3 {
		t.Errorf("main::c located at %+v", loc)
	}
}

func TestBareRecordDefinitions(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"file scope", `
struct S { int f; unsigned char g; };
int main(void) {
  struct S st;
  int idx = 3;
  st.g = idx * 100;
  return st.g;
}
`},
		{"block scope", `
int main(void) {
  struct S { int f; unsigned char g; };
  struct S st;
  int idx = 3;
  st.g = idx * 100;
  return st.g;
}
`},
		{"union", `
union S { int f; unsigned char g; };
int main(void) {
  union S st;
  int idx = 3;
  st.g = idx * 100;
  return st.g;
}
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := build(t, tt.src)
			var assign *cfa.AssignStmt
			for _, e := range edges(prog, cfa.StatementEdge) {
				if a, ok := e.Stmt.(*cfa.AssignStmt); ok {
					if _, ok := a.LHS.(*cfa.FieldRef); ok {
						assign = a
					}
				}
			}
			if assign == nil {
				t.Fatal("field store not found")
			}
			if got := assign.LHS.Type(); !got.IsInteger() || got.Int != absint.UChar {
				t.Fatalf("field type = %s", got)
			}

			acc, err := analysis.Analyze(context.Background(), prog, analysis.Options{})
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			off := strings.Index(tt.src, "idx * 100")
			var store *fixguide.Guide
			for loc, g := range acc.Loc2Guide {
				if loc.Offset == off && loc.Length == len("idx * 100") {
					g := g
					store = &g
				}
			}
			if store == nil || store.Method != fixguide.MethodCheck || store.Type != absint.UChar {
				t.Fatalf("store guide = %+v, guides %v", store, acc.Loc2Guide)
			}
		})
	}
}

func TestBareEnumDefinition(t *testing.T) {
	prog := build(t, `
enum { LOW = 7, HIGH };
int main(void) { int x = HIGH; return x; }
`)
	x := findDecl(prog, "main::x")
	id, ok := x.Init.(*cfa.IDExpr)
	if !ok || id.Enumerator == nil || id.Enumerator.Int64() != 8 {
		t.Fatalf("x init = %s", cfa.ExprString(x.Init))
	}
}
