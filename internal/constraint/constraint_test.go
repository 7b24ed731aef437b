package constraint

import (
	"context"
	"errors"
	"strings"
	"testing"

	"cintfix/internal/absint"
)

func TestBuildOrderAndWeights(t *testing.T) {
	x := Var("main::x")
	cs := []Constraint{
		Soft(P(x, RangeTerm(absint.Point(300)))),
		Soft(EQ(x, TypeTerm(absint.Char))),
		Soft(DP(Var("f::p"), x)),
		Hard(P(Var("g"), TypeTerm(absint.Int)), P(Var("g"), x)),
		{},
	}
	p, err := Build(cs, DefaultWeights)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"(assert-soft (P main!!x USHORT) :weight 1)",
		"(assert-soft (= main!!x CHAR) :weight 2)",
		"(assert-soft (P f!!p main!!x) :weight 1)",
		"(assert (or (P g INT) (P g main!!x)))",
	}
	if len(p.Assertions) != len(want) {
		t.Fatalf("got %d assertions: %v", len(p.Assertions), p.Assertions)
	}
	for i := range want {
		if p.Assertions[i] != want[i] {
			t.Errorf("assertion %d = %q, want %q", i, p.Assertions[i], want[i])
		}
	}
	if strings.Join(p.Vars, ",") != "main!!x,f!!p,g" {
		t.Errorf("vars = %v", p.Vars)
	}
}

func TestProblemText(t *testing.T) {
	p, err := Build([]Constraint{Soft(P(Var("main::c"), RangeTerm(absint.Point(300))))}, Weights{P: 5, DP: 1, EQ: 2})
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(p.String(), "\n")
	want := []string{
		typeDeclaration,
		PredDefinition(),
		"(declare-fun main!!c () I)",
		"(assert-soft (P main!!c USHORT) :weight 5)",
		"(assert (not (= main!!c OVERLONG)))",
		"(check-sat)",
		"(get-model)",
		"(exit)",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines:\n%s", len(lines), p.String())
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestBuildRejectsNonSolverType(t *testing.T) {
	_, err := Build([]Constraint{Soft(P(Var("x"), TypeTerm(absint.Index)))}, DefaultWeights)
	if !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("got %v", err)
	}
}

func TestPredDefinitionShape(t *testing.T) {
	def := PredDefinition()
	if strings.Count(def, "(") != strings.Count(def, ")") {
		t.Fatalf("unbalanced definition")
	}
	if !strings.HasPrefix(def, "(define-fun P ((x!1 I) (x!2 I)) Bool (ite (and (= x!1 CHAR) (= x!2 CHAR)) true ") {
		t.Fatalf("unexpected prefix: %.80s", def)
	}
	if !strings.Contains(def, "(ite (= x!1 OVERLONG) true false)") {
		t.Fatalf("missing overlong clause")
	}
}

func TestRepresents(t *testing.T) {
	cases := []struct {
		wide, narrow absint.IntType
		want         bool
	}{
		{absint.Short, absint.Char, true},
		{absint.Short, absint.UShort, false},
		{absint.Long, absint.UInt, true},
		{absint.Long, absint.LongLong, false},
		{absint.LongLong, absint.Long, true},
		{absint.ULongLong, absint.Char, false},
		{absint.Overlong, absint.ULongLong, true},
	}
	for _, c := range cases {
		if got := Represents(c.wide, c.narrow); got != c.want {
			t.Errorf("Represents(%s, %s) = %v", c.wide.Code(), c.narrow.Code(), got)
		}
	}
}

const z3Output = `sat
(objectives
 (3)
)
(model
  (define-fun main!!c () I
    SHORT)
  (define-fun g () I
    ULINT)
)
`

func TestDecode(t *testing.T) {
	m, err := Decode(z3Output)
	if err != nil {
		t.Fatal(err)
	}
	if m.Objective != 3 {
		t.Errorf("objective = %d", m.Objective)
	}
	if m.Types["main::c"] != absint.Short || m.Types["g"] != absint.ULong {
		t.Errorf("types = %v", m.Types)
	}
}

func TestDecodeBareModel(t *testing.T) {
	m, err := Decode("sat\n(\n  (define-fun f!!n () I\n    INT)\n)\n")
	if err != nil {
		t.Fatal(err)
	}
	if m.Objective != -1 || m.Types["f::n"] != absint.Int {
		t.Fatalf("got %+v", m)
	}
}

func TestDecodeFailures(t *testing.T) {
	cases := []struct {
		out  string
		want error
	}{
		{"unsat\n", ErrUnsat},
		{"(error \"line 3\")\nsat", ErrUnsat},
		{"sat\n(objectives (1))", ErrModelParse},
		{"sat\n(model (define-fun x () Int 3))", ErrModelParse},
		{"sat\n(model (define-fun x () I INDEX))", ErrModelParse},
		{"sat\n(model (define-fun x () I INT)", ErrModelParse},
	}
	for _, c := range cases {
		if _, err := Decode(c.out); !errors.Is(err, c.want) {
			t.Errorf("Decode(%q) = %v, want %v", c.out, err, c.want)
		}
	}
}

type fakeRunner struct {
	out  string
	err  error
	path string
}

func (f *fakeRunner) Run(_ context.Context, path string) (string, error) {
	f.path = path
	return f.out, f.err
}

func TestSolveWithRunner(t *testing.T) {
	r := &fakeRunner{out: z3Output}
	m, err := Solve(context.Background(), r, "meta/constraint.smt2")
	if err != nil {
		t.Fatal(err)
	}
	if r.path != "meta/constraint.smt2" || len(m.Types) != 2 {
		t.Fatalf("got %+v via %q", m, r.path)
	}

	r = &fakeRunner{out: "unsat"}
	if _, err := Solve(context.Background(), r, "x.smt2"); !errors.Is(err, ErrUnsat) {
		t.Fatalf("got %v", err)
	}
}

func TestExecRunnerMissingBinary(t *testing.T) {
	r := ExecRunner{Path: "/nonexistent/solver-binary"}
	if _, err := r.Run(context.Background(), "x.smt2"); !errors.Is(err, ErrSolverStart) {
		t.Fatalf("got %v", err)
	}
}
