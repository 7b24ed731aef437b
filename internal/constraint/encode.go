package constraint

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"cintfix/internal/absint"
)

// ErrMalformedInput 约束中出现求解器不认识的类型
var ErrMalformedInput = errors.New("constraint: malformed input")

const (
	typeDeclaration = "(declare-datatypes () ((I CHAR UCHAR SHORT USHORT INT UINT LINT ULINT LLINT ULLINT OVERLONG)))"
	assertHard      = "(assert %s)"
	assertSoft      = "(assert-soft %s :weight %s)"
	predPAssert     = "(P %s %s)"
	predEqAssert    = "(= %s %s)"
	orExpr          = "(or %s)"
	varDecl         = "(declare-fun %s () I)"
	notOverlong     = "(not (= %s OVERLONG))"
	checkSat        = "(check-sat)"
	getModel        = "(get-model)"
	exitCmd         = "(exit)"
)

// representable P 谓词为真的 (宽, 窄) 类型对，顺序即编码顺序
// 注意 LINT 与 LLINT 互不包含
var representable = [][2]absint.IntType{
	{absint.Char, absint.Char},
	{absint.UChar, absint.UChar},
	{absint.Short, absint.Char}, {absint.Short, absint.UChar}, {absint.Short, absint.Short},
	{absint.UShort, absint.UChar}, {absint.UShort, absint.UShort},
	{absint.Int, absint.Char}, {absint.Int, absint.UChar}, {absint.Int, absint.Short}, {absint.Int, absint.UShort}, {absint.Int, absint.Int},
	{absint.UInt, absint.UChar}, {absint.UInt, absint.UShort}, {absint.UInt, absint.UInt},
	{absint.Long, absint.Char}, {absint.Long, absint.UChar}, {absint.Long, absint.Short}, {absint.Long, absint.UShort},
	{absint.Long, absint.Int}, {absint.Long, absint.UInt}, {absint.Long, absint.Long},
	{absint.ULong, absint.UChar}, {absint.ULong, absint.UShort}, {absint.ULong, absint.UInt}, {absint.ULong, absint.ULong},
	{absint.LongLong, absint.Char}, {absint.LongLong, absint.UChar}, {absint.LongLong, absint.Short}, {absint.LongLong, absint.UShort},
	{absint.LongLong, absint.Int}, {absint.LongLong, absint.UInt}, {absint.LongLong, absint.Long}, {absint.LongLong, absint.LongLong},
	{absint.ULongLong, absint.UChar}, {absint.ULongLong, absint.UShort}, {absint.ULongLong, absint.UInt},
	{absint.ULongLong, absint.ULong}, {absint.ULongLong, absint.ULongLong},
}

// PredDefinition P 谓词的 ite 表；OVERLONG 能表示一切
func PredDefinition() string {
	var b strings.Builder
	b.WriteString("(define-fun P ((x!1 I) (x!2 I)) Bool ")
	for _, pair := range representable {
		fmt.Fprintf(&b, "(ite (and (= x!1 %s) (= x!2 %s)) true ", pair[0].Code(), pair[1].Code())
	}
	b.WriteString("(ite (= x!1 OVERLONG) true false)")
	b.WriteString(strings.Repeat(")", len(representable)+1))
	return b.String()
}

// Represents 与 P 表一致的判定，测试和日志使用
func Represents(wide, narrow absint.IntType) bool {
	if wide.IsOverlong() {
		return true
	}
	for _, pair := range representable {
		if pair[0] == wide && pair[1] == narrow {
			return true
		}
	}
	return false
}

// Problem 编码之后的 Max-SMT 问题
type Problem struct {
	// Vars 自由变量，按首次出现的顺序
	Vars       []string
	Assertions []string
}

// Build 把约束列表翻译为断言，约束按插入顺序输出
func Build(cs []Constraint, w Weights) (*Problem, error) {
	p := &Problem{}
	seen := make(map[string]bool)
	symbol := func(t Term) (string, error) {
		if t.IsType {
			if _, err := absint.ParseSolverSymbol(t.Type.Code()); err != nil {
				return "", fmt.Errorf("%w: %v", ErrMalformedInput, err)
			}
			return t.Type.Code(), nil
		}
		if t.Name == "" {
			return "", fmt.Errorf("%w: empty variable name", ErrMalformedInput)
		}
		sym := EncodeName(t.Name)
		if !seen[sym] {
			seen[sym] = true
			p.Vars = append(p.Vars, sym)
		}
		return sym, nil
	}

	for _, c := range cs {
		if len(c.Preds) == 0 {
			continue
		}
		clauses := make([]string, 0, len(c.Preds))
		for _, pred := range c.Preds {
			left, err := symbol(pred.Left)
			if err != nil {
				return nil, err
			}
			right, err := symbol(pred.Right)
			if err != nil {
				return nil, err
			}
			if pred.Kind == PredEQ {
				clauses = append(clauses, fmt.Sprintf(predEqAssert, left, right))
			} else {
				clauses = append(clauses, fmt.Sprintf(predPAssert, left, right))
			}
		}
		body := clauses[0]
		if len(clauses) > 1 {
			body = fmt.Sprintf(orExpr, strings.Join(clauses, " "))
		}
		if c.Soft {
			p.Assertions = append(p.Assertions, fmt.Sprintf(assertSoft, body, strconv.Itoa(w.weightOf(c))))
		} else {
			p.Assertions = append(p.Assertions, fmt.Sprintf(assertHard, body))
		}
	}
	return p, nil
}

// WriteTo 输出 SMT-LIB2 文本
func (p *Problem) WriteTo(out io.Writer) (int64, error) {
	bw := bufio.NewWriter(out)
	var n int64
	line := func(s string) {
		k, _ := bw.WriteString(s)
		n += int64(k)
		k, _ = bw.WriteString("\n")
		n += int64(k)
	}
	line(typeDeclaration)
	line(PredDefinition())
	for _, v := range p.Vars {
		line(fmt.Sprintf(varDecl, v))
	}
	for _, a := range p.Assertions {
		line(a)
	}
	for _, v := range p.Vars {
		line(fmt.Sprintf(assertHard, fmt.Sprintf(notOverlong, v)))
	}
	line(checkSat)
	line(getModel)
	k, _ := bw.WriteString(exitCmd)
	n += int64(k)
	return n, bw.Flush()
}

// String 完整的 SMT-LIB2 文本
func (p *Problem) String() string {
	var b strings.Builder
	_, _ = p.WriteTo(&b)
	return b.String()
}
