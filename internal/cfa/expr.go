package cfa

import (
	"fmt"
	"math/big"
)

// BinaryOp 二元运算符
type BinaryOp int

const (
	OpPlus BinaryOp = iota
	OpMinus
	OpMultiply
	OpDivide
	OpModulo
	OpShiftLeft
	OpShiftRight
	OpBitAnd
	OpBitOr
	OpBitXor
	OpLessThan
	OpLessEqual
	OpGreaterThan
	OpGreaterEqual
	OpEquals
	OpNotEquals
	OpLogicalAnd
	OpLogicalOr
)

var binaryOpText = map[BinaryOp]string{
	OpPlus: "+", OpMinus: "-", OpMultiply: "*", OpDivide: "/", OpModulo: "%",
	OpShiftLeft: "<<", OpShiftRight: ">>",
	OpBitAnd: "&", OpBitOr: "|", OpBitXor: "^",
	OpLessThan: "<", OpLessEqual: "<=", OpGreaterThan: ">", OpGreaterEqual: ">=",
	OpEquals: "==", OpNotEquals: "!=",
	OpLogicalAnd: "&&", OpLogicalOr: "||",
}

// ParseBinaryOp 由运算符记号得到 BinaryOp
func ParseBinaryOp(text string) (BinaryOp, bool) {
	for op, s := range binaryOpText {
		if s == text {
			return op, true
		}
	}
	return 0, false
}

func (op BinaryOp) String() string { return binaryOpText[op] }

// IsComparison 关系或相等运算
func (op BinaryOp) IsComparison() bool {
	return op >= OpLessThan && op <= OpNotEquals
}

// IsLogical 结果为 int 0/1 的运算
func (op BinaryOp) IsLogical() bool {
	return op >= OpLessThan
}

// Negate 分支取反时使用
func (op BinaryOp) Negate() BinaryOp {
	switch op {
	case OpLessThan:
		return OpGreaterEqual
	case OpLessEqual:
		return OpGreaterThan
	case OpGreaterThan:
		return OpLessEqual
	case OpGreaterEqual:
		return OpLessThan
	case OpEquals:
		return OpNotEquals
	case OpNotEquals:
		return OpEquals
	}
	return op
}

// UnaryOp 一元运算符
type UnaryOp int

const (
	OpNegate UnaryOp = iota // -
	OpUnaryPlus
	OpNot    // !
	OpTilde  // ~
	OpAmper  // &
	OpSizeof // sizeof expr
	OpAlignof
)

// Expr 表达式的封闭和类型，靠 ExprBase 上的非导出方法封闭
type Expr interface {
	Loc() FileLocation
	Type() *Type
	exprNode()
}

// ExprBase 所有表达式共有的位置和静态类型
type ExprBase struct {
	Location FileLocation
	Typ      *Type
}

func (e *ExprBase) Loc() FileLocation { return e.Location }
func (e *ExprBase) Type() *Type       { return e.Typ }
func (e *ExprBase) exprNode()         {}

// Base 供前端构造表达式
func Base(loc FileLocation, t *Type) ExprBase {
	return ExprBase{Location: loc, Typ: t}
}

// IDExpr 变量或枚举常量引用
type IDExpr struct {
	ExprBase
	Name      string
	Qualified string
	// DeclType 声明类型（数组未退化）
	DeclType *Type
	// Enumerator 非 nil 表示枚举常量
	Enumerator *big.Int
	Global     bool
}

type IntLiteral struct {
	ExprBase
	Value *big.Int
	Text  string
}

type CharLiteral struct {
	ExprBase
	Value int64
}

// OpaqueExpr 字符串、浮点等不跟踪的表达式
type OpaqueExpr struct {
	ExprBase
	Text string
}

type BinaryExpr struct {
	ExprBase
	Op          BinaryOp
	Left, Right Expr
}

type UnaryExpr struct {
	ExprBase
	Op      UnaryOp
	Operand Expr
	// TypeOperand sizeof(type) / _Alignof(type) 的类型参数
	TypeOperand *Type
}

type PointerDeref struct {
	ExprBase
	Operand Expr
}

type CastExpr struct {
	ExprBase
	Operand Expr
}

type SubscriptExpr struct {
	ExprBase
	Array, Index Expr
}

type FieldRef struct {
	ExprBase
	Owner Expr
	Field string
	Arrow bool
}

type CallExpr struct {
	ExprBase
	Name string
	Args []Expr
	// Params 已知原型时的形参类型
	Params   []*Type
	Variadic bool
	// Defined 被调用函数在本编译单元中有定义
	Defined bool
}

// ConditionalExpr c ? a : b
type ConditionalExpr struct {
	ExprBase
	Cond, Then, Else Expr
}

// WalkExpr 先序遍历
func WalkExpr(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch x := e.(type) {
	case *BinaryExpr:
		WalkExpr(x.Left, fn)
		WalkExpr(x.Right, fn)
	case *UnaryExpr:
		WalkExpr(x.Operand, fn)
	case *PointerDeref:
		WalkExpr(x.Operand, fn)
	case *CastExpr:
		WalkExpr(x.Operand, fn)
	case *SubscriptExpr:
		WalkExpr(x.Array, fn)
		WalkExpr(x.Index, fn)
	case *FieldRef:
		WalkExpr(x.Owner, fn)
	case *CallExpr:
		for _, a := range x.Args {
			WalkExpr(a, fn)
		}
	case *ConditionalExpr:
		WalkExpr(x.Cond, fn)
		WalkExpr(x.Then, fn)
		WalkExpr(x.Else, fn)
	case *IDExpr, *IntLiteral, *CharLiteral, *OpaqueExpr:
	default:
		panic(fmt.Sprintf("cfa: unhandled expression %T", e))
	}
}

// ExprString 调试输出
func ExprString(e Expr) string {
	switch x := e.(type) {
	case nil:
		return "<nil>"
	case *IDExpr:
		return x.Name
	case *IntLiteral:
		return x.Value.String()
	case *CharLiteral:
		return fmt.Sprintf("'%d'", x.Value)
	case *OpaqueExpr:
		return x.Text
	case *BinaryExpr:
		return fmt.Sprintf("(%s %s %s)", ExprString(x.Left), x.Op, ExprString(x.Right))
	case *UnaryExpr:
		ops := map[UnaryOp]string{OpNegate: "-", OpUnaryPlus: "+", OpNot: "!", OpTilde: "~", OpAmper: "&", OpSizeof: "sizeof ", OpAlignof: "_Alignof "}
		if x.Operand == nil {
			return fmt.Sprintf("%s(%s)", ops[x.Op], x.TypeOperand)
		}
		return ops[x.Op] + ExprString(x.Operand)
	case *PointerDeref:
		return "*" + ExprString(x.Operand)
	case *CastExpr:
		return fmt.Sprintf("(%s)%s", x.Typ, ExprString(x.Operand))
	case *SubscriptExpr:
		return fmt.Sprintf("%s[%s]", ExprString(x.Array), ExprString(x.Index))
	case *FieldRef:
		if x.Arrow {
			return ExprString(x.Owner) + "->" + x.Field
		}
		return ExprString(x.Owner) + "." + x.Field
	case *CallExpr:
		s := x.Name + "("
		for i, a := range x.Args {
			if i > 0 {
				s += ", "
			}
			s += ExprString(a)
		}
		return s + ")"
	case *ConditionalExpr:
		return fmt.Sprintf("(%s ? %s : %s)", ExprString(x.Cond), ExprString(x.Then), ExprString(x.Else))
	}
	panic(fmt.Sprintf("cfa: unhandled expression %T", e))
}
