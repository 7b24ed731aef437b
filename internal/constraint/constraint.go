package constraint

import (
	"fmt"
	"strings"

	"cintfix/internal/absint"
)

// PredKind 谓词种类
type PredKind int

const (
	// PredP a 的类型能表示 b
	PredP PredKind = iota
	// PredEQ a 与 b 类型相同
	PredEQ
	// PredDP 声明类型版本的 P，权重单独配置
	PredDP
)

func (k PredKind) String() string {
	switch k {
	case PredEQ:
		return "eq"
	case PredDP:
		return "dp"
	}
	return "p"
}

// Term 谓词的操作数：变量的限定名或类型符号
type Term struct {
	Name string
	// Type 仅在 IsType 为真时有效
	Type   absint.IntType
	IsType bool
}

// Var 变量项
func Var(qualified string) Term {
	return Term{Name: qualified}
}

// TypeTerm 类型符号项
func TypeTerm(t absint.IntType) Term {
	return Term{Type: t, IsType: true}
}

// RangeTerm 能容纳区间的最小类型
func RangeTerm(r absint.Interval) Term {
	return TypeTerm(absint.FromRange(r))
}

// Symbol 写入求解器时的名字：类型用类型码，变量把 "::" 换成 "!!"
func (t Term) Symbol() string {
	if t.IsType {
		return t.Type.Code()
	}
	return EncodeName(t.Name)
}

func (t Term) String() string {
	if t.IsType {
		return t.Type.Code()
	}
	return t.Name
}

// EncodeName SMT-LIB2 标识符不允许 "::"
func EncodeName(name string) string {
	return strings.ReplaceAll(name, "::", "!!")
}

// DecodeName 还原限定名
func DecodeName(sym string) string {
	return strings.ReplaceAll(sym, "!!", "::")
}

// Predicate 一个原子谓词
type Predicate struct {
	Kind        PredKind
	Left, Right Term
}

func P(a, b Term) Predicate  { return Predicate{Kind: PredP, Left: a, Right: b} }
func EQ(a, b Term) Predicate { return Predicate{Kind: PredEQ, Left: a, Right: b} }
func DP(a, b Term) Predicate { return Predicate{Kind: PredDP, Left: a, Right: b} }

func (p Predicate) String() string {
	return fmt.Sprintf("%s(%s, %s)", p.Kind, p.Left, p.Right)
}

// Constraint 若干谓词的析取，软约束可以违反但有代价
type Constraint struct {
	Preds []Predicate
	Soft  bool
}

// Soft 软约束
func Soft(preds ...Predicate) Constraint {
	return Constraint{Preds: preds, Soft: true}
}

// Hard 硬约束
func Hard(preds ...Predicate) Constraint {
	return Constraint{Preds: preds}
}

func (c Constraint) String() string {
	parts := make([]string, len(c.Preds))
	for i, p := range c.Preds {
		parts[i] = p.String()
	}
	kind := "hard"
	if c.Soft {
		kind = "soft"
	}
	return kind + " " + strings.Join(parts, " | ")
}

// Variables 约束中出现的变量名（限定名）
func (c Constraint) Variables() []string {
	var names []string
	for _, p := range c.Preds {
		for _, t := range []Term{p.Left, p.Right} {
			if !t.IsType {
				names = append(names, t.Name)
			}
		}
	}
	return names
}

// Weights 软约束权重
type Weights struct {
	P  int `toml:"p"`
	DP int `toml:"dp"`
	EQ int `toml:"eq"`
}

// DefaultWeights 低惩罚配置
var DefaultWeights = Weights{P: 1, DP: 1, EQ: 2}

// weightOf 单谓词按种类取权重，多个谓词的析取按 P 计
func (w Weights) weightOf(c Constraint) int {
	if len(c.Preds) != 1 {
		return w.P
	}
	switch c.Preds[0].Kind {
	case PredEQ:
		return w.EQ
	case PredDP:
		return w.DP
	}
	return w.P
}
