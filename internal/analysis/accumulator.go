package analysis

import (
	"fmt"
	"log"
	"sort"

	"cintfix/internal/absint"
	"cintfix/internal/artifact"
	"cintfix/internal/cfa"
	"cintfix/internal/constraint"
	"cintfix/internal/fixguide"
)

// SinkNode 指向未知位置或非整数目标的指针都指向这个节点
const SinkNode = "!!notid"

// IntermPrefix 类型转换中间量的名字前缀
const IntermPrefix = "!INTERM_"

// maxPointerChain 指向链的最大长度，防止强制转换造成的环
const maxPointerChain = 64

// Accumulator 一次分析（一个翻译单元）中单调累积的全部产物
// 由转移关系显式传入，不同翻译单元各自一份，可以并发分析
type Accumulator struct {
	Constraints []constraint.Constraint
	Name2Loc    map[string]cfa.FileLocation
	Loc2Guide   map[cfa.FileLocation]fixguide.Guide
	// PointsTo 单层指向关系：指针 -> 下一跳（整数变量、指针或 SinkNode）
	PointsTo map[string]string
	IntNames map[string]struct{}

	// synthetic 前端生成的临时变量，不参与类型求解
	synthetic map[string]struct{}
	interm    int
	verbose   bool
}

// NewAccumulator 创建空的累积器
func NewAccumulator() *Accumulator {
	return &Accumulator{
		Name2Loc:  make(map[string]cfa.FileLocation),
		Loc2Guide: make(map[cfa.FileLocation]fixguide.Guide),
		PointsTo:  make(map[string]string),
		IntNames:  make(map[string]struct{}),
		synthetic: make(map[string]struct{}),
	}
}

// SetVerbose 打开详细日志
func (a *Accumulator) SetVerbose(v bool) { a.verbose = v }

func (a *Accumulator) addConstraint(c constraint.Constraint) {
	preds := c.Preds[:0:0]
	for _, p := range c.Preds {
		if a.isSynthetic(p.Left) || a.isSynthetic(p.Right) {
			continue
		}
		preds = append(preds, p)
	}
	if len(preds) == 0 {
		return
	}
	c.Preds = preds
	a.Constraints = append(a.Constraints, c)
}

func (a *Accumulator) isSynthetic(t constraint.Term) bool {
	if t.IsType {
		return false
	}
	_, ok := a.synthetic[t.Name]
	return ok
}

func (a *Accumulator) markSynthetic(name string) {
	a.synthetic[name] = struct{}{}
}

// softP 软约束 P(name, t)
func (a *Accumulator) softP(name string, t absint.IntType) {
	a.addConstraint(constraint.Soft(constraint.P(constraint.Var(name), constraint.TypeTerm(t))))
}

// softAnyP 软约束 P(n1, t) ∨ P(n2, t) ∨ ...
func (a *Accumulator) softAnyP(names []string, t absint.IntType) {
	preds := make([]constraint.Predicate, 0, len(names))
	for _, n := range names {
		preds = append(preds, constraint.P(constraint.Var(n), constraint.TypeTerm(t)))
	}
	a.addConstraint(constraint.Soft(preds...))
}

func (a *Accumulator) softEQ(name string, t absint.IntType) {
	a.addConstraint(constraint.Soft(constraint.EQ(constraint.Var(name), constraint.TypeTerm(t))))
}

func (a *Accumulator) softDP(name string, t absint.IntType) {
	a.addConstraint(constraint.Soft(constraint.DP(constraint.Var(name), constraint.TypeTerm(t))))
}

func (a *Accumulator) hardEQ(name string, t absint.IntType) {
	a.addConstraint(constraint.Hard(constraint.EQ(constraint.Var(name), constraint.TypeTerm(t))))
}

// locate 记录变量的声明位置
func (a *Accumulator) locate(name string, loc cfa.FileLocation) {
	a.Name2Loc[name] = loc
}

// addGuide 插入修复指引，同一位置已有指引时合并
// 合成位置不对应源码，直接丢弃
func (a *Accumulator) addGuide(loc cfa.FileLocation, g fixguide.Guide) {
	if loc.IsDummy() {
		return
	}
	prev, ok := a.Loc2Guide[loc]
	if !ok {
		a.Loc2Guide[loc] = g
		return
	}
	merged := prev.Merge(g)
	if a.verbose && merged == prev && prev != g {
		log.Printf("【分析】位置 %s 的指引 %s 与已有 %s 不兼容，保留先到的", loc, g, prev)
	}
	a.Loc2Guide[loc] = merged
}

// compareGuides 比较的两个操作数转换到能容纳双方的同一类型
// 每次访问两边都插入指引，两处合并出的类型因此始终相同；
// 值域超出所有原生类型时插入 overlong，该位置之后不再做转换
func (a *Accumulator) compareGuides(left, right cfa.Expr, l, r exprInfo) {
	if l.t.IsOther() || r.t.IsOther() {
		return
	}
	g := fixguide.NewConv(absint.FromRange(l.r.Union(r.r)))
	a.addGuide(left.Loc(), g)
	a.addGuide(right.Loc(), g)
}

func (a *Accumulator) markInt(name string) {
	a.IntNames[name] = struct{}{}
}

// IsInt 该名字是否为已声明的整数变量
func (a *Accumulator) IsInt(name string) bool {
	_, ok := a.IntNames[name]
	return ok
}

// pointTo 设置指向关系，目标为空时指向 SinkNode
func (a *Accumulator) pointTo(ptr, target string) {
	if target == "" {
		target = SinkNode
	}
	a.PointsTo[ptr] = target
}

func (a *Accumulator) newInterm() string {
	name := fmt.Sprintf("%s%d", IntermPrefix, a.interm)
	a.interm++
	return name
}

// distance 指针表达式到整数变量之间还差几次解引用
// 链断开或指向 SinkNode 时返回 (-1, "")
func (a *Accumulator) distance(e cfa.Expr) (int, string) {
	switch x := e.(type) {
	case *cfa.IDExpr:
		if x.Enumerator != nil {
			return -1, ""
		}
		q := x.Qualified
		if a.IsInt(q) {
			return 0, q
		}
		if _, ok := a.PointsTo[q]; !ok {
			return -1, ""
		}
		dist, cur := 0, q
		for {
			next, ok := a.PointsTo[cur]
			if !ok {
				break
			}
			cur = next
			dist++
			if dist > maxPointerChain {
				return -1, ""
			}
		}
		if cur == SinkNode {
			return -1, ""
		}
		return dist, cur
	case *cfa.PointerDeref:
		d, t := a.distance(x.Operand)
		if d < 0 {
			return -1, ""
		}
		return d - 1, t
	case *cfa.UnaryExpr:
		if x.Op != cfa.OpAmper {
			return -1, ""
		}
		d, t := a.distance(x.Operand)
		if d < 0 {
			return -1, ""
		}
		return d + 1, t
	}
	return -1, ""
}

// nextNode 指针表达式的下一跳，未知时返回空串
func (a *Accumulator) nextNode(e cfa.Expr) string {
	switch x := e.(type) {
	case *cfa.IDExpr:
		if a.IsInt(x.Qualified) {
			return x.Qualified
		}
		return a.PointsTo[x.Qualified]
	case *cfa.PointerDeref:
		t := a.nextNode(x.Operand)
		if t == "" {
			return ""
		}
		return a.PointsTo[t]
	case *cfa.UnaryExpr:
		if x.Op == cfa.OpAmper {
			return a.leftHandNode(x.Operand)
		}
	case *cfa.CastExpr:
		return a.nextNode(x.Operand)
	}
	return ""
}

// leftHandNode 左值对应的跟踪名字，字段和下标等不可跟踪的左值返回空串
func (a *Accumulator) leftHandNode(e cfa.Expr) string {
	switch x := e.(type) {
	case *cfa.IDExpr:
		if x.Enumerator != nil {
			return ""
		}
		if _, ok := a.PointsTo[x.Qualified]; ok || a.IsInt(x.Qualified) {
			return x.Qualified
		}
	case *cfa.PointerDeref:
		if u, ok := x.Operand.(*cfa.UnaryExpr); ok {
			if u.Op == cfa.OpAmper {
				return a.leftHandNode(u.Operand)
			}
			return ""
		}
		t := a.leftHandNode(x.Operand)
		if t == "" {
			return ""
		}
		return a.PointsTo[t]
	}
	return ""
}

// Stats 用于日志和报告
type Stats struct {
	Constraints int
	Variables   int
	Guides      int
	Pointers    int
}

func (a *Accumulator) Stats() Stats {
	return Stats{
		Constraints: len(a.Constraints),
		Variables:   len(a.Name2Loc),
		Guides:      len(a.Loc2Guide),
		Pointers:    len(a.PointsTo),
	}
}

// Bundle 打包为缓存和产物文件使用的形式
func (a *Accumulator) Bundle(source, sourceHash string) *artifact.Bundle {
	names := make([]string, 0, len(a.IntNames))
	for n := range a.IntNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return &artifact.Bundle{
		Source:      source,
		SourceHash:  sourceHash,
		Constraints: a.Constraints,
		Name2Loc:    a.Name2Loc,
		Loc2Guide:   a.Loc2Guide,
		PointsTo:    a.PointsTo,
		IntNames:    names,
	}
}

// FromBundle 由缓存恢复累积器
func FromBundle(b *artifact.Bundle) *Accumulator {
	a := NewAccumulator()
	a.Constraints = b.Constraints
	for k, v := range b.Name2Loc {
		a.Name2Loc[k] = v
	}
	for k, v := range b.Loc2Guide {
		a.Loc2Guide[k] = v
	}
	for k, v := range b.PointsTo {
		a.PointsTo[k] = v
	}
	for _, n := range b.IntNames {
		a.markInt(n)
	}
	return a
}
