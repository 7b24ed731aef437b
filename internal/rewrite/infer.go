package rewrite

import (
	"strings"

	"cintfix/internal/absint"
	"cintfix/internal/cfa"
	"cintfix/internal/sourcetree"
)

// span 按字节区间索引，文件名不参与
type span struct {
	offset, length int
}

func spanOf(l cfa.FileLocation) span {
	return span{l.Offset, l.Length}
}

// typeIndex 前端留下的静态类型和变量引用，按语法节点的区间查找
type typeIndex struct {
	static map[span]*cfa.Type
	idents map[span]string
	vars   map[string]*cfa.Type
}

func newTypeIndex(prog *cfa.Program) *typeIndex {
	ix := &typeIndex{
		static: make(map[span]*cfa.Type, len(prog.ExprTypes)),
		idents: make(map[span]string, len(prog.Idents)),
		vars:   prog.VarTypes,
	}
	for loc, t := range prog.ExprTypes {
		ix.static[spanOf(loc)] = t
	}
	for loc, name := range prog.Idents {
		ix.idents[spanOf(loc)] = name
	}
	return ix
}

// operatorOf 运算符在第一个子节点之后（二元）或之前（一元）的片段里
func operatorOf(n *sourcetree.Node) string {
	if len(n.Template) < 2 {
		return ""
	}
	if n.Kind == "binary_expression" {
		return strings.TrimSpace(n.Template[1])
	}
	return strings.TrimSpace(n.Template[0])
}

// typeOf 修复后节点的类型，用于决定检查函数的符号后缀
// 锁定的节点（显式转换、修改过的强制转换）直接取锁定的类型
func (f *Fixer) typeOf(id sourcetree.NodeID) absint.IntType {
	if f.tree.Node(id) == nil {
		return absint.Unknown
	}
	if t, ok := f.locks[id]; ok {
		return t
	}
	if t, ok := f.memo[id]; ok {
		return t
	}
	t := f.inferNode(id)
	f.memo[id] = t
	return t
}

func (f *Fixer) inferNode(id sourcetree.NodeID) absint.IntType {
	n := f.tree.Node(id)
	child := func(i int) absint.IntType { return f.typeOf(f.tree.Child(id, i)) }
	field := func(name string) absint.IntType { return f.typeOf(f.tree.ChildByField(id, name)) }

	switch n.Kind {
	case "assignment_expression":
		return child(0)
	case "binary_expression":
		switch operatorOf(n) {
		case "+", "-", "*", "/", "%", "&", "|", "^":
			return child(0).Merge(child(1)).PromoteInt()
		case "<<", ">>":
			return child(0).PromoteInt()
		}
		return absint.Int
	case "unary_expression":
		if operatorOf(n) == "!" {
			return absint.Int
		}
		return child(0).PromoteInt()
	case "sizeof_expression", "alignof_expression":
		return absint.SizeT
	case "pointer_expression":
		if operatorOf(n) == "&" {
			return absint.Unknown
		}
	case "conditional_expression":
		return field("consequence").Merge(field("alternative")).PromoteInt()
	case "parenthesized_expression", "update_expression":
		return child(0)
	case "comma_expression":
		return field("right")
	case "identifier":
		if name, ok := f.index.idents[spanOf(n.Loc)]; ok {
			if t, ok := f.types[name]; ok {
				return t
			}
			return f.index.vars[name].IntType()
		}
	}
	return f.staticType(id)
}

// staticType 前端推出的静态类型，没有记录时为 Unknown
func (f *Fixer) staticType(id sourcetree.NodeID) absint.IntType {
	n := f.tree.Node(id)
	if n == nil {
		return absint.Unknown
	}
	return f.index.static[spanOf(n.Loc)].IntType()
}

// declaredType 变量修复前的类型：声明类型，强制转换的中间变量取转换的类型
func (f *Fixer) declaredType(name string, loc cfa.FileLocation) (absint.IntType, bool) {
	if t := f.index.vars[name]; t != nil {
		return t.IntType(), t.IsInteger()
	}
	if t := f.index.static[spanOf(loc)]; t != nil {
		return t.IntType(), t.IsInteger()
	}
	return absint.Unknown, false
}
