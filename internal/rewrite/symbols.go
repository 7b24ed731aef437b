package rewrite

import (
	"cintfix/internal/sourcetree"
)

// SymbolKind 符号种类
type SymbolKind int

const (
	SymbolVariable SymbolKind = iota
	SymbolFunction
)

// Symbol 文件作用域中的一个声明符
type Symbol struct {
	Name string
	Kind SymbolKind
	// Decl 所在的 declaration 节点
	Decl sourcetree.NodeID
	// Ident 声明符中的标识符节点
	Ident sourcetree.NodeID
	Line  int
}

// SymbolTable 文件作用域的声明，同一名字可以被声明多次（extern 再声明等）
type SymbolTable struct {
	symbols map[string][]*Symbol
	byDecl  map[sourcetree.NodeID][]*Symbol
}

// NewSymbolTable 收集语法树中所有文件作用域的声明
func NewSymbolTable(t *sourcetree.Tree) *SymbolTable {
	st := &SymbolTable{
		symbols: make(map[string][]*Symbol),
		byDecl:  make(map[sourcetree.NodeID][]*Symbol),
	}
	for i := 0; i < t.Len(); i++ {
		id := sourcetree.NodeID(i)
		if t.Kind(id) != "declaration" || !isFileScope(t, id) {
			continue
		}
		for _, d := range declarators(t, id) {
			ident, fn := declaratorIdent(t, d)
			if ident == sourcetree.NoNode {
				continue
			}
			kind := SymbolVariable
			if fn {
				kind = SymbolFunction
			}
			st.Add(&Symbol{
				Name:  t.Text(ident),
				Kind:  kind,
				Decl:  id,
				Ident: ident,
				Line:  t.Node(ident).Loc.StartLine,
			})
		}
	}
	return st
}

// Add 添加符号
func (st *SymbolTable) Add(s *Symbol) {
	st.symbols[s.Name] = append(st.symbols[s.Name], s)
	st.byDecl[s.Decl] = append(st.byDecl[s.Decl], s)
}

// Lookup 名字的全部声明，按源码顺序
func (st *SymbolTable) Lookup(name string) []*Symbol {
	return st.symbols[name]
}

// Declared 一条声明语句引入的符号
func (st *SymbolTable) Declared(decl sourcetree.NodeID) []*Symbol {
	return st.byDecl[decl]
}

// Len 符号名个数
func (st *SymbolTable) Len() int {
	return len(st.symbols)
}

func isFileScope(t *sourcetree.Tree, id sourcetree.NodeID) bool {
	return t.Ancestor(id, "function_definition") == sourcetree.NoNode &&
		t.Ancestor(id, "compound_statement") == sourcetree.NoNode
}

// declarators declaration 节点的全部声明符
func declarators(t *sourcetree.Tree, decl sourcetree.NodeID) []sourcetree.NodeID {
	n := t.Node(decl)
	if n == nil {
		return nil
	}
	var out []sourcetree.NodeID
	for _, c := range n.Children {
		if t.Node(c).Field == "declarator" {
			out = append(out, c)
		}
	}
	return out
}

// declaratorIdent 沿声明符链找到被声明的标识符；fn 表示链上有函数声明符
func declaratorIdent(t *sourcetree.Tree, id sourcetree.NodeID) (ident sourcetree.NodeID, fn bool) {
	for id != sourcetree.NoNode {
		switch t.Kind(id) {
		case "identifier", "field_identifier":
			return id, fn
		case "function_declarator":
			fn = true
			id = t.ChildByField(id, "declarator")
		case "init_declarator", "pointer_declarator", "array_declarator":
			id = t.ChildByField(id, "declarator")
		case "parenthesized_declarator", "attributed_declarator":
			id = t.Child(id, 0)
		default:
			return sourcetree.NoNode, fn
		}
	}
	return sourcetree.NoNode, fn
}
