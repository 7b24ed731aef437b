package cfa

import "fmt"

// EdgeKind 控制流边的种类
type EdgeKind int

const (
	BlankEdge EdgeKind = iota
	DeclarationEdge
	StatementEdge
	AssumeEdge
	CallEdge
	FunctionReturnEdge
	ReturnStatementEdge
)

func (k EdgeKind) String() string {
	switch k {
	case BlankEdge:
		return "blank"
	case DeclarationEdge:
		return "declaration"
	case StatementEdge:
		return "statement"
	case AssumeEdge:
		return "assume"
	case CallEdge:
		return "call"
	case FunctionReturnEdge:
		return "function-return"
	case ReturnStatementEdge:
		return "return"
	}
	return fmt.Sprintf("edge(%d)", int(k))
}

// RetVarName 函数返回值变量的限定名
func RetVarName(function string) string {
	return function + "::__retval__"
}

// Qualify 局部变量限定名
func Qualify(function, name string) string {
	if function == "" {
		return name
	}
	return function + "::" + name
}

// Node CFA 节点
type Node struct {
	ID       int
	Function string
	Leaving  []*Edge
	Entering []*Edge
	// Exit 函数出口节点
	Exit bool
}

func (n *Node) String() string {
	return fmt.Sprintf("N%d(%s)", n.ID, n.Function)
}

// Declaration 变量声明
type Declaration struct {
	Name      string
	Qualified string
	Type      *Type
	Init      Expr
	Extern    bool
	Global    bool
	// Synthetic 前端生成的临时变量，没有源码位置
	Synthetic bool
	// Loc 整条声明语句的位置
	Loc FileLocation
}

// Statement 语句边上的载荷
type Statement interface {
	stmtNode()
}

// AssignStmt lhs = rhs；复合赋值和自增自减已在前端展开
type AssignStmt struct {
	LHS, RHS Expr
	Loc      FileLocation
}

// ExprStmt 只为副作用求值的表达式（通常是库函数调用）
type ExprStmt struct {
	Expr Expr
	Loc  FileLocation
}

func (*AssignStmt) stmtNode() {}
func (*ExprStmt) stmtNode()   {}

// Assumption 分支条件：总是一个比较表达式加上取真/取假
type Assumption struct {
	Expr  *BinaryExpr
	Truth bool
}

// CallSite 对本单元内定义函数的调用
type CallSite struct {
	Call   *CallExpr
	LHS    Expr
	Caller string
	Callee *Function
	// ReturnNode 调用返回后调用者所在节点
	ReturnNode *Node
	Loc        FileLocation
}

// ReturnStmt return 语句
type ReturnStmt struct {
	Expr     Expr
	Function *Function
	Loc      FileLocation
}

// Edge 控制流边，按 Kind 只有一个载荷字段有效
type Edge struct {
	Kind     EdgeKind
	From, To *Node
	Loc      FileLocation
	Decl     *Declaration
	Stmt     Statement
	Assume   *Assumption
	Call     *CallSite
	Return   *ReturnStmt
	Label    string
}

func (e *Edge) String() string {
	switch e.Kind {
	case DeclarationEdge:
		return fmt.Sprintf("%s -> %s: decl %s", e.From, e.To, e.Decl.Qualified)
	case AssumeEdge:
		return fmt.Sprintf("%s -> %s: [%v] %s", e.From, e.To, e.Assume.Truth, ExprString(e.Assume.Expr))
	case CallEdge:
		return fmt.Sprintf("%s -> %s: call %s", e.From, e.To, e.Call.Callee.Name)
	}
	return fmt.Sprintf("%s -> %s: %s %s", e.From, e.To, e.Kind, e.Label)
}

// Param 形参
type Param struct {
	Name      string
	Qualified string
	Type      *Type
	Loc       FileLocation
}

// Function 一个函数定义的 CFA
type Function struct {
	Name       string
	Params     []*Param
	ReturnType *Type
	Variadic   bool
	Entry      *Node
	Exit       *Node
	Loc        FileLocation
	// BodyLoc 函数体（花括号）位置
	BodyLoc FileLocation
}

// RetVar 返回值变量，void 函数返回空串
func (f *Function) RetVar() string {
	if f.ReturnType == nil || f.ReturnType.IsVoid() {
		return ""
	}
	return RetVarName(f.Name)
}

// Program 一个编译单元的 CFA
type Program struct {
	File      string
	Functions map[string]*Function
	// Order 函数定义在源码中的顺序
	Order []string
	// Start 全局声明链的起点，链尾节点没有出边
	Start *Node
	// Entry 入口函数名，没有 main 时为空
	Entry string
	Nodes []*Node
	// VarTypes 限定名到声明类型
	VarTypes map[string]*Type
	// ExprTypes 源码位置到表达式静态类型
	ExprTypes map[FileLocation]*Type
	// Idents 变量引用位置到限定名
	Idents map[FileLocation]string
}

// NewProgram 创建空的 Program
func NewProgram(file string) *Program {
	return &Program{
		File:      file,
		Functions: make(map[string]*Function),
		VarTypes:  make(map[string]*Type),
		ExprTypes: make(map[FileLocation]*Type),
		Idents:    make(map[FileLocation]string),
	}
}

// NewNode 分配节点
func (p *Program) NewNode(function string) *Node {
	n := &Node{ID: len(p.Nodes), Function: function}
	p.Nodes = append(p.Nodes, n)
	return n
}

// Connect 连接一条边
func (p *Program) Connect(e *Edge) *Edge {
	e.From.Leaving = append(e.From.Leaving, e)
	e.To.Entering = append(e.To.Entering, e)
	return e
}

// EdgeCount 边的总数
func (p *Program) EdgeCount() int {
	total := 0
	for _, n := range p.Nodes {
		total += len(n.Leaving)
	}
	return total
}
