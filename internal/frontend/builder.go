package frontend

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"strconv"

	sitter "github.com/smacker/go-tree-sitter"

	"cintfix/internal/absint"
	"cintfix/internal/cfa"
)

// tempPrefix 前端生成的临时变量名前缀
const tempPrefix = "__cintfix_tmp"

// exprMode 表达式转换模式
type exprMode int

const (
	modeNormal exprMode = iota
	// modeDummy 复合赋值展开时左值的副本：没有位置，不产生边
	modeDummy
	// modeSuppress sizeof 的操作数：不求值，不产生边
	modeSuppress
)

// builder 把一个翻译单元的语法树构造成 CFA
type builder struct {
	ctx    context.Context
	unit   *Unit
	prog   *cfa.Program
	global *scope
	scope  *scope

	// 当前函数，构造全局声明链时为 nil
	fn  *cfa.Function
	cur *cfa.Node

	breaks    []*cfa.Node
	continues []*cfa.Node
	switches  []*switchContext
	labels    map[string]*cfa.Node
	placed    map[string]bool
	// declared 函数内已使用的局部名字，用于重命名被遮蔽的变量
	declared map[string]int
	temps    int
	mode     exprMode
	verbose  bool
}

// Option 构造参数
type Option func(*builder)

// WithVerbose 打印构造过程中的告警
func WithVerbose(v bool) Option {
	return func(b *builder) { b.verbose = v }
}

// Build 解析并构造 CFA
func Build(ctx context.Context, path string, source []byte, opts ...Option) (*cfa.Program, error) {
	unit, err := Parse(ctx, path, source)
	if err != nil {
		return nil, err
	}
	defer unit.Close()
	return BuildUnit(ctx, unit, opts...)
}

// BuildFile 读取文件并构造 CFA
func BuildFile(ctx context.Context, path string, opts ...Option) (*cfa.Program, error) {
	unit, err := ParseFile(ctx, path)
	if err != nil {
		return nil, err
	}
	defer unit.Close()
	return BuildUnit(ctx, unit, opts...)
}

// BuildUnit 由已解析的语法树构造 CFA
func BuildUnit(ctx context.Context, unit *Unit, opts ...Option) (*cfa.Program, error) {
	global := newScope(nil)
	b := &builder{
		ctx:    ctx,
		unit:   unit,
		prog:   cfa.NewProgram(unit.Path),
		global: global,
		scope:  global,
	}
	for _, opt := range opts {
		opt(b)
	}

	items := b.topLevel(unit.Root, nil)
	// 第一遍：类型、原型和函数骨架，使调用可以出现在定义之前
	for _, item := range items {
		if err := b.declareTopLevel(item); err != nil {
			return nil, err
		}
	}

	// 第二遍：全局声明链和函数体
	b.prog.Start = b.prog.NewNode("")
	b.cur = b.prog.Start
	var bodies []*sitter.Node
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch item.Type() {
		case "declaration":
			if err := b.declaration(item); err != nil {
				return nil, err
			}
		case "function_definition":
			bodies = append(bodies, item)
		}
	}
	for _, item := range bodies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := b.functionBody(item); err != nil {
			return nil, err
		}
	}
	if _, ok := b.prog.Functions["main"]; ok {
		b.prog.Entry = "main"
	}
	if b.verbose {
		log.Printf("【前端】%s: %d 个函数, %d 个节点, %d 条边",
			unit.Path, len(b.prog.Functions), len(b.prog.Nodes), b.prog.EdgeCount())
	}
	return b.prog, nil
}

// topLevel 展开预处理条件块，返回顶层条目
func (b *builder) topLevel(n *sitter.Node, out []*sitter.Node) []*sitter.Node {
	for _, child := range namedChildren(n) {
		switch child.Type() {
		case "preproc_if", "preproc_ifdef", "preproc_else", "preproc_elif", "preproc_elifdef":
			out = b.topLevel(child, out)
		case "declaration", "function_definition", "type_definition",
			"struct_specifier", "union_specifier", "enum_specifier":
			out = append(out, child)
		}
	}
	return out
}

func (b *builder) declareTopLevel(n *sitter.Node) error {
	switch n.Type() {
	case "type_definition":
		return b.typeDefinition(n)
	case "declaration":
		base, err := b.specifier(n.ChildByFieldName("type"))
		if err != nil {
			return err
		}
		for _, d := range childrenByField(n, "declarator") {
			name, t, err := b.declarator(base, d)
			if err != nil {
				return err
			}
			if t.Kind == cfa.TypeFunction && name != "" {
				b.global.names[name] = &symbol{qualified: name, typ: t, global: true, function: true}
			}
		}
		return nil
	case "function_definition":
		return b.functionSkeleton(n)
	case "struct_specifier", "union_specifier", "enum_specifier":
		_, err := b.specifier(n)
		return err
	}
	return nil
}

func (b *builder) typeDefinition(n *sitter.Node) error {
	base, err := b.specifier(n.ChildByFieldName("type"))
	if err != nil {
		return err
	}
	for _, d := range childrenByField(n, "declarator") {
		name, t, err := b.declarator(base, d)
		if err != nil {
			return err
		}
		if name != "" {
			b.scope.typedefs[name] = t
		}
	}
	return nil
}

// functionSkeleton 登记函数签名，分配入口和出口节点
func (b *builder) functionSkeleton(n *sitter.Node) error {
	ret, err := b.specifier(n.ChildByFieldName("type"))
	if err != nil {
		return err
	}
	decl := n.ChildByFieldName("declarator")
	fd := functionDeclarator(decl)
	if fd == nil {
		return fmt.Errorf("%w: function definition without parameter list at %s", ErrMalformedInput, b.unit.Loc(n))
	}
	name, t, err := b.declarator(ret, decl)
	if err != nil {
		return err
	}
	if name == "" || t.Kind != cfa.TypeFunction {
		return fmt.Errorf("%w: cannot resolve function name at %s", ErrMalformedInput, b.unit.Loc(n))
	}
	if _, dup := b.prog.Functions[name]; dup {
		if b.verbose {
			log.Printf("【前端】%s 重复定义函数 %s，忽略", b.unit.Loc(n), name)
		}
		return nil
	}
	params, variadic, err := b.parameters(fd.ChildByFieldName("parameters"))
	if err != nil {
		return err
	}
	fn := &cfa.Function{
		Name:       name,
		ReturnType: t.Return,
		Variadic:   variadic,
		Loc:        b.unit.Loc(n),
		BodyLoc:    b.unit.Loc(n.ChildByFieldName("body")),
	}
	for _, p := range params {
		fn.Params = append(fn.Params, &cfa.Param{
			Name:      p.name,
			Qualified: cfa.Qualify(name, p.name),
			Type:      p.typ,
			Loc:       b.unit.Loc(p.node),
		})
	}
	fn.Entry = b.prog.NewNode(name)
	fn.Exit = b.prog.NewNode(name)
	fn.Exit.Exit = true
	b.prog.Functions[name] = fn
	b.prog.Order = append(b.prog.Order, name)
	b.global.names[name] = &symbol{qualified: name, typ: t, global: true, function: true}
	if rv := fn.RetVar(); rv != "" {
		b.prog.VarTypes[rv] = fn.ReturnType
	}
	return nil
}

// functionDeclarator 找到直接声明函数的 function_declarator
func functionDeclarator(n *sitter.Node) *sitter.Node {
	var found *sitter.Node
	for n != nil {
		switch n.Type() {
		case "function_declarator":
			found = n
			n = n.ChildByFieldName("declarator")
		case "pointer_declarator", "attributed_declarator":
			if found != nil {
				return found
			}
			n = n.ChildByFieldName("declarator")
		case "parenthesized_declarator":
			inner := namedChildren(n)
			if len(inner) == 0 {
				return found
			}
			n = inner[len(inner)-1]
		default:
			return found
		}
	}
	return found
}

func (b *builder) functionBody(n *sitter.Node) error {
	name, err := b.functionName(n)
	if err != nil {
		return err
	}
	fn, ok := b.prog.Functions[name]
	if !ok {
		return nil
	}
	if fn.Entry != nil && len(fn.Entry.Leaving) > 0 {
		// 重复定义，第一遍已经跳过
		return nil
	}

	b.fn = fn
	b.cur = fn.Entry
	b.labels = make(map[string]*cfa.Node)
	b.placed = make(map[string]bool)
	b.declared = make(map[string]int)
	b.breaks, b.continues, b.switches = nil, nil, nil
	b.scope = newScope(b.global)
	defer func() {
		b.fn = nil
		b.scope = b.global
	}()

	for _, p := range fn.Params {
		if p.Name == "" {
			continue
		}
		b.declared[p.Name]++
		b.scope.names[p.Name] = &symbol{qualified: p.Qualified, typ: p.Type}
		b.prog.VarTypes[p.Qualified] = p.Type
	}

	body := n.ChildByFieldName("body")
	if err := b.statement(body); err != nil {
		return fmt.Errorf("function %s: %w", name, err)
	}
	// 正常走到函数末尾
	if b.cur != nil {
		b.blank(b.cur, fn.Exit, b.unit.Loc(body), "end")
	}
	for label := range b.labels {
		if !b.placed[label] {
			return fmt.Errorf("function %s: %w: label %s is never defined", name, ErrMalformedInput, label)
		}
	}
	return nil
}

func (b *builder) functionName(n *sitter.Node) (string, error) {
	ret, err := b.specifier(n.ChildByFieldName("type"))
	if err != nil {
		return "", err
	}
	name, _, err := b.declarator(ret, n.ChildByFieldName("declarator"))
	return name, err
}

// newNode 当前函数的新节点；全局声明链上的节点属于空函数名
func (b *builder) newNode() *cfa.Node {
	if b.fn == nil {
		return b.prog.NewNode("")
	}
	return b.prog.NewNode(b.fn.Name)
}

// emit 从当前节点接一条边到新节点并前进
func (b *builder) emit(e *cfa.Edge) {
	if b.cur == nil {
		// 跳转语句之后的死代码仍然构造，挂在一个没有前驱的节点上
		b.cur = b.newNode()
	}
	next := b.newNode()
	e.From, e.To = b.cur, next
	b.prog.Connect(e)
	b.cur = next
}

// addEdge 连接两个已有节点
func (b *builder) addEdge(from, to *cfa.Node, e *cfa.Edge) {
	if from == nil || to == nil {
		return
	}
	e.From, e.To = from, to
	b.prog.Connect(e)
}

func (b *builder) blank(from, to *cfa.Node, loc cfa.FileLocation, label string) {
	b.addEdge(from, to, &cfa.Edge{Kind: cfa.BlankEdge, Loc: loc, Label: label})
}

// local 为局部变量分配限定名，同名变量按出现次序加后缀
func (b *builder) local(name string) string {
	if b.fn == nil {
		return name
	}
	b.declared[name]++
	if k := b.declared[name]; k > 1 {
		return cfa.Qualify(b.fn.Name, name+"__"+strconv.Itoa(k-1))
	}
	return cfa.Qualify(b.fn.Name, name)
}

// temp 声明一个前端临时变量
func (b *builder) temp(t *cfa.Type) *cfa.IDExpr {
	name := tempPrefix + strconv.Itoa(b.temps)
	b.temps++
	q := cfa.Qualify(b.fn.Name, name)
	b.prog.VarTypes[q] = t
	b.emit(&cfa.Edge{
		Kind: cfa.DeclarationEdge,
		Loc:  cfa.DummyLocation,
		Decl: &cfa.Declaration{Name: name, Qualified: q, Type: t, Synthetic: true, Loc: cfa.DummyLocation},
	})
	return &cfa.IDExpr{ExprBase: cfa.Base(cfa.DummyLocation, t.Decay()), Name: name, Qualified: q, DeclType: t}
}

func zeroLiteral(t absint.IntType) *cfa.IntLiteral {
	return &cfa.IntLiteral{ExprBase: cfa.Base(cfa.DummyLocation, cfa.IntegerType(t)), Value: big.NewInt(0), Text: "0"}
}
