// Package rewrite 把合并后的修复计划落实为源码改写：
// 修改类型说明符、插入运行时检查、插入显式转换。
package rewrite

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"cintfix/internal/absint"
	"cintfix/internal/cfa"
	"cintfix/internal/fixguide"
	"cintfix/internal/sourcetree"
)

// ErrUnfixable 计划指向的节点不支持这种改写
var ErrUnfixable = errors.New("rewrite: cannot apply fix")

// Change 一处已应用的改写
type Change struct {
	Loc    cfa.FileLocation
	Mode   fixguide.Mode
	Type   absint.IntType
	Node   string
	Detail string
}

func (c Change) String() string {
	return fmt.Sprintf("%s %s %s (%s)", c.Loc, c.Mode, c.Detail, c.Node)
}

// Result 一个翻译单元的改写结果
type Result struct {
	Changes []Change
	// Locations 有改写的位置个数
	Locations int
}

// Option Fixer 的可选配置
type Option func(*Fixer)

// WithVerbose 逐条打印改写
func WithVerbose(v bool) Option {
	return func(f *Fixer) { f.verbose = v }
}

// Fixer 在一棵语法树上应用修复计划，每个 Fixer 只使用一次
type Fixer struct {
	tree    *sourcetree.Tree
	types   map[string]absint.IntType
	index   *typeIndex
	symbols *SymbolTable
	verbose bool

	locks map[sourcetree.NodeID]absint.IntType
	memo  map[sourcetree.NodeID]absint.IntType
	// 冗余的转换（目标类型与表达式类型相同）
	redundant map[cfa.FileLocation]bool

	edits   []sourcetree.Edit
	shadows map[sourcetree.NodeID][]string
	bodies  []sourcetree.NodeID
	result  Result
}

// New types 为求解得到的变量类型
func New(prog *cfa.Program, tree *sourcetree.Tree, types map[string]absint.IntType, opts ...Option) *Fixer {
	if types == nil {
		types = map[string]absint.IntType{}
	}
	f := &Fixer{
		tree:      tree,
		types:     types,
		index:     newTypeIndex(prog),
		symbols:   NewSymbolTable(tree),
		locks:     make(map[sourcetree.NodeID]absint.IntType),
		memo:      make(map[sourcetree.NodeID]absint.IntType),
		redundant: make(map[cfa.FileLocation]bool),
		shadows:   make(map[sourcetree.NodeID][]string),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Symbols 文件作用域的符号表
func (f *Fixer) Symbols() *SymbolTable { return f.symbols }

// Apply 把计划应用到语法树。任何位置找不到节点或无法改写时返回错误，语法树保持不变。
func (f *Fixer) Apply(plans map[cfa.FileLocation]fixguide.Plan) (*Result, error) {
	locs := make([]cfa.FileLocation, 0, len(plans))
	for loc := range plans {
		locs = append(locs, loc)
	}
	cfa.SortLocations(locs)

	found, err := f.tree.Locate(locs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.tree.File, err)
	}

	// 先确定所有锁定的类型，再推导检查函数的符号性
	for _, loc := range locs {
		f.lock(loc, found[loc], plans[loc])
	}
	f.memo = make(map[sourcetree.NodeID]absint.IntType)

	for _, loc := range locs {
		if err := f.fixAt(loc, found[loc], plans[loc]); err != nil {
			return nil, fmt.Errorf("%s: %w", loc, err)
		}
	}
	f.flushShadows()

	if err := f.tree.Apply(f.edits); err != nil {
		return nil, err
	}
	res := f.result
	return &res, nil
}

func (f *Fixer) lock(loc cfa.FileLocation, id sourcetree.NodeID, p fixguide.Plan) {
	if s := p.Specifier; s != nil && f.tree.Kind(id) == "cast_expression" {
		f.locks[id] = s.Type
	}
	c := p.Conversion
	if c == nil {
		return
	}
	target := f.elevate(id)
	if !c.Pointer {
		if f.typeOf(target) == c.Type {
			f.redundant[loc] = true
			return
		}
		f.locks[target] = c.Type
		return
	}
	node := target
	for i := 0; i < c.RefLevel; i++ {
		up := f.parentSkippingParens(node)
		if f.tree.Kind(up) != "pointer_expression" || operatorOf(f.tree.Node(up)) != "*" {
			break
		}
		node = up
	}
	f.locks[node] = f.targetType(*c)
}

func (f *Fixer) fixAt(loc cfa.FileLocation, id sourcetree.NodeID, p fixguide.Plan) error {
	before := len(f.result.Changes)
	defer func() {
		if len(f.result.Changes) > before {
			f.result.Locations++
		}
	}()

	if s := p.Specifier; s != nil {
		if err := f.specifier(loc, id, *s); err != nil {
			return err
		}
	}
	conv := p.Conversion
	if conv != nil && f.redundant[loc] {
		conv = nil
	}
	if p.Check == nil && conv == nil {
		return nil
	}

	target := f.elevate(id)
	if op, ok := f.compoundOperator(target); ok {
		return f.compound(loc, target, op, p.Check, conv)
	}
	check := p.Check
	if check != nil {
		if fn, ok := shiftFunc(check.RefLevel); ok {
			if err := f.shift(loc, target, fn, *check); err != nil {
				return err
			}
			check = nil
		}
	}
	if conv != nil {
		if err := f.conversion(loc, target, *conv); err != nil {
			return err
		}
	}
	if check != nil {
		name := checkFunc(check.Type, f.typeOf(target))
		f.wrap(target, name+"(", ")")
		f.record(loc, fixguide.ModeSanityCheck, check.Type, target, name)
	}
	return nil
}

func (f *Fixer) record(loc cfa.FileLocation, mode fixguide.Mode, t absint.IntType, id sourcetree.NodeID, detail string) {
	c := Change{Loc: loc, Mode: mode, Type: t, Node: f.tree.Kind(id), Detail: detail}
	f.result.Changes = append(f.result.Changes, c)
	if f.verbose {
		log.Printf("【修复】%s", c)
	}
}

func (f *Fixer) wrap(id sourcetree.NodeID, open, close string) {
	f.edits = append(f.edits, f.tree.Wrap(id, open, close)...)
}

// specifier 修改声明、强制转换或形参的类型说明符
func (f *Fixer) specifier(loc cfa.FileLocation, id sourcetree.NodeID, s fixguide.Solution) error {
	spelling := s.Type.String()
	if spelling == "" {
		return fmt.Errorf("%w: type %s has no C spelling", ErrUnfixable, s.Type.Code())
	}
	switch f.tree.Kind(id) {
	case "declaration":
		if !f.replaceType(loc, id, spelling) {
			return nil
		}
		if isFileScope(f.tree, id) {
			// 同名的其它文件作用域声明一起修改
			for _, sym := range f.symbols.Declared(id) {
				for _, other := range f.symbols.Lookup(sym.Name) {
					if other.Decl != id && other.Kind == SymbolVariable {
						f.replaceType(loc, other.Decl, spelling)
					}
				}
			}
		}
	case "cast_expression":
		if !f.replaceType(loc, f.tree.ChildByField(id, "type"), spelling) {
			return nil
		}
	case "parameter_declaration":
		if err := f.parameter(id, spelling); err != nil {
			return err
		}
	default:
		log.Printf("【修复】%s: 不支持在 %s 上修改类型，跳过", loc, f.tree.Kind(id))
		return nil
	}
	f.record(loc, fixguide.ModeSpecifier, s.Type, id, spelling)
	return nil
}

// replaceType 替换 declaration/type_descriptor 的 type 字段；限定符是独立的兄弟节点，保持不动
// 枚举、结构体等复合说明符不改写
func (f *Fixer) replaceType(loc cfa.FileLocation, id sourcetree.NodeID, spelling string) bool {
	tn := f.tree.ChildByField(id, "type")
	n := f.tree.Node(tn)
	if n == nil || len(n.Children) > 0 {
		log.Printf("【修复】%s: %s 没有可替换的类型说明符，跳过", loc, f.tree.Kind(id))
		return false
	}
	f.edits = append(f.edits, sourcetree.Replace(tn, 0, spelling))
	return true
}

// parameter 形参改名，并在函数体开头用原名声明一个新类型的局部变量，调用方不受影响
func (f *Fixer) parameter(id sourcetree.NodeID, spelling string) error {
	ident, _ := declaratorIdent(f.tree, f.tree.ChildByField(id, "declarator"))
	fn := f.tree.Ancestor(id, "function_definition")
	body := f.tree.ChildByField(fn, "body")
	if ident == sourcetree.NoNode || body == sourcetree.NoNode {
		return fmt.Errorf("%w: parameter outside a function definition", ErrUnfixable)
	}
	name := f.tree.Text(ident)
	repl := RenamePrefix + name
	f.edits = append(f.edits, sourcetree.Replace(ident, 0, repl))
	if _, ok := f.shadows[body]; !ok {
		f.bodies = append(f.bodies, body)
	}
	f.shadows[body] = append(f.shadows[body], spelling+" "+name+" = "+repl+";")
	return nil
}

// flushShadows 每个函数体只改写一次第一个片段，声明按形参顺序排列，缩进沿用左花括号后的空白
func (f *Fixer) flushShadows() {
	for _, body := range f.bodies {
		head := f.tree.Node(body).Template[0]
		if !strings.HasPrefix(head, "{") {
			continue
		}
		rest := head[1:]
		indent := rest[:len(rest)-len(strings.TrimLeft(rest, " \t\r\n\f"))]
		var sb strings.Builder
		sb.WriteString("{")
		for _, decl := range f.shadows[body] {
			sb.WriteString(indent)
			sb.WriteString(decl)
		}
		sb.WriteString(rest)
		f.edits = append(f.edits, sourcetree.Replace(body, 0, sb.String()))
	}
}

// shift 位移表达式改为调用辅助函数：(T)__INTLEFTSHIFT(a, b)
func (f *Fixer) shift(loc cfa.FileLocation, id sourcetree.NodeID, fn string, s fixguide.Solution) error {
	id = f.stripParens(id)
	n := f.tree.Node(id)
	if n.Kind != "binary_expression" || len(n.Children) != 2 {
		return fmt.Errorf("%w: invalid bit-shift expression %q", ErrUnfixable, f.tree.Text(id))
	}
	if s.Type.String() == "" {
		return fmt.Errorf("%w: type %s has no C spelling", ErrUnfixable, s.Type.Code())
	}
	f.edits = append(f.edits,
		sourcetree.Replace(id, 0, castText(s.Type.String())+fn+"("),
		sourcetree.Replace(id, 1, ", "),
		sourcetree.Replace(id, 2, ")"),
	)
	f.record(loc, fixguide.ModeSanityCheck, s.Type, id, fn)
	return nil
}

// conversion 整数转换为 (T)(e)，指针转换为 (T *)(e)，星号个数等于解引用层数
func (f *Fixer) conversion(loc cfa.FileLocation, id sourcetree.NodeID, c fixguide.Solution) error {
	spelling, err := f.convSpelling(c)
	if err != nil {
		return err
	}
	f.wrap(id, castText(spelling)+"(", ")")
	f.record(loc, fixguide.ModeConversion, c.Type, id, castText(spelling))
	return nil
}

// convSpelling 转换的目标类型拼写；非原生类型无法写成 C 类型
func (f *Fixer) convSpelling(c fixguide.Solution) (string, error) {
	t := c.Type
	if c.Pointer {
		t = f.targetType(c)
	}
	spelling := t.String()
	if spelling == "" {
		return "", fmt.Errorf("%w: type %s has no C spelling", ErrUnfixable, t.Code())
	}
	if c.Pointer {
		spelling += " " + strings.Repeat("*", c.RefLevel)
	}
	return spelling, nil
}

// compound a op= b 上的检查需要展开成 a = CHK(a op (b))
func (f *Fixer) compound(loc cfa.FileLocation, id sourcetree.NodeID, op string, check, conv *fixguide.Solution) error {
	left := f.tree.Text(f.tree.Child(id, 0))
	open, close := left+" "+op+" (", ")"
	var shifted bool
	if check != nil {
		if fn, ok := shiftFunc(check.RefLevel); ok {
			if check.Type.String() == "" {
				return fmt.Errorf("%w: type %s has no C spelling", ErrUnfixable, check.Type.Code())
			}
			open = castText(check.Type.String()) + fn + "(" + left + ", "
			f.record(loc, fixguide.ModeSanityCheck, check.Type, id, fn)
			shifted = true
		}
	}
	if conv != nil {
		spelling, err := f.convSpelling(*conv)
		if err != nil {
			return err
		}
		open, close = castText(spelling)+"("+open, close+")"
		f.record(loc, fixguide.ModeConversion, conv.Type, id, castText(spelling))
	}
	if check != nil && !shifted {
		name := checkFunc(check.Type, f.compoundType(id))
		open, close = name+"("+open, close+")"
		f.record(loc, fixguide.ModeSanityCheck, check.Type, id, name)
	}
	f.edits = append(f.edits,
		sourcetree.Replace(id, 1, " = "+open),
		sourcetree.Edit{Kind: sourcetree.InsertBefore, Node: id, Fragment: 2, Text: close},
	)
	return nil
}

// compoundOperator 复合赋值的算术运算符
func (f *Fixer) compoundOperator(id sourcetree.NodeID) (string, bool) {
	n := f.tree.Node(id)
	if n == nil || n.Kind != "assignment_expression" || len(n.Children) != 2 {
		return "", false
	}
	op := strings.TrimSpace(n.Template[1])
	if op == "=" || !strings.HasSuffix(op, "=") {
		return "", false
	}
	return strings.TrimSuffix(op, "="), true
}

// compoundType 展开后的算术表达式的类型
func (f *Fixer) compoundType(id sourcetree.NodeID) absint.IntType {
	if t := f.staticType(id); !t.IsOther() {
		return t
	}
	return f.typeOf(f.tree.Child(id, 0)).Merge(f.typeOf(f.tree.Child(id, 1))).PromoteInt()
}

// targetType 指针转换指向的变量的类型，优先取求解结果
func (f *Fixer) targetType(c fixguide.Solution) absint.IntType {
	if name, ok := c.TargetName(); ok {
		if t, ok := f.types[name]; ok {
			return t
		}
		if t := f.index.vars[name]; t.IsInteger() {
			return t.Int
		}
	}
	return c.Type
}

// elevate 括号向外展开；是赋值左操作数时改为整个赋值表达式
// if/while/do/switch 的条件括号属于语句语法，不参与展开
func (f *Fixer) elevate(id sourcetree.NodeID) sourcetree.NodeID {
	if f.isConditionParens(id) && len(f.tree.Node(id).Children) == 1 {
		id = f.tree.Child(id, 0)
	}
	for {
		p := f.tree.Parent(id)
		switch f.tree.Kind(p) {
		case "parenthesized_expression":
			if f.isConditionParens(p) {
				return id
			}
			id = p
			continue
		case "assignment_expression":
			if f.tree.IndexOf(p, id) == 0 && strings.TrimSpace(f.tree.Node(p).Template[1]) == "=" {
				return p
			}
		}
		return id
	}
}

// isConditionParens 语句条件外面那对必需的括号
func (f *Fixer) isConditionParens(id sourcetree.NodeID) bool {
	if f.tree.Kind(id) != "parenthesized_expression" {
		return false
	}
	p := f.tree.Parent(id)
	switch f.tree.Kind(p) {
	case "if_statement", "while_statement", "do_statement", "switch_statement":
		return f.tree.ChildByField(p, "condition") == id
	}
	return false
}

func (f *Fixer) parentSkippingParens(id sourcetree.NodeID) sourcetree.NodeID {
	p := f.tree.Parent(id)
	for f.tree.Kind(p) == "parenthesized_expression" {
		p = f.tree.Parent(p)
	}
	return p
}

// stripParens 去掉只包一个子节点的括号
func (f *Fixer) stripParens(id sourcetree.NodeID) sourcetree.NodeID {
	for f.tree.Kind(id) == "parenthesized_expression" && len(f.tree.Node(id).Children) == 1 {
		id = f.tree.Child(id, 0)
	}
	return id
}
