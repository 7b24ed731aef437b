package frontend

import (
	"fmt"
	"math/big"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"cintfix/internal/absint"
	"cintfix/internal/cfa"
)

// declSpec 一条声明语句里所有声明符共享的部分
type declSpec struct {
	base   *cfa.Type
	extern bool
	static bool
	loc    cfa.FileLocation
}

// declaration 局部或全局声明，每个声明符一条声明边
// 同一条声明语句中的所有变量共享整条语句的位置
func (b *builder) declaration(n *sitter.Node) error {
	base, err := b.specifier(n.ChildByFieldName("type"))
	if err != nil {
		return err
	}
	spec := declSpec{
		base:   base,
		extern: b.hasStorage(n, "extern"),
		static: b.hasStorage(n, "static"),
		loc:    b.unit.Loc(n),
	}
	for _, d := range childrenByField(n, "declarator") {
		if err := b.declare(spec, d); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) declare(spec declSpec, d *sitter.Node) error {
	name, t, err := b.declarator(spec.base, d)
	if err != nil {
		return err
	}
	if name == "" {
		return nil
	}
	if t.Kind == cfa.TypeFunction {
		b.scope.names[name] = &symbol{qualified: name, typ: t, global: true, function: true}
		return nil
	}

	global := b.fn == nil || spec.extern
	q := name
	if !global {
		q = b.local(name)
	}
	b.prog.VarTypes[q] = t
	decl := &cfa.Declaration{
		Name:      name,
		Qualified: q,
		Type:      t,
		Extern:    spec.extern,
		Global:    global,
		Loc:       spec.loc,
	}
	// 变量的作用域从声明符之后开始，初始化表达式里已经可见
	b.scope.names[name] = &symbol{qualified: q, typ: t, global: global}

	var init *sitter.Node
	if d.Type() == "init_declarator" {
		init = d.ChildByFieldName("value")
	}
	if call := stripParens(init); call != nil && call.Type() == "call_expression" && t.IsScalar() && b.hoistable() {
		ce, callee, err := b.callExpr(call)
		if err != nil {
			return err
		}
		if callee != nil {
			// int x = f(...); 先声明再由调用点写入 x
			b.emit(&cfa.Edge{Kind: cfa.DeclarationEdge, Loc: spec.loc, Decl: decl})
			lhs := &cfa.IDExpr{ExprBase: cfa.Base(cfa.DummyLocation, t.Decay()), Name: name, Qualified: q, DeclType: t, Global: global}
			return b.callSite(ce, callee, lhs)
		}
		decl.Init = ce
		b.emit(&cfa.Edge{Kind: cfa.DeclarationEdge, Loc: spec.loc, Decl: decl})
		return nil
	}

	switch {
	case init != nil:
		value, err := b.initializer(init, t)
		if err != nil {
			return err
		}
		decl.Init = value
	case (b.fn == nil || spec.static) && !spec.extern && t.IsInteger():
		// 静态存储期的整数默认为 0
		decl.Init = zeroLiteral(absint.Int)
	}
	b.emit(&cfa.Edge{Kind: cfa.DeclarationEdge, Loc: spec.loc, Decl: decl})
	return nil
}

// initializer 标量取初始化列表的第一个元素，聚合类型的初始化不跟踪
func (b *builder) initializer(n *sitter.Node, t *cfa.Type) (cfa.Expr, error) {
	if n.Type() != "initializer_list" {
		if !t.IsScalar() {
			return nil, nil
		}
		return b.expr(n)
	}
	if !t.IsScalar() {
		return nil, nil
	}
	items := namedChildren(n)
	if len(items) == 0 {
		return zeroLiteral(absint.Int), nil
	}
	return b.initializer(items[0], t)
}

// hoistable 是否可以把调用和副作用提出为单独的边
func (b *builder) hoistable() bool {
	return b.fn != nil && b.mode == modeNormal
}

func (b *builder) loc(n *sitter.Node) cfa.FileLocation {
	if b.mode == modeDummy {
		return cfa.DummyLocation
	}
	return b.unit.Loc(n)
}

// exprStatement 表达式语句：赋值和自增展开成赋值边，其余求值一次
func (b *builder) exprStatement(n *sitter.Node) error {
	n = stripParens(n)
	switch n.Type() {
	case "assignment_expression":
		return b.assignment(n)
	case "update_expression":
		return b.update(n)
	case "comma_expression":
		if err := b.exprStatement(n.ChildByFieldName("left")); err != nil {
			return err
		}
		return b.exprStatement(n.ChildByFieldName("right"))
	case "call_expression":
		ce, callee, err := b.callExpr(n)
		if err != nil {
			return err
		}
		if callee != nil {
			return b.callSite(ce, callee, nil)
		}
		b.emit(&cfa.Edge{Kind: cfa.StatementEdge, Loc: ce.Loc(), Stmt: &cfa.ExprStmt{Expr: ce, Loc: ce.Loc()}})
		return nil
	}
	e, err := b.expr(n)
	if err != nil {
		return err
	}
	loc := b.unit.Loc(n)
	b.emit(&cfa.Edge{Kind: cfa.StatementEdge, Loc: loc, Stmt: &cfa.ExprStmt{Expr: e, Loc: loc}})
	return nil
}

// assignment a = b 或 a op= b；后者展开为 a = a op b，副本 a 没有位置
func (b *builder) assignment(n *sitter.Node) error {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	opText := b.unit.Text(n.ChildByFieldName("operator"))
	loc := b.unit.Loc(n)
	if left == nil || right == nil {
		return fmt.Errorf("%w: incomplete assignment at %s", ErrMalformedInput, loc)
	}

	if opText == "=" {
		if call := stripParens(right); call.Type() == "call_expression" {
			ce, callee, err := b.callExpr(call)
			if err != nil {
				return err
			}
			if callee != nil {
				lhs, err := b.expr(left)
				if err != nil {
					return err
				}
				return b.callSite(ce, callee, lhs)
			}
			lhs, err := b.expr(left)
			if err != nil {
				return err
			}
			b.prog.ExprTypes[loc] = lhs.Type()
			b.emit(&cfa.Edge{Kind: cfa.StatementEdge, Loc: loc, Stmt: &cfa.AssignStmt{LHS: lhs, RHS: ce, Loc: loc}})
			return nil
		}
		rhs, err := b.expr(right)
		if err != nil {
			return err
		}
		lhs, err := b.expr(left)
		if err != nil {
			return err
		}
		b.prog.ExprTypes[loc] = lhs.Type()
		b.emit(&cfa.Edge{Kind: cfa.StatementEdge, Loc: loc, Stmt: &cfa.AssignStmt{LHS: lhs, RHS: rhs, Loc: loc}})
		return nil
	}

	op, ok := cfa.ParseBinaryOp(strings.TrimSuffix(opText, "="))
	if !ok || op.IsLogical() {
		return fmt.Errorf("%w: unknown assignment operator %q at %s", ErrMalformedInput, opText, loc)
	}
	rhs, err := b.expr(right)
	if err != nil {
		return err
	}
	lhs, err := b.expr(left)
	if err != nil {
		return err
	}
	dup, err := b.dummyCopy(left)
	if err != nil {
		return err
	}
	bin := &cfa.BinaryExpr{
		ExprBase: cfa.Base(loc, binaryType(op, lhs.Type(), rhs.Type())),
		Op:       op,
		Left:     dup,
		Right:    rhs,
	}
	b.prog.ExprTypes[loc] = bin.Type()
	b.emit(&cfa.Edge{Kind: cfa.StatementEdge, Loc: loc, Stmt: &cfa.AssignStmt{LHS: lhs, RHS: bin, Loc: loc}})
	return nil
}

// update ++a / a++ / --a / a-- 展开为 a = a ± 1
func (b *builder) update(n *sitter.Node) error {
	arg := n.ChildByFieldName("argument")
	op := cfa.OpPlus
	if strings.Contains(b.unit.Text(n.ChildByFieldName("operator")), "-") {
		op = cfa.OpMinus
	}
	lhs, err := b.expr(arg)
	if err != nil {
		return err
	}
	dup, err := b.dummyCopy(arg)
	if err != nil {
		return err
	}
	one := &cfa.IntLiteral{ExprBase: cfa.Base(cfa.DummyLocation, cfa.IntegerType(absint.Int)), Value: big.NewInt(1), Text: "1"}
	bin := &cfa.BinaryExpr{
		ExprBase: cfa.Base(cfa.DummyLocation, binaryType(op, lhs.Type(), one.Type())),
		Op:       op,
		Left:     dup,
		Right:    one,
	}
	loc := b.unit.Loc(n)
	b.emit(&cfa.Edge{Kind: cfa.StatementEdge, Loc: loc, Stmt: &cfa.AssignStmt{LHS: lhs, RHS: bin, Loc: loc}})
	return nil
}

// dummyCopy 再次转换同一个左值，得到没有位置、不产生边的副本
func (b *builder) dummyCopy(n *sitter.Node) (cfa.Expr, error) {
	saved := b.mode
	if saved == modeNormal {
		b.mode = modeDummy
	}
	defer func() { b.mode = saved }()
	return b.expr(n)
}

// callExpr 构造调用表达式；被调函数在本单元中有定义时同时返回它
func (b *builder) callExpr(n *sitter.Node) (*cfa.CallExpr, *cfa.Function, error) {
	fnNode := stripParens(n.ChildByFieldName("function"))
	var (
		name   = b.unit.Text(fnNode)
		ftype  *cfa.Type
		callee *cfa.Function
	)
	if fnNode != nil && fnNode.Type() == "identifier" {
		sym := b.scope.lookup(name)
		switch {
		case sym == nil:
			callee = b.prog.Functions[name]
		case sym.function:
			ftype = sym.typ
			callee = b.prog.Functions[name]
		case sym.typ.IsPointer() && sym.typ.Elem.Kind == cfa.TypeFunction:
			ftype = sym.typ.Elem
		}
	} else {
		f, err := b.expr(fnNode)
		if err != nil {
			return nil, nil, err
		}
		if t := f.Type(); t.IsPointer() && t.Elem.Kind == cfa.TypeFunction {
			ftype = t.Elem
		} else if t.Kind == cfa.TypeFunction {
			ftype = t
		}
	}
	if ftype == nil && callee != nil {
		ftype = b.global.lookup(name).typ
	}

	var args []cfa.Expr
	for _, a := range namedChildren(n.ChildByFieldName("arguments")) {
		e, err := b.expr(a)
		if err != nil {
			return nil, nil, err
		}
		args = append(args, e)
	}

	ret := cfa.IntegerType(absint.Int)
	ce := &cfa.CallExpr{Name: name, Args: args}
	if ftype != nil {
		ret = ftype.Return
		ce.Params = ftype.Params
		ce.Variadic = ftype.Variadic
	} else {
		// 没有原型的调用不检查实参
		ce.Variadic = true
	}
	ce.ExprBase = cfa.Base(b.loc(n), ret)
	if callee != nil {
		ce.Defined = true
		if len(args) < len(callee.Params) {
			return nil, nil, fmt.Errorf("%w: %s expects %d arguments, got %d at %s",
				ErrMalformedInput, name, len(callee.Params), len(args), b.unit.Loc(n))
		}
		if !b.hoistable() {
			return ce, nil, nil
		}
	}
	return ce, callee, nil
}

// callSite 调用边进入被调函数入口，返回边从被调函数出口回到新节点
func (b *builder) callSite(ce *cfa.CallExpr, callee *cfa.Function, lhs cfa.Expr) error {
	if b.cur == nil {
		b.cur = b.newNode()
	}
	ret := b.newNode()
	cs := &cfa.CallSite{
		Call:       ce,
		LHS:        lhs,
		Caller:     b.fn.Name,
		Callee:     callee,
		ReturnNode: ret,
		Loc:        ce.Loc(),
	}
	b.addEdge(b.cur, callee.Entry, &cfa.Edge{Kind: cfa.CallEdge, Loc: cs.Loc, Call: cs})
	b.addEdge(callee.Exit, ret, &cfa.Edge{Kind: cfa.FunctionReturnEdge, Loc: cs.Loc, Call: cs})
	b.cur = ret
	return nil
}

// expr 转换表达式，并记录非空位置上的静态类型
func (b *builder) expr(n *sitter.Node) (cfa.Expr, error) {
	if n == nil {
		return nil, fmt.Errorf("%w: missing expression", ErrMalformedInput)
	}
	e, err := b.convert(n)
	if err != nil {
		return nil, err
	}
	if loc := e.Loc(); !loc.IsDummy() {
		b.prog.ExprTypes[loc] = e.Type()
	}
	return e, nil
}

func (b *builder) convert(n *sitter.Node) (cfa.Expr, error) {
	loc := b.loc(n)
	switch n.Type() {
	case "parenthesized_expression":
		inner := namedChildren(n)
		if len(inner) != 1 {
			return nil, fmt.Errorf("%w: bad parenthesized expression at %s", ErrMalformedInput, b.unit.Loc(n))
		}
		if inner[0].Type() == "compound_statement" {
			return &cfa.OpaqueExpr{ExprBase: cfa.Base(loc, cfa.UnknownType), Text: b.unit.Text(n)}, nil
		}
		return b.expr(inner[0])

	case "identifier":
		return b.identifier(n, loc), nil

	case "true", "false":
		v := int64(0)
		if n.Type() == "true" {
			v = 1
		}
		return &cfa.IntLiteral{ExprBase: cfa.Base(loc, cfa.IntegerType(absint.Int)), Value: big.NewInt(v), Text: b.unit.Text(n)}, nil

	case "null":
		return &cfa.OpaqueExpr{ExprBase: cfa.Base(loc, cfa.PointerTo(cfa.VoidType)), Text: b.unit.Text(n)}, nil

	case "number_literal":
		text := b.unit.Text(n)
		if isFloatLiteral(text) {
			t := cfa.DoubleType
			if strings.HasSuffix(strings.ToLower(text), "f") {
				t = builtinTypes["float"]
			}
			return &cfa.OpaqueExpr{ExprBase: cfa.Base(loc, t), Text: text}, nil
		}
		v, t, ok := parseIntLiteral(text)
		if !ok {
			return nil, fmt.Errorf("%w: bad number %q at %s", ErrMalformedInput, text, b.unit.Loc(n))
		}
		return &cfa.IntLiteral{ExprBase: cfa.Base(loc, cfa.IntegerType(t)), Value: v, Text: text}, nil

	case "char_literal":
		text := b.unit.Text(n)
		v, ok := parseCharLiteral(text)
		if !ok {
			return &cfa.OpaqueExpr{ExprBase: cfa.Base(loc, cfa.IntegerType(absint.Int)), Text: text}, nil
		}
		return &cfa.CharLiteral{ExprBase: cfa.Base(loc, cfa.IntegerType(absint.Int)), Value: v}, nil

	case "string_literal", "concatenated_string":
		return &cfa.OpaqueExpr{ExprBase: cfa.Base(loc, cfa.PointerTo(cfa.IntegerType(absint.Char))), Text: b.unit.Text(n)}, nil

	case "binary_expression":
		return b.binary(n, loc)

	case "unary_expression":
		return b.unary(n, loc)

	case "pointer_expression":
		operand, err := b.expr(n.ChildByFieldName("argument"))
		if err != nil {
			return nil, err
		}
		if b.unit.Text(n.ChildByFieldName("operator")) == "&" {
			target := operand.Type()
			if id, ok := operand.(*cfa.IDExpr); ok && id.DeclType != nil {
				target = id.DeclType
			}
			return &cfa.UnaryExpr{ExprBase: cfa.Base(loc, cfa.PointerTo(target)), Op: cfa.OpAmper, Operand: operand}, nil
		}
		elem := cfa.UnknownType
		if t := operand.Type(); t.IsPointer() && t.Elem != nil {
			elem = t.Elem.Decay()
		}
		return &cfa.PointerDeref{ExprBase: cfa.Base(loc, elem), Operand: operand}, nil

	case "cast_expression":
		t, err := b.typeDescriptor(n.ChildByFieldName("type"))
		if err != nil {
			return nil, err
		}
		operand, err := b.expr(n.ChildByFieldName("value"))
		if err != nil {
			return nil, err
		}
		return &cfa.CastExpr{ExprBase: cfa.Base(loc, t.Decay()), Operand: operand}, nil

	case "sizeof_expression":
		return b.sizeof(n, loc, cfa.OpSizeof)

	case "alignof_expression":
		return b.sizeof(n, loc, cfa.OpAlignof)

	case "offsetof_expression":
		return &cfa.OpaqueExpr{ExprBase: cfa.Base(loc, cfa.IntegerType(absint.SizeT)), Text: b.unit.Text(n)}, nil

	case "subscript_expression":
		return b.subscript(n, loc)

	case "field_expression":
		owner, err := b.expr(n.ChildByFieldName("argument"))
		if err != nil {
			return nil, err
		}
		arrow := b.unit.Text(n.ChildByFieldName("operator")) == "->"
		record := owner.Type()
		if arrow {
			record = record.Elem
		}
		field := b.unit.Text(n.ChildByFieldName("field"))
		return &cfa.FieldRef{ExprBase: cfa.Base(loc, record.FieldType(field).Decay()), Owner: owner, Field: field, Arrow: arrow}, nil

	case "conditional_expression":
		cond, err := b.expr(n.ChildByFieldName("condition"))
		if err != nil {
			return nil, err
		}
		then := cond
		if c := n.ChildByFieldName("consequence"); c != nil {
			if then, err = b.expr(c); err != nil {
				return nil, err
			}
		}
		els, err := b.expr(n.ChildByFieldName("alternative"))
		if err != nil {
			return nil, err
		}
		t := then.Type()
		if then.Type().IsInteger() && els.Type().IsInteger() {
			t = cfa.IntegerType(arithmetic(then.Type().Int, els.Type().Int))
		}
		return &cfa.ConditionalExpr{ExprBase: cfa.Base(loc, t), Cond: cond, Then: then, Else: els}, nil

	case "comma_expression":
		if b.hoistable() {
			if err := b.exprStatement(n.ChildByFieldName("left")); err != nil {
				return nil, err
			}
		}
		return b.expr(n.ChildByFieldName("right"))

	case "assignment_expression":
		if b.hoistable() {
			if err := b.assignment(n); err != nil {
				return nil, err
			}
		}
		return b.dummyCopy(n.ChildByFieldName("left"))

	case "update_expression":
		return b.updateValue(n)

	case "call_expression":
		ce, callee, err := b.callExpr(n)
		if err != nil {
			return nil, err
		}
		if callee == nil {
			return ce, nil
		}
		rt := callee.ReturnType
		if rt.IsVoid() || rt.IsStruct() {
			if err := b.callSite(ce, callee, nil); err != nil {
				return nil, err
			}
			return &cfa.OpaqueExpr{ExprBase: cfa.Base(loc, rt), Text: b.unit.Text(n)}, nil
		}
		tmp := b.temp(rt)
		if err := b.callSite(ce, callee, tmp); err != nil {
			return nil, err
		}
		// 临时变量的引用带上调用的位置，针对调用结果的修复作用在调用表达式上
		return &cfa.IDExpr{ExprBase: cfa.Base(loc, rt.Decay()), Name: tmp.Name, Qualified: tmp.Qualified, DeclType: rt}, nil

	case "compound_literal_expression":
		t, err := b.typeDescriptor(n.ChildByFieldName("type"))
		if err != nil {
			return nil, err
		}
		return &cfa.OpaqueExpr{ExprBase: cfa.Base(loc, t.Decay()), Text: b.unit.Text(n)}, nil

	case "gnu_asm_expression", "generic_expression", "initializer_list":
		return &cfa.OpaqueExpr{ExprBase: cfa.Base(loc, cfa.UnknownType), Text: b.unit.Text(n)}, nil

	case "ERROR":
		return nil, fmt.Errorf("%w: syntax error at %s", ErrMalformedInput, b.unit.Loc(n))
	}
	return nil, fmt.Errorf("%w: unsupported expression %s at %s", ErrMalformedInput, n.Type(), b.unit.Loc(n))
}

// identifier 变量、枚举常量或函数名；找不到声明的名字按未知类型处理
func (b *builder) identifier(n *sitter.Node, loc cfa.FileLocation) cfa.Expr {
	name := b.unit.Text(n)
	sym := b.scope.lookup(name)
	switch {
	case sym == nil:
		return &cfa.OpaqueExpr{ExprBase: cfa.Base(loc, cfa.UnknownType), Text: name}
	case sym.function:
		return &cfa.OpaqueExpr{ExprBase: cfa.Base(loc, cfa.PointerTo(sym.typ)), Text: name}
	case sym.enumerator != nil:
		return &cfa.IDExpr{
			ExprBase:   cfa.Base(loc, cfa.IntegerType(absint.Int)),
			Name:       name,
			Qualified:  sym.qualified,
			DeclType:   sym.typ,
			Enumerator: sym.enumerator,
			Global:     true,
		}
	}
	if !loc.IsDummy() {
		b.prog.Idents[loc] = sym.qualified
	}
	return &cfa.IDExpr{
		ExprBase:  cfa.Base(loc, sym.typ.Decay()),
		Name:      name,
		Qualified: sym.qualified,
		DeclType:  sym.typ,
		Global:    sym.global,
	}
}

func (b *builder) binary(n *sitter.Node, loc cfa.FileLocation) (cfa.Expr, error) {
	text := b.unit.Text(n.ChildByFieldName("operator"))
	op, ok := cfa.ParseBinaryOp(text)
	if !ok {
		return nil, fmt.Errorf("%w: unknown operator %q at %s", ErrMalformedInput, text, b.unit.Loc(n))
	}
	left, err := b.expr(n.ChildByFieldName("left"))
	if err != nil {
		return nil, err
	}
	right, err := b.expr(n.ChildByFieldName("right"))
	if err != nil {
		return nil, err
	}
	return &cfa.BinaryExpr{ExprBase: cfa.Base(loc, binaryType(op, left.Type(), right.Type())), Op: op, Left: left, Right: right}, nil
}

var unaryOps = map[string]cfa.UnaryOp{
	"-": cfa.OpNegate,
	"+": cfa.OpUnaryPlus,
	"!": cfa.OpNot,
	"~": cfa.OpTilde,
}

func (b *builder) unary(n *sitter.Node, loc cfa.FileLocation) (cfa.Expr, error) {
	text := b.unit.Text(n.ChildByFieldName("operator"))
	op, ok := unaryOps[text]
	if !ok {
		return nil, fmt.Errorf("%w: unknown operator %q at %s", ErrMalformedInput, text, b.unit.Loc(n))
	}
	operand, err := b.expr(n.ChildByFieldName("argument"))
	if err != nil {
		return nil, err
	}
	t := operand.Type()
	switch {
	case op == cfa.OpNot:
		t = cfa.IntegerType(absint.Int)
	case t.IsInteger():
		t = cfa.IntegerType(t.Int.PromoteInt())
	}
	return &cfa.UnaryExpr{ExprBase: cfa.Base(loc, t), Op: op, Operand: operand}, nil
}

// sizeof 操作数只做类型推导，不求值也不产生边
func (b *builder) sizeof(n *sitter.Node, loc cfa.FileLocation, op cfa.UnaryOp) (cfa.Expr, error) {
	u := &cfa.UnaryExpr{ExprBase: cfa.Base(loc, cfa.IntegerType(absint.SizeT)), Op: op}
	if td := n.ChildByFieldName("type"); td != nil {
		t, err := b.typeDescriptor(td)
		if err != nil {
			return nil, err
		}
		u.TypeOperand = t
		return u, nil
	}
	value := n.ChildByFieldName("value")
	if value == nil {
		return nil, fmt.Errorf("%w: sizeof without operand at %s", ErrMalformedInput, b.unit.Loc(n))
	}
	saved := b.mode
	b.mode = modeSuppress
	operand, err := b.expr(value)
	b.mode = saved
	if err != nil {
		return nil, err
	}
	// 数组不退化
	if id, ok := operand.(*cfa.IDExpr); ok && id.DeclType != nil && id.DeclType.IsArray() {
		u.TypeOperand = id.DeclType
		return u, nil
	}
	u.Operand = operand
	return u, nil
}

func (b *builder) subscript(n *sitter.Node, loc cfa.FileLocation) (cfa.Expr, error) {
	arrayNode := n.ChildByFieldName("argument")
	indexNode := n.ChildByFieldName("index")
	if arrayNode == nil || indexNode == nil {
		parts := namedChildren(n)
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: bad subscript at %s", ErrMalformedInput, b.unit.Loc(n))
		}
		arrayNode, indexNode = parts[0], parts[1]
	}
	array, err := b.expr(arrayNode)
	if err != nil {
		return nil, err
	}
	index, err := b.expr(indexNode)
	if err != nil {
		return nil, err
	}
	elem := cfa.UnknownType
	switch {
	case array.Type().IsPointer():
		elem = array.Type().Elem.Decay()
	case index.Type().IsPointer():
		// i[a]
		elem = index.Type().Elem.Decay()
	}
	return &cfa.SubscriptExpr{ExprBase: cfa.Base(loc, elem), Array: array, Index: index}, nil
}

// updateValue 作为值使用的自增自减：前缀取更新后的值，后缀先存到临时变量
func (b *builder) updateValue(n *sitter.Node) (cfa.Expr, error) {
	arg := n.ChildByFieldName("argument")
	if !b.hoistable() {
		return b.dummyCopy(arg)
	}
	op := n.ChildByFieldName("operator")
	prefix := op != nil && op.StartByte() < arg.StartByte()
	if prefix {
		if err := b.update(n); err != nil {
			return nil, err
		}
		return b.dummyCopy(arg)
	}
	old, err := b.dummyCopy(arg)
	if err != nil {
		return nil, err
	}
	tmp := b.temp(old.Type())
	b.emit(&cfa.Edge{Kind: cfa.StatementEdge, Loc: cfa.DummyLocation, Stmt: &cfa.AssignStmt{LHS: tmp, RHS: old, Loc: cfa.DummyLocation}})
	if err := b.update(n); err != nil {
		return nil, err
	}
	return tmp, nil
}
