package frontend

import (
	"fmt"
	"log"

	sitter "github.com/smacker/go-tree-sitter"

	"cintfix/internal/absint"
	"cintfix/internal/cfa"
)

// switchCase switch 中一个 case 标签及其入口节点
type switchCase struct {
	value cfa.Expr
	node  *cfa.Node
}

// switchContext 正在构造的 switch
type switchContext struct {
	cases []switchCase
	def   *cfa.Node
}

// statement 递归构造语句的 CFA，结束时 b.cur 为后继节点（不可达时为 nil）
func (b *builder) statement(n *sitter.Node) error {
	if n == nil {
		return nil
	}
	if err := b.ctx.Err(); err != nil {
		return err
	}
	switch n.Type() {
	case "compound_statement":
		return b.compoundStatement(n)
	case "declaration":
		return b.declaration(n)
	case "type_definition":
		return b.typeDefinition(n)
	case "struct_specifier", "union_specifier", "enum_specifier":
		// 只有定义没有声明符，例如 struct S { int f; };
		_, err := b.specifier(n)
		return err
	case "expression_statement":
		inner := namedChildren(n)
		if len(inner) == 0 {
			return nil
		}
		return b.exprStatement(inner[0])
	case "if_statement":
		return b.ifStatement(n)
	case "while_statement":
		return b.whileStatement(n)
	case "do_statement":
		return b.doStatement(n)
	case "for_statement":
		return b.forStatement(n)
	case "switch_statement":
		return b.switchStatement(n)
	case "case_statement":
		return b.caseStatement(n)
	case "break_statement":
		return b.jump(n, b.breaks, "break")
	case "continue_statement":
		return b.jump(n, b.continues, "continue")
	case "return_statement":
		return b.returnStatement(n)
	case "goto_statement":
		label := b.unit.Text(n.ChildByFieldName("label"))
		if b.cur != nil {
			b.blank(b.cur, b.labelNode(label), b.unit.Loc(n), "goto "+label)
		}
		b.cur = nil
		return nil
	case "labeled_statement":
		label := b.unit.Text(n.ChildByFieldName("label"))
		target := b.labelNode(label)
		b.placed[label] = true
		if b.cur != nil {
			b.blank(b.cur, target, b.unit.Loc(n), label)
		}
		b.cur = target
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			if child == nil || !child.IsNamed() || n.FieldNameForChild(i) == "label" || child.Type() == "comment" {
				continue
			}
			if err := b.statement(child); err != nil {
				return err
			}
		}
		return nil
	case "attributed_statement":
		for _, child := range namedChildren(n) {
			if child.Type() == "attribute_declaration" {
				continue
			}
			if err := b.statement(child); err != nil {
				return err
			}
		}
		return nil
	case "ERROR":
		return fmt.Errorf("%w: syntax error at %s", ErrMalformedInput, b.unit.Loc(n))
	case "comment", "preproc_call", "preproc_def", "preproc_function_def", "preproc_include":
		return nil
	}
	if b.verbose {
		log.Printf("【前端】%s 忽略语句 %s", b.unit.Loc(n), n.Type())
	}
	return nil
}

func (b *builder) compoundStatement(n *sitter.Node) error {
	saved := b.scope
	b.scope = newScope(saved)
	defer func() { b.scope = saved }()
	for _, child := range namedChildren(n) {
		if err := b.statement(child); err != nil {
			return err
		}
	}
	return nil
}

// labelNode goto 目标节点，按需创建
func (b *builder) labelNode(label string) *cfa.Node {
	if n, ok := b.labels[label]; ok {
		return n
	}
	n := b.newNode()
	b.labels[label] = n
	return n
}

func (b *builder) jump(n *sitter.Node, targets []*cfa.Node, kind string) error {
	if len(targets) == 0 {
		return fmt.Errorf("%w: %s outside loop or switch at %s", ErrMalformedInput, kind, b.unit.Loc(n))
	}
	if b.cur != nil {
		b.blank(b.cur, targets[len(targets)-1], b.unit.Loc(n), kind)
	}
	b.cur = nil
	return nil
}

func (b *builder) returnStatement(n *sitter.Node) error {
	var value cfa.Expr
	if inner := namedChildren(n); len(inner) > 0 {
		e, err := b.expr(inner[0])
		if err != nil {
			return err
		}
		value = e
	}
	loc := b.unit.Loc(n)
	from := b.cur
	if from == nil {
		from = b.newNode()
	}
	b.addEdge(from, b.fn.Exit, &cfa.Edge{
		Kind:   cfa.ReturnStatementEdge,
		Loc:    loc,
		Return: &cfa.ReturnStmt{Expr: value, Function: b.fn, Loc: loc},
	})
	b.cur = nil
	return nil
}

// branch 从当前节点按条件分到 onTrue / onFalse，处理短路求值
func (b *builder) branch(n *sitter.Node, onTrue, onFalse *cfa.Node) error {
	n = stripParens(n)
	if n == nil {
		return fmt.Errorf("%w: missing condition", ErrMalformedInput)
	}
	if b.cur == nil {
		b.cur = b.newNode()
	}
	switch n.Type() {
	case "binary_expression":
		switch b.unit.Text(n.ChildByFieldName("operator")) {
		case "&&":
			mid := b.newNode()
			if err := b.branch(n.ChildByFieldName("left"), mid, onFalse); err != nil {
				return err
			}
			b.cur = mid
			return b.branch(n.ChildByFieldName("right"), onTrue, onFalse)
		case "||":
			mid := b.newNode()
			if err := b.branch(n.ChildByFieldName("left"), onTrue, mid); err != nil {
				return err
			}
			b.cur = mid
			return b.branch(n.ChildByFieldName("right"), onTrue, onFalse)
		}
	case "unary_expression":
		if b.unit.Text(n.ChildByFieldName("operator")) == "!" {
			return b.branch(n.ChildByFieldName("argument"), onFalse, onTrue)
		}
	case "true":
		b.blank(b.cur, onTrue, b.unit.Loc(n), "true")
		b.cur = nil
		return nil
	case "false":
		b.blank(b.cur, onFalse, b.unit.Loc(n), "false")
		b.cur = nil
		return nil
	}
	if v, ok := b.constant(n); ok {
		target := onTrue
		if v.Sign() == 0 {
			target = onFalse
		}
		b.blank(b.cur, target, b.unit.Loc(n), b.unit.Text(n))
		b.cur = nil
		return nil
	}

	e, err := b.expr(n)
	if err != nil {
		return err
	}
	cond := comparison(e)
	from := b.cur
	if from == nil {
		from = b.newNode()
	}
	loc := b.unit.Loc(n)
	b.addEdge(from, onTrue, &cfa.Edge{Kind: cfa.AssumeEdge, Loc: loc, Assume: &cfa.Assumption{Expr: cond, Truth: true}})
	b.addEdge(from, onFalse, &cfa.Edge{Kind: cfa.AssumeEdge, Loc: loc, Assume: &cfa.Assumption{Expr: cond, Truth: false}})
	b.cur = nil
	return nil
}

// comparison 非比较的条件 e 改写成 e != 0
func comparison(e cfa.Expr) *cfa.BinaryExpr {
	if bin, ok := e.(*cfa.BinaryExpr); ok && bin.Op.IsComparison() {
		return bin
	}
	return &cfa.BinaryExpr{
		ExprBase: cfa.Base(cfa.DummyLocation, cfa.IntegerType(absint.Int)),
		Op:       cfa.OpNotEquals,
		Left:     e,
		Right:    zeroLiteral(absint.Int),
	}
}

// ifStatement 条件节点分出两个分支，在汇聚点合并
func (b *builder) ifStatement(n *sitter.Node) error {
	cond := n.ChildByFieldName("condition")
	consequence := n.ChildByFieldName("consequence")
	alternative := n.ChildByFieldName("alternative")
	if alternative != nil && alternative.Type() == "else_clause" {
		inner := namedChildren(alternative)
		alternative = nil
		if len(inner) > 0 {
			alternative = inner[len(inner)-1]
		}
	}

	then := b.newNode()
	merge := b.newNode()
	elseEntry := merge
	if alternative != nil {
		elseEntry = b.newNode()
	}
	if err := b.branch(cond, then, elseEntry); err != nil {
		return err
	}

	b.cur = then
	if err := b.statement(consequence); err != nil {
		return err
	}
	b.blank(b.cur, merge, b.unit.Loc(n), "endif")

	if alternative != nil {
		b.cur = elseEntry
		if err := b.statement(alternative); err != nil {
			return err
		}
		b.blank(b.cur, merge, b.unit.Loc(n), "endelse")
	}
	b.cur = merge
	return nil
}

func (b *builder) pushLoop(exit, cont *cfa.Node) func() {
	b.breaks = append(b.breaks, exit)
	b.continues = append(b.continues, cont)
	return func() {
		b.breaks = b.breaks[:len(b.breaks)-1]
		b.continues = b.continues[:len(b.continues)-1]
	}
}

// whileStatement 循环头求条件，循环体结束回到循环头
func (b *builder) whileStatement(n *sitter.Node) error {
	loc := b.unit.Loc(n)
	head := b.newNode()
	if b.cur != nil {
		b.blank(b.cur, head, loc, "while")
	}
	body := b.newNode()
	exit := b.newNode()

	b.cur = head
	if err := b.branch(n.ChildByFieldName("condition"), body, exit); err != nil {
		return err
	}

	pop := b.pushLoop(exit, head)
	b.cur = body
	err := b.statement(n.ChildByFieldName("body"))
	pop()
	if err != nil {
		return err
	}
	b.blank(b.cur, head, loc, "loop")
	b.cur = exit
	return nil
}

func (b *builder) doStatement(n *sitter.Node) error {
	loc := b.unit.Loc(n)
	body := b.newNode()
	if b.cur != nil {
		b.blank(b.cur, body, loc, "do")
	}
	cont := b.newNode()
	exit := b.newNode()

	pop := b.pushLoop(exit, cont)
	b.cur = body
	err := b.statement(n.ChildByFieldName("body"))
	pop()
	if err != nil {
		return err
	}
	b.blank(b.cur, cont, loc, "loop")

	b.cur = cont
	if err := b.branch(n.ChildByFieldName("condition"), body, exit); err != nil {
		return err
	}
	b.cur = exit
	return nil
}

func (b *builder) forStatement(n *sitter.Node) error {
	saved := b.scope
	b.scope = newScope(saved)
	defer func() { b.scope = saved }()

	loc := b.unit.Loc(n)
	for _, init := range childrenByField(n, "initializer") {
		var err error
		if init.Type() == "declaration" {
			err = b.declaration(init)
		} else {
			err = b.exprStatement(init)
		}
		if err != nil {
			return err
		}
	}

	head := b.newNode()
	if b.cur != nil {
		b.blank(b.cur, head, loc, "for")
	}
	body := b.newNode()
	cont := b.newNode()
	exit := b.newNode()

	b.cur = head
	if cond := n.ChildByFieldName("condition"); cond != nil {
		if err := b.branch(cond, body, exit); err != nil {
			return err
		}
	} else {
		b.blank(head, body, loc, "forever")
	}

	pop := b.pushLoop(exit, cont)
	b.cur = body
	err := b.statement(n.ChildByFieldName("body"))
	pop()
	if err != nil {
		return err
	}
	b.blank(b.cur, cont, loc, "continue")

	b.cur = cont
	if update := n.ChildByFieldName("update"); update != nil {
		if err := b.exprStatement(update); err != nil {
			return err
		}
	}
	b.blank(b.cur, head, loc, "loop")
	b.cur = exit
	return nil
}

// switchStatement case 标签在语句体中登记，语句体构造完之后再从头节点
// 生成 v == c 的判定链
func (b *builder) switchStatement(n *sitter.Node) error {
	cond := stripParens(n.ChildByFieldName("condition"))
	value, err := b.expr(cond)
	if err != nil {
		return err
	}
	if b.cur == nil {
		b.cur = b.newNode()
	}
	head := b.cur
	exit := b.newNode()
	loc := b.unit.Loc(n)

	sw := &switchContext{}
	b.switches = append(b.switches, sw)
	b.breaks = append(b.breaks, exit)
	b.cur = nil
	err = b.statement(n.ChildByFieldName("body"))
	b.switches = b.switches[:len(b.switches)-1]
	b.breaks = b.breaks[:len(b.breaks)-1]
	if err != nil {
		return err
	}
	b.blank(b.cur, exit, loc, "endswitch")

	from := head
	for _, c := range sw.cases {
		test := &cfa.BinaryExpr{
			ExprBase: cfa.Base(cfa.DummyLocation, cfa.IntegerType(absint.Int)),
			Op:       cfa.OpEquals,
			Left:     value,
			Right:    c.value,
		}
		next := b.newNode()
		b.addEdge(from, c.node, &cfa.Edge{Kind: cfa.AssumeEdge, Loc: c.value.Loc(), Assume: &cfa.Assumption{Expr: test, Truth: true}})
		b.addEdge(from, next, &cfa.Edge{Kind: cfa.AssumeEdge, Loc: c.value.Loc(), Assume: &cfa.Assumption{Expr: test, Truth: false}})
		from = next
	}
	target := exit
	if sw.def != nil {
		target = sw.def
	}
	b.blank(from, target, loc, "default")
	b.cur = exit
	return nil
}

// caseStatement 前一个 case 的末尾直接落到这里
func (b *builder) caseStatement(n *sitter.Node) error {
	if len(b.switches) == 0 {
		return fmt.Errorf("%w: case label outside switch at %s", ErrMalformedInput, b.unit.Loc(n))
	}
	sw := b.switches[len(b.switches)-1]
	entry := b.newNode()
	if b.cur != nil {
		b.blank(b.cur, entry, b.unit.Loc(n), "fallthrough")
	}
	valueNode := n.ChildByFieldName("value")
	if valueNode == nil {
		sw.def = entry
	} else {
		value, err := b.expr(valueNode)
		if err != nil {
			return err
		}
		sw.cases = append(sw.cases, switchCase{value: value, node: entry})
	}
	b.cur = entry
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil || !child.IsNamed() || child.Type() == "comment" || n.FieldNameForChild(i) == "value" {
			continue
		}
		if err := b.statement(child); err != nil {
			return err
		}
	}
	return nil
}
