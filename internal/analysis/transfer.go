package analysis

import (
	"errors"
	"fmt"
	"strings"

	"cintfix/internal/absint"
	"cintfix/internal/cfa"
	"cintfix/internal/fixguide"
)

// ErrMalformedInput 无法识别的边、运算符或断开的指针链
// 整个翻译单元的分析随之中止，不产生部分结果
var ErrMalformedInput = errors.New("analysis: malformed input")

// SuccKind 后继个数的种类
type SuccKind int

const (
	// SuccNone 分支不可行
	SuccNone SuccKind = iota
	SuccOne
	// SuccMany 区间拆分产生多个后继
	SuccMany
)

// Successors 转移关系的结果
type Successors struct {
	Kind   SuccKind
	States []*State
}

func noSuccessor() Successors { return Successors{Kind: SuccNone} }

func soleSuccessor(s *State) Successors {
	return Successors{Kind: SuccOne, States: []*State{s}}
}

// Transfer 按边的种类变换抽象状态，约束和修复指引写入 Acc
type Transfer struct {
	Acc *Accumulator
}

// NewTransfer 使用给定累积器
func NewTransfer(acc *Accumulator) *Transfer {
	return &Transfer{Acc: acc}
}

func (tr *Transfer) evaluate(st *State, e cfa.Expr) (exprInfo, error) {
	ev := evaluator{acc: tr.Acc, st: st}
	return ev.eval(e)
}

// Apply 计算 st 经过边 e 之后的后继状态
func (tr *Transfer) Apply(st *State, e *cfa.Edge) (Successors, error) {
	var (
		next *State
		err  error
	)
	switch e.Kind {
	case cfa.BlankEdge:
		next = st
		if e.To != nil && e.To.Exit {
			next = st.DropFrame(e.From.Function)
		}
	case cfa.DeclarationEdge:
		next, err = tr.declaration(st, e.Decl)
	case cfa.StatementEdge:
		next, err = tr.statement(st, e.Stmt)
	case cfa.AssumeEdge:
		return tr.assume(st, e.Assume)
	case cfa.CallEdge:
		next, err = tr.call(st, e.Call)
	case cfa.FunctionReturnEdge:
		next, err = tr.functionReturn(st, e.Call)
	case cfa.ReturnStatementEdge:
		next, err = tr.returnStatement(st, e.Return)
	default:
		return noSuccessor(), fmt.Errorf("%w: unexpected edge %s", ErrMalformedInput, e)
	}
	if err != nil {
		return noSuccessor(), fmt.Errorf("%s: %w", e.Loc, err)
	}
	return soleSuccessor(next), nil
}

// assign 把区间写到左值对应的变量上；解引用时只有恰好指到整数变量才生效
func (tr *Transfer) assign(st *State, lhs cfa.Expr, r absint.Interval, t absint.IntType) *State {
	switch x := lhs.(type) {
	case *cfa.IDExpr:
		if x.Enumerator == nil {
			return st.WithRange(x.Qualified, r, t)
		}
	case *cfa.PointerDeref:
		if d, target := tr.Acc.distance(x); d == 0 && target != "" {
			return st.WithRange(target, r, t)
		}
	}
	return st
}

func (tr *Transfer) declaration(st *State, d *cfa.Declaration) (*State, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: declaration edge without declaration", ErrMalformedInput)
	}
	q := d.Qualified
	if d.Synthetic {
		tr.Acc.markSynthetic(q)
	}

	if d.Type.IsPointer() {
		if d.Init == nil {
			tr.Acc.pointTo(q, "")
			return st, nil
		}
		if _, err := tr.evaluate(st, d.Init); err != nil {
			return nil, err
		}
		tr.Acc.pointTo(q, tr.Acc.nextNode(d.Init))
		return st, nil
	}

	declType := d.Type.IntType()
	if d.Init != nil {
		info, err := tr.evaluate(st, d.Init)
		if err != nil {
			return nil, err
		}
		if declType.IsOther() {
			return st, nil
		}
		tr.Acc.markInt(q)
		tr.Acc.softDP(q, declType)
		tr.Acc.softEQ(q, declType)
		tr.Acc.softP(q, absint.FromRange(info.r))
		if !d.Synthetic {
			tr.Acc.locate(q, d.Loc)
		}
		t := info.t
		if t.IsOther() {
			t = declType
		}
		return st.WithRange(q, info.r, t), nil
	}

	if declType.IsOther() {
		return st, nil
	}
	tr.Acc.markInt(q)
	r := absint.Unbounded
	if d.Extern {
		// 外部变量的类型不能改，值域就是类型的值域
		tr.Acc.hardEQ(q, declType)
		r = declType.TypeRange()
	} else {
		tr.Acc.softDP(q, declType)
		tr.Acc.softEQ(q, declType)
	}
	if !d.Synthetic {
		tr.Acc.locate(q, d.Loc)
	}
	return st.WithRange(q, r, declType), nil
}

func (tr *Transfer) statement(st *State, s cfa.Statement) (*State, error) {
	switch x := s.(type) {
	case *cfa.ExprStmt:
		if _, err := tr.evaluate(st, x.Expr); err != nil {
			return nil, err
		}
		return st, nil
	case *cfa.AssignStmt:
		return tr.assignment(st, x)
	}
	return nil, fmt.Errorf("%w: unexpected statement %T", ErrMalformedInput, s)
}

func (tr *Transfer) assignment(st *State, a *cfa.AssignStmt) (*State, error) {
	lhsType := a.LHS.Type()
	if lhsType.IsPointer() {
		if _, err := tr.evaluate(st, a.RHS); err != nil {
			return nil, err
		}
		// 库函数返回的指针指向未知位置，保持原来的指向关系
		if _, ok := a.RHS.(*cfa.CallExpr); ok {
			return st, nil
		}
		if left := tr.Acc.leftHandNode(a.LHS); left != "" {
			tr.Acc.pointTo(left, tr.Acc.nextNode(a.RHS))
		}
		return st, nil
	}

	info, err := tr.evaluate(st, a.RHS)
	if err != nil {
		return nil, err
	}
	t := lhsType.IntType()
	if t.IsOther() {
		return st, nil
	}
	left := tr.Acc.leftHandNode(a.LHS)
	if left == "" {
		// 字段、数组元素等无法提升类型的左值，右值需要运行时检查
		if t.IsNative() {
			tr.Acc.addGuide(a.RHS.Loc(), fixguide.NewCheck(t))
		}
		return st, nil
	}
	tr.Acc.softP(left, absint.FromRange(info.r))
	return st.WithRange(left, info.r, t), nil
}

// narrow 比较运算在分支上对两个操作数区间的收紧
// ok 为假表示不能收紧（结果会是空区间），此时状态保持不变
func narrow(op cfa.BinaryOp, r1, r2 absint.Interval) (nr1, nr2 absint.Interval, ok bool) {
	switch op {
	case cfa.OpLessThan:
		nr1 = r1.LimitUpperBoundBy(r2.PlusConst(-1))
		nr2 = r2.LimitLowerBoundBy(r1.PlusConst(1))
	case cfa.OpLessEqual:
		nr1 = r1.LimitUpperBoundBy(r2)
		nr2 = r2.LimitLowerBoundBy(r1)
	case cfa.OpGreaterThan:
		nr1 = r1.LimitLowerBoundBy(r2.PlusConst(1))
		nr2 = r2.LimitUpperBoundBy(r1.PlusConst(-1))
	case cfa.OpGreaterEqual:
		nr1 = r1.LimitLowerBoundBy(r2)
		nr2 = r2.LimitUpperBoundBy(r1)
	case cfa.OpEquals:
		nr1 = r1.Intersect(r2)
		nr2 = nr1
	default:
		return r1, r2, false
	}
	if nr1.IsEmpty() || nr2.IsEmpty() {
		return r1, r2, false
	}
	return nr1, nr2, true
}

func (tr *Transfer) assume(st *State, a *cfa.Assumption) (Successors, error) {
	if a == nil || a.Expr == nil {
		return noSuccessor(), fmt.Errorf("%w: assumption without condition", ErrMalformedInput)
	}
	op := a.Expr.Op
	if !op.IsComparison() {
		return noSuccessor(), fmt.Errorf("%w: unexpected operator %q in assumption", ErrMalformedInput, op)
	}
	if !a.Truth {
		op = op.Negate()
	}
	left, right := a.Expr.Left, a.Expr.Right
	i1, err := tr.evaluate(st, left)
	if err != nil {
		return noSuccessor(), err
	}
	i2, err := tr.evaluate(st, right)
	if err != nil {
		return noSuccessor(), err
	}

	// 比较前把两边转换到同一类型
	tr.Acc.compareGuides(left, right, i1, i2)

	// 只有两边都为空才判定不可行，单边为空时保守地保留状态
	e1, e2 := i1.r.IsEmpty(), i2.r.IsEmpty()
	switch {
	case e1 && e2:
		return noSuccessor(), nil
	case e1 || e2:
		return soleSuccessor(st), nil
	}

	nr1, nr2, ok := narrow(op, i1.r, i2.r)
	if !ok {
		return soleSuccessor(st), nil
	}
	next := st
	if !i1.t.IsOther() {
		next = tr.assign(next, left, nr1, i1.t)
	}
	if !i2.t.IsOther() {
		next = tr.assign(next, right, nr2, i2.t)
	}
	return soleSuccessor(next), nil
}

// clampTo 经过运行时检查之后的值一定落在类型值域内
func clampTo(r absint.Interval, t absint.IntType) absint.Interval {
	bound := t.TypeRange()
	if bound.Contains(r) {
		return r
	}
	if in := r.Intersect(bound); !in.IsEmpty() {
		return in
	}
	return bound
}

func (tr *Transfer) call(st *State, cs *cfa.CallSite) (*State, error) {
	if cs == nil || cs.Callee == nil || cs.Call == nil {
		return nil, fmt.Errorf("%w: call edge without call site", ErrMalformedInput)
	}
	params := cs.Callee.Params
	args := cs.Call.Args
	if len(args) < len(params) {
		return nil, fmt.Errorf("%w: %s expects %d arguments, got %d", ErrMalformedInput, cs.Callee.Name, len(params), len(args))
	}
	next := st
	for i, p := range params {
		arg := args[i]
		info, err := tr.evaluate(st, arg)
		if err != nil {
			return nil, err
		}
		if p.Type.IsPointer() {
			tr.Acc.pointTo(p.Qualified, tr.Acc.nextNode(arg))
			continue
		}
		pt := p.Type.IntType()
		if pt.IsOther() {
			continue
		}
		r := clampTo(info.r, pt)
		next = next.WithRange(p.Qualified, r, pt)
		tr.Acc.markInt(p.Qualified)
		tr.Acc.softP(p.Qualified, pt)
		tr.Acc.softEQ(p.Qualified, pt)
		tr.Acc.locate(p.Qualified, p.Loc)
		tr.Acc.addGuide(arg.Loc(), fixguide.NewCheck(pt))
	}
	// 变参部分按库函数的规则求值
	for _, arg := range args[len(params):] {
		if _, err := tr.evaluate(st, arg); err != nil {
			return nil, err
		}
	}
	return next, nil
}

// functionReturn st 已经由调用点状态重建过
func (tr *Transfer) functionReturn(st *State, cs *cfa.CallSite) (*State, error) {
	if cs == nil || cs.Callee == nil {
		return nil, fmt.Errorf("%w: return edge without call site", ErrMalformedInput)
	}
	retVar := cs.Callee.RetVar()
	next := st
	if retVar != "" {
		next = st.Without(retVar)
	}
	if cs.LHS == nil || retVar == "" {
		return next, nil
	}
	rt := cs.Callee.ReturnType
	switch {
	case rt.IsInteger():
		t := rt.IntType()
		next = tr.assign(next, cs.LHS, st.Range(retVar), t)
		if left := tr.Acc.leftHandNode(cs.LHS); left != "" {
			tr.Acc.softP(left, t)
		}
	case rt.IsPointer():
		if left := tr.Acc.leftHandNode(cs.LHS); left != "" {
			tr.Acc.pointTo(left, tr.Acc.PointsTo[retVar])
		}
	}
	return next, nil
}

func (tr *Transfer) returnStatement(st *State, r *cfa.ReturnStmt) (*State, error) {
	if r == nil || r.Function == nil {
		return nil, fmt.Errorf("%w: return edge without function", ErrMalformedInput)
	}
	fn := r.Function
	next := st.DropFrame(fn.Name)
	if r.Expr == nil {
		return next, nil
	}
	info, err := tr.evaluate(st, r.Expr)
	if err != nil {
		return nil, err
	}
	retVar := fn.RetVar()
	switch {
	case fn.ReturnType.IsInteger():
		rt := fn.ReturnType.IntType()
		if !rt.TypeRange().Contains(info.r) && rt.IsNative() {
			// 返回值可能超出返回类型
			tr.Acc.addGuide(r.Expr.Loc(), fixguide.NewCheck(rt))
		}
		next = next.WithRange(retVar, clampTo(info.r, rt), rt)
	case fn.ReturnType.IsPointer():
		tr.Acc.pointTo(retVar, tr.Acc.nextNode(r.Expr))
	}
	return next, nil
}

// SkipCall 递归调用不进入被调函数：全局变量和接收返回值的左值都变为未知
func (tr *Transfer) SkipCall(st *State, cs *cfa.CallSite) *State {
	next := st
	for _, name := range st.Names() {
		if !strings.Contains(name, "::") {
			t, _ := st.Type(name)
			next = next.WithRange(name, absint.Unbounded, t)
		}
	}
	if cs.LHS == nil || cs.Callee == nil {
		return next
	}
	rt := cs.Callee.ReturnType
	switch {
	case rt.IsInteger():
		next = tr.assign(next, cs.LHS, absint.Unbounded, rt.IntType())
	case rt.IsPointer():
		if left := tr.Acc.leftHandNode(cs.LHS); left != "" {
			tr.Acc.pointTo(left, "")
		}
	}
	return next
}
