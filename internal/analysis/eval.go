package analysis

import (
	"fmt"

	"cintfix/internal/absint"
	"cintfix/internal/cfa"
	"cintfix/internal/constraint"
	"cintfix/internal/fixguide"
)

// exprInfo 表达式求值结果
// names 为结果值可以随之提升的整数名字（变量、类型转换中间量）
type exprInfo struct {
	names []string
	r     absint.Interval
	t     absint.IntType
}

func valueOf(r absint.Interval, t absint.IntType) exprInfo {
	return exprInfo{r: r, t: t}
}

// typeRangeOf 按静态类型给出的结果
func typeRangeOf(ty *cfa.Type) exprInfo {
	t := ty.IntType()
	return valueOf(t.TypeRange(), t)
}

// evaluator 在给定状态下求值表达式，副作用写入累积器
type evaluator struct {
	acc *Accumulator
	st  *State
}

func (ev *evaluator) eval(e cfa.Expr) (exprInfo, error) {
	switch x := e.(type) {
	case *cfa.IDExpr:
		return ev.evalID(x), nil
	case *cfa.IntLiteral:
		return valueOf(absint.PointExt(absint.NewExtIntBig(x.Value)), x.Type().IntType()), nil
	case *cfa.CharLiteral:
		return valueOf(absint.Point(x.Value), absint.Char), nil
	case *cfa.OpaqueExpr:
		return ev.evalDefault(x), nil
	case *cfa.BinaryExpr:
		return ev.evalBinary(x)
	case *cfa.UnaryExpr:
		return ev.evalUnary(x)
	case *cfa.PointerDeref:
		return ev.evalDeref(x)
	case *cfa.CastExpr:
		return ev.evalCast(x)
	case *cfa.SubscriptExpr:
		if _, err := ev.eval(x.Array); err != nil {
			return exprInfo{}, err
		}
		if _, err := ev.eval(x.Index); err != nil {
			return exprInfo{}, err
		}
		ev.acc.addGuide(x.Index.Loc(), fixguide.NewCheck(absint.Index))
		// 数组元素对应固定大小的内存，不能提升
		return typeRangeOf(x.Type()), nil
	case *cfa.FieldRef:
		if _, err := ev.eval(x.Owner); err != nil {
			return exprInfo{}, err
		}
		return typeRangeOf(x.Type()), nil
	case *cfa.CallExpr:
		return ev.evalLibraryCall(x)
	case *cfa.ConditionalExpr:
		return ev.evalConditional(x)
	case nil:
		return exprInfo{}, fmt.Errorf("%w: missing expression", ErrMalformedInput)
	}
	return exprInfo{}, fmt.Errorf("%w: unexpected expression %T", ErrMalformedInput, e)
}

func (ev *evaluator) evalDefault(e cfa.Expr) exprInfo {
	t := e.Type().IntType()
	if t.IsOther() {
		return valueOf(absint.Unbounded, t)
	}
	return valueOf(t.TypeRange(), t)
}

func (ev *evaluator) evalID(x *cfa.IDExpr) exprInfo {
	if x.Enumerator != nil {
		return valueOf(absint.PointExt(absint.NewExtIntBig(x.Enumerator)), absint.Int)
	}
	r := ev.st.Range(x.Qualified)
	t, ok := ev.st.Type(x.Qualified)
	if !ok {
		declared := x.DeclType
		if declared == nil {
			declared = x.Type()
		}
		t = declared.IntType()
	}
	info := valueOf(r, t)
	// 临时变量不能提升，溢出时改为在引用处插入转换
	if _, synthetic := ev.acc.synthetic[x.Qualified]; ev.acc.IsInt(x.Qualified) && !synthetic {
		info.names = []string{x.Qualified}
	}
	return info
}

func unionNames(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	if len(a) == 0 {
		return b
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, n := range list {
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	return out
}

// logicRange 比较运算结果的区间，取 0、1 或 [0,1]
func logicRange(op cfa.BinaryOp, r1, r2 absint.Interval) absint.Interval {
	switch op {
	case cfa.OpEquals:
		if !r1.Intersects(r2) {
			return absint.Zero
		}
		if r1.IsSingleton() && r1.Equal(r2) {
			return absint.One
		}
	case cfa.OpNotEquals:
		if !r1.Intersects(r2) {
			return absint.One
		}
		if r2.IsSingleton() && r1.Equal(r2) {
			return absint.Zero
		}
	case cfa.OpGreaterThan:
		if r1.IsGreaterThan(r2) {
			return absint.One
		}
		if r2.IsGreaterOrEqualThan(r1) {
			return absint.Zero
		}
	case cfa.OpGreaterEqual:
		return logicRange(cfa.OpGreaterThan, r1.PlusConst(1), r2)
	case cfa.OpLessThan:
		return logicRange(cfa.OpGreaterThan, r2, r1)
	case cfa.OpLessEqual:
		return logicRange(cfa.OpGreaterEqual, r2, r1)
	}
	return absint.Bool
}

func (ev *evaluator) evalBinary(x *cfa.BinaryExpr) (exprInfo, error) {
	l, err := ev.eval(x.Left)
	if err != nil {
		return exprInfo{}, err
	}
	r, err := ev.eval(x.Right)
	if err != nil {
		return exprInfo{}, err
	}

	switch {
	case x.Op == cfa.OpLogicalAnd || x.Op == cfa.OpLogicalOr:
		return valueOf(absint.Bool, absint.Int), nil
	case x.Op.IsComparison():
		ev.acc.compareGuides(x.Left, x.Right, l, r)
		return valueOf(logicRange(x.Op, l.r, r.r), absint.Int), nil
	}

	merged := l.t.Merge(r.t)
	var res absint.Interval
	switch x.Op {
	case cfa.OpPlus:
		res = l.r.Plus(r.r)
	case cfa.OpMinus:
		res = l.r.Minus(r.r)
	case cfa.OpMultiply:
		res = l.r.Times(r.r)
	case cfa.OpDivide:
		res = l.r.Divide(r.r)
	case cfa.OpModulo:
		res = l.r.Modulo(r.r)
	case cfa.OpShiftLeft, cfa.OpShiftRight:
		return ev.evalShift(x, l, r), nil
	case cfa.OpBitAnd, cfa.OpBitOr, cfa.OpBitXor:
		// 位运算不会溢出，结果取无符号类型的整个值域
		if !merged.IsNative() {
			return valueOf(absint.Unbounded, merged), nil
		}
		newt := merged.AsUnsigned()
		g := fixguide.NewConv(newt)
		ev.acc.addGuide(x.Left.Loc(), g)
		ev.acc.addGuide(x.Right.Loc(), g)
		return valueOf(newt.TypeRange(), newt), nil
	default:
		return exprInfo{}, fmt.Errorf("%w: unexpected binary operator %q", ErrMalformedInput, x.Op)
	}

	names := unionNames(l.names, r.names)
	info := exprInfo{names: names, r: res, t: merged}
	upd := absint.FromRange(res)
	if merged.ContainsType(upd) {
		return info, nil
	}
	if len(names) > 0 {
		ev.acc.softAnyP(names, upd)
		return info, nil
	}
	if !upd.IsOverlong() {
		g := fixguide.NewConv(upd)
		ev.acc.addGuide(x.Left.Loc(), g)
		ev.acc.addGuide(x.Right.Loc(), g)
	}
	return info, nil
}

// evalShift 位移的结果类型是左操作数提升后的类型，不与右操作数合并
// 整个表达式加运行时检查，结果区间截断到该类型的值域
func (ev *evaluator) evalShift(x *cfa.BinaryExpr, l, r exprInfo) exprInfo {
	lt := l.t.PromoteInt()
	var res absint.Interval
	if x.Op == cfa.OpShiftLeft {
		res = l.r.ShiftLeft(r.r)
	} else {
		res = l.r.ShiftRight(r.r)
	}
	if lt.IsNative() {
		ev.acc.addGuide(x.Loc(), fixguide.NewShiftCheck(lt, x.Op == cfa.OpShiftLeft))
	}
	if tr := lt.TypeRange(); !tr.Contains(res) {
		res = tr
	}
	return valueOf(res, lt)
}

func (ev *evaluator) evalUnary(x *cfa.UnaryExpr) (exprInfo, error) {
	switch x.Op {
	case cfa.OpSizeof, cfa.OpAlignof:
		return valueOf(sizeRange(x), absint.SizeT), nil
	case cfa.OpAmper:
		if _, err := ev.eval(x.Operand); err != nil {
			return exprInfo{}, err
		}
		return valueOf(absint.Unbounded, absint.Unknown), nil
	}

	in, err := ev.eval(x.Operand)
	if err != nil {
		return exprInfo{}, err
	}
	switch x.Op {
	case cfa.OpNegate:
		res := in.r.Negate()
		upd := absint.FromRange(res)
		if len(in.names) > 0 {
			ev.acc.softAnyP(in.names, upd)
		} else if !in.t.ContainsType(upd) && !upd.IsOverlong() {
			ev.acc.addGuide(x.Operand.Loc(), fixguide.NewConv(upd))
		}
		return exprInfo{names: in.names, r: res, t: in.t}, nil
	case cfa.OpUnaryPlus:
		return exprInfo{names: in.names, r: in.r, t: in.t.PromoteInt()}, nil
	case cfa.OpNot:
		return valueOf(absint.Bool, absint.Int), nil
	case cfa.OpTilde:
		t := in.t.PromoteInt()
		if !t.IsNative() {
			return valueOf(absint.Unbounded, t), nil
		}
		t = t.AsUnsigned()
		ev.acc.addGuide(x.Operand.Loc(), fixguide.NewConv(t))
		return valueOf(t.TypeRange(), t), nil
	}
	return exprInfo{}, fmt.Errorf("%w: unexpected unary operator %d", ErrMalformedInput, x.Op)
}

// sizeRange sizeof/_Alignof 的取值
// 整数类型可能被提升，取 [当前大小, 最长整数大小]
func sizeRange(x *cfa.UnaryExpr) absint.Interval {
	measure := func(t *cfa.Type) int64 {
		if x.Op == cfa.OpAlignof {
			return alignOf(t)
		}
		return t.SizeOf()
	}
	if x.Operand == nil {
		return absint.Point(measure(x.TypeOperand))
	}
	ty := x.Operand.Type()
	if ty.IsInteger() {
		return absint.NewInterval(absint.NewExtInt(int64(absint.SizeOf(ty.Int.Kind))), absint.NewExtInt(absint.LongestIntSize))
	}
	return absint.Point(measure(ty))
}

func alignOf(t *cfa.Type) int64 {
	switch t.Kind {
	case cfa.TypeArray:
		return alignOf(t.Elem)
	case cfa.TypeStruct:
		var a int64 = 1
		for _, f := range t.Fields {
			if fa := alignOf(f.Type); fa > a {
				a = fa
			}
		}
		return a
	}
	if s := t.SizeOf(); s > 0 {
		return s
	}
	return 1
}

func (ev *evaluator) evalDeref(x *cfa.PointerDeref) (exprInfo, error) {
	if _, err := ev.eval(x.Operand); err != nil {
		return exprInfo{}, err
	}
	static := x.Type().IntType()
	dist, target := ev.acc.distance(x.Operand)
	if dist > -1 {
		dist--
	}
	switch {
	case dist == 0:
		if target == "" {
			return exprInfo{}, fmt.Errorf("%w: broken pointer chain at %s", ErrMalformedInput, x.Loc())
		}
		actual, ok := ev.st.Type(target)
		if !ok {
			actual = static
		}
		if actual != static && actual.IsNative() {
			// 目标已经被提升，通过指针读取时需要换成新类型的指针
			ev.acc.addGuide(x.Operand.Loc(), fixguide.NewPointerConv(actual, 1, target))
		}
		return exprInfo{names: []string{target}, r: ev.st.Range(target), t: actual}, nil
	case dist > 0:
		// 结果仍然是指针
		return valueOf(absint.Empty, static), nil
	}
	return valueOf(static.TypeRange(), static), nil
}

func (ev *evaluator) evalCast(x *cfa.CastExpr) (exprInfo, error) {
	child, err := ev.eval(x.Operand)
	if err != nil {
		return exprInfo{}, err
	}
	ct := x.Type().IntType()
	if ct.IsOther() {
		return valueOf(child.r, ct), nil
	}
	n := ev.acc.newInterm()
	ev.acc.locate(n, x.Loc())
	if len(child.names) > 0 {
		preds := make([]constraint.Predicate, 0, len(child.names))
		for _, name := range child.names {
			preds = append(preds, constraint.P(constraint.Var(n), constraint.Var(name)))
		}
		ev.acc.addConstraint(constraint.Soft(preds...))
	}
	ev.acc.softP(n, absint.FromRange(child.r))
	ev.acc.softEQ(n, ct)
	return exprInfo{names: []string{n}, r: child.r, t: ct}, nil
}

// evalLibraryCall 本单元内没有定义的函数，结果按返回类型估计
func (ev *evaluator) evalLibraryCall(x *cfa.CallExpr) (exprInfo, error) {
	checked := !x.Variadic && len(x.Params) == len(x.Args)
	for i, arg := range x.Args {
		if _, err := ev.eval(arg); err != nil {
			return exprInfo{}, err
		}
		if !checked {
			continue
		}
		if pt := x.Params[i].IntType(); pt.IsNative() {
			ev.acc.addGuide(arg.Loc(), fixguide.NewCheck(pt))
		}
	}
	return typeRangeOf(x.Type()), nil
}

func (ev *evaluator) evalConditional(x *cfa.ConditionalExpr) (exprInfo, error) {
	if _, err := ev.eval(x.Cond); err != nil {
		return exprInfo{}, err
	}
	a, err := ev.eval(x.Then)
	if err != nil {
		return exprInfo{}, err
	}
	b, err := ev.eval(x.Else)
	if err != nil {
		return exprInfo{}, err
	}
	return exprInfo{names: unionNames(a.names, b.names), r: a.r.Union(b.r), t: a.t.Merge(b.t).PromoteInt()}, nil
}
