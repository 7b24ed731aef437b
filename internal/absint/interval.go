package absint

import "fmt"

// Interval 闭区间 [low, high]，或显式的空区间
// 边界不会是 NaN：构造时遇到 NaN 直接退化为 Unbounded
type Interval struct {
	low   ExtInt
	high  ExtInt
	empty bool
}

var (
	Zero      = Point(0)
	One       = Point(1)
	Bool      = NewInterval(NewExtInt(0), NewExtInt(1))
	Empty     = Interval{empty: true}
	Unbounded = Interval{low: NegInf(), high: PosInf()}
)

// NewInterval 构造区间，边界颠倒时自动交换
func NewInterval(low, high ExtInt) Interval {
	if low.IsNaN() || high.IsNaN() {
		return Unbounded
	}
	if low.cmp(high) > 0 {
		low, high = high, low
	}
	return Interval{low: low, high: high}
}

// Point 单点区间
func Point(v int64) Interval {
	x := NewExtInt(v)
	return Interval{low: x, high: x}
}

// PointExt 由扩展整数构造单点区间
func PointExt(x ExtInt) Interval {
	return NewInterval(x, x)
}

func (r Interval) IsEmpty() bool { return r.empty }
func (r Interval) Low() ExtInt   { return r.low }
func (r Interval) High() ExtInt  { return r.high }

func (r Interval) IsUnbounded() bool {
	return !r.empty && r.low.IsNegInf() && r.high.IsPosInf()
}

// IsSingleton 区间只含一个有限值
func (r Interval) IsSingleton() bool {
	return !r.empty && r.low.IsFinite() && r.low.Equal(r.high)
}

func (r Interval) Equal(o Interval) bool {
	if r.empty || o.empty {
		return r.empty == o.empty
	}
	return r.low.Equal(o.low) && r.high.Equal(o.high)
}

// Union 凸包，空区间是单位元
func (r Interval) Union(o Interval) Interval {
	if r.empty {
		return o
	}
	if o.empty {
		return r
	}
	return Interval{low: r.low.Min(o.low), high: r.high.Max(o.high)}
}

func (r Interval) Intersects(o Interval) bool {
	if r.empty || o.empty {
		return false
	}
	return r.low.cmp(o.high) <= 0 && o.low.cmp(r.high) <= 0
}

// Intersect 不相交时返回 Empty
func (r Interval) Intersect(o Interval) Interval {
	if !r.Intersects(o) {
		return Empty
	}
	return Interval{low: r.low.Max(o.low), high: r.high.Min(o.high)}
}

// Contains 空区间被任何区间包含
func (r Interval) Contains(o Interval) bool {
	if o.empty {
		return true
	}
	if r.empty {
		return false
	}
	return r.low.cmp(o.low) <= 0 && o.high.cmp(r.high) <= 0
}

// IsGreaterThan 所有值都严格大于 o 的所有值
func (r Interval) IsGreaterThan(o Interval) bool {
	return !r.empty && !o.empty && r.low.cmp(o.high) > 0
}

func (r Interval) IsGreaterOrEqualThan(o Interval) bool {
	return !r.empty && !o.empty && r.low.cmp(o.high) >= 0
}

// MayBeGreaterThan 存在某个值大于 o 的某个值
func (r Interval) MayBeGreaterThan(o Interval) bool {
	return !r.empty && !o.empty && r.high.cmp(o.low) > 0
}

// LimitLowerBoundBy 用 o 的下界收紧本区间
func (r Interval) LimitLowerBoundBy(o Interval) Interval {
	if r.empty || o.empty || r.high.cmp(o.low) < 0 {
		return Empty
	}
	return Interval{low: r.low.Max(o.low), high: r.high}
}

// LimitUpperBoundBy 用 o 的上界收紧本区间
func (r Interval) LimitUpperBoundBy(o Interval) Interval {
	if r.empty || o.empty || r.low.cmp(o.high) > 0 {
		return Empty
	}
	return Interval{low: r.low, high: r.high.Min(o.high)}
}

func (r Interval) Plus(o Interval) Interval {
	if r.empty || o.empty {
		return Empty
	}
	return NewInterval(r.low.Add(o.low), r.high.Add(o.high))
}

// PlusConst 常量偏移
func (r Interval) PlusConst(c int64) Interval {
	return r.Plus(Point(c))
}

func (r Interval) Negate() Interval {
	if r.empty {
		return Empty
	}
	return Interval{low: r.high.Neg(), high: r.low.Neg()}
}

func (r Interval) Minus(o Interval) Interval {
	return r.Plus(o.Negate())
}

// hull 取一组端点运算结果的最小/最大值，忽略 NaN
func hull(values ...ExtInt) Interval {
	var lo, hi ExtInt
	found := false
	for _, v := range values {
		if v.IsNaN() {
			continue
		}
		if !found {
			lo, hi, found = v, v, true
			continue
		}
		lo = lo.Min(v)
		hi = hi.Max(v)
	}
	if !found {
		return Unbounded
	}
	return Interval{low: lo, high: hi}
}

func (r Interval) Times(o Interval) Interval {
	if r.empty || o.empty {
		return Empty
	}
	return hull(
		r.low.Mul(o.low), r.low.Mul(o.high),
		r.high.Mul(o.low), r.high.Mul(o.high),
	)
}

// Divide 除数可能为 0 时退化为 [-max|x|, max|x|]；除数只有 0 时为空
func (r Interval) Divide(o Interval) Interval {
	if r.empty || o.empty || o.Equal(Zero) {
		return Empty
	}
	if o.Contains(Zero) {
		upper := r.low.Abs().Max(r.high.Abs())
		if upper.Sign() == 0 {
			return Zero
		}
		return Interval{low: upper.Neg(), high: upper}
	}
	return hull(
		r.low.Div(o.low), r.low.Div(o.high),
		r.high.Div(o.low), r.high.Div(o.high),
	)
}

// Modulo C 的 % 语义：结果符号跟随被除数，绝对值小于除数绝对值
func (r Interval) Modulo(o Interval) Interval {
	if r.empty || o.empty {
		return Empty
	}
	// 除数只看绝对值，跨 0 时最小绝对值按 1 处理
	one := NewExtInt(1)
	lower, upper := o.low.Abs(), o.high.Abs()
	if o.low.Sign() <= 0 && o.high.Sign() >= 0 {
		lower, upper = one, lower.Max(upper).Max(one)
	}
	div := NewInterval(lower, upper)
	limit := div.high.Sub(NewExtInt(1))

	switch {
	case r.low.Sign() >= 0:
		return nonNegativeModulo(r, div, limit)
	case r.high.Sign() <= 0:
		return nonNegativeModulo(r.Negate(), div, limit).Negate()
	}
	// 被除数跨 0
	return NewInterval(r.low.Max(limit.Neg()), r.high.Min(limit))
}

func nonNegativeModulo(r, div Interval, limit ExtInt) Interval {
	newHigh := r.high.Min(limit)
	newLow := r.low
	if r.low.Sign() == 0 || r.high.cmp(div.low) >= 0 {
		newLow = NewExtInt(0)
	}
	return NewInterval(newLow, newHigh)
}

// shiftAmounts 把位移量限制为非负；全为负时返回 ok=false
func shiftAmounts(offset Interval) (lo, hi int, loOK, hiOK, ok bool) {
	if Zero.MayBeGreaterThan(offset) {
		if offset.high.Sign() < 0 {
			return 0, 0, false, false, false
		}
		hi, hiOK = offset.high.Int()
		return 0, hi, true, hiOK, true
	}
	lo, loOK = offset.low.Int()
	hi, hiOK = offset.high.Int()
	return lo, hi, loOK, hiOK, true
}

// nonNegativeOperand 负数部分按 0 处理（负数左移本身是未定义行为）
func (r Interval) nonNegativeOperand() (ExtInt, ExtInt, bool) {
	if Zero.MayBeGreaterThan(r) {
		if r.high.Sign() < 0 {
			return ExtInt{}, ExtInt{}, false
		}
		return NewExtInt(0), r.high, true
	}
	return r.low, r.high, true
}

// ShiftLeft 位移量超出 int 范围时视为未知，边界为 0 的保持 0，否则 +inf
func (r Interval) ShiftLeft(offset Interval) Interval {
	if r.empty || offset.empty {
		return Empty
	}
	sLow, sHigh, sLowOK, sHighOK, ok := shiftAmounts(offset)
	if !ok {
		return Empty
	}
	lLow, lHigh, ok := r.nonNegativeOperand()
	if !ok {
		return Empty
	}

	var newLow, newHigh ExtInt
	if !sLowOK {
		newLow = unknownShiftLeft(lLow)
	} else {
		newLow = lLow.Shl(sLow)
	}
	if !sHighOK {
		newHigh = unknownShiftLeft(lHigh)
	} else {
		newHigh = lHigh.Shl(sHigh)
	}
	return NewInterval(newLow, newHigh)
}

func unknownShiftLeft(bound ExtInt) ExtInt {
	if bound.Sign() == 0 {
		return NewExtInt(0)
	}
	return PosInf()
}

// ShiftRight 位移量未知时对应边界取 0
func (r Interval) ShiftRight(offset Interval) Interval {
	if r.empty || offset.empty {
		return Empty
	}
	sLow, sHigh, sLowOK, sHighOK, ok := shiftAmounts(offset)
	if !ok {
		return Empty
	}
	lLow, lHigh, ok := r.nonNegativeOperand()
	if !ok {
		return Empty
	}

	newLow, newHigh := NewExtInt(0), NewExtInt(0)
	if sHighOK {
		newLow = lLow.Shr(sHigh)
	}
	if sLowOK {
		newHigh = lHigh.Shr(sLow)
	}
	return NewInterval(newLow, newHigh)
}

func (r Interval) String() string {
	if r.empty {
		return "[empty]"
	}
	return fmt.Sprintf("[%s, %s]", r.low, r.high)
}
