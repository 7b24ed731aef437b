package absint

import "testing"

func iv(lo, hi int64) Interval {
	return NewInterval(NewExtInt(lo), NewExtInt(hi))
}

// smallIntervals 枚举 [-4, 4] 内的所有区间
func smallIntervals() []Interval {
	var out []Interval
	for lo := int64(-4); lo <= 4; lo++ {
		for hi := lo; hi <= 4; hi++ {
			out = append(out, iv(lo, hi))
		}
	}
	return out
}

func bounds(r Interval) (int64, int64) {
	return r.Low().Big().Int64(), r.High().Big().Int64()
}

// bruteHull 对所有值对求运算结果的最小/最大值
func bruteHull(a, b Interval, op func(x, y int64) (int64, bool)) (Interval, bool) {
	alo, ahi := bounds(a)
	blo, bhi := bounds(b)
	var out Interval
	found := false
	for x := alo; x <= ahi; x++ {
		for y := blo; y <= bhi; y++ {
			v, ok := op(x, y)
			if !ok {
				continue
			}
			if !found {
				out, found = Point(v), true
				continue
			}
			out = out.Union(Point(v))
		}
	}
	return out, found
}

func TestIntervalArithmeticIsTight(t *testing.T) {
	ops := []struct {
		name string
		abs  func(a, b Interval) Interval
		conc func(x, y int64) (int64, bool)
	}{
		{"plus", Interval.Plus, func(x, y int64) (int64, bool) { return x + y, true }},
		{"minus", Interval.Minus, func(x, y int64) (int64, bool) { return x - y, true }},
		{"times", Interval.Times, func(x, y int64) (int64, bool) { return x * y, true }},
	}
	for _, op := range ops {
		for _, a := range smallIntervals() {
			for _, b := range smallIntervals() {
				want, _ := bruteHull(a, b, op.conc)
				if got := op.abs(a, b); !got.Equal(want) {
					t.Fatalf("%s %s %s: got %s, want %s", op.name, a, b, got, want)
				}
			}
		}
	}
}

func TestIntervalDivideAndModuloAreSound(t *testing.T) {
	div := func(x, y int64) (int64, bool) {
		if y == 0 {
			return 0, false
		}
		return x / y, true
	}
	mod := func(x, y int64) (int64, bool) {
		if y == 0 {
			return 0, false
		}
		return x % y, true
	}
	for _, a := range smallIntervals() {
		for _, b := range smallIntervals() {
			if want, ok := bruteHull(a, b, div); ok {
				if got := a.Divide(b); !got.Contains(want) {
					t.Fatalf("divide %s %s: got %s, want superset of %s", a, b, got, want)
				}
			}
			if want, ok := bruteHull(a, b, mod); ok {
				if got := a.Modulo(b); !got.Contains(want) {
					t.Fatalf("modulo %s %s: got %s, want superset of %s", a, b, got, want)
				}
			}
		}
	}
}

func TestModuloFollowsDividendSign(t *testing.T) {
	got := Point(-7).Modulo(Point(3))
	if !got.Contains(Point(-1)) {
		t.Fatalf("expected %s to contain -1", got)
	}
	if got.Contains(Point(2)) {
		t.Fatalf("expected %s not to contain 2", got)
	}
	if got := iv(0, 100).Modulo(Point(8)); !got.Equal(iv(0, 7)) {
		t.Fatalf("got %s", got)
	}
	if got := iv(1, 3).Modulo(Point(10)); !got.Equal(iv(1, 3)) {
		t.Fatalf("small dividend should be kept, got %s", got)
	}
}

func TestIntervalConstructionAndSetOps(t *testing.T) {
	if got := NewInterval(NewExtInt(5), NewExtInt(-1)); !got.Equal(iv(-1, 5)) {
		t.Fatalf("bounds should be swapped, got %s", got)
	}
	if got := NewInterval(NaN(), NewExtInt(1)); !got.IsUnbounded() {
		t.Fatalf("NaN bound should give unbounded, got %s", got)
	}
	if got := Empty.Union(iv(1, 2)); !got.Equal(iv(1, 2)) {
		t.Fatalf("empty is the union identity, got %s", got)
	}
	if got := iv(0, 3).Intersect(iv(5, 8)); !got.IsEmpty() {
		t.Fatalf("disjoint intersection should be empty, got %s", got)
	}
	if got := iv(0, 6).Intersect(iv(5, 8)); !got.Equal(iv(5, 6)) {
		t.Fatalf("got %s", got)
	}
	if !iv(0, 1).Contains(Empty) || Empty.Contains(iv(0, 1)) {
		t.Fatalf("containment with empty is wrong")
	}
	if !iv(5, 6).IsGreaterThan(iv(1, 4)) || iv(4, 6).IsGreaterThan(iv(1, 4)) {
		t.Fatalf("IsGreaterThan is wrong")
	}
	if !iv(4, 6).IsGreaterOrEqualThan(iv(1, 4)) {
		t.Fatalf("IsGreaterOrEqualThan is wrong")
	}
	if got := iv(-10, 10).LimitUpperBoundBy(Point(4)); !got.Equal(iv(-10, 4)) {
		t.Fatalf("got %s", got)
	}
	if got := iv(-10, -5).LimitLowerBoundBy(Point(0)); !got.IsEmpty() {
		t.Fatalf("got %s", got)
	}
	if got := Unbounded.Plus(Point(1)); !got.IsUnbounded() {
		t.Fatalf("got %s", got)
	}
}

func TestDivideByRangeContainingZero(t *testing.T) {
	if got := iv(-3, 8).Divide(iv(-1, 1)); !got.Equal(iv(-8, 8)) {
		t.Fatalf("got %s", got)
	}
	if got := Point(0).Divide(iv(0, 1)); !got.Equal(Zero) {
		t.Fatalf("got %s", got)
	}
	if got := iv(1, 2).Divide(Zero); !got.IsEmpty() {
		t.Fatalf("division by exactly zero should be empty, got %s", got)
	}
}

func TestShifts(t *testing.T) {
	if got := iv(1, 3).ShiftLeft(iv(0, 2)); !got.Equal(iv(1, 12)) {
		t.Fatalf("got %s", got)
	}
	if got := iv(1, 3).ShiftLeft(iv(-5, -1)); !got.IsEmpty() {
		t.Fatalf("all-negative shift should be empty, got %s", got)
	}
	if got := iv(-4, 3).ShiftLeft(iv(-1, 1)); !got.Equal(iv(0, 6)) {
		t.Fatalf("negative parts should be clamped, got %s", got)
	}
	huge := NewInterval(NewExtInt(0), PosInf())
	if got := iv(0, 3).ShiftLeft(huge); !got.Equal(NewInterval(NewExtInt(0), PosInf())) {
		t.Fatalf("unknown shift amount should widen to +inf, got %s", got)
	}
	if got := iv(16, 64).ShiftRight(iv(1, 2)); !got.Equal(iv(4, 32)) {
		t.Fatalf("got %s", got)
	}
	if got := iv(16, 64).ShiftRight(huge); !got.Equal(iv(0, 64)) {
		t.Fatalf("got %s", got)
	}
}

func TestShiftLeftClampedToPromotedInt(t *testing.T) {
	raw := iv(0, 300).ShiftLeft(iv(0, 40))
	limit := Int.TypeRange()
	if limit.Contains(raw) {
		t.Fatalf("raw shift result %s should exceed int", raw)
	}
	clamped := raw.Intersect(limit)
	if !limit.Contains(clamped) {
		t.Fatalf("clamped %s exceeds int range", clamped)
	}
	if !clamped.High().Equal(limit.High()) {
		t.Fatalf("clamped high should be INT_MAX, got %s", clamped)
	}
}
