package absint

import (
	"errors"
	"fmt"
	"math"
	"math/big"
)

// ErrNaNCompare NaN 参与比较时返回
var ErrNaNCompare = errors.New("absint: NaN is not comparable")

type status uint8

const (
	finite status = iota
	negInf
	posInf
	nan
)

// maxShiftBits 超过该位移量时直接视为溢出到无穷
const maxShiftBits = 1 << 16

// ExtInt 扩展整数：任意精度整数加上 -inf / +inf / NaN
// 值语义，所有运算都返回新值，零值表示 0
type ExtInt struct {
	st  status
	val *big.Int
}

var (
	bigZero = big.NewInt(0)
	bigOne  = big.NewInt(1)
)

// NewExtInt 由 int64 构造
func NewExtInt(v int64) ExtInt {
	return ExtInt{val: big.NewInt(v)}
}

// NewExtIntBig 由 big.Int 构造（复制一份）
func NewExtIntBig(v *big.Int) ExtInt {
	if v == nil {
		return ExtInt{}
	}
	return ExtInt{val: new(big.Int).Set(v)}
}

// NewExtIntUint64 由 uint64 构造
func NewExtIntUint64(v uint64) ExtInt {
	return ExtInt{val: new(big.Int).SetUint64(v)}
}

func PosInf() ExtInt { return ExtInt{st: posInf} }
func NegInf() ExtInt { return ExtInt{st: negInf} }
func NaN() ExtInt    { return ExtInt{st: nan} }

// ParseExtInt 解析 String() 的输出
func ParseExtInt(s string) (ExtInt, error) {
	switch s {
	case "-inf":
		return NegInf(), nil
	case "+inf":
		return PosInf(), nil
	case "NaN":
		return NaN(), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return ExtInt{}, fmt.Errorf("invalid extended integer %q", s)
	}
	return ExtInt{val: v}, nil
}

func (x ExtInt) bigVal() *big.Int {
	if x.val == nil {
		return bigZero
	}
	return x.val
}

func (x ExtInt) IsFinite() bool   { return x.st == finite }
func (x ExtInt) IsPosInf() bool   { return x.st == posInf }
func (x ExtInt) IsNegInf() bool   { return x.st == negInf }
func (x ExtInt) IsInfinite() bool { return x.st == posInf || x.st == negInf }
func (x ExtInt) IsNaN() bool      { return x.st == nan }

// Big 返回有限值的副本，非有限值返回 nil
func (x ExtInt) Big() *big.Int {
	if x.st != finite {
		return nil
	}
	return new(big.Int).Set(x.bigVal())
}

// Int 当值落在 int32 范围内时返回 (v, true)
func (x ExtInt) Int() (int, bool) {
	if x.st != finite {
		return 0, false
	}
	v := x.bigVal()
	if !v.IsInt64() {
		return 0, false
	}
	i := v.Int64()
	if i < math.MinInt32 || i > math.MaxInt32 {
		return 0, false
	}
	return int(i), true
}

// Sign 返回 -1 / 0 / 1，无穷按方向取符号
// NaN 没有符号，调用方必须先排除
func (x ExtInt) Sign() int {
	switch x.st {
	case finite:
		return x.bigVal().Sign()
	case posInf:
		return 1
	case negInf:
		return -1
	}
	panic("absint: sign of NaN")
}

// Cmp 全序比较，NaN 参与时返回 ErrNaNCompare
func (x ExtInt) Cmp(y ExtInt) (int, error) {
	if x.st == nan || y.st == nan {
		return 0, ErrNaNCompare
	}
	if x.st == y.st {
		if x.st == finite {
			return x.bigVal().Cmp(y.bigVal()), nil
		}
		return 0, nil
	}
	if x.st == negInf || y.st == posInf {
		return -1, nil
	}
	return 1, nil
}

// cmp 用于区间内部：区间边界不会出现 NaN
func (x ExtInt) cmp(y ExtInt) int {
	c, err := x.Cmp(y)
	if err != nil {
		panic(err)
	}
	return c
}

// Equal NaN 与自身相等，用于去重而非排序
func (x ExtInt) Equal(y ExtInt) bool {
	if x.st != y.st {
		return false
	}
	if x.st == finite {
		return x.bigVal().Cmp(y.bigVal()) == 0
	}
	return true
}

func (x ExtInt) Add(y ExtInt) ExtInt {
	switch {
	case x.st == nan || y.st == nan:
		return NaN()
	case x.st == finite && y.st == finite:
		return ExtInt{val: new(big.Int).Add(x.bigVal(), y.bigVal())}
	case x.st == finite:
		return y
	case y.st == finite:
		return x
	case x.st == y.st:
		return x
	}
	// -inf + +inf
	return NaN()
}

func (x ExtInt) Sub(y ExtInt) ExtInt {
	return x.Add(y.Neg())
}

func (x ExtInt) Neg() ExtInt {
	switch x.st {
	case finite:
		return ExtInt{val: new(big.Int).Neg(x.bigVal())}
	case posInf:
		return NegInf()
	case negInf:
		return PosInf()
	}
	return NaN()
}

// Abs 无穷的绝对值为 +inf
func (x ExtInt) Abs() ExtInt {
	switch x.st {
	case finite:
		return ExtInt{val: new(big.Int).Abs(x.bigVal())}
	case posInf, negInf:
		return PosInf()
	}
	return NaN()
}

func infOfSign(sign int) ExtInt {
	if sign < 0 {
		return NegInf()
	}
	return PosInf()
}

// Mul 0 * inf = 0，0 * NaN = 0
func (x ExtInt) Mul(y ExtInt) ExtInt {
	if x.st == finite && y.st == finite {
		return ExtInt{val: new(big.Int).Mul(x.bigVal(), y.bigVal())}
	}
	if x.st == finite && x.bigVal().Sign() == 0 || y.st == finite && y.bigVal().Sign() == 0 {
		return ExtInt{}
	}
	if x.st == nan || y.st == nan {
		return NaN()
	}
	return infOfSign(x.Sign() * y.Sign())
}

// Div 截断除法；x/0 = NaN，有限/无穷 = 0，无穷/无穷 = NaN
func (x ExtInt) Div(y ExtInt) ExtInt {
	if x.st == nan || y.st == nan {
		return NaN()
	}
	if y.st == finite && y.bigVal().Sign() == 0 {
		return NaN()
	}
	switch {
	case x.st == finite && y.st == finite:
		return ExtInt{val: new(big.Int).Quo(x.bigVal(), y.bigVal())}
	case x.st == finite:
		return ExtInt{}
	case y.st == finite:
		return infOfSign(x.Sign() * y.Sign())
	}
	return NaN()
}

// Mod 非负取模（欧几里得），有限 mod 无穷 = 自身
func (x ExtInt) Mod(y ExtInt) ExtInt {
	if x.st != finite {
		return NaN()
	}
	switch y.st {
	case finite:
		if y.bigVal().Sign() == 0 {
			return NaN()
		}
		m := new(big.Int).Abs(y.bigVal())
		return ExtInt{val: new(big.Int).Mod(x.bigVal(), m)}
	case posInf, negInf:
		return x
	}
	return NaN()
}

// Rem C 语义取余，结果符号与被除数一致
func (x ExtInt) Rem(y ExtInt) ExtInt {
	if x.st != finite {
		return NaN()
	}
	switch y.st {
	case finite:
		if y.bigVal().Sign() == 0 {
			return NaN()
		}
		return ExtInt{val: new(big.Int).Rem(x.bigVal(), y.bigVal())}
	case posInf:
		return x
	case negInf:
		return NegInf()
	}
	return NaN()
}

// Shl 左移 n 位，n 为负时右移；位移量过大时按符号溢出到无穷
func (x ExtInt) Shl(n int) ExtInt {
	if n < 0 {
		return x.Shr(-n)
	}
	if x.st != finite {
		return x
	}
	v := x.bigVal()
	if v.Sign() == 0 {
		return ExtInt{}
	}
	if n > maxShiftBits {
		return infOfSign(v.Sign())
	}
	return ExtInt{val: new(big.Int).Lsh(v, uint(n))}
}

// Shr 算术右移（向负无穷取整）
func (x ExtInt) Shr(n int) ExtInt {
	if n < 0 {
		return x.Shl(-n)
	}
	if x.st != finite {
		return x
	}
	v := x.bigVal()
	if n > maxShiftBits {
		if v.Sign() < 0 {
			return NewExtInt(-1)
		}
		return ExtInt{}
	}
	return ExtInt{val: new(big.Int).Rsh(v, uint(n))}
}

// Max NaN 让位于另一个操作数
func (x ExtInt) Max(y ExtInt) ExtInt {
	if x.st == nan {
		return y
	}
	if y.st == nan {
		return x
	}
	if x.cmp(y) >= 0 {
		return x
	}
	return y
}

func (x ExtInt) Min(y ExtInt) ExtInt {
	if x.st == nan {
		return y
	}
	if y.st == nan {
		return x
	}
	if x.cmp(y) <= 0 {
		return x
	}
	return y
}

func (x ExtInt) String() string {
	switch x.st {
	case negInf:
		return "-inf"
	case posInf:
		return "+inf"
	case nan:
		return "NaN"
	}
	return x.bigVal().String()
}
