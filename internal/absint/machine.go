package absint

import "math/big"

// 目标机器模型：LP64（x86_64 Linux）
const (
	CharBits     = 8
	ShortBits    = 16
	IntBits      = 32
	LongBits     = 64
	LongLongBits = 64

	// LongestIntSize 最宽原生整数的字节数
	LongestIntSize = 8
	// PointerSize 指针字节数
	PointerSize = 8
)

// SizeMax size_t 的最大值
var SizeMax = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), LongBits), big.NewInt(1))

func bitsOf(k Kind) int {
	switch k {
	case KindChar:
		return CharBits
	case KindShort:
		return ShortBits
	case KindInt:
		return IntBits
	case KindLong:
		return LongBits
	case KindLongLong:
		return LongLongBits
	}
	return 0
}

// SizeOf 整数种类的字节数，非原生种类返回 0
func SizeOf(k Kind) int {
	return bitsOf(k) / 8
}

// rangeOfBits 计算给定位宽的取值区间
func rangeOfBits(bits int, signed bool) Interval {
	one := big.NewInt(1)
	if signed {
		half := new(big.Int).Lsh(one, uint(bits-1))
		low := new(big.Int).Neg(half)
		high := new(big.Int).Sub(half, one)
		return NewInterval(NewExtIntBig(low), NewExtIntBig(high))
	}
	high := new(big.Int).Sub(new(big.Int).Lsh(one, uint(bits)), one)
	return NewInterval(NewExtInt(0), NewExtIntBig(high))
}
