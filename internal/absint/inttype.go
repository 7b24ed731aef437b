package absint

import (
	"fmt"
	"strings"
)

// Kind 整数种类
type Kind uint8

const (
	KindChar Kind = iota + 1
	KindShort
	KindInt
	KindLong
	KindLongLong
	KindOverlong   // 没有原生宽度能容纳
	KindIndex      // 数组下标域 [-SIZE_MAX, SIZE_MAX]
	KindShiftLeft  // 左移检查标记
	KindShiftRight // 右移检查标记
	KindOther      // 非整数
)

// IntType 整数类型格中的元素
type IntType struct {
	Kind   Kind
	Signed bool
}

var (
	Char      = IntType{KindChar, true}
	UChar     = IntType{KindChar, false}
	Short     = IntType{KindShort, true}
	UShort    = IntType{KindShort, false}
	Int       = IntType{KindInt, true}
	UInt      = IntType{KindInt, false}
	Long      = IntType{KindLong, true}
	ULong     = IntType{KindLong, false}
	LongLong  = IntType{KindLongLong, true}
	ULongLong = IntType{KindLongLong, false}
	Overlong  = IntType{KindOverlong, true}
	UOverlong = IntType{KindOverlong, false}
	Index     = IntType{KindIndex, false}
	ShiftL    = IntType{KindShiftLeft, false}
	ShiftR    = IntType{KindShiftRight, false}
	Unknown   = IntType{KindOther, true}

	// SizeT size_t 在 LP64 下是 unsigned long
	SizeT = ULong
)

// mergeLadder 合并候选，按表示能力递增排列
// 有负数的并集只会落在有符号链上，非负并集的最小容器总是同档的无符号类型
var mergeLadder = []IntType{
	Char, UChar, Short, UShort, Int, UInt,
	Long, ULong, LongLong, ULongLong,
	Index, Overlong, UOverlong,
}

var typeRanges = map[IntType]Interval{}

func init() {
	for _, t := range mergeLadder[:10] {
		typeRanges[t] = rangeOfBits(bitsOf(t.Kind), t.Signed)
	}
	sizeMax := NewExtIntBig(SizeMax)
	typeRanges[Index] = NewInterval(sizeMax.Neg(), sizeMax)
}

// FromRange 能容纳该区间的最小原生类型；装不下时为 overlong
func FromRange(r Interval) IntType {
	if r.IsEmpty() {
		return Char
	}
	if r.Low().Sign() >= 0 {
		for _, t := range []IntType{UChar, UShort, UInt, ULong, ULongLong} {
			if t.TypeRange().Contains(r) {
				return t
			}
		}
		return Overlong
	}
	for _, t := range []IntType{Char, Short, Int, Long, LongLong} {
		if t.TypeRange().Contains(r) {
			return t
		}
	}
	return Overlong
}

// TypeRange 该类型可表示的值域；overlong、非整数和位移标记都是 Unbounded
func (t IntType) TypeRange() Interval {
	if r, ok := typeRanges[t]; ok {
		return r
	}
	if t.Kind == KindIndex {
		return typeRanges[Index]
	}
	return Unbounded
}

// IsNative char 到 long long 之间的原生整数
func (t IntType) IsNative() bool {
	return t.Kind >= KindChar && t.Kind <= KindLongLong
}

func (t IntType) IsOverlong() bool { return t.Kind == KindOverlong }
func (t IntType) IsOther() bool    { return t.Kind == KindOther }

// IsMarker 位移检查标记
func (t IntType) IsMarker() bool {
	return t.Kind == KindShiftLeft || t.Kind == KindShiftRight
}

// AsUnsigned 返回同种类的无符号版本
func (t IntType) AsUnsigned() IntType {
	return IntType{Kind: t.Kind, Signed: false}
}

// PromoteInt 整数提升：低于 int 的种类提升为 int
func (t IntType) PromoteInt() IntType {
	if t.Kind == KindChar || t.Kind == KindShort {
		return Int
	}
	return t
}

// ContainsType t 的值域包含 o 的值域
func (t IntType) ContainsType(o IntType) bool {
	return t.TypeRange().Contains(o.TypeRange())
}

// mergeRank 用于在值域相同的候选之间取舍（long 与 long long）
func mergeRank(k Kind) int {
	switch k {
	case KindChar, KindShort, KindInt, KindLong, KindLongLong:
		return int(k)
	case KindIndex:
		return 6
	case KindOverlong:
		return 7
	}
	return 0
}

// Merge 两个类型的上确界：阶不低于两者、且值域同时包含两者的第一个候选
// 满足交换律、结合律，转换到结果类型不会改变任何一方的值
// 两个原生类型合并总是原生类型：没有原生类型能同时容纳时取 unsigned long long，
// 与 C 的通常算术转换一致（long 与 unsigned long 合并为 unsigned long long）
// 【注意】int 与 unsigned int 合并为 long，char 与 unsigned char 合并为 short
func (t IntType) Merge(o IntType) IntType {
	if t == o {
		return t
	}
	if t.IsOther() || o.IsOther() || t.IsMarker() || o.IsMarker() {
		return Unknown
	}
	want := t.TypeRange().Union(o.TypeRange())
	rank := mergeRank(t.Kind)
	if r := mergeRank(o.Kind); r > rank {
		rank = r
	}
	candidates := mergeLadder
	if t.IsNative() && o.IsNative() {
		candidates = mergeLadder[:10]
	}
	for _, c := range candidates {
		if mergeRank(c.Kind) < rank || !c.TypeRange().Contains(want) {
			continue
		}
		if c == Overlong && (t == UOverlong || o == UOverlong) {
			return UOverlong
		}
		return c
	}
	if t.IsNative() && o.IsNative() {
		return ULongLong
	}
	return UOverlong
}

// String C 语言类型拼写，非原生类型返回空串
func (t IntType) String() string {
	var base string
	switch t.Kind {
	case KindChar:
		base = "char"
	case KindShort:
		base = "short"
	case KindInt:
		base = "int"
	case KindLong:
		base = "long"
	case KindLongLong:
		base = "long long"
	default:
		return ""
	}
	if !t.Signed {
		return "unsigned " + base
	}
	return base
}

var nativeCodes = map[Kind]string{
	KindChar:     "CHAR",
	KindShort:    "SHORT",
	KindInt:      "INT",
	KindLong:     "LINT",
	KindLongLong: "LLINT",
}

// Code 在 JSON 产物和 SMT 编码中使用的短码
func (t IntType) Code() string {
	switch t.Kind {
	case KindChar, KindShort, KindInt, KindLong, KindLongLong:
		if t.Signed {
			return nativeCodes[t.Kind]
		}
		return "U" + nativeCodes[t.Kind]
	case KindOverlong:
		return "OVERLONG"
	case KindIndex:
		return "INDEX"
	case KindShiftLeft:
		return "SHIFT_LEFT"
	case KindShiftRight:
		return "SHIFT_RIGHT"
	}
	return "OTHER"
}

// ParseCode Code 的逆操作，未知短码返回 Unknown
func ParseCode(code string) IntType {
	switch strings.TrimSpace(code) {
	case "CHAR":
		return Char
	case "UCHAR":
		return UChar
	case "SHORT":
		return Short
	case "USHORT":
		return UShort
	case "INT":
		return Int
	case "UINT":
		return UInt
	case "LINT":
		return Long
	case "ULINT":
		return ULong
	case "LLINT":
		return LongLong
	case "ULLINT":
		return ULongLong
	case "OVERLONG":
		return Overlong
	case "INDEX":
		return Index
	case "SHIFT_LEFT":
		return ShiftL
	case "SHIFT_RIGHT":
		return ShiftR
	}
	return Unknown
}

// SolverSymbols 求解器数据类型中的全部符号，顺序固定
var SolverSymbols = []IntType{
	Char, UChar, Short, UShort, Int, UInt, Long, ULong, LongLong, ULongLong, Overlong,
}

// ParseSolverSymbol 解析求解器模型中的类型符号
func ParseSolverSymbol(sym string) (IntType, error) {
	t := ParseCode(sym)
	if t.IsOther() || t.Kind == KindIndex || t.IsMarker() {
		return Unknown, fmt.Errorf("unknown type symbol %q", sym)
	}
	return t, nil
}
