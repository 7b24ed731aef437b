package cfa

import (
	"strings"

	"cintfix/internal/absint"
)

// TypeKind C 类型的大类
type TypeKind int

const (
	TypeVoid TypeKind = iota
	TypeInteger
	TypeFloat
	TypePointer
	TypeArray
	TypeStruct
	TypeFunction
	TypeUnknown
)

// Field 结构体成员
type Field struct {
	Name string
	Type *Type
}

// Type 规范化之后的 C 类型（typedef 已展开）
type Type struct {
	Kind TypeKind
	// Int 仅对整数类型有效
	Int absint.IntType
	// Elem 指针目标或数组元素
	Elem *Type
	// Name 浮点类型拼写、结构体标签
	Name   string
	Union  bool
	Fields []Field
	// 函数类型
	Return   *Type
	Params   []*Type
	Variadic bool
	// ArrayLen 未知时为 -1
	ArrayLen int64
}

var (
	VoidType    = &Type{Kind: TypeVoid}
	UnknownType = &Type{Kind: TypeUnknown}
	DoubleType  = &Type{Kind: TypeFloat, Name: "double"}
)

var intTypes = map[absint.IntType]*Type{}

// IntegerType 返回共享的整数类型实例
func IntegerType(t absint.IntType) *Type {
	if ty, ok := intTypes[t]; ok {
		return ty
	}
	return &Type{Kind: TypeInteger, Int: t}
}

func init() {
	for _, t := range absint.SolverSymbols[:10] {
		intTypes[t] = &Type{Kind: TypeInteger, Int: t}
	}
}

// PointerTo 构造指针类型
func PointerTo(elem *Type) *Type {
	return &Type{Kind: TypePointer, Elem: elem}
}

func (t *Type) IsInteger() bool { return t != nil && t.Kind == TypeInteger }
func (t *Type) IsPointer() bool { return t != nil && t.Kind == TypePointer }
func (t *Type) IsArray() bool   { return t != nil && t.Kind == TypeArray }
func (t *Type) IsStruct() bool  { return t != nil && t.Kind == TypeStruct }
func (t *Type) IsVoid() bool    { return t != nil && t.Kind == TypeVoid }

// IsScalar 可以参与算术或比较
func (t *Type) IsScalar() bool {
	return t != nil && (t.Kind == TypeInteger || t.Kind == TypeFloat || t.Kind == TypePointer)
}

// IntType 非整数返回 Unknown
func (t *Type) IntType() absint.IntType {
	if t.IsInteger() {
		return t.Int
	}
	return absint.Unknown
}

// RangeOf 整数类型的取值范围，其它类型 Unbounded
func (t *Type) RangeOf() absint.Interval {
	if t.IsInteger() {
		return t.Int.TypeRange()
	}
	return absint.Unbounded
}

// PointerDepth 指针层数以及最内层的基础类型
func (t *Type) PointerDepth() (int, *Type) {
	depth := 0
	for t.IsPointer() {
		depth++
		t = t.Elem
	}
	return depth, t
}

// Decay 数组退化为指针
func (t *Type) Decay() *Type {
	if t.IsArray() {
		return PointerTo(t.Elem)
	}
	return t
}

// FieldType 查找成员类型，未知成员返回 UnknownType
func (t *Type) FieldType(name string) *Type {
	if t == nil {
		return UnknownType
	}
	for _, f := range t.Fields {
		if f.Name == name {
			return f.Type
		}
	}
	return UnknownType
}

// SizeOf 以字节计的大小，未知返回 0
func (t *Type) SizeOf() int64 {
	switch t.Kind {
	case TypeInteger:
		return int64(absint.SizeOf(t.Int.Kind))
	case TypeFloat:
		if t.Name == "float" {
			return 4
		}
		if strings.Contains(t.Name, "long") {
			return 16
		}
		return 8
	case TypePointer:
		return absint.PointerSize
	case TypeArray:
		if t.ArrayLen < 0 {
			return 0
		}
		return t.ArrayLen * t.Elem.SizeOf()
	case TypeStruct:
		var total int64
		for _, f := range t.Fields {
			s := f.Type.SizeOf()
			if t.Union {
				if s > total {
					total = s
				}
				continue
			}
			total += s
		}
		return total
	}
	return 0
}

// String C 拼写，用于日志和生成类型转换
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case TypeVoid:
		return "void"
	case TypeInteger:
		return t.Int.String()
	case TypeFloat:
		return t.Name
	case TypePointer:
		return t.Elem.String() + " *"
	case TypeArray:
		return t.Elem.String() + " []"
	case TypeStruct:
		if t.Union {
			return "union " + t.Name
		}
		return "struct " + t.Name
	case TypeFunction:
		return t.Return.String() + " ()"
	}
	return "<unknown>"
}
