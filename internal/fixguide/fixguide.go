package fixguide

import (
	"fmt"

	"cintfix/internal/absint"
)

// Method 分析阶段给出的修复方式
type Method int

const (
	MethodCheck Method = iota
	MethodConv
)

func (m Method) String() string {
	if m == MethodConv {
		return "conv"
	}
	return "check"
}

// ParseMethod 解析 JSON 中的 method 字段
func ParseMethod(s string) (Method, error) {
	switch s {
	case "check":
		return MethodCheck, nil
	case "conv":
		return MethodConv, nil
	}
	return 0, fmt.Errorf("unknown fix method %q", s)
}

// 特殊的引用层级
const (
	LevelNone       = -1
	LevelShiftLeft  = -10
	LevelShiftRight = -11
)

// Guide 分析阶段在某个源码位置产生的修复指引
type Guide struct {
	Pointer  bool
	Method   Method
	Type     absint.IntType
	RefLevel int
	Target   string
}

// NewCheck 整数运行时检查
func NewCheck(t absint.IntType) Guide {
	return Guide{Method: MethodCheck, Type: t, RefLevel: LevelNone}
}

// NewConv 整数显式转换
func NewConv(t absint.IntType) Guide {
	return Guide{Method: MethodConv, Type: t, RefLevel: LevelNone}
}

// NewShiftCheck 位移检查，类型为左操作数提升后的类型
func NewShiftCheck(t absint.IntType, left bool) Guide {
	level := LevelShiftRight
	if left {
		level = LevelShiftLeft
	}
	return Guide{Method: MethodCheck, Type: t, RefLevel: level}
}

// NewPointerConv 指针显式转换，level 为解引用层数
func NewPointerConv(t absint.IntType, level int, target string) Guide {
	return Guide{Pointer: true, Method: MethodConv, Type: t, RefLevel: level, Target: target}
}

// KindString JSON 中的 kind 字段
func (g Guide) KindString() string {
	if g.Pointer {
		return "ptr"
	}
	return "int"
}

// TargetName 只有指针指引且层级有效时才有目标
func (g Guide) TargetName() (string, bool) {
	if !g.Pointer || g.RefLevel == LevelNone || g.Target == "" {
		return "", false
	}
	return g.Target, true
}

// Merge 同一位置上的两条指引合并；不兼容时保留先到的那条
func (g Guide) Merge(o Guide) Guide {
	if g.Pointer != o.Pointer || g.Method != o.Method || g.RefLevel != o.RefLevel {
		return g
	}
	if g.Target != o.Target {
		return g
	}
	g.Type = g.Type.Merge(o.Type)
	return g
}

// Solution 把指引转成修复方案
func (g Guide) Solution() Solution {
	mode := ModeSanityCheck
	if g.Method == MethodConv {
		mode = ModeConversion
	}
	return Solution{
		Int:      !g.Pointer,
		Pointer:  g.Pointer,
		Mode:     mode,
		Type:     g.Type,
		RefLevel: g.RefLevel,
		Target:   g.Target,
	}
}

func (g Guide) String() string {
	return fmt.Sprintf("%s/%s %s level=%d target=%q", g.KindString(), g.Method, g.Type.Code(), g.RefLevel, g.Target)
}
