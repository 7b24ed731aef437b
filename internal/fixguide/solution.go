package fixguide

import (
	"fmt"
	"log"

	"cintfix/internal/absint"
)

// Mode 修复方案的种类
type Mode int

const (
	ModeSpecifier   Mode = 1
	ModeSanityCheck Mode = 2
	ModeConversion  Mode = 3
)

func (m Mode) String() string {
	switch m {
	case ModeSpecifier:
		return "specifier"
	case ModeSanityCheck:
		return "check"
	case ModeConversion:
		return "conversion"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Solution 修复阶段针对一个位置的具体改写
type Solution struct {
	Int      bool
	Pointer  bool
	Mode     Mode
	Type     absint.IntType
	RefLevel int
	Target   string
}

// NewSpecifier 来自求解结果的类型说明符修改
func NewSpecifier(t absint.IntType) Solution {
	return Solution{Int: true, Mode: ModeSpecifier, Type: t, RefLevel: LevelNone}
}

// TargetName 引用层级不为正时没有目标
func (s Solution) TargetName() (string, bool) {
	if s.RefLevel <= 0 || s.Target == "" {
		return "", false
	}
	return s.Target, true
}

// Merge 同模式同层级的方案合并类型；目标不一致时拒绝合并
func (s Solution) Merge(o Solution) (Solution, bool) {
	if s.Int != o.Int || s.Pointer != o.Pointer || s.Mode != o.Mode || s.RefLevel != o.RefLevel {
		return s, false
	}
	st, sok := s.TargetName()
	ot, ook := o.TargetName()
	if sok != ook || st != ot {
		return s, false
	}
	s.Type = s.Type.Merge(o.Type)
	return s, true
}

func (s Solution) String() string {
	return fmt.Sprintf("%s %s level=%d", s.Mode, s.Type.Code(), s.RefLevel)
}

// Plan 一个位置上最终要执行的改写
// 说明符和检查可以共存，转换与说明符合并为说明符
type Plan struct {
	Specifier  *Solution
	Check      *Solution
	Conversion *Solution
}

// Empty 没有任何改写
func (p Plan) Empty() bool {
	return p.Specifier == nil && p.Check == nil && p.Conversion == nil
}

// Count 改写条数
func (p Plan) Count() int {
	n := 0
	for _, s := range []*Solution{p.Specifier, p.Check, p.Conversion} {
		if s != nil {
			n++
		}
	}
	return n
}

func mergeList(where string, sols []Solution) *Solution {
	if len(sols) == 0 {
		return nil
	}
	merged := sols[0]
	for _, s := range sols[1:] {
		next, ok := merged.Merge(s)
		if !ok {
			log.Printf("【合并】%s: 丢弃无法合并的方案 %s，保留 %s", where, s, merged)
			continue
		}
		merged = next
	}
	return &merged
}

// MergeAt 合并同一位置上的所有方案
// 多个检查只保留第一个
func MergeAt(where string, sols []Solution) Plan {
	var specs, checks, convs []Solution
	for _, s := range sols {
		switch s.Mode {
		case ModeSpecifier:
			specs = append(specs, s)
		case ModeSanityCheck:
			checks = append(checks, s)
		case ModeConversion:
			convs = append(convs, s)
		}
	}

	var plan Plan
	if len(checks) > 0 {
		first := checks[0]
		for _, c := range checks[1:] {
			if c != first {
				log.Printf("【合并】%s: 同一位置出现多个检查，保留第一个 %s，丢弃 %s", where, first, c)
			}
		}
		plan.Check = &first
	}

	spec := mergeList(where, specs)
	conv := mergeList(where, convs)
	switch {
	case spec != nil && conv != nil:
		// 合并结果必须仍是原生类型，否则说明符保持不变
		newType := conv.Type.Merge(spec.Type)
		if newType.IsNative() {
			spec.Type = newType
		}
		plan.Specifier = spec
	case spec != nil:
		plan.Specifier = spec
	default:
		// 没有原生类型能同时容纳各方的值时不做转换，保持原表达式
		if conv != nil && !conv.Type.IsNative() {
			log.Printf("【合并】%s: 转换类型 %s 不是原生整数类型，不插入转换", where, conv.Type.Code())
			conv = nil
		}
		plan.Conversion = conv
	}
	return plan
}
