package analysis

import (
	"sort"
	"strings"

	"cintfix/internal/absint"
)

// State 抽象状态：限定名到区间、到类型
// 缺失的键即 Unbounded / Unknown，区间表中从不显式存 Unbounded
// State 不可变，所有修改都返回新值（写时复制）
type State struct {
	ranges map[string]absint.Interval
	types  map[string]absint.IntType
}

// NewState 空状态
func NewState() *State {
	return &State{
		ranges: make(map[string]absint.Interval),
		types:  make(map[string]absint.IntType),
	}
}

func (s *State) clone() *State {
	n := &State{
		ranges: make(map[string]absint.Interval, len(s.ranges)),
		types:  make(map[string]absint.IntType, len(s.types)),
	}
	for k, v := range s.ranges {
		n.ranges[k] = v
	}
	for k, v := range s.types {
		n.types[k] = v
	}
	return n
}

// Range 未跟踪的变量返回 Unbounded
func (s *State) Range(name string) absint.Interval {
	if r, ok := s.ranges[name]; ok {
		return r
	}
	return absint.Unbounded
}

// Type 未记录的变量返回 Unknown, false
func (s *State) Type(name string) (absint.IntType, bool) {
	t, ok := s.types[name]
	if !ok {
		return absint.Unknown, false
	}
	return t, true
}

// Contains 是否跟踪了该变量的区间
func (s *State) Contains(name string) bool {
	_, ok := s.ranges[name]
	return ok
}

// Len 跟踪的变量个数
func (s *State) Len() int { return len(s.ranges) }

// Names 按字典序返回跟踪的变量
func (s *State) Names() []string {
	names := make([]string, 0, len(s.ranges))
	for n := range s.ranges {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// WithRange 设置变量的区间和类型
// 区间为 Unbounded 时删除区间，只保留类型
func (s *State) WithRange(name string, r absint.Interval, t absint.IntType) *State {
	old, has := s.ranges[name]
	oldType, hasType := s.types[name]
	if r.IsUnbounded() {
		if !has && hasType && oldType == t {
			return s
		}
		n := s.clone()
		delete(n.ranges, name)
		n.types[name] = t
		return n
	}
	if has && old.Equal(r) && hasType && oldType == t {
		return s
	}
	n := s.clone()
	n.ranges[name] = r
	n.types[name] = t
	return n
}

// Without 删除变量
func (s *State) Without(name string) *State {
	_, has := s.ranges[name]
	_, hasType := s.types[name]
	if !has && !hasType {
		return s
	}
	n := s.clone()
	delete(n.ranges, name)
	delete(n.types, name)
	return n
}

// DropFrame 函数退出时删除其全部局部变量
func (s *State) DropFrame(function string) *State {
	prefix := function + "::"
	var n *State
	for name := range s.types {
		if strings.HasPrefix(name, prefix) {
			if n == nil {
				n = s.clone()
			}
			delete(n.ranges, name)
			delete(n.types, name)
		}
	}
	for name := range s.ranges {
		if strings.HasPrefix(name, prefix) {
			if n == nil {
				n = s.clone()
			}
			delete(n.ranges, name)
		}
	}
	if n == nil {
		return s
	}
	return n
}

// Join 两个状态的上确界
// 只在两边都跟踪的变量取区间并集，只在一边出现的变量视为 Unbounded 而丢弃
func (s *State) Join(o *State) *State {
	n := NewState()
	for name, r := range o.ranges {
		mine, ok := s.ranges[name]
		if !ok {
			continue
		}
		if u := mine.Union(r); !u.IsUnbounded() {
			n.ranges[name] = u
		}
	}
	for name, t := range o.types {
		if mine, ok := s.types[name]; ok {
			n.types[name] = mine.Merge(t)
			continue
		}
		n.types[name] = t
	}
	for name, t := range s.types {
		if _, ok := n.types[name]; !ok {
			n.types[name] = t
		}
	}
	return n
}

// IsLessOrEqual s ⊑ o：o 跟踪的每个变量 s 也跟踪，且区间被 o 包含
func (s *State) IsLessOrEqual(o *State) bool {
	if len(s.ranges) < len(o.ranges) {
		return false
	}
	for name, r := range o.ranges {
		mine, ok := s.ranges[name]
		if !ok || !r.Contains(mine) {
			return false
		}
	}
	return true
}

// Equal 区间和类型都相同
func (s *State) Equal(o *State) bool {
	if len(s.ranges) != len(o.ranges) || len(s.types) != len(o.types) {
		return false
	}
	for name, r := range s.ranges {
		if or, ok := o.ranges[name]; !ok || !or.Equal(r) {
			return false
		}
	}
	for name, t := range s.types {
		if ot, ok := o.types[name]; !ok || ot != t {
			return false
		}
	}
	return true
}

// RebuildAfterCall 由调用点状态和被调函数出口状态（s）重建调用者状态
// 调用者局部变量取调用点状态，全局变量和返回值变量取出口状态
func (s *State) RebuildAfterCall(callState *State, retVar string) *State {
	n := callState.clone()
	for name := range callState.ranges {
		if !strings.Contains(name, "::") {
			delete(n.ranges, name)
		}
	}
	for name, r := range s.ranges {
		if !strings.Contains(name, "::") || (retVar != "" && name == retVar) {
			n.ranges[name] = r
			if t, ok := s.types[name]; ok {
				n.types[name] = t
			}
		}
	}
	return n
}

func (s *State) String() string {
	var b strings.Builder
	b.WriteString("{")
	for i, name := range s.Names() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(name)
		b.WriteString("=")
		b.WriteString(s.ranges[name].String())
		if t, ok := s.types[name]; ok {
			b.WriteString(":")
			b.WriteString(t.Code())
		}
	}
	b.WriteString("}")
	return b.String()
}
