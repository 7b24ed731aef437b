package rewrite

import (
	"log"
	"sort"

	"cintfix/internal/artifact"
	"cintfix/internal/cfa"
	"cintfix/internal/fixguide"
)

// Plans 把分析指引和求解得到的变量类型合并成每个位置的改写计划
// 类型没有变化的变量不生成说明符修改；name2loc 中没有的名字（返回值、临时变量）跳过
func (f *Fixer) Plans(name2loc map[string]cfa.FileLocation, guides []artifact.LocatedGuide) map[cfa.FileLocation]fixguide.Plan {
	sols := make(map[cfa.FileLocation][]fixguide.Solution)
	for _, lg := range guides {
		sols[lg.Loc] = append(sols[lg.Loc], lg.Guide.Solution())
	}

	names := make([]string, 0, len(f.types))
	for name := range f.types {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t := f.types[name]
		loc, ok := name2loc[name]
		if !ok {
			if f.verbose {
				log.Printf("【修复】没有声明位置的变量 %s，跳过", name)
			}
			continue
		}
		if old, ok := f.declaredType(name, loc); ok && old == t {
			continue
		}
		if !t.IsNative() {
			log.Printf("【修复】变量 %s 的求解类型 %s 不是原生类型，跳过", name, t.Code())
			continue
		}
		sols[loc] = append(sols[loc], fixguide.NewSpecifier(t))
	}

	plans := make(map[cfa.FileLocation]fixguide.Plan, len(sols))
	for loc, list := range sols {
		if p := fixguide.MergeAt(loc.String(), list); !p.Empty() {
			plans[loc] = p
		}
	}
	return plans
}
