package report

import (
	"sort"
	"time"

	"cintfix/internal/fixguide"
	"cintfix/internal/rewrite"
)

// 工具信息
const (
	ToolName        = "cintfix"
	ToolVersion     = "0.1.0"
	ToolDescription = "C integer overflow fixer"
)

// Stage 处理阶段
type Stage string

const (
	StageAnalyze Stage = "analyze"
	StageFix     Stage = "fix"
	StageRun     Stage = "run"
)

// UnitResult 一个翻译单元的处理结果
type UnitResult struct {
	File    string
	Stage   Stage
	MetaDir string
	// Output 补丁文件，只有修复成功时才有
	Output string
	// Cached 分析结果来自 analysis.msgpack
	Cached bool

	Constraints int
	Variables   int
	Guides      int

	// Solved 求解器给出类型的变量数
	Solved int
	// Objective 求解器报告的惩罚值，没有求解时为 -1
	Objective int

	Changes   []rewrite.Change
	Locations int

	Duration time.Duration
	Err      error
}

// Failed 是否中途失败
func (u *UnitResult) Failed() bool { return u.Err != nil }

// RunResult 一次运行的全部结果
type RunResult struct {
	Units    []UnitResult
	Duration time.Duration
	Workers  int
}

// Failed 失败的翻译单元数
func (r *RunResult) Failed() int {
	n := 0
	for i := range r.Units {
		if r.Units[i].Failed() {
			n++
		}
	}
	return n
}

// Locations 全部改写位置数
func (r *RunResult) Locations() int {
	n := 0
	for i := range r.Units {
		n += r.Units[i].Locations
	}
	return n
}

// ByMode 按改写种类计数
func (r *RunResult) ByMode() map[fixguide.Mode]int {
	out := make(map[fixguide.Mode]int)
	for i := range r.Units {
		for _, c := range r.Units[i].Changes {
			out[c.Mode]++
		}
	}
	return out
}

// Sort 按文件名排序，使输出稳定
func (r *RunResult) Sort() {
	sort.SliceStable(r.Units, func(i, j int) bool {
		return r.Units[i].File < r.Units[j].File
	})
}

// modes 输出时的固定顺序
var modes = []fixguide.Mode{fixguide.ModeSpecifier, fixguide.ModeSanityCheck, fixguide.ModeConversion}
