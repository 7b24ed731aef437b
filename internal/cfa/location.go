package cfa

import (
	"fmt"
	"sort"
)

// FileLocation 源码位置：行号从 1 开始，Offset/Length 以字节计
// 可直接作为 map 键使用
type FileLocation struct {
	File      string `json:"filename" msgpack:"file"`
	StartLine int    `json:"startline" msgpack:"start"`
	EndLine   int    `json:"endline" msgpack:"end"`
	Offset    int    `json:"offset" msgpack:"off"`
	Length    int    `json:"length" msgpack:"len"`
}

// DummyLocation 合成节点使用的位置，不对应任何源码
var DummyLocation = FileLocation{}

// IsDummy 合成位置不能生成修复指令
func (l FileLocation) IsDummy() bool {
	return l.Length == 0 && l.StartLine == 0
}

// End 结束偏移（不含）
func (l FileLocation) End() int {
	return l.Offset + l.Length
}

// Encloses l 的字节区间覆盖 o
func (l FileLocation) Encloses(o FileLocation) bool {
	return l.Offset <= o.Offset && o.End() <= l.End()
}

// Compare 按 (起始行, 偏移, -长度) 排序，外层节点排在内层之前
func (l FileLocation) Compare(o FileLocation) int {
	switch {
	case l.StartLine != o.StartLine:
		return cmpInt(l.StartLine, o.StartLine)
	case l.Offset != o.Offset:
		return cmpInt(l.Offset, o.Offset)
	case l.Length != o.Length:
		return cmpInt(o.Length, l.Length)
	}
	return 0
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// SortLocations 原地排序
func SortLocations(locs []FileLocation) {
	sort.SliceStable(locs, func(i, j int) bool {
		if c := locs[i].Compare(locs[j]); c != 0 {
			return c < 0
		}
		return locs[i].File < locs[j].File
	})
}

func (l FileLocation) String() string {
	if l.IsDummy() {
		return "<none>"
	}
	return fmt.Sprintf("%s:%d[%d+%d]", l.File, l.StartLine, l.Offset, l.Length)
}
