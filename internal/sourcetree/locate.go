package sourcetree

import (
	"fmt"
	"sort"

	"cintfix/internal/cfa"
)

// spanBefore a 在先序遍历中先于 b：起点更早，或起点相同但更长
func spanBefore(a, b cfa.FileLocation) bool {
	if a.Offset != b.Offset {
		return a.Offset < b.Offset
	}
	return a.Length > b.Length
}

func sameSpan(a, b cfa.FileLocation) bool {
	return a.Offset == b.Offset && a.Length == b.Length
}

// Locate 把一组位置映射到节点。位置按 (偏移, -长度) 排序后作为共享工作表，
// 一次先序遍历消耗它；跨度相同的嵌套节点取最外层。
// 文件名不参与比较，同一棵树只对应一个文件。
// 找不到的位置导致 ErrNoNode，已找到的部分照常返回。
func (t *Tree) Locate(locs []cfa.FileLocation) (map[cfa.FileLocation]NodeID, error) {
	work := make([]cfa.FileLocation, 0, len(locs))
	seen := make(map[cfa.FileLocation]bool, len(locs))
	for _, l := range locs {
		if !seen[l] {
			seen[l] = true
			work = append(work, l)
		}
	}
	sort.SliceStable(work, func(i, j int) bool { return spanBefore(work[i], work[j]) })

	found := make(map[cfa.FileLocation]NodeID, len(work))
	var missing []cfa.FileLocation
	var walk func(id NodeID)
	walk = func(id NodeID) {
		n := &t.nodes[id]
		for len(work) > 0 && spanBefore(work[0], n.Loc) {
			missing = append(missing, work[0])
			work = work[1:]
		}
		for len(work) > 0 && sameSpan(work[0], n.Loc) {
			found[work[0]] = id
			work = work[1:]
		}
		for _, c := range n.Children {
			if len(work) == 0 {
				return
			}
			if work[0].Offset >= t.nodes[c].Loc.End() {
				continue
			}
			walk(c)
		}
	}
	walk(t.Root)
	missing = append(missing, work...)

	if len(missing) > 0 {
		return found, fmt.Errorf("%w: %s (%d unresolved)", ErrNoNode, missing[0], len(missing))
	}
	return found, nil
}

// LocateOne 单个位置
func (t *Tree) LocateOne(loc cfa.FileLocation) (NodeID, error) {
	found, err := t.Locate([]cfa.FileLocation{loc})
	if err != nil {
		return NoNode, err
	}
	return found[loc], nil
}
