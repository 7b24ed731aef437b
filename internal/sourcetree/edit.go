package sourcetree

import (
	"fmt"
	"sort"
)

// EditKind 编辑操作种类，编辑只修改节点自己的模板片段，从不触碰子节点
type EditKind uint8

const (
	// ReplaceFragment 整体替换片段
	ReplaceFragment EditKind = iota
	// InsertBefore 插在片段开头
	InsertBefore
	// InsertAfter 追加到片段末尾
	InsertAfter
)

func (k EditKind) String() string {
	switch k {
	case ReplaceFragment:
		return "replace"
	case InsertBefore:
		return "insert-before"
	case InsertAfter:
		return "insert-after"
	}
	return fmt.Sprintf("edit(%d)", int(k))
}

// Edit 一次片段编辑
type Edit struct {
	Kind     EditKind
	Node     NodeID
	Fragment int
	Text     string
}

func (e Edit) String() string {
	return fmt.Sprintf("%s #%d[%d] %q", e.Kind, e.Node, e.Fragment, e.Text)
}

// Replace 替换片段
func Replace(id NodeID, fragment int, text string) Edit {
	return Edit{Kind: ReplaceFragment, Node: id, Fragment: fragment, Text: text}
}

// Wrap 用 open/close 包住整个节点：第一个片段前插入 open，最后一个片段后追加 close
// 同一节点上后提交的包裹在外层
func (t *Tree) Wrap(id NodeID, open, close string) []Edit {
	n := t.Node(id)
	if n == nil {
		return nil
	}
	return []Edit{
		{Kind: InsertBefore, Node: id, Fragment: 0, Text: open},
		{Kind: InsertAfter, Node: id, Fragment: len(n.Template) - 1, Text: close},
	}
}

func (t *Tree) depth(id NodeID) int {
	d := 0
	for p := t.nodes[id].Parent; p != NoNode; p = t.nodes[p].Parent {
		d++
	}
	return d
}

// Apply 自底向上一次性应用全部编辑；同一节点上的编辑按提交顺序执行。
// 先整体校验，有任何非法编辑时树保持不变。
func (t *Tree) Apply(edits []Edit) error {
	for _, e := range edits {
		n := t.Node(e.Node)
		if n == nil {
			return fmt.Errorf("%w: %s: no such node", ErrBadEdit, e)
		}
		if e.Fragment < 0 || e.Fragment >= len(n.Template) {
			return fmt.Errorf("%w: %s: node has %d fragments", ErrBadEdit, e, len(n.Template))
		}
		if e.Kind > InsertAfter {
			return fmt.Errorf("%w: %s", ErrBadEdit, e)
		}
	}

	ordered := make([]Edit, len(edits))
	copy(ordered, edits)
	depths := make(map[NodeID]int)
	for _, e := range ordered {
		if _, ok := depths[e.Node]; !ok {
			depths[e.Node] = t.depth(e.Node)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return depths[ordered[i].Node] > depths[ordered[j].Node]
	})

	for _, e := range ordered {
		frag := &t.nodes[e.Node].Template[e.Fragment]
		switch e.Kind {
		case ReplaceFragment:
			*frag = e.Text
		case InsertBefore:
			*frag = e.Text + *frag
		case InsertAfter:
			*frag += e.Text
		}
	}
	return nil
}
