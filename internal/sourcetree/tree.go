package sourcetree

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"fortio.org/safecast"
	sitter "github.com/smacker/go-tree-sitter"

	"cintfix/internal/cfa"
	"cintfix/internal/frontend"
)

// NodeID 节点在 arena 中的下标
type NodeID int32

// NoNode 不存在的节点
const NoNode NodeID = -1

var (
	// ErrNoNode 位置在语法树中找不到对应节点
	ErrNoNode = errors.New("sourcetree: no node at location")
	// ErrBadEdit 编辑指向不存在的节点或片段
	ErrBadEdit = errors.New("sourcetree: invalid edit")
)

// leafKinds 这些节点的内部结构不参与改写，整体作为叶子
var leafKinds = map[string]bool{
	"sized_type_specifier": true,
	"string_literal":       true,
	"char_literal":         true,
	"system_lib_string":    true,
	"concatenated_string":  true,
}

// Node 可编辑的语法树节点
// Template 与 Children 交错拼接即为节点覆盖的源码：
// Template[0] Children[0] Template[1] ... Children[n-1] Template[n]
type Node struct {
	Kind     string
	Field    string
	Loc      cfa.FileLocation
	Parent   NodeID
	Children []NodeID
	Template []string
}

// Tree 一个文件的可编辑语法树，节点存放在 arena 中
type Tree struct {
	File  string
	Root  NodeID
	nodes []Node
	// 根节点之外的首尾空白
	prefix, suffix string
}

// Parse 解析源码并构造可编辑语法树
func Parse(ctx context.Context, path string, source []byte) (*Tree, error) {
	unit, err := frontend.Parse(ctx, path, source)
	if err != nil {
		return nil, err
	}
	defer unit.Close()
	return FromUnit(unit), nil
}

// FromUnit 由已解析的翻译单元构造
func FromUnit(unit *frontend.Unit) *Tree {
	t := &Tree{File: unit.Path}
	root := unit.Root
	start, end := toInt(root.StartByte()), toInt(root.EndByte())
	t.prefix = string(unit.Source[:start])
	t.suffix = string(unit.Source[end:])
	t.Root = t.build(unit, root, NoNode, "")
	return t
}

func (t *Tree) build(unit *frontend.Unit, n *sitter.Node, parent NodeID, field string) NodeID {
	id := NodeID(len(t.nodes))
	loc := frontend.Location(unit.Path, n)
	t.nodes = append(t.nodes, Node{Kind: n.Type(), Field: field, Loc: loc, Parent: parent})

	src := unit.Source
	type sub struct {
		node  *sitter.Node
		field string
	}
	var subs []sub
	if !leafKinds[n.Type()] {
		for i := 0; i < toInt(n.ChildCount()); i++ {
			c := n.Child(i)
			if c == nil || !c.IsNamed() || c.Type() == "comment" || c.EndByte() <= c.StartByte() {
				continue
			}
			subs = append(subs, sub{c, n.FieldNameForChild(i)})
		}
	}

	if len(subs) == 0 {
		t.nodes[id].Template = []string{string(src[loc.Offset:loc.End()])}
		return id
	}
	template := make([]string, 0, len(subs)+1)
	children := make([]NodeID, 0, len(subs))
	pos := loc.Offset
	for _, s := range subs {
		cs := toInt(s.node.StartByte())
		template = append(template, string(src[pos:cs]))
		children = append(children, t.build(unit, s.node, id, s.field))
		pos = toInt(s.node.EndByte())
	}
	template = append(template, string(src[pos:loc.End()]))
	t.nodes[id].Template = template
	t.nodes[id].Children = children
	return id
}

func toInt(v uint32) int {
	n, err := safecast.Conv[int](v)
	if err != nil {
		panic(fmt.Sprintf("sourcetree: offset %d out of range", v))
	}
	return n
}

// Len 节点总数
func (t *Tree) Len() int { return len(t.nodes) }

// Node 取节点，越界返回 nil
func (t *Tree) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return &t.nodes[id]
}

// Kind 节点的语法类别
func (t *Tree) Kind(id NodeID) string {
	if n := t.Node(id); n != nil {
		return n.Kind
	}
	return ""
}

// Parent 父节点
func (t *Tree) Parent(id NodeID) NodeID {
	if n := t.Node(id); n != nil {
		return n.Parent
	}
	return NoNode
}

// Child 第 i 个子节点
func (t *Tree) Child(id NodeID, i int) NodeID {
	n := t.Node(id)
	if n == nil || i < 0 || i >= len(n.Children) {
		return NoNode
	}
	return n.Children[i]
}

// ChildByField 按语法字段名取第一个子节点
func (t *Tree) ChildByField(id NodeID, field string) NodeID {
	n := t.Node(id)
	if n == nil {
		return NoNode
	}
	for _, c := range n.Children {
		if t.nodes[c].Field == field {
			return c
		}
	}
	return NoNode
}

// IndexOf child 在 parent 子节点中的下标
func (t *Tree) IndexOf(parent, child NodeID) int {
	n := t.Node(parent)
	if n == nil {
		return -1
	}
	for i, c := range n.Children {
		if c == child {
			return i
		}
	}
	return -1
}

// Ancestor 向上找到第一个 kind 类别的祖先
func (t *Tree) Ancestor(id NodeID, kind string) NodeID {
	for p := t.Parent(id); p != NoNode; p = t.Parent(p) {
		if t.nodes[p].Kind == kind {
			return p
		}
	}
	return NoNode
}

// Text 重新合成节点覆盖的文本（包含已应用的编辑）
func (t *Tree) Text(id NodeID) string {
	var sb strings.Builder
	t.synthesize(&sb, id)
	return sb.String()
}

func (t *Tree) synthesize(sb *strings.Builder, id NodeID) {
	n := &t.nodes[id]
	sb.WriteString(n.Template[0])
	for i, c := range n.Children {
		t.synthesize(sb, c)
		sb.WriteString(n.Template[i+1])
	}
}

// String 整个文件的文本
func (t *Tree) String() string {
	var sb strings.Builder
	sb.WriteString(t.prefix)
	t.synthesize(&sb, t.Root)
	sb.WriteString(t.suffix)
	return sb.String()
}

// WriteTo 写出整个文件
func (t *Tree) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, t.String())
	return int64(n), err
}
