package frontend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"fortio.org/safecast"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"

	"cintfix/internal/cfa"
)

// ErrMalformedInput 语法错误、无法识别的运算符或构造
var ErrMalformedInput = errors.New("frontend: malformed input")

// parserPool tree-sitter Parser 不能并发使用，每个 goroutine 从池里取一个
var parserPool = sync.Pool{
	New: func() interface{} {
		parser := sitter.NewParser()
		parser.SetLanguage(c.GetLanguage())
		return parser
	},
}

func getParser() *sitter.Parser {
	return parserPool.Get().(*sitter.Parser)
}

func putParser(parser *sitter.Parser) {
	parser.Reset()
	parserPool.Put(parser)
}

// Unit 一个已解析的翻译单元
type Unit struct {
	Path   string
	Source []byte
	Tree   *sitter.Tree
	Root   *sitter.Node
}

// Close 释放语法树
func (u *Unit) Close() {
	if u.Tree != nil {
		u.Tree.Close()
	}
}

// Text 节点对应的源码文本
func (u *Unit) Text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	start, end := n.StartByte(), n.EndByte()
	if end > uint32(len(u.Source)) || start > end {
		return ""
	}
	return string(u.Source[start:end])
}

// Loc 节点的源码位置
func (u *Unit) Loc(n *sitter.Node) cfa.FileLocation {
	return Location(u.Path, n)
}

// Location tree-sitter 节点到 FileLocation；偏移都是字节
func Location(path string, n *sitter.Node) cfa.FileLocation {
	start := mustInt(n.StartByte())
	end := mustInt(n.EndByte())
	return cfa.FileLocation{
		File:      path,
		StartLine: mustInt(n.StartPoint().Row) + 1,
		EndLine:   mustInt(n.EndPoint().Row) + 1,
		Offset:    start,
		Length:    end - start,
	}
}

func mustInt(v uint32) int {
	n, err := safecast.Conv[int](v)
	if err != nil {
		panic(fmt.Sprintf("frontend: offset %d out of range", v))
	}
	return n
}

// Parse 解析一个 C 翻译单元；含语法错误时返回 ErrMalformedInput
func Parse(ctx context.Context, path string, source []byte) (*Unit, error) {
	parser := getParser()
	defer putParser(parser)

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	unit := &Unit{
		Path:   path,
		Source: source,
		Tree:   tree,
		Root:   tree.RootNode(),
	}
	if unit.Root.HasError() {
		bad := firstError(unit.Root)
		loc := unit.Loc(unit.Root)
		if bad != nil {
			loc = unit.Loc(bad)
		}
		unit.Close()
		return nil, fmt.Errorf("%w: syntax error at %s", ErrMalformedInput, loc)
	}
	return unit, nil
}

// ParseFile 读取并解析文件
func ParseFile(ctx context.Context, path string) (*Unit, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return Parse(ctx, path, source)
}

// firstError 先序找到第一个 ERROR 或缺失节点
func firstError(n *sitter.Node) *sitter.Node {
	if n == nil {
		return nil
	}
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	if !n.HasError() {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if bad := firstError(n.Child(i)); bad != nil {
			return bad
		}
	}
	return nil
}

// namedChildren 所有命名子节点，跳过注释
func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		child := n.NamedChild(i)
		if child == nil || child.Type() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}

// children 所有子节点（含匿名记号）
func children(n *sitter.Node) []*sitter.Node {
	count := int(n.ChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		if child := n.Child(i); child != nil {
			out = append(out, child)
		}
	}
	return out
}

// childrenByField 同一字段名下的全部子节点（声明中的多个 declarator）
func childrenByField(n *sitter.Node, field string) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.FieldNameForChild(i) == field {
			out = append(out, n.Child(i))
		}
	}
	return out
}

// stripParens 去掉外层括号表达式
func stripParens(n *sitter.Node) *sitter.Node {
	for n != nil && n.Type() == "parenthesized_expression" {
		inner := namedChildren(n)
		if len(inner) != 1 {
			return n
		}
		n = inner[0]
	}
	return n
}
