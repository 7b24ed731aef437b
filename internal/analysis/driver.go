package analysis

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"cintfix/internal/cfa"
)

// DefaultLoopCutoff 同一个 (节点, 调用栈) 最多合并的次数，超过后开始加宽
const DefaultLoopCutoff = 8

// Options 驱动参数
type Options struct {
	LoopCutoff int
	Verbose    bool
}

// frame 调用栈上的一帧：调用点和进入调用前的调用者状态
type frame struct {
	site  *cfa.CallSite
	state *State
}

// visit 一个 (节点, 调用栈) 上已经到达的状态
type visit struct {
	node    *cfa.Node
	stack   []frame
	state   *State
	merges  int
	pending bool
}

// driver 以工作表方式把转移关系迭代到不动点
type driver struct {
	prog    *cfa.Program
	tr      *Transfer
	opts    Options
	reached map[string]*visit
	queue   []*visit
	steps   int
}

// Analyze 分析一个翻译单元的 CFA，返回累积的约束和修复指引
// 遇到畸形输入时返回错误，此时不产生任何部分结果
func Analyze(ctx context.Context, prog *cfa.Program, opts Options) (*Accumulator, error) {
	if prog == nil {
		return nil, fmt.Errorf("%w: nil program", ErrMalformedInput)
	}
	if opts.LoopCutoff <= 0 {
		opts.LoopCutoff = DefaultLoopCutoff
	}
	acc := NewAccumulator()
	acc.SetVerbose(opts.Verbose)
	d := &driver{
		prog:    prog,
		tr:      NewTransfer(acc),
		opts:    opts,
		reached: make(map[string]*visit),
	}

	global, err := d.globals()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", prog.File, err)
	}
	for _, fn := range d.roots() {
		d.push(fn.Entry, nil, global)
	}
	if err := d.run(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", prog.File, err)
	}
	if opts.Verbose {
		s := acc.Stats()
		log.Printf("【分析】%s: %d 步, %d 个状态, %d 条约束, %d 个变量, %d 条指引",
			prog.File, d.steps, len(d.reached), s.Constraints, s.Variables, s.Guides)
	}
	return acc, nil
}

// globals 沿全局声明链求出所有函数共享的初始状态
func (d *driver) globals() (*State, error) {
	st := NewState()
	seen := make(map[int]bool)
	for n := d.prog.Start; n != nil && len(n.Leaving) > 0; {
		if seen[n.ID] {
			return nil, fmt.Errorf("%w: cycle in global declarations at %s", ErrMalformedInput, n)
		}
		seen[n.ID] = true
		e := n.Leaving[0]
		succ, err := d.tr.Apply(st, e)
		if err != nil {
			return nil, err
		}
		if len(succ.States) == 0 {
			return st, nil
		}
		st = succ.States[0]
		n = e.To
	}
	return st, nil
}

// roots 分析的起点：main，没有 main 时取所有不被其他函数调用的函数
func (d *driver) roots() []*cfa.Function {
	if fn, ok := d.prog.Functions[d.prog.Entry]; ok && d.prog.Entry != "" {
		return []*cfa.Function{fn}
	}
	called := make(map[string]bool)
	for _, n := range d.prog.Nodes {
		for _, e := range n.Leaving {
			if e.Kind != cfa.CallEdge || e.Call == nil || e.Call.Callee == nil {
				continue
			}
			if e.Call.Callee.Name != n.Function {
				called[e.Call.Callee.Name] = true
			}
		}
	}
	var roots []*cfa.Function
	for _, name := range d.prog.Order {
		fn, ok := d.prog.Functions[name]
		if ok && !called[name] && fn.Entry != nil {
			roots = append(roots, fn)
		}
	}
	return roots
}

func stackKey(n *cfa.Node, stack []frame) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(n.ID))
	for _, f := range stack {
		b.WriteByte('/')
		b.WriteString(strconv.Itoa(f.site.ReturnNode.ID))
	}
	return b.String()
}

// push 把状态并入 (节点, 调用栈)；被已有状态覆盖时不再入队
func (d *driver) push(n *cfa.Node, stack []frame, st *State) {
	if n == nil {
		return
	}
	k := stackKey(n, stack)
	v, ok := d.reached[k]
	if !ok {
		v = &visit{node: n, stack: stack, state: st}
		d.reached[k] = v
		d.enqueue(v)
		return
	}
	if st.IsLessOrEqual(v.state) {
		return
	}
	joined := v.state.Join(st)
	v.merges++
	if v.merges > d.opts.LoopCutoff {
		joined = widen(v.state, joined)
	}
	v.state = joined
	d.enqueue(v)
}

func (d *driver) enqueue(v *visit) {
	if v.pending {
		return
	}
	v.pending = true
	d.queue = append(d.queue, v)
}

// widen 区间发生变化的变量直接丢弃（视为 Unbounded）
func widen(old, joined *State) *State {
	next := joined
	for _, name := range joined.Names() {
		if !old.Contains(name) || !old.Range(name).Equal(joined.Range(name)) {
			next = next.Without(name)
		}
	}
	return next
}

func (d *driver) run(ctx context.Context) error {
	for len(d.queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		// 后进先出，先走完一条路径再回头合并
		v := d.queue[len(d.queue)-1]
		d.queue = d.queue[:len(d.queue)-1]
		v.pending = false
		d.steps++
		if err := d.step(v); err != nil {
			return fmt.Errorf("function %s: %w", v.node.Function, err)
		}
	}
	return nil
}

func (d *driver) step(v *visit) error {
	n, st, stack := v.node, v.state, v.stack
	if n.Exit {
		return d.leave(n, st, stack)
	}
	for _, e := range n.Leaving {
		switch e.Kind {
		case cfa.CallEdge:
			if err := d.enter(n, e, st, stack); err != nil {
				return err
			}
		case cfa.FunctionReturnEdge:
			// 只从出口节点按调用栈返回
		default:
			succ, err := d.tr.Apply(st, e)
			if err != nil {
				return err
			}
			for _, s := range succ.States {
				d.push(e.To, stack, s)
			}
		}
	}
	return nil
}

func (d *driver) onStack(n *cfa.Node, stack []frame, callee string) bool {
	if n.Function == callee {
		return true
	}
	for _, f := range stack {
		if f.site.Caller == callee || f.site.Callee.Name == callee {
			return true
		}
	}
	return false
}

func (d *driver) enter(n *cfa.Node, e *cfa.Edge, st *State, stack []frame) error {
	cs := e.Call
	if cs == nil || cs.Callee == nil || cs.ReturnNode == nil {
		return fmt.Errorf("%s: %w: call edge without call site", e.Loc, ErrMalformedInput)
	}
	if d.onStack(n, stack, cs.Callee.Name) {
		if d.opts.Verbose {
			log.Printf("【分析】%s 递归调用 %s，跳过函数体", e.Loc, cs.Callee.Name)
		}
		d.push(cs.ReturnNode, stack, d.tr.SkipCall(st, cs))
		return nil
	}
	succ, err := d.tr.Apply(st, e)
	if err != nil {
		return err
	}
	inner := make([]frame, len(stack), len(stack)+1)
	copy(inner, stack)
	inner = append(inner, frame{site: cs, state: st})
	for _, s := range succ.States {
		d.push(e.To, inner, s)
	}
	return nil
}

// leave 函数出口：只沿与栈顶调用点匹配的返回边回到调用者
func (d *driver) leave(n *cfa.Node, st *State, stack []frame) error {
	if len(stack) == 0 {
		return nil
	}
	top := stack[len(stack)-1]
	outer := stack[:len(stack)-1:len(stack)-1]
	for _, e := range n.Leaving {
		if e.Kind != cfa.FunctionReturnEdge || e.Call != top.site {
			continue
		}
		rebuilt := st.RebuildAfterCall(top.state, top.site.Callee.RetVar())
		succ, err := d.tr.Apply(rebuilt, e)
		if err != nil {
			return err
		}
		for _, s := range succ.States {
			d.push(e.To, outer, s)
		}
	}
	return nil
}
