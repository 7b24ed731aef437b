package constraint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cintfix/internal/absint"
)

var (
	// ErrSolverStart 求解器进程无法启动
	ErrSolverStart = errors.New("constraint: solver could not be started")
	// ErrUnsat 求解结果不是 sat
	ErrUnsat = errors.New("constraint: problem is not satisfiable")
	// ErrModelParse 模型输出无法解析
	ErrModelParse = errors.New("constraint: failed to parse solver model")
)

// Runner 运行求解器并返回合并后的 stdout/stderr
type Runner interface {
	Run(ctx context.Context, smt2Path string) (string, error)
}

// ExecRunner 以子进程方式调用 `solver <path>`
type ExecRunner struct {
	Path    string
	Timeout time.Duration
}

// Run 读到 EOF 后等待进程退出；任何出口都会回收子进程
func (r ExecRunner) Run(ctx context.Context, smt2Path string) (string, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, r.Path, smt2Path)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrSolverStart, r.Path, err)
	}
	// Wait 会等输出读到 EOF
	err := cmd.Wait()
	out := buf.String()
	if ctx.Err() != nil {
		return out, fmt.Errorf("solver %s: %w", r.Path, ctx.Err())
	}
	// z3 在 unsat 时以非零码退出，交给 Decode 判定
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return out, fmt.Errorf("solver %s: %w", r.Path, err)
	}
	return out, nil
}

// Model 求解得到的变量类型
type Model struct {
	Types map[string]absint.IntType
	// Objective 目标函数值，输出中没有时为 -1
	Objective int
}

var (
	objectivePattern = regexp.MustCompile(`\(objectives\s+\(\s*(\d+)\s*\)\s*\)`)
	defineFunPattern = regexp.MustCompile(`^\(define-fun\s+(\S+)\s+\(\)\s+I\s+(\S+)\)$`)
)

// topLevel 切出顶层的括号表达式
func topLevel(s string) ([]string, error) {
	var exprs []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			if depth == 0 {
				start = i
			}
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("%w: unbalanced ')' at %d", ErrModelParse, i)
			}
			if depth == 0 {
				exprs = append(exprs, s[start:i+1])
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("%w: unbalanced '('", ErrModelParse)
	}
	return exprs, nil
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Decode 解析求解器输出
// 输出形如 "sat (objectives ...) (model (define-fun ...) ...)"，
// objectives 块和 model 关键字都可以缺省
func Decode(output string) (*Model, error) {
	output = strings.TrimSpace(output)
	if !strings.HasPrefix(output, "sat") {
		first := output
		if i := strings.IndexByte(first, '\n'); i >= 0 {
			first = first[:i]
		}
		return nil, fmt.Errorf("%w: solver said %q", ErrUnsat, first)
	}
	exprs, err := topLevel(output[len("sat"):])
	if err != nil {
		return nil, err
	}

	model := &Model{Types: make(map[string]absint.IntType), Objective: -1}
	if len(exprs) > 0 && strings.HasPrefix(exprs[0], "(objectives") {
		if m := objectivePattern.FindStringSubmatch(normalizeSpace(exprs[0])); m != nil {
			model.Objective, _ = strconv.Atoi(m[1])
		}
		exprs = exprs[1:]
	}
	if len(exprs) == 0 {
		return nil, fmt.Errorf("%w: no model in solver output", ErrModelParse)
	}

	body := strings.TrimSpace(exprs[0])
	body = strings.TrimSpace(body[1 : len(body)-1])
	body = strings.TrimPrefix(body, "model")
	entries, err := topLevel(body)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		m := defineFunPattern.FindStringSubmatch(normalizeSpace(e))
		if m == nil {
			return nil, fmt.Errorf("%w: unexpected model entry %q", ErrModelParse, e)
		}
		t, err := absint.ParseSolverSymbol(m[2])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrModelParse, err)
		}
		model.Types[DecodeName(m[1])] = t
	}
	return model, nil
}

// Solve 运行求解器并解析模型
func Solve(ctx context.Context, r Runner, smt2Path string) (*Model, error) {
	log.Printf("【求解】开始求解 %s", smt2Path)
	start := time.Now()
	out, err := r.Run(ctx, smt2Path)
	if err != nil {
		return nil, err
	}
	model, err := Decode(out)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", smt2Path, err)
	}
	log.Printf("【求解】完成，用时 %v，惩罚值 %d，变量 %d 个", time.Since(start), model.Objective, len(model.Types))
	return model, nil
}
