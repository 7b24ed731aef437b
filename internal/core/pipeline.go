// Package core 把前端、分析、求解和改写串成按翻译单元执行的流水线
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cintfix/internal/analysis"
	"cintfix/internal/artifact"
	"cintfix/internal/cfa"
	"cintfix/internal/config"
	"cintfix/internal/constraint"
	"cintfix/internal/frontend"
	"cintfix/internal/report"
	"cintfix/internal/rewrite"
	"cintfix/internal/sourcetree"
)

// ErrNoArtifacts 修复之前没有对同一个文件做过分析
var ErrNoArtifacts = errors.New("core: analysis artifacts not found")

// Pipeline 一次运行的流水线，可以被多个协程同时使用
type Pipeline struct {
	cfg     config.Config
	runner  constraint.Runner
	monitor *PerformanceMonitor
	pool    *WorkerPool
}

// Option 流水线选项
type Option func(*Pipeline)

// WithRunner 替换求解器调用，测试中使用
func WithRunner(r constraint.Runner) Option {
	return func(p *Pipeline) {
		p.runner = r
	}
}

// WithMonitor 使用外部的性能监控器
func WithMonitor(m *PerformanceMonitor) Option {
	return func(p *Pipeline) {
		p.monitor = m
	}
}

// New 按配置创建流水线
func New(cfg config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		runner: cfg.Runner(),
		pool:   NewWorkerPool(cfg.Analysis.Workers),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.monitor == nil {
		p.monitor = NewPerformanceMonitor(cfg.Verbose, func(msg string) { log.Print(msg) })
	}
	return p
}

// Monitor 性能监控器
func (p *Pipeline) Monitor() *PerformanceMonitor { return p.monitor }

// PoolStats 工作池统计
func (p *Pipeline) PoolStats() PoolStats { return p.pool.Stats() }

// MetaDir 翻译单元的元数据目录：<metadata_dir>/<文件名>-<路径摘要>
// 不同目录下的同名文件不会共用目录
func (p *Pipeline) MetaDir(path string) artifact.Dir {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	key := artifact.HashSource([]byte(abs))[:8]
	return artifact.Dir(filepath.Join(p.cfg.Output.MetadataDir, base+"-"+key))
}

var stageTag = map[report.Stage]string{
	report.StageAnalyze: "分析",
	report.StageFix:     "修复",
	report.StageRun:     "运行",
}

func (p *Pipeline) tags(path string) map[string]string {
	return map[string]string{"file": filepath.Base(path)}
}

func (p *Pipeline) newUnit(path string, stage report.Stage) report.UnitResult {
	return report.UnitResult{
		File:      path,
		Stage:     stage,
		MetaDir:   string(p.MetaDir(path)),
		Objective: -1,
	}
}

func (p *Pipeline) finish(u *report.UnitResult, start time.Time, err error) (report.UnitResult, error) {
	u.Duration = time.Since(start)
	u.Err = err
	p.monitor.RecordTimer("unit_"+string(u.Stage), u.Duration, p.tags(u.File))
	if err != nil {
		// 失败的翻译单元不能留下补丁文件
		u.Output = ""
		log.Printf("【%s】%s 失败: %v", stageTag[u.Stage], u.File, err)
	}
	return *u, err
}

// Analyze 分析一个翻译单元并写出 constraint.smt2 / name2loc.json / loc2guide.json
func (p *Pipeline) Analyze(ctx context.Context, path string) (report.UnitResult, error) {
	start := time.Now()
	u := p.newUnit(path, report.StageAnalyze)
	err := p.analyze(ctx, path, &u)
	return p.finish(&u, start, err)
}

// Fix 读取分析产物，求解并写出 .fixed.i
func (p *Pipeline) Fix(ctx context.Context, path string) (report.UnitResult, error) {
	start := time.Now()
	u := p.newUnit(path, report.StageFix)
	err := p.fix(ctx, path, &u)
	return p.finish(&u, start, err)
}

// Run 先分析再修复
func (p *Pipeline) Run(ctx context.Context, path string) (report.UnitResult, error) {
	start := time.Now()
	u := p.newUnit(path, report.StageRun)
	err := p.analyze(ctx, path, &u)
	if err == nil {
		err = p.fix(ctx, path, &u)
	}
	return p.finish(&u, start, err)
}

// Batch 并发处理多个翻译单元；单个文件失败只记录在对应结果里
func (p *Pipeline) Batch(ctx context.Context, stage report.Stage, paths []string) (*report.RunResult, error) {
	var step func(context.Context, string) (report.UnitResult, error)
	switch stage {
	case report.StageAnalyze:
		step = p.Analyze
	case report.StageFix:
		step = p.Fix
	case report.StageRun:
		step = p.Run
	default:
		return nil, fmt.Errorf("unknown stage %q", stage)
	}

	start := time.Now()
	units, err := p.pool.Run(ctx, paths, func(ctx context.Context, path string) report.UnitResult {
		u, _ := step(ctx, path)
		return u
	})
	for i := range units {
		// 取消后没有开始的翻译单元
		if units[i].File == "" {
			units[i] = p.newUnit(paths[i], stage)
			units[i].Err = fmt.Errorf("%s: %w", paths[i], context.Cause(ctx))
		}
	}

	result := &report.RunResult{
		Units:    units,
		Duration: time.Since(start),
		Workers:  p.pool.Workers(),
	}
	result.Sort()
	p.monitor.PrintSummary()
	return result, err
}

func (p *Pipeline) analyze(ctx context.Context, path string, u *report.UnitResult) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dir := p.MetaDir(path)
	hash := artifact.HashSource(src)

	acc := p.cachedAnalysis(dir, hash)
	if acc != nil {
		u.Cached = true
		if p.cfg.Verbose {
			log.Printf("【分析】%s 使用缓存 %s", path, dir.Path(artifact.CacheFile))
		}
	} else {
		timer := p.monitor.NewTimer("frontend", p.tags(path))
		prog, err := frontend.Build(ctx, path, src, frontend.WithVerbose(p.cfg.Verbose))
		timer.Stop()
		if err != nil {
			return fmt.Errorf("analyze %s: %w", path, err)
		}

		timer = p.monitor.NewTimer("analysis", p.tags(path))
		acc, err = analysis.Analyze(ctx, prog, analysis.Options{
			LoopCutoff: p.cfg.Analysis.LoopCutoff,
			Verbose:    p.cfg.Verbose,
		})
		timer.Stop()
		if err != nil {
			return fmt.Errorf("analyze %s: %w", path, err)
		}
	}

	stats := acc.Stats()
	u.Constraints = stats.Constraints
	u.Variables = stats.Variables
	u.Guides = stats.Guides

	if err := p.writeArtifacts(dir, acc); err != nil {
		return fmt.Errorf("analyze %s: %w", path, err)
	}
	if p.cfg.Output.Cache && !u.Cached {
		if err := dir.SaveBundle(acc.Bundle(path, hash)); err != nil {
			return fmt.Errorf("analyze %s: %w", path, err)
		}
	}
	log.Printf("【分析】%s: %d 条约束, %d 个变量, %d 条修复指引",
		path, stats.Constraints, stats.Variables, stats.Guides)
	return nil
}

// cachedAnalysis 缓存不存在或已过期时返回 nil
func (p *Pipeline) cachedAnalysis(dir artifact.Dir, hash string) *analysis.Accumulator {
	if !p.cfg.Output.Cache || !dir.Exists(artifact.CacheFile) {
		return nil
	}
	b, err := dir.LoadBundle(hash)
	if err != nil {
		if p.cfg.Verbose || !errors.Is(err, artifact.ErrStaleCache) {
			log.Printf("【分析】忽略缓存: %v", err)
		}
		return nil
	}
	return analysis.FromBundle(b)
}

// writeArtifacts 约束按当前配置的权重重新编码，缓存命中时也会重写
func (p *Pipeline) writeArtifacts(dir artifact.Dir, acc *analysis.Accumulator) error {
	problem, err := constraint.Build(acc.Constraints, p.cfg.Weights)
	if err != nil {
		return err
	}
	if err := artifact.WriteAtomic(dir.Path(artifact.SMT2File), func(w io.Writer) error {
		_, err := problem.WriteTo(w)
		return err
	}); err != nil {
		return err
	}
	if err := artifact.WriteAtomic(dir.Path(artifact.Name2LocFile), func(w io.Writer) error {
		return artifact.WriteName2Loc(w, acc.Name2Loc)
	}); err != nil {
		return err
	}
	return artifact.WriteAtomic(dir.Path(artifact.Loc2GuideFile), func(w io.Writer) error {
		return artifact.WriteLoc2Guide(w, acc.Loc2Guide)
	})
}

// loadGuides 优先读缓存；源文件在分析之后被修改过时报错
func (p *Pipeline) loadGuides(dir artifact.Dir, src []byte) (map[string]cfa.FileLocation, []artifact.LocatedGuide, error) {
	if p.cfg.Output.Cache && dir.Exists(artifact.CacheFile) {
		b, err := dir.LoadBundle(artifact.HashSource(src))
		if err != nil {
			return nil, nil, err
		}
		return b.Name2Loc, artifact.SortedGuides(b.Loc2Guide), nil
	}

	if !dir.Exists(artifact.Name2LocFile) || !dir.Exists(artifact.Loc2GuideFile) {
		return nil, nil, fmt.Errorf("%w in %s", ErrNoArtifacts, dir)
	}
	name2loc, err := dir.LoadName2Loc()
	if err != nil {
		return nil, nil, err
	}
	guides, err := dir.LoadLoc2Guide()
	if err != nil {
		return nil, nil, err
	}
	return name2loc, guides, nil
}

func (p *Pipeline) fix(ctx context.Context, path string, u *report.UnitResult) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dir := p.MetaDir(path)

	name2loc, guides, err := p.loadGuides(dir, src)
	if err != nil {
		return fmt.Errorf("fix %s: %w", path, err)
	}
	if !dir.Exists(artifact.SMT2File) {
		return fmt.Errorf("fix %s: %w: missing %s", path, ErrNoArtifacts, dir.Path(artifact.SMT2File))
	}

	timer := p.monitor.NewTimer("solve", p.tags(path))
	model, err := constraint.Solve(ctx, p.runner, dir.Path(artifact.SMT2File))
	timer.Stop()
	if err != nil {
		return fmt.Errorf("fix %s: %w", path, err)
	}
	u.Solved = len(model.Types)
	u.Objective = model.Objective

	timer = p.monitor.NewTimer("rewrite", p.tags(path))
	defer timer.Stop()

	unit, err := frontend.Parse(ctx, path, src)
	if err != nil {
		return fmt.Errorf("fix %s: %w", path, err)
	}
	defer unit.Close()
	prog, err := frontend.BuildUnit(ctx, unit, frontend.WithVerbose(p.cfg.Verbose))
	if err != nil {
		return fmt.Errorf("fix %s: %w", path, err)
	}
	tree := sourcetree.FromUnit(unit)

	fixer := rewrite.New(prog, tree, model.Types, rewrite.WithVerbose(p.cfg.Verbose))
	res, err := fixer.Apply(fixer.Plans(name2loc, guides))
	if err != nil {
		return fmt.Errorf("fix %s: %w", path, err)
	}
	u.Changes = res.Changes
	u.Locations = res.Locations

	out := rewrite.OutputPath(path)
	if err := rewrite.Save(out, tree); err != nil {
		return fmt.Errorf("fix %s: %w", path, err)
	}
	u.Output = out
	log.Printf("【修复】%s: %d 处改写 -> %s", path, res.Locations, out)
	return nil
}
