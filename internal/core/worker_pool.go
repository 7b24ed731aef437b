package core

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"cintfix/internal/report"
)

// Job 处理一个翻译单元；失败记录在结果的 Err 里，不影响其他翻译单元
type Job func(ctx context.Context, path string) report.UnitResult

// WorkerPool 按翻译单元并发执行任务
type WorkerPool struct {
	workers int
	stats   poolCounters
}

type poolCounters struct {
	submitted  atomic.Int64
	completed  atomic.Int64
	failed     atomic.Int64
	active     atomic.Int64
	maxActive  atomic.Int64
	execTimeNs atomic.Int64
}

// PoolStats 工作池统计信息
type PoolStats struct {
	JobsSubmitted int64         `json:"jobs_submitted"`
	JobsCompleted int64         `json:"jobs_completed"`
	JobsFailed    int64         `json:"jobs_failed"`
	ActiveWorkers int64         `json:"active_workers"`
	MaxActive     int64         `json:"max_active"`
	TotalExecTime time.Duration `json:"total_exec_time"`
	AvgExecTime   time.Duration `json:"avg_exec_time"`
}

// NewWorkerPool 创建工作池，workers 小于 1 时按 1 处理
func NewWorkerPool(workers int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{workers: workers}
}

// Workers 并发数
func (wp *WorkerPool) Workers() int { return wp.workers }

// Run 对每个路径执行 job，结果与 paths 一一对应
// 只有 ctx 被取消时才返回错误，此时未开始的翻译单元结果为零值
func (wp *WorkerPool) Run(ctx context.Context, paths []string, job Job) ([]report.UnitResult, error) {
	results := make([]report.UnitResult, len(paths))
	if len(paths) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(wp.workers, len(paths)))

	for i, path := range paths {
		wp.stats.submitted.Add(1)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			active := wp.stats.active.Add(1)
			for {
				peak := wp.stats.maxActive.Load()
				if active <= peak || wp.stats.maxActive.CompareAndSwap(peak, active) {
					break
				}
			}
			start := time.Now()

			// 下标唯一，不需要加锁
			results[i] = job(gctx, path)

			wp.stats.execTimeNs.Add(int64(time.Since(start)))
			wp.stats.completed.Add(1)
			if results[i].Failed() {
				wp.stats.failed.Add(1)
			}
			wp.stats.active.Add(-1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

// Stats 获取统计信息
func (wp *WorkerPool) Stats() PoolStats {
	s := PoolStats{
		JobsSubmitted: wp.stats.submitted.Load(),
		JobsCompleted: wp.stats.completed.Load(),
		JobsFailed:    wp.stats.failed.Load(),
		ActiveWorkers: wp.stats.active.Load(),
		MaxActive:     wp.stats.maxActive.Load(),
		TotalExecTime: time.Duration(wp.stats.execTimeNs.Load()),
	}
	if s.JobsCompleted > 0 {
		s.AvgExecTime = s.TotalExecTime / time.Duration(s.JobsCompleted)
	}
	return s
}
