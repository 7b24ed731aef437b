package core

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"
)

// Metrics 性能指标
type Metrics struct {
	Name      string            `json:"name"`
	Value     float64           `json:"value"`
	Unit      string            `json:"unit"`
	Timestamp time.Time         `json:"timestamp"`
	Tags      map[string]string `json:"tags"`
}

// maxSamples 每个指标保留的数据点数
const maxSamples = 1000

// PerformanceMonitor 各阶段耗时统计
type PerformanceMonitor struct {
	metrics   map[string][]Metrics
	mutex     sync.RWMutex
	startTime time.Time
	enabled   bool
	logger    func(string)
}

// NewPerformanceMonitor 创建性能监控器；logger 为 nil 时不打印摘要
func NewPerformanceMonitor(enabled bool, logger func(string)) *PerformanceMonitor {
	return &PerformanceMonitor{
		metrics:   make(map[string][]Metrics),
		startTime: time.Now(),
		enabled:   enabled,
		logger:    logger,
	}
}

// Record 记录指标
func (pm *PerformanceMonitor) Record(name string, value float64, unit string, tags map[string]string) {
	if pm == nil || !pm.enabled {
		return
	}

	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	metrics := append(pm.metrics[name], Metrics{
		Name:      name,
		Value:     value,
		Unit:      unit,
		Timestamp: time.Now(),
		Tags:      tags,
	})
	if len(metrics) > maxSamples {
		metrics = metrics[1:]
	}
	pm.metrics[name] = metrics
}

// RecordTimer 记录时间指标
func (pm *PerformanceMonitor) RecordTimer(name string, duration time.Duration, tags map[string]string) {
	pm.Record(name, duration.Seconds(), "s", tags)
}

// RecordCounter 记录计数器
func (pm *PerformanceMonitor) RecordCounter(name string, value float64, tags map[string]string) {
	pm.Record(name, value, "count", tags)
}

// GetMetrics 获取指标
func (pm *PerformanceMonitor) GetMetrics(name string) []Metrics {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	return append([]Metrics(nil), pm.metrics[name]...)
}

// StageStats 一个阶段的汇总
type StageStats struct {
	Name  string
	Count int
	Total time.Duration
	Max   time.Duration
}

// Avg 平均耗时
func (s StageStats) Avg() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Stages 按名字排序的计时指标汇总
func (pm *PerformanceMonitor) Stages() []StageStats {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	var out []StageStats
	for name, metrics := range pm.metrics {
		if len(metrics) == 0 || metrics[0].Unit != "s" {
			continue
		}
		s := StageStats{Name: name}
		for _, m := range metrics {
			d := time.Duration(m.Value * float64(time.Second))
			s.Count++
			s.Total += d
			if d > s.Max {
				s.Max = d
			}
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// PrintSummary 打印性能摘要
func (pm *PerformanceMonitor) PrintSummary() {
	if pm == nil || !pm.enabled || pm.logger == nil {
		return
	}

	pm.logger("=== 性能监控摘要 ===")
	for _, s := range pm.Stages() {
		pm.logger(fmt.Sprintf("%s: %d 次, 共 %v, 平均 %v, 最长 %v", s.Name, s.Count, s.Total, s.Avg(), s.Max))
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	pm.logger(fmt.Sprintf("内存使用: %.2f MB, GC %d 次, 总耗时 %v",
		float64(memStats.Alloc)/1024/1024, memStats.NumGC, time.Since(pm.startTime)))
	pm.logger("=== 监控结束 ===")
}

// Timer 计时器
type Timer struct {
	start   time.Time
	name    string
	monitor *PerformanceMonitor
	tags    map[string]string
}

// NewTimer 创建计时器
func (pm *PerformanceMonitor) NewTimer(name string, tags map[string]string) *Timer {
	return &Timer{
		start:   time.Now(),
		name:    name,
		monitor: pm,
		tags:    tags,
	}
}

// Stop 停止计时器
func (t *Timer) Stop() time.Duration {
	duration := time.Since(t.start)
	t.monitor.RecordTimer(t.name, duration, t.tags)
	return duration
}

// WithTimer 计时包装器
func (pm *PerformanceMonitor) WithTimer(name string, tags map[string]string, fn func() error) error {
	timer := pm.NewTimer(name, tags)
	defer timer.Stop()
	return fn()
}
