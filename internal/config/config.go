// Package config 读取 cintfix.toml 并合并环境变量和命令行覆盖
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"cintfix/internal/analysis"
	"cintfix/internal/constraint"
)

// FileName 配置文件名
const FileName = "cintfix.toml"

// 环境变量覆盖
const (
	EnvSolver       = "CINTFIX_SOLVER"
	EnvDisableCache = "CINTFIX_DISABLE_CACHE"
)

// maxWorkers 并发翻译单元数的上限
const maxWorkers = 32

// 报告格式
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatSARIF = "sarif"
	FormatAll   = "all"
)

// ErrInvalid 配置取值非法
var ErrInvalid = errors.New("invalid configuration")

// Duration 以 "60s" / "2m" 这样的字符串写在 TOML 里
type Duration struct {
	time.Duration
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText 实现 encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// SolverConfig 求解器
type SolverConfig struct {
	Path    string   `toml:"path"`
	Timeout Duration `toml:"timeout"`
}

// AnalysisConfig 分析
type AnalysisConfig struct {
	LoopCutoff int `toml:"loop_cutoff"` // 同一节点的合并次数上限
	Workers    int `toml:"workers"`     // 并发处理的翻译单元数
}

// OutputConfig 输出
type OutputConfig struct {
	MetadataDir  string `toml:"metadata_dir"`
	ReportFormat string `toml:"report_format"`
	Cache        bool   `toml:"cache"` // 写出/读取 analysis.msgpack
}

// Config 一次运行的全部配置
type Config struct {
	Solver   SolverConfig       `toml:"solver"`
	Weights  constraint.Weights `toml:"weights"`
	Analysis AnalysisConfig     `toml:"analysis"`
	Output   OutputConfig       `toml:"output"`
	Verbose  bool               `toml:"verbose"`

	// Source 加载的配置文件，没有文件时为空
	Source string `toml:"-"`
}

// Option 在加载之后覆盖配置
type Option func(*Config)

// WithSolver 指定求解器可执行文件
func WithSolver(path string) Option {
	return func(c *Config) {
		if path != "" {
			c.Solver.Path = path
		}
	}
}

// WithWorkers 指定并发数，非正数保持不变
func WithWorkers(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Analysis.Workers = n
		}
	}
}

// WithFormat 指定报告格式
func WithFormat(format string) Option {
	return func(c *Config) {
		if format != "" {
			c.Output.ReportFormat = strings.ToLower(format)
		}
	}
}

// WithMetadataDir 指定元数据目录
func WithMetadataDir(dir string) Option {
	return func(c *Config) {
		if dir != "" {
			c.Output.MetadataDir = dir
		}
	}
}

// WithVerbose 打开详细日志
func WithVerbose(v bool) Option {
	return func(c *Config) {
		c.Verbose = c.Verbose || v
	}
}

// WithCache 开关分析缓存
func WithCache(on bool) Option {
	return func(c *Config) {
		c.Output.Cache = on
	}
}

// DefaultWorkers 按 CPU 核数选择并发数
func DefaultWorkers() int {
	n := runtime.NumCPU()
	if n > maxWorkers {
		n = maxWorkers
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Default 没有配置文件时的配置
func Default() Config {
	return Config{
		Solver: SolverConfig{
			Path:    "z3",
			Timeout: Duration{60 * time.Second},
		},
		Weights: constraint.DefaultWeights,
		Analysis: AnalysisConfig{
			LoopCutoff: analysis.DefaultLoopCutoff,
			Workers:    DefaultWorkers(),
		},
		Output: OutputConfig{
			MetadataDir:  "intfix_meta",
			ReportFormat: FormatText,
			Cache:        true,
		},
	}
}

// Find 从 startDir 向上查找 cintfix.toml，找不到时返回 false
func Find(startDir string) (string, bool, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, err
	}
	for {
		candidate := filepath.Join(dir, FileName)
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", false, err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

// Load 读取配置文件；path 为空时从当前目录向上查找，找不到就用默认值
func Load(path string, opts ...Option) (Config, error) {
	cfg := Default()

	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return cfg, err
		}
		found, ok, err := Find(wd)
		if err != nil {
			return cfg, err
		}
		if ok {
			path = found
		}
	}

	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	applyEnv(&cfg)
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		if cfg.Source != "" {
			return cfg, fmt.Errorf("%s: %w", cfg.Source, err)
		}
		return cfg, err
	}
	return cfg, nil
}

// decodeFile 只覆盖文件里写了的键
func decodeFile(path string, cfg *Config) error {
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("%s: %w: unknown keys %s", path, ErrInvalid, strings.Join(keys, ", "))
	}
	cfg.Source = path
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvSolver); v != "" {
		cfg.Solver.Path = v
	}
	if os.Getenv(EnvDisableCache) != "" {
		cfg.Output.Cache = false
	}
}

// Validate 检查取值范围
func (c Config) Validate() error {
	if c.Solver.Path == "" {
		return fmt.Errorf("%w: solver.path is empty", ErrInvalid)
	}
	if c.Solver.Timeout.Duration < 0 {
		return fmt.Errorf("%w: solver.timeout is negative", ErrInvalid)
	}
	if c.Weights.P <= 0 || c.Weights.DP <= 0 || c.Weights.EQ <= 0 {
		return fmt.Errorf("%w: weights must be positive", ErrInvalid)
	}
	if c.Analysis.LoopCutoff <= 0 {
		return fmt.Errorf("%w: analysis.loop_cutoff must be positive", ErrInvalid)
	}
	if c.Analysis.Workers <= 0 {
		return fmt.Errorf("%w: analysis.workers must be positive", ErrInvalid)
	}
	if c.Output.MetadataDir == "" {
		return fmt.Errorf("%w: output.metadata_dir is empty", ErrInvalid)
	}
	switch c.Output.ReportFormat {
	case FormatText, FormatJSON, FormatSARIF, FormatAll:
	default:
		return fmt.Errorf("%w: unknown report format %q", ErrInvalid, c.Output.ReportFormat)
	}
	return nil
}

// Runner 按配置构造求解器调用
func (c Config) Runner() constraint.ExecRunner {
	return constraint.ExecRunner{Path: c.Solver.Path, Timeout: c.Solver.Timeout.Duration}
}
