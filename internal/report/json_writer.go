package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// JSONReport JSON 格式报告
type JSONReport struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Tool        ToolInfo     `json:"tool"`
	Summary     Summary      `json:"summary"`
	Units       []UnitReport `json:"units"`
}

// ToolInfo 工具信息
type ToolInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// Summary 统计摘要
type Summary struct {
	Units     int            `json:"units"`
	Failed    int            `json:"failed"`
	Locations int            `json:"locations"`
	ByMode    map[string]int `json:"by_mode"`
	Duration  string         `json:"duration,omitempty"`
	Workers   int            `json:"workers,omitempty"`
}

// UnitReport 一个翻译单元
type UnitReport struct {
	File        string         `json:"file"`
	Stage       Stage          `json:"stage"`
	MetaDir     string         `json:"meta_dir,omitempty"`
	Output      string         `json:"output,omitempty"`
	Cached      bool           `json:"cached,omitempty"`
	Constraints int            `json:"constraints"`
	Variables   int            `json:"variables"`
	Guides      int            `json:"guides"`
	Solved      int            `json:"solved,omitempty"`
	Objective   *int           `json:"objective,omitempty"`
	Locations   int            `json:"locations"`
	Duration    string         `json:"duration"`
	Error       string         `json:"error,omitempty"`
	Changes     []ChangeReport `json:"changes,omitempty"`
}

// ChangeReport 一处改写
type ChangeReport struct {
	Mode      string `json:"mode"`
	Type      string `json:"type"`
	Node      string `json:"node"`
	Detail    string `json:"detail"`
	StartLine int    `json:"startline"`
	EndLine   int    `json:"endline"`
	Offset    int    `json:"offset"`
	Length    int    `json:"length"`
}

// JSONWriter JSON 报告写入器
type JSONWriter struct {
	writer io.Writer
	pretty bool
}

// NewJSONWriter 创建新的 JSON 写入器
func NewJSONWriter(writer io.Writer, options ...JSONOption) *JSONWriter {
	w := &JSONWriter{writer: writer}

	for _, opt := range options {
		opt(w)
	}

	return w
}

// JSONOption JSON 选项
type JSONOption func(*JSONWriter)

// WithPrettyJSON 启用美化 JSON 输出
func WithPrettyJSON() JSONOption {
	return func(w *JSONWriter) {
		w.pretty = true
	}
}

// Write 生成并写入报告
func (w *JSONWriter) Write(result *RunResult) error {
	report := w.generateReport(result)

	var data []byte
	var err error

	if w.pretty {
		data, err = json.MarshalIndent(report, "", "  ")
	} else {
		data, err = json.Marshal(report)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON report: %w", err)
	}

	data = append(data, '\n')
	_, err = w.writer.Write(data)
	return err
}

// generateReport 生成报告数据
func (w *JSONWriter) generateReport(result *RunResult) *JSONReport {
	report := &JSONReport{
		GeneratedAt: time.Now(),
		Tool: ToolInfo{
			Name:        ToolName,
			Version:     ToolVersion,
			Description: ToolDescription,
		},
		Summary: Summary{
			Units:     len(result.Units),
			Failed:    result.Failed(),
			Locations: result.Locations(),
			ByMode:    make(map[string]int),
			Workers:   result.Workers,
		},
		Units: make([]UnitReport, 0, len(result.Units)),
	}
	if result.Duration > 0 {
		report.Summary.Duration = result.Duration.String()
	}
	for mode, n := range result.ByMode() {
		report.Summary.ByMode[mode.String()] = n
	}

	for i := range result.Units {
		report.Units = append(report.Units, unitReport(&result.Units[i]))
	}
	return report
}

func unitReport(u *UnitResult) UnitReport {
	r := UnitReport{
		File:        u.File,
		Stage:       u.Stage,
		MetaDir:     u.MetaDir,
		Output:      u.Output,
		Cached:      u.Cached,
		Constraints: u.Constraints,
		Variables:   u.Variables,
		Guides:      u.Guides,
		Solved:      u.Solved,
		Locations:   u.Locations,
		Duration:    u.Duration.String(),
	}
	if u.Objective >= 0 && u.Stage != StageAnalyze {
		obj := u.Objective
		r.Objective = &obj
	}
	if u.Err != nil {
		r.Error = u.Err.Error()
	}
	for _, c := range u.Changes {
		r.Changes = append(r.Changes, ChangeReport{
			Mode:      c.Mode.String(),
			Type:      c.Type.Code(),
			Node:      c.Node,
			Detail:    c.Detail,
			StartLine: c.Loc.StartLine,
			EndLine:   c.Loc.EndLine,
			Offset:    c.Loc.Offset,
			Length:    c.Loc.Length,
		})
	}
	return r
}
