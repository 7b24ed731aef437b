package report

import (
	"encoding/json"
	"fmt"
	"io"

	"cintfix/internal/fixguide"
	"cintfix/internal/rewrite"
)

// 每种改写对应一条规则
const (
	RuleSpecifier  = "INTFIX-SPECIFIER"
	RuleCheck      = "INTFIX-CHECK"
	RuleConversion = "INTFIX-CONVERSION"
)

// SARIFWriter SARIF 格式报告写入器
type SARIFWriter struct {
	writer io.Writer
	pretty bool
}

// NewSARIFWriter 创建新的 SARIF 写入器
func NewSARIFWriter(writer io.Writer, options ...SARIFOption) *SARIFWriter {
	w := &SARIFWriter{writer: writer}

	for _, opt := range options {
		opt(w)
	}

	return w
}

// SARIFOption SARIF 选项
type SARIFOption func(*SARIFWriter)

// WithPrettySARIF 启用美化 JSON 输出
func WithPrettySARIF() SARIFOption {
	return func(w *SARIFWriter) {
		w.pretty = true
	}
}

// Write 生成并写入 SARIF 报告
func (w *SARIFWriter) Write(result *RunResult) error {
	sarifReport := w.generateSARIFReport(result)

	var data []byte
	var err error

	if w.pretty {
		data, err = json.MarshalIndent(sarifReport, "", "  ")
	} else {
		data, err = json.Marshal(sarifReport)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal SARIF report: %w", err)
	}

	data = append(data, '\n')
	_, err = w.writer.Write(data)
	return err
}

// generateSARIFReport 生成 SARIF 2.1.0 报告
func (w *SARIFWriter) generateSARIFReport(result *RunResult) *SARIF {
	return &SARIF{
		Version: "2.1.0",
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Runs: []Run{
			{
				Tool: Tool{
					Driver: Driver{
						Name:    ToolName,
						Version: ToolVersion,
						Rules:   sarifRules,
					},
				},
				Results:     w.generateResults(result),
				Invocations: []Invocation{w.generateInvocation(result)},
			},
		},
	}
}

// sarifRules 顺序与 ruleIndexOf 一致
var sarifRules = []Rule{
	{
		ID:               RuleSpecifier,
		Name:             "IntegerTypeSpecifier",
		ShortDescription: Description{Text: "Integer declaration widened to hold every value it receives"},
		FullDescription:  Description{Text: "The declared integer type of a variable, parameter or cast was replaced with a wider type chosen by the constraint solver."},
	},
	{
		ID:               RuleCheck,
		Name:             "IntegerSanityCheck",
		ShortDescription: Description{Text: "Runtime overflow check inserted"},
		FullDescription:  Description{Text: "An expression that may overflow its destination type was wrapped with a runtime check or a safe shift helper."},
	},
	{
		ID:               RuleConversion,
		Name:             "IntegerConversion",
		ShortDescription: Description{Text: "Explicit conversion inserted"},
		FullDescription:  Description{Text: "An operand was converted explicitly so the operation is evaluated in a type that can represent its result."},
	},
}

func ruleIndexOf(mode fixguide.Mode) (string, int) {
	switch mode {
	case fixguide.ModeSpecifier:
		return RuleSpecifier, 0
	case fixguide.ModeSanityCheck:
		return RuleCheck, 1
	default:
		return RuleConversion, 2
	}
}

// mapModeToLevel 检查意味着可能的溢出，其余是类型调整
func mapModeToLevel(mode fixguide.Mode) string {
	if mode == fixguide.ModeSanityCheck {
		return "warning"
	}
	return "note"
}

// generateResults 每一处已应用的改写是一个结果
func (w *SARIFWriter) generateResults(result *RunResult) []Result {
	results := []Result{}

	for i := range result.Units {
		u := &result.Units[i]
		for _, c := range u.Changes {
			ruleID, index := ruleIndexOf(c.Mode)
			results = append(results, Result{
				RuleID:    ruleID,
				RuleIndex: index,
				Level:     mapModeToLevel(c.Mode),
				Message:   Message{Text: changeMessage(c)},
				Locations: []Location{
					{
						PhysicalLocation: PhysicalLocation{
							ArtifactLocation: ArtifactLocation{URI: u.File},
							Region: &Region{
								StartLine:  c.Loc.StartLine,
								EndLine:    c.Loc.EndLine,
								CharOffset: c.Loc.Offset,
								CharLength: c.Loc.Length,
							},
						},
					},
				},
				Properties: map[string]interface{}{
					"type":   c.Type.Code(),
					"node":   c.Node,
					"output": u.Output,
				},
			})
		}
	}

	return results
}

func changeMessage(c rewrite.Change) string {
	switch c.Mode {
	case fixguide.ModeSpecifier:
		return fmt.Sprintf("type changed to %s", c.Detail)
	case fixguide.ModeSanityCheck:
		return fmt.Sprintf("wrapped with %s", c.Detail)
	}
	return fmt.Sprintf("converted with %s", c.Detail)
}

// generateInvocation 失败的翻译单元作为执行通知
func (w *SARIFWriter) generateInvocation(result *RunResult) Invocation {
	inv := Invocation{ExecutionSuccessful: result.Failed() == 0}
	for i := range result.Units {
		u := &result.Units[i]
		if !u.Failed() {
			continue
		}
		inv.ToolExecutionNotifications = append(inv.ToolExecutionNotifications, Notification{
			Level:   "error",
			Message: Message{Text: u.Err.Error()},
			Locations: []Location{
				{PhysicalLocation: PhysicalLocation{ArtifactLocation: ArtifactLocation{URI: u.File}}},
			},
		})
	}
	return inv
}

// SARIF SARIF 报告结构
type SARIF struct {
	Version string `json:"version"`
	Schema  string `json:"$schema"`
	Runs    []Run  `json:"runs"`
}

// Run SARIF 运行
type Run struct {
	Tool        Tool         `json:"tool"`
	Results     []Result     `json:"results"`
	Invocations []Invocation `json:"invocations,omitempty"`
}

// Tool SARIF 工具
type Tool struct {
	Driver Driver `json:"driver"`
}

// Driver 工具驱动
type Driver struct {
	Name           string `json:"name"`
	Version        string `json:"version"`
	InformationURI string `json:"informationUri,omitempty"`
	Rules          []Rule `json:"rules,omitempty"`
}

// Rule SARIF 规则
type Rule struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	ShortDescription Description `json:"shortDescription"`
	FullDescription  Description `json:"fullDescription"`
}

// Description 描述
type Description struct {
	Text string `json:"text"`
}

// Result SARIF 结果
type Result struct {
	RuleID     string                 `json:"ruleId"`
	RuleIndex  int                    `json:"ruleIndex"`
	Level      string                 `json:"level"`
	Message    Message                `json:"message"`
	Locations  []Location             `json:"locations,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// Invocation 一次运行的执行状态
type Invocation struct {
	ExecutionSuccessful        bool           `json:"executionSuccessful"`
	ToolExecutionNotifications []Notification `json:"toolExecutionNotifications,omitempty"`
}

// Notification 执行通知
type Notification struct {
	Level     string     `json:"level"`
	Message   Message    `json:"message"`
	Locations []Location `json:"locations,omitempty"`
}

// Message 消息
type Message struct {
	Text string `json:"text"`
}

// Location 位置
type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

// PhysicalLocation 物理位置
type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
	Region           *Region          `json:"region,omitempty"`
}

// ArtifactLocation artifact 位置
type ArtifactLocation struct {
	URI string `json:"uri"`
}

// Region 区域，偏移按字节
type Region struct {
	StartLine  int `json:"startLine,omitempty"`
	EndLine    int `json:"endLine,omitempty"`
	CharOffset int `json:"charOffset"`
	CharLength int `json:"charLength"`
}
