package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"cintfix/internal/artifact"
)

// Format 报告格式类型
type Format string

const (
	FormatJSON  Format = "json"
	FormatText  Format = "text"
	FormatSARIF Format = "sarif"
	FormatAll   Format = "all"
)

// Writer 报告写入器接口
type Writer interface {
	Write(result *RunResult) error
}

// Manager 报告管理器
type Manager struct {
	format    Format
	outputDir string
	timestamp bool
	filename  string
	color     bool
	verbose   bool
}

// ManagerOption 管理器选项
type ManagerOption func(*Manager)

// WithFormat 设置报告格式
func WithFormat(format Format) ManagerOption {
	return func(m *Manager) {
		m.format = format
	}
}

// WithOutputDir 设置输出目录
func WithOutputDir(dir string) ManagerOption {
	return func(m *Manager) {
		m.outputDir = dir
	}
}

// WithTimestamp 添加时间戳到文件名
func WithTimestamp() ManagerOption {
	return func(m *Manager) {
		m.timestamp = true
	}
}

// WithFilename 设置自定义文件名
func WithFilename(filename string) ManagerOption {
	return func(m *Manager) {
		m.filename = filename
	}
}

// WithConsoleColor 文本报告写到终端时着色
func WithConsoleColor(on bool) ManagerOption {
	return func(m *Manager) {
		m.color = on
	}
}

// WithDetails 文本报告列出每一处改写
func WithDetails(on bool) ManagerOption {
	return func(m *Manager) {
		m.verbose = on
	}
}

// NewManager 创建新的报告管理器
func NewManager(options ...ManagerOption) *Manager {
	m := &Manager{
		format:    FormatText,
		outputDir: ".",
	}

	for _, opt := range options {
		opt(m)
	}

	return m
}

// CreateWriter 创建报告写入器
func (m *Manager) CreateWriter(format Format, writer io.Writer) (Writer, error) {
	return m.newWriter(format, writer, m.color)
}

func (m *Manager) newWriter(format Format, writer io.Writer, colored bool) (Writer, error) {
	switch format {
	case FormatJSON:
		return NewJSONWriter(writer, WithPrettyJSON()), nil
	case FormatText:
		var opts []TextOption
		if colored {
			opts = append(opts, WithColor())
		}
		if m.verbose {
			opts = append(opts, WithVerbose())
		}
		return NewTextWriter(writer, opts...), nil
	case FormatSARIF:
		return NewSARIFWriter(writer, WithPrettySARIF()), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// Print 把报告写到 w（通常是标准输出）；FormatAll 时只写文本格式
func (m *Manager) Print(w io.Writer, result *RunResult) error {
	format := m.format
	if format == FormatAll {
		format = FormatText
	}
	writer, err := m.CreateWriter(format, w)
	if err != nil {
		return err
	}
	return writer.Write(result)
}

// Generate 生成报告文件，返回写出的路径
func (m *Manager) Generate(result *RunResult) ([]string, error) {
	var formats []Format
	switch m.format {
	case FormatAll:
		formats = []Format{FormatJSON, FormatText, FormatSARIF}
	case FormatJSON, FormatText, FormatSARIF:
		formats = []Format{m.format}
	default:
		return nil, fmt.Errorf("unsupported format: %s", m.format)
	}

	outputFiles := make([]string, 0, len(formats))
	for _, format := range formats {
		path, err := m.generateSingleFormat(result, format)
		if err != nil {
			return nil, err
		}
		outputFiles = append(outputFiles, path)
	}
	return outputFiles, nil
}

// generateSingleFormat 文件报告不着色
func (m *Manager) generateSingleFormat(result *RunResult, format Format) (string, error) {
	filePath := filepath.Join(m.outputDir, m.generateFilename(format))
	err := artifact.WriteAtomic(filePath, func(w io.Writer) error {
		writer, err := m.newWriter(format, w, false)
		if err != nil {
			return err
		}
		return writer.Write(result)
	})
	if err != nil {
		return "", fmt.Errorf("failed to write %s report: %w", format, err)
	}
	return filePath, nil
}

// generateFilename 生成文件名
func (m *Manager) generateFilename(format Format) string {
	if m.filename != "" && m.format != FormatAll {
		return m.filename
	}

	baseName := "cintfix_report"
	if m.timestamp {
		return fmt.Sprintf("%s_%s.%s", baseName, time.Now().Format("20060102_150405"), format)
	}
	return fmt.Sprintf("%s.%s", baseName, format)
}

// ParseFormat 解析格式字符串
func ParseFormat(formatStr string) (Format, error) {
	switch strings.ToLower(formatStr) {
	case "json":
		return FormatJSON, nil
	case "text", "":
		return FormatText, nil
	case "sarif":
		return FormatSARIF, nil
	case "all":
		return FormatAll, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", formatStr)
	}
}

// SupportedFormats 获取支持的格式列表
func SupportedFormats() []Format {
	return []Format{FormatJSON, FormatText, FormatSARIF, FormatAll}
}
