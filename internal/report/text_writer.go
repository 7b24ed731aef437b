package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

var (
	okColor     = color.New(color.FgGreen, color.Bold)
	failColor   = color.New(color.FgRed, color.Bold)
	headerColor = color.New(color.FgCyan, color.Bold)
	modeColor   = color.New(color.FgYellow)
)

// TextWriter 文本格式报告写入器
type TextWriter struct {
	writer    io.Writer
	verbose   bool
	showColor bool
	showStats bool
}

// NewTextWriter 创建新的文本写入器
func NewTextWriter(writer io.Writer, options ...TextOption) *TextWriter {
	w := &TextWriter{
		writer:    writer,
		showStats: true,
	}

	for _, opt := range options {
		opt(w)
	}

	return w
}

// TextOption 文本选项
type TextOption func(*TextWriter)

// WithVerbose 列出每一处改写
func WithVerbose() TextOption {
	return func(w *TextWriter) {
		w.verbose = true
	}
}

// WithColor 启用彩色输出
func WithColor() TextOption {
	return func(w *TextWriter) {
		w.showColor = true
	}
}

// WithoutStats 禁用统计信息
func WithoutStats() TextOption {
	return func(w *TextWriter) {
		w.showStats = false
	}
}

func (w *TextWriter) paint(c *color.Color, format string, args ...any) string {
	if w.showColor {
		return c.Sprintf(format, args...)
	}
	return fmt.Sprintf(format, args...)
}

// Write 生成并写入文本报告
func (w *TextWriter) Write(result *RunResult) error {
	fmt.Fprintf(w.writer, "%s\n", w.paint(headerColor, "CIntFix Results"))
	fmt.Fprintf(w.writer, "===============\n")

	if w.showStats {
		w.writeStatistics(result)
	}
	w.writeUnits(result)
	return nil
}

// writeStatistics 写入统计信息
func (w *TextWriter) writeStatistics(result *RunResult) {
	failed := result.Failed()
	fmt.Fprintf(w.writer, "Translation units: %d", len(result.Units))
	if failed > 0 {
		fmt.Fprintf(w.writer, " (%s)", w.paint(failColor, "%d failed", failed))
	}
	fmt.Fprintf(w.writer, "\n")
	fmt.Fprintf(w.writer, "Fixed locations: %d\n", result.Locations())

	byMode := result.ByMode()
	for _, m := range modes {
		fmt.Fprintf(w.writer, "  %s: %d\n", m, byMode[m])
	}
	if result.Duration > 0 {
		fmt.Fprintf(w.writer, "Duration: %s (workers: %d)\n", result.Duration, result.Workers)
	}
	fmt.Fprintf(w.writer, "\n")
}

// writeUnits 每个翻译单元一行，详细模式下列出改写
func (w *TextWriter) writeUnits(result *RunResult) {
	tw := tabwriter.NewWriter(w.writer, 0, 8, 2, ' ', 0)
	for i := range result.Units {
		u := &result.Units[i]
		if u.Failed() {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", w.paint(failColor, "FAIL"), u.File, u.Err)
			continue
		}
		status := w.paint(okColor, "OK")
		switch u.Stage {
		case StageAnalyze:
			cached := ""
			if u.Cached {
				cached = ", cached"
			}
			fmt.Fprintf(tw, "%s\t%s\t%d constraints, %d variables, %d guides%s\n",
				status, u.File, u.Constraints, u.Variables, u.Guides, cached)
		default:
			fmt.Fprintf(tw, "%s\t%s\t%d locations -> %s\n", status, u.File, u.Locations, u.Output)
		}
	}
	tw.Flush()

	if !w.verbose {
		return
	}
	for i := range result.Units {
		u := &result.Units[i]
		if len(u.Changes) == 0 {
			continue
		}
		fmt.Fprintf(w.writer, "\nFile: %s\n", u.File)
		fmt.Fprintf(w.writer, "%s\n", strings.Repeat("-", 50))
		tw := tabwriter.NewWriter(w.writer, 0, 8, 2, ' ', 0)
		for _, c := range u.Changes {
			fmt.Fprintf(tw, "  %d:%d\t%s\t%s\t%s\n",
				c.Loc.StartLine, c.Loc.Offset, w.paint(modeColor, "%s", c.Mode), c.Detail, c.Node)
		}
		tw.Flush()
	}
}
