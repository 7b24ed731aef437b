package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"cintfix/internal/config"
	"cintfix/internal/core"
	"cintfix/internal/report"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [flags] <file.c|file.i|directory>...",
	Short: "Analyze translation units and write constraint / guide artifacts",
	Args:  cobra.MinimumNArgs(1),
	RunE:  stageRunner(report.StageAnalyze),
}

var fixCmd = &cobra.Command{
	Use:   "fix [flags] <file.c|file.i|directory>...",
	Short: "Solve previously written constraints and write patched .fixed.i files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  stageRunner(report.StageFix),
}

var runCmd = &cobra.Command{
	Use:   "run [flags] <file.c|file.i|directory>...",
	Short: "Analyze and fix in one step",
	Args:  cobra.MinimumNArgs(1),
	RunE:  stageRunner(report.StageRun),
}

func init() {
	for _, cmd := range []*cobra.Command{fixCmd, runCmd} {
		cmd.Flags().String("solver", "", "SMT solver executable (default: config, $"+config.EnvSolver+" or z3)")
	}
}

// loadConfig 配置文件 < 环境变量 < 命令行
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Root().PersistentFlags()
	path, err := flags.GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	verbose, err := flags.GetBool("verbose")
	if err != nil {
		return config.Config{}, err
	}
	workers, err := flags.GetInt("workers")
	if err != nil {
		return config.Config{}, err
	}
	format, err := flags.GetString("format")
	if err != nil {
		return config.Config{}, err
	}
	meta, err := flags.GetString("meta")
	if err != nil {
		return config.Config{}, err
	}
	noCache, err := flags.GetBool("no-cache")
	if err != nil {
		return config.Config{}, err
	}

	opts := []config.Option{
		config.WithVerbose(verbose),
		config.WithWorkers(workers),
		config.WithFormat(format),
		config.WithMetadataDir(meta),
	}
	if noCache {
		opts = append(opts, config.WithCache(false))
	}
	if f := cmd.Flags().Lookup("solver"); f != nil && f.Value.String() != "" {
		opts = append(opts, config.WithSolver(f.Value.String()))
	}

	cfg, err := config.Load(path, opts...)
	if err != nil {
		return cfg, err
	}
	if cfg.Verbose && cfg.Source != "" {
		log.Printf("【配置】使用 %s", cfg.Source)
	}
	return cfg, nil
}

func stageRunner(stage report.Stage) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		files, err := core.CollectUnits(args)
		if err != nil {
			return fmt.Errorf("%s: %w", stage, err)
		}
		if len(files) == 0 {
			return fmt.Errorf("%s: no .c or .i files found", stage)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		pipeline := core.New(cfg)
		result, err := pipeline.Batch(ctx, stage, files)
		if err != nil && result == nil {
			return err
		}
		if werr := writeReport(cmd, cfg, result); werr != nil {
			return werr
		}
		if err != nil {
			return err
		}
		return summarize(cmd.ErrOrStderr(), stage, result)
	}
}

func writeReport(cmd *cobra.Command, cfg config.Config, result *report.RunResult) error {
	format, err := report.ParseFormat(cfg.Output.ReportFormat)
	if err != nil {
		return err
	}
	outDir, err := cmd.Root().PersistentFlags().GetString("output")
	if err != nil {
		return err
	}

	if outDir == "" {
		m := report.NewManager(
			report.WithFormat(format),
			report.WithConsoleColor(!color.NoColor),
			report.WithDetails(cfg.Verbose),
		)
		return m.Print(cmd.OutOrStdout(), result)
	}

	// 文件报告总是列出每一处改写
	m := report.NewManager(report.WithFormat(format), report.WithOutputDir(outDir), report.WithDetails(true))
	files, err := m.Generate(result)
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Fprintf(cmd.ErrOrStderr(), "report written to %s\n", f)
	}
	return nil
}

// summarize 有失败的翻译单元时以非零状态退出
func summarize(stderr io.Writer, stage report.Stage, result *report.RunResult) error {
	failed := result.Failed()
	if failed == 0 {
		ok := color.New(color.FgGreen)
		if stage == report.StageAnalyze {
			ok.Fprintf(stderr, "%d translation units analyzed\n", len(result.Units))
		} else {
			ok.Fprintf(stderr, "%d translation units, %d locations fixed\n", len(result.Units), result.Locations())
		}
		return nil
	}
	return fmt.Errorf("%d of %d translation units failed", failed, len(result.Units))
}
