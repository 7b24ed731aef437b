package main

import (
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"cintfix/internal/report"
)

var rootCmd = &cobra.Command{
	Use:   "cintfix",
	Short: "Find and fix integer overflows in C translation units",
	Long: `cintfix infers value ranges of C integer variables, asks an SMT solver for the
narrowest types that hold them, and writes a patched <file>.fixed.i with widened
declarations, explicit conversions and runtime overflow checks.`,
	Version:       report.ToolVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(fixCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(headerCmd)

	// 全局参数
	rootCmd.PersistentFlags().String("config", "", "path to cintfix.toml (default: search upward from the working directory)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log every analysis and rewrite step")
	rootCmd.PersistentFlags().Int("workers", 0, "translation units processed in parallel (default: config or CPU count)")
	rootCmd.PersistentFlags().String("format", "", "report format: text, json, sarif or all")
	rootCmd.PersistentFlags().String("output", "", "directory to write report files into (default: print to stdout)")
	rootCmd.PersistentFlags().String("meta", "", "metadata directory for analysis artifacts")
	rootCmd.PersistentFlags().Bool("no-cache", false, "do not read or write analysis.msgpack")
}

func main() {
	log.SetFlags(log.Ltime)
	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
