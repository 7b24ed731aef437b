package main

import (
	"io"

	"github.com/spf13/cobra"

	"cintfix/internal/artifact"
	"cintfix/internal/rewrite"
)

var headerCmd = &cobra.Command{
	Use:   "header [--runtime] [-o file]",
	Short: "Print the extern declarations prepended to patched files, or the runtime that implements them",
	Args:  cobra.NoArgs,
	RunE:  runHeader,
}

func init() {
	headerCmd.Flags().Bool("runtime", false, "print the C source of the runtime check and shift helpers")
	headerCmd.Flags().StringP("out", "o", "", "write to a file instead of stdout")
}

func runHeader(cmd *cobra.Command, _ []string) error {
	runtime, err := cmd.Flags().GetBool("runtime")
	if err != nil {
		return err
	}
	out, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}

	write := func(w io.Writer) error {
		if runtime {
			return rewrite.WriteRuntime(w)
		}
		_, err := io.WriteString(w, rewrite.Header)
		return err
	}
	if out == "" {
		return write(cmd.OutOrStdout())
	}
	return artifact.WriteAtomic(out, write)
}
