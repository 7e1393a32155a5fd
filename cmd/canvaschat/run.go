package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"canvaschat/internal/adapter/piston"
	"canvaschat/internal/adapter/terminal"
	"canvaschat/internal/domain"
	"canvaschat/internal/infra/logger"
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("lang", "l", "", "language (default: from the file extension)")
	runCmd.Flags().String("stdin", "", "program input")
}

var runCmd = &cobra.Command{
	Use:   "run <file|->",
	Short: "Run a source file on the execution service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		source, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}
		lang, _ := cmd.Flags().GetString("lang")
		if lang == "" {
			lang = languageForFile(args[0])
		}
		if lang == "" {
			return fmt.Errorf("cannot infer the language of %s, use --lang", args[0])
		}
		stdin, _ := cmd.Flags().GetString("stdin")

		log, logCloser, err := logger.New(cfg.Logger)
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		defer logCloser()

		res, err := piston.New(cfg.Execution, log).Run(cmd.Context(), lang, source, stdin)
		if err != nil {
			return err
		}
		r, err := terminal.New(terminal.Options{})
		if err != nil {
			return err
		}
		display := piston.Display(res)
		if _, err := io.WriteString(cmd.OutOrStdout(), r.Execution(display)); err != nil {
			return err
		}
		if display.Kind != domain.DisplayOutput {
			return errors.New(strings.ReplaceAll(string(display.Kind), "_", " "))
		}
		return nil
	},
}

// languageForFile maps a file extension to an execution language.
func languageForFile(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return ""
	}
	for _, rt := range piston.Languages {
		if filepath.Ext(rt.FileName) == ext {
			return rt.Language
		}
	}
	return ""
}
