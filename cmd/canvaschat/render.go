package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"canvaschat/internal/adapter/terminal"
	"canvaschat/internal/usecase/render"
)

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().IntP("width", "w", terminal.DefaultWidth, "word-wrap width")
	renderCmd.Flags().String("style", "auto", "glamour style: auto, dark, light or notty")
	renderCmd.Flags().Bool("json", false, "print the render model as JSON")
}

var renderCmd = &cobra.Command{
	Use:   "render <file|->",
	Short: "Render an AI reply the way the chat shows it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}
		msg := render.Derive(text)

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(msg)
		}

		width, _ := cmd.Flags().GetInt("width")
		style, _ := cmd.Flags().GetString("style")
		r, err := terminal.New(terminal.Options{Width: width, Style: style})
		if err != nil {
			return err
		}
		out, err := r.Message(msg)
		if err != nil {
			return err
		}
		_, err = io.WriteString(cmd.OutOrStdout(), out)
		return err
	},
}

// readInput reads a file, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}
