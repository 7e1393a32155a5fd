package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"canvaschat/internal/infra/config"
)

func init() {
	rootCmd.AddCommand(encryptCmd)
	encryptCmd.Flags().String("key", "", "passphrase (default: $CANVASCHAT_CONFIG_KEY)")
}

var encryptCmd = &cobra.Command{
	Use:   "encrypt <value>",
	Short: "Encrypt a secret for use as an enc: config value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, _ := cmd.Flags().GetString("key")
		if key == "" {
			key = os.Getenv("CANVASCHAT_CONFIG_KEY")
		}
		if key == "" {
			return errors.New("no passphrase: pass --key or set CANVASCHAT_CONFIG_KEY")
		}
		enc, err := config.EncryptValue(args[0], key)
		if err != nil {
			return fmt.Errorf("encrypt: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "enc:"+enc)
		return nil
	},
}
