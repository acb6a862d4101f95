package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hunterpro/hunter-cli/internal/phone"
)

var extractCmd = &cobra.Command{
	Use:   "extract [text|-]",
	Short: "Print the mobile numbers found in text",
	Long:  "Extracts and normalizes mobile numbers from the argument, or from stdin when the argument is \"-\" or absent.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := extractInput(args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		international, _ := cmd.Flags().GetBool("international")
		for _, p := range phone.Extract(text) {
			if international {
				p = phone.International(p)
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func extractInput(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", eris.Wrap(err, "read stdin")
	}
	return strings.TrimSpace(string(b)), nil
}

func init() {
	extractCmd.Flags().Bool("international", false, "print numbers in +20 form")
	rootCmd.AddCommand(extractCmd)
}
