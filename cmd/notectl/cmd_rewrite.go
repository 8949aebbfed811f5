package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"service-note-backend/internal/expression"
)

func newRewriteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rewrite [text...]",
		Short: "Apply the expression rules to text",
		Long:  "Rewrites the arguments joined by spaces, or each line of stdin when no arguments are given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) > 0 {
				fmt.Fprintln(out, expression.Rewrite(strings.Join(args, " ")))
				return nil
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				fmt.Fprintln(out, expression.Rewrite(scanner.Text()))
			}
			return scanner.Err()
		},
	}
}
