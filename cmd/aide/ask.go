package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/aide/config"
)

func askCMD(cfgPath *string) *cobra.Command {
	var userID string
	var domain string
	var ask = &cobra.Command{
		Use:   "ask [instruction...]",
		Short: "Answer one request and exit",
		Example: `  aide ask "I spent $12 on lunch today"
  aide ask --user alice "show my notes"
  aide ask --agent meetings "what meetings do I have tomorrow"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			ctx := context.Background()
			a, err := build(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			instruction := strings.Join(args, " ")
			var reply string
			if domain != "" {
				reply, err = a.orch.Ask(ctx, domain, instruction, userID)
			} else {
				reply, err = a.orch.RouteAs(ctx, instruction, userID)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
	ask.Flags().StringVarP(&userID, "user", "u", "", "user to act for when the instruction names none")
	ask.Flags().StringVarP(&domain, "agent", "a", "", "send straight to one agent (expenses, notes, meetings, health)")

	return ask
}
