package main

import (
	"fmt"

	"github.com/fastprodman/pulsecards/internal/services/credits"
	"github.com/spf13/cobra"
)

var rebuildCacheCmd = &cobra.Command{
	Use:   "rebuild-cache",
	Short: "rewrite every cached balance from Postgres",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCredits(cmd.Context(), func(svc *credits.Service) error {
			n, err := svc.RebuildCache(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d balances cached\n", n)

			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(rebuildCacheCmd)
}
