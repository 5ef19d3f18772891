package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fastprodman/pulsecards/internal/services/credits"
	"github.com/spf13/cobra"
)

var errMismatch = errors.New("ledger mismatch found")

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "compare every balance with the sum of its ledger",
	Long: "Compares balances with their ledger sums and refreshes the cached balances. " +
		"Exits non-zero when any account disagrees.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		user, _ := cmd.Flags().GetString("user")

		return withCredits(cmd.Context(), func(svc *credits.Service) error {
			var reports []credits.Report

			if user != "" {
				r, err := svc.Reconcile(cmd.Context(), user)
				if err != nil {
					return err
				}

				reports = []credits.Report{r}
			} else {
				var err error

				reports, err = svc.ReconcileAll(cmd.Context())
				if err != nil {
					return err
				}
			}

			return printReports(cmd.OutOrStdout(), reports)
		})
	},
}

// printReports lists the mismatching accounts among reports and fails if
// there are any. ReconcileAll only returns mismatches; a single-user run
// may pass a consistent report.
func printReports(w io.Writer, reports []credits.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	bad := 0
	for _, r := range reports {
		if r.Consistent() {
			continue
		}

		if bad == 0 {
			fmt.Fprintln(tw, "USER\tBALANCE\tLEDGER SUM\tDIFF")
		}
		bad++

		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", r.UserID, r.Balance, r.LedgerSum, r.Balance-r.LedgerSum)
	}

	err := tw.Flush()
	if err != nil {
		return err
	}

	if bad == 0 {
		fmt.Fprintln(w, "ledger consistent")
		return nil
	}

	fmt.Fprintf(w, "%d mismatched accounts\n", bad)

	return fmt.Errorf("%w: %d accounts", errMismatch, bad)
}

func init() {
	reconcileCmd.Flags().String("user", "", "reconcile a single user id")
	rootCmd.AddCommand(reconcileCmd)
}
