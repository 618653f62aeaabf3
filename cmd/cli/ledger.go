package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/devasignhq/devasign-api-sub002/internal/ledger"
)

var (
	ledgerSince  string
	ledgerLimit  int
	ledgerTopUps bool
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the payment ledger",
}

var ledgerTailCmd = &cobra.Command{
	Use:   "tail <account>",
	Short: "List ledger entries of an account",
	Long: `List the ledger entries recorded for an account, oldest first. Use --top-ups to
show only incoming payments, for example deposits into an installation's escrow.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tk, cleanup, err := loadToolkit(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		account := args[0]
		entries := tk.Ledger.Entries(cmd.Context(), account, ledgerSince)
		if ledgerTopUps {
			entries = ledger.TopUps(entries, account)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		if !outputJSON {
			fmt.Fprintln(w, "CREATED\tTYPE\tAMOUNT\tFROM\tTO\tCURSOR")
		}
		n := 0
		for e, err := range entries {
			if err != nil {
				_ = w.Flush()
				return fmt.Errorf("failed to read ledger: %w", err)
			}
			if outputJSON {
				if err := printJSON(e); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\t%s\t%s\n",
					e.CreatedAt.Format(time.RFC3339), e.Type, e.Amount, e.Asset, e.From, e.To, e.Cursor)
			}
			n++
			if ledgerLimit > 0 && n >= ledgerLimit {
				break
			}
		}
		return w.Flush()
	},
}

func init() { //nolint:gochecknoinits // Cobra command registration
	ledgerTailCmd.Flags().StringVar(&ledgerSince, "since", "", "Only show entries after this cursor")
	ledgerTailCmd.Flags().IntVar(&ledgerLimit, "limit", 50, "Maximum number of entries, 0 for all")
	ledgerTailCmd.Flags().BoolVar(&ledgerTopUps, "top-ups", false, "Only show incoming payments")
	ledgerCmd.AddCommand(ledgerTailCmd)
	rootCmd.AddCommand(ledgerCmd)
}
