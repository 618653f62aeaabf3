package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var refundCmd = &cobra.Command{
	Use:   "refund-installation <installation-id>",
	Short: "Refund open bounties and archive an installation",
	Long: `Refund the escrowed bounties of every open or in-progress task of an installation
and archive it, exactly as the installation.deleted webhook does. Running it twice is
safe: an archived installation is left alone.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid installation id %q", args[0])
		}

		tk, cleanup, err := loadToolkit(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		out, err := tk.Payouts.HandleInstallationDeleted(cmd.Context(), id)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(out)
		}

		titleColor.Printf("Installation %d: %s\n", out.InstallationID, out.Status)
		if out.TasksRefunded > 0 {
			successColor.Printf("   refunded %d task(s), %s in total\n", out.TasksRefunded, out.Amount)
			dimColor.Printf("   tx %s\n", out.TxHash)
		}
		if out.CleanupFailures > 0 {
			warnColor.Printf("   %d GitHub cleanup step(s) failed, see logs\n", out.CleanupFailures)
		}
		return nil
	},
}

func init() { //nolint:gochecknoinits // Cobra command registration
	rootCmd.AddCommand(refundCmd)
}
