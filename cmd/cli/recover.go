package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/devasignhq/devasign-api-sub002/internal/recovery"
)

var recoverCmd = &cobra.Command{
	Use:   "recover <kind>",
	Short: "Run a recovery strategy against a dependency",
	Long: `Run a recovery strategy and report each step.

Kinds: ai-provider, github, database, ledger, complete.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tk, cleanup, err := loadToolkit(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		result := tk.Coordinator.AttemptSystemRecovery(cmd.Context(), args[0])
		if outputJSON {
			return printJSON(result)
		}

		switch result.Status {
		case recovery.StatusRecovered:
			successColor.Printf("%s: %s\n", result.Kind, result.Status)
		case recovery.StatusPartial, recovery.StatusFallback:
			warnColor.Printf("%s: %s\n", result.Kind, result.Status)
		default:
			errorColor.Printf("%s: %s\n", result.Kind, result.Status)
		}
		if result.Message != "" {
			dimColor.Printf("   %s\n", result.Message)
		}
		for _, step := range result.Steps {
			mark := successColor.Sprint("ok")
			if !step.Success {
				mark = errorColor.Sprint("failed")
			}
			fmt.Printf("   %-20s %s %s\n", step.Name, mark, step.Message)
		}
		if !result.Success {
			return fmt.Errorf("recovery of %s did not succeed", result.Kind)
		}
		return nil
	},
}

var circuitsCmd = &cobra.Command{
	Use:   "circuits",
	Short: "Show circuit breaker states",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		tk, cleanup, err := loadToolkit(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		circuits := tk.Coordinator.Circuits()
		if outputJSON {
			return printJSON(circuits)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "SERVICE\tSTATE\tCONSECUTIVE\tTOTAL")
		for _, c := range circuits {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", c.Service, c.State, c.ConsecutiveFailures, c.TotalFailures)
		}
		return w.Flush()
	},
}

func init() { //nolint:gochecknoinits // Cobra command registration
	rootCmd.AddCommand(recoverCmd, circuitsCmd)
}
