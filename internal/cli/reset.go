package cli

import (
	"github.com/spf13/cobra"

	"github.com/danieljhkim/patchlay/internal/engine"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Return the checkout to its last committed state",
	Long: `Remove untracked files and directories from the checkout (ignored ones are kept),
then restore every tracked file to its committed content.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, cfg, err := newEngine(cmd)
		if err != nil {
			return err
		}

		result, err := eng.Reset(cmd.Context(), &engine.ResetRequest{CheckoutRoot: cfg.Checkout})
		if err != nil {
			printOpError(err)
			return err
		}

		if jsonOutput {
			return outputJSON(result)
		}

		PrintSuccess("Checkout reset")
		PrintLabelValue("Checkout", result.CheckoutRoot)
		return nil
	},
}
