package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/patchlay/internal/engine"
)

var applyDryRun bool

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply the store's patches and overrides to the checkout",
	Long: `Apply every artifact in the store to the checkout, in store order.

Text patches are applied with git apply. A patch that no longer applies but
reverse-applies cleanly is already present and is skipped. Binary overrides
replace the checkout file unless it already holds the same bytes.

The first patch that neither applies nor reverse-applies stops the run;
artifacts applied before it stay applied. Use 'patchlay reset' to return the
checkout to a known state.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, cfg, err := newEngine(cmd)
		if err != nil {
			return err
		}

		result, err := eng.Apply(cmd.Context(), &engine.ApplyRequest{
			CheckoutRoot: cfg.Checkout,
			StoreRoot:    cfg.Store,
			DryRun:       applyDryRun,
		})

		if jsonOutput && result != nil {
			if jerr := outputJSON(result); jerr != nil {
				return jerr
			}
			return err
		}

		if err != nil {
			if result != nil && result.Applied+result.AlreadyApplied > 0 {
				PrintWarning(fmt.Sprintf("Stopped after %s; the checkout is partially patched",
					PrintCount(result.Applied+result.AlreadyApplied, "artifact", "artifacts")))
			}
			printOpError(err)
			if errors.Is(err, engine.ErrPatchConflict) {
				PrintInfo("Run 'patchlay reset' to return the checkout to a pristine state.")
			}
			return err
		}

		if applyDryRun {
			PrintSection("Dry Run")
			rows := make([][]string, 0, len(result.Outcomes))
			for _, o := range result.Outcomes {
				rows = append(rows, []string{o.Path, o.Kind.String(), string(o.Outcome)})
			}
			if len(rows) == 0 {
				PrintEmptyState("Store is empty")
			}
			PrintTable([]string{"ARTIFACT", "KIND", "OUTCOME"}, rows)

			if len(result.Conflicts) > 0 {
				PrintSection("Conflicts Detected")
				for _, conflict := range result.Conflicts {
					PrintError(fmt.Sprintf("%s: %s", conflict.Path, conflict.Reason))
					if conflict.Diagnostic != "" {
						PrintDiagnostic(conflict.Diagnostic)
					}
				}
			}
			return nil
		}

		PrintSuccess(fmt.Sprintf("Applied %s (%d already applied)",
			PrintCount(result.Applied, "artifact", "artifacts"), result.AlreadyApplied))
		PrintLabelValue("Checkout", result.CheckoutRoot)
		PrintLabelValue("Store", fmt.Sprintf("%s (%s)", result.StoreRoot, result.Ordering))
		return nil
	},
}

func init() {
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "Show what would be applied without applying")
}
