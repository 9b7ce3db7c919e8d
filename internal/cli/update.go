package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/patchlay/internal/config"
	"github.com/danieljhkim/patchlay/internal/engine"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Regenerate the store from the checkout's modifications",
	Long: `Replace the store's artifacts with the checkout's current modifications.

Changed text files are stored as <path>.patch diffs against the last commit;
files with a known binary extension are copied verbatim. Untracked files are
registered with git as intent-to-add first so that their diffs are complete.

Files that cannot be stored are reported and skipped. Hidden files in the
store are kept. An existing manifest is handled by --manifest-policy:
rewrite (keep the order of surviving entries and append new ones), preserve
(keep the file as is) or drop (switch the store to implicit ordering).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, cfg, err := newEngine(cmd)
		if err != nil {
			return err
		}

		result, err := eng.Regenerate(cmd.Context(), &engine.RegenerateRequest{
			CheckoutRoot: cfg.Checkout,
			StoreRoot:    cfg.Store,
		})
		if err != nil {
			printOpError(err)
			return err
		}

		if jsonOutput {
			return outputJSON(result)
		}

		if result.Written == 0 && len(result.Skipped) == 0 && len(result.Failed) == 0 {
			PrintEmptyState("No changes found; store left untouched")
			return nil
		}

		PrintSuccess(fmt.Sprintf("Wrote %s", PrintCount(result.Written, "artifact", "artifacts")))
		PrintLabelValue("Store", result.StoreRoot)
		if result.Manifest != "" {
			PrintLabelValue("Manifest", result.Manifest)
		}

		if len(result.Skipped) > 0 {
			PrintSubsection("Skipped:")
			items := make([]string, 0, len(result.Skipped))
			for _, s := range result.Skipped {
				items = append(items, fmt.Sprintf("%s (%s)", s.Path, s.Reason))
			}
			PrintList(items, 1)
		}

		for _, f := range result.Failed {
			PrintError(fmt.Sprintf("%s: could not be stored", f.Path))
			PrintDiagnostic(f.Reason)
		}
		if len(result.Failed) > 0 {
			PrintWarning(fmt.Sprintf("%s not stored", PrintCount(len(result.Failed), "file", "files")))
		}
		return nil
	},
}

func init() {
	def := config.Default()
	updateCmd.Flags().IntP("jobs", "j", def.Jobs, "Number of diffs to compute in parallel")
	updateCmd.Flags().String("manifest-policy", def.ManifestPolicy, "What to do with an existing manifest: rewrite, preserve or drop")
}
