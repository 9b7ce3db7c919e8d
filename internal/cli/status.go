package cli

import (
	"github.com/spf13/cobra"

	"github.com/danieljhkim/patchlay/internal/engine"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the checkout's modifications",
	Long: `List the files that differ from the checkout's last commit, the way 'update'
would store them. Untracked directories are expanded into their files.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, cfg, err := newEngine(cmd)
		if err != nil {
			return err
		}

		result, err := eng.Scan(cmd.Context(), &engine.ScanRequest{CheckoutRoot: cfg.Checkout})
		if err != nil {
			printOpError(err)
			return err
		}

		if jsonOutput {
			return outputJSON(result)
		}

		PrintLabelValue("Checkout", result.CheckoutRoot)
		if len(result.Records) == 0 {
			PrintEmptyState("No changes")
			return nil
		}

		rows := make([][]string, 0, len(result.Records))
		for _, rec := range result.Records {
			storedAs := "patch"
			if rec.IsBinary {
				storedAs = "copy"
			}
			rows = append(rows, []string{rec.Status, rec.Path, string(rec.Kind), storedAs})
		}
		PrintTable([]string{"XY", "PATH", "CHANGE", "STORED AS"}, rows)
		return nil
	},
}
