package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the store's artifacts in application order",
	Long: `Display the artifacts in the store in the order apply would use, with the
files each patch touches and its line counts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, cfg, err := newEngine(cmd)
		if err != nil {
			return err
		}

		snapshot, err := eng.Enumerate(cfg.Store)
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(snapshot)
		}

		PrintLabelValue("Store", snapshot.Root)
		PrintLabelValue("Ordering", string(snapshot.Ordering))
		if snapshot.Len() == 0 {
			PrintEmptyState("No artifacts found")
			return nil
		}

		rows := make([][]string, 0, snapshot.Len())
		for i, a := range snapshot.Artifacts {
			stat := ""
			if a.Added > 0 || a.Deleted > 0 {
				stat = "+" + strconv.Itoa(a.Added) + " -" + strconv.Itoa(a.Deleted)
			}
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				a.RelPath,
				a.Kind.String(),
				strings.Join(a.Targets, ","),
				stat,
			})
		}
		PrintTable([]string{"#", "ARTIFACT", "KIND", "TARGETS", "LINES"}, rows)

		patches, overrides := snapshot.Counts()
		PrintInfo("")
		PrintInfo(PrintCount(patches, "patch", "patches") + ", " + PrintCount(overrides, "override", "overrides"))
		return nil
	},
}
