package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/danieljhkim/patchlay/internal/config"
)

var (
	// Global flags
	jsonOutput bool
	verbose    bool
	configFile string

	// Colors for help output sections
	groupTitleColor   = color.New(color.FgCyan, color.Bold)
	sectionTitleColor = color.New(color.FgBlue, color.Bold)
)

// rootCmd is the root command for patchlay.
var rootCmd = &cobra.Command{
	Use:     "patchlay",
	Version: "dev",
	Short:   "Deterministic patch overlays for externally managed checkouts",
	Long: `patchlay keeps a directory of patches and binary overrides and projects it onto a
source checkout that is managed elsewhere.

It applies the overlay idempotently, resets the checkout to pristine, and regenerates
the overlay from the checkout's current modifications.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

func SetVersion(v string) {
	if v == "" {
		return
	}
	rootCmd.Version = v
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

// customHelpFunc returns a custom help function that colors group titles
func customHelpFunc(cmd *cobra.Command, args []string) {
	// Build complete help output
	var help strings.Builder

	// Add long description if present
	if cmd.Long != "" {
		help.WriteString(cmd.Long)
		help.WriteString("\n\n")
	}

	// Add usage
	help.WriteString(sectionTitleColor.Sprint("Usage:"))
	help.WriteString("\n")
	fmt.Fprintf(&help, "  %s\n\n", cmd.UseLine())

	// Add grouped commands
	for _, group := range cmd.Groups() {
		// Color the group title
		help.WriteString(groupTitleColor.Sprint(group.Title))
		help.WriteString("\n")

		for _, c := range cmd.Commands() {
			if c.GroupID == group.ID && !c.Hidden {
				fmt.Fprintf(&help, "  %-11s %s\n", c.Name(), c.Short)
			}
		}
		help.WriteString("\n")
	}

	// Add ungrouped commands (Additional Commands section)
	hasUngrouped := false
	for _, c := range cmd.Commands() {
		if c.GroupID == "" && !c.Hidden {
			if !hasUngrouped {
				help.WriteString(sectionTitleColor.Sprint("Additional Commands:"))
				help.WriteString("\n")
				hasUngrouped = true
			}
			fmt.Fprintf(&help, "  %-11s %s\n", c.Name(), c.Short)
		}
	}
	if hasUngrouped {
		help.WriteString("\n")
	}

	// Add flags
	if cmd.HasAvailableLocalFlags() || cmd.HasAvailablePersistentFlags() {
		help.WriteString(sectionTitleColor.Sprint("Flags:"))
		help.WriteString("\n")
		help.WriteString(cmd.LocalFlags().FlagUsages())
		help.WriteString(cmd.InheritedFlags().FlagUsages())
		help.WriteString("\n")
	}

	// Add usage footer
	fmt.Fprintf(&help, "Use \"%s [command] --help\" for more information about a command.\n", cmd.CommandPath())

	fmt.Fprint(cmd.OutOrStdout(), help.String())
}

func init() {
	// Set custom help function to color group titles
	rootCmd.SetHelpFunc(customHelpFunc)

	def := config.Default()

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log per-artifact progress")
	flags.StringVar(&configFile, "config", "", "Config file (default .patchlay.yaml in the working directory)")
	flags.StringP("checkout", "C", def.Checkout, "Checkout root (a wrapper containing src/ is accepted)")
	flags.StringP("store", "s", def.Store, "Artifact store root")
	flags.String("manifest", def.Manifest, "Ordering manifest file name inside the store")
	flags.String("ordering", def.Ordering, "Store ordering: auto, explicit or implicit")

	// Define command groups
	rootCmd.AddGroup(&cobra.Group{
		ID:    "checkout-lifecycle",
		Title: "Checkout Lifecycle:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "store-operations",
		Title: "Store Operations:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "cli-tooling",
		Title: "CLI & Tooling:",
	})

	// CLI & Tooling commands
	versionCmd := &cobra.Command{
		Use:     "version",
		Short:   "Print the patchlay CLI version",
		Args:    cobra.NoArgs,
		GroupID: "cli-tooling",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(stdout, rootCmd.Version)
		},
	}
	rootCmd.AddCommand(versionCmd)

	// Add help command to CLI & Tooling group
	helpCmd := &cobra.Command{
		Use:     "help [command]",
		Short:   "Help about any command",
		GroupID: "cli-tooling",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, _, err := cmd.Root().Find(args)
			if err != nil || target == nil {
				target = cmd.Root()
			}
			return target.Help()
		},
	}
	rootCmd.SetHelpCommand(helpCmd)

	// Add completion command to CLI & Tooling group
	completionCmd := &cobra.Command{
		Use:     "completion",
		Short:   "Generate the autocompletion script for the specified shell",
		GroupID: "cli-tooling",
		Long: `Generate the autocompletion script for patchlay for the specified shell.
See each sub-command's help for details on how to use the generated script.`,
	}
	generators := []struct {
		shell string
		gen   func(io.Writer) error
	}{
		{"bash", rootCmd.GenBashCompletion},
		{"zsh", rootCmd.GenZshCompletion},
		{"fish", func(w io.Writer) error { return rootCmd.GenFishCompletion(w, true) }},
		{"powershell", rootCmd.GenPowerShellCompletionWithDesc},
	}
	for _, g := range generators {
		gen := g.gen
		completionCmd.AddCommand(&cobra.Command{
			Use:                   g.shell,
			Short:                 "Generate the autocompletion script for " + g.shell,
			Args:                  cobra.NoArgs,
			DisableFlagsInUseLine: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				return gen(stdout)
			},
		})
	}
	rootCmd.AddCommand(completionCmd)

	// Checkout Lifecycle commands
	applyCmd.GroupID = "checkout-lifecycle"
	resetCmd.GroupID = "checkout-lifecycle"
	statusCmd.GroupID = "checkout-lifecycle"
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(statusCmd)

	// Store Operations commands
	updateCmd.GroupID = "store-operations"
	listCmd.GroupID = "store-operations"
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(listCmd)
}

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}
