// deep-research is the command-line client of the research workflows.
//
// Commands:
//
//	run [request]   start a research run and follow it to the report
//	status <id>     show the progress of a run
//	result <id>     wait for a run and print its outcome
//	tools           list the MCP tools available to the report stage
//	models          list the models the configured providers offer
//	version         print the build version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every command.
type globalFlags struct {
	noColor    bool
	noMarkdown bool
}

func newRootCommand() *cobra.Command {
	var flags globalFlags
	root := &cobra.Command{
		Use:           "deep-research",
		Short:         "Run deep research workflows on Temporal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&flags.noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")
	root.PersistentFlags().BoolVar(&flags.noMarkdown, "no-markdown", false, "print the report as raw markdown")

	root.AddCommand(
		newRunCommand(&flags),
		newStatusCommand(&flags),
		newResultCommand(&flags),
		newToolsCommand(&flags),
		newModelsCommand(&flags),
		newVersionCommand(),
	)
	return root
}
