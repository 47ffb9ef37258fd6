package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/parley/internal/cli"
)

var validateCmd = &cobra.Command{
	Use:   "validate <flow-file>",
	Short: "Check a flow document for consistency",
	Long: `Compiles a JSON or YAML flow document and reports every problem: a missing or
duplicated trigger, dangling edges, unreachable nodes, cycles without an exit
and node configs that do not decode.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mermaid, _ := cmd.Flags().GetBool("graph")
		return cli.Validate(args[0], cmd.OutOrStdout(), mermaid)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolP("graph", "g", false, "Print the flow as a Mermaid graph")
}
