package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/parley/internal/cli"
)

var conversationCmd = &cobra.Command{
	Use:   "conversation <conversation-id>",
	Short: "Show the state and latest messages of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("messages")
		mermaid, _ := cmd.Flags().GetBool("graph")
		return cli.ShowConversation(cmd.Context(), cfg, args[0], limit, mermaid, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(conversationCmd)
	conversationCmd.Flags().IntP("messages", "n", 20, "Number of logged messages to show")
	conversationCmd.Flags().BoolP("graph", "g", false, "Include the flow graph with the conversation path")
}
