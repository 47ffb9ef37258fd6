package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/parley/internal/cli"
)

var chatCmd = &cobra.Command{
	Use:   "chat <bot-id>",
	Short: "Talk to a bot in the terminal",
	Long: `Runs a bot's flow interactively. Every line you type is an inbound message;
the bot's replies are rendered as markdown. Type /quit to leave.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		conversationID, _ := cmd.Flags().GetString("conversation")
		jsonMode, _ := cmd.Flags().GetBool("json")
		watch, _ := cmd.Flags().GetBool("watch")
		fresh, _ := cmd.Flags().GetBool("fresh")

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()
		return cli.RunChat(ctx, cfg, cli.ChatOptions{
			BotID:          args[0],
			ConversationID: conversationID,
			JSON:           jsonMode,
			Watch:          watch,
			Fresh:          fresh,
			Input:          cmd.InOrStdin(),
			Output:         cmd.OutOrStdout(),
		})
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringP("conversation", "c", "", "Conversation ID (default console:<bot-id>)")
	chatCmd.Flags().Bool("json", false, "Write replies as JSON lines")
	chatCmd.Flags().BoolP("watch", "w", false, "Reload the flow when its document changes")
	chatCmd.Flags().Bool("fresh", false, "Discard the saved conversation state first")
}
