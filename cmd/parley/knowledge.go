package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/aretw0/parley/internal/cli"
	"github.com/aretw0/parley/pkg/knowledge"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Add a text, web page or file to the knowledge base",
	Long: `Creates a knowledge source from --text, --url or --file (PDF or plain text),
splits it into chunks, embeds them and prints the resulting source.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		opts := cli.IngestOptions{}
		opts.Owner = knowledge.Owner{}
		opts.Owner.BotID, _ = cmd.Flags().GetString("bot")
		opts.Owner.UserID, _ = cmd.Flags().GetString("user")
		opts.Owner.SessionID, _ = cmd.Flags().GetString("session")
		opts.Title, _ = cmd.Flags().GetString("title")
		opts.Text, _ = cmd.Flags().GetString("text")
		opts.URL, _ = cmd.Flags().GetString("url")
		opts.File, _ = cmd.Flags().GetString("file")

		set := 0
		for _, v := range []string{opts.Text, opts.URL, opts.File} {
			if v != "" {
				set++
			}
		}
		if set != 1 {
			return errors.New("exactly one of --text, --url or --file is required")
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()
		return cli.Ingest(ctx, cfg, opts, cmd.OutOrStdout())
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex <source-id>",
	Short: "Embed the chunks of a source that have no vector yet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()
		return cli.Reindex(ctx, cfg, args[0], cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(reindexCmd)
	ingestCmd.Flags().String("bot", "", "Owning bot ID")
	ingestCmd.Flags().String("user", "", "Owning user ID")
	ingestCmd.Flags().String("session", "", "Owning session ID")
	ingestCmd.Flags().String("title", "", "Source title (text sources)")
	ingestCmd.Flags().String("text", "", "Text to ingest")
	ingestCmd.Flags().String("url", "", "Web page to fetch and ingest")
	ingestCmd.Flags().String("file", "", "PDF or text file to ingest")
}
