package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/config"
	"github.com/aretw0/parley/internal/presentation/tui"
	"github.com/aretw0/parley/pkg/runner"
)

// ChatOptions configures an interactive console conversation.
type ChatOptions struct {
	BotID          string
	ConversationID string
	JSON           bool
	Watch          bool
	Fresh          bool
	Input          io.Reader
	Output         io.Writer
}

// RunChat talks to a bot on the terminal. Every line is one inbound message
// and the bot's replies are written to the output.
func RunChat(ctx context.Context, cfg *config.Config, opts ChatOptions) error {
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.ConversationID == "" {
		opts.ConversationID = "console:" + opts.BotID
	}
	logger := NewLogger(cfg.Log.Level, true)

	consoleOpts := []runner.ConsoleOption{}
	if opts.JSON {
		consoleOpts = append(consoleOpts, runner.WithFormat(runner.FormatJSON))
	} else if runner.IsTerminal(opts.Output) {
		consoleOpts = append(consoleOpts, runner.WithRenderer(tui.NewRenderer(terminalWidth(opts.Output))))
	}
	console := runner.NewConsole(opts.Output, consoleOpts...)

	app, err := Build(ctx, cfg, logger, WithMessenger(console))
	if err != nil {
		return err
	}
	defer app.Close()

	if _, err := app.Bot.Flow(ctx, opts.BotID); err != nil {
		return err
	}
	if opts.Fresh {
		if err := app.State.Delete(ctx, opts.ConversationID); err != nil {
			logger.Warn("failed to reset conversation", "conversation_id", opts.ConversationID, "err", err)
		}
	}

	if !opts.JSON {
		tui.PrintBanner(opts.Output, fmt.Sprintf("v%s · bot %s", parley.Version, opts.BotID))
		if st, err := app.Bot.Conversation(ctx, opts.ConversationID); err == nil && st.CurrentNodeID != "" {
			printSystemMessage(opts.Output, "Resuming at '%s' node...", st.CurrentNodeID)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if opts.Watch {
		var w io.Writer
		if !opts.JSON {
			w = opts.Output
		}
		go func() {
			if err := WatchFlows(ctx, app.Flows, logger, w); err != nil {
				logger.Error("flow watcher stopped", "err", err)
			}
		}()
	}

	handler := func(ctx context.Context, text string) error {
		res, err := app.Bot.HandleMessage(ctx, parley.Inbound{
			BotID:          opts.BotID,
			ConversationID: opts.ConversationID,
			Text:           text,
		})
		if err != nil {
			return err
		}
		if opts.JSON {
			return nil
		}
		switch res.Outcome {
		case parley.OutcomeCompleted:
			printSystemMessage(opts.Output, "Conversation finished. Type to start again.")
		case parley.OutcomeIgnored:
			printSystemMessage(opts.Output, "No trigger matched.")
		}
		return nil
	}

	runnerOpts := []runner.Option{
		runner.WithInput(opts.Input),
		runner.WithOutput(opts.Output),
		runner.WithMaxInputSize(cfg.Runtime.MaxInputSize),
		runner.WithLogger(logger),
	}
	if opts.JSON {
		runnerOpts = append(runnerOpts, runner.WithPrompt(""))
	}
	err = runner.New(handler, runnerOpts...).Run(ctx)
	if errors.Is(err, context.Canceled) {
		if !opts.JSON {
			fmt.Fprintln(opts.Output)
			printSystemMessage(opts.Output, "Interrupted.")
		}
		return nil
	}
	return err
}

func terminalWidth(w io.Writer) int {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}
