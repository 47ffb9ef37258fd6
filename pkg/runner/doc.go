/*
Package runner implements the local chat loop used by `parley chat`.

It stands in for a messaging channel during development: every line read
from the input becomes an inbound message, and bot replies are written by a
Console, which implements ports.Messenger.

# Key Components

  - Runner: reads, sanitizes and dispatches user lines to a Handler.
  - Console: a Messenger writing text (optionally rendered markdown) or JSON lines.
  - SanitizeInput: size, UTF-8 and control character checks shared with the HTTP and MCP surfaces.

# Usage

	console := runner.NewConsole(os.Stdout, runner.WithRenderer(tui.NewRenderer()))
	bot, _ := parley.New("./flows", parley.WithMessenger(console))

	r := runner.New(func(ctx context.Context, text string) error {
		_, err := bot.HandleMessage(ctx, parley.Inbound{BotID: "pizza", ConversationID: "local", Recipient: "you", Text: text})
		return err
	})
	if err := r.Run(ctx); err != nil {
		log.Fatal(err)
	}
*/
package runner
