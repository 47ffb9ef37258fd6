package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/aretw0/parley/internal/logging"
)

// Handler processes one sanitized line typed by the user.
// Bot replies reach the user through the Messenger wired into the bot, not through the handler.
type Handler func(ctx context.Context, text string) error

// Runner is an interactive chat loop over line-oriented IO.
// It is the local stand-in for a messaging channel: every line becomes an inbound message.
type Runner struct {
	Input        io.Reader
	Output       io.Writer
	Handler      Handler
	Prompt       string
	MaxInputSize int
	Logger       *slog.Logger

	quitCommands map[string]bool
}

type line struct {
	text string
	err  error
}

// New creates a Runner reading from Stdin and writing to Stdout.
// The prompt is only shown when Stdin is a terminal.
func New(handler Handler, opts ...Option) *Runner {
	r := &Runner{
		Input:        os.Stdin,
		Output:       os.Stdout,
		Handler:      handler,
		Logger:       logging.NewNop(),
		quitCommands: map[string]bool{"/quit": true, "/exit": true},
	}
	if IsTerminal(os.Stdin) {
		r.Prompt = "> "
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reads lines until EOF, a quit command or cancellation of ctx.
// Failed lines are reported to the user and the loop continues.
func (r *Runner) Run(ctx context.Context) error {
	if r.Handler == nil {
		return errors.New("runner: handler is required")
	}

	lines := make(chan line)
	done := make(chan struct{})
	defer close(done)
	go r.pump(lines, done)

	for {
		if r.Prompt != "" {
			fmt.Fprint(r.Output, r.Prompt)
		}

		var in line
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in, ok = <-lines:
		}
		if !ok {
			return nil
		}
		if in.err != nil {
			return fmt.Errorf("failed to read input: %w", in.err)
		}

		text := strings.TrimSpace(in.text)
		if text == "" {
			continue
		}
		if r.quitCommands[strings.ToLower(text)] {
			return nil
		}

		clean, err := SanitizeInputLimit(text, r.MaxInputSize)
		if err != nil {
			fmt.Fprintf(r.Output, "Error: %v. Please try again.\n", err)
			continue
		}

		if err := r.Handler(ctx, clean); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.Logger.Warn("message handling failed", "err", err)
			fmt.Fprintf(r.Output, "Error: %v\n", err)
		}
	}
}

func (r *Runner) pump(out chan<- line, done <-chan struct{}) {
	defer close(out)
	reader := bufio.NewReader(r.Input)
	for {
		text, err := reader.ReadString('\n')
		if text != "" {
			select {
			case out <- line{text: text}:
			case <-done:
				return
			}
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			select {
			case out <- line{err: err}:
			case <-done:
			}
			return
		}
	}
}

// IsTerminal reports whether v is a file attached to a terminal.
func IsTerminal(v any) bool {
	f, ok := v.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
