package runner

import (
	"io"
	"log/slog"
)

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithInput sets the source of user lines.
func WithInput(in io.Reader) Option {
	return func(r *Runner) {
		r.Input = in
	}
}

// WithOutput sets where prompts and errors are written.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) {
		r.Output = w
	}
}

// WithPrompt overrides the prompt. An empty prompt disables it.
func WithPrompt(prompt string) Option {
	return func(r *Runner) {
		r.Prompt = prompt
	}
}

// WithMaxInputSize sets the byte limit of a single line.
func WithMaxInputSize(limit int) Option {
	return func(r *Runner) {
		r.MaxInputSize = limit
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.Logger = logger
		}
	}
}

// WithQuitCommands replaces the commands that end the loop.
func WithQuitCommands(commands ...string) Option {
	return func(r *Runner) {
		r.quitCommands = make(map[string]bool, len(commands))
		for _, c := range commands {
			r.quitCommands[c] = true
		}
	}
}
