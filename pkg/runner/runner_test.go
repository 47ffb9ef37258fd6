package runner_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/runner"
)

func TestRunner_DispatchesLinesUntilEOF(t *testing.T) {
	var got []string
	var out bytes.Buffer
	r := runner.New(func(ctx context.Context, text string) error {
		got = append(got, text)
		return nil
	}, runner.WithInput(strings.NewReader("hallo\n\n  pizza  \nlast")), runner.WithOutput(&out), runner.WithPrompt(""))

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, []string{"hallo", "pizza", "last"}, got)
	assert.Empty(t, out.String())
}

func TestRunner_QuitCommand(t *testing.T) {
	var got []string
	r := runner.New(func(ctx context.Context, text string) error {
		got = append(got, text)
		return nil
	}, runner.WithInput(strings.NewReader("one\n/QUIT\ntwo\n")), runner.WithOutput(io.Discard))

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, []string{"one"}, got)
}

func TestRunner_ReportsErrorsAndContinues(t *testing.T) {
	var got []string
	var out bytes.Buffer
	r := runner.New(func(ctx context.Context, text string) error {
		got = append(got, text)
		if text == "boom" {
			return errors.New("flow not found")
		}
		return nil
	},
		runner.WithInput(strings.NewReader("toolongline\nboom\nok\n")),
		runner.WithOutput(&out),
		runner.WithPrompt("> "),
		runner.WithMaxInputSize(5),
	)

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, []string{"boom", "ok"}, got)
	assert.Contains(t, out.String(), "input exceeds maximum allowed size")
	assert.Contains(t, out.String(), "Error: flow not found")
	assert.True(t, strings.HasPrefix(out.String(), "> "))
}

func TestRunner_StopsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	r := runner.New(func(ctx context.Context, text string) error { return nil },
		runner.WithInput(pr), runner.WithOutput(io.Discard))

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after cancellation")
	}
}

func TestRunner_RequiresHandler(t *testing.T) {
	r := runner.New(nil, runner.WithInput(strings.NewReader("x\n")))
	assert.Error(t, r.Run(context.Background()))
}

func TestConsole_Text(t *testing.T) {
	var out bytes.Buffer
	c := runner.NewConsole(&out, runner.WithRenderer(func(s string) (string, error) {
		return "**" + s + "**\n\n", nil
	}))
	ctx := context.Background()

	require.NoError(t, c.SendText(ctx, "u1", "Willkommen"))
	require.NoError(t, c.SendQuickReplies(ctx, "u1", "Pizza oder Burger?", []domain.Option{
		{ID: "pizza", Label: "Pizza"},
		{ID: "burger"},
	}))

	assert.Equal(t, "**Willkommen**\n**Pizza oder Burger?**\n  [ Pizza ]\n  [ burger ]\n", out.String())
}

func TestConsole_RendererFailureFallsBack(t *testing.T) {
	var out bytes.Buffer
	c := runner.NewConsole(&out, runner.WithRenderer(func(s string) (string, error) {
		return "", errors.New("no tty")
	}))
	require.NoError(t, c.SendText(context.Background(), "u1", "plain"))
	assert.Equal(t, "plain\n", out.String())
}

func TestConsole_JSON(t *testing.T) {
	var out bytes.Buffer
	c := runner.NewConsole(&out, runner.WithFormat(runner.FormatJSON))
	ctx := context.Background()

	require.NoError(t, c.SendText(ctx, "u1", "hi"))
	require.NoError(t, c.SendQuickReplies(ctx, "u1", "pick", []domain.Option{{ID: "a", Label: "A"}}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"recipient":"u1","text":"hi"}`, lines[0])
	assert.JSONEq(t, `{"recipient":"u1","text":"pick","options":[{"id":"a","label":"A"}]}`, lines[1])
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, runner.IsTerminal(strings.NewReader("")))
	assert.False(t, runner.IsTerminal(&bytes.Buffer{}))
}
