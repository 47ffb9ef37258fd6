package tui_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/parley/internal/presentation/tui"
)

func TestPrintBanner(t *testing.T) {
	var out bytes.Buffer
	tui.PrintBanner(&out, "flows: ./flows")
	assert.Contains(t, out.String(), "|___/")
	assert.Contains(t, out.String(), "flows: ./flows")
}

func TestNewRenderer(t *testing.T) {
	render := tui.NewRenderer(60)
	out, err := render("Hallo **Welt**")
	require.NoError(t, err)
	assert.Contains(t, out, "Welt")
}
