package gemini_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/parley/pkg/adapters/gemini"
	"github.com/aretw0/parley/pkg/ports"
)

func TestCompleter_Complete(t *testing.T) {
	var path string
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates": [{"content": {"role": "model", "parts": [{"text": "Hallo! "}]}, "finishReason": "STOP"}]}`)
	}))
	defer srv.Close()

	ctx := context.Background()
	c, err := gemini.New(ctx, "test-key", gemini.WithBaseURL(srv.URL))
	require.NoError(t, err)

	out, err := c.Complete(ctx, ports.CompletionRequest{System: "Sei nett.", User: "Hi", Temperature: 0.7, MaxTokens: 100})
	require.NoError(t, err)
	assert.Equal(t, "Hallo!", out)

	assert.True(t, strings.HasSuffix(path, "models/gemini-2.0-flash:generateContent"), path)
	assert.Contains(t, body, "systemInstruction")
	genCfg, ok := body["generationConfig"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 100, genCfg["maxOutputTokens"])
}

func TestCompleter_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates": []}`)
	}))
	defer srv.Close()

	ctx := context.Background()
	c, err := gemini.New(ctx, "test-key", gemini.WithBaseURL(srv.URL), gemini.WithModel("gemini-1.5-pro"))
	require.NoError(t, err)

	_, err = c.Complete(ctx, ports.CompletionRequest{User: "Hi"})
	assert.ErrorIs(t, err, gemini.ErrEmptyResponse)
}
