package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/parley/internal/config"
	"github.com/aretw0/parley/pkg/adapters/llm"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/knowledge"
)

const pizzaFlow = `{
  "name": "Pizza",
  "nodes": [
    {"id": "start", "type": "trigger"},
    {"id": "hello", "type": "message", "data": {"config": {"message_text": "Welcome!"}}},
    {"id": "done", "type": "end"}
  ],
  "edges": [
    {"id": "e1", "source": "start", "target": "hello"},
    {"id": "e2", "source": "hello", "target": "done"}
  ]
}`

func testConfig(t *testing.T, extra string) *config.Config {
	t.Helper()
	flowsDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(flowsDir, "pizza.json"), []byte(pizzaFlow), 0o644))

	content := fmt.Sprintf("log:\n  level: error\nflows:\n  dir: %q\nembedding:\n  provider: hash\n%s", flowsDir, extra)
	path := filepath.Join(t.TempDir(), "parley.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestBuild_Memory(t *testing.T) {
	cfg := testConfig(t, "")
	app, err := Build(context.Background(), cfg, NewLogger("error", true))
	require.NoError(t, err)
	defer app.Close()

	bots, err := app.Bot.Bots(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"pizza"}, bots)
	assert.NotNil(t, app.Ingestor)
	assert.NotNil(t, app.Retriever)
}

func TestBuild_SecuredStore(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
	cfg := testConfig(t, fmt.Sprintf("security:\n  encryption_key: %s\n  pii_patterns:\n    - \"^pin$\"\n", key))

	app, err := Build(context.Background(), cfg, NewLogger("error", true))
	require.NoError(t, err)
	defer app.Close()

	ctx := context.Background()
	st := domain.NewConversationState("c-1", "pizza", "c-1", time.Now())
	st.Variables["pin"] = "1234"
	require.NoError(t, app.State.Save(ctx, "c-1", st))

	loaded, err := app.State.Load(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "***", loaded.Variables["pin"])
	assert.Equal(t, "pizza", loaded.BotID)
}

func TestBuild_InvalidPIIPattern(t *testing.T) {
	cfg := testConfig(t, "security:\n  pii_patterns:\n    - \"(\"\n")
	_, err := Build(context.Background(), cfg, NewLogger("error", true))
	assert.Error(t, err)
}

func TestRuntimeDefaults(t *testing.T) {
	cfg := testConfig(t, "llm:\n  provider: openai\n  openai:\n    model: gpt-4o\nruntime:\n  temperature: 0.2\n")
	d := runtimeDefaults(cfg)
	assert.Equal(t, "openai", d.Provider)
	assert.Equal(t, map[string]string{llm.ProviderOpenAI: "gpt-4o"}, d.Models)
	require.NotNil(t, d.Temperature)
	assert.Equal(t, 0.2, *d.Temperature)
	assert.Nil(t, d.MinSimilarity, "left to the built-in default")
	assert.Empty(t, d.SystemPrompt, "left to the built-in default")
}

func TestRuntimeDefaults_ExplicitZero(t *testing.T) {
	cfg := testConfig(t, "runtime:\n  temperature: 0\n  min_similarity: 0\n")
	d := runtimeDefaults(cfg)
	require.NotNil(t, d.Temperature)
	require.NotNil(t, d.MinSimilarity)
	assert.Zero(t, *d.Temperature)
	assert.Zero(t, *d.MinSimilarity)
}

func TestRunChat_JSON(t *testing.T) {
	cfg := testConfig(t, "")
	var out bytes.Buffer
	err := RunChat(context.Background(), cfg, ChatOptions{
		BotID:  "pizza",
		JSON:   true,
		Input:  strings.NewReader("Hallo\n/quit\n"),
		Output: &out,
	})
	require.NoError(t, err)

	var msg struct {
		Recipient string `json:"recipient"`
		Text      string `json:"text"`
	}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out.String())), &msg))
	assert.Equal(t, "Welcome!", msg.Text)
	assert.Equal(t, "console:pizza", msg.Recipient)
}

func TestRunChat_UnknownBot(t *testing.T) {
	cfg := testConfig(t, "")
	err := RunChat(context.Background(), cfg, ChatOptions{
		BotID:  "ghost",
		JSON:   true,
		Input:  strings.NewReader(""),
		Output: &bytes.Buffer{},
	})
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "pizza.json")
	require.NoError(t, os.WriteFile(good, []byte(pizzaFlow), 0o644))
	bad := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"name":"x","nodes":[{"id":"a","type":"message"},{"id":"b","type":"end"}],"edges":[]}`), 0o644))

	var out bytes.Buffer
	require.NoError(t, Validate(good, &out, true))
	assert.Contains(t, out.String(), "pizza.json is valid (3 nodes, 2 edges)")
	assert.Contains(t, out.String(), "graph TD")

	out.Reset()
	err := Validate(bad, &out, false)
	assert.ErrorIs(t, err, ErrInvalidFlow)
	assert.Contains(t, out.String(), "✗")

	assert.Error(t, Validate(filepath.Join(dir, "missing.json"), &out, false))
}

func TestIngest_Text(t *testing.T) {
	cfg := testConfig(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	err := Ingest(ctx, cfg, IngestOptions{
		Owner: knowledge.Owner{BotID: "pizza"},
		Title: "Hours",
		Text:  "Unsere Pizzeria hat montags geschlossen.",
	}, &out)
	require.NoError(t, err)

	var src domain.KnowledgeSource
	require.NoError(t, json.Unmarshal(out.Bytes(), &src))
	assert.Equal(t, domain.SourceReady, src.Status)
	assert.Equal(t, "pizza", src.BotID)
}

func TestContentTypeOf(t *testing.T) {
	assert.Equal(t, "application/pdf", contentTypeOf("menu.pdf"))
	assert.Equal(t, "application/octet-stream", contentTypeOf("blob"))
}
