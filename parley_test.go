package parley_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/dsl"
	"github.com/aretw0/parley/pkg/observability"
	"github.com/aretw0/parley/pkg/runner"
)

func pizzaFlow(keyword string) *domain.Flow {
	b := dsl.New("pizza", "Pizza")
	start := b.Add("start").Trigger()
	if keyword != "" {
		start.Keyword(keyword)
	}
	start.Go("hello")
	b.Add("hello").Message("Hi").Go("ask")
	b.Add("ask").
		Question("Pizza or burger?", dsl.Opt("yes", "Pizza"), dsl.Opt("no", "Burger")).
		Branch("yes", "pizza").
		Branch("no", "burger")
	b.Add("pizza").Message("Pizza it is").Go("bye")
	b.Add("burger").Message("Burger it is").Go("bye")
	b.Add("bye").End()
	return b.MustBuild()
}

func newBot(t *testing.T, outbox *memory.Outbox, flows ...*domain.Flow) *parley.Bot {
	t.Helper()
	bot, err := parley.New("", parley.WithFlows(memory.NewFlowRepository(flows...)), parley.WithMessenger(outbox))
	require.NoError(t, err)
	return bot
}

func TestBot_PizzaScenario(t *testing.T) {
	outbox := memory.NewOutbox()
	bot := newBot(t, outbox, pizzaFlow(""))
	ctx := context.Background()

	res, err := bot.HandleMessage(ctx, parley.Inbound{BotID: "pizza", ConversationID: "c-1", Text: "Hallo"})
	require.NoError(t, err)
	assert.Equal(t, parley.OutcomeSuspended, res.Outcome)
	assert.True(t, res.Created)
	assert.Equal(t, []string{"Hi", "Pizza or burger?"}, outbox.Texts())
	assert.Equal(t, "c-1", outbox.Messages()[0].Recipient, "recipient defaults to the conversation id")

	outbox.Reset()
	res, err = bot.HandleMessage(ctx, parley.Inbound{BotID: "pizza", ConversationID: "c-1", Text: "pizza"})
	require.NoError(t, err)
	assert.Equal(t, parley.OutcomeCompleted, res.Outcome)
	assert.False(t, res.Created)
	assert.Equal(t, []string{"Pizza it is"}, outbox.Texts())

	st, err := bot.Conversation(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, st.Status)

	record, err := bot.Record(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "pizza", record.BotID)

	msgs, err := bot.Messages(ctx, "c-1", 0)
	require.NoError(t, err)
	var inbound []string
	for _, m := range msgs {
		if m.Direction == domain.Inbound {
			inbound = append(inbound, m.Text)
		}
	}
	assert.Equal(t, []string{"Hallo", "pizza"}, inbound)
	assert.Len(t, msgs, 5)
}

func TestBot_KeywordTriggerIgnoresOtherMessages(t *testing.T) {
	outbox := memory.NewOutbox()
	bot := newBot(t, outbox, pizzaFlow("menu"))
	ctx := context.Background()

	res, err := bot.HandleMessage(ctx, parley.Inbound{BotID: "pizza", ConversationID: "c-1", Text: "Hallo"})
	require.NoError(t, err)
	assert.Equal(t, parley.OutcomeIgnored, res.Outcome)
	assert.Empty(t, outbox.Texts())

	_, err = bot.Conversation(ctx, "c-1")
	assert.ErrorIs(t, err, domain.ErrConversationNotFound, "ignored messages do not create state")

	res, err = bot.HandleMessage(ctx, parley.Inbound{BotID: "pizza", ConversationID: "c-1", Text: "Das MENU bitte"})
	require.NoError(t, err)
	assert.Equal(t, parley.OutcomeSuspended, res.Outcome)

	// a pending question is answered regardless of the keyword
	res, err = bot.HandleMessage(ctx, parley.Inbound{BotID: "pizza", ConversationID: "c-1", Text: "burger"})
	require.NoError(t, err)
	assert.Equal(t, parley.OutcomeCompleted, res.Outcome)
}

func TestBot_RejectsBadInput(t *testing.T) {
	outbox := memory.NewOutbox()
	ctx := context.Background()
	bot, err := parley.New("",
		parley.WithFlows(memory.NewFlowRepository(pizzaFlow(""))),
		parley.WithMessenger(outbox),
		parley.WithMaxInputSize(10),
	)
	require.NoError(t, err)

	_, err = bot.HandleMessage(ctx, parley.Inbound{BotID: "pizza", Text: "hi"})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = bot.HandleMessage(ctx, parley.Inbound{BotID: "pizza", ConversationID: "c-1", Text: strings.Repeat("x", 11)})
	assert.ErrorIs(t, err, runner.ErrInputTooLarge)

	_, err = bot.HandleMessage(ctx, parley.Inbound{BotID: "ghost", ConversationID: "c-1", Text: "hi"})
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)
	assert.Empty(t, outbox.Texts())
}

func TestBot_InvalidFlow(t *testing.T) {
	b := dsl.New("broken", "Broken")
	b.Add("hello").Message("Hi")
	bot := newBot(t, memory.NewOutbox(), b.Flow())

	_, err := bot.HandleMessage(context.Background(), parley.Inbound{BotID: "broken", ConversationID: "c-1", Text: "hi"})
	assert.ErrorIs(t, err, domain.ErrInvalidFlow)
}

func TestNew_RequiresMessenger(t *testing.T) {
	_, err := parley.New("", parley.WithFlows(memory.NewFlowRepository()))
	assert.Error(t, err)

	_, err = parley.New("", parley.WithMessenger(memory.NewOutbox()))
	assert.Error(t, err, "a flow path or repository is required")
}

// slowMessenger records the highest number of concurrent sends per recipient.
type slowMessenger struct {
	mu       sync.Mutex
	inflight map[string]int
	peak     int32
	sent     atomic.Int32
}

func (m *slowMessenger) enter(recipient string) {
	m.mu.Lock()
	m.inflight[recipient]++
	if n := int32(m.inflight[recipient]); n > atomic.LoadInt32(&m.peak) {
		atomic.StoreInt32(&m.peak, n)
	}
	m.mu.Unlock()

	time.Sleep(2 * time.Millisecond)

	m.mu.Lock()
	m.inflight[recipient]--
	m.mu.Unlock()
	m.sent.Add(1)
}

func (m *slowMessenger) SendText(ctx context.Context, recipient, text string) error {
	m.enter(recipient)
	return nil
}

func (m *slowMessenger) SendQuickReplies(ctx context.Context, recipient, text string, options []domain.Option) error {
	m.enter(recipient)
	return nil
}

func TestBot_SerializesConversation(t *testing.T) {
	b := dsl.New("echo", "Echo")
	b.Add("start").Trigger().Go("hello")
	b.Add("hello").Message("Hi").Go("bye")
	b.Add("bye").End()

	messenger := &slowMessenger{inflight: make(map[string]int)}
	bot, err := parley.New("", parley.WithFlows(memory.NewFlowRepository(b.MustBuild())), parley.WithMessenger(messenger))
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := bot.HandleMessage(context.Background(), parley.Inbound{
				BotID:          "echo",
				ConversationID: "c-1",
				Text:           fmt.Sprintf("msg %d", i),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.EqualValues(t, n, messenger.sent.Load())
	assert.EqualValues(t, 1, atomic.LoadInt32(&messenger.peak), "passes of one conversation never overlap")
}

func TestBot_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	bot, err := parley.New("",
		parley.WithFlows(memory.NewFlowRepository(pizzaFlow("menu"))),
		parley.WithMessenger(memory.NewOutbox()),
		parley.WithMetrics(observability.NewMetrics(reg)),
	)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = bot.HandleMessage(ctx, parley.Inbound{BotID: "pizza", ConversationID: "c-1", Text: "menu"})
	require.NoError(t, err)
	_, err = bot.HandleMessage(ctx, parley.Inbound{BotID: "pizza", ConversationID: "c-2", Text: "nope"})
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "parley_passes_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per outcome")

	count, err = testutil.GatherAndCount(reg, "parley_node_visits_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count, "trigger, message and question were visited")
}

func TestBot_LoamFlows(t *testing.T) {
	dir := t.TempDir()
	flow := `{
  "name": "Greeter",
  "nodes": [
    {"id": "start", "type": "trigger"},
    {"id": "hello", "type": "message", "data": {"config": {"message_text": "Willkommen!"}}},
    {"id": "bye", "type": "end"}
  ],
  "edges": [
    {"id": "e1", "source": "start", "target": "hello"},
    {"id": "e2", "source": "hello", "target": "bye"}
  ]
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "greeter.json"), []byte(flow), 0644))

	outbox := memory.NewOutbox()
	bot, err := parley.New(dir, parley.WithMessenger(outbox))
	require.NoError(t, err)

	bots, err := bot.Bots(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"greeter"}, bots)

	res, err := bot.HandleMessage(context.Background(), parley.Inbound{BotID: "greeter", ConversationID: "c-1", Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, parley.OutcomeCompleted, res.Outcome)
	assert.Equal(t, []string{"Willkommen!"}, outbox.Texts())
}
