// Package tests holds reusable contract suites for adapters of the ports package.
package tests

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStateStoreContract verifies that a StateStore implementation adheres to the interface contract.
func RunStateStoreContract(t *testing.T, store ports.StateStore) {
	t.Helper()
	ctx := context.Background()
	conversationID := "contract-" + uuid.NewString()

	t.Run("Save and Load", func(t *testing.T) {
		state := domain.NewConversationState(conversationID, "bot-1", "+4915100000000", time.Now().UTC())
		state.CurrentNodeID = "ask"
		state.Status = domain.StatusSuspended
		state.Suspension = &domain.Suspension{
			NodeID:  "ask",
			Options: domain.Options{{ID: "yes", Label: "Pizza"}, {ID: "no", Label: "Burger"}},
		}
		state.SetVariable("foo", "bar")
		state.SetVariable("count", 42)
		state.History = append(state.History, domain.HistoryEntry{NodeID: "start", Timestamp: time.Now().UTC()})

		require.NoError(t, store.Save(ctx, conversationID, state))

		loaded, err := store.Load(ctx, conversationID)
		require.NoError(t, err)
		assert.Equal(t, "ask", loaded.CurrentNodeID)
		assert.Equal(t, domain.StatusSuspended, loaded.Status)
		require.NotNil(t, loaded.Suspension)
		assert.Equal(t, "ask", loaded.Suspension.NodeID)
		assert.Len(t, loaded.Suspension.Options, 2)
		assert.Equal(t, "bar", loaded.Variables["foo"])
		// JSON backed stores turn numbers into float64.
		assert.NotNil(t, loaded.Variables["count"])
		assert.Len(t, loaded.History, 1)
	})

	t.Run("Save does not alias caller state", func(t *testing.T) {
		state := domain.NewConversationState(conversationID, "bot-1", "+4915100000000", time.Now().UTC())
		state.SetVariable("k", "before")
		require.NoError(t, store.Save(ctx, conversationID, state))

		state.Variables["k"] = "after"
		loaded, err := store.Load(ctx, conversationID)
		require.NoError(t, err)
		assert.Equal(t, "before", loaded.Variables["k"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "missing-"+conversationID)
		assert.ErrorIs(t, err, domain.ErrConversationNotFound)
	})

	t.Run("List", func(t *testing.T) {
		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, conversationID)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, conversationID))
		_, err := store.Load(ctx, conversationID)
		assert.ErrorIs(t, err, domain.ErrConversationNotFound)
	})
}

// RunFlowRepositoryContract verifies a FlowRepository already seeded with the
// flow of botID, which must contain a trigger node.
func RunFlowRepositoryContract(t *testing.T, repo ports.FlowRepository, botID string) {
	t.Helper()
	ctx := context.Background()

	t.Run("Load", func(t *testing.T) {
		flow, err := repo.Load(ctx, botID)
		require.NoError(t, err)
		assert.NotEmpty(t, flow.Nodes)
		_, ok := flow.Trigger()
		assert.True(t, ok, "seeded flow should have a trigger")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := repo.Load(ctx, "missing-"+uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrFlowNotFound)
	})

	t.Run("List", func(t *testing.T) {
		ids, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, botID)
	})
}

// RunConversationLogContract verifies a ConversationLog implementation.
func RunConversationLogContract(t *testing.T, log ports.ConversationLog) {
	t.Helper()
	ctx := context.Background()
	id := "contract-" + uuid.NewString()

	t.Run("Touch and Complete", func(t *testing.T) {
		_, err := log.Conversation(ctx, id)
		assert.ErrorIs(t, err, domain.ErrConversationNotFound)

		require.NoError(t, log.Touch(ctx, domain.ConversationRecord{ID: id, BotID: "bot-1", Recipient: "+49"}))
		rec, err := log.Conversation(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusActive, rec.Status)

		require.NoError(t, log.MarkCompleted(ctx, id))
		require.NoError(t, log.MarkCompleted(ctx, id), "completion is idempotent")
		rec, err = log.Conversation(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, rec.Status)

		require.NoError(t, log.Touch(ctx, domain.ConversationRecord{ID: id, BotID: "bot-1", Recipient: "+49"}))
		rec, err = log.Conversation(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusActive, rec.Status, "a new message reopens the conversation")
	})

	t.Run("Messages", func(t *testing.T) {
		base := time.Now().UTC().Truncate(time.Millisecond)
		for i, text := range []string{"hi", "hello", "bye"} {
			dir := domain.Inbound
			if i%2 == 1 {
				dir = domain.Outbound
			}
			require.NoError(t, log.AppendMessage(ctx, domain.MessageRecord{
				ID:             uuid.NewString(),
				ConversationID: id,
				BotID:          "bot-1",
				Direction:      dir,
				Text:           text,
				Timestamp:      base.Add(time.Duration(i) * time.Second),
			}))
		}

		msgs, err := log.Messages(ctx, id, 2)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "hello", msgs[0].Text)
		assert.Equal(t, domain.Outbound, msgs[0].Direction)
		assert.Equal(t, "bye", msgs[1].Text)
	})
}

// RunKnowledgeStoreContract verifies a KnowledgeStore implementation, including
// the cosine similarity search primitive.
func RunKnowledgeStoreContract(t *testing.T, store ports.KnowledgeStore) {
	t.Helper()
	ctx := context.Background()
	botID := "bot-" + uuid.NewString()

	ready := &domain.KnowledgeSource{ID: uuid.NewString(), BotID: botID, Type: domain.SourceText, Title: "ready", Status: domain.SourceProcessing}
	pending := &domain.KnowledgeSource{ID: uuid.NewString(), BotID: botID, Type: domain.SourceText, Title: "pending", Status: domain.SourceProcessing}

	t.Run("Sources", func(t *testing.T) {
		require.NoError(t, store.CreateSource(ctx, ready))
		require.NoError(t, store.CreateSource(ctx, pending))

		_, err := store.GetSource(ctx, "missing-"+uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrSourceNotFound)

		require.NoError(t, store.UpdateSource(ctx, ready.ID, domain.SourceReady, map[string]any{domain.MetaChunkCount: 3}))
		require.NoError(t, store.UpdateSource(ctx, ready.ID, domain.SourceReady, map[string]any{domain.MetaTextLength: 120}))
		got, err := store.GetSource(ctx, ready.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SourceReady, got.Status)
		assert.Contains(t, got.Metadata, domain.MetaChunkCount, "metadata is merged")
		assert.Contains(t, got.Metadata, domain.MetaTextLength)

		list, err := store.ListSources(ctx, ports.SourceFilter{BotID: botID, Status: domain.SourceReady})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, ready.ID, list[0].ID)
	})

	chunks := []domain.DocumentChunk{
		{ID: uuid.NewString(), SourceID: ready.ID, Index: 0, Content: "alpha"},
		{ID: uuid.NewString(), SourceID: ready.ID, Index: 1, Content: "beta"},
		{ID: uuid.NewString(), SourceID: ready.ID, Index: 2, Content: "gamma"},
		{ID: uuid.NewString(), SourceID: pending.ID, Index: 0, Content: "hidden"},
	}

	t.Run("Chunks", func(t *testing.T) {
		require.NoError(t, store.InsertChunks(ctx, chunks))

		todo, err := store.PendingChunks(ctx, ready.ID, 2)
		require.NoError(t, err)
		require.Len(t, todo, 2)
		assert.Equal(t, 0, todo[0].Index)
		assert.Equal(t, 1, todo[1].Index)

		require.NoError(t, store.SetEmbedding(ctx, chunks[0].ID, []float32{1, 0, 0}, nil))
		require.NoError(t, store.SetEmbedding(ctx, chunks[1].ID, []float32{0.8, 0.6, 0}, map[string]any{"k": "v"}))
		require.NoError(t, store.SetEmbedding(ctx, chunks[2].ID, []float32{0, 1, 0}, nil))
		require.NoError(t, store.SetEmbedding(ctx, chunks[3].ID, []float32{1, 0, 0}, nil))

		todo, err = store.PendingChunks(ctx, ready.ID, 50)
		require.NoError(t, err)
		assert.Empty(t, todo)
	})

	t.Run("Search", func(t *testing.T) {
		hits, err := store.Search(ctx, domain.SearchQuery{
			Vector:        []float32{1, 0, 0},
			SourceIDs:     []string{ready.ID, pending.ID},
			TopK:          5,
			MinSimilarity: 0.5,
		})
		require.NoError(t, err)
		require.Len(t, hits, 2, "not-ready sources and low scores are excluded")
		assert.Equal(t, "alpha", hits[0].Content)
		assert.Equal(t, "beta", hits[1].Content)
		assert.InDelta(t, 1.0, hits[0].Similarity, 1e-4)
		assert.InDelta(t, 0.8, hits[1].Similarity, 1e-4)

		hits, err = store.Search(ctx, domain.SearchQuery{Vector: []float32{1, 0, 0}, SourceIDs: []string{ready.ID}, TopK: 1})
		require.NoError(t, err)
		assert.Len(t, hits, 1)

		hits, err = store.Search(ctx, domain.SearchQuery{Vector: []float32{1, 0, 0}, TopK: 5})
		require.NoError(t, err)
		assert.Empty(t, hits, "no source ids means no results")
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.DeleteSource(ctx, ready.ID))
		_, err := store.GetSource(ctx, ready.ID)
		assert.ErrorIs(t, err, domain.ErrSourceNotFound)

		hits, err := store.Search(ctx, domain.SearchQuery{Vector: []float32{1, 0, 0}, SourceIDs: []string{ready.ID}, TopK: 5})
		require.NoError(t, err)
		assert.Empty(t, hits)
		require.NoError(t, store.DeleteSource(ctx, pending.ID))
	})
}
