package knowledge_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/extract"
	"github.com/aretw0/parley/pkg/knowledge"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIngestor(store *memory.KnowledgeStore, opts ...knowledge.IngestorOption) *knowledge.Ingestor {
	ix := knowledge.NewIndexer(store, &keywordEmbedder{})
	return knowledge.NewIngestor(store, ix, opts...)
}

func wait(t *testing.T, in *knowledge.Ingestor) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, in.Wait(ctx))
}

func TestIngestor_Text(t *testing.T) {
	store := memory.NewKnowledgeStore()
	in := newIngestor(store)
	ctx := context.Background()

	text := strings.Repeat("pizza ", 333) // 1998 characters
	src, err := in.IngestText(ctx, knowledge.TextRequest{Owner: knowledge.Owner{BotID: "bot-1"}, Title: "Menu", Text: text})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceProcessing, src.Status)
	wait(t, in)

	got, err := store.GetSource(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceReady, got.Status)
	assert.Equal(t, 3, got.Metadata[domain.MetaChunkCount])
	assert.Equal(t, 1997, got.Metadata[domain.MetaTextLength])
	assert.NotEmpty(t, got.Metadata[domain.MetaProcessedAt])

	pending, err := store.PendingChunks(ctx, src.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, pending, "all chunks embedded")

	hits, err := knowledge.NewRetriever(store, &keywordEmbedder{}).RetrieveForBot(ctx, "bot-1", "pizza", 5, 0.7)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestIngestor_Validation(t *testing.T) {
	in := newIngestor(memory.NewKnowledgeStore())
	ctx := context.Background()

	_, err := in.IngestText(ctx, knowledge.TextRequest{Text: "orphan"})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = in.IngestText(ctx, knowledge.TextRequest{Owner: knowledge.Owner{UserID: "u"}, Text: "   "})
	assert.ErrorIs(t, err, domain.ErrEmptyDocument)

	_, err = in.IngestURL(ctx, knowledge.URLRequest{Owner: knowledge.Owner{UserID: "u"}, URL: "file:///etc/passwd"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedSource)

	_, err = in.IngestFile(ctx, knowledge.FileRequest{Owner: knowledge.Owner{UserID: "u"}, FileName: "a.docx", ContentType: "application/msword", Data: []byte("x")})
	assert.ErrorIs(t, err, domain.ErrUnsupportedSource)

	_, err = in.IngestFile(ctx, knowledge.FileRequest{Owner: knowledge.Owner{UserID: "u"}, FileName: "a.txt"})
	assert.ErrorIs(t, err, domain.ErrEmptyDocument)
	wait(t, in)
}

func TestIngestor_URL(t *testing.T) {
	body := "<html><head><title>Opening hours</title><meta name=\"description\" content=\"When we bake\"></head><body><nav>menu</nav><p>" +
		strings.Repeat("Fresh pizza every day. ", 10) + "</p></body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	store := memory.NewKnowledgeStore()
	in := newIngestor(store, knowledge.WithFetcher(extract.NewFetcher(extract.WithHTTPClient(srv.Client()))))
	ctx := context.Background()

	src, err := in.IngestURL(ctx, knowledge.URLRequest{Owner: knowledge.Owner{BotID: "bot-1"}, URL: srv.URL + "/hours"})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceURL, src.Type)
	wait(t, in)

	got, err := store.GetSource(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceReady, got.Status)
	assert.Equal(t, "Opening hours", got.Metadata[domain.MetaTitle])
	assert.Equal(t, "When we bake", got.Metadata[domain.MetaDescription])
	assert.Equal(t, srv.URL+"/hours", got.Metadata[domain.MetaURL])
}

func TestIngestor_FailureRecordsCause(t *testing.T) {
	store := memory.NewKnowledgeStore()
	in := newIngestor(store)
	ctx := context.Background()

	src, err := in.IngestFile(ctx, knowledge.FileRequest{
		Owner:       knowledge.Owner{SessionID: "s-1"},
		FileName:    "menu.pdf",
		ContentType: "application/pdf",
		Data:        []byte("not really a pdf"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SourcePDF, src.Type)
	wait(t, in)

	got, err := store.GetSource(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceError, got.Status)
	assert.Contains(t, got.Metadata[domain.MetaError], "extraction failed")

	sources, err := store.ListSources(ctx, ports.SourceFilter{SessionID: "s-1", Status: domain.SourceError})
	require.NoError(t, err)
	assert.Len(t, sources, 1)
}

func TestIngestor_TextFileReindexAndDelete(t *testing.T) {
	store := memory.NewKnowledgeStore()
	in := knowledge.NewIngestor(store, knowledge.NewIndexer(store, &keywordEmbedder{fail: "burger"}))
	ctx := context.Background()

	src, err := in.IngestFile(ctx, knowledge.FileRequest{
		Owner:    knowledge.Owner{BotID: "bot-1"},
		FileName: "menu.md",
		Data:     []byte("We sell burger and salad."),
	})
	require.NoError(t, err)
	wait(t, in)

	pending, err := store.PendingChunks(ctx, src.ID, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1, "failed chunk stays pending")

	healed := knowledge.NewIngestor(store, knowledge.NewIndexer(store, &keywordEmbedder{}))
	rep, err := healed.Reindex(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Embedded)

	_, err = healed.Reindex(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)

	require.NoError(t, healed.Delete(ctx, src.ID))
	_, err = healed.Source(ctx, src.ID)
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
}
