package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/chunker"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/extract"
	"github.com/aretw0/parley/pkg/observability"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/google/uuid"
)

// Ingestion defaults.
const (
	DefaultChunkSize       = chunker.DefaultSize
	DefaultChunkOverlap    = chunker.DefaultOverlap
	DefaultInsertBatchSize = 50
	DefaultProcessTimeout  = 60 * time.Second
)

// Owner scopes a knowledge source. At least one field must be set.
type Owner struct {
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	BotID     string `json:"bot_id,omitempty"`
}

func (o Owner) validate() error {
	if o.UserID == "" && o.SessionID == "" && o.BotID == "" {
		return fmt.Errorf("%w: source needs a user, session or bot owner", domain.ErrInvalidConfig)
	}
	return nil
}

// TextRequest ingests raw text.
type TextRequest struct {
	Owner
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

// URLRequest ingests the readable text of a web page.
type URLRequest struct {
	Owner
	URL string `json:"url"`
}

// FileRequest ingests an uploaded PDF or text file.
type FileRequest struct {
	Owner
	FileName    string
	ContentType string
	Data        []byte
}

// PageFetcher downloads and extracts a web page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (extract.Page, error)
}

// extraction produces the text of a source and extra metadata.
type extraction func(ctx context.Context) (string, map[string]any, error)

// Ingestor validates ingestion requests and processes sources in the background.
type Ingestor struct {
	store       ports.KnowledgeStore
	indexer     *Indexer
	fetcher     PageFetcher
	chunkSize   int
	overlap     int
	insertBatch int
	timeout     time.Duration
	logger      *slog.Logger
	metrics     *observability.Metrics
	now         func() time.Time

	wg sync.WaitGroup
}

// IngestorOption configures an Ingestor.
type IngestorOption func(*Ingestor)

// WithChunking sets the chunk size and overlap in characters.
func WithChunking(size, overlap int) IngestorOption {
	return func(in *Ingestor) {
		in.chunkSize = size
		in.overlap = overlap
	}
}

// WithInsertBatchSize sets how many chunks are written per store call.
func WithInsertBatchSize(n int) IngestorOption {
	return func(in *Ingestor) {
		if n > 0 {
			in.insertBatch = n
		}
	}
}

// WithProcessTimeout bounds extraction, chunking and storage of one source.
func WithProcessTimeout(d time.Duration) IngestorOption {
	return func(in *Ingestor) {
		in.timeout = d
	}
}

// WithFetcher replaces the web page fetcher.
func WithFetcher(f PageFetcher) IngestorOption {
	return func(in *Ingestor) {
		in.fetcher = f
	}
}

// WithIngestorLogger sets the logger.
func WithIngestorLogger(logger *slog.Logger) IngestorOption {
	return func(in *Ingestor) {
		in.logger = logger
	}
}

// WithIngestorMetrics records finished ingestions.
func WithIngestorMetrics(m *observability.Metrics) IngestorOption {
	return func(in *Ingestor) {
		in.metrics = m
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) IngestorOption {
	return func(in *Ingestor) {
		in.now = now
	}
}

// NewIngestor creates an Ingestor. A nil indexer leaves chunks unembedded.
func NewIngestor(store ports.KnowledgeStore, indexer *Indexer, opts ...IngestorOption) *Ingestor {
	in := &Ingestor{
		store:       store,
		indexer:     indexer,
		fetcher:     extract.NewFetcher(),
		chunkSize:   DefaultChunkSize,
		overlap:     DefaultChunkOverlap,
		insertBatch: DefaultInsertBatchSize,
		timeout:     DefaultProcessTimeout,
		logger:      logging.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// IngestText stores a processing source for raw text and returns it immediately.
func (in *Ingestor) IngestText(ctx context.Context, req TextRequest) (*domain.KnowledgeSource, error) {
	if err := req.Owner.validate(); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, domain.ErrEmptyDocument
	}
	title := req.Title
	if title == "" {
		title = Truncate(text, 50)
	}

	src, err := in.create(ctx, req.Owner, domain.SourceText, title, nil)
	if err != nil {
		return nil, err
	}
	in.start(ctx, src, func(context.Context) (string, map[string]any, error) {
		return text, nil, nil
	})
	return src, nil
}

// IngestURL stores a processing source for a web page and fetches it in the background.
func (in *Ingestor) IngestURL(ctx context.Context, req URLRequest) (*domain.KnowledgeSource, error) {
	if err := req.Owner.validate(); err != nil {
		return nil, err
	}
	u, err := extract.ValidateURL(strings.TrimSpace(req.URL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnsupportedSource, err)
	}
	target := u.String()

	src, err := in.create(ctx, req.Owner, domain.SourceURL, u.Host, map[string]any{domain.MetaURL: target})
	if err != nil {
		return nil, err
	}
	in.start(ctx, src, func(ctx context.Context) (string, map[string]any, error) {
		page, err := in.fetcher.Fetch(ctx, target)
		if err != nil {
			return "", nil, err
		}
		meta := map[string]any{}
		if page.Title != "" {
			meta[domain.MetaTitle] = page.Title
		}
		if page.Description != "" {
			meta[domain.MetaDescription] = page.Description
		}
		return page.Text, meta, nil
	})
	return src, nil
}

// IngestFile stores a processing source for a PDF or text upload.
// Other content types are rejected with domain.ErrUnsupportedSource.
func (in *Ingestor) IngestFile(ctx context.Context, req FileRequest) (*domain.KnowledgeSource, error) {
	if err := req.Owner.validate(); err != nil {
		return nil, err
	}
	if len(req.Data) == 0 {
		return nil, domain.ErrEmptyDocument
	}

	var (
		typ domain.SourceType
		fn  extraction
	)
	switch fileKind(req.FileName, req.ContentType) {
	case "pdf":
		typ = domain.SourcePDF
		fn = func(context.Context) (string, map[string]any, error) {
			text, pages, err := extract.PDF(req.Data)
			if err != nil {
				return "", nil, err
			}
			return text, map[string]any{domain.MetaPageCount: pages}, nil
		}
	case "text":
		typ = domain.SourceText
		fn = func(context.Context) (string, map[string]any, error) {
			text, err := extract.PlainText(req.Data)
			return text, nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s (%s)", domain.ErrUnsupportedSource, req.FileName, req.ContentType)
	}

	title := req.FileName
	if title == "" {
		title = string(typ)
	}
	src, err := in.create(ctx, req.Owner, typ, title, map[string]any{domain.MetaFileName: req.FileName})
	if err != nil {
		return nil, err
	}
	in.start(ctx, src, fn)
	return src, nil
}

// Reindex embeds the pending chunks of a source and waits for the result.
func (in *Ingestor) Reindex(ctx context.Context, sourceID string) (Report, error) {
	if in.indexer == nil {
		return Report{}, errors.New("no indexer configured")
	}
	if _, err := in.store.GetSource(ctx, sourceID); err != nil {
		return Report{}, err
	}
	return in.indexer.Index(ctx, sourceID)
}

// ReindexAsync checks the source exists and reindexes it in the background.
func (in *Ingestor) ReindexAsync(ctx context.Context, sourceID string) error {
	if in.indexer == nil {
		return errors.New("no indexer configured")
	}
	if _, err := in.store.GetSource(ctx, sourceID); err != nil {
		return err
	}
	in.wg.Add(1)
	go func() {
		defer in.wg.Done()
		if _, err := in.indexer.Index(context.WithoutCancel(ctx), sourceID); err != nil {
			in.logger.Error("reindex failed", "source_id", sourceID, "err", err)
		}
	}()
	return nil
}

// Delete removes a source and its chunks.
func (in *Ingestor) Delete(ctx context.Context, sourceID string) error {
	return in.store.DeleteSource(ctx, sourceID)
}

// Source returns a source by ID.
func (in *Ingestor) Source(ctx context.Context, sourceID string) (*domain.KnowledgeSource, error) {
	return in.store.GetSource(ctx, sourceID)
}

// Wait blocks until all background work has finished or ctx is done.
func (in *Ingestor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		in.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (in *Ingestor) create(ctx context.Context, owner Owner, typ domain.SourceType, title string, meta map[string]any) (*domain.KnowledgeSource, error) {
	now := in.now()
	src := &domain.KnowledgeSource{
		ID:        uuid.NewString(),
		UserID:    owner.UserID,
		SessionID: owner.SessionID,
		BotID:     owner.BotID,
		Type:      typ,
		Title:     title,
		Status:    domain.SourceProcessing,
		Metadata:  meta,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := in.store.CreateSource(ctx, src); err != nil {
		return nil, fmt.Errorf("failed to create source: %w", err)
	}
	in.logger.Info("source accepted", "source_id", src.ID, "type", typ)
	return src, nil
}

// start runs extraction, chunking and indexing detached from the request context.
// A crash leaves the source in processing; recovering such sources is left to the operator.
func (in *Ingestor) start(ctx context.Context, src *domain.KnowledgeSource, fn extraction) {
	base := context.WithoutCancel(ctx)
	in.wg.Add(1)
	go func() {
		defer in.wg.Done()

		pctx, cancel := context.WithTimeout(base, in.timeout)
		err := in.process(pctx, src, fn)
		cancel()
		if err != nil {
			in.fail(base, src, err)
			return
		}
		in.metrics.ObserveIngestion(src.Type, domain.SourceReady)

		if in.indexer != nil {
			if _, err := in.indexer.Index(base, src.ID); err != nil {
				in.logger.Error("indexing failed", "source_id", src.ID, "err", err)
			}
		}
	}()
}

func (in *Ingestor) process(ctx context.Context, src *domain.KnowledgeSource, fn extraction) error {
	text, meta, err := fn(ctx)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ErrEmptyDocument
	}

	parts := chunker.Split(text, in.chunkSize, in.overlap)
	if len(parts) == 0 {
		return domain.ErrEmptyDocument
	}
	chunks := make([]domain.DocumentChunk, len(parts))
	for i, p := range parts {
		chunks[i] = domain.DocumentChunk{
			ID:       uuid.NewString(),
			SourceID: src.ID,
			Index:    i,
			Content:  p,
		}
	}

	for start := 0; start < len(chunks); start += in.insertBatch {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("ingestion timed out: %w", err)
		}
		end := min(start+in.insertBatch, len(chunks))
		if err := in.store.InsertChunks(ctx, chunks[start:end]); err != nil {
			return fmt.Errorf("failed to store chunks: %w", err)
		}
	}

	if meta == nil {
		meta = map[string]any{}
	}
	meta[domain.MetaTextLength] = len([]rune(text))
	meta[domain.MetaChunkCount] = len(chunks)
	meta[domain.MetaProcessedAt] = in.now().UTC().Format(time.RFC3339)
	if err := in.store.UpdateSource(ctx, src.ID, domain.SourceReady, meta); err != nil {
		return fmt.Errorf("failed to mark source ready: %w", err)
	}
	in.logger.Info("source ready", "source_id", src.ID, "chunks", len(chunks))
	return nil
}

func (in *Ingestor) fail(ctx context.Context, src *domain.KnowledgeSource, cause error) {
	in.logger.Warn("ingestion failed", "source_id", src.ID, "err", cause)
	in.metrics.ObserveIngestion(src.Type, domain.SourceError)
	meta := map[string]any{domain.MetaError: cause.Error()}
	if err := in.store.UpdateSource(ctx, src.ID, domain.SourceError, meta); err != nil {
		in.logger.Error("failed to record ingestion error", "source_id", src.ID, "err", err)
	}
}

func fileKind(name, contentType string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch {
		case mt == "application/pdf":
			return "pdf"
		case strings.HasPrefix(mt, "text/"):
			return "text"
		}
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "pdf"
	case ".txt", ".md", ".markdown", ".csv":
		return "text"
	}
	return ""
}
