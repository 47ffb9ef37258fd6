package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/aretw0/parley/internal/config"
	"github.com/aretw0/parley/internal/presentation/graph"
	"github.com/aretw0/parley/internal/validator"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/knowledge"
)

// ErrInvalidFlow is returned by Validate when the document has issues.
var ErrInvalidFlow = errors.New("flow document is invalid")

// Validate checks a flow document file and writes the report to w.
func Validate(path string, w io.Writer, mermaid bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read flow document: %w", err)
	}
	report := validator.CheckDocument(data)
	if !report.Valid {
		for _, issue := range report.Issues {
			fmt.Fprintf(w, "✗ %s\n", issue)
		}
		return fmt.Errorf("%w: %d issue(s)", ErrInvalidFlow, len(report.Issues))
	}
	fmt.Fprintf(w, "✓ %s is valid (%d nodes, %d edges)\n", filepath.Base(path), len(report.Flow.Nodes), len(report.Flow.Edges))
	if mermaid {
		fmt.Fprintln(w, report.Mermaid)
	}
	return nil
}

// IngestOptions selects one knowledge source to add.
type IngestOptions struct {
	Owner knowledge.Owner
	Title string
	Text  string
	URL   string
	File  string
}

// Ingest adds a source, waits for chunking and embedding and writes the
// final source record to w.
func Ingest(ctx context.Context, cfg *config.Config, opts IngestOptions, w io.Writer) error {
	app, err := Build(ctx, cfg, NewLogger(cfg.Log.Level, true))
	if err != nil {
		return err
	}
	defer app.Close()

	var src *domain.KnowledgeSource
	switch {
	case opts.URL != "":
		src, err = app.Ingestor.IngestURL(ctx, knowledge.URLRequest{Owner: opts.Owner, URL: opts.URL})
	case opts.File != "":
		var data []byte
		if data, err = os.ReadFile(opts.File); err != nil {
			return fmt.Errorf("failed to read %s: %w", opts.File, err)
		}
		src, err = app.Ingestor.IngestFile(ctx, knowledge.FileRequest{
			Owner:       opts.Owner,
			FileName:    filepath.Base(opts.File),
			ContentType: contentTypeOf(opts.File),
			Data:        data,
		})
	default:
		src, err = app.Ingestor.IngestText(ctx, knowledge.TextRequest{Owner: opts.Owner, Title: opts.Title, Text: opts.Text})
	}
	if err != nil {
		return err
	}
	if err := app.Ingestor.Wait(ctx); err != nil {
		return err
	}
	if src, err = app.Ingestor.Source(ctx, src.ID); err != nil {
		return err
	}
	return writeJSON(w, src)
}

// Reindex embeds the chunks of a source that have no vector yet.
func Reindex(ctx context.Context, cfg *config.Config, sourceID string, w io.Writer) error {
	app, err := Build(ctx, cfg, NewLogger(cfg.Log.Level, true))
	if err != nil {
		return err
	}
	defer app.Close()

	report, err := app.Ingestor.Reindex(ctx, sourceID)
	if err != nil {
		return err
	}
	return writeJSON(w, report)
}

// ConversationView is what `parley conversation` prints.
type ConversationView struct {
	State    *domain.ConversationState `json:"state"`
	Messages []domain.MessageRecord    `json:"messages"`
	Mermaid  string                    `json:"mermaid,omitempty"`
}

// ShowConversation writes the state, the latest messages and, optionally,
// the flow graph with the conversation's path highlighted.
func ShowConversation(ctx context.Context, cfg *config.Config, conversationID string, limit int, mermaid bool, w io.Writer) error {
	app, err := Build(ctx, cfg, NewLogger(cfg.Log.Level, true))
	if err != nil {
		return err
	}
	defer app.Close()

	st, err := app.Bot.Conversation(ctx, conversationID)
	if err != nil {
		return err
	}
	msgs, err := app.Bot.Messages(ctx, conversationID, limit)
	if err != nil {
		return err
	}
	view := ConversationView{State: st, Messages: msgs}
	if mermaid {
		flow, err := app.Bot.Flow(ctx, st.BotID)
		if err != nil {
			return err
		}
		view.Mermaid = graph.GenerateMermaid(flow, graph.OverlayFromState(st))
	}
	return writeJSON(w, view)
}

func contentTypeOf(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
