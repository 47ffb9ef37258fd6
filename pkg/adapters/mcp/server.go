// Package mcp exposes Parley to Model Context Protocol clients: messaging a
// bot, inspecting conversations, searching and feeding the knowledge base and
// validating flow documents.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/internal/validator"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/knowledge"
)

// BotsURI is the resource listing the bots with a flow.
const BotsURI = "parley://bots"

// Search defaults of the search_knowledge tool.
const (
	DefaultTopK          = 5
	DefaultMinSimilarity = 0.5
	DefaultMessageLimit  = 20
)

// Conversations is the part of parley.Bot the tools drive.
type Conversations interface {
	HandleMessage(ctx context.Context, in parley.Inbound) (*parley.Result, error)
	Conversation(ctx context.Context, conversationID string) (*domain.ConversationState, error)
	Messages(ctx context.Context, conversationID string, limit int) ([]domain.MessageRecord, error)
	Bots(ctx context.Context) ([]string, error)
}

// TextIngestor accepts raw text for the knowledge base.
type TextIngestor interface {
	IngestText(ctx context.Context, req knowledge.TextRequest) (*domain.KnowledgeSource, error)
}

// Searcher runs similarity searches.
type Searcher interface {
	Retrieve(ctx context.Context, query string, sourceIDs []string, topK int, minSimilarity float64) ([]domain.ScoredChunk, error)
	ReadySources(ctx context.Context, botID string) ([]string, error)
}

// Server wraps the runtime and exposes it as an MCP server.
type Server struct {
	bot       Conversations
	ingestor  TextIngestor
	searcher  Searcher
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

type Option func(*Server)

// WithKnowledge registers the ingest_text and search_knowledge tools.
func WithKnowledge(ingestor TextIngestor, searcher Searcher) Option {
	return func(s *Server) {
		s.ingestor = ingestor
		s.searcher = searcher
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP server instance.
func NewServer(bot Conversations, opts ...Option) *Server {
	s := &Server{
		bot:       bot,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("parley-mcp", parley.Version),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio serves on stdin and stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: corsMiddleware(mux)}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type sendMessageArgs struct {
	BotID          string `json:"bot_id"`
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
	Recipient      string `json:"recipient,omitempty"`
}

type conversationArgs struct {
	ConversationID string `json:"conversation_id"`
	Messages       *int   `json:"messages,omitempty"`
}

// ConversationView is the output of get_conversation.
type ConversationView struct {
	State    *domain.ConversationState `json:"state"`
	Messages []domain.MessageRecord    `json:"messages"`
}

type searchArgs struct {
	Query         string   `json:"query"`
	BotID         string   `json:"bot_id,omitempty"`
	SourceIDs     []string `json:"source_ids,omitempty"`
	TopK          int      `json:"top_k,omitempty"`
	MinSimilarity *float64 `json:"min_similarity,omitempty"`
}

// SearchResult is the output of search_knowledge.
type SearchResult struct {
	Results []domain.ScoredChunk `json:"results"`
}

type ingestArgs struct {
	Text      string `json:"text"`
	Title     string `json:"title,omitempty"`
	BotID     string `json:"bot_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

type validateArgs struct {
	Document string `json:"document"`
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("send_message",
		mcp.WithDescription("Send a user message to a bot and run its flow. Replies go through the configured messenger."),
		mcp.WithString("bot_id", mcp.Required(), mcp.Description("Bot whose flow handles the message")),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation to continue or start")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Message text")),
		mcp.WithString("recipient", mcp.Description("Reply address, defaults to the conversation id")),
	), mcp.NewStructuredToolHandler(s.handleSendMessage))

	s.mcpServer.AddTool(mcp.NewTool("get_conversation",
		mcp.WithDescription("Get the state snapshot and the latest logged messages of a conversation."),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation ID")),
		mcp.WithNumber("messages", mcp.Description("How many logged messages to return")),
		mcp.WithOutputSchema[ConversationView](),
	), mcp.NewStructuredToolHandler(s.handleGetConversation))

	s.mcpServer.AddTool(mcp.NewTool("validate_flow",
		mcp.WithDescription("Validate a JSON or YAML flow document and render it as a Mermaid graph."),
		mcp.WithString("document", mcp.Required(), mcp.Description("The flow document")),
		mcp.WithOutputSchema[validator.Report](),
	), mcp.NewStructuredToolHandler(s.handleValidateFlow))

	if s.searcher != nil {
		s.mcpServer.AddTool(mcp.NewTool("search_knowledge",
			mcp.WithDescription("Search the knowledge base by similarity. Without source_ids, the ready sources of bot_id are searched."),
			mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
			mcp.WithString("bot_id", mcp.Description("Search the sources of this bot")),
			mcp.WithArray("source_ids", mcp.WithStringItems(), mcp.Description("Explicit source IDs")),
			mcp.WithNumber("top_k", mcp.Description("Maximum number of results")),
			mcp.WithNumber("min_similarity", mcp.Description("Minimum cosine similarity")),
			mcp.WithOutputSchema[SearchResult](),
		), mcp.NewStructuredToolHandler(s.handleSearch))
	}

	if s.ingestor != nil {
		s.mcpServer.AddTool(mcp.NewTool("ingest_text",
			mcp.WithDescription("Add text to the knowledge base. Chunking and embedding run in the background."),
			mcp.WithString("text", mcp.Required(), mcp.Description("Text to ingest")),
			mcp.WithString("title", mcp.Description("Source title")),
			mcp.WithString("bot_id", mcp.Description("Owning bot")),
			mcp.WithString("user_id", mcp.Description("Owning user")),
			mcp.WithString("session_id", mcp.Description("Owning session")),
		), mcp.NewStructuredToolHandler(s.handleIngestText))
	}
}

func (s *Server) handleSendMessage(ctx context.Context, request mcp.CallToolRequest, args sendMessageArgs) (*parley.Result, error) {
	res, err := s.bot.HandleMessage(ctx, parley.Inbound{
		BotID:          args.BotID,
		ConversationID: args.ConversationID,
		Recipient:      args.Recipient,
		Text:           args.Text,
	})
	if err != nil {
		s.logger.Warn("MCP send_message failed", "conversation_id", args.ConversationID, "err", err)
		return nil, fmt.Errorf("send failed: %w", err)
	}
	return res, nil
}

func (s *Server) handleGetConversation(ctx context.Context, request mcp.CallToolRequest, args conversationArgs) (ConversationView, error) {
	st, err := s.bot.Conversation(ctx, args.ConversationID)
	if err != nil {
		return ConversationView{}, fmt.Errorf("conversation %s: %w", args.ConversationID, err)
	}
	limit := DefaultMessageLimit
	if args.Messages != nil {
		limit = *args.Messages
	}
	msgs, err := s.bot.Messages(ctx, args.ConversationID, limit)
	if err != nil {
		s.logger.Warn("failed to read message log", "conversation_id", args.ConversationID, "err", err)
	}
	if msgs == nil {
		msgs = []domain.MessageRecord{}
	}
	return ConversationView{State: st, Messages: msgs}, nil
}

func (s *Server) handleValidateFlow(ctx context.Context, request mcp.CallToolRequest, args validateArgs) (validator.Report, error) {
	return validator.CheckDocument([]byte(args.Document)), nil
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest, args searchArgs) (SearchResult, error) {
	topK := args.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	minSim := DefaultMinSimilarity
	if args.MinSimilarity != nil {
		minSim = *args.MinSimilarity
	}
	ids := args.SourceIDs
	if len(ids) == 0 && args.BotID != "" {
		var err error
		if ids, err = s.searcher.ReadySources(ctx, args.BotID); err != nil {
			return SearchResult{}, err
		}
	}
	hits, err := s.searcher.Retrieve(ctx, args.Query, ids, topK, minSim)
	if err != nil {
		return SearchResult{}, fmt.Errorf("search failed: %w", err)
	}
	if hits == nil {
		hits = []domain.ScoredChunk{}
	}
	return SearchResult{Results: hits}, nil
}

func (s *Server) handleIngestText(ctx context.Context, request mcp.CallToolRequest, args ingestArgs) (*domain.KnowledgeSource, error) {
	src, err := s.ingestor.IngestText(ctx, knowledge.TextRequest{
		Owner: knowledge.Owner{UserID: args.UserID, SessionID: args.SessionID, BotID: args.BotID},
		Title: args.Title,
		Text:  args.Text,
	})
	if err != nil {
		return nil, fmt.Errorf("ingest failed: %w", err)
	}
	return src, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(BotsURI, "Bots with a flow",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := s.botsJSON(ctx)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      BotsURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

func (s *Server) botsJSON(ctx context.Context) ([]byte, error) {
	bots, err := s.bot.Bots(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list bots: %w", err)
	}
	if bots == nil {
		bots = []string{}
	}
	return json.Marshal(bots)
}
