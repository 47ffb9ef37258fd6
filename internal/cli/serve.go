package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/config"
	httpAdapter "github.com/aretw0/parley/pkg/adapters/http"
	mcpAdapter "github.com/aretw0/parley/pkg/adapters/mcp"
)

// ServeOptions configures RunServe.
type ServeOptions struct {
	// MCP also serves the MCP tools over SSE on server.mcp_addr.
	MCP bool
}

// RunServe runs the HTTP API until ctx is done, then drains in-flight requests,
// webhook deliveries and ingestion jobs.
func RunServe(ctx context.Context, cfg *config.Config, opts ServeOptions) error {
	logger := NewLogger(cfg.Log.Level, false)

	app, err := Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	server := httpAdapter.NewServer(app.Bot,
		httpAdapter.WithKnowledge(app.Ingestor, app.Retriever),
		httpAdapter.WithWhatsApp(httpAdapter.WhatsAppConfig{
			VerifyToken: cfg.WhatsApp.VerifyToken,
			AppSecret:   cfg.WhatsApp.AppSecret,
		}),
		httpAdapter.WithStreams(app.Streams),
		httpAdapter.WithGatherer(app.Registry),
		httpAdapter.WithLogger(logger),
		httpAdapter.WithMaxUploadBytes(cfg.Server.MaxUploadBytes),
	)
	handler, err := server.Handler()
	if err != nil {
		return fmt.Errorf("failed to build http handler: %w", err)
	}
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("parley server listening", "address", srv.Addr, "version", parley.Version)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("graceful shutdown did not complete: %w", err))
			_ = srv.Close()
		}
		if err := server.Wait(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("webhook deliveries still running: %w", err))
		}
		if err := app.Ingestor.Wait(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("ingestion jobs still running: %w", err))
		}
		return errors.Join(errs...)
	})
	if cfg.Flows.Watch {
		g.Go(func() error {
			return WatchFlows(gctx, app.Flows, logger, nil)
		})
	}
	if opts.MCP {
		mcpServer := mcpAdapter.NewServer(app.Bot,
			mcpAdapter.WithKnowledge(app.Ingestor, app.Retriever),
			mcpAdapter.WithLogger(logger),
		)
		g.Go(func() error {
			return mcpServer.ServeSSE(gctx, cfg.Server.MCPAddr, cfg.Server.MCPBaseURL)
		})
	}
	return g.Wait()
}

// RunMCPStdio serves the MCP tools on stdin and stdout.
func RunMCPStdio(ctx context.Context, cfg *config.Config) error {
	// stdout carries the protocol, so logs go to stderr only when asked for.
	logger := NewLogger(cfg.Log.Level, true)
	app, err := Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	s := mcpAdapter.NewServer(app.Bot,
		mcpAdapter.WithKnowledge(app.Ingestor, app.Retriever),
		mcpAdapter.WithLogger(logger),
	)
	return s.ServeStdio()
}

// RunMCPSSE serves only the MCP tools over SSE until ctx is done.
func RunMCPSSE(ctx context.Context, cfg *config.Config) error {
	logger := NewLogger(cfg.Log.Level, false)
	app, err := Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	s := mcpAdapter.NewServer(app.Bot,
		mcpAdapter.WithKnowledge(app.Ingestor, app.Retriever),
		mcpAdapter.WithLogger(logger),
	)
	return s.ServeSSE(ctx, cfg.Server.MCPAddr, cfg.Server.MCPBaseURL)
}
