package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/cxops/internal/api"
	"github.com/kalambet/cxops/internal/config"
	"github.com/kalambet/cxops/internal/contacts"
	"github.com/kalambet/cxops/internal/dashboard"
	"github.com/kalambet/cxops/internal/report"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the console over HTTP and MCP (foreground)",
	Long: `Serve the console over HTTP and MCP (foreground).

The HTTP endpoints are protected by a generated bearer token stored
beside the config file; MCP runs on stdio for agent tooling.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "cxops version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	apiToken, err := config.APIToken()
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	// Refuse to double-start on the same port.
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		printWarning("cxops is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, _, err := tenantClient(ctx)
	if err != nil {
		return err
	}

	runner := report.NewRunner(client, report.Options{
		PollInterval: cfg.PollInterval(),
		MaxPolls:     cfg.Report.MaxPolls,
	})
	fetcher := contacts.NewFetcher(client, cfg.PagePause())
	agg := dashboard.NewAggregator(client)

	handler := api.NewAppHandler(api.AppDeps{
		Client:    client,
		Runner:    runner,
		Fetcher:   fetcher,
		Dashboard: agg,
		Token:     apiToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// MCP server on stdio for agent tooling.
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Client:    client,
		Runner:    runner,
		Fetcher:   fetcher,
		Dashboard: agg,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "cxops listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
