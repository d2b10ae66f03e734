// Package main は Web フロントエンドサーバーのエントリーポイントです。
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/transient-web/internal/config"
	"github.com/yourusername/transient-web/internal/logging"
	"github.com/yourusername/transient-web/internal/metrics"
	"github.com/yourusername/transient-web/internal/routes"
	"github.com/yourusername/transient-web/internal/views"
	"github.com/yourusername/transient-web/internal/web"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd はサブコマンド無しで serve と同じ動作をするルートコマンドを作成します。
func newRootCmd() *cobra.Command {
	serve := newServeCmd()
	rootCmd := &cobra.Command{
		Use:           "transient-web",
		Short:         "Web frontend for the transient API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	rootCmd.Flags().AddFlagSet(serve.Flags())
	rootCmd.AddCommand(serve, newRoutesCmd())
	return rootCmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		RunE:  runServe,
	}
	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides PORT)")
	return cmd
}

func newRoutesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the route table with its auth flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// 一覧表示だけなので画面は読み込まない
			table, err := routes.Default(views.New(nil))
			if err != nil {
				return err
			}
			return printRoutes(cmd.OutOrStdout(), table)
		},
	}
}

func printRoutes(w io.Writer, table *routes.Table) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPATH\tAUTH")
	for _, d := range table.All() {
		auth := "-"
		switch {
		case d.RequiresAuth:
			auth = "requires-auth"
		case d.NoAuth:
			auth = "no-auth"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Name, d.Path, auth)
	}
	return tw.Flush()
}

func runServe(cmd *cobra.Command, _ []string) error {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	logger := logging.New(os.Stdout, cfg.LogFormat, cfg.SlogLevel())
	slog.SetDefault(logger)

	srv, err := web.NewServer(cfg, web.Deps{
		Logger:     logger,
		Metrics:    metrics.New(),
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              srv.Addr(),
		Handler:           srv.Engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting web server", "addr", httpServer.Addr, "mode", cfg.GinMode, "backend", cfg.BackendURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down web server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
