package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/frontpage/internal/config"
	"github.com/conneroisu/frontpage/internal/server"
	"github.com/conneroisu/frontpage/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the page server",
	Long: `Start the HTTP page server. Pages are generated from the setup tree on
the first request and replayed from the page cache afterwards.

Examples:
  frontpage serve                        # Serve on localhost:8080
  frontpage serve --port 3000 --watch    # Reload the setup when it changes
  FRONTPAGE_CACHE_BACKEND=redis FRONTPAGE_CACHE_REDIS_ADDR=localhost:6379 frontpage serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().BoolP("watch", "w", false, "Reload the setup file when it changes")
	serveCmd.Flags().String("setup", "setup.yml", "Setup file")

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("site.watch", serveCmd.Flags().Lookup("watch"))
	_ = viper.BindPFlag("site.setup_file", serveCmd.Flags().Lookup("setup"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The page handler reports errors through the server's error page.
	var srv *server.Server
	errorPage := func(w http.ResponseWriter, r *http.Request, status int, err error) {
		srv.ErrorPage(w, r, status, err)
	}
	a, err := newApp(cfg, logger, appOptions{errorPage: errorPage})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn(context.Background(), err, "failed to close redis client")
		}
	}()

	opts := server.Options{Gatherer: a.registry, Logger: logger}
	if a.redis != nil {
		opts.Checks = map[string]server.HealthCheck{"redis": a.ping}
	}
	srv = server.New(cfg, opts)
	srv.Mount(a.handler)

	if cfg.Site.Watch {
		reloader := watcher.NewSetupReloader(cfg.Site.SetupFile, a.setup, a.cache, logger)
		fw, err := watcher.Watch(ctx, reloader, watcher.DefaultDelay)
		if err != nil {
			return err
		}
		defer func() { _ = fw.Stop() }()
		logger.Info(ctx, "watching setup file", "path", reloader.Path())
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
