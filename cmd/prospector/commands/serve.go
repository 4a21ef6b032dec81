package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/prospector/internal/logger"
	"github.com/jmylchreest/prospector/internal/server"
	"github.com/jmylchreest/prospector/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the prospect search API:

  GET  /search?q=&industry=&region=   run a search
  POST /cancel                        stop the running search
  GET  /jobs/{id}                     job status
  GET  /healthz                       liveness and build info

SIGINT or SIGTERM cancels any running search and shuts down gracefully.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.String("addr", "", "listen address (default :3000)")
	flags.String("allow-origin", "", "CORS Access-Control-Allow-Origin value")

	_ = viper.BindPFlag("server.addr", flags.Lookup("addr"))
	_ = viper.BindPFlag("server.allow_origin", flags.Lookup("allow-origin"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		logError("%v", err)
		return err
	}
	defer a.Close()

	logger.Info("starting prospector", "version", version.String(), "engines", a.scraper.Engines(),
		"browser", cfg.Browser.Mode)

	srv := server.New(a.scraper, a.scraper.Store(), server.Config{
		Addr:            cfg.Server.Addr,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		AllowOrigin:     cfg.Server.AllowOrigin,
	})
	if err := srv.ListenAndServe(ctx); err != nil {
		logError("%v", err)
		return err
	}
	return nil
}
