package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/legalscan/internal/cache"
	"github.com/ppiankov/legalscan/internal/model"
	"github.com/ppiankov/legalscan/internal/pipeline"
	"github.com/ppiankov/legalscan/internal/server"
	"github.com/ppiankov/legalscan/internal/store"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis API over HTTP",
	Long: `Serve starts the HTTP API used by the web front end:

  POST   /api/v1/analyze      upload a document (multipart field "file")
  GET    /api/v1/reports      recent reports
  GET    /api/v1/reports/:id  one report (?format=json|markdown|html)
  DELETE /api/v1/reports/:id  delete a report
  GET    /api/v1/health       liveness and store status

Example:
  legalscan serve
  legalscan serve --addr :9000 --origin https://app.example.com
  LEGALSCAN_STORE_DRIVER=postgres LEGALSCAN_STORE_DSN=postgres://... legalscan serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().StringSlice("origin", nil, "allowed CORS origin (repeatable)")
	serveCmd.Flags().Int64("max-upload", 10<<20, "max upload size in bytes")
	serveCmd.Flags().String("upload-dir", "", "directory for in-flight uploads (default: temp dir)")
	serveCmd.Flags().String("nlp", "prose", "entity recognizer (prose, rules)")
	addLLMFlags(serveCmd.Flags())
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd, map[string]string{
		"addr":       "server.addr",
		"origin":     "server.allowed_origins",
		"max-upload": "server.max_upload_bytes",
		"upload-dir": "server.upload_dir",
		"nlp":        "analysis.nlp",
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reports, err := openReports(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := reports.Close(); err != nil {
			slog.Warn("failed to close report store", slog.Any("error", err))
		}
	}()

	p, err := pipeline.NewPipeline(cfg, pipeline.WithStore(reports))
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	srv, err := server.New(p, reports, p.Renderer(), cfg.Server, cfg.Store.HistoryLimit)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	defer func() {
		if err := srv.Close(); err != nil {
			slog.Warn("failed to remove upload directory", slog.Any("error", err))
		}
	}()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  legalscan API v%s\n", Version)
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Listening:    %s\n", cfg.Server.Addr)
	fmt.Fprintf(os.Stderr, "  Store:        %s\n", cfg.Store.Driver)
	fmt.Fprintf(os.Stderr, "  Cache:        %v\n", cfg.Cache.Enabled)
	fmt.Fprintf(os.Stderr, "  Max upload:   %d MB\n", cfg.Server.MaxUploadBytes>>20)
	fmt.Fprintf(os.Stderr, "\n")

	return srv.Run(ctx)
}

// openReports opens the history store behind the configured read-through cache
func openReports(cfg *model.Config) (store.ReportStore, error) {
	sqlStore, err := store.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open report store: %w", err)
	}
	return store.NewCached(sqlStore, cache.New(cfg.Cache), cfg.Cache.MemoryTTL), nil
}
