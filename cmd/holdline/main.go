package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/swizz-ai/holdline/internal/stream"
	llmfake "github.com/swizz-ai/holdline/pkg/ai/llm/fake"
	sttfake "github.com/swizz-ai/holdline/pkg/ai/stt/fake"
	ttsfake "github.com/swizz-ai/holdline/pkg/ai/tts/fake"
	"github.com/swizz-ai/holdline/pkg/notify"
	"github.com/swizz-ai/holdline/pkg/store"
	"github.com/swizz-ai/holdline/pkg/store/memory"
	"github.com/swizz-ai/holdline/pkg/store/postgres"
	"github.com/swizz-ai/holdline/pkg/version"
	"github.com/swizz-ai/holdline/plugins/openai"
)

var rootCmd = &cobra.Command{
	Use:   "holdline",
	Short: "Holdline - an AI phone agent that waits on hold for you",
	Long: `holdline runs the call audio orchestration service: it accepts a
telephony media stream per call, transcribes the audio in chunks, detects
when a live human picks up, and speaks on the caller's behalf.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetVersionInfo())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the media stream server",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		databaseURL, _ := cmd.Flags().GetString("database-url")
		notifyURL, _ := cmd.Flags().GetString("notify-url")
		chatModel, _ := cmd.Flags().GetString("chat-model")
		fakeProviders, _ := cmd.Flags().GetBool("fake-providers")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		logger := setupLogger()
		logger.Info("Starting holdline",
			slog.String("service", "holdline"),
			slog.String("version", version.Version),
			slog.String("commit", version.GitCommit),
			slog.String("addr", addr),
			slog.Bool("dry_run", dryRun))

		if databaseURL == "" {
			databaseURL = os.Getenv("DATABASE_URL")
		}

		if dryRun {
			logger.Info("Dry run mode - exiting")
			return nil
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		st, closeStore, err := openStore(ctx, databaseURL, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		srv, err := buildServer(st, notifyURL, chatModel, fakeProviders, logger)
		if err != nil {
			return err
		}

		mux := http.NewServeMux()
		mux.HandleFunc("/stream", srv.HandleStream)
		mux.Handle("/metrics", expvar.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, "ok")
		})

		httpServer := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("Listening", slog.String("addr", addr))
			errCh <- httpServer.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Server failed", slog.String("error", err.Error()))
				return err
			}
		case <-ctx.Done():
			logger.Info("Shutting down")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Graceful shutdown failed", slog.String("error", err.Error()))
			}
		}

		return nil
	},
}

func setupLogger() *slog.Logger {
	logFormat := os.Getenv("HOLDLINE_LOG_FORMAT")
	logLevel := os.Getenv("HOLDLINE_LOG_LEVEL")

	var handler slog.Handler
	opts := &slog.HandlerOptions{}

	// Set log level
	switch logLevel {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	// Choose handler based on format
	if logFormat == "console" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		// Default to JSON
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// openStore picks the call store: PostgreSQL when a database URL is
// configured, in-memory otherwise.
func openStore(ctx context.Context, databaseURL string, logger *slog.Logger) (store.Store, func(), error) {
	if databaseURL == "" {
		logger.Warn("No database configured, call records are in-memory only")
		return memory.New(), func() {}, nil
	}

	pg, err := postgres.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres store: %w", err)
	}
	logger.Info("Connected to PostgreSQL call store")
	return pg, pg.Close, nil
}

func buildServer(st store.Store, notifyURL, chatModel string, fakeProviders bool, logger *slog.Logger) (*stream.Server, error) {
	var notifier notify.Notifier
	if notifyURL != "" {
		notifier = notify.NewWebhook(notifyURL, logger)
	} else {
		notifier = notify.NewNop(logger)
	}

	cfg := stream.Config{
		Store:    st,
		Notifier: notifier,
		Logger:   logger,
	}

	if fakeProviders {
		logger.Warn("Using fake speech providers")
		cfg.STT = sttfake.NewFakeSTT("Hello, this is a test transcript from the fake provider.")
		cfg.LLM = llmfake.NewFakeLLM()
		cfg.TTS = ttsfake.NewFakeTTS()
		return stream.NewServer(cfg)
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required (or pass --fake-providers)")
	}
	providers, err := openai.New(openai.Config{APIKey: apiKey, ChatModel: chatModel})
	if err != nil {
		return nil, fmt.Errorf("build openai providers: %w", err)
	}
	cfg.STT = providers.STT
	cfg.LLM = providers.LLM
	cfg.TTS = providers.TTS
	return stream.NewServer(cfg)
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "HTTP listen address")
	serveCmd.Flags().String("database-url", "", "PostgreSQL connection string (defaults to DATABASE_URL)")
	serveCmd.Flags().String("notify-url", "", "Webhook URL for human-detected notifications")
	serveCmd.Flags().String("chat-model", "", "Chat model for reply generation (defaults to gpt-4)")
	serveCmd.Flags().Bool("fake-providers", false, "Use fake speech providers instead of OpenAI")
	serveCmd.Flags().Bool("dry-run", false, "Dry run mode - validate config and exit")

	rootCmd.AddCommand(versionCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
