package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/sickbay/internal/adapters/http/api"
	service "github.com/okian/sickbay/internal/app"
	"github.com/okian/sickbay/internal/config"
	"github.com/okian/sickbay/internal/domain/model"
	"github.com/okian/sickbay/pkg/logger"
	"github.com/okian/sickbay/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 30 * time.Second
)

const configEnv = "SICKBAY_CONFIG"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "sickbay",
		Short:        "Score injury evidence and reconcile it against match lineups",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if configPath != "" {
				return os.Setenv(configEnv, configPath)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (also "+configEnv+")")

	root.AddCommand(newRunCmd(), newAnalyzeCmd(), newServeCmd())
	return root
}

// setup loads configuration and initializes logging on stderr, leaving stdout
// for command output.
func setup(ctx context.Context, stderr io.Writer) (*config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithOutput(stderr)); err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute one batch run and print its summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := setup(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			a, err := build(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			sum, err := a.svc.Run(ctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), sum)
		},
	}
}

func newAnalyzeCmd() *cobra.Command {
	var (
		player     string
		source     string
		sourceType string
	)

	cmd := &cobra.Command{
		Use:   "analyze [text...]",
		Short: "Score one snippet of text for a player (reads stdin without arguments)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			text := strings.Join(args, " ")
			if len(args) == 0 {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(b)
			}
			if strings.TrimSpace(text) == "" {
				return errors.New("no text to analyze")
			}

			a, _, err := analyzer(cfg)
			if err != nil {
				return err
			}
			res := a.Analyze(text, player, source, model.ParseSourceType(sourceType))
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVarP(&player, "player", "p", "", "player name the text is about")
	cmd.Flags().StringVarP(&source, "source", "s", "", "publishing source, a domain or handle")
	cmd.Flags().StringVarP(&sourceType, "type", "t", string(model.SourceWebsite), "source type: website, social or other")
	_ = cmd.MarkFlagRequired("player")
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the read API and run batches on the configured interval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := setup(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			log := logger.Get()

			a, err := build(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.svc.Start(ctx); err != nil {
				return fmt.Errorf("start service: %w", err)
			}
			defer a.svc.Stop()

			go startServiceMetricsUpdater(ctx, a.svc)

			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           api.NewServer(a.svc).Routes(),
				ReadTimeout:       readTimeout,
				WriteTimeout:      writeTimeout,
				IdleTimeout:       idleTimeout,
				ReadHeaderTimeout: readHeaderTimeout,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
			}
			log.Info(ctx, "shutting down server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error(ctx, "server shutdown failed", logger.Error(err))
			}
			log.Info(ctx, "server stopped")
			return nil
		},
	}
}

// activeCounter is the part of the service the metrics updater reads.
type activeCounter interface {
	ActiveInjuryCount(ctx context.Context) (int, error)
}

// startServiceMetricsUpdater keeps the active injury gauge current between runs.
func startServiceMetricsUpdater(ctx context.Context, svc activeCounter) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(ctx, svc)
		}
	}
}

func updateServiceMetrics(ctx context.Context, svc activeCounter) {
	n, err := svc.ActiveInjuryCount(ctx)
	if err != nil {
		logger.Get().Warn(ctx, "active injury count failed", logger.Error(err))
		return
	}
	metrics.UpdateActiveInjuries(n)
}

var _ activeCounter = (*service.Service)(nil)
