package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/BlackMission/gatekeeper/internal/config"
	"github.com/BlackMission/gatekeeper/internal/providers/google"
	"github.com/BlackMission/gatekeeper/internal/server"
	"github.com/BlackMission/gatekeeper/internal/state"
	"github.com/BlackMission/gatekeeper/internal/token"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the authentication server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
	root := &cobra.Command{
		Use:          "gatekeeper",
		Short:        "Domain-restricted Google sign-in service",
		SilenceUsage: true,
		RunE:         serveCmd.RunE,
	}
	root.AddCommand(serveCmd, &cobra.Command{
		Use:   "check-config",
		Short: "Validate the environment configuration and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}
			if _, _, _, err := buildServices(cfg, zap.NewNop()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration ok: listening on %s, domain %s\n", cfg.Addr(), cfg.Token.AllowedDomain)
			return nil
		},
	})
	return root
}

func serve(ctx context.Context) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	gateway, tokens, states, err := buildServices(cfg, logger)
	if err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return err
	}

	srv := server.New(server.Config{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		FrontendURL:   cfg.Frontend.URL,
		ExpiryWarning: cfg.Token.ExpiryWarning,
	}, server.Deps{
		Gateway: gateway,
		Tokens:  tokens,
		State:   states,
		Logger:  logger,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}

func buildServices(cfg *config.Config, logger *zap.Logger) (*google.Gateway, *token.Service, *state.Service, error) {
	gateway := google.New(google.Config{
		ClientID:      cfg.Google.ClientID,
		ClientSecret:  cfg.Google.ClientSecret,
		RedirectURI:   cfg.Google.RedirectURI,
		AllowedDomain: cfg.Token.AllowedDomain,
		Scopes:        cfg.Google.Scopes,
		Timeout:       cfg.Google.Timeout,
	}, logger)
	if err := gateway.ValidateConfiguration(); err != nil {
		return nil, nil, nil, err
	}

	tokens, err := token.NewService(token.Config{
		Secret:        []byte(cfg.Token.Secret),
		AllowedDomain: cfg.Token.AllowedDomain,
		TTL:           cfg.Token.TTL,
		MaxSessionAge: cfg.Token.MaxSessionAge,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	states := state.NewService([]byte(cfg.Token.StateSigningKey), state.DefaultExpiry)
	return gateway, tokens, states, nil
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}
