package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Ganeshg1313/askandsay-server/pkg/ai"
	"github.com/Ganeshg1313/askandsay-server/pkg/api"
	"github.com/Ganeshg1313/askandsay-server/pkg/auth"
	"github.com/Ganeshg1313/askandsay-server/pkg/config"
	"github.com/Ganeshg1313/askandsay-server/pkg/logging"
	"github.com/Ganeshg1313/askandsay-server/pkg/relay"
	"github.com/Ganeshg1313/askandsay-server/pkg/storage"
)

const revocationSweepInterval = time.Hour

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "askandsay: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("askandsay", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file (YAML)")
	bind := fs.String("bind", "", "address to bind the HTTP server (overrides config)")
	dbPath := fs.String("db", "", "path to the SQLite database (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if strings.TrimSpace(*bind) != "" {
		cfg.Server.Bind = strings.TrimSpace(*bind)
	}
	if strings.TrimSpace(*dbPath) != "" {
		cfg.Database.Path = strings.TrimSpace(*dbPath)
	}

	logger, err := logging.NewLogger(cfg.Logging.Dir)
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer logger.Close()
	logger.SetMinLevel(logging.Level(cfg.Logging.Level))

	store, err := storage.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, store)

	responder := ai.NewGeminiClient(cfg.AI.APIKey,
		ai.WithBaseURL(cfg.AI.BaseURL),
		ai.WithModel(cfg.AI.Model),
		ai.WithTimeout(cfg.AI.Timeout),
	)

	gateway := relay.NewGateway(cfg.Relay, store, tokens, responder, store, logger, cfg.AI.Timeout)
	server := api.NewServer(cfg, store, tokens, responder, gateway, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(ctx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(revocationSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if n, err := store.CleanupExpiredRevocations(); err == nil && n > 0 {
					logger.Debug(logging.CategoryAuth, "revocations_swept", "removed expired token revocations", map[string]any{
						"count": n,
					})
				}
			}
		}
	})

	return g.Wait()
}
