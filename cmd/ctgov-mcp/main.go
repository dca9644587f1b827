// Command ctgov-mcp serves the ClinicalTrials.gov tools over MCP and
// exposes them as one-shot CLI commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/ctgov-client/internal/config"
	"github.com/Sternrassler/ctgov-client/internal/tools"
	"github.com/Sternrassler/ctgov-client/pkg/client"
	"github.com/Sternrassler/ctgov-client/pkg/logging"
	"github.com/Sternrassler/ctgov-client/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// app is the composition root: one client, one service and the optional
// Redis connection shared by every command.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	redis   *redis.Client
	client  *client.Client
	service *tools.Service
}

func newApp(ctx context.Context, cfgFile string) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	logCfg := cfg.LoggingConfig()
	logCfg.Service = "ctgov-mcp"
	logger := logging.Setup(logCfg)
	a := &app{cfg: cfg, logger: logger}

	clientCfg := cfg.ClientConfig()
	clientCfg.Logger = &logger

	if opts := cfg.RedisOptions(); opts != nil {
		a.redis = redis.NewClient(opts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.redis.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
		}
		store, err := ratelimit.NewRedisStore(a.redis)
		if err != nil {
			a.closeRedis()
			return nil, err
		}
		logger.Info().Str("addr", opts.Addr).Msg("rate limit state shared via redis")
		clientCfg.RateLimit = store
	}

	a.client, err = client.New(clientCfg)
	if err != nil {
		a.closeRedis()
		return nil, err
	}
	a.service = tools.NewService(a.client, logger)
	return a, nil
}

func (a *app) Close() error {
	err := a.client.Close()
	a.closeRedis()
	return err
}

func (a *app) closeRedis() {
	if a.redis == nil {
		return
	}
	if err := a.redis.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("failed to close redis")
	}
}
