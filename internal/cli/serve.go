package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/identity"
	"github.com/MrEthical07/goSession/internal/server"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr          string
		embeddedRedis bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the back-office API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			if embeddedRedis {
				a.cfg.Redis.Embedded = true
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&embeddedRedis, "embedded-redis", false, "Run an in-process Redis (development only)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	redisAddr := a.cfg.Redis.Addr
	if a.cfg.Redis.Embedded {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("embedded redis: %w", err)
		}
		defer mr.Close()
		redisAddr = mr.Addr()
		a.logger.Warn("using embedded redis; sessions are lost on restart", "addr", redisAddr)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	defer client.Close()

	users, err := identity.Open(a.cfg.Database.Path, a.logger)
	if err != nil {
		return err
	}
	defer users.Close()
	if _, err := users.Migrate(ctx); err != nil {
		return err
	}

	engine, err := goSession.New().
		WithConfig(a.cfg.Engine()).
		WithRedis(client).
		WithIdentityResolver(users).
		WithAuditSink(goSession.NewSlogSink(a.logger)).
		WithLogger(a.logger).
		Build()
	if err != nil {
		return fmt.Errorf("session engine: %w", err)
	}
	defer engine.Close()

	srv, err := server.New(a.cfg, engine, users, a.logger)
	if err != nil {
		return err
	}
	if err := srv.WaitReady(ctx); err != nil {
		return fmt.Errorf("dependencies not ready: %w", err)
	}

	return srv.Run(ctx)
}
