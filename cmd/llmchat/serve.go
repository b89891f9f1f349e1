package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/llmchat/internal/api"
	"github.com/samcharles93/llmchat/internal/logger"
)

func serveCmd() *cli.Command {
	f := newModuleFlags()
	var (
		addr        string
		readTimeout time.Duration
		maxModules  int64
		rateLimit   float64
		burst       int64
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve chat modules over HTTP",
		Flags: append(f.flags(),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read header timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.Int64Flag{
				Name:        "max-modules",
				Usage:       "maximum live chat modules (0 = unlimited)",
				Value:       8,
				Destination: &maxModules,
			},
			&cli.Float64Flag{
				Name:        "rate-limit",
				Usage:       "requests per second across the server (0 = unlimited)",
				Destination: &rateLimit,
			},
			&cli.Int64Flag{
				Name:        "burst",
				Usage:       "request burst allowed above the rate limit",
				Value:       20,
				Destination: &burst,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			cfg := LoadConfig()
			applyModuleConfig(cmd, cfg, f)
			applyServeConfig(cmd, cfg, &addr, &maxModules)

			base, closer, err := f.moduleOptions(ctx, cmd)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer func() { _ = closer.Close() }()

			registry := api.NewRegistry(api.RegistryConfig{
				Device:     f.device,
				Base:       base,
				MaxModules: int(maxModules),
			})
			defer func() {
				if err := registry.Close(); err != nil {
					log.Warn("close chat modules", "error", err)
				}
			}()

			var transcripts api.TranscriptReader
			if r, ok := closer.(api.TranscriptReader); ok {
				transcripts = r
			}
			server := api.NewServer(registry, transcripts, log)

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			e.Use(api.RateLimit(rateLimit, int(burst)))
			server.Register(e)
			log.Info("starting server", "address", addr, "device", f.device, "runtime", f.runtime)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
