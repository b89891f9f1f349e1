package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/llmchat/internal/logger"
)

func main() {
	var logCloser io.Closer
	app := &cli.Command{
		Name:  "llmchat",
		Usage: "Streaming chat sessions over a pluggable model runtime",
		Flags: loggingFlags(),
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			log, closer, err := setupLogger(cmd, LoadConfig())
			if err != nil {
				return ctx, err
			}
			logCloser = closer
			return logger.WithContext(ctx, log), nil
		},
		After: func(ctx context.Context, cmd *cli.Command) error {
			if logCloser != nil {
				return logCloser.Close()
			}
			return nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			chatCmd(),
			serveCmd(),
			deltaCmd(),
			transcriptCmd(),
			templatesCmd(),
			versionCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogger builds the process logger from the logging flags and the
// config file. Logs go to stderr unless a log file is configured.
func setupLogger(cmd *cli.Command, cfg Config) (logger.Logger, io.Closer, error) {
	applyLoggingConfig(cmd, cfg)
	level := logger.ParseLevel(logLevel)
	if debug {
		level = logger.ParseLevel("debug")
	}
	if logFile != "" {
		return logger.File(logFile, level)
	}
	switch logFormat {
	case "json":
		return logger.JSON(os.Stderr, level), nil, nil
	default:
		return logger.Pretty(os.Stderr, level), nil, nil
	}
}
