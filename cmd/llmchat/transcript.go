package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/llmchat/internal/store"
)

func transcriptCmd() *cli.Command {
	var (
		storePath string
		drop      bool
	)
	return &cli.Command{
		Name:      "transcript",
		Usage:     "List stored conversations or print one",
		ArgsUsage: "[ID]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "store",
				Usage:       "sqlite transcript database",
				Value:       defaultStorePath(),
				Destination: &storePath,
			},
			&cli.BoolFlag{
				Name:        "clear",
				Usage:       "delete the transcript of ID",
				Destination: &drop,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cfg := LoadConfig(); cfg.Store != "" && !cmd.IsSet("store") {
				storePath = cfg.Store
			}
			st, err := store.Open(storePath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer func() { _ = st.Close() }()

			id := cmd.Args().First()
			switch {
			case id == "":
				return listTranscripts(ctx, os.Stdout, st)
			case drop:
				return st.Clear(ctx, id)
			default:
				return printTranscript(ctx, os.Stdout, st, id)
			}
		},
	}
}

func listTranscripts(ctx context.Context, w io.Writer, st *store.Store) error {
	ids, err := st.Modules(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Fprintln(w, id)
	}
	return nil
}

func printTranscript(ctx context.Context, w io.Writer, st *store.Store, id string) error {
	recs, err := st.Records(ctx, id)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return fmt.Errorf("no transcript for %q", id)
	}
	for _, r := range recs {
		fmt.Fprintf(w, "[%s] %s: %s\n", r.CreatedAt.Format("2006-01-02 15:04:05"), r.Role, r.Text)
	}
	return nil
}
