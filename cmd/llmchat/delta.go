package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/llmchat/internal/chat"
)

// deltaCmd prints the streaming delta between two renderings of a
// message.
func deltaCmd() *cli.Command {
	var asJSON bool
	return &cli.Command{
		Name:      "delta",
		Usage:     "Print the delta that turns CURR into NEW",
		ArgsUsage: "CURR NEW",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print prefix, retraction and append as JSON",
				Destination: &asJSON,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 2 {
				return cli.Exit("usage: llmchat delta CURR NEW", 2)
			}
			return printDelta(os.Stdout, cmd.Args().Get(0), cmd.Args().Get(1), asJSON)
		},
	}
}

func printDelta(w io.Writer, curr, next string, asJSON bool) error {
	d := chat.ComputeDelta(curr, next)
	if !asJSON {
		_, err := fmt.Fprintf(w, "%q\n", d.String())
		return err
	}
	b, err := json.Marshal(map[string]any{
		"delta":   d.String(),
		"prefix":  d.Prefix,
		"retract": d.Retracted(),
		"append":  d.Append,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", b)
	return err
}
