package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/llmchat/internal/chat"
	"github.com/samcharles93/llmchat/internal/chatmod"
	"github.com/samcharles93/llmchat/internal/logger"
)

const replHelp = `Commands:
  /help         show this help
  /reset        start a new conversation
  /stats        print runtime throughput
  /reset_stats  zero the throughput counters
  /history      print the conversation so far
  /exit         quit`

var errInterrupted = errors.New("interrupted")

func chatCmd() *cli.Command {
	f := newModuleFlags()
	var (
		prompt    string
		id        string
		showStats bool
	)
	return &cli.Command{
		Name:  "chat",
		Usage: "Chat with a model, interactively or for a single prompt",
		Flags: append(f.flags(),
			&cli.StringFlag{
				Name:        "prompt",
				Aliases:     []string{"p"},
				Usage:       "run one turn and exit",
				Destination: &prompt,
			},
			&cli.StringFlag{
				Name:        "id",
				Usage:       "module id; names the stored transcript",
				Destination: &id,
			},
			&cli.BoolFlag{
				Name:        "stats",
				Usage:       "print throughput after every turn",
				Destination: &showStats,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger.FromContext(ctx)
			applyModuleConfig(c, LoadConfig(), f)
			opts, closer, err := f.moduleOptions(ctx, c)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer func() { _ = closer.Close() }()
			opts.ID = id

			m, err := chatmod.CreateChatModule(ctx, f.device, opts)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: create chat module: %v", err), 1)
			}
			defer func() {
				if err := m.Close(); err != nil {
					log.Warn("close chat module", "error", err)
				}
			}()

			out := newTermWriter(os.Stdout)
			if prompt != "" {
				if err := runTurn(ctx, m, prompt, out); err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				if showStats {
					fmt.Fprintln(os.Stderr, m.StatsText())
				}
				return nil
			}

			fmt.Fprintf(os.Stderr, "Chatting on %s (%s). Type /help for commands.\n", m.Device(), m.Runtime())
			r := &repl{module: m, out: out, errOut: os.Stderr, readLine: readInteractiveLine, stats: showStats}
			return r.run(ctx)
		},
	}
}

// repl drives a module from line input.
type repl struct {
	module   *chatmod.Module
	out      *termWriter
	errOut   io.Writer
	readLine func(prompt string) (string, error)
	stats    bool
}

func (r *repl) run(ctx context.Context) error {
	for {
		line, err := r.readLine("> ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			quit, err := r.command(ctx, line)
			if err != nil {
				fmt.Fprintln(r.errOut, "error:", err)
			}
			if quit {
				return nil
			}
			continue
		}

		turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		err = runTurn(turnCtx, r.module, line, r.out)
		stop()
		switch {
		case errors.Is(err, errInterrupted):
			fmt.Fprintln(r.errOut, "(interrupted)")
		case err != nil:
			fmt.Fprintln(r.errOut, "error:", err)
		case r.stats:
			fmt.Fprintln(r.errOut, r.module.StatsText())
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (r *repl) command(ctx context.Context, line string) (bool, error) {
	switch strings.Fields(line)[0] {
	case "/exit", "/quit":
		return true, nil
	case "/help":
		fmt.Fprintln(r.errOut, replHelp)
	case "/reset":
		if err := r.module.Reset(ctx); err != nil {
			return false, err
		}
		fmt.Fprintln(r.errOut, "(conversation reset)")
	case "/stats":
		fmt.Fprintln(r.errOut, r.module.StatsText())
	case "/reset_stats":
		r.module.ResetStats()
	case "/history":
		for _, t := range r.module.History() {
			fmt.Fprintf(r.errOut, "%s: %s\n", t.Role, t.Text)
		}
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", line)
	}
	return false, nil
}

// runTurn feeds input and streams the reply to w until the turn stops.
// A cancelled ctx abandons the turn.
func runTurn(ctx context.Context, m *chatmod.Module, input string, w *termWriter) error {
	if err := m.ProcessInput(input); err != nil {
		return err
	}
	defer w.End()
	for {
		d, err := m.DecodeNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				m.ResetTurn()
				return errInterrupted
			}
			return err
		}
		if err := w.Delta(d); err != nil {
			m.ResetTurn()
			return err
		}
		if done, _ := m.Stopped(); done {
			return nil
		}
	}
}

// termWriter paints streamed deltas on a terminal. Retracted text is
// erased cell by cell with backspace-space-backspace, so wide characters
// take two.
type termWriter struct {
	w    io.Writer
	text string
}

func newTermWriter(w io.Writer) *termWriter { return &termWriter{w: w} }

func (t *termWriter) Delta(d chat.Delta) error {
	if d.Empty() {
		return nil
	}
	var b strings.Builder
	if d.Prefix < len(t.text) {
		b.WriteString(strings.Repeat("\b \b", runewidth.StringWidth(t.text[d.Prefix:])))
	}
	b.WriteString(d.Append)
	t.text = d.Apply(t.text)
	_, err := io.WriteString(t.w, b.String())
	return err
}

// End finishes the current reply.
func (t *termWriter) End() {
	_, _ = io.WriteString(t.w, "\n")
	t.text = ""
}
