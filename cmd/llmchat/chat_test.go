package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/samcharles93/llmchat/internal/chat"
	"github.com/samcharles93/llmchat/internal/chatmod"
	"github.com/samcharles93/llmchat/internal/tokenizer"
)

func scriptedModule(t *testing.T, replies ...string) *chatmod.Module {
	t.Helper()
	tok, err := tokenizer.NewByteTokenizer(tokenizer.DefaultSpecials, "", "</s>")
	if err != nil {
		t.Fatalf("tokenizer: %v", err)
	}
	var script [][]int
	for _, r := range replies {
		ids, err := tok.Encode(r)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		script = append(script, append(ids, tok.EOSID()))
	}
	cfg := chat.DefaultConfig()
	cfg.Temperature = 0
	m, err := chatmod.CreateChatModule(context.Background(), "cpu", chatmod.Options{
		Runtime:   "script",
		Config:    cfg,
		Tokenizer: tok,
		Script:    script,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestTermWriterErasesRetraction(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	w := newTermWriter(&out)
	for _, step := range []string{"He", "Hey", "Hé"} {
		if err := w.Delta(chat.ComputeDelta(w.text, step)); err != nil {
			t.Fatalf("delta: %v", err)
		}
	}
	if w.text != "Hé" {
		t.Fatalf("tracked text %q", w.text)
	}
	if got, want := out.String(), "He"+"y"+"\b \b\b \bé"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	w.End()
	if w.text != "" || !strings.HasSuffix(out.String(), "\n") {
		t.Fatalf("end did not finish the reply")
	}
}

func TestTermWriterWideRetraction(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	w := newTermWriter(&out)
	_ = w.Delta(chat.ComputeDelta("", "日本"))
	_ = w.Delta(chat.ComputeDelta("日本", "日"))
	if got, want := out.String(), "日本"+strings.Repeat("\b \b", 2); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestRunTurnStreamsReply(t *testing.T) {
	t.Parallel()

	m := scriptedModule(t, "four")
	var out bytes.Buffer
	if err := runTurn(context.Background(), m, "2+2=", newTermWriter(&out)); err != nil {
		t.Fatalf("turn: %v", err)
	}
	if out.String() != "four\n" {
		t.Fatalf("output %q", out.String())
	}
}

func TestRunTurnCancelled(t *testing.T) {
	t.Parallel()

	m := scriptedModule(t, "never")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := runTurn(ctx, m, "hi", newTermWriter(io.Discard)); err != errInterrupted {
		t.Fatalf("expected interruption, got %v", err)
	}
	if m.Session().State() != chat.StateIdle {
		t.Fatalf("turn not abandoned: %s", m.Session().State())
	}
}

func TestREPL(t *testing.T) {
	t.Parallel()

	m := scriptedModule(t, "one", "two")
	lines := []string{"first", "/stats", "/history", "/bogus", "", "/reset", "/history", "/exit", "unreached"}
	var out, errOut bytes.Buffer
	r := &repl{
		module: m,
		out:    newTermWriter(&out),
		errOut: &errOut,
		readLine: func(string) (string, error) {
			if len(lines) == 0 {
				return "", io.EOF
			}
			l := lines[0]
			lines = lines[1:]
			return l, nil
		},
	}
	if err := r.run(context.Background()); err != nil {
		t.Fatalf("repl: %v", err)
	}
	if out.String() != "one\n" {
		t.Fatalf("output %q", out.String())
	}
	log := errOut.String()
	for _, want := range []string{"prefill:", "user: first", "assistant: one", "unknown command /bogus", "(conversation reset)"} {
		if !strings.Contains(log, want) {
			t.Fatalf("missing %q in %q", want, log)
		}
	}
	if len(lines) != 1 {
		t.Fatalf("repl did not stop at /exit")
	}
	if len(m.History()) != 0 {
		t.Fatalf("reset kept history")
	}
}

func TestPrintDelta(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	if err := printDelta(&out, "Hello", "Help", false); err != nil {
		t.Fatalf("print: %v", err)
	}
	if out.String() != "\"\\b\\bp\"\n" {
		t.Fatalf("plain: %q", out.String())
	}
	out.Reset()
	if err := printDelta(&out, "ab", "abc", true); err != nil {
		t.Fatalf("print: %v", err)
	}
	if !strings.Contains(out.String(), `"append":"c"`) || !strings.Contains(out.String(), `"prefix":2`) {
		t.Fatalf("json: %s", out.String())
	}
}
