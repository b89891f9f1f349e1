package chatmod

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/samcharles93/llmchat/internal/chat"
	"github.com/samcharles93/llmchat/internal/conversation"
	"github.com/samcharles93/llmchat/internal/device"
	"github.com/samcharles93/llmchat/internal/runtime"
	"github.com/samcharles93/llmchat/internal/tokenizer"
)

type memTranscript struct {
	mu      sync.Mutex
	turns   map[string][]conversation.Turn
	cleared int
}

func (t *memTranscript) Append(_ context.Context, id string, turn conversation.Turn) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.turns == nil {
		t.turns = make(map[string][]conversation.Turn)
	}
	t.turns[id] = append(t.turns[id], turn)
	return nil
}

func (t *memTranscript) Clear(_ context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.turns, id)
	t.cleared++
	return nil
}

func scriptedModule(t *testing.T, replies ...string) (*Module, *memTranscript) {
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
	cfg.ConvTemplate = "chatml"
	cfg.Temperature = 0

	tr := &memTranscript{}
	m, err := CreateChatModule(context.Background(), "cpu", Options{
		ID:         "test-module",
		Runtime:    "script",
		Config:     cfg,
		Tokenizer:  tok,
		Script:     script,
		Transcript: tr,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m, tr
}

func call(t *testing.T, m *Module, name string, args ...any) any {
	t.Helper()
	fn, ok := m.GetFunction(name)
	if !ok {
		t.Fatalf("function %q not found", name)
	}
	out, err := fn(context.Background(), args...)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return out
}

func TestCallableTableDrivesATurn(t *testing.T) {
	t.Parallel()
	m, tr := scriptedModule(t, "4")

	call(t, m, "process_input", "2+2=")
	var streamed string
	for i := 0; ; i++ {
		if i > 100 {
			t.Fatalf("turn did not stop")
		}
		streamed = chat.ApplyDeltaMessage(streamed, call(t, m, "decode_next").(string))
		if call(t, m, "stopped").(bool) {
			break
		}
	}
	if msg := call(t, m, "get_message").(string); msg != streamed || msg != "4" {
		t.Fatalf("message %q, streamed %q", msg, streamed)
	}

	history := call(t, m, "get_history").([]conversation.Turn)
	if len(history) != 2 || history[1].Text != "4" {
		t.Fatalf("history: %+v", history)
	}
	if !slices.Equal(tr.turns["test-module"], history) {
		t.Fatalf("transcript %+v differs from history %+v", tr.turns["test-module"], history)
	}
	if call(t, m, "runtime_stats_text").(string) == "" {
		t.Fatalf("empty stats")
	}
	call(t, m, "reset_runtime_stats")

	call(t, m, "reset")
	if len(call(t, m, "get_history").([]conversation.Turn)) != 0 || tr.cleared != 1 {
		t.Fatalf("reset did not clear history and transcript")
	}
}

func TestGetDeltaMessageEntry(t *testing.T) {
	t.Parallel()
	m, _ := scriptedModule(t, "x")

	if got := call(t, m, "get_delta_message", "Hello", "Hello, world"); got != ", world" {
		t.Fatalf("got %q", got)
	}
	if got := call(t, m, "get_delta_message", "hello world", "hello worl"); got != "\b" {
		t.Fatalf("got %q", got)
	}
}

func TestDispatchArgumentErrors(t *testing.T) {
	t.Parallel()
	m, _ := scriptedModule(t, "x")
	ctx := context.Background()

	tests := []struct {
		name string
		op   Op
		args []any
	}{
		{name: "missing text", op: OpProcessInput},
		{name: "non-string text", op: OpProcessInput, args: []any{42}},
		{name: "extra arg", op: OpGetMessage, args: []any{"x"}},
		{name: "one delta arg", op: OpGetDeltaMessage, args: []any{"a"}},
	}
	for _, tt := range tests {
		if _, err := m.Dispatch(ctx, tt.op, tt.args...); !errors.Is(err, ErrBadArguments) {
			t.Fatalf("%s: expected bad arguments, got %v", tt.name, err)
		}
	}
	if _, err := m.Dispatch(ctx, Op(99)); !errors.Is(err, ErrUnknownFunction) {
		t.Fatalf("unknown op: %v", err)
	}
	if _, ok := m.GetFunction("launch_missiles"); ok {
		t.Fatalf("unknown name resolved")
	}
	if _, err := m.Call(ctx, "decode_next"); !errors.Is(err, chat.ErrNotGenerating) {
		t.Fatalf("decode_next while idle: %v", err)
	}
}

func TestParseOpRoundTrip(t *testing.T) {
	t.Parallel()
	for _, name := range FunctionNames() {
		op, err := ParseOp(name)
		if err != nil {
			t.Fatalf("parse %q: %v", name, err)
		}
		if op.String() != name {
			t.Fatalf("op %d prints %q, want %q", op, op, name)
		}
	}
	if len(FunctionNames()) != int(numOps) {
		t.Fatalf("function table has %d entries, want %d", len(FunctionNames()), numOps)
	}
}

func TestCreateChatModuleBindErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		device string
		opts   Options
		cause  error
	}{
		{name: "unknown device", device: "tpu:0"},
		{name: "accelerator", device: "cuda:0", cause: runtime.ErrUnsupportedDevice},
		{name: "memory", device: "cpu", opts: Options{MemoryLimit: 16}, cause: runtime.ErrInsufficientMemory},
		{name: "runtime", device: "cpu", opts: Options{Runtime: "nope"}, cause: runtime.ErrUnknownRuntime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, err := CreateChatModule(context.Background(), tt.device, tt.opts)
			if m != nil {
				t.Fatalf("expected no module")
			}
			if !errors.Is(err, device.ErrBind) {
				t.Fatalf("expected bind error, got %v", err)
			}
			var be *device.BindError
			if !errors.As(err, &be) {
				t.Fatalf("expected *device.BindError, got %T", err)
			}
			if tt.cause != nil && !errors.Is(err, tt.cause) {
				t.Fatalf("expected cause %v, got %v", tt.cause, err)
			}
		})
	}
}

func TestCreateChatModuleDefaults(t *testing.T) {
	t.Parallel()

	m, err := CreateChatModule(context.Background(), "auto", Options{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer m.Close()
	if m.Device().Kind != device.Auto || m.Runtime() != "toy" || m.ID() == "" {
		t.Fatalf("unexpected module: device=%s runtime=%s id=%q", m.Device(), m.Runtime(), m.ID())
	}
	if err := m.ProcessInput("hi"); err != nil {
		t.Fatalf("process input: %v", err)
	}
	if _, err := m.DecodeNext(context.Background()); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := m.DecodeNext(context.Background()); !errors.Is(err, chat.ErrClosed) {
		t.Fatalf("decode after close: %v", err)
	}
}
