// Package chatmod binds a chat session to a device and exposes it as a
// table of named functions that hosts can drive without static types.
package chatmod

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/samcharles93/llmchat/internal/chat"
	"github.com/samcharles93/llmchat/internal/conversation"
	"github.com/samcharles93/llmchat/internal/device"
	"github.com/samcharles93/llmchat/internal/logger"
	"github.com/samcharles93/llmchat/internal/runtime"
	"github.com/samcharles93/llmchat/internal/tokenizer"
)

// Transcript receives finished turns. *store.Store satisfies it.
type Transcript interface {
	Append(ctx context.Context, moduleID string, turn conversation.Turn) error
	Clear(ctx context.Context, moduleID string) error
}

// Options configure CreateChatModule.
type Options struct {
	// ID names the module; a random UUID is used when empty.
	ID string
	// Runtime selects a registered runtime; defaults to "toy".
	Runtime string
	Config  chat.Config
	// ModelDir holds tokenizer.json and, optionally,
	// tokenizer_config.json. Ignored when Tokenizer is set.
	ModelDir  string
	Tokenizer tokenizer.Tokenizer

	Hidden      int
	MemoryLimit int64
	Script      [][]int

	Transcript Transcript
	Logger     logger.Logger
}

// PackedFunc is a late-bound entry of the callable table.
type PackedFunc func(ctx context.Context, args ...any) (any, error)

// Module is one chat session bound to one device.
type Module struct {
	id         string
	dev        device.Device
	runtime    string
	session    *chat.Session
	transcript Transcript
	log        logger.Logger

	closeOnce sync.Once
	closeErr  error
}

// CreateChatModule places a model on the device named by deviceSpec and
// wraps it in a session. It returns a *device.BindError when the device
// is invalid or the runtime cannot place the model; nothing acquired is
// left open on failure.
func CreateChatModule(ctx context.Context, deviceSpec string, opts Options) (*Module, error) {
	dev, err := device.Parse(deviceSpec)
	if err != nil {
		return nil, &device.BindError{Device: device.Device{Kind: deviceSpec}, Err: err}
	}
	log := opts.Logger
	if log == nil {
		log = logger.FromContext(ctx)
	}
	if opts.Runtime == "" {
		opts.Runtime = "toy"
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Config.MaxGenLen == 0 && opts.Config.MaxWindowSize == 0 {
		opts.Config = chat.DefaultConfig()
	}

	tok, err := loadTokenizer(opts)
	if err != nil {
		return nil, fmt.Errorf("create chat module: %w", err)
	}
	vocab := opts.Config.VocabSize
	if v, ok := tok.(tokenizer.Vocabulary); ok {
		vocab = max(vocab, v.VocabSize())
	}

	model, err := runtime.Open(opts.Runtime, dev, runtime.Options{
		VocabSize:   vocab,
		Hidden:      opts.Hidden,
		MaxContext:  opts.Config.MaxWindowSize,
		MemoryLimit: opts.MemoryLimit,
		Seed:        opts.Config.Seed,
		Script:      opts.Script,
	})
	if err != nil {
		return nil, &device.BindError{Device: dev, Err: err}
	}

	m := &Module{
		id:         opts.ID,
		dev:        dev,
		runtime:    opts.Runtime,
		transcript: opts.Transcript,
		log:        log.With("module", opts.ID),
	}
	sess, err := chat.NewSession(model, tok, chat.Options{
		Config: opts.Config,
		Logger: m.log,
		OnTurn: m.persist,
	})
	if err != nil {
		if cerr := model.Close(); cerr != nil {
			m.log.Warn("release model after failed construction", "error", cerr)
		}
		return nil, fmt.Errorf("create chat module: %w", err)
	}
	m.session = sess
	m.log.Info("chat module created", "device", dev.String(), "runtime", opts.Runtime)
	return m, nil
}

func loadTokenizer(opts Options) (tokenizer.Tokenizer, error) {
	if opts.Tokenizer != nil {
		return opts.Tokenizer, nil
	}
	if opts.ModelDir == "" {
		return tokenizer.NewByteTokenizer(tokenizer.DefaultSpecials, "", "</s>")
	}
	cfgPath := filepath.Join(opts.ModelDir, "tokenizer_config.json")
	if _, err := os.Stat(cfgPath); err != nil {
		cfgPath = ""
	}
	return tokenizer.LoadHF(filepath.Join(opts.ModelDir, "tokenizer.json"), cfgPath)
}

func (m *Module) persist(turn conversation.Turn) {
	if m.transcript == nil {
		return
	}
	if err := m.transcript.Append(context.Background(), m.id, turn); err != nil {
		m.log.Warn("persist turn", "role", turn.Role, "error", err)
	}
}

func (m *Module) ID() string            { return m.id }
func (m *Module) Device() device.Device { return m.dev }
func (m *Module) Runtime() string       { return m.runtime }

// Session exposes the typed interface behind the callable table.
func (m *Module) Session() *chat.Session { return m.session }

// Reset clears the conversation and its stored transcript.
func (m *Module) Reset(ctx context.Context) error {
	if err := m.session.ResetAll(); err != nil {
		return err
	}
	if m.transcript != nil {
		if err := m.transcript.Clear(ctx, m.id); err != nil {
			return fmt.Errorf("clear transcript: %w", err)
		}
	}
	return nil
}

func (m *Module) ResetTurn() { m.session.ResetTurn() }

func (m *Module) ProcessInput(text string) error { return m.session.AddInput(text) }

func (m *Module) DecodeNext(ctx context.Context) (chat.Delta, error) {
	return m.session.Step(ctx)
}

func (m *Module) Stopped() (bool, error) { return m.session.Stopped() }

func (m *Module) Message() string { return m.session.Message() }

func (m *Module) History() []conversation.Turn { return m.session.History() }

func (m *Module) StatsText() string { return m.session.Stats().Text() }

func (m *Module) ResetStats() { m.session.ResetStats() }

// Close waits for an in-flight step and releases the device binding.
func (m *Module) Close() error {
	m.closeOnce.Do(func() {
		m.closeErr = m.session.Close()
		m.log.Info("chat module closed")
	})
	return m.closeErr
}

// Dispatch runs op with late-bound arguments. decode_next returns the
// delta encoded as by GetDeltaMessage; stopped returns the turn's fault,
// if any, alongside true.
func (m *Module) Dispatch(ctx context.Context, op Op, args ...any) (any, error) {
	switch op {
	case OpReset:
		if err := wantArgs(op, args, 0); err != nil {
			return nil, err
		}
		return nil, m.Reset(ctx)
	case OpResetTurn:
		if err := wantArgs(op, args, 0); err != nil {
			return nil, err
		}
		m.ResetTurn()
		return nil, nil
	case OpProcessInput:
		if err := wantArgs(op, args, 1); err != nil {
			return nil, err
		}
		text, err := stringArg(op, args, 0)
		if err != nil {
			return nil, err
		}
		return nil, m.ProcessInput(text)
	case OpDecodeNext:
		if err := wantArgs(op, args, 0); err != nil {
			return nil, err
		}
		d, err := m.DecodeNext(ctx)
		if err != nil {
			return nil, err
		}
		return d.String(), nil
	case OpStopped:
		if err := wantArgs(op, args, 0); err != nil {
			return nil, err
		}
		return m.Stopped()
	case OpGetMessage:
		if err := wantArgs(op, args, 0); err != nil {
			return nil, err
		}
		return m.Message(), nil
	case OpGetDeltaMessage:
		if err := wantArgs(op, args, 2); err != nil {
			return nil, err
		}
		curr, err := stringArg(op, args, 0)
		if err != nil {
			return nil, err
		}
		next, err := stringArg(op, args, 1)
		if err != nil {
			return nil, err
		}
		return chat.GetDeltaMessage(curr, next), nil
	case OpRuntimeStatsText:
		if err := wantArgs(op, args, 0); err != nil {
			return nil, err
		}
		return m.StatsText(), nil
	case OpResetRuntimeStats:
		if err := wantArgs(op, args, 0); err != nil {
			return nil, err
		}
		m.ResetStats()
		return nil, nil
	case OpGetHistory:
		if err := wantArgs(op, args, 0); err != nil {
			return nil, err
		}
		return m.History(), nil
	default:
		return nil, fmt.Errorf("%w %s", ErrUnknownFunction, op)
	}
}

// GetFunction looks up a named entry of the callable table.
func (m *Module) GetFunction(name string) (PackedFunc, bool) {
	op, err := ParseOp(name)
	if err != nil {
		return nil, false
	}
	return func(ctx context.Context, args ...any) (any, error) {
		return m.Dispatch(ctx, op, args...)
	}, true
}

// Call is GetFunction followed by the call.
func (m *Module) Call(ctx context.Context, name string, args ...any) (any, error) {
	op, err := ParseOp(name)
	if err != nil {
		return nil, err
	}
	return m.Dispatch(ctx, op, args...)
}
