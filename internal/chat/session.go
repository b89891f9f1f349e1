package chat

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/samcharles93/llmchat/internal/conversation"
	"github.com/samcharles93/llmchat/internal/logger"
	"github.com/samcharles93/llmchat/internal/runtime"
	"github.com/samcharles93/llmchat/internal/tokenizer"
)

// State is the generation state of a session.
type State int

const (
	StateIdle State = iota
	StatePrefilling
	StateDecoding
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePrefilling:
		return "prefilling"
	case StateDecoding:
		return "decoding"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options configure a Session.
type Options struct {
	Config Config
	// Template overrides Config.ConvTemplate.
	Template *conversation.Template
	Logger   logger.Logger
	// OnTurn observes every turn appended to the history. It runs outside
	// the session lock.
	OnTurn func(conversation.Turn)
}

// Session is one conversation bound to one model. At most one Step runs at
// a time; resets issued during a step take effect at the step boundary.
type Session struct {
	mu   sync.Mutex
	cond *sync.Cond

	gen    *generator
	render Renderer
	diff   func(prev, cur string) Delta
	log    logger.Logger
	onTurn func(conversation.Turn)

	history  []conversation.Turn
	buf      TokenBuffer
	rendered string
	state    State
	finish   FinishReason
	fault    error
	steps    int
	busy     bool
	closed   bool
	stats    Stats
}

// NewSession takes ownership of model; Close releases it.
func NewSession(model runtime.Model, tok tokenizer.Tokenizer, opts Options) (*Session, error) {
	if model == nil || tok == nil {
		return nil, fmt.Errorf("new session: model and tokenizer are required")
	}
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var tpl conversation.Template
	if opts.Template != nil {
		tpl = *opts.Template
	} else {
		var ok bool
		if tpl, ok = conversation.Lookup(cfg.ConvTemplate); !ok {
			return nil, fmt.Errorf("unknown conversation template %q (available: %v)", cfg.ConvTemplate, conversation.Names())
		}
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	s := &Session{
		gen:    newGenerator(model, tok, tpl, cfg),
		render: NewRenderer(tok),
		diff:   ComputeDelta,
		log:    log.With("template", tpl.Name),
		onTurn: opts.OnTurn,
	}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

// AddInput appends a user turn and arms the prefill for the next Step.
// It is only valid when no turn is in progress.
func (s *Session) AddInput(text string) error {
	s.mu.Lock()
	s.waitIdleLocked()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state == StatePrefilling || s.state == StateDecoding {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot add input while %s", ErrInvalidState, state)
	}
	turn := conversation.Turn{Role: conversation.RoleUser, Text: text}
	s.history = append(s.history, turn)
	s.startTurn()
	s.state = StatePrefilling
	s.mu.Unlock()

	s.log.Debug("user input accepted", "chars", len(text))
	s.notify(turn)
	return nil
}

// Step runs the pending prefill or one decode step and returns the delta
// between the previously rendered message and the new one.
func (s *Session) Step(ctx context.Context) (Delta, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Delta{}, ErrClosed
	}
	if s.busy {
		s.mu.Unlock()
		return Delta{}, ErrStepInFlight
	}
	if s.state != StatePrefilling && s.state != StateDecoding {
		s.mu.Unlock()
		return Delta{}, ErrNotGenerating
	}
	if err := ctx.Err(); err != nil {
		s.mu.Unlock()
		return Delta{}, err
	}
	s.busy = true
	phase := s.state
	step := s.steps
	var history []conversation.Turn
	if phase == StatePrefilling {
		history = slices.Clone(s.history)
	}
	s.mu.Unlock()

	var (
		o       outcome
		err     error
		fed     int
		prefill time.Duration
	)
	start := time.Now()
	if phase == StatePrefilling {
		fed, err = s.gen.prefill(history)
		prefill = time.Since(start)
	}
	if err == nil {
		o, err = s.gen.advance(&s.buf, s.render)
	}
	elapsed := time.Since(start)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.release()

	if err != nil {
		name := "decode"
		if phase == StatePrefilling {
			name = "prefill"
		}
		return Delta{}, s.failLocked(&GenerationFault{Phase: name, Step: step, Err: err})
	}

	if phase == StatePrefilling {
		s.stats.PrefillTokens += fed
		s.stats.PrefillTime += prefill
		s.stats.DecodeTime += elapsed - prefill
	} else {
		s.stats.DecodeTime += elapsed
	}
	if o.append {
		s.buf.Append(o.id)
		s.stats.DecodeTokens++
	}
	s.steps++

	prev := s.rendered
	d := s.diff(prev, o.text)
	if got := d.Apply(prev); got != o.text {
		return Delta{}, s.failLocked(fmt.Errorf("%w: applying %+v to %q gave %q, want %q", ErrRenderInconsistency, d, prev, got, o.text))
	}
	s.rendered = o.text
	s.state = StateDecoding

	if o.finish != FinishNone {
		s.state = StateStopped
		s.finish = o.finish
		turn := conversation.Turn{Role: conversation.RoleAssistant, Text: o.text}
		s.history = append(s.history, turn)
		s.log.Debug("turn finished", "reason", string(o.finish), "tokens", s.buf.Len())
		if s.onTurn != nil {
			s.mu.Unlock()
			s.onTurn(turn)
			s.mu.Lock()
		}
	}
	return d, nil
}

// failLocked stops the turn with err. The model context is dropped so the
// next turn re-prefills from scratch.
func (s *Session) failLocked(err error) error {
	s.state = StateStopped
	s.finish = FinishFault
	s.fault = err
	s.gen.contextTokens = nil
	s.gen.pending = nil
	s.log.Warn("generation stopped by fault", "error", err)
	return err
}

// release ends the in-flight step and wakes waiting resets.
func (s *Session) release() {
	s.busy = false
	s.cond.Broadcast()
}

func (s *Session) waitIdleLocked() {
	for s.busy {
		s.cond.Wait()
	}
}

// Stopped reports whether the current turn has ended, together with the
// fault that ended it, if any.
func (s *Session) Stopped() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateStopped, s.fault
}

// Message is the text rendered after the last completed step.
func (s *Session) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rendered
}

func (s *Session) History() []conversation.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

// Tokens returns the ids generated in the current turn.
func (s *Session) Tokens() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Tokens()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) FinishReason() FinishReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finish
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Session) ResetStats() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = Stats{}
}

// ResetTurn abandons the current turn. History is kept.
func (s *Session) ResetTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waitIdleLocked()
	s.startTurn()
	s.state = StateIdle
	s.log.Debug("turn reset")
}

// ResetAll returns the session to its initial state.
func (s *Session) ResetAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waitIdleLocked()
	if s.closed {
		return ErrClosed
	}
	s.history = nil
	s.startTurn()
	s.state = StateIdle
	s.log.Debug("session reset")
	if err := s.gen.reset(); err != nil {
		return fmt.Errorf("reset runtime: %w", err)
	}
	return nil
}

// Close waits for an in-flight step and releases the model.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waitIdleLocked()
	if s.closed {
		return nil
	}
	s.closed = true
	s.state = StateIdle
	return s.gen.model.Close()
}

func (s *Session) startTurn() {
	s.buf.Clear()
	s.rendered = ""
	s.finish = FinishNone
	s.fault = nil
	s.steps = 0
}

func (s *Session) notify(turn conversation.Turn) {
	if s.onTurn != nil {
		s.onTurn(turn)
	}
}
