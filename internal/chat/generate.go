package chat

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/samcharles93/llmchat/internal/conversation"
	"github.com/samcharles93/llmchat/internal/logits"
	"github.com/samcharles93/llmchat/internal/runtime"
	"github.com/samcharles93/llmchat/internal/tokenizer"
)

// FinishReason records why a turn stopped.
type FinishReason string

const (
	FinishNone    FinishReason = ""
	FinishEOS     FinishReason = "eos"
	FinishLength  FinishReason = "length"
	FinishStop    FinishReason = "stop"
	FinishContext FinishReason = "context"
	FinishFault   FinishReason = "fault"
)

// generator drives one model through prefill and decode. It is only
// touched by the goroutine holding the session's in-flight step.
type generator struct {
	model   runtime.Model
	tok     tokenizer.Tokenizer
	sampler *logits.Sampler
	tpl     conversation.Template
	cfg     Config

	stopIDs  []int
	stopStrs []string

	// contextTokens are the ids the model has consumed since its last reset.
	contextTokens []int
	pending       []float32
	windowStart   int
}

// outcome is the result of one sample-append-feed cycle.
type outcome struct {
	id     int
	append bool
	text   string
	finish FinishReason
}

func newGenerator(model runtime.Model, tok tokenizer.Tokenizer, tpl conversation.Template, cfg Config) *generator {
	g := &generator{
		model: model,
		tok:   tok,
		tpl:   tpl,
		cfg:   cfg,
		sampler: logits.NewSampler(logits.SamplerConfig{
			Seed:          cfg.Seed,
			Temperature:   cfg.Temperature,
			TopP:          cfg.TopP,
			RepeatPenalty: cfg.RepetitionPenalty,
		}),
	}
	if vocab, ok := tok.(tokenizer.Vocabulary); ok {
		for _, s := range tpl.StopTokens {
			if id, ok := vocab.TokenID(s); ok && !slices.Contains(g.stopIDs, id) {
				g.stopIDs = append(g.stopIDs, id)
			}
		}
		if eos := vocab.EOSID(); eos >= 0 && !slices.Contains(g.stopIDs, eos) {
			g.stopIDs = append(g.stopIDs, eos)
		}
	}
	for _, s := range []string{tpl.StopStr, cfg.StopStr} {
		if s != "" && !slices.Contains(g.stopStrs, s) {
			g.stopStrs = append(g.stopStrs, s)
		}
	}
	return g
}

// prefill encodes the prompt window of history and feeds the part of it
// the model has not seen yet. It returns the number of tokens fed.
func (g *generator) prefill(history []conversation.Turn) (int, error) {
	ids, err := g.promptTokens(history)
	if err != nil {
		return 0, err
	}

	n := len(g.contextTokens)
	reuse := n > 0 && len(ids) > n && slices.Equal(ids[:n], g.contextTokens)
	if !reuse {
		if err := safeReset(g.model); err != nil {
			return 0, err
		}
		g.contextTokens = g.contextTokens[:0]
	}

	fresh := ids[len(g.contextTokens):]
	out, err := safePrefill(g.model, fresh)
	if err != nil {
		g.contextTokens = nil
		return 0, err
	}
	g.contextTokens = append(g.contextTokens, fresh...)
	g.pending = out
	return len(fresh), nil
}

// promptTokens renders history from the current window start. When the
// prompt plus the expected reply would overflow the window, older turns
// are dropped until the prompt fits in shift_fill_factor of the window.
func (g *generator) promptTokens(history []conversation.Turn) ([]int, error) {
	window := g.cfg.MaxWindowSize
	if g.windowStart >= len(history) {
		g.windowStart = 0
	}
	ids, err := g.encode(history[g.windowStart:])
	if err != nil {
		return nil, err
	}
	if len(ids)+g.cfg.MeanGenLen <= window {
		return ids, nil
	}

	target := int(g.cfg.ShiftFillFactor * float64(window))
	start := g.windowStart
	for len(ids) > target {
		next := nextUserTurn(history, start+1)
		if next < 0 {
			break
		}
		start = next
		if ids, err = g.encode(history[start:]); err != nil {
			return nil, err
		}
	}
	if len(ids) >= window {
		return nil, fmt.Errorf("%w: prompt of %d tokens does not fit window of %d", runtime.ErrContextLength, len(ids), window)
	}
	g.windowStart = start
	return ids, nil
}

func nextUserTurn(history []conversation.Turn, from int) int {
	for i := from; i < len(history); i++ {
		if history[i].Role == conversation.RoleUser {
			return i
		}
	}
	return -1
}

func (g *generator) encode(turns []conversation.Turn) ([]int, error) {
	prompt, err := g.tpl.Prompt(turns)
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}
	ids, err := safeEncode(g.tok, prompt)
	if err != nil {
		return nil, fmt.Errorf("encode prompt: %w", err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("encode prompt: empty token sequence")
	}
	return ids, nil
}

// advance samples the next token from the pending logits, renders the
// turn with it and checks the stop conditions. Unless the turn ends, the
// token is fed to the model so the following call has fresh logits.
func (g *generator) advance(buf *TokenBuffer, r Renderer) (outcome, error) {
	if g.pending == nil {
		return outcome{}, fmt.Errorf("no pending logits")
	}
	id := g.sampler.Sample(g.pending, buf.ids)
	g.pending = nil

	if slices.Contains(g.stopIDs, id) {
		text, err := r.RenderFinal(buf.ids)
		return outcome{id: id, text: g.cut(text), finish: FinishEOS}, err
	}

	ids := buf.with(id)
	text, err := r.Render(ids)
	if err != nil {
		return outcome{}, err
	}
	o := outcome{id: id, append: true, text: text}

	switch {
	case g.hasStop(text):
		o.finish = FinishStop
	case len(ids) >= g.cfg.MaxGenLen:
		o.finish = FinishLength
	case len(g.contextTokens) >= g.cfg.MaxWindowSize:
		o.finish = FinishContext
	}
	if o.finish != FinishNone {
		final, err := r.RenderFinal(ids)
		if err != nil {
			return outcome{}, err
		}
		o.text = g.cut(final)
		return o, nil
	}

	out, err := safeDecode(g.model, id)
	if err != nil {
		g.contextTokens = nil
		return outcome{}, err
	}
	g.contextTokens = append(g.contextTokens, id)
	g.pending = out
	return o, nil
}

func (g *generator) hasStop(text string) bool {
	for _, s := range g.stopStrs {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

// cut truncates text before the earliest stop string.
func (g *generator) cut(text string) string {
	end := len(text)
	for _, s := range g.stopStrs {
		if i := strings.Index(text, s); i >= 0 && i < end {
			end = i
		}
	}
	return text[:end]
}

// reset drops all model state, used when the whole conversation restarts.
func (g *generator) reset() error {
	g.contextTokens = nil
	g.pending = nil
	g.windowStart = 0
	g.sampler.Reseed(g.cfg.Seed)
	return safeReset(g.model)
}

// Stats accumulates runtime throughput.
type Stats struct {
	PrefillTokens int           `json:"prefill_tokens"`
	PrefillTime   time.Duration `json:"prefill_time"`
	DecodeTokens  int           `json:"decode_tokens"`
	DecodeTime    time.Duration `json:"decode_time"`
}

func rate(tokens int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(tokens) / d.Seconds()
}

func (s Stats) PrefillRate() float64 { return rate(s.PrefillTokens, s.PrefillTime) }
func (s Stats) DecodeRate() float64  { return rate(s.DecodeTokens, s.DecodeTime) }

func (s Stats) Text() string {
	return fmt.Sprintf("prefill: %.1f tok/s, decode: %.1f tok/s", s.PrefillRate(), s.DecodeRate())
}

func safeReset(m runtime.Model) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Reset: %v", rec)
		}
	}()
	m.Reset()
	return nil
}

func safePrefill(m runtime.Model, ids []int) (out []float32, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Prefill: %v", rec)
		}
	}()
	return m.Prefill(ids)
}

func safeDecode(m runtime.Model, id int) (out []float32, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Decode: %v", rec)
		}
	}()
	return m.Decode(id)
}

func safeEncode(tok tokenizer.Tokenizer, prompt string) (ids []int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Encode: %v", rec)
		}
	}()
	return tok.Encode(prompt)
}
