package runtime

import (
	"fmt"

	"github.com/samcharles93/llmchat/internal/device"
)

// ScriptModel replays fixed token sequences. Every Prefill starts the next
// turn of the script; each call then returns one-hot logits for the next
// scripted token. Once a turn's script is exhausted its last token repeats.
type ScriptModel struct {
	Vocab int
	Turns [][]int

	maxContext int
	pos        int
	turn       int
	cursor     int
	closed     bool
}

func NewScriptModel(vocab, maxContext int, turns [][]int) *ScriptModel {
	return &ScriptModel{
		Vocab:      vocab,
		Turns:      turns,
		maxContext: maxContext,
		turn:       -1,
	}
}

func (m *ScriptModel) Prefill(ids []int) ([]float32, error) {
	if m.closed {
		return nil, fmt.Errorf("script model is closed")
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("prefill: empty input")
	}
	if err := m.advance(len(ids)); err != nil {
		return nil, err
	}
	m.turn++
	m.cursor = 0
	return m.next(), nil
}

func (m *ScriptModel) Decode(id int) ([]float32, error) {
	if m.closed {
		return nil, fmt.Errorf("script model is closed")
	}
	if id < 0 || id >= m.Vocab {
		return nil, fmt.Errorf("token %d outside vocab of %d", id, m.Vocab)
	}
	if err := m.advance(1); err != nil {
		return nil, err
	}
	m.cursor++
	return m.next(), nil
}

// Reset clears the context but keeps the turn position so a re-prefill
// after a mismatch moves on to the next scripted turn.
func (m *ScriptModel) Reset() {
	m.pos = 0
	m.cursor = 0
}

func (m *ScriptModel) Close() error {
	m.closed = true
	return nil
}

func (m *ScriptModel) advance(n int) error {
	if m.maxContext > 0 && m.pos+n > m.maxContext {
		return fmt.Errorf("%w: %d tokens", ErrContextLength, m.maxContext)
	}
	m.pos += n
	return nil
}

func (m *ScriptModel) next() []float32 {
	logits := make([]float32, m.Vocab)
	if len(m.Turns) == 0 {
		return logits
	}
	script := m.Turns[m.turn%len(m.Turns)]
	if len(script) == 0 {
		return logits
	}
	idx := min(m.cursor, len(script)-1)
	tok := script[idx]
	if tok >= 0 && tok < m.Vocab {
		logits[tok] = 1
	}
	return logits
}

func newScriptFactory(dev device.Device, opts Options) (Model, error) {
	if _, err := ResolveCPU(dev); err != nil {
		return nil, err
	}
	if opts.VocabSize <= 0 {
		return nil, fmt.Errorf("script runtime: vocab size is required")
	}
	if opts.MemoryLimit > 0 && int64(opts.VocabSize)*4 > opts.MemoryLimit {
		return nil, fmt.Errorf("%w: need %d bytes, limit %d", ErrInsufficientMemory, opts.VocabSize*4, opts.MemoryLimit)
	}
	return NewScriptModel(opts.VocabSize, opts.MaxContext, opts.Script), nil
}
