package runtime

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/samcharles93/llmchat/internal/device"
)

// ToyLM is a tiny recurrent language model with seeded random weights. It
// is not meant to produce sensible text; it gives the chat engine a real
// stateful runtime on the host for demos and benchmarks.
type ToyLM struct {
	Vocab  int
	Hidden int

	emb  []float32 // [Vocab x Hidden]
	w    []float32 // [Hidden x Vocab]
	bias []float32 // [Vocab]
	h    []float32 // recurrent state [Hidden]

	maxContext int
	pos        int
}

// NewToyLM constructs a model with deterministic weights derived from seed.
func NewToyLM(vocab, hidden, maxContext int, seed int64) *ToyLM {
	m := &ToyLM{
		Vocab:      vocab,
		Hidden:     hidden,
		emb:        make([]float32, vocab*hidden),
		w:          make([]float32, hidden*vocab),
		bias:       make([]float32, vocab),
		h:          make([]float32, hidden),
		maxContext: maxContext,
	}
	fillRand(m.emb, seed+11)
	fillRand(m.w, seed+23)
	return m
}

// MemoryBytes is the size of the weights and state.
func (m *ToyLM) MemoryBytes() int64 {
	return int64(len(m.emb)+len(m.w)+len(m.bias)+len(m.h)) * 4
}

func (m *ToyLM) Prefill(ids []int) ([]float32, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("prefill: empty input")
	}
	var logits []float32
	for _, id := range ids {
		var err error
		logits, err = m.Decode(id)
		if err != nil {
			return nil, err
		}
	}
	return logits, nil
}

func (m *ToyLM) Decode(tok int) ([]float32, error) {
	if tok < 0 || tok >= m.Vocab {
		return nil, fmt.Errorf("token %d outside vocab of %d", tok, m.Vocab)
	}
	if m.maxContext > 0 && m.pos >= m.maxContext {
		return nil, fmt.Errorf("%w: %d tokens", ErrContextLength, m.maxContext)
	}
	m.pos++

	row := m.emb[tok*m.Hidden : (tok+1)*m.Hidden]
	for i := range m.h {
		m.h[i] = float32(math.Tanh(float64(0.5*m.h[i] + row[i])))
	}
	logits := make([]float32, m.Vocab)
	for i, hv := range m.h {
		wr := m.w[i*m.Vocab : (i+1)*m.Vocab]
		for j := range logits {
			logits[j] += hv * wr[j]
		}
	}
	for j := range logits {
		logits[j] += m.bias[j]
	}
	return logits, nil
}

func (m *ToyLM) Reset() {
	clear(m.h)
	m.pos = 0
}

func (m *ToyLM) Close() error {
	m.emb, m.w, m.bias, m.h = nil, nil, nil, nil
	return nil
}

func fillRand(dst []float32, seed int64) {
	r := rand.New(rand.NewSource(seed))
	for i := range dst {
		dst[i] = float32(r.NormFloat64())
	}
}

func newToyFactory(dev device.Device, opts Options) (Model, error) {
	if _, err := ResolveCPU(dev); err != nil {
		return nil, err
	}
	vocab := opts.VocabSize
	if vocab <= 0 {
		return nil, fmt.Errorf("toy runtime: vocab size is required")
	}
	hidden := opts.Hidden
	if hidden <= 0 {
		hidden = 32
	}
	need := int64(vocab*hidden*2+vocab+hidden) * 4
	if opts.MemoryLimit > 0 && need > opts.MemoryLimit {
		return nil, fmt.Errorf("%w: need %d bytes, limit %d", ErrInsufficientMemory, need, opts.MemoryLimit)
	}
	return NewToyLM(vocab, hidden, opts.MaxContext, opts.Seed), nil
}
