package logits

import (
	"math"
	"math/rand"
	"sort"
)

// SamplerConfig configures the behaviour of a Sampler.
//
// Temperature <= 0 selects greedy decoding. TopK <= 0 keeps the whole
// vocabulary as candidates. RepeatLastN <= 0 penalises every id in the
// recent window passed to Sample.
type SamplerConfig struct {
	Seed          int64
	Temperature   float32
	TopK          int
	TopP          float32
	RepeatPenalty float32
	RepeatLastN   int
}

type Sampler struct {
	rng    *rand.Rand
	cfg    SamplerConfig
	greedy bool
	idx    []int
	prob   []float64
	seen   map[int]struct{}
}

// NewSampler returns a new sampler with the provided configuration.
func NewSampler(cfg SamplerConfig) *Sampler {
	greedy := cfg.Temperature <= 0
	if cfg.Temperature <= 0 {
		cfg.Temperature = 1
	}
	if cfg.TopP <= 0 || cfg.TopP > 1 {
		cfg.TopP = 1
	}
	if cfg.RepeatPenalty <= 0 {
		cfg.RepeatPenalty = 1
	}
	return &Sampler{
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		cfg:    cfg,
		greedy: greedy,
		seen:   make(map[int]struct{}),
	}
}

func (s *Sampler) Config() SamplerConfig { return s.cfg }

// Greedy reports whether Sample always returns the argmax.
func (s *Sampler) Greedy() bool { return s.greedy }

// Reseed restarts the random stream, making a replayed turn reproducible.
func (s *Sampler) Reseed(seed int64) {
	s.cfg.Seed = seed
	s.rng = rand.New(rand.NewSource(seed))
}

// Sample draws a token id from logits. The slice is modified in place.
//
//  1. Ids in recent have their logit divided (positive) or multiplied
//     (negative) by RepeatPenalty.
//  2. Greedy samplers return the argmax.
//  3. Logits are scaled by 1/Temperature and ranked; TopK truncates.
//  4. Softmax, then the candidate list is cut where the cumulative
//     probability first reaches TopP.
//  5. One draw from [0,1) selects the token.
func (s *Sampler) Sample(logits []float32, recent []int) int {
	if len(logits) == 0 {
		return 0
	}
	if s.cfg.RepeatPenalty != 1 && len(recent) > 0 {
		window := recent
		if s.cfg.RepeatLastN > 0 && len(window) > s.cfg.RepeatLastN {
			window = window[len(window)-s.cfg.RepeatLastN:]
		}
		clear(s.seen)
		for _, id := range window {
			if id < 0 || id >= len(logits) {
				continue
			}
			if _, dup := s.seen[id]; dup {
				continue
			}
			s.seen[id] = struct{}{}
			if logits[id] > 0 {
				logits[id] /= s.cfg.RepeatPenalty
			} else {
				logits[id] *= s.cfg.RepeatPenalty
			}
		}
	}

	if s.greedy {
		return Argmax(logits)
	}

	invTemp := 1 / s.cfg.Temperature
	idx := s.ranked(logits)
	if s.cfg.TopK > 0 && s.cfg.TopK < len(idx) {
		idx = idx[:s.cfg.TopK]
	}

	if cap(s.prob) < len(idx) {
		s.prob = make([]float64, len(idx))
	}
	prob := s.prob[:len(idx)]
	maxv := float64(logits[idx[0]] * invTemp)
	var sum float64
	for i, id := range idx {
		e := math.Exp(float64(logits[id]*invTemp) - maxv)
		prob[i] = e
		sum += e
	}
	if sum == 0 || math.IsNaN(sum) {
		return idx[0]
	}
	for i := range prob {
		prob[i] /= sum
	}

	cut := len(prob)
	if s.cfg.TopP < 1 {
		var c float64
		for i := range prob {
			c += prob[i]
			if c >= float64(s.cfg.TopP) {
				cut = i + 1
				break
			}
		}
	}
	// Renormalise over the nucleus.
	var mass float64
	for i := 0; i < cut; i++ {
		mass += prob[i]
	}

	r := s.rng.Float64() * mass
	var c float64
	for i := 0; i < cut; i++ {
		c += prob[i]
		if r < c {
			return idx[i]
		}
	}
	return idx[cut-1]
}

// ranked returns token ids ordered by descending logit. Ties keep the
// lower id first so results are stable across runs.
func (s *Sampler) ranked(logits []float32) []int {
	if cap(s.idx) < len(logits) {
		s.idx = make([]int, len(logits))
	}
	idx := s.idx[:len(logits)]
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return logits[idx[a]] > logits[idx[b]]
	})
	return idx
}

// Argmax returns the index of the maximum value; the first one wins ties.
func Argmax(x []float32) int {
	if len(x) == 0 {
		return 0
	}
	bestI := 0
	bestV := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > bestV {
			bestV = x[i]
			bestI = i
		}
	}
	return bestI
}
