package tokenizer

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

const gpt2Pattern = `'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+`

// Config describes a byte-level BPE vocabulary. Vocab entries are stored
// in their byte-to-unicode form; index is the token id.
type Config struct {
	Vocab    []string
	Merges   []string
	Specials []string
	Pattern  string
	AddBOS   bool
	BOS      string
	EOS      string
	UNK      string
}

type pair struct {
	a, b string
}

// BPE is a byte-level BPE tokenizer. Decoding a run of ids that ends in
// the middle of a multi-byte character yields the raw partial bytes;
// callers rendering streamed output must handle incomplete UTF-8.
type BPE struct {
	encoder  map[string]int
	decoder  []string
	ranks    map[pair]int
	specials []string
	special  map[int]bool
	pattern  *regexp.Regexp
	byteEnc  map[byte]string
	byteDec  map[rune]byte
	addBOS   bool
	bosID    int
	eosID    int
	unkID    int

	mu    sync.Mutex
	cache map[string][]string
}

func NewBPE(cfg Config) (*BPE, error) {
	if len(cfg.Vocab) == 0 {
		return nil, fmt.Errorf("empty vocabulary")
	}
	pat := cfg.Pattern
	if pat == "" {
		pat = gpt2Pattern
	}
	re, err := regexp.Compile(pat)
	if err != nil {
		return nil, fmt.Errorf("pre-tokenizer pattern: %w", err)
	}

	t := &BPE{
		encoder: make(map[string]int, len(cfg.Vocab)),
		decoder: append([]string(nil), cfg.Vocab...),
		ranks:   make(map[pair]int, len(cfg.Merges)),
		special: make(map[int]bool, len(cfg.Specials)),
		pattern: re,
		addBOS:  cfg.AddBOS,
		bosID:   -1,
		eosID:   -1,
		unkID:   -1,
		cache:   make(map[string][]string),
	}
	t.byteEnc, t.byteDec = bytesToUnicode()
	for id, tok := range cfg.Vocab {
		if _, dup := t.encoder[tok]; !dup {
			t.encoder[tok] = id
		}
	}
	for _, line := range cfg.Merges {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		a, b, ok := strings.Cut(line, " ")
		if !ok || strings.Contains(b, " ") {
			continue
		}
		p := pair{a: a, b: b}
		if _, seen := t.ranks[p]; !seen {
			t.ranks[p] = len(t.ranks)
		}
	}
	for _, sp := range cfg.Specials {
		id, ok := t.encoder[sp]
		if !ok {
			return nil, fmt.Errorf("special token %q not in vocabulary", sp)
		}
		t.special[id] = true
	}
	t.specials = longestFirst(cfg.Specials)

	lookup := func(name string) int {
		if name == "" {
			return -1
		}
		if id, ok := t.encoder[name]; ok {
			return id
		}
		return -1
	}
	t.bosID = lookup(cfg.BOS)
	t.eosID = lookup(cfg.EOS)
	t.unkID = lookup(cfg.UNK)
	if t.addBOS && t.bosID < 0 {
		return nil, fmt.Errorf("add_bos set but bos token %q not in vocabulary", cfg.BOS)
	}
	return t, nil
}

func (t *BPE) Encode(text string) ([]int, error) {
	var ids []int
	if t.addBOS {
		ids = append(ids, t.bosID)
	}
	for _, part := range splitSpecials(text, t.specials) {
		if part.isSpecial {
			ids = append(ids, t.encoder[part.text])
			continue
		}
		for _, word := range t.pattern.FindAllString(part.text, -1) {
			for _, sym := range t.bpe(t.byteEncode(word)) {
				id, ok := t.encoder[sym]
				if !ok {
					if t.unkID < 0 {
						return nil, fmt.Errorf("unknown token: %q", sym)
					}
					id = t.unkID
				}
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

func (t *BPE) Decode(ids []int) (string, error) {
	var b []byte
	for _, id := range ids {
		if id < 0 || id >= len(t.decoder) {
			return "", fmt.Errorf("token id out of range: %d", id)
		}
		tok := t.decoder[id]
		if t.special[id] {
			b = append(b, tok...)
			continue
		}
		for _, r := range tok {
			if by, ok := t.byteDec[r]; ok {
				b = append(b, by)
			} else {
				b = append(b, string(r)...)
			}
		}
	}
	return string(b), nil
}

func (t *BPE) TokenID(token string) (int, bool) {
	id, ok := t.encoder[token]
	return id, ok
}

func (t *BPE) TokenString(id int) string {
	if id < 0 || id >= len(t.decoder) {
		return ""
	}
	return t.decoder[id]
}

func (t *BPE) VocabSize() int { return len(t.decoder) }
func (t *BPE) BOSID() int     { return t.bosID }
func (t *BPE) EOSID() int     { return t.eosID }

func (t *BPE) byteEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		b.WriteString(t.byteEnc[s[i]])
	}
	return b.String()
}

func (t *BPE) bpe(token string) []string {
	t.mu.Lock()
	cached, ok := t.cache[token]
	t.mu.Unlock()
	if ok {
		return cached
	}

	word := make([]string, 0, len(token))
	for _, r := range token {
		word = append(word, string(r))
	}
	for len(word) > 1 && len(t.ranks) > 0 {
		best, bestRank := -1, int(^uint(0)>>1)
		for i := 0; i+1 < len(word); i++ {
			if r, ok := t.ranks[pair{a: word[i], b: word[i+1]}]; ok && r < bestRank {
				best, bestRank = i, r
			}
		}
		if best < 0 {
			break
		}
		a, b := word[best], word[best+1]
		merged := word[:0:0]
		for i := 0; i < len(word); i++ {
			if i+1 < len(word) && word[i] == a && word[i+1] == b {
				merged = append(merged, a+b)
				i++
				continue
			}
			merged = append(merged, word[i])
		}
		word = merged
	}

	t.mu.Lock()
	t.cache[token] = word
	t.mu.Unlock()
	return word
}
