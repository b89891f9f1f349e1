package tokenizer

// NewByteTokenizer returns a tokenizer whose vocabulary is the 256 raw
// bytes (ids 0-255) followed by the given special tokens. Every
// non-ASCII character spans several tokens, which makes it useful for
// exercising streaming of partial characters.
func NewByteTokenizer(specials []string, bos, eos string) (*BPE, error) {
	enc, _ := bytesToUnicode()
	vocab := make([]string, 0, 256+len(specials))
	for b := 0; b < 256; b++ {
		vocab = append(vocab, enc[byte(b)])
	}
	vocab = append(vocab, specials...)
	return NewBPE(Config{
		Vocab:    vocab,
		Specials: specials,
		BOS:      bos,
		EOS:      eos,
	})
}

// DefaultSpecials are the control tokens used by the bundled
// conversation templates.
var DefaultSpecials = []string{
	"<s>", "</s>", "<unk>",
	"<|im_start|>", "<|im_end|>", "<|endoftext|>",
}
