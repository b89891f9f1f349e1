package tokenizer

// Tokenizer converts between text and token ids.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(ids []int) (string, error)
}

// Vocabulary exposes id lookups used to resolve stop tokens.
type Vocabulary interface {
	TokenID(token string) (int, bool)
	TokenString(id int) string
	VocabSize() int
	EOSID() int
}
