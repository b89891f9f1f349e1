package tokenizer

import (
	"reflect"
	"testing"
	"unicode/utf8"
)

func TestByteTokenizerRoundTrip(t *testing.T) {
	t.Parallel()

	tok, err := NewByteTokenizer(DefaultSpecials, "<s>", "</s>")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	in := "héllo <|im_end|> 世界"
	ids, err := tok.Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	imEnd, ok := tok.TokenID("<|im_end|>")
	if !ok {
		t.Fatalf("missing <|im_end|>")
	}
	found := false
	for _, id := range ids {
		if id == imEnd {
			found = true
		}
	}
	if !found {
		t.Fatalf("special token not encoded as a single id: %v", ids)
	}
	out, err := tok.Decode(ids)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("round trip: got %q want %q", out, in)
	}
	if tok.EOSID() != 257 {
		t.Fatalf("eos id: got %d want 257", tok.EOSID())
	}
}

func TestByteTokenizerPartialCharacter(t *testing.T) {
	t.Parallel()

	tok, err := NewByteTokenizer(nil, "", "")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ids, err := tok.Encode("世")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 byte tokens, got %v", ids)
	}
	partial, err := tok.Decode(ids[:2])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if utf8.ValidString(partial) {
		t.Fatalf("expected incomplete utf-8 for a two-byte prefix, got %q", partial)
	}
}

func TestLoadHFBytesAppliesMerges(t *testing.T) {
	t.Parallel()

	tokJSON := []byte(`{
		"model":{
			"type":"BPE",
			"vocab":{"h":0,"i":1,"hi":2,"Ġ":3,"Ġhi":4},
			"merges":["h i",["Ġ","hi"]]
		},
		"added_tokens":[{"id":5,"content":"<|im_end|>","special":true}]
	}`)
	tokConfig := []byte(`{"add_bos_token":false,"eos_token":{"content":"<|im_end|>"}}`)

	tok, err := LoadHFBytes(tokJSON, tokConfig)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ids, err := tok.Encode("hi hi<|im_end|>")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if want := []int{2, 4, 5}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("got %v want %v", ids, want)
	}
	if tok.EOSID() != 5 {
		t.Fatalf("eos id: got %d want 5", tok.EOSID())
	}
	text, err := tok.Decode(ids)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if text != "hi hi<|im_end|>" {
		t.Fatalf("decode: got %q", text)
	}
}

func TestLoadHFBytesRejectsUnsupportedModel(t *testing.T) {
	t.Parallel()

	_, err := LoadHFBytes([]byte(`{"model":{"type":"WordPiece","vocab":{},"merges":[]}}`), nil)
	if err == nil {
		t.Fatalf("expected unsupported tokenizer model error")
	}
}

func TestDecodeRejectsOutOfRange(t *testing.T) {
	t.Parallel()

	tok, err := NewByteTokenizer(nil, "", "")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := tok.Decode([]int{300}); err == nil {
		t.Fatalf("expected out of range error")
	}
}
