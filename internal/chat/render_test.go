package chat

import (
	"errors"
	"testing"

	"github.com/samcharles93/llmchat/internal/tokenizer"
)

func TestRendererHoldsBackPartialCharacter(t *testing.T) {
	t.Parallel()

	tok, err := tokenizer.NewByteTokenizer(nil, "", "")
	if err != nil {
		t.Fatalf("tokenizer: %v", err)
	}
	ids, err := tok.Encode("a世")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	r := NewRenderer(tok)

	want := []string{"a", "a", "a", "a世"}
	for i := range ids {
		got, err := r.Render(ids[:i+1])
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if got != want[i] {
			t.Fatalf("render %d tokens: got %q want %q", i+1, got, want[i])
		}
	}

	final, err := r.RenderFinal(ids[:2])
	if err != nil {
		t.Fatalf("render final: %v", err)
	}
	if final != "a\uFFFD" {
		t.Fatalf("final: got %q", final)
	}
}

func TestRendererStripsBackspace(t *testing.T) {
	t.Parallel()

	tok, _ := tokenizer.NewByteTokenizer(nil, "", "")
	ids, _ := tok.Encode("a\bb")
	got, err := NewRenderer(tok).Render(ids)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "ab" {
		t.Fatalf("got %q", got)
	}
}

type panicDecoder struct{}

func (panicDecoder) Decode([]int) (string, error) { panic("boom") }

type failDecoder struct{}

func (failDecoder) Decode([]int) (string, error) { return "", errors.New("bad id") }

func TestRendererSurfacesDecoderFailures(t *testing.T) {
	t.Parallel()

	if _, err := NewRenderer(panicDecoder{}).Render([]int{1}); err == nil {
		t.Fatalf("expected panic to become an error")
	}
	if _, err := NewRenderer(failDecoder{}).RenderFinal([]int{1}); err == nil {
		t.Fatalf("expected decoder error")
	}
	if s, err := NewRenderer(panicDecoder{}).Render(nil); err != nil || s != "" {
		t.Fatalf("empty buffer should not reach the decoder: %q %v", s, err)
	}
}
