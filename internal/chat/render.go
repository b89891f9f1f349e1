package chat

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Decoder is the part of the tokenizer the renderer needs.
type Decoder interface {
	Decode(ids []int) (string, error)
}

// Renderer turns a token sequence into display text. Output is always
// valid UTF-8 and never contains a backspace, which the delta wire format
// reserves for retractions.
type Renderer struct {
	dec Decoder
}

func NewRenderer(dec Decoder) Renderer { return Renderer{dec: dec} }

// Render decodes ids for streaming. A multi-byte character whose bytes
// are not all present yet is held back so later tokens can complete it;
// other invalid bytes become U+FFFD.
func (r Renderer) Render(ids []int) (string, error) {
	raw, err := r.decode(ids)
	if err != nil {
		return "", err
	}
	head, _ := splitIncomplete(raw)
	return clean(head), nil
}

// RenderFinal decodes ids at the end of a turn. An incomplete trailing
// character is flushed as U+FFFD.
func (r Renderer) RenderFinal(ids []int) (string, error) {
	raw, err := r.decode(ids)
	if err != nil {
		return "", err
	}
	return clean(raw), nil
}

func (r Renderer) decode(ids []int) (s string, err error) {
	if len(ids) == 0 {
		return "", nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Decode: %v", rec)
		}
	}()
	return r.dec.Decode(ids)
}

func clean(s string) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if strings.IndexByte(s, '\b') >= 0 {
		s = strings.ReplaceAll(s, "\b", "")
	}
	return s
}

// splitIncomplete separates a trailing, not yet complete UTF-8 sequence.
func splitIncomplete(s string) (head, tail string) {
	for i := len(s) - 1; i >= 0 && i > len(s)-utf8.UTFMax; i-- {
		b := s[i]
		if b < utf8.RuneSelf {
			break
		}
		if utf8.RuneStart(b) {
			if !utf8.FullRuneInString(s[i:]) {
				return s[:i], s[i:]
			}
			break
		}
	}
	return s, ""
}
