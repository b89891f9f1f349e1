package chat

import "slices"

// TokenBuffer holds the ids generated during the current turn. It only
// grows until Clear.
type TokenBuffer struct {
	ids []int
}

func (b *TokenBuffer) Append(id int) { b.ids = append(b.ids, id) }

func (b *TokenBuffer) Clear() { b.ids = b.ids[:0] }

func (b *TokenBuffer) Len() int { return len(b.ids) }

// Tokens returns a copy of the buffer contents.
func (b *TokenBuffer) Tokens() []int { return slices.Clone(b.ids) }

// with returns the contents followed by id without modifying the buffer.
func (b *TokenBuffer) with(id int) []int {
	out := make([]int, len(b.ids), len(b.ids)+1)
	copy(out, b.ids)
	return append(out, id)
}
