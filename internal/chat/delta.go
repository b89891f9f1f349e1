package chat

import (
	"strings"
	"unicode/utf8"
)

// Backspace prefixes a delta message once per retracted character.
const Backspace = '\b'

// Delta is the edit turning a previously delivered text into the current
// one: keep the first Prefix bytes, drop Retract, then append Append.
type Delta struct {
	Prefix  int    `json:"prefix"`
	Retract string `json:"retract,omitempty"`
	Append  string `json:"append,omitempty"`
}

// ComputeDelta finds the longest common prefix of prev and cur, backed off
// to a character boundary of both strings.
func ComputeDelta(prev, cur string) Delta {
	n := min(len(prev), len(cur))
	p := 0
	for p < n && prev[p] == cur[p] {
		p++
	}
	for p > 0 && !(boundary(prev, p) && boundary(cur, p)) {
		p--
	}
	return Delta{Prefix: p, Retract: prev[p:], Append: cur[p:]}
}

func boundary(s string, i int) bool {
	return i == len(s) || utf8.RuneStart(s[i])
}

func (d Delta) Empty() bool { return d.Retract == "" && d.Append == "" }

// Retracted reports the number of characters the delta removes.
func (d Delta) Retracted() int {
	n := 0
	for s := d.Retract; s != ""; n++ {
		_, size := utf8.DecodeLastRuneInString(s)
		s = s[:len(s)-size]
	}
	return n
}

// Apply reproduces the current text from the previous one.
func (d Delta) Apply(prev string) string {
	return prev[:min(d.Prefix, len(prev))] + d.Append
}

// String encodes the delta for callers that only append text: one
// backspace per retracted character followed by the appended text.
func (d Delta) String() string {
	if d.Retract == "" {
		return d.Append
	}
	return strings.Repeat(string(Backspace), d.Retracted()) + d.Append
}

// GetDeltaMessage returns the incremental message that turns curr into
// next. Growth produces the new suffix; a rewritten or shrunk tail is
// retracted with leading backspaces before the replacement text.
//
// ApplyDeltaMessage(curr, GetDeltaMessage(curr, next)) == next holds only
// when neither string contains a backspace; session renders never do.
func GetDeltaMessage(curr, next string) string {
	return ComputeDelta(curr, next).String()
}

// ApplyDeltaMessage applies a message produced by GetDeltaMessage.
func ApplyDeltaMessage(prev, msg string) string {
	for msg != "" && msg[0] == Backspace {
		msg = msg[1:]
		if prev != "" {
			_, size := utf8.DecodeLastRuneInString(prev)
			prev = prev[:len(prev)-size]
		}
	}
	return prev + msg
}
