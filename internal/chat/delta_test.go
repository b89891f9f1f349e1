package chat

import (
	"strings"
	"testing"
)

func TestGetDeltaMessageScenarios(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		curr, new string
		want      string
	}{
		{name: "growth", curr: "Hello", new: "Hello, world", want: ", world"},
		{name: "unchanged", curr: "Hello, world", new: "Hello, world", want: ""},
		{name: "from empty", curr: "", new: "Hi", want: "Hi"},
		{name: "both empty", curr: "", new: "", want: ""},
		{name: "rewrite tail", curr: "hello wor", new: "hello wxyz", want: "\b\bxyz"},
		{name: "shrink", curr: "hello world", new: "hello worl", want: "\b"},
		{name: "multibyte retract", curr: "naïve 世界", new: "naïve 世", want: "\b"},
		{name: "to empty", curr: "abc", new: "", want: "\b\b\b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := GetDeltaMessage(tt.curr, tt.new)
			if got != tt.want {
				t.Fatalf("GetDeltaMessage(%q, %q) = %q, want %q", tt.curr, tt.new, got, tt.want)
			}
			if back := ApplyDeltaMessage(tt.curr, got); back != tt.new {
				t.Fatalf("ApplyDeltaMessage reproduced %q, want %q", back, tt.new)
			}
		})
	}
}

func TestComputeDeltaPrefixLaw(t *testing.T) {
	t.Parallel()

	for _, a := range []string{"", "a", "Hello", "héllo", "世"} {
		for _, suffix := range []string{"", "!", " world", "界"} {
			b := a + suffix
			d := ComputeDelta(a, b)
			if d.Retract != "" || d.Append != suffix {
				t.Fatalf("ComputeDelta(%q, %q) = %+v, want append-only %q", a, b, d, suffix)
			}
			if got := d.Apply(a); got != b {
				t.Fatalf("apply: got %q want %q", got, b)
			}
		}
	}
}

func TestComputeDeltaIdempotent(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "x", "hello world", "世界"} {
		d := ComputeDelta(s, s)
		if !d.Empty() || d.String() != "" {
			t.Fatalf("ComputeDelta(%q, %q) = %+v, want empty", s, s, d)
		}
	}
}

func TestComputeDeltaReconstructs(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"hello wor", "hello world!"},
		{"hello world", "hello worl"},
		{"abc", "xyz"},
		{"é", "è"},
		{"世界", "世间"},
		{"", "anything"},
		{"anything", ""},
	}
	for _, p := range pairs {
		d := ComputeDelta(p[0], p[1])
		if got := d.Apply(p[0]); got != p[1] {
			t.Fatalf("Apply(%q) with %+v = %q, want %q", p[0], d, got, p[1])
		}
		if got := ApplyDeltaMessage(p[0], d.String()); got != p[1] {
			t.Fatalf("ApplyDeltaMessage(%q, %q) = %q, want %q", p[0], d.String(), got, p[1])
		}
	}
}

// "é" and "è" share their first byte; the prefix must not split the rune.
func TestComputeDeltaStaysOnRuneBoundary(t *testing.T) {
	t.Parallel()

	d := ComputeDelta("é", "è")
	if d.Prefix != 0 || d.Retract != "é" || d.Append != "è" {
		t.Fatalf("unexpected delta %+v", d)
	}
	if n := strings.Count(d.String(), "\b"); n != 1 {
		t.Fatalf("expected one retraction, got %d", n)
	}
}

func TestDeltaMessageRoundTripWithoutBackspace(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{{"Hello", "Help"}, {"世界", "世"}, {"", "héllo"}, {"abc", "xyz"}}
	for _, p := range pairs {
		if got := ApplyDeltaMessage(p[0], GetDeltaMessage(p[0], p[1])); got != p[1] {
			t.Fatalf("round trip %q -> %q gave %q", p[0], p[1], got)
		}
	}
	// A backspace in the new text reads back as a retraction.
	if got := ApplyDeltaMessage("a", GetDeltaMessage("a", "a\bx")); got != "x" {
		t.Fatalf("got %q", got)
	}
}
