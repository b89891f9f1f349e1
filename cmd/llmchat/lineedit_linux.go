//go:build linux

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/sys/unix"
)

var (
	stdinReader *bufio.Reader
	history     []string
)

// readInteractiveLine reads one line with basic editing, history and
// UTF-8 aware cursor movement when stdin is a terminal.
func readInteractiveLine(prompt string) (string, error) {
	if !stdinIsTTY() {
		return readPlainLine(prompt)
	}

	fd := int(os.Stdin.Fd())
	oldState, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return readPlainLine(prompt)
	}
	raw := *oldState
	raw.Lflag &^= unix.ICANON | unix.ECHO
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &raw); err != nil {
		return "", err
	}
	defer func() {
		_ = unix.IoctlSetTermios(fd, unix.TCSETS, oldState)
	}()

	e := &lineEditor{prompt: prompt, histPos: len(history)}
	fmt.Print(prompt)

	var (
		buf     [64]byte
		pending []byte
	)
	for {
		n, err := os.Stdin.Read(buf[:])
		if err != nil {
			return "", err
		}
		pending = append(pending, buf[:n]...)
		for len(pending) > 0 {
			used, done, err := e.feed(pending)
			if err != nil {
				return "", err
			}
			if used == 0 {
				break
			}
			pending = pending[used:]
			if done {
				out := string(e.line)
				if strings.TrimSpace(out) != "" {
					history = append(history, out)
				}
				return out, nil
			}
		}
	}
}

func readPlainLine(prompt string) (string, error) {
	if stdinReader == nil {
		stdinReader = bufio.NewReader(os.Stdin)
	}
	fmt.Print(prompt)
	s, err := stdinReader.ReadString('\n')
	if err == io.EOF && s != "" {
		err = nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimRight(s, "\r\n"), nil
}

type lineEditor struct {
	prompt  string
	line    []rune
	cursor  int
	histPos int
	draft   []rune
}

// feed consumes one key from p. It returns the bytes used (0 when p holds
// an incomplete sequence) and whether the line is complete.
func (e *lineEditor) feed(p []byte) (int, bool, error) {
	switch b := p[0]; b {
	case 27:
		return e.escape(p)
	case '\r', '\n':
		fmt.Print("\r\n")
		return 1, true, nil
	case 3: // Ctrl+C
		fmt.Print("^C\r\n")
		return 1, false, io.EOF
	case 4: // Ctrl+D
		if len(e.line) == 0 {
			fmt.Print("\r\n")
			return 1, false, io.EOF
		}
		return 1, false, nil
	case 127, 8:
		if e.cursor > 0 {
			e.line = append(e.line[:e.cursor-1], e.line[e.cursor:]...)
			e.cursor--
			e.redraw()
		}
		return 1, false, nil
	case 1: // Ctrl+A
		e.move(0)
		return 1, false, nil
	case 5: // Ctrl+E
		e.move(len(e.line))
		return 1, false, nil
	case 21: // Ctrl+U
		e.line = append(e.line[:0], e.line[e.cursor:]...)
		e.cursor = 0
		e.redraw()
		return 1, false, nil
	case 23: // Ctrl+W
		e.deleteWordBack()
		return 1, false, nil
	default:
		if b < 32 {
			return 1, false, nil
		}
		if !utf8.FullRune(p) {
			return 0, false, nil
		}
		r, size := utf8.DecodeRune(p)
		e.insert(r)
		return size, false, nil
	}
}

func (e *lineEditor) escape(p []byte) (int, bool, error) {
	if len(p) < 2 {
		return 0, false, nil
	}
	switch p[1] {
	case 'b', 'B':
		e.wordLeft()
		return 2, false, nil
	case 'f', 'F':
		e.wordRight()
		return 2, false, nil
	case 127:
		e.deleteWordBack()
		return 2, false, nil
	case '[':
	default:
		return 2, false, nil
	}
	for i := 2; i < len(p); i++ {
		c := p[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '~' {
			e.csi(string(p[2 : i+1]))
			return i + 1, false, nil
		}
	}
	return 0, false, nil
}

func (e *lineEditor) csi(seq string) {
	switch seq {
	case "A":
		e.historyUp()
	case "B":
		e.historyDown()
	case "D":
		e.move(e.cursor - 1)
	case "C":
		e.move(e.cursor + 1)
	case "H", "1~":
		e.move(0)
	case "F", "4~":
		e.move(len(e.line))
	case "3~":
		if e.cursor < len(e.line) {
			e.line = append(e.line[:e.cursor], e.line[e.cursor+1:]...)
			e.redraw()
		}
	case "1;5D", "5D":
		e.wordLeft()
	case "1;5C", "5C":
		e.wordRight()
	}
}

func (e *lineEditor) insert(r rune) {
	e.line = append(e.line, 0)
	copy(e.line[e.cursor+1:], e.line[e.cursor:])
	e.line[e.cursor] = r
	e.cursor++
	e.redraw()
}

func (e *lineEditor) move(pos int) {
	pos = max(0, min(pos, len(e.line)))
	if pos != e.cursor {
		e.cursor = pos
		e.redraw()
	}
}

func (e *lineEditor) wordLeft() {
	pos := e.cursor
	for pos > 0 && isBlank(e.line[pos-1]) {
		pos--
	}
	for pos > 0 && !isBlank(e.line[pos-1]) {
		pos--
	}
	e.move(pos)
}

func (e *lineEditor) wordRight() {
	pos := e.cursor
	for pos < len(e.line) && isBlank(e.line[pos]) {
		pos++
	}
	for pos < len(e.line) && !isBlank(e.line[pos]) {
		pos++
	}
	e.move(pos)
}

func (e *lineEditor) deleteWordBack() {
	start := e.cursor
	for start > 0 && isBlank(e.line[start-1]) {
		start--
	}
	for start > 0 && !isBlank(e.line[start-1]) {
		start--
	}
	if start == e.cursor {
		return
	}
	e.line = append(e.line[:start], e.line[e.cursor:]...)
	e.cursor = start
	e.redraw()
}

func (e *lineEditor) historyUp() {
	if e.histPos == 0 {
		return
	}
	if e.histPos == len(history) {
		e.draft = append(e.draft[:0], e.line...)
	}
	e.histPos--
	e.replace([]rune(history[e.histPos]))
}

func (e *lineEditor) historyDown() {
	if e.histPos >= len(history) {
		return
	}
	e.histPos++
	if e.histPos == len(history) {
		e.replace(e.draft)
		return
	}
	e.replace([]rune(history[e.histPos]))
}

func (e *lineEditor) replace(line []rune) {
	e.line = append(e.line[:0], line...)
	e.cursor = len(e.line)
	e.redraw()
}

func (e *lineEditor) redraw() {
	fmt.Printf("\r%s%s\x1b[K", e.prompt, string(e.line))
	if e.cursor < len(e.line) {
		fmt.Printf("\r%s%s", e.prompt, string(e.line[:e.cursor]))
	}
}

func isBlank(r rune) bool { return r == ' ' || r == '\t' }
