package terminal

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"
)

const esc = '\x1b'

// Normalizer applies carriage-return, newline and spinner semantics to raw
// terminal output and keeps the resulting lines. It is safe for concurrent
// use, but callers must feed chunks in arrival order.
type Normalizer struct {
	mu      sync.Mutex
	lines   *lineBuffer
	current []rune // in-progress line
	rewind  bool   // a carriage return is pending
	carry   string // unterminated escape sequence from the previous chunk
}

// New creates a Normalizer retaining at most maxLines finalised lines.
func New(maxLines int) *Normalizer {
	return &Normalizer{lines: newLineBuffer(maxLines)}
}

// Feed consumes a raw chunk and returns the lines it finalised, in order.
func (n *Normalizer) Feed(raw string) []Line {
	n.mu.Lock()
	defer n.mu.Unlock()

	chunk := n.carry + raw
	n.carry = ""
	if idx := incompleteEscape(chunk); idx >= 0 {
		n.carry = chunk[idx:]
		chunk = chunk[:idx]
	}

	var finalised []Line
	for _, r := range ansi.Strip(chunk) {
		switch r {
		case '\n':
			if line, ok := n.finalize(); ok {
				finalised = append(finalised, line)
			}
		case '\r':
			n.rewind = true
		case '\b':
			if len(n.current) > 0 {
				n.current = n.current[:len(n.current)-1]
			}
		default:
			if r < 0x20 && r != '\t' {
				continue
			}
			if n.rewind {
				n.current = n.current[:0]
				n.rewind = false
			}
			n.current = append(n.current, r)
		}
	}
	return finalised
}

func (n *Normalizer) finalize() (Line, bool) {
	text := string(n.current)
	n.current = n.current[:0]
	n.rewind = false
	if isSpinnerFrame(text) {
		return Line{}, false
	}
	return n.lines.add(text), true
}

// Lines returns the renderable lines: every retained finalised line followed
// by the in-progress line when it has visible content.
func (n *Normalizer) Lines() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	stored := n.lines.since(0)
	out := make([]string, 0, len(stored)+1)
	for _, l := range stored {
		out = append(out, l.Text)
	}
	if partial := string(n.current); partial != "" && !isSpinnerFrame(partial) {
		out = append(out, partial)
	}
	return out
}

// Since returns the finalised lines with a sequence number greater than seq.
func (n *Normalizer) Since(seq uint64) []Line {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lines.since(seq)
}

// Partial returns the in-progress (not yet finalised) line.
func (n *Normalizer) Partial() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return string(n.current)
}

// Clear discards every buffered line, the in-progress line and any carried
// escape fragment.
func (n *Normalizer) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lines.reset()
	n.current = n.current[:0]
	n.rewind = false
	n.carry = ""
}

// isSpinnerFrame reports whether text is a lone spinner glyph.
func isSpinnerFrame(text string) bool {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) != 1 {
		return false
	}
	r, _ := utf8.DecodeRuneInString(trimmed)
	switch {
	case r == '-' || r == '\\' || r == '|' || r == '/':
		return true
	case r >= 0x2800 && r <= 0x28ff: // braille spinners
		return true
	}
	return false
}

// incompleteEscape returns the index of an escape sequence that is cut off at
// the end of s, or -1 if s ends cleanly.
func incompleteEscape(s string) int {
	idx := strings.LastIndexByte(s, esc)
	if idx < 0 {
		return -1
	}
	rest := s[idx+1:]
	if rest == "" {
		return idx
	}
	switch rest[0] {
	case '[':
		for i := 1; i < len(rest); i++ {
			if rest[i] >= 0x40 && rest[i] <= 0x7e {
				return -1
			}
		}
		return idx
	case ']':
		if strings.IndexByte(rest, '\a') >= 0 {
			return -1
		}
		return idx
	}
	return -1
}
