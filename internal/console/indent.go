package console

import (
	"io"
	"unicode/utf8"

	"github.com/muesli/reflow/indent"
)

// IndentedWriter prefixes every line written through it with two spaces per
// indent level, leaving ANSI escape sequences intact. Remote command output
// is streamed through it so it stands apart from fdep's own status lines.
//
// Output arrives in arbitrary chunks, so a multi-byte rune may be split
// across writes. The incomplete tail is held back until the rest arrives.
type IndentedWriter struct {
	w       *indent.Writer
	pending []byte
}

// NewIndentedWriter wraps forward with the given indent level.
func NewIndentedWriter(level int, forward io.Writer) *IndentedWriter {
	return &IndentedWriter{
		w: indent.NewWriterPipe(forward, uint(2*level), nil),
	}
}

// Indented returns a writer on the console output indented by indent levels.
func (c *Console) Indented(level int) io.Writer {
	return NewIndentedWriter(level, c.out)
}

func (w *IndentedWriter) Write(b []byte) (int, error) {
	data := b
	if len(w.pending) > 0 {
		data = append(w.pending, b...)
		w.pending = nil
	}

	n := completeRunes(data)
	if n < len(data) {
		w.pending = append([]byte(nil), data[n:]...)
	}
	if n > 0 {
		if _, err := w.w.Write(data[:n]); err != nil {
			return 0, err
		}
	}
	return len(b), nil
}

// completeRunes returns the length of the prefix of b that does not end in
// a truncated UTF-8 sequence. Invalid bytes count as complete.
func completeRunes(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if utf8.FullRune(b[i:]) {
				return len(b)
			}
			return i
		}
	}
	return len(b)
}
