package didl

import (
	"encoding/xml"
	"errors"
	"fmt"
)

// ErrBufferFull is reported once a Buffer's hard cap is reached. The
// caller rewinds to the last mark so the rendered document stays
// well-formed at the last complete item.
var ErrBufferFull = errors.New("didl: response buffer full")

const (
	chunkSize = 64 * 1024
	headroom  = 8 * 1024
)

// Buffer is a growing byte buffer for DIDL-Lite output. It grows in fixed
// chunks whenever headroom runs low and stops accepting writes once an
// optional hard cap is exceeded. Errors are sticky: after the first
// ErrBufferFull every further write is dropped until Rewind.
type Buffer struct {
	data []byte
	max  int
	err  error
}

// NewBuffer creates a Buffer with the given hard cap in bytes. A cap of
// zero or less means unbounded.
func NewBuffer(max int) *Buffer {
	return &Buffer{data: make([]byte, 0, chunkSize), max: max}
}

// reserve makes room for n more bytes, growing by whole chunks while the
// cap allows it.
func (b *Buffer) reserve(n int) bool {
	if b.err != nil {
		return false
	}
	if b.max > 0 && len(b.data)+n > b.max {
		b.err = ErrBufferFull
		return false
	}
	if cap(b.data)-len(b.data)-n >= headroom {
		return true
	}
	grown := cap(b.data) + chunkSize
	for grown-len(b.data)-n < headroom {
		grown += chunkSize
	}
	if b.max > 0 && grown > b.max+headroom {
		grown = b.max + headroom
	}
	next := make([]byte, len(b.data), grown)
	copy(next, b.data)
	b.data = next
	return true
}

// Write implements io.Writer so xml.EscapeText can target the buffer.
func (b *Buffer) Write(p []byte) (int, error) {
	if !b.reserve(len(p)) {
		return 0, b.err
	}
	b.data = append(b.data, p...)
	return len(p), nil
}

// WriteString appends a literal string.
func (b *Buffer) WriteString(s string) {
	if !b.reserve(len(s)) {
		return
	}
	b.data = append(b.data, s...)
}

// Printf appends formatted text. Arguments are not escaped.
func (b *Buffer) Printf(format string, args ...any) {
	fmt.Fprintf(b, format, args...)
}

// Escape appends s with XML entities applied.
func (b *Buffer) Escape(s string) {
	if b.err != nil {
		return
	}
	_ = xml.EscapeText(b, []byte(s))
}

// Mark returns the current length for a later Rewind.
func (b *Buffer) Mark() int {
	return len(b.data)
}

// Rewind truncates back to a previous Mark and clears a pending
// ErrBufferFull so the caller can close the document.
func (b *Buffer) Rewind(mark int) {
	if mark < len(b.data) {
		b.data = b.data[:mark]
	}
	if errors.Is(b.err, ErrBufferFull) {
		b.err = nil
		b.max = 0
	}
}

// Err returns the sticky write error, if any.
func (b *Buffer) Err() error {
	return b.err
}

// Len returns the rendered length in bytes.
func (b *Buffer) Len() int {
	return len(b.data)
}

// String returns the rendered document.
func (b *Buffer) String() string {
	return string(b.data)
}

// Bytes returns the rendered document without copying.
func (b *Buffer) Bytes() []byte {
	return b.data
}
