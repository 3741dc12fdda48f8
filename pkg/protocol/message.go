// Package protocol defines how text messages are framed on the wire.
package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"
)

// MaxMessageSize is the size in bytes of one fixed frame.
const MaxMessageSize = 64

var (
	// ErrIncomplete is returned by Decode when the buffer does not hold a whole frame yet.
	ErrIncomplete = errors.New("incomplete frame")

	// ErrMalformed is returned by Decode when a whole frame was read but its payload
	// is not valid text. The frame length is still reported so it can be skipped.
	ErrMalformed = errors.New("malformed frame")

	// ErrCorrupt is returned by Decode when the stream can no longer be split into frames.
	ErrCorrupt = errors.New("corrupt frame stream")

	// ErrTooLarge is returned by Encode when the message does not fit in a frame.
	ErrTooLarge = errors.New("message too large")
)

// Codec converts between text messages and frames.
type Codec interface {
	// Encode returns the frame carrying text.
	Encode(text string) ([]byte, error)

	// Decode reads the first frame in buf and returns its text and the number of
	// bytes it occupied.
	Decode(buf []byte) (string, int, error)

	// MaxPayload returns the largest message, in bytes, a frame can carry untruncated.
	MaxPayload() int
}

// FixedCodec frames every message as a block of exactly Size bytes.
// Shorter text is zero padded, longer text is truncated.
type FixedCodec struct {
	Size int
}

// NewFixedCodec returns a FixedCodec with the given frame size.
// A non-positive size selects MaxMessageSize.
func NewFixedCodec(size int) *FixedCodec {
	if size <= 0 {
		size = MaxMessageSize
	}
	return &FixedCodec{Size: size}
}

// Encode implements Codec.
func (c *FixedCodec) Encode(text string) ([]byte, error) {
	frame := make([]byte, c.Size)
	copy(frame, truncate(text, c.Size))
	return frame, nil
}

// Decode implements Codec.
// Trailing NUL padding is removed from the returned text.
func (c *FixedCodec) Decode(buf []byte) (string, int, error) {
	if len(buf) < c.Size {
		return "", 0, ErrIncomplete
	}
	payload := bytes.TrimRight(buf[:c.Size], "\x00")
	if !utf8.Valid(payload) {
		return "", c.Size, fmt.Errorf("%w: payload is not valid UTF-8", ErrMalformed)
	}
	return string(payload), c.Size, nil
}

// MaxPayload implements Codec.
func (c *FixedCodec) MaxPayload() int {
	return c.Size
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
