package protocol

import (
	"fmt"
	"math"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// DefaultMaxPayload bounds a single varint framed message.
const DefaultMaxPayload = 4096

// VarintCodec frames a message as a protobuf base-128 varint length followed by the payload.
type VarintCodec struct {
	MaxSize int
}

// NewVarintCodec returns a VarintCodec accepting payloads up to maxSize bytes.
// A non-positive maxSize selects DefaultMaxPayload.
func NewVarintCodec(maxSize int) *VarintCodec {
	if maxSize <= 0 {
		maxSize = DefaultMaxPayload
	}
	return &VarintCodec{MaxSize: maxSize}
}

// Encode implements Codec.
func (c *VarintCodec) Encode(text string) ([]byte, error) {
	if len(text) > c.MaxSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrTooLarge, len(text), c.MaxSize)
	}
	frame := make([]byte, 0, protowire.SizeVarint(uint64(len(text)))+len(text))
	frame = protowire.AppendVarint(frame, uint64(len(text)))
	return append(frame, text...), nil
}

// Decode implements Codec.
func (c *VarintCodec) Decode(buf []byte) (string, int, error) {
	length, n := protowire.ConsumeVarint(buf)
	if n < 0 {
		// A varint shorter than the longest encoding can only fail by running out of bytes.
		if len(buf) < protowire.SizeVarint(math.MaxUint64) {
			return "", 0, ErrIncomplete
		}
		return "", 0, fmt.Errorf("%w: %v", ErrCorrupt, protowire.ParseError(n))
	}
	if length > uint64(c.MaxSize) {
		return "", 0, fmt.Errorf("%w: frame length %d exceeds limit of %d", ErrCorrupt, length, c.MaxSize)
	}

	total := n + int(length)
	if len(buf) < total {
		return "", 0, ErrIncomplete
	}
	payload := buf[n:total]
	if !utf8.Valid(payload) {
		return "", total, fmt.Errorf("%w: payload is not valid UTF-8", ErrMalformed)
	}
	return string(payload), total, nil
}

// MaxPayload implements Codec.
func (c *VarintCodec) MaxPayload() int {
	return c.MaxSize
}
