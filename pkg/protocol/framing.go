package protocol

import (
	"fmt"
	"strings"
)

// Framing selects a Codec.
type Framing int

const (
	FramingFixed Framing = iota
	FramingVarint
)

// String returns the string representation of Framing
func (f Framing) String() string {
	switch f {
	case FramingFixed:
		return "fixed"
	case FramingVarint:
		return "varint"
	default:
		return "unknown"
	}
}

// ParseFraming parses the name of a framing mode.
func ParseFraming(s string) (Framing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fixed", "":
		return FramingFixed, nil
	case "varint":
		return FramingVarint, nil
	default:
		return 0, fmt.Errorf("unknown framing %q (want fixed or varint)", s)
	}
}

// NewCodec builds the codec for f. For fixed framing size is the frame size,
// for varint framing it is the payload limit.
func NewCodec(f Framing, size int) (Codec, error) {
	switch f {
	case FramingFixed:
		return NewFixedCodec(size), nil
	case FramingVarint:
		return NewVarintCodec(size), nil
	default:
		return nil, fmt.Errorf("unsupported framing %d", int(f))
	}
}
