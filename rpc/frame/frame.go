package frame

import (
	"bytes"
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Frame Kind
// --------------------------------------------------------------------------

// Kind identifies which variant a Frame holds.
type Kind uint8

// The zero value is KindNull, so the zero Frame is the null frame.
const (
	KindNull    Kind = iota // $-1\r\n
	KindSimple              // +<text>\r\n
	KindError               // -<text>\r\n
	KindInteger             // :<i32>\r\n
	KindBulk                // $<len>\r\n<bytes>\r\n
	KindArray               // *<count>\r\n<frames...>
)

// String returns the string representation of a Kind.
func (k Kind) String() string {
	switch k {
	case KindSimple:
		return "simple"
	case KindError:
		return "error"
	case KindInteger:
		return "integer"
	case KindBulk:
		return "bulk"
	case KindNull:
		return "null"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Tag bytes used on the wire. Null has no tag of its own, it is a bulk
// string with the reserved length -1.
const (
	TagSimple  byte = '+'
	TagError   byte = '-'
	TagInteger byte = ':'
	TagBulk    byte = '$'
	TagArray   byte = '*'
)

// --------------------------------------------------------------------------
// Frame Structure
// --------------------------------------------------------------------------

// Frame is a single unit of the wire protocol.
// Which field is used depends on the Kind of the frame:
//   - KindSimple, KindError: Str
//   - KindInteger: Int
//   - KindBulk: Bulk
//   - KindArray: Array
//   - KindNull: none
type Frame struct {
	Kind  Kind
	Str   string
	Int   int32
	Bulk  []byte
	Array []Frame
}

// --------------------------------------------------------------------------
// Frame Factory Functions
// --------------------------------------------------------------------------

// Simple creates a new simple string frame. s must not contain CR or LF.
func Simple(s string) Frame {
	return Frame{Kind: KindSimple, Str: s}
}

// Error creates a new error frame. e must not contain CR or LF.
func Error(e string) Frame {
	return Frame{Kind: KindError, Str: e}
}

// Integer creates a new integer frame.
func Integer(i int32) Frame {
	return Frame{Kind: KindInteger, Int: i}
}

// Bulk creates a new bulk string frame.
func Bulk(b []byte) Frame {
	return Frame{Kind: KindBulk, Bulk: b}
}

// BulkString creates a new bulk string frame from a string.
func BulkString(s string) Frame {
	return Frame{Kind: KindBulk, Bulk: []byte(s)}
}

// Null creates the null frame.
func Null() Frame {
	return Frame{Kind: KindNull}
}

// Array creates a new array frame containing the given frames in order.
func Array(frames ...Frame) Frame {
	if frames == nil {
		frames = []Frame{}
	}
	return Frame{Kind: KindArray, Array: frames}
}

// --------------------------------------------------------------------------
// Frame Methods
// --------------------------------------------------------------------------

// IsError reports whether the frame is an error frame.
func (f Frame) IsError() bool {
	return f.Kind == KindError
}

// Equal reports whether two frames are structurally equal.
// A nil and an empty bulk payload (or array) are considered equal.
func (f Frame) Equal(other Frame) bool {
	if f.Kind != other.Kind {
		return false
	}
	switch f.Kind {
	case KindSimple, KindError:
		return f.Str == other.Str
	case KindInteger:
		return f.Int == other.Int
	case KindBulk:
		return bytes.Equal(f.Bulk, other.Bulk)
	case KindArray:
		if len(f.Array) != len(other.Array) {
			return false
		}
		for i := range f.Array {
			if !f.Array[i].Equal(other.Array[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// String returns a human-readable representation, e.g. for logs and tests.
func (f Frame) String() string {
	switch f.Kind {
	case KindSimple:
		return fmt.Sprintf("Simple(%q)", f.Str)
	case KindError:
		return fmt.Sprintf("Error(%q)", f.Str)
	case KindInteger:
		return fmt.Sprintf("Integer(%d)", f.Int)
	case KindBulk:
		return fmt.Sprintf("Bulk(%q)", f.Bulk)
	case KindArray:
		parts := make([]string, len(f.Array))
		for i, sub := range f.Array {
			parts[i] = sub.String()
		}
		return "Array[" + strings.Join(parts, ", ") + "]"
	default:
		return "Null"
	}
}
