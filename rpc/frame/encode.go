package frame

import (
	"bufio"
	"strconv"
)

var crlf = []byte("\r\n")

// Encode returns the wire encoding of f. Encoding never fails.
func Encode(f Frame) []byte {
	return AppendFrame(make([]byte, 0, encodedSizeHint(f)), f)
}

// AppendFrame appends the wire encoding of f to dst and returns the extended buffer.
// Frames of an unknown kind are encoded as null.
func AppendFrame(dst []byte, f Frame) []byte {
	switch f.Kind {
	case KindSimple:
		dst = append(dst, TagSimple)
		dst = append(dst, f.Str...)
		return append(dst, crlf...)
	case KindError:
		dst = append(dst, TagError)
		dst = append(dst, f.Str...)
		return append(dst, crlf...)
	case KindInteger:
		dst = append(dst, TagInteger)
		dst = strconv.AppendInt(dst, int64(f.Int), 10)
		return append(dst, crlf...)
	case KindBulk:
		dst = append(dst, TagBulk)
		dst = strconv.AppendInt(dst, int64(len(f.Bulk)), 10)
		dst = append(dst, crlf...)
		dst = append(dst, f.Bulk...)
		return append(dst, crlf...)
	case KindArray:
		dst = append(dst, TagArray)
		dst = strconv.AppendInt(dst, int64(len(f.Array)), 10)
		dst = append(dst, crlf...)
		for _, sub := range f.Array {
			dst = AppendFrame(dst, sub)
		}
		return dst
	default:
		return append(dst, "$-1\r\n"...)
	}
}

// WriteFrame writes the encoding of f to w without flushing it.
func WriteFrame(w *bufio.Writer, f Frame) error {
	// bulk payloads are written directly to avoid copying large values
	if f.Kind == KindBulk {
		var header [24]byte
		h := append(header[:0], TagBulk)
		h = strconv.AppendInt(h, int64(len(f.Bulk)), 10)
		h = append(h, crlf...)
		if _, err := w.Write(h); err != nil {
			return err
		}
		if _, err := w.Write(f.Bulk); err != nil {
			return err
		}
		_, err := w.Write(crlf)
		return err
	}

	if f.Kind == KindArray {
		var header [24]byte
		h := append(header[:0], TagArray)
		h = strconv.AppendInt(h, int64(len(f.Array)), 10)
		h = append(h, crlf...)
		if _, err := w.Write(h); err != nil {
			return err
		}
		for _, sub := range f.Array {
			if err := WriteFrame(w, sub); err != nil {
				return err
			}
		}
		return nil
	}

	_, err := w.Write(AppendFrame(nil, f))
	return err
}

// encodedSizeHint estimates the encoded size of f to size the output buffer.
func encodedSizeHint(f Frame) int {
	switch f.Kind {
	case KindSimple, KindError:
		return len(f.Str) + 3
	case KindInteger:
		return 14
	case KindBulk:
		return len(f.Bulk) + 16
	case KindArray:
		size := 16
		for _, sub := range f.Array {
			size += encodedSizeHint(sub)
		}
		return size
	default:
		return 5
	}
}
