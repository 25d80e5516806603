package frame

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
)

// Protocol limits to bound the memory a single peer can make us allocate.
const (
	// MaxBulkLen limits the size of a single bulk string (512 MiB, same as Redis).
	MaxBulkLen = 512 * 1024 * 1024

	// MaxArrayLen limits the number of elements in a single array.
	MaxArrayLen = 1024 * 1024

	// MaxLineLen limits the length of a simple string, error or header line.
	MaxLineLen = 64 * 1024

	// MaxDepth limits how deeply arrays may be nested.
	MaxDepth = 64

	// bulkChunkSize is the most Decode allocates for a bulk payload ahead of the data.
	bulkChunkSize = 64 * 1024
)

var (
	// ErrIncomplete is returned when the input ended in the middle of a frame.
	ErrIncomplete = errors.New("frame: incomplete frame")
	// ErrInvalidFormat is returned for a malformed tag, length, integer or terminator.
	ErrInvalidFormat = errors.New("frame: invalid format")
	// ErrLimitExceeded is returned (together with ErrInvalidFormat) when a protocol limit is hit.
	ErrLimitExceeded = errors.New("frame: limit exceeded")
)

// --------------------------------------------------------------------------
// Streaming Decoder
// --------------------------------------------------------------------------

// Decode reads exactly one frame from r.
//
// It returns io.EOF if the stream ended cleanly before the first byte of a frame,
// ErrIncomplete if it ended inside a frame and an error wrapping ErrInvalidFormat
// for malformed input. Any other read error is returned unchanged.
// Decode never consumes bytes that belong to the next frame.
func Decode(r *bufio.Reader) (Frame, error) {
	return decode(r, 0)
}

func decode(r *bufio.Reader, depth int) (Frame, error) {
	tag, err := r.ReadByte()
	if err != nil {
		if depth > 0 {
			return Frame{}, incomplete(err)
		}
		return Frame{}, err
	}

	switch tag {
	case TagSimple:
		line, err := readLine(r)
		if err != nil {
			return Frame{}, err
		}
		return Simple(line), nil

	case TagError:
		line, err := readLine(r)
		if err != nil {
			return Frame{}, err
		}
		return Error(line), nil

	case TagInteger:
		n, err := readInt(r)
		if err != nil {
			return Frame{}, err
		}
		return Integer(n), nil

	case TagBulk:
		n, err := readInt(r)
		if err != nil {
			return Frame{}, err
		}
		if err := checkBulkLen(n); err != nil {
			return Frame{}, err
		}
		if n == -1 {
			return Null(), nil
		}

		payload, err := readBulk(r, int(n))
		if err != nil {
			return Frame{}, err
		}
		return Bulk(payload), nil

	case TagArray:
		n, err := readInt(r)
		if err != nil {
			return Frame{}, err
		}
		if err := checkArrayLen(n, depth); err != nil {
			return Frame{}, err
		}

		frames := make([]Frame, 0, min(int(n), 64))
		for i := int32(0); i < n; i++ {
			sub, err := decode(r, depth+1)
			if err != nil {
				return Frame{}, err
			}
			frames = append(frames, sub)
		}
		return Array(frames...), nil

	default:
		return Frame{}, fmt.Errorf("%w: unknown tag byte %q", ErrInvalidFormat, tag)
	}
}

// readLine reads one CRLF terminated line and returns it without the terminator.
func readLine(r *bufio.Reader) (string, error) {
	var buf []byte
	for {
		frag, err := r.ReadSlice('\n')
		if err == nil {
			buf = append(buf, frag...)
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			buf = append(buf, frag...)
			if len(buf) > MaxLineLen+2 {
				return "", fmt.Errorf("%w: %w: line length exceeds %d", ErrInvalidFormat, ErrLimitExceeded, MaxLineLen)
			}
			continue
		}
		return "", incomplete(err)
	}

	if len(buf) > MaxLineLen+2 {
		return "", fmt.Errorf("%w: %w: line length exceeds %d", ErrInvalidFormat, ErrLimitExceeded, MaxLineLen)
	}
	if len(buf) < 2 || buf[len(buf)-2] != '\r' {
		return "", fmt.Errorf("%w: missing CRLF", ErrInvalidFormat)
	}
	return string(buf[:len(buf)-2]), nil
}

// readInt reads one line and parses it as a signed 32-bit integer.
func readInt(r *bufio.Reader) (int32, error) {
	line, err := readLine(r)
	if err != nil {
		return 0, err
	}
	return parseInt(line)
}

// readBulk reads a payload of n bytes and its trailing CRLF. The buffer only grows
// with the bytes that actually arrived, a declared length alone is not trusted.
func readBulk(r *bufio.Reader, n int) ([]byte, error) {
	buf := make([]byte, 0, min(n, bulkChunkSize))
	for len(buf) < n {
		step := min(n-len(buf), max(len(buf), bulkChunkSize))
		buf = slices.Grow(buf, step)
		read, err := io.ReadFull(r, buf[len(buf):len(buf)+step])
		buf = buf[:len(buf)+read]
		if err != nil {
			return nil, incomplete(err)
		}
	}

	var crlf [2]byte
	if _, err := io.ReadFull(r, crlf[:]); err != nil {
		return nil, incomplete(err)
	}
	if crlf[0] != '\r' || crlf[1] != '\n' {
		return nil, fmt.Errorf("%w: invalid bulk terminator", ErrInvalidFormat)
	}
	return buf[:n:n], nil
}

// incomplete maps an unexpected end of input to ErrIncomplete.
func incomplete(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrIncomplete
	}
	return err
}

// --------------------------------------------------------------------------
// Incremental Parser
// --------------------------------------------------------------------------

// Parse decodes one frame from the beginning of buf without blocking.
// On success it returns the frame and the number of bytes it occupied.
// If buf only holds a prefix of a frame, ErrIncomplete is returned and nothing
// is consumed, the caller should read more input and call Parse again.
// The returned frame does not reference buf.
func Parse(buf []byte) (Frame, int, error) {
	p := parser{buf: buf}
	f, err := p.parse(0)
	if err != nil {
		return Frame{}, 0, err
	}
	return f, p.pos, nil
}

type parser struct {
	buf []byte
	pos int
}

func (p *parser) parse(depth int) (Frame, error) {
	if p.pos >= len(p.buf) {
		return Frame{}, ErrIncomplete
	}
	tag := p.buf[p.pos]
	p.pos++

	switch tag {
	case TagSimple:
		line, err := p.line()
		if err != nil {
			return Frame{}, err
		}
		return Simple(string(line)), nil

	case TagError:
		line, err := p.line()
		if err != nil {
			return Frame{}, err
		}
		return Error(string(line)), nil

	case TagInteger:
		n, err := p.int()
		if err != nil {
			return Frame{}, err
		}
		return Integer(n), nil

	case TagBulk:
		n, err := p.int()
		if err != nil {
			return Frame{}, err
		}
		if err := checkBulkLen(n); err != nil {
			return Frame{}, err
		}
		if n == -1 {
			return Null(), nil
		}
		if len(p.buf)-p.pos < int(n)+2 {
			return Frame{}, ErrIncomplete
		}
		end := p.pos + int(n)
		if p.buf[end] != '\r' || p.buf[end+1] != '\n' {
			return Frame{}, fmt.Errorf("%w: invalid bulk terminator", ErrInvalidFormat)
		}
		payload := make([]byte, n)
		copy(payload, p.buf[p.pos:end])
		p.pos = end + 2
		return Bulk(payload), nil

	case TagArray:
		n, err := p.int()
		if err != nil {
			return Frame{}, err
		}
		if err := checkArrayLen(n, depth); err != nil {
			return Frame{}, err
		}
		frames := make([]Frame, 0, min(int(n), 64))
		for i := int32(0); i < n; i++ {
			sub, err := p.parse(depth + 1)
			if err != nil {
				return Frame{}, err
			}
			frames = append(frames, sub)
		}
		return Array(frames...), nil

	default:
		return Frame{}, fmt.Errorf("%w: unknown tag byte %q", ErrInvalidFormat, tag)
	}
}

func (p *parser) line() ([]byte, error) {
	idx := bytes.IndexByte(p.buf[p.pos:], '\n')
	if idx < 0 {
		if len(p.buf)-p.pos > MaxLineLen+2 {
			return nil, fmt.Errorf("%w: %w: line length exceeds %d", ErrInvalidFormat, ErrLimitExceeded, MaxLineLen)
		}
		return nil, ErrIncomplete
	}
	if idx > MaxLineLen+1 {
		return nil, fmt.Errorf("%w: %w: line length exceeds %d", ErrInvalidFormat, ErrLimitExceeded, MaxLineLen)
	}
	end := p.pos + idx
	if idx == 0 || p.buf[end-1] != '\r' {
		return nil, fmt.Errorf("%w: missing CRLF", ErrInvalidFormat)
	}
	line := p.buf[p.pos : end-1]
	p.pos = end + 1
	return line, nil
}

func (p *parser) int() (int32, error) {
	line, err := p.line()
	if err != nil {
		return 0, err
	}
	return parseInt(string(line))
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func parseInt(s string) (int32, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid integer %q", ErrInvalidFormat, s)
	}
	return int32(n), nil
}

func checkBulkLen(n int32) error {
	if n < -1 {
		return fmt.Errorf("%w: invalid bulk length %d", ErrInvalidFormat, n)
	}
	if n > MaxBulkLen {
		return fmt.Errorf("%w: %w: bulk length %d exceeds %d", ErrInvalidFormat, ErrLimitExceeded, n, MaxBulkLen)
	}
	return nil
}

func checkArrayLen(n int32, depth int) error {
	if n < 0 {
		return fmt.Errorf("%w: invalid array length %d", ErrInvalidFormat, n)
	}
	if n > MaxArrayLen {
		return fmt.Errorf("%w: %w: array length %d exceeds %d", ErrInvalidFormat, ErrLimitExceeded, n, MaxArrayLen)
	}
	if depth >= MaxDepth {
		return fmt.Errorf("%w: %w: arrays nested deeper than %d", ErrInvalidFormat, ErrLimitExceeded, MaxDepth)
	}
	return nil
}
