package frame

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"runtime"
	"strings"
	"testing"
)

func newReader(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

// TestEncode checks the exact wire encoding of every frame variant
func TestEncode(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
		want  string
	}{
		{"Simple", Simple("OK"), "+OK\r\n"},
		{"SimpleEmpty", Simple(""), "+\r\n"},
		{"Error", Error("ERR invalid command"), "-ERR invalid command\r\n"},
		{"Integer", Integer(42), ":42\r\n"},
		{"NegativeInteger", Integer(-7), ":-7\r\n"},
		{"Bulk", BulkString("hello"), "$5\r\nhello\r\n"},
		{"BulkEmpty", Bulk(nil), "$0\r\n\r\n"},
		{"BulkBinary", Bulk([]byte{0, '\r', '\n', 0xff}), "$4\r\n\x00\r\n\xff\r\n"},
		{"Null", Null(), "$-1\r\n"},
		{"ZeroFrame", Frame{}, "$-1\r\n"},
		{"ArrayEmpty", Array(), "*0\r\n"},
		{"Array", Array(BulkString("GET"), BulkString("k")), "*2\r\n$3\r\nGET\r\n$1\r\nk\r\n"},
		{"Nested", Array(Integer(1), Array(Null(), Simple("x"))), "*2\r\n:1\r\n*2\r\n$-1\r\n+x\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(Encode(tt.frame)); got != tt.want {
				t.Errorf("Encode(%v) = %q, want %q", tt.frame, got, tt.want)
			}

			var buf bytes.Buffer
			w := bufio.NewWriter(&buf)
			if err := WriteFrame(w, tt.frame); err != nil {
				t.Fatalf("WriteFrame failed: %v", err)
			}
			if err := w.Flush(); err != nil {
				t.Fatalf("Flush failed: %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("WriteFrame(%v) wrote %q, want %q", tt.frame, buf.String(), tt.want)
			}
		})
	}
}

// TestDecode checks that well formed input decodes into the expected frame
func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Frame
	}{
		{"Simple", "+PONG\r\n", Simple("PONG")},
		{"Error", "-ERR store unavailable\r\n", Error("ERR store unavailable")},
		{"Integer", ":-12\r\n", Integer(-12)},
		{"Bulk", "$3\r\nbar\r\n", BulkString("bar")},
		{"BulkWithCRLF", "$4\r\na\r\nb\r\n", BulkString("a\r\nb")},
		{"BulkEmpty", "$0\r\n\r\n", Bulk([]byte{})},
		{"Null", "$-1\r\n", Null()},
		{"ArrayEmpty", "*0\r\n", Array()},
		{"Command", "*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n",
			Array(BulkString("SET"), BulkString("foo"), BulkString("bar"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(newReader(tt.input))
			if err != nil {
				t.Fatalf("Decode(%q) failed: %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Decode(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// TestRoundTrip checks that decoding an encoded frame yields the original frame
func TestRoundTrip(t *testing.T) {
	frames := []Frame{
		Simple("OK"),
		Error("ERR something"),
		Integer(0),
		Integer(2147483647),
		Integer(-2147483648),
		BulkString("value"),
		Bulk([]byte{}),
		Null(),
		Array(),
		Array(BulkString("PING")),
		Array(Array(Array(Integer(3))), Null(), Error("e")),
	}

	for _, f := range frames {
		got, err := Decode(newReader(string(Encode(f))))
		if err != nil {
			t.Errorf("Decode(Encode(%v)) failed: %v", f, err)
			continue
		}
		if !got.Equal(f) {
			t.Errorf("Decode(Encode(%v)) = %v", f, got)
		}
	}
}

// TestDecodeInvalid checks that malformed input is rejected with ErrInvalidFormat
func TestDecodeInvalid(t *testing.T) {
	inputs := map[string]string{
		"UnknownTag":         "%foo\r\n",
		"NegativeArrayCount": "*-1\r\n",
		"NonNumericBulkLen":  "$abc\r\n",
		"BulkLenBelowNull":   "$-2\r\n",
		"MissingCR":          "+OK\n",
		"BadBulkTerminator":  "$3\r\nabcXY",
		"NonNumericInteger":  ":12a\r\n",
		"IntegerOverflow":    ":2147483648\r\n",
		"EmptyIntegerLine":   ":\r\n",
		"BadElementInArray":  "*2\r\n:1\r\n?\r\n",
		"LineFeedAfterBulk":  "$1\r\na\nX",
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(newReader(input))
			if !errors.Is(err, ErrInvalidFormat) {
				t.Errorf("Decode(%q): expected ErrInvalidFormat, got %v", input, err)
			}

			_, n, err := Parse([]byte(input))
			if !errors.Is(err, ErrInvalidFormat) {
				t.Errorf("Parse(%q): expected ErrInvalidFormat, got %v", input, err)
			}
			if n != 0 {
				t.Errorf("Parse(%q): consumed %d bytes on error", input, n)
			}
		})
	}
}

// TestDecodeIncomplete checks that input ending inside a frame yields ErrIncomplete
func TestDecodeIncomplete(t *testing.T) {
	inputs := []string{
		"+OK",
		"+OK\r",
		"$5\r\nhel",
		"$3\r\n",
		"$3",
		"*2\r\n$1\r\na\r\n",
		"*1\r\n",
	}

	for _, input := range inputs {
		_, err := Decode(newReader(input))
		if !errors.Is(err, ErrIncomplete) {
			t.Errorf("Decode(%q): expected ErrIncomplete, got %v", input, err)
		}
	}
}

// TestDecodeEOF checks that a clean end of stream is reported as io.EOF
func TestDecodeEOF(t *testing.T) {
	_, err := Decode(newReader(""))
	if !errors.Is(err, io.EOF) {
		t.Fatalf("Expected io.EOF, got %v", err)
	}
}

// TestDecodeBackToBack checks that Decode consumes exactly one frame per call
func TestDecodeBackToBack(t *testing.T) {
	r := newReader("+OK\r\n:1\r\n$-1\r\n*1\r\n$4\r\nPING\r\n")
	want := []Frame{Simple("OK"), Integer(1), Null(), Array(BulkString("PING"))}

	for i, w := range want {
		got, err := Decode(r)
		if err != nil {
			t.Fatalf("Frame %d: decode failed: %v", i, err)
		}
		if !got.Equal(w) {
			t.Errorf("Frame %d: got %v, want %v", i, got, w)
		}
	}

	if _, err := Decode(r); !errors.Is(err, io.EOF) {
		t.Errorf("Expected io.EOF after last frame, got %v", err)
	}
}

// TestParse checks the incremental parser on complete, partial and concatenated input
func TestParse(t *testing.T) {
	f := Array(BulkString("SET"), BulkString("foo"), BulkString("bar"))
	encoded := Encode(f)

	t.Run("Complete", func(t *testing.T) {
		got, n, err := Parse(encoded)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if n != len(encoded) {
			t.Errorf("Expected %d bytes consumed, got %d", len(encoded), n)
		}
		if !got.Equal(f) {
			t.Errorf("Got %v, want %v", got, f)
		}
	})

	t.Run("EveryPrefixIsIncomplete", func(t *testing.T) {
		for i := 0; i < len(encoded); i++ {
			_, n, err := Parse(encoded[:i])
			if !errors.Is(err, ErrIncomplete) {
				t.Fatalf("Prefix of length %d: expected ErrIncomplete, got %v", i, err)
			}
			if n != 0 {
				t.Fatalf("Prefix of length %d: consumed %d bytes", i, n)
			}
		}
	})

	t.Run("TrailingBytes", func(t *testing.T) {
		buf := append(append([]byte{}, encoded...), "+OK\r\n"...)
		got, n, err := Parse(buf)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if n != len(encoded) || !got.Equal(f) {
			t.Fatalf("Expected first frame of %d bytes, got %v (%d bytes)", len(encoded), got, n)
		}

		got, m, err := Parse(buf[n:])
		if err != nil {
			t.Fatalf("Parse of second frame failed: %v", err)
		}
		if m != 5 || !got.Equal(Simple("OK")) {
			t.Errorf("Expected +OK (5 bytes), got %v (%d bytes)", got, m)
		}
	})

	t.Run("DoesNotAliasInput", func(t *testing.T) {
		buf := []byte("$3\r\nabc\r\n")
		got, _, err := Parse(buf)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		buf[4] = 'X'
		if string(got.Bulk) != "abc" {
			t.Errorf("Parsed frame changed with input buffer: %q", got.Bulk)
		}
	})
}

// TestLimits checks that protocol limits are enforced by both decoders
func TestLimits(t *testing.T) {
	inputs := map[string]string{
		"BulkTooLarge":  "$536870913\r\n",
		"ArrayTooLarge": "*1048577\r\n",
		"TooDeep":       strings.Repeat("*1\r\n", MaxDepth+1) + ":1\r\n",
		"LineTooLong":   "+" + strings.Repeat("a", MaxLineLen+1) + "\r\n",
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(newReader(input))
			if !errors.Is(err, ErrLimitExceeded) || !errors.Is(err, ErrInvalidFormat) {
				t.Errorf("Decode: expected ErrLimitExceeded wrapped in ErrInvalidFormat, got %v", err)
			}
			_, _, err = Parse([]byte(input))
			if !errors.Is(err, ErrLimitExceeded) || !errors.Is(err, ErrInvalidFormat) {
				t.Errorf("Parse: expected ErrLimitExceeded wrapped in ErrInvalidFormat, got %v", err)
			}
		})
	}

	t.Run("WithinLimits", func(t *testing.T) {
		nested := strings.Repeat("*1\r\n", MaxDepth) + ":1\r\n"
		if _, err := Decode(newReader(nested)); err != nil {
			t.Errorf("Nesting of depth %d should decode, got %v", MaxDepth, err)
		}
		line := "+" + strings.Repeat("a", MaxLineLen) + "\r\n"
		if _, err := Decode(newReader(line)); err != nil {
			t.Errorf("Line of length %d should decode, got %v", MaxLineLen, err)
		}
		if _, _, err := Parse([]byte(line)); err != nil {
			t.Errorf("Line of length %d should parse, got %v", MaxLineLen, err)
		}
	})
}

// TestDecodeBulkAllocation checks that a declared bulk length alone does not
// make Decode allocate the whole payload up front
func TestDecodeBulkAllocation(t *testing.T) {
	t.Run("HeaderOnly", func(t *testing.T) {
		input := "*1\r\n$536870912\r\nab"

		var before, after runtime.MemStats
		runtime.GC()
		runtime.ReadMemStats(&before)
		_, err := Decode(newReader(input))
		runtime.ReadMemStats(&after)

		if !errors.Is(err, ErrIncomplete) {
			t.Errorf("Expected ErrIncomplete, got %v", err)
		}
		if allocated := after.TotalAlloc - before.TotalAlloc; allocated > 1024*1024 {
			t.Errorf("Decoding an %d byte input allocated %d bytes", len(input), allocated)
		}
	})

	t.Run("LargePayload", func(t *testing.T) {
		payload := bytes.Repeat([]byte("0123456789abcdef"), 3*bulkChunkSize/16+5)
		input := append(Encode(Bulk(payload)), Encode(Simple("next"))...)

		r := bufio.NewReader(bytes.NewReader(input))
		got, err := Decode(r)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if !got.Equal(Bulk(payload)) {
			t.Errorf("Payload of %d bytes changed while decoding", len(payload))
		}
		if next, err := Decode(r); err != nil || !next.Equal(Simple("next")) {
			t.Errorf("Expected the following frame, got %v (err %v)", next, err)
		}
	})
}

// TestFrameEqual checks structural equality
func TestFrameEqual(t *testing.T) {
	if !Bulk(nil).Equal(Bulk([]byte{})) {
		t.Error("nil and empty bulk should be equal")
	}
	if BulkString("a").Equal(Simple("a")) {
		t.Error("frames of different kinds should not be equal")
	}
	if Array(Integer(1)).Equal(Array(Integer(2))) {
		t.Error("arrays with different elements should not be equal")
	}
	if !(Frame{}).Equal(Null()) {
		t.Error("zero frame should equal null")
	}
}
