// Package frame implements the subset of the Redis serialization protocol (RESP)
// spoken between rKV clients and servers.
//
// A Frame is one protocol unit. Six variants are supported:
//
//	simple   +OK\r\n
//	error    -ERR invalid command\r\n
//	integer  :42\r\n
//	bulk     $5\r\nhello\r\n
//	null     $-1\r\n
//	array    *2\r\n$3\r\nGET\r\n$1\r\nk\r\n
//
// Encoding:
//
//	Encode and AppendFrame produce the canonical byte form of a frame and never fail.
//	WriteFrame streams a frame into a bufio.Writer without flushing it, so several
//	frames can be written with a single flush.
//
// Decoding:
//
//	Decode reads exactly one frame from a bufio.Reader and blocks until the frame is
//	complete. A clean end of stream before the first byte is reported as io.EOF, an
//	end of stream inside a frame as ErrIncomplete.
//
//	Parse decodes a frame from a byte slice without blocking. If the slice holds only
//	a prefix of a frame, ErrIncomplete is returned and nothing is consumed.
//
// Malformed input (unknown tag, bad length, missing CRLF, bad terminator) is reported
// as an error wrapping ErrInvalidFormat. Inputs exceeding MaxBulkLen, MaxArrayLen,
// MaxLineLen or MaxDepth additionally wrap ErrLimitExceeded.
package frame
