package stream

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
)

// Delimiter terminates every frame on the wire.
const Delimiter = "[END]"

const (
	// DefaultMaxFrameSize bounds the carry buffer when Decoder.MaxFrameSize is zero.
	DefaultMaxFrameSize = 8 << 20

	readChunkSize = 4 << 10
)

var delimiter = []byte(Delimiter)

// Decoder reassembles delimiter-terminated frames from arbitrarily chunked input. Bytes that have
// been received but not yet closed by a delimiter stay in a carry buffer until a later chunk
// completes them, so a delimiter, a multi-byte character or a JSON payload may be split across any
// number of reads.
//
// The zero value is ready to use. A Decoder is not safe for concurrent use.
type Decoder struct {
	// MaxFrameSize is the largest number of bytes the carry buffer may hold without seeing a
	// delimiter. Zero means DefaultMaxFrameSize.
	MaxFrameSize int
	// Strict makes Close report a non-blank unterminated remainder as ErrTruncated instead of
	// silently dropping it.
	Strict bool

	carry []byte
}

// Feed appends chunk to the carry buffer and returns every frame it completes, in wire order.
// Blank frames are dropped. The returned error is non-nil only when the carry buffer outgrows
// MaxFrameSize, in which case the frames completed before the overflow are still returned.
func (d *Decoder) Feed(chunk []byte) ([]string, error) {
	d.carry = append(d.carry, chunk...)

	var frames []string
	rest := d.carry
	for {
		idx := bytes.Index(rest, delimiter)
		if idx < 0 {
			break
		}
		if frame := rest[:idx]; len(bytes.TrimSpace(frame)) > 0 {
			frames = append(frames, string(frame))
		}
		rest = rest[idx+len(delimiter):]
	}

	// Compact in place; copy handles the overlap.
	n := copy(d.carry, rest)
	d.carry = d.carry[:n]

	if len(d.carry) > d.maxFrameSize() {
		size := len(d.carry)
		d.carry = nil
		return frames, fmt.Errorf("%w: %d bytes without %s", ErrFrameTooLarge, size, Delimiter)
	}
	return frames, nil
}

// Pending returns the number of bytes held in the carry buffer.
func (d *Decoder) Pending() int {
	return len(d.carry)
}

// Close ends the stream. The carry buffer is discarded because the protocol terminates every frame
// with Delimiter; a remainder means the transmission was cut short. Close returns ErrTruncated for
// a non-blank remainder only when Strict is set.
func (d *Decoder) Close() error {
	remainder := d.carry
	d.carry = nil
	if d.Strict && len(bytes.TrimSpace(remainder)) > 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrTruncated, len(remainder))
	}
	return nil
}

// Frames reads r until EOF and yields each complete frame as soon as the read that completes it
// returns. Read errors other than io.EOF are yielded once and end the sequence; so are
// ErrFrameTooLarge and, in strict mode, ErrTruncated. Callers that stop iterating early leave r
// unread.
func (d *Decoder) Frames(r io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		buf := make([]byte, readChunkSize)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				frames, ferr := d.Feed(buf[:n])
				for _, frame := range frames {
					if !yield(frame, nil) {
						return
					}
				}
				if ferr != nil {
					yield("", ferr)
					return
				}
			}
			if errors.Is(err, io.EOF) {
				if cerr := d.Close(); cerr != nil {
					yield("", cerr)
				}
				return
			}
			if err != nil {
				d.carry = nil
				yield("", err)
				return
			}
		}
	}
}

func (d *Decoder) maxFrameSize() int {
	if d.MaxFrameSize > 0 {
		return d.MaxFrameSize
	}
	return DefaultMaxFrameSize
}
