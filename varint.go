// Package pianoroll reads and writes standard MIDI files, and converts the
// notes they contain to and from a dense time-by-pitch grid ("piano roll")
// that numeric models can consume. The smf_tool directory contains a
// command-line interface exposing most of the library's features.
package pianoroll

import (
	"io"

	"github.com/pkg/errors"
)

// The largest value a 4-byte MIDI variable-length integer can hold.
const MaxVariableInt = 0x0fffffff

// Reads a MIDI-format variable int (up to 0x0fffffff). Returns io.EOF if and
// only if the stream ends before the first byte of the integer. Running out of
// input partway through the integer returns ErrMalformedVarInt, and a fourth
// byte with the continuation bit set returns ErrVarIntOverflow.
func ReadVariableInt(r io.ByteReader) (uint32, error) {
	_, value, e := DecodeVariableInt(r)
	return value, e
}

// Like ReadVariableInt, but also returns the number of bytes consumed.
func DecodeVariableInt(r io.ByteReader) (int, uint32, error) {
	value := uint32(0)
	for i := 0; i < 4; i++ {
		b, e := r.ReadByte()
		if e != nil {
			if (i == 0) && (e == io.EOF) {
				// Make sure a clean io.EOF gets propagated.
				return 0, 0, io.EOF
			}
			if e == io.EOF {
				return i, 0, errors.Wrapf(ErrMalformedVarInt, "input ended "+
					"after %d bytes", i)
			}
			return i, 0, errors.Wrap(e, "failed reading variable int")
		}
		value = (value << 7) | uint32(b&0x7f)
		if (b & 0x80) == 0 {
			return i + 1, value, nil
		}
	}
	return 4, 0, errors.Wrap(ErrVarIntOverflow, "continuation bit set on "+
		"byte 4")
}

// Returns the variable-length encoding of n. The groups of 7 bits are emitted
// most significant first, with the top bit set on every byte but the last.
func EncodeVariableInt(n uint32) ([]byte, error) {
	if n > MaxVariableInt {
		return nil, errors.Wrapf(ErrVarIntOverflow, "0x%08x doesn't fit in "+
			"4 bytes", n)
	}
	// Special simplifying case: a single 0 byte.
	if n == 0 {
		return []byte{0}, nil
	}
	var groups [4]byte
	count := 0
	for n != 0 {
		groups[count] = byte(n & 0x7f)
		count++
		n >>= 7
	}
	toReturn := make([]byte, count)
	for i := 0; i < count; i++ {
		b := groups[count-i-1]
		if i != (count - 1) {
			b |= 0x80
		}
		toReturn[i] = b
	}
	return toReturn, nil
}

// Writes a MIDI-format variable int (up to 0x0fffffff) to w.
func WriteVariableInt(w io.Writer, n uint32) error {
	data, e := EncodeVariableInt(n)
	if e != nil {
		return e
	}
	_, e = w.Write(data)
	return e
}
