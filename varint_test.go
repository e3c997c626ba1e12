package pianoroll

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Pairs of values and their encodings, taken from the examples in the SMF
// specification.
var variableIntCases = []struct {
	value   uint32
	encoded []byte
}{
	{0x00000000, []byte{0x00}},
	{0x00000040, []byte{0x40}},
	{0x0000007f, []byte{0x7f}},
	{0x00000080, []byte{0x81, 0x00}},
	{0x00002000, []byte{0xc0, 0x00}},
	{0x00003fff, []byte{0xff, 0x7f}},
	{0x00004000, []byte{0x81, 0x80, 0x00}},
	{0x00100000, []byte{0xc0, 0x80, 0x00}},
	{0x001fffff, []byte{0xff, 0xff, 0x7f}},
	{0x00200000, []byte{0x81, 0x80, 0x80, 0x00}},
	{0x08000000, []byte{0xc0, 0x80, 0x80, 0x00}},
	{0x0fffffff, []byte{0xff, 0xff, 0xff, 0x7f}},
}

func TestVariableIntRead(t *testing.T) {
	var data []byte
	for _, c := range variableIntCases {
		data = append(data, c.encoded...)
	}
	r := bytes.NewReader(data)
	for _, c := range variableIntCases {
		n, value, e := DecodeVariableInt(r)
		require.NoError(t, e, "reading 0x%08x", c.value)
		assert.Equal(t, c.value, value)
		assert.Equal(t, len(c.encoded), n)
	}
	// A clean EOF must be distinguishable from a truncated integer.
	_, e := ReadVariableInt(r)
	assert.Equal(t, io.EOF, e)
}

func TestVariableIntErrors(t *testing.T) {
	_, e := ReadVariableInt(bytes.NewReader([]byte{0xff, 0xff, 0xff, 0x80,
		0x01}))
	assert.ErrorIs(t, e, ErrVarIntOverflow)
	_, e = ReadVariableInt(bytes.NewReader([]byte{0x81, 0x80}))
	assert.ErrorIs(t, e, ErrMalformedVarInt)
	assert.NotEqual(t, io.EOF, e)
}

func TestVariableIntWrite(t *testing.T) {
	var output bytes.Buffer
	var expected []byte
	for _, c := range variableIntCases {
		require.NoError(t, WriteVariableInt(&output, c.value))
		expected = append(expected, c.encoded...)
	}
	assert.Equal(t, expected, output.Bytes())
	_, e := EncodeVariableInt(0x10000000)
	assert.ErrorIs(t, e, ErrVarIntOverflow)
}

func TestVariableIntRoundTrip(t *testing.T) {
	values := []uint32{0, 127, 128, 16383, 16384, 2097151, 2097152,
		(1 << 28) - 1}
	for _, v := range values {
		encoded, e := EncodeVariableInt(v)
		require.NoError(t, e)
		n, decoded, e := DecodeVariableInt(bytes.NewReader(encoded))
		require.NoError(t, e)
		assert.Equal(t, v, decoded)
		assert.Equal(t, len(encoded), n)
	}
}
