package pianoroll

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRoundTrip(t *testing.T) {
	// Each entry is a complete event, delta-time included.
	events := [][]byte{
		{0x00, 0xff, 0x00, 0x02, 0x00, 0x07},
		{0x00, 0xff, 0x01, 0x03, 'a', 'b', 'c'},
		{0x00, 0xff, 0x03, 0x05, 'P', 'i', 'a', 'n', 'o'},
		{0x00, 0xff, 0x04, 0x00},
		{0x00, 0xff, 0x20, 0x01, 0x09},
		{0x83, 0x00, 0xff, 0x2f, 0x00},
		{0x00, 0xff, 0x51, 0x03, 0x07, 0xa1, 0x20},
		{0x00, 0xff, 0x54, 0x05, 0x01, 0x02, 0x03, 0x04, 0x05},
		{0x00, 0xff, 0x58, 0x04, 0x06, 0x03, 0x24, 0x08},
		{0x00, 0xff, 0x59, 0x02, 0xfd, 0x01},
		{0x00, 0xff, 0x7f, 0x03, 0x00, 0x00, 0x41},
		// An unassigned meta-event type.
		{0x00, 0xff, 0x60, 0x02, 0xaa, 0xbb},
		{0x10, 0xf8},
		{0x00, 0xfa},
		{0x00, 0xfb},
		{0x00, 0xfc},
		// System exclusive, and an undefined system common byte.
		{0x00, 0xf0, 0x03, 0x43, 0x12, 0xf7},
		{0x00, 0xf4, 0x01, 0x99},
		{0x00, 0x80, 0x3c, 0x40},
		{0x60, 0x91, 0x43, 0x7f},
		{0x00, 0xa2, 0x30, 0x10},
		{0x00, 0xb3, 0x07, 0x64},
		{0x00, 0xc4, 0x05},
		{0x00, 0xd5, 0x22},
		{0x00, 0xe6, 0x00, 0x40},
	}
	for _, data := range events {
		event, n, e := DecodeEvent(data)
		require.NoError(t, e, "decoding % x", data)
		assert.Equal(t, len(data), n)
		runningStatus := uint8(0)
		encoded, e := event.Encode(&runningStatus)
		require.NoError(t, e, "encoding %s", event)
		assert.Equal(t, data, encoded, "event %s", event)
	}
}

func TestDecodedEventTypes(t *testing.T) {
	event, _, e := DecodeEvent([]byte{0x00, 0xff, 0x51, 0x03, 0x07, 0xa1,
		0x20})
	require.NoError(t, e)
	assert.Equal(t, SetTempo(500000), event.Message)
	assert.InDelta(t, 120.0, event.Message.(SetTempo).BPM(), 0.001)

	event, _, e = DecodeEvent([]byte{0x00, 0xff, 0x58, 0x04, 0x06, 0x03, 0x24,
		0x08})
	require.NoError(t, e)
	sig := event.Message.(*TimeSignature)
	assert.Equal(t, uint8(6), sig.Numerator)
	assert.Equal(t, uint32(8), sig.NotatedDenominator())

	event, _, e = DecodeEvent([]byte{0x00, 0xff, 0x59, 0x02, 0xfd, 0x01})
	require.NoError(t, e)
	assert.Equal(t, &KeySignature{SharpsOrFlats: -3, Mode: 1}, event.Message)

	event, _, e = DecodeEvent([]byte{0x00, 0xe6, 0x7f, 0x7f})
	require.NoError(t, e)
	assert.Equal(t, uint16(0x3fff), event.Message.(*ChannelMessage).PitchBend())
	assert.Equal(t, uint8(0xe6), event.Message.Command())
}

func TestRunningStatus(t *testing.T) {
	data := []byte{
		0x00, 0x90, 0x3c, 0x40,
		// Same status, omitted.
		0x10, 0x3c, 0x00,
		// A meta-event cancels running status.
		0x00, 0xff, 0x06, 0x01, 'x',
		0x00, 0x90, 0x3e, 0x40,
	}
	r := bytes.NewReader(data)
	runningStatus := uint8(0)
	var events []*Event
	for {
		event, e := ReadEvent(r, &runningStatus)
		if e == io.EOF {
			break
		}
		require.NoError(t, e)
		events = append(events, event)
	}
	require.Len(t, events, 4)
	second := events[1].Message.(*ChannelMessage)
	assert.True(t, second.RunningStatus)
	assert.False(t, second.StartsNote())
	assert.Equal(t, NoteOn, second.Kind)

	var output []byte
	runningStatus = 0
	for _, event := range events {
		encoded, e := event.Encode(&runningStatus)
		require.NoError(t, e)
		output = append(output, encoded...)
	}
	assert.Equal(t, data, output)
}

func TestDataByteWithoutStatus(t *testing.T) {
	_, _, e := DecodeEvent([]byte{0x00, 0x3c, 0x40})
	assert.Error(t, e)
}

func TestBadMetaPayloads(t *testing.T) {
	bad := [][]byte{
		{0x00, 0xff, 0x2f, 0x01, 0x00},
		{0x00, 0xff, 0x51, 0x02, 0x07, 0xa1},
		{0x00, 0xff, 0x58, 0x03, 0x04, 0x02, 0x18},
		{0x00, 0xff, 0x59, 0x01, 0x00},
	}
	for _, data := range bad {
		_, _, e := DecodeEvent(data)
		assert.ErrorIs(t, e, ErrUnexpectedMetaPayload, "decoding % x", data)
	}
}

func TestTruncatedEvents(t *testing.T) {
	truncated := [][]byte{
		{0x00},
		{0x00, 0x90, 0x3c},
		{0x00, 0xff, 0x03, 0x05, 'a'},
		{0x00, 0xf0, 0x05, 0x01},
	}
	for _, data := range truncated {
		_, _, e := DecodeEvent(data)
		assert.Error(t, e, "decoding % x", data)
	}
}

func TestChannelMessageValidation(t *testing.T) {
	runningStatus := uint8(0)
	_, e := NewNoteOn(16, 60, 100).SMFData(&runningStatus)
	assert.Error(t, e)
	_, e = NewNoteOn(0, 60, 200).SMFData(&runningStatus)
	assert.Error(t, e)
	data, e := NewNoteOff(2, 60, 0).SMFData(&runningStatus)
	require.NoError(t, e)
	assert.Equal(t, []byte{0x82, 60, 0}, data)
	assert.Equal(t, uint8(0x82), runningStatus)
}

func TestNoteName(t *testing.T) {
	assert.Equal(t, "C4", NoteName(60))
	assert.Equal(t, "A0", NoteName(21))
	assert.Equal(t, "C-1", NoteName(0))
	assert.Equal(t, "G9", NoteName(127))
}
