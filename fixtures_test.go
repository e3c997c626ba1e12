package pianoroll

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// The format-1 example file given in the SMF section of the MIDI
// specification. It uses running status, including a note-on with velocity 0
// in place of a note-off.
var standardExampleFile = []byte{
	// MThd, length 6, format 1, four tracks, 96 ticks per quarter note.
	0x4d, 0x54, 0x68, 0x64,
	0, 0, 0, 6,
	0, 1,
	0, 4,
	0, 0x60,
	// Tempo track: time signature, tempo, end of track.
	0x4d, 0x54, 0x72, 0x6b,
	0, 0, 0, 0x14,
	0, 0xff, 0x58, 4, 4, 2, 0x18, 8,
	0, 0xff, 0x51, 3, 7, 0xa1, 0x20,
	0x83, 0, 0xff, 0x2f, 0,
	// Channel 0: program 5, note 0x4c from tick 192 to 384.
	0x4d, 0x54, 0x72, 0x6b,
	0, 0, 0, 0x10,
	0, 0xc0, 5,
	0x81, 0x40, 0x90, 0x4c, 0x20,
	0x81, 0x40, 0x4c, 0,
	0, 0xff, 0x2f, 0,
	// Channel 1: program 0x2e, note 0x43 from tick 96 to 384.
	0x4d, 0x54, 0x72, 0x6b,
	0, 0, 0, 0xf,
	0, 0xc1, 0x2e,
	0x60, 0x91, 0x43, 0x40,
	0x82, 0x20, 0x43, 0,
	0, 0xff, 0x2f, 0,
	// Channel 2: program 0x46, notes 0x30 and 0x3c from tick 0 to 384.
	0x4d, 0x54, 0x72, 0x6b,
	0, 0, 0, 0x15,
	0, 0xc2, 0x46,
	0, 0x92, 0x30, 0x60,
	0, 0x3c, 0x60,
	0x83, 0, 0x30, 0,
	0, 0x3c, 0,
	0, 0xff, 0x2f, 0,
}

// The 4/4 time signature event used by the hand-built test files.
var commonTime = []byte{0x00, 0xff, 0x58, 0x04, 0x04, 0x02, 0x18, 0x08}

var endOfTrack = []byte{0x00, 0xff, 0x2f, 0x00}

// Returns an SMF file made of the given track contents, computing each
// track's size.
func buildSMF(division uint16, tracks ...[]byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("MThd")
	binary.Write(&buf, binary.BigEndian, uint32(6))
	format := uint16(1)
	if len(tracks) == 1 {
		format = 0
	}
	binary.Write(&buf, binary.BigEndian, format)
	binary.Write(&buf, binary.BigEndian, uint16(len(tracks)))
	binary.Write(&buf, binary.BigEndian, division)
	for _, t := range tracks {
		buf.WriteString("MTrk")
		binary.Write(&buf, binary.BigEndian, uint32(len(t)))
		buf.Write(t)
	}
	return buf.Bytes()
}

// Concatenates events into track content.
func trackData(events ...[]byte) []byte {
	var toReturn []byte
	for _, e := range events {
		toReturn = append(toReturn, e...)
	}
	return toReturn
}

func mustParse(t *testing.T, data []byte) *File {
	f, e := ParseFile(bytes.NewReader(data))
	require.NoError(t, e)
	return f
}

func mustSource(t *testing.T, data []byte) *Source {
	s, e := NewSource(t.Name(), mustParse(t, data), DefaultVelocity)
	require.NoError(t, e)
	return s
}
