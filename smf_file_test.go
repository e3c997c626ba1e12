package pianoroll

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFile(t *testing.T) {
	f := mustParse(t, standardExampleFile)
	require.Len(t, f.Tracks, 4)
	assert.Equal(t, uint16(1), f.Format)
	assert.Equal(t, uint16(4), f.NumTracks)
	assert.Equal(t, uint16(96), f.Division.TicksPerQuarterNote())
	expectedCounts := []int{3, 4, 4, 6}
	expectedSizes := []uint32{0x14, 0x10, 0xf, 0x15}
	for i, track := range f.Tracks {
		t.Logf("Track %d, %d events:", i, len(track.Events))
		for j, event := range track.Events {
			t.Logf("  %d. %s", j+1, event)
		}
		assert.Len(t, track.Events, expectedCounts[i])
		assert.Equal(t, expectedSizes[i], track.Size)
	}
	tempo, ok := f.Tracks[0].Events[1].Message.(SetTempo)
	require.True(t, ok)
	assert.Equal(t, SetTempo(500000), tempo)
}

func TestFileRoundTrip(t *testing.T) {
	f := mustParse(t, standardExampleFile)
	output, e := f.Bytes()
	require.NoError(t, e)
	// The example uses running status, which must be reproduced exactly.
	assert.Equal(t, standardExampleFile, output)
	again := mustParse(t, output)
	assert.Equal(t, f, again)
}

func TestTrackRecompute(t *testing.T) {
	f := mustParse(t, standardExampleFile)
	track := f.Tracks[1]
	track.Events = append(track.Events[:1], track.Events[3:]...)
	require.NoError(t, track.Recompute())
	content, e := track.Encode()
	require.NoError(t, e)
	assert.Equal(t, uint32(len(content)), track.Size)
	assert.Equal(t, uint32(7), track.Size)
}

func TestHeaderMismatch(t *testing.T) {
	badMagic := append([]byte("MThx"), standardExampleFile[4:]...)
	_, e := ParseFile(bytes.NewReader(badMagic))
	assert.ErrorIs(t, e, ErrHeaderMismatch)

	badLength := append([]byte(nil), standardExampleFile...)
	badLength[7] = 7
	_, e = ParseFile(bytes.NewReader(badLength))
	assert.ErrorIs(t, e, ErrHeaderMismatch)

	_, e = ParseFile(bytes.NewReader([]byte("MTh")))
	assert.ErrorIs(t, e, ErrHeaderMismatch)
}

func TestBadTrackHeader(t *testing.T) {
	data := buildSMF(96, trackData(commonTime, endOfTrack))
	data[14+3] = 'X'
	_, e := ParseFile(bytes.NewReader(data))
	assert.ErrorIs(t, e, ErrBadTrackHeader)
}

func TestTrackSizeMismatch(t *testing.T) {
	data := buildSMF(96, trackData(commonTime, endOfTrack))
	// Declare one byte less than the events use, so the last event overruns
	// the track.
	data[14+7]--
	_, e := ParseFile(bytes.NewReader(data))
	var mismatch *TrackSizeMismatchError
	require.True(t, errors.As(e, &mismatch), "got error %v", e)
	assert.Equal(t, uint32(11), mismatch.Expected)
	assert.Equal(t, uint32(12), mismatch.Actual)
}

func TestTruncatedTrack(t *testing.T) {
	data := buildSMF(96, trackData(commonTime, endOfTrack))
	_, e := ParseFile(bytes.NewReader(data[:len(data)-2]))
	assert.Error(t, e)
}

func TestHugeDeclaredLengths(t *testing.T) {
	// A track claiming 4 GB that holds only an end-of-track event.
	data := buildSMF(96, endOfTrack)
	require.Len(t, data, 26)
	copy(data[18:22], []byte{0xff, 0xff, 0xff, 0xff})
	_, e := ParseFile(bytes.NewReader(data))
	assert.ErrorIs(t, e, io.ErrUnexpectedEOF)

	// A text event claiming the largest possible length.
	data = buildSMF(96, trackData(commonTime,
		[]byte{0x00, 0xff, 0x01, 0xff, 0xff, 0xff, 0x7f, 'h', 'i'}))
	_, e = ParseFile(bytes.NewReader(data))
	assert.ErrorIs(t, e, io.ErrUnexpectedEOF)
}

func TestReadTracksUntilEOF(t *testing.T) {
	// The header claims one track, but two are present.
	data := buildSMF(96, trackData(commonTime, endOfTrack),
		trackData(endOfTrack))
	data[11] = 1
	f := mustParse(t, data)
	assert.Len(t, f.Tracks, 2)
	assert.Equal(t, uint16(1), f.NumTracks)
	output, e := f.Bytes()
	require.NoError(t, e)
	assert.Equal(t, data, output)
}

func TestReadWriteFilePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "example.mid")
	require.NoError(t, os.WriteFile(path, standardExampleFile, 0644))
	f, e := ReadFile(path)
	require.NoError(t, e)
	outPath := filepath.Join(dir, "copy.mid")
	require.NoError(t, f.WriteFile(outPath))
	written, e := os.ReadFile(outPath)
	require.NoError(t, e)
	assert.Equal(t, standardExampleFile, written)

	_, e = ReadFile(filepath.Join(dir, "missing.mid"))
	assert.Error(t, e)
}

func TestTimeDivision(t *testing.T) {
	assert.Equal(t, "96 ticks per quarter note", TimeDivision(96).String())
	// -25 frames per second, 40 ticks per frame.
	smpte := TimeDivision(0xe728)
	assert.Equal(t, uint16(0), smpte.TicksPerQuarterNote())
	fps, ticks := smpte.SMPTETimeCode()
	assert.Equal(t, uint8(25), fps)
	assert.Equal(t, uint8(40), ticks)
}

func TestCrossCheck(t *testing.T) {
	summary, e := CrossCheck(standardExampleFile)
	require.NoError(t, e)
	require.Len(t, summary, 4)
	assert.Equal(t, TrackSummary{NoteStarts: 1, StartTicks: 192}, summary[1])
	assert.Equal(t, TrackSummary{NoteStarts: 2, StartTicks: 0}, summary[3])
}
