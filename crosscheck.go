package pianoroll

import (
	"bytes"

	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2/smf"
)

// What an independent SMF decoder found in one track.
type TrackSummary struct {
	// The number of note-ons with nonzero velocity.
	NoteStarts int
	// The sum of the absolute ticks of those note-ons.
	StartTicks uint64
}

// Summarizes the note starts of each of our tracks, the same way
// summarizeForeign does for the other decoder.
func summarizeTracks(f *File) []TrackSummary {
	toReturn := make([]TrackSummary, len(f.Tracks))
	for i, t := range f.Tracks {
		clock := uint64(0)
		for _, event := range t.Events {
			clock += uint64(event.DeltaTime)
			m, ok := event.Message.(*ChannelMessage)
			if !ok || !m.StartsNote() {
				continue
			}
			toReturn[i].NoteStarts++
			toReturn[i].StartTicks += clock
		}
	}
	return toReturn
}

func summarizeForeign(s *smf.SMF) []TrackSummary {
	toReturn := make([]TrackSummary, len(s.Tracks))
	for i, t := range s.Tracks {
		clock := uint64(0)
		for _, event := range t {
			clock += uint64(event.Delta)
			data := []byte(event.Message)
			if (len(data) < 3) || ((data[0] & 0xf0) != NoteOn) ||
				(data[2] == 0) {
				continue
			}
			toReturn[i].NoteStarts++
			toReturn[i].StartTicks += clock
		}
	}
	return toReturn
}

// Decodes data with both this package and gomidi's SMF reader, and returns an
// error if they disagree about the number of tracks or about where notes
// start. Returns the per-track summary on success.
func CrossCheck(data []byte) ([]TrackSummary, error) {
	ours, e := ParseFile(bytes.NewReader(data))
	if e != nil {
		return nil, errors.Wrap(e, "failed parsing")
	}
	theirs, e := smf.ReadFrom(bytes.NewReader(data))
	if e != nil {
		return nil, errors.Wrap(e, "gomidi failed parsing")
	}
	a := summarizeTracks(ours)
	b := summarizeForeign(theirs)
	if len(a) != len(b) {
		return nil, errors.Errorf("found %d tracks, gomidi found %d", len(a),
			len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			return nil, errors.Errorf("track %d: found %+v, gomidi found %+v",
				i, a[i], b[i])
		}
	}
	return a, nil
}
