package pianoroll

import (
	"fmt"

	"github.com/pkg/errors"
)

// Every failure returned by this package wraps one of these values (or a
// *TrackSizeMismatchError), so callers can test for the kind of problem with
// errors.Is or errors.As.
var (
	// The file didn't start with "MThd", or the header length wasn't 6.
	ErrHeaderMismatch = errors.New("bad SMF header")
	// Four bytes were available where a track should start, but they weren't
	// "MTrk".
	ErrBadTrackHeader = errors.New("bad track header")
	// The input ended in the middle of a variable-length integer.
	ErrMalformedVarInt = errors.New("malformed variable-length integer")
	// A variable-length integer needed more than 4 bytes (28 bits).
	ErrVarIntOverflow = errors.New("variable-length integer overflow")
	// A meta-event with a fixed payload size had the wrong payload.
	ErrUnexpectedMetaPayload = errors.New("unexpected meta-event payload")
	ErrMissingTimeSignature  = errors.New("no time signature")
	// Only a time signature at delta-time 0 is supported.
	ErrTimeSignatureAtNonzeroDelta = errors.New("time signature at " +
		"nonzero delta-time")
	// There weren't enough distinct note times to derive a time grid.
	ErrDegenerateGcdInput = errors.New("not enough note events to derive " +
		"a time grid")
	// A roll passed to Compose doesn't fit the template.
	ErrRollShape = errors.New("piano roll doesn't match template")
	// A template maps a channel to a track it doesn't have.
	ErrMissingTrack = errors.New("template is missing a track")
)

// Returned when the events in a track run past the track's declared length.
type TrackSizeMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *TrackSizeMismatchError) Error() string {
	return fmt.Sprintf("track declared %d bytes, but its events used %d",
		e.Expected, e.Actual)
}
