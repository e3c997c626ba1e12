package pianoroll

// This file contains the composer, which turns a piano roll back into a MIDI
// file using an existing source as a template.

import (
	"sort"

	"github.com/pkg/errors"
)

// Settings for Compose.
type ComposeOptions struct {
	Velocity VelocityMap
	// A sounding note whose velocity changes by this much or less is left
	// alone rather than being re-struck.
	Threshold int
}

// Returns the options Compose uses by default: the default velocity map and
// a threshold of 0.
func DefaultComposeOptions() ComposeOptions {
	return ComposeOptions{Velocity: DefaultVelocity}
}

// A message located by absolute tick, prior to delta-time assignment.
type timedMessage struct {
	tick uint64
	// Orders messages sharing a tick: template events, then note-offs, then
	// note-ons.
	rank    int
	message Message
}

const (
	rankTemplate = iota
	rankNoteOff
	rankNoteOn
)

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Replays one row of the roll, returning the note-ons and note-offs it
// implies. Every note still sounding after the last column is ended at the
// grid's final tick.
func composeRow(values []float64, channel, note uint8, grid TimeGrid,
	opts *ComposeOptions) []timedMessage {
	var toReturn []timedMessage
	off := func(col int) {
		toReturn = append(toReturn, timedMessage{
			tick:    grid.Tick(col),
			rank:    rankNoteOff,
			message: NewNoteOff(channel, note, 0),
		})
	}
	on := func(col int, v uint8) {
		// Velocities above 127 can't be written as a MIDI data byte.
		if v > 0x7f {
			v = 0x7f
		}
		toReturn = append(toReturn, timedMessage{
			tick:    grid.Tick(col),
			rank:    rankNoteOn,
			message: NewNoteOn(channel, note, v),
		})
	}
	previous := uint8(0)
	for col, x := range values {
		v := opts.Velocity.Quantize(x)
		switch {
		case (previous != 0) && (v == 0):
			off(col)
		case (previous != 0) &&
			(absInt(int(v)-int(previous)) > opts.Threshold):
			off(col)
			on(col, v)
		case (previous == 0) && (v != 0):
			on(col, v)
		default:
			// Either still silent, or a change within the threshold.
			continue
		}
		previous = v
	}
	if previous != 0 {
		off(len(values))
	}
	return toReturn
}

// Strips the note events from a track, returning the remaining events with
// their absolute ticks and the number of notes removed. The end-of-track
// event is dropped too; its tick is returned separately.
func templateEvents(t *Track) ([]timedMessage, uint64, int) {
	var toReturn []timedMessage
	clock, end := uint64(0), uint64(0)
	stripped := 0
	for _, event := range t.Events {
		clock += uint64(event.DeltaTime)
		switch m := event.Message.(type) {
		case *ChannelMessage:
			if m.IsNote() {
				stripped++
				continue
			}
		case EndOfTrack:
			end = clock
			continue
		}
		toReturn = append(toReturn, timedMessage{
			tick:    clock,
			rank:    rankTemplate,
			message: event.Message,
		})
	}
	return toReturn, end, stripped
}

// Turns absolute-tick messages into a track ending at or after endTick, with
// a freshly computed size.
func buildTrack(messages []timedMessage, endTick uint64) (*Track, error) {
	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].tick != messages[j].tick {
			return messages[i].tick < messages[j].tick
		}
		return messages[i].rank < messages[j].rank
	})
	toReturn := &Track{
		Events: make([]*Event, 0, len(messages)+1),
	}
	clock := uint64(0)
	for _, m := range messages {
		delta := m.tick - clock
		if delta > MaxVariableInt {
			return nil, errors.Wrapf(ErrVarIntOverflow, "delta-time %d",
				delta)
		}
		toReturn.Events = append(toReturn.Events, &Event{
			DeltaTime: uint32(delta),
			Message:   m.message,
		})
		clock = m.tick
	}
	if endTick < clock {
		endTick = clock
	}
	toReturn.Events = append(toReturn.Events, &Event{
		DeltaTime: uint32(endTick - clock),
		Message:   EndOfTrack{},
	})
	if e := toReturn.Recompute(); e != nil {
		return nil, e
	}
	return toReturn, nil
}

// Builds a MIDI file from a piano roll, using template for everything the
// roll doesn't describe: the header, the channel layout, the time grid's
// origin and resolution, and every non-note event. The roll must have one
// block of 128 rows for each of the template's channels, and at least one
// column. Every note event in the template is replaced. The template isn't
// modified.
func Compose(roll *Roll, template *Source, opts ComposeOptions) (*File,
	error) {
	if (roll.Rows != template.Channels.Rows()) || (roll.Cols <= 0) ||
		(len(roll.Data) != roll.Rows*roll.Cols) {
		return nil, errors.Wrapf(ErrRollShape, "got %s, template %s has %d "+
			"channels", roll, template.Name, len(template.Channels.Order))
	}
	if opts.Velocity.ToByte == nil {
		opts.Velocity = DefaultVelocity
	}
	grid := template.Grid.WithRange(roll.Cols)
	toReturn := template.File.Clone()
	generated := make(map[int][]timedMessage)
	for block, channel := range template.Channels.Order {
		trackIndex, ok := template.Channels.Tracks[channel]
		if !ok || (trackIndex < 0) || (trackIndex >= len(toReturn.Tracks)) {
			return nil, errors.Wrapf(ErrMissingTrack, "channel %d of %s",
				channel, template.Name)
		}
		for note := 0; note < NotesPerChannel; note++ {
			row := roll.Row(block*NotesPerChannel + note)
			generated[trackIndex] = append(generated[trackIndex],
				composeRow(row, channel, uint8(note), grid, &opts)...)
		}
	}
	for i, t := range toReturn.Tracks {
		kept, endTick, stripped := templateEvents(t)
		notes, hasNotes := generated[i]
		if !hasNotes && (stripped == 0) {
			continue
		}
		if hasNotes {
			// The track now lasts as long as the roll does, or until its
			// last template event.
			endTick = grid.MaxTick
		}
		rebuilt, e := buildTrack(append(kept, notes...), endTick)
		if e != nil {
			return nil, errors.Wrapf(e, "failed rebuilding track %d", i)
		}
		toReturn.Tracks[i] = rebuilt
	}
	return toReturn, nil
}
