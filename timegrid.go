package pianoroll

// This file contains the code that walks a parsed file's note events and
// derives the shared time grid used to rasterize them.

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// The number of piano-roll rows each channel occupies.
const NotesPerChannel = 128

// Maps absolute ticks to piano-roll columns. Column c covers the ticks
// [MinTick + c*GCD, MinTick + (c+1)*GCD).
type TimeGrid struct {
	MinTick uint64
	MaxTick uint64
	GCD     uint64
}

// Returns a time grid, checking that GCD evenly divides the span.
func NewTimeGrid(minTick, maxTick, gcd uint64) (TimeGrid, error) {
	if gcd == 0 {
		return TimeGrid{}, errors.Wrap(ErrDegenerateGcdInput, "zero tick GCD")
	}
	if maxTick < minTick {
		return TimeGrid{}, errors.Errorf("max tick %d precedes min tick %d",
			maxTick, minTick)
	}
	if ((maxTick - minTick) % gcd) != 0 {
		return TimeGrid{}, errors.Errorf("tick span %d isn't a multiple of "+
			"%d", maxTick-minTick, gcd)
	}
	return TimeGrid{MinTick: minTick, MaxTick: maxTick, GCD: gcd}, nil
}

// Returns the number of columns in the grid.
func (g TimeGrid) Range() int {
	return int((g.MaxTick - g.MinTick) / g.GCD)
}

// Returns the column containing the given absolute tick. Ticks before
// MinTick map to column 0.
func (g TimeGrid) Column(tick uint64) int {
	if tick < g.MinTick {
		return 0
	}
	return int((tick - g.MinTick) / g.GCD)
}

// Returns the absolute tick at which the given column starts.
func (g TimeGrid) Tick(column int) uint64 {
	return g.MinTick + uint64(column)*g.GCD
}

// Returns a grid with the same origin and GCD, but the given number of
// columns.
func (g TimeGrid) WithRange(columns int) TimeGrid {
	g.MaxTick = g.Tick(columns)
	return g
}

func (g TimeGrid) String() string {
	return fmt.Sprintf("ticks %d to %d, %d per column (%d columns)",
		g.MinTick, g.MaxTick, g.GCD, g.Range())
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Folds the given values into their greatest common divisor. At least two
// values are required.
func ReduceGCD(values []uint64) (uint64, error) {
	if len(values) < 2 {
		return 0, errors.Wrapf(ErrDegenerateGcdInput, "got %d values",
			len(values))
	}
	toReturn := gcd(values[0], values[1])
	for _, v := range values[2:] {
		toReturn = gcd(toReturn, v)
	}
	return toReturn, nil
}

// Identifies the notes of one pitch on one channel.
type NoteKey struct {
	Channel uint8
	Note    uint8
}

// A note-on or note-off, located by its absolute tick.
type NoteEvent struct {
	Tick    uint64
	Track   int
	Message *ChannelMessage
}

// Returns true if the event starts a note, false if it ends one.
func (n *NoteEvent) On() bool {
	return n.Message.StartsNote()
}

// Describes which piano-roll rows belong to which channel. Order is the
// sorted list of channels that carry notes; the channel at Order[i] owns
// rows i*128 through i*128+127. Tracks gives the first track in which each
// channel's notes appear.
type ChannelMap struct {
	Order  []uint8
	Tracks map[uint8]int
}

// Returns the index of the given channel's block of rows.
func (m *ChannelMap) Block(channel uint8) (int, bool) {
	i := sort.Search(len(m.Order), func(i int) bool {
		return m.Order[i] >= channel
	})
	if (i < len(m.Order)) && (m.Order[i] == channel) {
		return i, true
	}
	return 0, false
}

// Returns the number of piano-roll rows the channels occupy.
func (m *ChannelMap) Rows() int {
	return len(m.Order) * NotesPerChannel
}

// Returns the piano-roll row for a note on a channel, or -1 if the channel
// carries no notes.
func (m *ChannelMap) Row(channel, note uint8) int {
	block, ok := m.Block(channel)
	if !ok {
		return -1
	}
	return block*NotesPerChannel + int(note&0x7f)
}

// Everything learned by walking a file's note events.
type Analysis struct {
	// Each pitch's note-ons and note-offs, in chronological order.
	Notes     map[NoteKey][]NoteEvent
	Channels  ChannelMap
	Grid      TimeGrid
	Signature TimeSignature
	// Groups files that share a time signature, channel count and tick GCD.
	Key string
}

// Returns the filter key for a file with the given properties, formatted as
// "num/den-32nds-clicks-channels-gcd".
func FilterKey(sig *TimeSignature, channels int, tickGCD uint64) string {
	return fmt.Sprintf("%d/%d-%d-%d-%d-%d", sig.Numerator,
		sig.NotatedDenominator(), sig.ThirtySecondsPerQuarter,
		sig.ClocksPerClick, channels, tickGCD)
}

// Walks every track of f, collecting note events by absolute tick and
// deriving the time grid from them. Fails if f has no time signature at
// delta-time 0, or fewer than two note events.
func Analyze(f *File) (*Analysis, error) {
	toReturn := &Analysis{
		Notes: make(map[NoteKey][]NoteEvent),
		Channels: ChannelMap{
			Tracks: make(map[uint8]int),
		},
	}
	var signature *TimeSignature
	var ticks []uint64
	minTick, maxTick := ^uint64(0), uint64(0)
	for trackIndex, track := range f.Tracks {
		clock := uint64(0)
		for _, event := range track.Events {
			clock += uint64(event.DeltaTime)
			switch m := event.Message.(type) {
			case *TimeSignature:
				if signature != nil {
					logrus.Debugf("Ignoring additional time signature in "+
						"track %d at tick %d", trackIndex, clock)
					continue
				}
				if event.DeltaTime != 0 {
					return nil, errors.Wrapf(ErrTimeSignatureAtNonzeroDelta,
						"delta-time %d in track %d", event.DeltaTime,
						trackIndex)
				}
				signature = m
			case *ChannelMessage:
				if !m.IsNote() {
					continue
				}
				key := NoteKey{Channel: m.Channel, Note: m.Data1}
				toReturn.Notes[key] = append(toReturn.Notes[key], NoteEvent{
					Tick:    clock,
					Track:   trackIndex,
					Message: m,
				})
				if _, ok := toReturn.Channels.Tracks[m.Channel]; !ok {
					toReturn.Channels.Tracks[m.Channel] = trackIndex
					toReturn.Channels.Order = append(toReturn.Channels.Order,
						m.Channel)
				}
				ticks = append(ticks, clock)
				if clock < minTick {
					minTick = clock
				}
				if clock > maxTick {
					maxTick = clock
				}
			}
		}
	}
	if signature == nil {
		return nil, ErrMissingTimeSignature
	}
	toReturn.Signature = *signature
	tickGCD, e := ReduceGCD(ticks)
	if e != nil {
		return nil, e
	}
	toReturn.Grid, e = NewTimeGrid(minTick, maxTick, tickGCD)
	if e != nil {
		return nil, e
	}
	sort.Slice(toReturn.Channels.Order, func(i, j int) bool {
		return toReturn.Channels.Order[i] < toReturn.Channels.Order[j]
	})
	// A pitch's events may come from more than one track. At the same tick,
	// a note-off ends the previous note before a note-on starts the next.
	for _, events := range toReturn.Notes {
		sort.SliceStable(events, func(i, j int) bool {
			if events[i].Tick != events[j].Tick {
				return events[i].Tick < events[j].Tick
			}
			return !events[i].On() && events[j].On()
		})
	}
	toReturn.Key = FilterKey(signature, len(toReturn.Channels.Order), tickGCD)
	return toReturn, nil
}
