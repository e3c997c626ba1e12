package pianoroll

// This file contains the types for individual track events, along with the
// code for decoding and encoding them.

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Status bytes for the channel-voice message kinds. The low nibble of a
// status byte holds the channel.
const (
	NoteOff          uint8 = 0x80
	NoteOn           uint8 = 0x90
	KeyAftertouch    uint8 = 0xa0
	ControlChange    uint8 = 0xb0
	ProgramChange    uint8 = 0xc0
	ChannelPressure  uint8 = 0xd0
	PitchWheelChange uint8 = 0xe0
)

// The command byte preceding every meta-event.
const MetaPrefix uint8 = 0xff

// Meta-event subtypes with a dedicated representation.
const (
	MetaSequenceNumber    uint8 = 0x00
	MetaText              uint8 = 0x01
	MetaCopyright         uint8 = 0x02
	MetaTrackName         uint8 = 0x03
	MetaInstrumentName    uint8 = 0x04
	MetaLyric             uint8 = 0x05
	MetaMarker            uint8 = 0x06
	MetaCuePoint          uint8 = 0x07
	MetaChannelPrefix     uint8 = 0x20
	MetaEndOfTrack        uint8 = 0x2f
	MetaSetTempo          uint8 = 0x51
	MetaSMPTEOffset       uint8 = 0x54
	MetaTimeSignature     uint8 = 0x58
	MetaKeySignature      uint8 = 0x59
	MetaSequencerSpecific uint8 = 0x7f
)

// The four system real-time bytes that may appear without a payload.
const (
	SystemClock    uint8 = 0xf8
	SystemStart    uint8 = 0xfa
	SystemContinue uint8 = 0xfb
	SystemStop     uint8 = 0xfc
)

// Implemented by every kind of message that can appear in a track.
type Message interface {
	// The first byte of the message as written in a file: 0xff for
	// meta-events, the status byte for everything else.
	Command() uint8
	String() string
	// Returns the message's bytes as they'd be written to an SMF file, not
	// including the delta-time. Channel messages may omit their status byte
	// if they were read using running status, and the running status matches.
	// The running status is updated as needed.
	SMFData(runningStatus *uint8) ([]byte, error)
}

// A Message that is a meta-event also reports its subtype.
type MetaMessage interface {
	Message
	MetaType() uint8
}

// A single entry in a track: a message and the number of ticks since the
// previous event in the same track.
type Event struct {
	DeltaTime uint32
	Message   Message
}

func (e *Event) String() string {
	return fmt.Sprintf("Delta %d: %s", e.DeltaTime, e.Message)
}

// Returns the bytes for the delta-time followed by the message.
func (e *Event) Encode(runningStatus *uint8) ([]byte, error) {
	delta, err := EncodeVariableInt(e.DeltaTime)
	if err != nil {
		return nil, errors.Wrap(err, "bad delta-time")
	}
	data, err := e.Message.SMFData(runningStatus)
	if err != nil {
		return nil, err
	}
	return append(delta, data...), nil
}

// The most memory reserved ahead of reading, for lengths taken from the
// input. Longer reads grow as the bytes arrive.
const maxPreallocation = 4096

// Reads n bytes from r. Running out of input is reported as
// io.ErrUnexpectedEOF.
func readBytes(r io.ByteReader, n uint32) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	toReturn := make([]byte, 0, min(n, maxPreallocation))
	for i := uint32(0); i < n; i++ {
		b, e := r.ReadByte()
		if e != nil {
			if e == io.EOF {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, e
		}
		toReturn = append(toReturn, b)
	}
	return toReturn, nil
}

// Formats a meta-event: the prefix, the subtype, a variable-length payload
// size, and the payload.
func formatMetaEventBytes(eventType uint8, data []byte) ([]byte, error) {
	length, e := EncodeVariableInt(uint32(len(data)))
	if e != nil {
		return nil, errors.Wrap(e, "meta-event payload too large")
	}
	toReturn := make([]byte, 0, 2+len(length)+len(data))
	toReturn = append(toReturn, MetaPrefix, eventType)
	toReturn = append(toReturn, length...)
	return append(toReturn, data...), nil
}

// A meta-event holding a sequence number.
type SequenceNumber uint16

func (n SequenceNumber) Command() uint8  { return MetaPrefix }
func (n SequenceNumber) MetaType() uint8 { return MetaSequenceNumber }

func (n SequenceNumber) String() string {
	return fmt.Sprintf("Sequence number: %d", uint16(n))
}

func (n SequenceNumber) SMFData(runningStatus *uint8) ([]byte, error) {
	*runningStatus = 0
	return formatMetaEventBytes(MetaSequenceNumber, []byte{uint8(n >> 8),
		uint8(n)})
}

// Any of the text-carrying meta-events (subtypes 0x01 through 0x0f): plain
// text, copyright notice, track or instrument name, lyric, marker or cue
// point.
type TextEvent struct {
	TextType uint8
	Text     []byte
}

func (t *TextEvent) Command() uint8  { return MetaPrefix }
func (t *TextEvent) MetaType() uint8 { return t.TextType }

func (t *TextEvent) String() string {
	var kind string
	switch t.TextType {
	case MetaText:
		kind = "Text"
	case MetaCopyright:
		kind = "Copyright"
	case MetaTrackName:
		kind = "Track name"
	case MetaInstrumentName:
		kind = "Instrument name"
	case MetaLyric:
		kind = "Lyric"
	case MetaMarker:
		kind = "Marker"
	case MetaCuePoint:
		kind = "Cue point"
	default:
		kind = fmt.Sprintf("Text (type 0x%02x)", t.TextType)
	}
	return fmt.Sprintf("%s: %q", kind, t.Text)
}

func (t *TextEvent) SMFData(runningStatus *uint8) ([]byte, error) {
	*runningStatus = 0
	return formatMetaEventBytes(t.TextType, t.Text)
}

// Associates subsequent meta and sysex events with a channel.
type ChannelPrefix uint8

func (c ChannelPrefix) Command() uint8  { return MetaPrefix }
func (c ChannelPrefix) MetaType() uint8 { return MetaChannelPrefix }

func (c ChannelPrefix) String() string {
	return fmt.Sprintf("Channel prefix: %d", uint8(c))
}

func (c ChannelPrefix) SMFData(runningStatus *uint8) ([]byte, error) {
	*runningStatus = 0
	return formatMetaEventBytes(MetaChannelPrefix, []byte{uint8(c)})
}

// The terminal event of every track.
type EndOfTrack struct{}

func (t EndOfTrack) Command() uint8  { return MetaPrefix }
func (t EndOfTrack) MetaType() uint8 { return MetaEndOfTrack }
func (t EndOfTrack) String() string  { return "End of track" }

func (t EndOfTrack) SMFData(runningStatus *uint8) ([]byte, error) {
	*runningStatus = 0
	return formatMetaEventBytes(MetaEndOfTrack, nil)
}

// Microseconds per quarter note, stored in 24 bits.
type SetTempo uint32

func (t SetTempo) Command() uint8  { return MetaPrefix }
func (t SetTempo) MetaType() uint8 { return MetaSetTempo }

// Returns the tempo in beats per minute.
func (t SetTempo) BPM() float64 {
	if t == 0 {
		return 0
	}
	return 60000000.0 / float64(t)
}

func (t SetTempo) String() string {
	return fmt.Sprintf("Set tempo: %d us/quarter note (%.2f BPM)", uint32(t),
		t.BPM())
}

func (t SetTempo) SMFData(runningStatus *uint8) ([]byte, error) {
	*runningStatus = 0
	if t > 0xffffff {
		return nil, errors.Errorf("tempo 0x%x doesn't fit in 24 bits",
			uint32(t))
	}
	return formatMetaEventBytes(MetaSetTempo, []byte{uint8(t >> 16),
		uint8(t >> 8), uint8(t)})
}

type SMPTEOffset struct {
	Hours            uint8
	Minutes          uint8
	Seconds          uint8
	Frames           uint8
	FractionalFrames uint8
}

func (s *SMPTEOffset) Command() uint8  { return MetaPrefix }
func (s *SMPTEOffset) MetaType() uint8 { return MetaSMPTEOffset }

func (s *SMPTEOffset) String() string {
	return fmt.Sprintf("SMPTE offset: %02d:%02d:%02d, frame %d.%02d", s.Hours,
		s.Minutes, s.Seconds, s.Frames, s.FractionalFrames)
}

func (s *SMPTEOffset) SMFData(runningStatus *uint8) ([]byte, error) {
	*runningStatus = 0
	return formatMetaEventBytes(MetaSMPTEOffset, []byte{s.Hours, s.Minutes,
		s.Seconds, s.Frames, s.FractionalFrames})
}

type TimeSignature struct {
	Numerator uint8
	// A power of two: 2 means quarter notes, 3 means eighths, and so on.
	Denominator uint8
	// MIDI clocks (24 per quarter note) per metronome click.
	ClocksPerClick uint8
	// Notated 32nd notes per MIDI quarter note, usually 8.
	ThirtySecondsPerQuarter uint8
}

func (s *TimeSignature) Command() uint8  { return MetaPrefix }
func (s *TimeSignature) MetaType() uint8 { return MetaTimeSignature }

// Returns the denominator as it would be notated, e.g. 4 for quarter notes.
func (s *TimeSignature) NotatedDenominator() uint32 {
	return uint32(1) << (s.Denominator & 0x1f)
}

func (s *TimeSignature) String() string {
	return fmt.Sprintf("Time signature: %d/%d, %d clocks per click, %d 32nds "+
		"per quarter", s.Numerator, s.NotatedDenominator(), s.ClocksPerClick,
		s.ThirtySecondsPerQuarter)
}

func (s *TimeSignature) SMFData(runningStatus *uint8) ([]byte, error) {
	*runningStatus = 0
	return formatMetaEventBytes(MetaTimeSignature, []byte{s.Numerator,
		s.Denominator, s.ClocksPerClick, s.ThirtySecondsPerQuarter})
}

type KeySignature struct {
	// Negative for flats, positive for sharps.
	SharpsOrFlats int8
	// 0 for major, 1 for minor. Kept as a raw byte so unusual files survive
	// a round trip.
	Mode uint8
}

func (s *KeySignature) Command() uint8  { return MetaPrefix }
func (s *KeySignature) MetaType() uint8 { return MetaKeySignature }

func (s *KeySignature) String() string {
	mode := "major"
	if s.Mode == 1 {
		mode = "minor"
	} else if s.Mode != 0 {
		mode = fmt.Sprintf("mode %d", s.Mode)
	}
	return fmt.Sprintf("Key signature: %+d, %s", s.SharpsOrFlats, mode)
}

func (s *KeySignature) SMFData(runningStatus *uint8) ([]byte, error) {
	*runningStatus = 0
	return formatMetaEventBytes(MetaKeySignature, []byte{uint8(s.SharpsOrFlats),
		s.Mode})
}

// Holds a sequencer-specific meta-event, or any meta-event this package
// doesn't interpret. The payload is kept verbatim.
type GenericMeta struct {
	EventType uint8
	Data      []byte
}

func (g *GenericMeta) Command() uint8  { return MetaPrefix }
func (g *GenericMeta) MetaType() uint8 { return g.EventType }

func (g *GenericMeta) String() string {
	if g.EventType == MetaSequencerSpecific {
		return fmt.Sprintf("Sequencer-specific data: % x", g.Data)
	}
	return fmt.Sprintf("Meta-event 0x%02x, %d bytes", g.EventType, len(g.Data))
}

func (g *GenericMeta) SMFData(runningStatus *uint8) ([]byte, error) {
	*runningStatus = 0
	return formatMetaEventBytes(g.EventType, g.Data)
}

// One of the single-byte system real-time messages: clock, start, continue
// or stop.
type SystemMessage uint8

func (m SystemMessage) Command() uint8 { return uint8(m) }

func (m SystemMessage) String() string {
	switch uint8(m) {
	case SystemClock:
		return "System clock"
	case SystemStart:
		return "System start"
	case SystemContinue:
		return "System continue"
	case SystemStop:
		return "System stop"
	}
	return fmt.Sprintf("System message 0x%02x", uint8(m))
}

func (m SystemMessage) SMFData(runningStatus *uint8) ([]byte, error) {
	return []byte{uint8(m)}, nil
}

// Holds any message whose command byte isn't otherwise understood, including
// system-exclusive messages. The data is length-prefixed in the file, and is
// kept verbatim.
type OpaqueMessage struct {
	Status uint8
	Data   []byte
}

func (m *OpaqueMessage) Command() uint8 { return m.Status }

func (m *OpaqueMessage) String() string {
	if (m.Status == 0xf0) || (m.Status == 0xf7) {
		return fmt.Sprintf("System exclusive, %d bytes", len(m.Data))
	}
	return fmt.Sprintf("Unknown message 0x%02x, %d bytes", m.Status,
		len(m.Data))
}

func (m *OpaqueMessage) SMFData(runningStatus *uint8) ([]byte, error) {
	*runningStatus = 0
	length, e := EncodeVariableInt(uint32(len(m.Data)))
	if e != nil {
		return nil, errors.Wrap(e, "opaque message too large")
	}
	toReturn := append([]byte{m.Status}, length...)
	return append(toReturn, m.Data...), nil
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#",
	"A", "A#", "B"}

// Returns a name such as "C4" (middle C, note 60) for a MIDI note number.
func NoteName(note uint8) string {
	return fmt.Sprintf("%s%d", noteNames[note%12], int(note)/12-1)
}

// A channel-voice message. Kind is one of the NoteOff through
// PitchWheelChange constants. Data2 is unused by program-change and
// channel-pressure messages.
type ChannelMessage struct {
	Kind    uint8
	Channel uint8
	Data1   uint8
	Data2   uint8
	// Set if the message was read without a status byte. The encoder only
	// omits the status byte for such messages.
	RunningStatus bool
}

// Returns a note-on message with an explicit status byte.
func NewNoteOn(channel, note, velocity uint8) *ChannelMessage {
	return &ChannelMessage{
		Kind:    NoteOn,
		Channel: channel,
		Data1:   note,
		Data2:   velocity,
	}
}

// Returns a note-off message with an explicit status byte.
func NewNoteOff(channel, note, velocity uint8) *ChannelMessage {
	return &ChannelMessage{
		Kind:    NoteOff,
		Channel: channel,
		Data1:   note,
		Data2:   velocity,
	}
}

func (m *ChannelMessage) Command() uint8 {
	return m.Kind | (m.Channel & 0xf)
}

// Returns true for note-on and note-off messages.
func (m *ChannelMessage) IsNote() bool {
	return (m.Kind == NoteOn) || (m.Kind == NoteOff)
}

// Returns true if the message starts a note. A note-on with velocity 0 ends
// the note instead.
func (m *ChannelMessage) StartsNote() bool {
	return (m.Kind == NoteOn) && (m.Data2 != 0)
}

// Returns the 14-bit value of a pitch-wheel message.
func (m *ChannelMessage) PitchBend() uint16 {
	return (uint16(m.Data2) << 7) | uint16(m.Data1)
}

// Returns the number of data bytes that follow the status byte.
func channelDataLength(kind uint8) int {
	if (kind == ProgramChange) || (kind == ChannelPressure) {
		return 1
	}
	return 2
}

func (m *ChannelMessage) String() string {
	c := fmt.Sprintf("Channel %d: ", m.Channel)
	switch m.Kind {
	case NoteOff:
		return c + fmt.Sprintf("%s off, velocity %d", NoteName(m.Data1),
			m.Data2)
	case NoteOn:
		return c + fmt.Sprintf("%s on, velocity %d", NoteName(m.Data1),
			m.Data2)
	case KeyAftertouch:
		return c + fmt.Sprintf("%s aftertouch %d", NoteName(m.Data1), m.Data2)
	case ControlChange:
		return c + fmt.Sprintf("Control %d = %d", m.Data1, m.Data2)
	case ProgramChange:
		return c + fmt.Sprintf("Program change to %d", m.Data1)
	case ChannelPressure:
		return c + fmt.Sprintf("Channel pressure %d", m.Data1)
	case PitchWheelChange:
		return c + fmt.Sprintf("Pitch wheel %d", m.PitchBend())
	}
	return c + fmt.Sprintf("Unknown message kind 0x%02x", m.Kind)
}

func (m *ChannelMessage) SMFData(runningStatus *uint8) ([]byte, error) {
	if (m.Kind < NoteOff) || ((m.Kind & 0x0f) != 0) || (m.Kind > 0xe0) {
		return nil, errors.Errorf("invalid channel message kind 0x%02x",
			m.Kind)
	}
	if m.Channel > 0xf {
		return nil, errors.Errorf("invalid channel %d", m.Channel)
	}
	if (m.Data1 > 0x7f) || (m.Data2 > 0x7f) {
		return nil, errors.Errorf("data byte out of range in %s", m)
	}
	status := m.Command()
	data := []byte{m.Data1, m.Data2}[:channelDataLength(m.Kind)]
	if m.RunningStatus && (status == *runningStatus) {
		return append([]byte(nil), data...), nil
	}
	*runningStatus = status
	return append([]byte{status}, data...), nil
}

// Parses a channel message. firstByte is the byte following the delta-time;
// if it isn't a status byte, the running status is used and firstByte is the
// first data byte.
func parseChannelMessage(r io.ByteReader, firstByte uint8,
	runningStatus *uint8) (Message, error) {
	status := firstByte
	running := (firstByte & 0x80) == 0
	if running {
		status = *runningStatus
		if (status & 0x80) == 0 {
			return nil, errors.Errorf("data byte 0x%02x without a running "+
				"status", firstByte)
		}
	}
	m := &ChannelMessage{
		Kind:          status & 0xf0,
		Channel:       status & 0x0f,
		RunningStatus: running,
	}
	count := channelDataLength(m.Kind)
	var data [2]uint8
	i := 0
	if running {
		data[0] = firstByte
		i = 1
	}
	for ; i < count; i++ {
		b, e := r.ReadByte()
		if e != nil {
			if e == io.EOF {
				e = io.ErrUnexpectedEOF
			}
			return nil, errors.Wrapf(e, "failed reading data for status "+
				"0x%02x", status)
		}
		if b > 0x7f {
			return nil, errors.Errorf("invalid data byte 0x%02x for status "+
				"0x%02x", b, status)
		}
		data[i] = b
	}
	m.Data1 = data[0]
	m.Data2 = data[1]
	*runningStatus = status
	return m, nil
}

// Requires exactly size bytes of meta-event payload.
func checkMetaLength(eventType uint8, data []byte, size int) error {
	if len(data) != size {
		return errors.Wrapf(ErrUnexpectedMetaPayload, "meta-event 0x%02x "+
			"needs %d bytes, got %d", eventType, size, len(data))
	}
	return nil
}

// Parses a meta-event. Assumes the 0xff prefix has already been consumed.
func parseMetaEvent(r io.ByteReader) (Message, error) {
	eventType, e := r.ReadByte()
	if e != nil {
		return nil, errors.Wrap(io.ErrUnexpectedEOF, "failed reading "+
			"meta-event type")
	}
	length, e := ReadVariableInt(r)
	if e != nil {
		if e == io.EOF {
			e = errors.Wrap(ErrMalformedVarInt, "missing meta-event length")
		}
		return nil, errors.Wrap(e, "failed reading meta-event length")
	}
	data, e := readBytes(r, length)
	if e != nil {
		return nil, errors.Wrapf(e, "failed reading %d bytes of meta-event "+
			"0x%02x", length, eventType)
	}
	switch {
	case eventType == MetaSequenceNumber:
		if len(data) != 2 {
			// Some files use an empty sequence number; keep it as-is.
			return &GenericMeta{EventType: eventType, Data: data}, nil
		}
		return SequenceNumber((uint16(data[0]) << 8) | uint16(data[1])), nil
	case (eventType >= MetaText) && (eventType <= 0x0f):
		return &TextEvent{TextType: eventType, Text: data}, nil
	case eventType == MetaChannelPrefix:
		if e = checkMetaLength(eventType, data, 1); e != nil {
			return nil, e
		}
		return ChannelPrefix(data[0]), nil
	case eventType == MetaEndOfTrack:
		if e = checkMetaLength(eventType, data, 0); e != nil {
			return nil, e
		}
		return EndOfTrack{}, nil
	case eventType == MetaSetTempo:
		if e = checkMetaLength(eventType, data, 3); e != nil {
			return nil, e
		}
		tempo := (uint32(data[0]) << 16) | (uint32(data[1]) << 8) |
			uint32(data[2])
		return SetTempo(tempo), nil
	case eventType == MetaSMPTEOffset:
		if e = checkMetaLength(eventType, data, 5); e != nil {
			return nil, e
		}
		return &SMPTEOffset{
			Hours:            data[0],
			Minutes:          data[1],
			Seconds:          data[2],
			Frames:           data[3],
			FractionalFrames: data[4],
		}, nil
	case eventType == MetaTimeSignature:
		if e = checkMetaLength(eventType, data, 4); e != nil {
			return nil, e
		}
		return &TimeSignature{
			Numerator:               data[0],
			Denominator:             data[1],
			ClocksPerClick:          data[2],
			ThirtySecondsPerQuarter: data[3],
		}, nil
	case eventType == MetaKeySignature:
		if e = checkMetaLength(eventType, data, 2); e != nil {
			return nil, e
		}
		return &KeySignature{
			SharpsOrFlats: int8(data[0]),
			Mode:          data[1],
		}, nil
	}
	return &GenericMeta{EventType: eventType, Data: data}, nil
}

// Reads a message whose contents aren't interpreted: a variable-length size
// followed by that many bytes.
func parseOpaqueMessage(r io.ByteReader, status uint8) (Message, error) {
	length, e := ReadVariableInt(r)
	if e != nil {
		if e == io.EOF {
			e = errors.Wrap(ErrMalformedVarInt, "missing length")
		}
		return nil, errors.Wrapf(e, "failed reading length of message "+
			"0x%02x", status)
	}
	data, e := readBytes(r, length)
	if e != nil {
		return nil, errors.Wrapf(e, "failed reading %d bytes of message "+
			"0x%02x", length, status)
	}
	return &OpaqueMessage{Status: status, Data: data}, nil
}

// Reads the message following a delta-time. Requires a running status byte,
// which must be 0 at the start of a track and is updated as needed.
func ReadMessage(r io.ByteReader, runningStatus *uint8) (Message, error) {
	firstByte, e := r.ReadByte()
	if e != nil {
		if e == io.EOF {
			e = io.ErrUnexpectedEOF
		}
		return nil, errors.Wrap(e, "failed reading start of message")
	}
	switch firstByte {
	case MetaPrefix:
		*runningStatus = 0
		return parseMetaEvent(r)
	case SystemClock, SystemStart, SystemContinue, SystemStop:
		return SystemMessage(firstByte), nil
	}
	if (firstByte & 0xf0) == 0xf0 {
		*runningStatus = 0
		return parseOpaqueMessage(r, firstByte)
	}
	return parseChannelMessage(r, firstByte, runningStatus)
}

// Reads a delta-time and the message following it. Returns io.EOF, unwrapped,
// only if r was already exhausted.
func ReadEvent(r io.ByteReader, runningStatus *uint8) (*Event, error) {
	delta, e := ReadVariableInt(r)
	if e != nil {
		if e == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrap(e, "failed reading delta-time")
	}
	m, e := ReadMessage(r, runningStatus)
	if e != nil {
		return nil, e
	}
	return &Event{DeltaTime: delta, Message: m}, nil
}

// Decodes a single event from the start of data, with no running status.
// Returns the event and the number of bytes it used.
func DecodeEvent(data []byte) (*Event, int, error) {
	r := bytes.NewReader(data)
	runningStatus := uint8(0)
	event, e := ReadEvent(r, &runningStatus)
	if e != nil {
		if e == io.EOF {
			e = io.ErrUnexpectedEOF
		}
		return nil, 0, e
	}
	return event, len(data) - r.Len(), nil
}
