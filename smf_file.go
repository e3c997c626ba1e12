package pianoroll

// This file contains code for reading and writing .mid SMF-format files.

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

var (
	fileMagic  = [4]byte{'M', 'T', 'h', 'd'}
	trackMagic = [4]byte{'M', 'T', 'r', 'k'}
)

// This corresponds to the division field of the MThd chunk.
type TimeDivision uint16

// Returns the number of ticks per quarter note, or 0 if the division is an
// SMPTE time code instead.
func (d TimeDivision) TicksPerQuarterNote() uint16 {
	if (d & 0x8000) != 0 {
		return 0
	}
	return uint16(d)
}

// Returns the frames per second and ticks per frame, or 0, 0 if the division
// gives ticks per quarter note instead.
func (d TimeDivision) SMPTETimeCode() (uint8, uint8) {
	if (d & 0x8000) == 0 {
		return 0, 0
	}
	// The frame rate is stored as a negative 8-bit number.
	return uint8(-int8(d >> 8)), uint8(d & 0xff)
}

func (d TimeDivision) String() string {
	if ticks := d.TicksPerQuarterNote(); ticks != 0 {
		return fmt.Sprintf("%d ticks per quarter note", ticks)
	}
	fps, ticksPerFrame := d.SMPTETimeCode()
	if fps == 0 {
		return fmt.Sprintf("invalid division 0x%04x", uint16(d))
	}
	return fmt.Sprintf("%d frames per second, %d ticks per frame", fps,
		ticksPerFrame)
}

// The fixed-size MThd chunk, in file order.
type fileHeader struct {
	ChunkType  [4]byte
	ChunkSize  uint32
	Format     uint16
	TrackCount uint16
	Division   TimeDivision
}

// An ordered list of events. Size is the byte length of the encoded events,
// not counting the 8-byte track header. It is set when the track is read, and
// refreshed by Recompute or when the track is written.
type Track struct {
	Size   uint32
	Events []*Event
}

// Returns a copy of the track with its own event slice. The events themselves
// are shared; they're never modified in place.
func (t *Track) Clone() *Track {
	return &Track{
		Size:   t.Size,
		Events: append([]*Event(nil), t.Events...),
	}
}

// Returns the encoded events, without the track header.
func (t *Track) Encode() ([]byte, error) {
	var content bytes.Buffer
	runningStatus := uint8(0)
	for i, event := range t.Events {
		data, e := event.Encode(&runningStatus)
		if e != nil {
			return nil, errors.Wrapf(e, "couldn't encode event %d", i)
		}
		content.Write(data)
	}
	return content.Bytes(), nil
}

// Sets Size to the length of the track's encoded events.
func (t *Track) Recompute() error {
	content, e := t.Encode()
	if e != nil {
		return e
	}
	if uint64(len(content)) > 0xffffffff {
		return errors.Errorf("track too large: %d bytes", len(content))
	}
	t.Size = uint32(len(content))
	return nil
}

// Writes the track header, the recomputed size, and every event. Size is
// updated to match what was written.
func (t *Track) WriteTo(w io.Writer) (int64, error) {
	content, e := t.Encode()
	if e != nil {
		return 0, e
	}
	t.Size = uint32(len(content))
	header := make([]byte, 8)
	copy(header, trackMagic[:])
	binary.BigEndian.PutUint32(header[4:], t.Size)
	n, e := w.Write(header)
	if e != nil {
		return int64(n), errors.Wrap(e, "failed writing track header")
	}
	m, e := w.Write(content)
	if e != nil {
		return int64(n + m), errors.Wrap(e, "failed writing track content")
	}
	return int64(n + m), nil
}

// Wraps a reader, counting the bytes taken from it.
type countingReader struct {
	r     io.ByteReader
	count uint32
}

func (c *countingReader) ReadByte() (byte, error) {
	b, e := c.r.ReadByte()
	if e == nil {
		c.count++
	}
	return b, e
}

// Reads a track, starting at its "MTrk" marker. Returns io.EOF, unwrapped, if
// r is exhausted before the first byte of the marker. Events are read until
// the declared size is used up; an event that ends past the declared size is
// reported as a *TrackSizeMismatchError.
func ReadTrack(r io.ByteReader) (*Track, error) {
	var marker [4]byte
	for i := range marker {
		b, e := r.ReadByte()
		if e != nil {
			if (i == 0) && (e == io.EOF) {
				return nil, io.EOF
			}
			return nil, errors.Wrapf(ErrBadTrackHeader, "input ended inside "+
				"the track marker: %s", e)
		}
		marker[i] = b
	}
	if marker != trackMagic {
		return nil, errors.Wrapf(ErrBadTrackHeader, "got %q", marker[:])
	}
	sizeBytes, e := readBytes(r, 4)
	if e != nil {
		return nil, errors.Wrap(e, "failed reading track size")
	}
	size := binary.BigEndian.Uint32(sizeBytes)
	// Assume roughly 3 bytes per event, but don't trust the size field with
	// a large allocation.
	toReturn := &Track{
		Size:   size,
		Events: make([]*Event, 0, min(size/3, maxPreallocation)),
	}
	counter := &countingReader{r: r}
	runningStatus := uint8(0)
	for counter.count < size {
		event, e := ReadEvent(counter, &runningStatus)
		if e != nil {
			if e == io.EOF {
				e = io.ErrUnexpectedEOF
			}
			return nil, errors.Wrapf(e, "failed reading event %d",
				len(toReturn.Events))
		}
		if counter.count > size {
			return nil, errors.Wrapf(&TrackSizeMismatchError{
				Expected: size,
				Actual:   counter.count,
			}, "event %d overran the track", len(toReturn.Events))
		}
		toReturn.Events = append(toReturn.Events, event)
	}
	return toReturn, nil
}

// An entire MIDI file: the header fields and the tracks, in file order.
type File struct {
	// 0 for a single track, 1 for simultaneous tracks, 2 for independent
	// sequences.
	Format uint16
	// The track count declared in the header. Reading doesn't rely on it;
	// tracks are read until the input runs out.
	NumTracks uint16
	Division  TimeDivision
	Tracks    []*Track
}

// Returns a deep enough copy of f that its tracks can be rebuilt without
// affecting f.
func (f *File) Clone() *File {
	toReturn := *f
	toReturn.Tracks = make([]*Track, len(f.Tracks))
	for i, t := range f.Tracks {
		toReturn.Tracks[i] = t.Clone()
	}
	return &toReturn
}

// Parses an SMF file from r, reading tracks until r is exhausted.
func ParseFile(r io.Reader) (*File, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	var header fileHeader
	e := binary.Read(br, binary.BigEndian, &header)
	if e != nil {
		return nil, errors.Wrapf(ErrHeaderMismatch, "failed reading header: "+
			"%s", e)
	}
	if header.ChunkType != fileMagic {
		return nil, errors.Wrapf(ErrHeaderMismatch, "bad magic %q",
			header.ChunkType[:])
	}
	if header.ChunkSize != 6 {
		return nil, errors.Wrapf(ErrHeaderMismatch, "header length %d, "+
			"expected 6", header.ChunkSize)
	}
	toReturn := &File{
		Format:    header.Format,
		NumTracks: header.TrackCount,
		Division:  header.Division,
		Tracks:    make([]*Track, 0, header.TrackCount),
	}
	for {
		track, e := ReadTrack(br)
		if e == io.EOF {
			break
		}
		if e != nil {
			return nil, errors.Wrapf(e, "failed reading track %d",
				len(toReturn.Tracks))
		}
		toReturn.Tracks = append(toReturn.Tracks, track)
	}
	return toReturn, nil
}

// Parses the SMF file at the given path. The file is closed before returning,
// whether or not parsing succeeded.
func ReadFile(path string) (*File, error) {
	f, e := os.Open(path)
	if e != nil {
		return nil, errors.Wrapf(e, "failed opening %s", path)
	}
	defer f.Close()
	toReturn, e := ParseFile(f)
	if e != nil {
		return nil, errors.Wrapf(e, "failed parsing %s", path)
	}
	return toReturn, nil
}

// Writes the header and every track. Each track's size is recomputed.
func (f *File) WriteTo(w io.Writer) (int64, error) {
	header := fileHeader{
		ChunkType:  fileMagic,
		ChunkSize:  6,
		Format:     f.Format,
		TrackCount: f.NumTracks,
		Division:   f.Division,
	}
	e := binary.Write(w, binary.BigEndian, &header)
	if e != nil {
		return 0, errors.Wrap(e, "failed writing header")
	}
	written := int64(binary.Size(&header))
	for i, t := range f.Tracks {
		n, e := t.WriteTo(w)
		written += n
		if e != nil {
			return written, errors.Wrapf(e, "failed writing track %d", i)
		}
	}
	return written, nil
}

// Returns the file as it would be written.
func (f *File) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, e := f.WriteTo(&buf); e != nil {
		return nil, e
	}
	return buf.Bytes(), nil
}

// Writes the file to the given path, replacing anything already there.
func (f *File) WriteFile(path string) error {
	data, e := f.Bytes()
	if e != nil {
		return e
	}
	return errors.Wrapf(os.WriteFile(path, data, 0644), "failed writing %s",
		path)
}
