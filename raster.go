package pianoroll

// This file contains the dense piano-roll grid, the velocity mapping used to
// fill it, and the rasterizer that projects a file's notes onto it.

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Converts between integer velocities and the real values stored in a piano
// roll. ToByte may return anything; callers clamp its result to [0, 255].
type VelocityMap struct {
	FromByte func(v uint8) float64
	ToByte   func(x float64) int
}

// Returns a map taking velocity 0 to low and velocity 255 to high, rounding
// to the nearest velocity on the way back. Values past either end, including
// infinities, go to 0 or 255.
func LinearVelocity(low, high float64) VelocityMap {
	scale := (high - low) / 255.0
	return VelocityMap{
		FromByte: func(v uint8) float64 {
			return low + float64(v)*scale
		},
		ToByte: func(x float64) int {
			r := math.Round((x - low) / scale)
			if r >= 255 {
				return 255
			}
			if !(r > 0) {
				return 0
			}
			return int(r)
		},
	}
}

// Maps velocities 0 through 255 onto [-1, 1].
var DefaultVelocity = LinearVelocity(-1, 1)

// Converts a cell value to a velocity in [0, 255]. NaN is treated as silence.
func (m VelocityMap) Quantize(x float64) uint8 {
	if math.IsNaN(x) {
		return 0
	}
	v := m.ToByte(x)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// A dense grid of Rows x Cols values, stored row by row.
type Roll struct {
	Rows int
	Cols int
	Data []float64
}

// Returns a grid with every cell set to fill.
func NewRoll(rows, cols int, fill float64) *Roll {
	toReturn := &Roll{
		Rows: rows,
		Cols: cols,
		Data: make([]float64, rows*cols),
	}
	for i := range toReturn.Data {
		toReturn.Data[i] = fill
	}
	return toReturn
}

func (r *Roll) At(row, col int) float64 {
	return r.Data[row*r.Cols+col]
}

func (r *Roll) Set(row, col int, v float64) {
	r.Data[row*r.Cols+col] = v
}

// Returns one row of the grid. The slice aliases the grid's storage.
func (r *Roll) Row(row int) []float64 {
	return r.Data[row*r.Cols : (row+1)*r.Cols]
}

// Returns a copy of the columns [start, start+count).
func (r *Roll) Columns(start, count int) (*Roll, error) {
	if (start < 0) || (count < 0) || ((start + count) > r.Cols) {
		return nil, errors.Errorf("columns [%d, %d) out of range for a roll "+
			"with %d columns", start, start+count, r.Cols)
	}
	toReturn := &Roll{
		Rows: r.Rows,
		Cols: count,
		Data: make([]float64, r.Rows*count),
	}
	for row := 0; row < r.Rows; row++ {
		copy(toReturn.Row(row), r.Data[row*r.Cols+start:])
	}
	return toReturn, nil
}

func (r *Roll) String() string {
	return fmt.Sprintf("%dx%d piano roll", r.Rows, r.Cols)
}

// Fills a roll from the analyzed notes of a file. Rows are laid out by
// a.Channels, columns by a.Grid. A note sounds from the column of its
// note-on up to, but not including, the column of its note-off. A second
// note-on before the note-off replaces the first.
func Rasterize(a *Analysis, velocity VelocityMap) *Roll {
	silence := velocity.FromByte(0)
	toReturn := NewRoll(a.Channels.Rows(), a.Grid.Range(), silence)
	for key, events := range a.Notes {
		row := a.Channels.Row(key.Channel, key.Note)
		open := false
		var start uint64
		var level uint8
		for _, event := range events {
			if event.On() {
				open = true
				start = event.Tick
				level = event.Message.Data2
				continue
			}
			if !open {
				logrus.Debugf("Note-off for %s on channel %d at tick %d "+
					"without a note-on", NoteName(key.Note), key.Channel,
					event.Tick)
				continue
			}
			value := velocity.FromByte(level)
			end := a.Grid.Column(event.Tick)
			for col := a.Grid.Column(start); col < end; col++ {
				toReturn.Set(row, col, value)
			}
			open = false
		}
		if open {
			logrus.Warnf("Missing note-off for %s on channel %d (note-on at "+
				"tick %d)", NoteName(key.Note), key.Channel, start)
		}
	}
	return toReturn
}

// A parsed file together with its piano roll and the layout needed to
// compose a new roll back into a file.
type Source struct {
	Name     string
	File     *File
	Roll     *Roll
	Channels ChannelMap
	Grid     TimeGrid
	Key      string
}

// Analyzes and rasterizes a parsed file.
func NewSource(name string, f *File, velocity VelocityMap) (*Source, error) {
	a, e := Analyze(f)
	if e != nil {
		return nil, errors.Wrapf(e, "failed analyzing %s", name)
	}
	return &Source{
		Name:     name,
		File:     f,
		Roll:     Rasterize(a, velocity),
		Channels: a.Channels,
		Grid:     a.Grid,
		Key:      a.Key,
	}, nil
}

// Reads, analyzes and rasterizes the SMF file at path.
func LoadSource(path string, velocity VelocityMap) (*Source, error) {
	f, e := ReadFile(path)
	if e != nil {
		return nil, e
	}
	return NewSource(path, f, velocity)
}
