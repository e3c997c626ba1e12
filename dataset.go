package pianoroll

// This file contains the code that slices piano rolls into (input, target)
// windows and splits them into training and test sets.

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// A range of piano-roll columns.
type Window struct {
	Start  int
	Length int
}

// An input window and the target window that follows it, both in the roll of
// Dataset.Sources[Source].
type Point struct {
	Source int
	X      Window
	Y      Window
}

// Returns one point for every start column at which both windows fit in the
// source's roll.
func ExtractPoints(sourceIndex int, s *Source, opts *Options) []Point {
	width := s.Roll.Cols
	span := opts.InputLength + opts.TargetLength
	if span > width {
		return nil
	}
	inputLength := opts.InputLength
	if opts.Recurrent {
		inputLength = span - 1
	}
	toReturn := make([]Point, 0, width-span+1)
	for start := 0; start+span <= width; start++ {
		toReturn = append(toReturn, Point{
			Source: sourceIndex,
			X:      Window{Start: start, Length: inputLength},
			Y: Window{
				Start:  start + opts.InputLength,
				Length: opts.TargetLength,
			},
		})
	}
	return toReturn
}

// A contiguous run of a dataset's points. Views don't copy the points.
type View struct {
	dataset *Dataset
	offset  int
	length  int
}

// Returns the number of points in the view.
func (v View) Size() int {
	return v.length
}

// Returns the i'th point in the view. The second return value is false if i
// is out of range.
func (v View) At(i int) (Point, bool) {
	if (i < 0) || (i >= v.length) {
		return Point{}, false
	}
	return v.dataset.Points[v.offset+i], true
}

// Returns copies of the input and target columns of the i'th point. The
// third return value is false if i is out of range.
func (v View) Pair(i int) (*Roll, *Roll, bool) {
	p, ok := v.At(i)
	if !ok {
		return nil, nil, false
	}
	roll := v.dataset.Sources[p.Source].Roll
	x, e := roll.Columns(p.X.Start, p.X.Length)
	if e != nil {
		return nil, nil, false
	}
	y, e := roll.Columns(p.Y.Start, p.Y.Length)
	if e != nil {
		return nil, nil, false
	}
	return x, y, true
}

// All points taken from a set of sources, shuffled, and split into training
// and test views.
type Dataset struct {
	Sources []*Source
	Points  []Point
	Train   View
	Test    View
}

// Returns the total number of points.
func (d *Dataset) Size() int {
	return len(d.Points)
}

// Extracts, shuffles and splits the points of every source. The shuffle is
// seeded from opts, so it's repeatable.
func NewDataset(sources []*Source, opts *Options) (*Dataset, error) {
	if e := opts.Validate(); e != nil {
		return nil, e
	}
	toReturn := &Dataset{Sources: sources}
	for i, s := range sources {
		toReturn.Points = append(toReturn.Points, ExtractPoints(i, s, opts)...)
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	rng.Shuffle(len(toReturn.Points), func(i, j int) {
		toReturn.Points[i], toReturn.Points[j] = toReturn.Points[j],
			toReturn.Points[i]
	})
	total := len(toReturn.Points)
	trainSize := int(math.Ceil(float64(total) * opts.TrainFraction))
	if trainSize > total {
		trainSize = total
	}
	toReturn.Train = View{dataset: toReturn, offset: 0, length: trainSize}
	toReturn.Test = View{
		dataset: toReturn,
		offset:  trainSize,
		length:  total - trainSize,
	}
	return toReturn, nil
}

// Loads a source from each path, skipping (and logging) files that can't be
// parsed or analyzed, and files whose filter key doesn't match opts.Filter.
func LoadSources(paths []string, opts *Options) []*Source {
	velocity := opts.Velocity()
	var toReturn []*Source
	for _, path := range paths {
		log := logrus.WithField("file", path)
		s, e := LoadSource(path, velocity)
		if e != nil {
			log.Warnf("Skipping file: %s", e)
			continue
		}
		if (opts.Filter != "") && (s.Key != opts.Filter) {
			log.Debugf("Skipping file with filter key %s", s.Key)
			continue
		}
		log.Debugf("Loaded %s, filter key %s", s.Roll, s.Key)
		toReturn = append(toReturn, s)
	}
	return toReturn
}

// Loads every usable file in paths and builds a dataset from them.
func LoadDataset(paths []string, opts *Options) (*Dataset, error) {
	if e := opts.Validate(); e != nil {
		return nil, e
	}
	sources := LoadSources(paths, opts)
	if len(sources) == 0 {
		return nil, errors.Errorf("none of the %d files could be used",
			len(paths))
	}
	return NewDataset(sources, opts)
}
