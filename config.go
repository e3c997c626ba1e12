package pianoroll

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Options controls how files are turned into a dataset, and how rolls are
// composed back into files. It can be saved to and loaded from a JSON file.
type Options struct {
	// The number of columns in each input window.
	InputLength int `json:"inputLength"`
	// The number of columns in each target window.
	TargetLength int `json:"targetLength"`
	// The share of points, rounded up, that go to the training set.
	TrainFraction float64 `json:"trainFraction"`
	// If set, each input window runs up to one column before the end of its
	// target, for models unrolled over time.
	Recurrent bool `json:"recurrent,omitempty"`
	// Only files with this filter key are used. Empty accepts every file.
	// Keys have the form "4/4-8-24-3-96": the time signature with its
	// notated denominator (4, not the stored power of two 2), 32nd notes
	// per quarter, MIDI clocks per click, the number of channels, and the
	// tick GCD.
	Filter string `json:"filter,omitempty"`
	// Seeds the shuffle, so the same files always give the same split.
	Seed int64 `json:"seed"`
	// The debounce threshold used when composing.
	Threshold int `json:"debounceThreshold"`
	// The piano-roll values for velocity 0 and velocity 255.
	VelocityLow  float64 `json:"velocityLow"`
	VelocityHigh float64 `json:"velocityHigh"`
}

// Returns the options used when no configuration file exists.
func DefaultOptions() *Options {
	return &Options{
		InputLength:   16,
		TargetLength:  1,
		TrainFraction: 0.9,
		Seed:          1,
		VelocityLow:   -1,
		VelocityHigh:  1,
	}
}

// Returns an error if the options can't be used to build a dataset.
func (o *Options) Validate() error {
	if o.InputLength <= 0 {
		return errors.Errorf("input length must be positive, got %d",
			o.InputLength)
	}
	if o.TargetLength <= 0 {
		return errors.Errorf("target length must be positive, got %d",
			o.TargetLength)
	}
	if (o.TrainFraction <= 0) || (o.TrainFraction > 1) {
		return errors.Errorf("train fraction must be in (0, 1], got %f",
			o.TrainFraction)
	}
	if o.Threshold < 0 {
		return errors.Errorf("debounce threshold can't be negative: %d",
			o.Threshold)
	}
	if o.VelocityLow == o.VelocityHigh {
		return errors.Errorf("velocity range [%f, %f] is empty",
			o.VelocityLow, o.VelocityHigh)
	}
	return nil
}

// Returns the velocity map described by the options.
func (o *Options) Velocity() VelocityMap {
	return LinearVelocity(o.VelocityLow, o.VelocityHigh)
}

// Returns the composer settings described by the options.
func (o *Options) ComposeOptions() ComposeOptions {
	return ComposeOptions{
		Velocity:  o.Velocity(),
		Threshold: o.Threshold,
	}
}

// Reads options from a JSON file. Returns the defaults if the file doesn't
// exist. Fields missing from the file keep their default values.
func LoadOptions(path string) (*Options, error) {
	toReturn := DefaultOptions()
	data, e := os.ReadFile(path)
	if e != nil {
		if os.IsNotExist(e) {
			return toReturn, nil
		}
		return nil, errors.Wrapf(e, "failed reading %s", path)
	}
	if e = json.Unmarshal(data, toReturn); e != nil {
		return nil, errors.Wrapf(e, "failed parsing %s", path)
	}
	if e = toReturn.Validate(); e != nil {
		return nil, errors.Wrapf(e, "invalid options in %s", path)
	}
	return toReturn, nil
}

// Writes the options to a JSON file.
func (o *Options) Save(path string) error {
	data, e := json.MarshalIndent(o, "", "  ")
	if e != nil {
		return errors.Wrap(e, "failed encoding options")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0644), "failed writing %s",
		path)
}
