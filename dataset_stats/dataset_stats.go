// This defines a command-line utility for surveying a directory of MIDI files
// before training: which filter keys they fall under, which ones can't be
// used, and how many training and test points the chosen options produce.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/yalue/pianoroll"
)

// Keeps track of the files seen under each filter key.
type keyStats struct {
	files   int
	columns int
}

type census struct {
	byKey   map[string]*keyStats
	skipped int
}

// Adds the named file to the census. Returns an error if the file can't be
// used.
func (c *census) addFile(name string, velocity pianoroll.VelocityMap) error {
	s, e := pianoroll.LoadSource(name, velocity)
	if e != nil {
		c.skipped++
		return e
	}
	stats := c.byKey[s.Key]
	if stats == nil {
		stats = &keyStats{}
		c.byKey[s.Key] = stats
	}
	stats.files++
	stats.columns += s.Roll.Cols
	return nil
}

func (c *census) printInfo() {
	keys := make([]string, 0, len(c.byKey))
	for k := range c.byKey {
		keys = append(keys, k)
	}
	// Most common first.
	sort.Slice(keys, func(i, j int) bool {
		a, b := c.byKey[keys[i]], c.byKey[keys[j]]
		if a.files != b.files {
			return a.files > b.files
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		fmt.Printf("Filter key %s: %d files, %d columns.\n", k,
			c.byKey[k].files, c.byKey[k].columns)
	}
	fmt.Printf("Skipped %d files.\n", c.skipped)
}

func run() int {
	var baseDir, optionsFile, filter string
	var verbose bool
	pflag.StringVar(&baseDir, "dir", "", "The directory to scan for .mid "+
		"files")
	pflag.StringVar(&optionsFile, "options", "", "A JSON options file.")
	pflag.StringVar(&filter, "filter", "", "If set, build a dataset from "+
		"the files with this filter key and report its size.")
	pflag.BoolVar(&verbose, "verbose", false, "Enable debug logging.")
	pflag.Parse()
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if baseDir == "" {
		logrus.Error("A base directory must be specified. Run with -help " +
			"for usage.")
		return 1
	}
	opts := pianoroll.DefaultOptions()
	if optionsFile != "" {
		var e error
		opts, e = pianoroll.LoadOptions(optionsFile)
		if e != nil {
			logrus.Errorf("Couldn't load options: %s", e)
			return 1
		}
	}
	if filter != "" {
		opts.Filter = filter
	}
	filenames, e := filepath.Glob(filepath.Join(baseDir, "*.mid"))
	if e != nil {
		logrus.Errorf("Failed looking up MIDI files in dir %s: %s", baseDir, e)
		return 1
	}
	if len(filenames) == 0 {
		logrus.Errorf("Didn't find any MIDI (.mid) files in dir %s.", baseDir)
		return 1
	}
	c := &census{byKey: make(map[string]*keyStats)}
	velocity := opts.Velocity()
	for i, name := range filenames {
		logrus.Debugf("Scanning file %d/%d: %s", i+1, len(filenames), name)
		if e = c.addFile(name, velocity); e != nil {
			logrus.WithField("file", name).Warnf("Can't use file: %s", e)
		}
	}
	c.printInfo()
	if opts.Filter == "" {
		return 0
	}
	d, e := pianoroll.LoadDataset(filenames, opts)
	if e != nil {
		logrus.Errorf("Couldn't build a dataset: %s", e)
		return 1
	}
	fmt.Printf("Dataset for %s: %d sources, %d points, %d train, %d test.\n",
		opts.Filter, len(d.Sources), d.Size(), d.Train.Size(), d.Test.Size())
	return 0
}

func main() {
	os.Exit(run())
}
