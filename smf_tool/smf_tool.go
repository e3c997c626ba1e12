// This defines a command-line utility for viewing standard MIDI files (SMF,
// usually with a ".mid" extension) and their piano rolls, and for checking
// that they survive a round trip through the library.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/yalue/pianoroll"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	loudStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	quietStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// Renders the rows of the roll that contain at least one note, squeezing the
// columns down to at most width characters.
func renderPreview(s *pianoroll.Source, velocity pianoroll.VelocityMap,
	width int) string {
	roll := s.Roll
	step := 1
	if roll.Cols > width {
		step = (roll.Cols + width - 1) / width
	}
	var out strings.Builder
	out.WriteString(headerStyle.Render(fmt.Sprintf("%s: %s, %s", s.Name, roll,
		s.Grid)))
	out.WriteString("\n")
	for row := roll.Rows - 1; row >= 0; row-- {
		values := roll.Row(row)
		var line strings.Builder
		sounding := false
		for col := 0; col < roll.Cols; col += step {
			loudest := uint8(0)
			for c := col; (c < col+step) && (c < roll.Cols); c++ {
				if v := velocity.Quantize(values[c]); v > loudest {
					loudest = v
				}
			}
			switch {
			case loudest == 0:
				line.WriteString(" ")
			case loudest < 64:
				sounding = true
				line.WriteString(quietStyle.Render("-"))
			default:
				sounding = true
				line.WriteString(loudStyle.Render("#"))
			}
		}
		if !sounding {
			continue
		}
		block := row / pianoroll.NotesPerChannel
		note := uint8(row % pianoroll.NotesPerChannel)
		label := fmt.Sprintf("ch%-2d %-4s", s.Channels.Order[block],
			pianoroll.NoteName(note))
		out.WriteString(labelStyle.Render(label) + "|" + line.String() + "\n")
	}
	return out.String()
}

func dumpEvents(f *pianoroll.File) {
	for i, t := range f.Tracks {
		fmt.Printf("Track %d (%d events, %d bytes):\n", i, len(t.Events),
			t.Size)
		for j, event := range t.Events {
			fmt.Printf("  %d. %s\n", j, event)
		}
	}
}

func run() int {
	var filename, outputFile, composeTo, optionsFile string
	var dumpEventsFlag, check, analyze, preview, verbose bool
	var threshold, width int
	pflag.StringVar(&filename, "input_file", "", "The .mid file to open.")
	pflag.BoolVar(&dumpEventsFlag, "dump_events", false, "If set, print a "+
		"list of all events in the file to stdout.")
	pflag.StringVar(&outputFile, "output_file", "", "If set, write the "+
		"parsed file back out to this path.")
	pflag.BoolVar(&check, "check", false, "If set, verify that re-encoding "+
		"the file reproduces its bytes, and compare against gomidi.")
	pflag.BoolVar(&analyze, "analyze", false, "If set, print the file's "+
		"time grid, channels and filter key.")
	pflag.BoolVar(&preview, "preview", false, "If set, draw the file's piano "+
		"roll.")
	pflag.IntVar(&width, "width", 100, "The maximum preview width.")
	pflag.StringVar(&composeTo, "compose_to", "", "If set, rasterize the "+
		"file, compose the roll back into a file, and write it here.")
	pflag.StringVar(&optionsFile, "options", "", "A JSON options file.")
	pflag.IntVar(&threshold, "threshold", -1, "Overrides the debounce "+
		"threshold used by -compose_to.")
	pflag.BoolVar(&verbose, "verbose", false, "Enable debug logging.")
	pflag.Parse()
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if filename == "" {
		logrus.Error("Invalid arguments. Run with -help for more information.")
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
	if threshold >= 0 {
		opts.Threshold = threshold
	}
	smf, e := pianoroll.ReadFile(filename)
	if e != nil {
		logrus.Error(e)
		return 1
	}
	fmt.Printf("Parsed %s OK. Contains %d tracks. Time division: %s.\n",
		filename, len(smf.Tracks), smf.Division)
	if dumpEventsFlag {
		dumpEvents(smf)
	}
	if check {
		original, e := os.ReadFile(filename)
		if e != nil {
			logrus.Error(e)
			return 1
		}
		written, e := smf.Bytes()
		if e != nil {
			logrus.Errorf("Couldn't re-encode %s: %s", filename, e)
			return 1
		}
		if string(written) != string(original) {
			logrus.Errorf("Re-encoded file differs: %d bytes vs %d",
				len(written), len(original))
			return 1
		}
		summary, e := pianoroll.CrossCheck(written)
		if e != nil {
			logrus.Errorf("Cross-check failed: %s", e)
			return 1
		}
		fmt.Printf("Round trip OK. gomidi agrees on %d tracks.\n",
			len(summary))
	}
	if outputFile != "" {
		if e = smf.WriteFile(outputFile); e != nil {
			logrus.Error(e)
			return 1
		}
		fmt.Printf("Wrote %s.\n", outputFile)
	}
	if !analyze && !preview && (composeTo == "") {
		return 0
	}
	source, e := pianoroll.NewSource(filename, smf, opts.Velocity())
	if e != nil {
		logrus.Error(e)
		return 1
	}
	if analyze {
		fmt.Printf("Time grid: %s\n", source.Grid)
		fmt.Printf("Channels: %v\n", source.Channels.Order)
		fmt.Printf("Filter key: %s\n", source.Key)
		fmt.Printf("Roll: %s\n", source.Roll)
	}
	if preview {
		fmt.Print(renderPreview(source, opts.Velocity(), width))
	}
	if composeTo != "" {
		composed, e := pianoroll.Compose(source.Roll, source,
			opts.ComposeOptions())
		if e != nil {
			logrus.Errorf("Couldn't compose %s: %s", filename, e)
			return 1
		}
		if e = composed.WriteFile(composeTo); e != nil {
			logrus.Error(e)
			return 1
		}
		fmt.Printf("Wrote composed file %s.\n", composeTo)
	}
	return 0
}

func main() {
	os.Exit(run())
}
