package ordna

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Action is what happens to a file once its destination is known.
type Action string

const (
	ActionCopy   Action = "copy"
	ActionMove   Action = "move"
	ActionReport Action = "report-only"
)

// Config holds configuration for one organizing run.
type Config struct {
	SrcDir        string
	DstDir        string
	CacheFile     string
	ReportFile    string
	GeocoderURL   string
	UserAgent     string
	Move          bool
	DryRun        bool
	ReportOnly    bool
	TwoLevel      bool
	NoHEIF        bool
	PreserveCtime bool
}

// Validate fills in defaults and rejects configurations the run cannot
// start from.
func (c *Config) Validate() error {
	if c.SrcDir == "" {
		return fmt.Errorf("source directory is required")
	}

	f, err := os.Open(c.SrcDir)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	fi, err := f.Stat()
	f.Close()
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("source %s is not a directory", c.SrcDir)
	}

	if c.ReportOnly && c.DryRun {
		return fmt.Errorf("cannot combine report-only with dry-run")
	}

	if c.DstDir == "" {
		c.DstDir = "organized"
	}
	if c.CacheFile == "" {
		c.CacheFile = filepath.Join(c.DstDir, ".geocode_cache.json")
	}
	if c.ReportFile == "" {
		c.ReportFile = filepath.Join(c.DstDir, "report.csv")
	}

	return nil
}

// Action returns the transfer action this configuration selects.
// Report-only wins over move.
func (c *Config) Action() Action {
	switch {
	case c.ReportOnly:
		return ActionReport
	case c.Move:
		return ActionMove
	default:
		return ActionCopy
	}
}

// Coordinate is a GPS position in decimal degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

// FileRecord is one candidate file and its resolved capture metadata.
// Coord stays nil when the file carries no usable GPS data.
type FileRecord struct {
	Path  string
	Mtime time.Time
	Taken time.Time
	Coord *Coordinate
}

// PlacementDecision is the planned outcome for one file. Err records a
// transfer failure after execution; planning itself never fails.
type PlacementDecision struct {
	Source  string
	Dest    string
	Folder  string
	Country string
	Taken   time.Time
	Coord   *Coordinate
	Action  Action
	Err     error
}

// Result summarizes one run.
type Result struct {
	Decisions   []*PlacementDecision
	Transferred int
	Failed      int
}
