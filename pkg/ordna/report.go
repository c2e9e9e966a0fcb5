package ordna

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"k8s.io/klog/v2"
)

// dryRunPreviewLimit caps how many planned placements a dry run prints.
const dryRunPreviewLimit = 200

var reportHeader = []string{
	"source", "taken", "latitude", "longitude",
	"country", "folder", "destination", "action", "error",
}

const takenFormat = "2006-01-02T15:04:05"

// WriteReport writes one CSV row per decision, in processing order.
func WriteReport(path string, ds []*PlacementDecision) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}

	w := csv.NewWriter(f)
	w.Write(reportHeader)
	for _, d := range ds {
		w.Write(reportRow(d))
	}
	w.Flush()

	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func reportRow(d *PlacementDecision) []string {
	lat, lon := "", ""
	if d.Coord != nil {
		lat = strconv.FormatFloat(d.Coord.Lat, 'f', -1, 64)
		lon = strconv.FormatFloat(d.Coord.Lon, 'f', -1, 64)
	}

	errText := ""
	if d.Err != nil {
		errText = d.Err.Error()
	}

	return []string{
		d.Source, d.Taken.Format(takenFormat), lat, lon,
		d.Country, d.Folder, d.Dest, string(d.Action), errText,
	}
}

// PrintPreview logs the first planned placements of a dry run.
func PrintPreview(ds []*PlacementDecision) {
	n := min(len(ds), dryRunPreviewLimit)
	for _, d := range ds[:n] {
		klog.Infof("%s -> %s", d.Source, d.Dest)
	}
	if len(ds) > n {
		klog.Infof("... and %d more", len(ds)-n)
	}
	klog.Infof("dry run: no files copied or moved")
}
