package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	_ "github.com/joho/godotenv/autoload"
	"github.com/karrick/godirwalk"
	"k8s.io/klog/v2"

	"github.com/tstromberg/ordna/pkg/ordna"
)

var (
	srcDir        = flag.String("src", "", "Source directory to scan")
	dstDir        = flag.String("dst", "organized", "Destination root directory")
	moveFiles     = flag.Bool("move", false, "Move files instead of copying")
	dryRun        = flag.Bool("dry-run", false, "Plan only; print planned placements without touching files")
	reportOnly    = flag.Bool("report-only", false, "Plan only; write a CSV report of planned placements")
	reportFile    = flag.String("report-file", "", "CSV report path (default: <dst>/report.csv)")
	twoLevel      = flag.Bool("two-level", false, "Use Year-Month folders and skip the country level")
	noHEIF        = flag.Bool("no-heif", false, "Skip exiftool and use the raw EXIF decoder")
	preserveCtime = flag.Bool("preserve-ctime", false, "Attempt to preserve creation time (Windows only)")
	cacheFile     = flag.String("cache-file", "", "Geocode cache path (default: <dst>/.geocode_cache.json)")
	watchFlag     = flag.Bool("watch", false, "Watch src for changes and re-run")
	verbose       = flag.Bool("verbose", false, "Log per-file detail")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	if *verbose {
		flag.Set("v", "1")
	}

	if *srcDir == "" {
		klog.Exitf("--src is a required flag")
	}

	c := &ordna.Config{
		SrcDir:        *srcDir,
		DstDir:        *dstDir,
		CacheFile:     *cacheFile,
		ReportFile:    *reportFile,
		GeocoderURL:   os.Getenv("ORDNA_GEOCODER_URL"),
		UserAgent:     os.Getenv("ORDNA_USER_AGENT"),
		Move:          *moveFiles,
		DryRun:        *dryRun,
		ReportOnly:    *reportOnly,
		TwoLevel:      *twoLevel,
		NoHEIF:        *noHEIF,
		PreserveCtime: *preserveCtime,
	}

	if err := c.Validate(); err != nil {
		klog.Exitf("configuration: %v", err)
	}

	ctx := context.Background()
	if _, err := ordna.Organize(ctx, c); err != nil {
		klog.Exitf("organize failed: %v", err)
	}

	if *watchFlag {
		if err := watch(ctx, c); err != nil {
			klog.Exitf("watch failed: %v", err)
		}
	}
}

// watch re-runs the pipeline whenever the source tree changes.
func watch(ctx context.Context, c *ordna.Config) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("new watcher: %w", err)
	}
	defer w.Close()

	if err := addWatches(w, c.SrcDir); err != nil {
		return err
	}

	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				klog.Infof("change detected: %s", event)
				if _, err := ordna.Organize(ctx, c); err != nil {
					klog.Errorf("organize failed: %v", err)
				}
				// New subdirectories may have appeared.
				if err := addWatches(w, c.SrcDir); err != nil {
					klog.Warningf("watch refresh: %v", err)
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			klog.Errorf("watch error: %v", err)
		}
	}
}

// addWatches registers every directory under root with the watcher.
func addWatches(w *fsnotify.Watcher, root string) error {
	dirs := []string{}
	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if path != root && filepath.Base(path)[0] == '.' {
				return godirwalk.SkipThis
			}
			if de.IsDir() {
				dirs = append(dirs, path)
			}
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("walk: %w", err)
	}

	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			klog.Warningf("watch %s: %v", d, err)
		}
	}

	klog.Infof("watching %d dirs under %s", len(dirs), root)
	return nil
}
