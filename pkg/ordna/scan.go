package ordna

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"
	"k8s.io/klog/v2"
)

// candidateExts are the extensions worth examining.
var candidateExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tiff": true,
	".tif":  true,
	".heic": true,
	".heif": true,
	".mp4":  true,
	".mov":  true,
}

// IsCandidate reports whether path looks like a photo or video.
func IsCandidate(path string) bool {
	return candidateExts[strings.ToLower(filepath.Ext(path))]
}

// Scan walks root and returns a record for each candidate file, in walk
// order. Dot entries are skipped. Unreadable entries are logged and
// skipped rather than aborting the walk.
func Scan(root string) ([]*FileRecord, error) {
	found := []*FileRecord{}

	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if path != root && filepath.Base(path)[0] == '.' {
				return godirwalk.SkipThis
			}

			if de.IsDir() || !IsCandidate(path) {
				return nil
			}

			fi, err := os.Stat(path)
			if err != nil {
				klog.Warningf("stat %s: %v", path, err)
				return nil
			}

			klog.V(1).Infof("found %s", path)
			found = append(found, &FileRecord{Path: path, Mtime: fi.ModTime()})
			return nil
		},
		ErrorCallback: func(path string, err error) godirwalk.ErrorAction {
			klog.Warningf("walk %s: %v", path, err)
			return godirwalk.SkipNode
		},
	})

	return found, err
}
