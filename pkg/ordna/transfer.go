package ordna

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/otiai10/copy"
	"k8s.io/klog/v2"
)

// Execute carries out one planned transfer, creating the destination
// folder if missing. Creation-time preservation is best effort and
// never fails the transfer.
func Execute(d *PlacementDecision, preserveCtime bool) error {
	if err := os.MkdirAll(filepath.Dir(d.Dest), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	switch d.Action {
	case ActionMove:
		if err := moveFile(d.Source, d.Dest); err != nil {
			return err
		}
	case ActionCopy:
		if err := copy.Copy(d.Source, d.Dest, copy.Options{PreserveTimes: true}); err != nil {
			return fmt.Errorf("copy: %w", err)
		}
		if preserveCtime {
			if err := preserveCreationTime(d.Source, d.Dest); err != nil {
				klog.V(1).Infof("preserve ctime for %s: %v", d.Dest, err)
			}
		}
	default:
		return fmt.Errorf("cannot execute action %q", d.Action)
	}

	return nil
}

// renameFile is swapped by tests to exercise the cross-device path.
var renameFile = os.Rename

// moveFile renames src to dst, falling back to copy and remove when
// they sit on different filesystems. The source is only removed after
// the copy succeeds.
func moveFile(src string, dst string) error {
	if err := renameFile(src, dst); err == nil {
		return nil
	}

	if err := copy.Copy(src, dst, copy.Options{PreserveTimes: true}); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove after copy: %w", err)
	}
	return nil
}
