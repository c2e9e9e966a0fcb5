//go:build !windows

package ordna

import (
	"fmt"
	"runtime"
)

// preserveCreationTime is a no-op where the platform has no API for
// setting a file's birth time. Modified and access times are already
// carried by the transfer itself.
func preserveCreationTime(_ string, _ string) error {
	return fmt.Errorf("creation time preservation not supported on %s", runtime.GOOS)
}
