//go:build windows

package ordna

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/windows"
)

// preserveCreationTime copies the creation timestamp from src to dst.
func preserveCreationTime(src string, dst string) error {
	fi, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}

	attr, ok := fi.Sys().(*syscall.Win32FileAttributeData)
	if !ok {
		return fmt.Errorf("no attribute data for %s", src)
	}

	p, err := windows.UTF16PtrFromString(dst)
	if err != nil {
		return err
	}

	h, err := windows.CreateFile(p, windows.FILE_WRITE_ATTRIBUTES,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE, nil,
		windows.OPEN_EXISTING, windows.FILE_ATTRIBUTE_NORMAL, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", dst, err)
	}
	defer windows.CloseHandle(h)

	ct := windows.Filetime{
		LowDateTime:  attr.CreationTime.LowDateTime,
		HighDateTime: attr.CreationTime.HighDateTime,
	}
	if err := windows.SetFileTime(h, &ct, nil, nil); err != nil {
		return fmt.Errorf("set file time: %w", err)
	}

	return nil
}
