// Package armsoc is a buffer-management and frame-presentation core
// for ARM SoC display hardware. The bo package manages the buffer
// objects that back pixel surfaces, the dri2 package schedules how a
// rendered buffer becomes visible, and the drm package talks to the
// kernel.
package armsoc

import (
	"fmt"
	"os"
	"path/filepath"
)

// DevicePath determines the path to the DRM device node based on the
// contents of the $ARMSOC_DEVICE environment variable. It does not
// attempt to determine if the value corresponds to an actual card.
func DevicePath() string {
	v := os.Getenv("ARMSOC_DEVICE")
	if v == "" {
		v = "card0"
	}
	if filepath.IsAbs(v) {
		return v
	}

	return filepath.Join("/dev/dri", v)
}

// OpenDevice opens the DRM device node based on the current
// environment.
func OpenDevice() (*os.File, error) {
	file, err := os.OpenFile(DevicePath(), os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open DRM device: %w", err)
	}
	return file, nil
}
