// Package preflight verifies headless is running on the hardware it
// configures: macOS on Apple Silicon.
package preflight

import (
	"errors"
	"fmt"
	"runtime"
)

var (
	// ErrWrongOS is returned on anything but macOS.
	ErrWrongOS = errors.New("headless only runs on macOS")

	// ErrWrongArch is returned on Intel Macs.
	ErrWrongArch = errors.New("headless requires Apple Silicon (arm64)")
)

// Check validates the given platform.
func Check(goos, goarch string) error {
	if goos != "darwin" {
		return fmt.Errorf("%w: detected %s", ErrWrongOS, goos)
	}
	if goarch != "arm64" {
		return fmt.Errorf("%w: detected %s", ErrWrongArch, goarch)
	}
	return nil
}

// Host validates the platform this binary was built for.
func Host() error {
	return Check(runtime.GOOS, runtime.GOARCH)
}
