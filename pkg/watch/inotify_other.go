//go:build !linux

package watch

import (
	"runtime"

	"github.com/sidkik/lds/pkg/errors"
)

// NewNotifier always fails on platforms without inotify.
func NewNotifier() (Notifier, error) {
	return nil, errors.Errorf("inotify is not supported on %s", runtime.GOOS)
}
