package core

import (
	"fmt"
	"os"
	"syscall"
)

// acquireRunLock takes a non-blocking exclusive flock on the given path so
// that only one engine instance works a vault at a time. It returns a release
// function that drops the lock; the lock file itself is left behind as an
// inert marker.
func acquireRunLock(path string) (release func() error, err error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening run lock %s: %w", path, err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("acquiring run lock %s (is another instance running?): %w", path, err)
	}

	return func() error {
		defer f.Close()
		return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	}, nil
}
