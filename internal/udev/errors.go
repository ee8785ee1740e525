package udev

import (
	"errors"
	"fmt"
	"io/fs"

	"golang.org/x/sys/unix"
)

var (
	// ErrInvalidArgument is returned for malformed input, always before any
	// sysfs or udev database access.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNoSuchDevice is returned when a syspath is not a registered device.
	// It is the kernel's ENODEV so callers can match it either way.
	ErrNoSuchDevice error = unix.ENODEV
)

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func noSuchDevice(syspath string) error {
	return &fs.PathError{Op: "resolve", Path: syspath, Err: ErrNoSuchDevice}
}

// isAbsent reports whether err means the path is simply not there.
func isAbsent(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, unix.ENOTDIR)
}

func isNoSuchDevice(err error) bool {
	return errors.Is(err, ErrNoSuchDevice)
}
