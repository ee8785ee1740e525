//go:build !linux || !cgo

package udev

import (
	"errors"
	"fmt"
)

// Libudev is only available on linux with cgo enabled.
type Libudev struct{}

func NewLibudev() (*Libudev, error) {
	return nil, fmt.Errorf("libudev backend: %w", errors.ErrUnsupported)
}

func (l *Libudev) DeviceFromSyspath(syspath string) (*Device, error) {
	return nil, fmt.Errorf("libudev backend: %w", errors.ErrUnsupported)
}

func (l *Libudev) DeviceFromDevnum(kind byte, _ Devnum) (*Device, error) {
	if _, err := devnumClass(kind); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("libudev backend: %w", errors.ErrUnsupported)
}

func (l *Libudev) parentOf(*Device) (*Device, error) {
	return nil, fmt.Errorf("libudev backend: %w", errors.ErrUnsupported)
}
