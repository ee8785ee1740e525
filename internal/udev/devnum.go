package udev

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Devnum is a kernel device number. The raw value uses the platform's dev_t
// encoding, so 1:3 is 259 on Linux.
type Devnum struct {
	major, minor uint32
	raw          uint64
}

func NewDevnum(major, minor uint32) Devnum {
	return Devnum{
		major: major,
		minor: minor,
		raw:   unix.Mkdev(major, minor),
	}
}

func DevnumFromRaw(raw uint64) Devnum {
	return Devnum{
		major: unix.Major(raw),
		minor: unix.Minor(raw),
		raw:   raw,
	}
}

func (d Devnum) Major() uint32 {
	return d.major
}

func (d Devnum) Minor() uint32 {
	return d.minor
}

func (d Devnum) Raw() uint64 {
	return d.raw
}

// IsZero reports whether d is 0:0, which the kernel never assigns to a node.
func (d Devnum) IsZero() bool {
	return d.major == 0 && d.minor == 0
}

// String formats d the way sysfs "dev" attributes do.
func (d Devnum) String() string {
	return fmt.Sprintf("%d:%d", d.major, d.minor)
}

func parseDevnum(s string) (Devnum, error) {
	var major, minor uint32
	if _, err := fmt.Sscanf(s, "%d:%d", &major, &minor); err != nil {
		return Devnum{}, fmt.Errorf("malformed device number %q: %w", s, err)
	}
	return NewDevnum(major, minor), nil
}

// ParseDeviceID parses the "b8:0" / "c1:3" form udev uses to name devices by
// number.
func ParseDeviceID(id string) (byte, Devnum, error) {
	if id == "" {
		return 0, Devnum{}, invalidArgument("empty device id")
	}
	kind := id[0]
	if _, err := devnumClass(kind); err != nil {
		return 0, Devnum{}, err
	}
	n, err := parseDevnum(id[1:])
	if err != nil {
		return 0, Devnum{}, invalidArgument("device id %q: %v", id, err)
	}
	return kind, n, nil
}
