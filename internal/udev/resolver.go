// Package udev resolves kernel devices from their syspath into immutable
// snapshots of the attributes sysfs and the udev database report for them.
package udev

import (
	"path"
	"strings"

	"k8s.io/klog/v2"
)

const (
	DefaultSysRoot     = "/sys"
	DefaultUdevDataDir = "/run/udev/data"
	DefaultDevRoot     = "/dev"

	BlockSubsystem   = "block"
	ModuleSubsystem  = "module"
	DriversSubsystem = "drivers"

	DeviceTypePart = "partition"
	DeviceTypeDisk = "disk"
)

// Resolver turns syspaths and device numbers into Device snapshots.
// Implementations keep no mutable state between calls and are safe for
// concurrent use.
type Resolver interface {
	DeviceFromSyspath(syspath string) (*Device, error)
	// DeviceFromDevnum looks a device up by number. kind is 'b' for block
	// and 'c' for character devices.
	DeviceFromDevnum(kind byte, n Devnum) (*Device, error)

	parentOf(*Device) (*Device, error)
}

// Resolve is DeviceFromSyspath for dynamically typed input, such as values
// decoded from configuration. Anything but a string fails with
// ErrInvalidArgument before r is consulted.
func Resolve(r Resolver, v any) (*Device, error) {
	syspath, ok := v.(string)
	if !ok {
		return nil, invalidArgument("expected string syspath, got %T", v)
	}
	return r.DeviceFromSyspath(syspath)
}

// devnumClass maps a device kind to its directory under <sys>/dev.
func devnumClass(kind byte) (string, error) {
	switch kind {
	case 'b':
		return "block", nil
	case 'c':
		return "char", nil
	}
	return "", invalidArgument("device kind %q is neither 'b' nor 'c'", kind)
}

// hasDevnum reports whether dev is the kind-n device. Block numbers belong
// to the block subsystem only.
func hasDevnum(dev *Device, kind byte, n Devnum) bool {
	devnum, ok := dev.Devnum()
	if !ok || devnum.Major() != n.Major() || devnum.Minor() != n.Minor() {
		return false
	}
	subsystem, _ := dev.Subsystem()
	return (kind == 'b') == (subsystem == BlockSubsystem)
}

// checkSyspath validates the shape of syspath relative to sysRoot.
func checkSyspath(sysRoot, syspath string) error {
	if !path.IsAbs(syspath) {
		return invalidArgument("syspath %q is not absolute", syspath)
	}
	if _, ok := relToRoot(sysRoot, path.Clean(syspath)); !ok {
		return invalidArgument("syspath %q is not under %s", syspath, sysRoot)
	}
	return nil
}

// relToRoot returns p relative to root, without a leading slash. p must be
// strictly below root.
func relToRoot(root, p string) (string, bool) {
	if root == "/" {
		root = ""
	}
	rel, ok := strings.CutPrefix(p, root+"/")
	if !ok || rel == "" {
		return "", false
	}
	return rel, true
}

// walkParents calls resolve on each directory above syspath, nearest first,
// until it yields a device. Directories that are not devices are skipped.
// The walk stops below the first component under sysRoot.
func walkParents(sysRoot, syspath string, resolve func(string) (*Device, error)) (*Device, error) {
	rel, ok := relToRoot(sysRoot, syspath)
	if !ok {
		return nil, nil
	}
	for {
		i := strings.LastIndexByte(rel, '/')
		if i <= 0 {
			return nil, nil
		}
		rel = rel[:i]

		candidate := path.Join(sysRoot, rel)
		dev, err := resolve(candidate)
		if err == nil {
			return dev, nil
		}
		if !isNoSuchDevice(err) {
			return nil, err
		}
		klog.V(5).Infof("skipping %s while looking for parent of %s: not a device", candidate, syspath)
	}
}
