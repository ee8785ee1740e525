//go:build linux && cgo

package udev

import (
	"path"
	"strings"

	libudev "github.com/jochenvg/go-udev"

	"k8s.io/klog/v2"
)

// Libudev resolves devices through the system libudev. Each call copies the
// libudev device into a snapshot and drops the handle.
type Libudev struct {
	udev *libudev.Udev
	// host classifies the lookups libudev rejects.
	host *Sysfs
}

func NewLibudev() (*Libudev, error) {
	return &Libudev{
		udev: &libudev.Udev{},
		host: NewSysfs(),
	}, nil
}

func (l *Libudev) DeviceFromSyspath(syspath string) (*Device, error) {
	if err := checkSyspath(DefaultSysRoot, syspath); err != nil {
		return nil, err
	}

	syspath = path.Clean(syspath)
	dev := l.udev.NewDeviceFromSyspath(syspath)
	if dev == nil {
		return nil, l.host.explain(syspath)
	}

	d := l.snapshot(dev)
	klog.V(4).Infof("resolved device %s via libudev (subsystem=%s, initialized=%t)", d.syspath, orNone(d.subsystem), d.initialized)
	return d, nil
}

func (l *Libudev) DeviceFromDevnum(kind byte, n Devnum) (*Device, error) {
	class, err := devnumClass(kind)
	if err != nil {
		return nil, err
	}

	dev := l.udev.NewDeviceFromDevnum(kind, libudev.MkDev(int(n.Major()), int(n.Minor())))
	if dev == nil {
		return nil, l.host.explain(path.Join(DefaultSysRoot, devDir, class, n.String()))
	}

	d := l.snapshot(dev)
	klog.V(4).Infof("resolved device %c%s to %s via libudev", kind, n, d.syspath)
	return d, nil
}

func (l *Libudev) parentOf(d *Device) (*Device, error) {
	dev := l.udev.NewDeviceFromSyspath(d.syspath)
	if dev == nil {
		return nil, l.host.explain(d.syspath)
	}

	parent := dev.Parent()
	if parent == nil {
		return nil, nil
	}
	return l.snapshot(parent), nil
}

func (l *Libudev) snapshot(dev *libudev.Device) *Device {
	d := &Device{
		syspath:    dev.Syspath(),
		sysname:    dev.Sysname(),
		devpath:    dev.Devpath(),
		sysnum:     optional(dev.Sysnum()),
		devnode:    optional(dev.Devnode()),
		devtype:    optional(dev.Devtype()),
		subsystem:  optional(dev.Subsystem()),
		driver:     optional(dev.Driver()),
		properties: make(map[string]string),

		initialized: dev.IsInitialized(),
	}

	if n := dev.Devnum(); n.Major() != 0 || n.Minor() != 0 {
		devnum := NewDevnum(uint32(n.Major()), uint32(n.Minor()))
		d.devnum = &devnum
	}

	for k, v := range dev.Properties() {
		d.properties[k] = strings.TrimSpace(v)
	}
	for link := range dev.Devlinks() {
		d.devlinks = append(d.devlinks, link)
	}
	for tag := range dev.Tags() {
		d.tags = append(d.tags, tag)
	}
	if usec, err := parseUint(d.properties["USEC_INITIALIZED"]); err == nil {
		d.usecInitialized = usec
	}

	return newDevice(l, d)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
