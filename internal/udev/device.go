package udev

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/ydb-platform/udev-device/internal/filter"
)

// Device is a point-in-time snapshot of a kernel device as reported by sysfs
// and the udev database. It holds no OS handles; the only deferred work is
// the parent lookup, which is resolved once on first use.
type Device struct {
	syspath string
	sysname string
	devpath string

	sysnum    *string
	devnode   *string
	devnum    *Devnum
	devtype   *string
	subsystem *string
	driver    *string

	properties      map[string]string
	devlinks        []string
	tags            []string
	initialized     bool
	usecInitialized *uint64

	parent func() (*Device, error)
}

// newDevice wires the parent lookup of d to r.
func newDevice(r Resolver, d *Device) *Device {
	d.parent = sync.OnceValues(func() (*Device, error) {
		return r.parentOf(d)
	})
	return d
}

func (d *Device) Syspath() string {
	return d.syspath
}

// Path is a synonym for Syspath.
func (d *Device) Path() string {
	return d.Syspath()
}

func (d *Device) Sysname() string {
	return d.sysname
}

// Name is a synonym for Sysname.
func (d *Device) Name() string {
	return d.Sysname()
}

// Sysnum returns the instance number of the device, "0" for cpu0.
func (d *Device) Sysnum() (string, bool) {
	return deref(d.sysnum)
}

// Devpath returns the syspath without the sysfs mount point.
func (d *Device) Devpath() string {
	return d.devpath
}

func (d *Device) Devnode() (string, bool) {
	return deref(d.devnode)
}

func (d *Device) Devnum() (Devnum, bool) {
	return deref(d.devnum)
}

func (d *Device) MajorNumber() (uint32, bool) {
	if d.devnum == nil {
		return 0, false
	}
	return d.devnum.Major(), true
}

func (d *Device) MinorNumber() (uint32, bool) {
	if d.devnum == nil {
		return 0, false
	}
	return d.devnum.Minor(), true
}

func (d *Device) Devtype() (string, bool) {
	return deref(d.devtype)
}

func (d *Device) Subsystem() (string, bool) {
	return deref(d.subsystem)
}

func (d *Device) Driver() (string, bool) {
	return deref(d.driver)
}

// Properties returns a copy of the uevent and udev database properties.
func (d *Device) Properties() map[string]string {
	return maps.Clone(d.properties)
}

func (d *Device) Property(key string) string {
	return d.properties[key]
}

func (d *Device) Devlinks() []string {
	return slices.Clone(d.devlinks)
}

func (d *Device) Tags() []string {
	return slices.Clone(d.tags)
}

// Initialized reports whether udev had finished processing the device when
// the snapshot was taken.
func (d *Device) Initialized() bool {
	return d.initialized
}

// UsecInitialized returns the CLOCK_MONOTONIC timestamp udev recorded when it
// first initialized the device.
func (d *Device) UsecInitialized() (uint64, bool) {
	return deref(d.usecInitialized)
}

// Parent returns the nearest ancestor that is itself a device, or nil if d
// sits at the top of the device tree.
func (d *Device) Parent() (*Device, error) {
	if d.parent == nil {
		return nil, nil
	}
	return d.parent()
}

// ParentWithSubsystem returns the nearest ancestor in the given subsystem.
func (d *Device) ParentWithSubsystem(subsystem string) (*Device, error) {
	return d.ParentWithSubsystemDevtype(subsystem, "")
}

// ParentWithSubsystemDevtype returns the nearest ancestor in the given
// subsystem whose devtype matches. An empty devtype matches any devtype.
// Devtypes are scoped by subsystem, so subsystem is required.
func (d *Device) ParentWithSubsystemDevtype(subsystem, devtype string) (*Device, error) {
	if subsystem == "" {
		return nil, invalidArgument("devtype %q given without a subsystem", devtype)
	}

	devtypeMatch := filter.Any[*Device]()
	if devtype != "" {
		devtypeMatch = MatchDevtype(devtype)
	}
	return d.ParentMatching(filter.And(MatchSubsystem(subsystem), devtypeMatch))
}

// ParentMatching walks up the device tree and returns the nearest ancestor
// accepted by match.
func (d *Device) ParentMatching(match filter.Func[*Device]) (*Device, error) {
	for p, err := d.Parent(); p != nil || err != nil; p, err = p.Parent() {
		if err != nil {
			return nil, err
		}
		if match(p) {
			return p, nil
		}
	}
	return nil, nil
}

// Ancestors returns every ancestor of d, nearest first.
func (d *Device) Ancestors() ([]*Device, error) {
	var res []*Device
	for p, err := d.Parent(); p != nil || err != nil; p, err = p.Parent() {
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, nil
}

func MatchSubsystem(subsystem string) filter.Func[*Device] {
	return func(d *Device) bool {
		s, ok := d.Subsystem()
		return ok && s == subsystem
	}
}

func MatchDevtype(devtype string) filter.Func[*Device] {
	return func(d *Device) bool {
		t, ok := d.Devtype()
		return ok && t == devtype
	}
}

func (d *Device) String() string {
	return d.syspath
}

func (d *Device) Debug() string {
	return fmt.Sprintf("Device[Syspath=%s, Subsystem=%s, DevType=%s, DevNode=%s, Devnum=%s, Driver=%s, Initialized=%t, Links=%v, Tags=%v, Properties=%v]",
		d.syspath,
		orNone(d.subsystem),
		orNone(d.devtype),
		orNone(d.devnode),
		orNone(d.devnum),
		orNone(d.driver),
		d.initialized,
		d.devlinks,
		d.tags,
		d.properties,
	)
}

func deref[T any](p *T) (T, bool) {
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}

func orNone[T any](p *T) string {
	if p == nil {
		return "<none>"
	}
	return fmt.Sprint(*p)
}
