package udev

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
	"k8s.io/klog/v2"
)

const (
	// ref: https://www.kernel.org/doc/Documentation/filesystems/sysfs.txt
	ueventFile    = "uevent"
	devFile       = "dev"
	devDir        = "dev"
	subsystemLink = "subsystem"
	driverLink    = "driver"

	maxSymlinks = 40
)

// Sysfs resolves devices by reading sysfs and the udev database directly.
type Sysfs struct {
	fs          afero.Fs
	sysRoot     string
	udevDataDir string
	devRoot     string
}

type Option interface {
	apply(*Sysfs)
}

type withFs struct {
	fs afero.Fs
}

func (o withFs) apply(s *Sysfs) {
	s.fs = o.fs
}

// WithFs sets the filesystem all paths are read from. Defaults to the host
// filesystem.
func WithFs(fs afero.Fs) Option {
	return withFs{fs}
}

type withSysRoot string

func (o withSysRoot) apply(s *Sysfs) {
	s.sysRoot = path.Clean(string(o))
}

// WithSysRoot sets the sysfs mount point. Defaults to /sys.
func WithSysRoot(root string) Option {
	return withSysRoot(root)
}

type withUdevDataDir string

func (o withUdevDataDir) apply(s *Sysfs) {
	s.udevDataDir = path.Clean(string(o))
}

// WithUdevDataDir sets the udev database directory. Defaults to /run/udev/data.
func WithUdevDataDir(dir string) Option {
	return withUdevDataDir(dir)
}

type withDevRoot string

func (o withDevRoot) apply(s *Sysfs) {
	s.devRoot = path.Clean(string(o))
}

// WithDevRoot sets the directory device node names are relative to.
// Defaults to /dev.
func WithDevRoot(root string) Option {
	return withDevRoot(root)
}

func NewSysfs(opts ...Option) *Sysfs {
	s := &Sysfs{
		sysRoot:     DefaultSysRoot,
		udevDataDir: DefaultUdevDataDir,
		devRoot:     DefaultDevRoot,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.apply(s)
	}
	if s.fs == nil {
		s.fs = afero.NewOsFs()
	}
	return s
}

func (s *Sysfs) DeviceFromSyspath(syspath string) (*Device, error) {
	canonical, rel, err := s.locate(syspath)
	if err != nil {
		return nil, err
	}

	dev, err := s.snapshot(canonical, rel)
	if err != nil {
		return nil, err
	}
	klog.V(4).Infof("resolved device %s (subsystem=%s, initialized=%t)", canonical, orNone(dev.subsystem), dev.initialized)

	return newDevice(s, dev), nil
}

// DeviceFromDevnum resolves the device through its <sys>/dev/{block,char}
// entry and checks that the device found carries that number.
func (s *Sysfs) DeviceFromDevnum(kind byte, n Devnum) (*Device, error) {
	class, err := devnumClass(kind)
	if err != nil {
		return nil, err
	}

	syspath := path.Join(s.sysRoot, devDir, class, n.String())
	dev, err := s.DeviceFromSyspath(syspath)
	if err != nil {
		return nil, err
	}
	if !hasDevnum(dev, kind, n) {
		klog.V(4).Infof("%s resolved to %s which is not %c%s", syspath, dev, kind, n)
		return nil, noSuchDevice(syspath)
	}
	return dev, nil
}

// locate validates syspath and returns its canonical form, both absolute and
// relative to the sysfs root, once it is known to be a device.
func (s *Sysfs) locate(syspath string) (string, string, error) {
	if err := checkSyspath(s.sysRoot, syspath); err != nil {
		return "", "", err
	}

	canonical, err := s.realpath(path.Clean(syspath))
	if err != nil {
		if isAbsent(err) {
			return "", "", noSuchDevice(syspath)
		}
		return "", "", fmt.Errorf("failed to resolve %s: %w", syspath, err)
	}

	rel, ok := relToRoot(s.sysRoot, canonical)
	if !ok {
		return "", "", noSuchDevice(syspath)
	}
	if err := s.checkDevice(canonical, rel); err != nil {
		return "", "", err
	}
	return canonical, rel, nil
}

// explain finds out why a lookup that gave no reason failed for syspath.
// It returns ErrNoSuchDevice only when there is no device to read.
func (s *Sysfs) explain(syspath string) error {
	canonical, _, err := s.locate(syspath)
	if err != nil {
		return err
	}
	if _, err := readKeyValues(s.fs, path.Join(canonical, ueventFile), "="); err != nil {
		return err
	}
	return fmt.Errorf("device %s exists but could not be read", syspath)
}

func (s *Sysfs) parentOf(d *Device) (*Device, error) {
	return walkParents(s.sysRoot, d.syspath, s.DeviceFromSyspath)
}

// checkDevice decides whether the directory at syspath is a registered
// device. Below devices/ that requires a uevent file; elsewhere (class, bus,
// module) any directory below a top-level sysfs directory qualifies.
func (s *Sysfs) checkDevice(syspath, rel string) error {
	if !strings.Contains(rel, "/") {
		return noSuchDevice(syspath)
	}

	if strings.HasPrefix(rel, "devices/") {
		_, err := s.fs.Stat(path.Join(syspath, ueventFile))
		switch {
		case err == nil:
			return nil
		case isAbsent(err):
			return noSuchDevice(syspath)
		default:
			return fmt.Errorf("failed to check %s: %w", syspath, err)
		}
	}

	info, err := s.fs.Stat(syspath)
	if err != nil {
		if isAbsent(err) {
			return noSuchDevice(syspath)
		}
		return fmt.Errorf("failed to check %s: %w", syspath, err)
	}
	if !info.IsDir() {
		return noSuchDevice(syspath)
	}
	return nil
}

func (s *Sysfs) snapshot(syspath, rel string) (*Device, error) {
	dirName := path.Base(syspath)
	dev := &Device{
		syspath:    syspath,
		devpath:    "/" + rel,
		sysname:    strings.ReplaceAll(dirName, "!", "/"),
		properties: make(map[string]string),
	}
	dev.sysnum = sysnum(dev.sysname)

	subsystem, err := s.subsystem(syspath, rel)
	if err != nil {
		return nil, err
	}
	dev.subsystem = subsystem

	driver, err := s.linkName(path.Join(syspath, driverLink))
	if err != nil {
		return nil, err
	}
	dev.driver = driver

	uevent, err := readKeyValues(s.fs, path.Join(syspath, ueventFile), "=")
	if err != nil {
		return nil, err
	}
	for k, v := range uevent {
		dev.properties[k] = v
	}

	if t, ok := uevent["DEVTYPE"]; ok && t != "" {
		dev.devtype = &t
	}

	devnum, err := s.devnum(syspath, uevent)
	if err != nil {
		return nil, err
	}
	dev.devnum = devnum

	if name := uevent["DEVNAME"]; name != "" {
		node := s.devNodePath(name)
		dev.devnode = &node
	}

	id := deviceID(dev, dirName, rel, uevent["IFINDEX"])
	if err := s.readDatabase(id, dev); err != nil {
		return nil, err
	}

	dev.properties["DEVPATH"] = dev.devpath
	if dev.subsystem != nil {
		dev.properties["SUBSYSTEM"] = *dev.subsystem
	}
	if dev.driver != nil {
		dev.properties["DRIVER"] = *dev.driver
	}
	if dev.devnode != nil {
		dev.properties["DEVNAME"] = *dev.devnode
	}
	if len(dev.devlinks) > 0 {
		dev.properties["DEVLINKS"] = strings.Join(dev.devlinks, " ")
	}

	return dev, nil
}

func (s *Sysfs) subsystem(syspath, rel string) (*string, error) {
	name, err := s.linkName(path.Join(syspath, subsystemLink))
	if err != nil || name != nil {
		return name, err
	}

	// Directories outside devices/ carry no subsystem link; their kind
	// follows from where they live.
	devpath := "/" + rel
	var subsystem string
	switch {
	case strings.HasPrefix(devpath, "/module/"):
		subsystem = ModuleSubsystem
	case strings.Contains(devpath, "/drivers/") || strings.HasSuffix(devpath, "/drivers"):
		subsystem = DriversSubsystem
	case strings.HasPrefix(devpath, "/subsystem/") || strings.HasPrefix(devpath, "/class/") || strings.HasPrefix(devpath, "/bus/"):
		subsystem = "subsystem"
	default:
		return nil, nil
	}
	return &subsystem, nil
}

func (s *Sysfs) devnum(syspath string, uevent map[string]string) (*Devnum, error) {
	var devnum Devnum
	major, hasMajor := uevent["MAJOR"]
	minor, hasMinor := uevent["MINOR"]
	if hasMajor && hasMinor {
		n, err := parseDevnum(major + ":" + minor)
		if err != nil {
			return nil, fmt.Errorf("failed to parse uevent of %s: %w", syspath, err)
		}
		devnum = n
	} else {
		attr, err := readAttr(s.fs, path.Join(syspath, devFile))
		if err != nil {
			if isAbsent(err) {
				return nil, nil
			}
			return nil, err
		}
		n, err := parseDevnum(attr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse dev attribute of %s: %w", syspath, err)
		}
		devnum = n
	}

	if devnum.IsZero() {
		return nil, nil
	}
	return &devnum, nil
}

func (s *Sysfs) devNodePath(name string) string {
	if path.IsAbs(name) {
		return path.Clean(name)
	}
	return path.Join(s.devRoot, name)
}

// deviceID returns the udev database record name of dev, or "" if udev
// keeps no record for it.
func deviceID(dev *Device, dirName, rel, ifindex string) string {
	if dev.devnum != nil && dev.devnum.Major() > 0 {
		kind := "c"
		if s, _ := dev.Subsystem(); s == BlockSubsystem {
			kind = "b"
		}
		return kind + dev.devnum.String()
	}
	if ifindex != "" && ifindex != "0" {
		return "n" + ifindex
	}
	subsystem, ok := dev.Subsystem()
	if !ok {
		return ""
	}
	if subsystem == DriversSubsystem {
		// bus/<bus>/drivers/<driver>
		parts := strings.Split(rel, "/")
		if len(parts) < 2 || parts[0] != "bus" {
			return ""
		}
		return "+drivers:" + parts[1] + ":" + dirName
	}
	return "+" + subsystem + ":" + dirName
}

func (s *Sysfs) readDatabase(id string, dev *Device) error {
	if id == "" {
		return nil
	}

	record, err := readDatabaseRecord(s.fs, path.Join(s.udevDataDir, id))
	if err != nil {
		if isAbsent(err) {
			klog.V(5).Infof("no udev database record %q for %s", id, dev.syspath)
			return nil
		}
		return err
	}

	dev.initialized = true
	dev.usecInitialized = record.usecInitialized
	if record.devnode != "" {
		node := s.devNodePath(record.devnode)
		dev.devnode = &node
	}
	for _, link := range record.devlinks {
		dev.devlinks = append(dev.devlinks, s.devNodePath(link))
	}
	dev.tags = record.tags
	for k, v := range record.properties {
		dev.properties[k] = v
	}
	return nil
}

// linkName returns the last element of the symlink target at p, or nil when
// there is no such link.
func (s *Sysfs) linkName(p string) (*string, error) {
	target, err := s.readlink(p)
	if err != nil {
		if isAbsent(err) || errors.Is(err, afero.ErrNoReadlink) || errors.Is(err, unix.EINVAL) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read link %s: %w", p, err)
	}
	name := path.Base(target)
	return &name, nil
}

func (s *Sysfs) readlink(p string) (string, error) {
	if r, ok := s.fs.(afero.LinkReader); ok {
		return r.ReadlinkIfPossible(p)
	}
	return "", &fs.PathError{Op: "readlink", Path: p, Err: afero.ErrNoReadlink}
}

func (s *Sysfs) lstat(p string) (fs.FileInfo, error) {
	if l, ok := s.fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(p)
		return info, err
	}
	return s.fs.Stat(p)
}

// realpath resolves every symlink in p the way the kernel would.
func (s *Sysfs) realpath(p string) (string, error) {
	resolved := "/"
	rest := strings.Split(p, "/")
	hops := 0
	for len(rest) > 0 {
		name := rest[0]
		rest = rest[1:]
		switch name {
		case "", ".":
			continue
		case "..":
			resolved = path.Dir(resolved)
			continue
		}

		next := path.Join(resolved, name)
		info, err := s.lstat(next)
		if err != nil {
			return "", err
		}
		if info.Mode()&fs.ModeSymlink == 0 {
			resolved = next
			continue
		}

		hops++
		if hops > maxSymlinks {
			return "", &fs.PathError{Op: "realpath", Path: p, Err: unix.ELOOP}
		}
		target, err := s.readlink(next)
		if err != nil {
			return "", err
		}
		if path.IsAbs(target) {
			resolved = "/"
		}
		rest = append(strings.Split(target, "/"), rest...)
	}
	return resolved, nil
}

// sysnum returns the instance number udev derives from sysname: its
// trailing digits, provided at least two characters precede them.
func sysnum(sysname string) *string {
	i := len(sysname)
	for i > 0 && sysname[i-1] >= '0' && sysname[i-1] <= '9' {
		i--
	}
	if i <= 1 || i == len(sysname) {
		return nil
	}
	num := sysname[i:]
	return &num
}

func parseUint(s string) (*uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
