package udev_test

import (
	"github.com/ydb-platform/udev-device/internal/udev"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("DeviceFromDevnum", func() {
	var (
		tree     *sysTree
		resolver *udev.Sysfs
	)

	BeforeEach(func() {
		tree = newSysTree()
		resolver = tree.resolver()
	})

	It("should resolve character devices", func() {
		dev, err := resolver.DeviceFromDevnum('c', udev.NewDevnum(1, 3))
		Expect(err).NotTo(HaveOccurred())
		Expect(dev.Syspath()).To(Equal(nullSyspath))
		Expect(present(dev.Subsystem())).To(Equal("mem"))
		Expect(dev.Initialized()).To(BeTrue())
	})

	It("should resolve block devices", func() {
		dev, err := resolver.DeviceFromDevnum('b', udev.NewDevnum(8, 0))
		Expect(err).NotTo(HaveOccurred())
		Expect(dev.Syspath()).To(Equal(sdaSyspath))
		Expect(present(dev.Devtype())).To(Equal(udev.DeviceTypeDisk))

		parent, err := dev.Parent()
		Expect(err).NotTo(HaveOccurred())
		Expect(parent.Syspath()).To(Equal(scsiSyspath))
	})

	It("should accept raw device numbers", func() {
		dev, err := resolver.DeviceFromDevnum('c', udev.DevnumFromRaw(259))
		Expect(err).NotTo(HaveOccurred())
		Expect(dev.Syspath()).To(Equal(nullSyspath))
	})

	It("should fail with ENODEV for unknown numbers", func() {
		for _, n := range []udev.Devnum{udev.NewDevnum(9, 9), udev.NewDevnum(0, 0)} {
			dev, err := resolver.DeviceFromDevnum('c', n)
			Expect(err).To(MatchError(udev.ErrNoSuchDevice), n.String())
			Expect(dev).To(BeNil())
		}
	})

	It("should not mix up block and character devices", func() {
		_, err := resolver.DeviceFromDevnum('b', udev.NewDevnum(1, 3))
		Expect(err).To(MatchError(udev.ErrNoSuchDevice))

		tree.link("/sys/dev/char/8:0", sdaSyspath)
		_, err = resolver.DeviceFromDevnum('c', udev.NewDevnum(8, 0))
		Expect(err).To(MatchError(udev.ErrNoSuchDevice))
	})

	It("should fail with ENODEV when the entry points at another device", func() {
		tree.link("/sys/dev/char/1:5", nullSyspath)
		_, err := resolver.DeviceFromDevnum('c', udev.NewDevnum(1, 5))
		Expect(err).To(MatchError(udev.ErrNoSuchDevice))
	})

	It("should reject unknown kinds without touching the filesystem", func() {
		counting := &countingFs{Fs: tree.fs()}
		r := udev.NewSysfs(udev.WithFs(counting))

		for _, kind := range []byte{0, 'n', 'B', 'C', '+'} {
			dev, err := r.DeviceFromDevnum(kind, udev.NewDevnum(1, 3))
			Expect(err).To(MatchError(udev.ErrInvalidArgument), string(kind))
			Expect(dev).To(BeNil())
		}
		Expect(counting.calls.Load()).To(BeZero())
	})
})

var _ = Describe("ParseDeviceID", func() {
	It("should split the kind from the device number", func() {
		kind, n, err := udev.ParseDeviceID("b8:1")
		Expect(err).NotTo(HaveOccurred())
		Expect(kind).To(Equal(byte('b')))
		Expect(n.String()).To(Equal("8:1"))

		kind, n, err = udev.ParseDeviceID("c1:3")
		Expect(err).NotTo(HaveOccurred())
		Expect(kind).To(Equal(byte('c')))
		Expect(n.Raw()).To(Equal(uint64(259)))
	})

	It("should reject malformed ids", func() {
		for _, id := range []string{"", "c", "x1:3", "n1", "c1", "/sys/dev/char/1:3"} {
			_, _, err := udev.ParseDeviceID(id)
			Expect(err).To(MatchError(udev.ErrInvalidArgument), id)
		}
	})
})
