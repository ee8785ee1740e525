package udev_test

import (
	"github.com/ydb-platform/udev-device/internal/udev"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func syspaths(devs []*udev.Device) []string {
	res := make([]string, 0, len(devs))
	for _, dev := range devs {
		res = append(res, dev.Syspath())
	}
	return res
}

var _ = Describe("Parent", func() {
	var resolver *udev.Sysfs

	BeforeEach(func() {
		resolver = newSysTree().resolver()
	})

	mustResolve := func(syspath string) *udev.Device {
		dev, err := resolver.DeviceFromSyspath(syspath)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		return dev
	}

	Context("with no arguments", func() {
		It("should return nil when the device doesn't have a parent device", func() {
			parent, err := mustResolve(nullSyspath).Parent()
			Expect(err).NotTo(HaveOccurred())
			Expect(parent).To(BeNil())

			parent, err = mustResolve(pciSyspath).Parent()
			Expect(err).NotTo(HaveOccurred())
			Expect(parent).To(BeNil())
		})

		It("should return the parent device of the device", func() {
			parent, err := mustResolve(cpu0Syspath).Parent()
			Expect(err).NotTo(HaveOccurred())
			Expect(parent).NotTo(BeNil())
			Expect(parent.Syspath()).To(Equal(cpuSyspath))
		})

		It("should skip directories that are not devices", func() {
			parent, err := mustResolve(sdaSyspath).Parent()
			Expect(err).NotTo(HaveOccurred())
			Expect(parent.Syspath()).To(Equal(scsiSyspath))
		})

		It("should resolve the parent once per device", func() {
			dev := mustResolve(sda1Syspath)
			first, err := dev.Parent()
			Expect(err).NotTo(HaveOccurred())
			second, err := dev.Parent()
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(BeIdenticalTo(first))
		})

		It("should return an independent snapshot", func() {
			dev := mustResolve(sda1Syspath)
			parent, err := dev.Parent()
			Expect(err).NotTo(HaveOccurred())
			Expect(parent.Syspath()).To(Equal(sdaSyspath))
			Expect(present(parent.Devtype())).To(Equal(udev.DeviceTypeDisk))
			Expect(present(parent.Devnum()).String()).To(Equal("8:0"))
			Expect(parent.Initialized()).To(BeTrue())
		})
	})

	Context("with a subsystem and a type", func() {
		It("should return the nearest matching ancestor", func() {
			parent, err := mustResolve(sda1Syspath).ParentWithSubsystemDevtype(udev.BlockSubsystem, udev.DeviceTypeDisk)
			Expect(err).NotTo(HaveOccurred())
			Expect(parent.Syspath()).To(Equal(sdaSyspath))

			parent, err = mustResolve(sda1Syspath).ParentWithSubsystemDevtype("scsi", "scsi_host")
			Expect(err).NotTo(HaveOccurred())
			Expect(parent.Syspath()).To(Equal(hostSyspath))
		})

		It("should return nil when no ancestor matches", func() {
			parent, err := mustResolve(sda1Syspath).ParentWithSubsystemDevtype(udev.BlockSubsystem, udev.DeviceTypePart)
			Expect(err).NotTo(HaveOccurred())
			Expect(parent).To(BeNil())
		})
	})

	Context("with a subsystem and no type", func() {
		It("should return the nearest ancestor in the subsystem", func() {
			parent, err := mustResolve(sda1Syspath).ParentWithSubsystem("scsi")
			Expect(err).NotTo(HaveOccurred())
			Expect(parent.Syspath()).To(Equal(scsiSyspath))

			parent, err = mustResolve(sda1Syspath).ParentWithSubsystemDevtype("pci", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(parent.Syspath()).To(Equal(hbaSyspath))
			Expect(present(parent.Driver())).To(Equal("mptspi"))
		})

		It("should return nil when no ancestor is in the subsystem", func() {
			parent, err := mustResolve(sda1Syspath).ParentWithSubsystem("usb")
			Expect(err).NotTo(HaveOccurred())
			Expect(parent).To(BeNil())

			parent, err = mustResolve(cpu0Syspath).ParentWithSubsystem("cpu")
			Expect(err).NotTo(HaveOccurred())
			Expect(parent).To(BeNil())
		})

		It("should never match the device itself", func() {
			parent, err := mustResolve(sdaSyspath).ParentWithSubsystem("block")
			Expect(err).NotTo(HaveOccurred())
			Expect(parent).To(BeNil())
		})
	})

	Context("with no subsystem and a type", func() {
		It("should fail with an invalid argument error", func() {
			dev := mustResolve(sda1Syspath)
			for _, devtype := range []string{"disk", "partition", "", "anything"} {
				parent, err := dev.ParentWithSubsystemDevtype("", devtype)
				Expect(err).To(MatchError(udev.ErrInvalidArgument))
				Expect(parent).To(BeNil())
			}
		})
	})

	Context("ancestors", func() {
		It("should list every ancestor nearest first", func() {
			ancestors, err := mustResolve(sda1Syspath).Ancestors()
			Expect(err).NotTo(HaveOccurred())
			Expect(syspaths(ancestors)).To(Equal([]string{
				sdaSyspath,
				scsiSyspath,
				tgtSyspath,
				hostSyspath,
				hbaSyspath,
				pciSyspath,
			}))
		})

		It("should treat a device without a resolver as parentless", func() {
			var dev udev.Device
			parent, err := dev.Parent()
			Expect(err).NotTo(HaveOccurred())
			Expect(parent).To(BeNil())

			ancestors, err := dev.Ancestors()
			Expect(err).NotTo(HaveOccurred())
			Expect(ancestors).To(BeEmpty())

			parent, err = dev.ParentWithSubsystem(udev.BlockSubsystem)
			Expect(err).NotTo(HaveOccurred())
			Expect(parent).To(BeNil())
		})

		It("should be empty at the top of the tree", func() {
			ancestors, err := mustResolve(nullSyspath).Ancestors()
			Expect(err).NotTo(HaveOccurred())
			Expect(ancestors).To(BeEmpty())
		})

		It("should accept arbitrary predicates", func() {
			parent, err := mustResolve(sda1Syspath).ParentMatching(func(d *udev.Device) bool {
				_, hasDriver := d.Driver()
				return hasDriver
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(parent.Syspath()).To(Equal(scsiSyspath))
		})
	})
})
