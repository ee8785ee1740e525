package main

import (
	"k8s.io/klog/v2"

	"github.com/ydb-platform/udev-device/internal/udev"
)

type result struct {
	Query     any            `yaml:"query"`
	Device    *udev.Device   `yaml:"device,omitempty"`
	Parent    *udev.Device   `yaml:"parent,omitempty"`
	Ancestors []*udev.Device `yaml:"ancestors,omitempty"`
	Error     string         `yaml:"error,omitempty"`
}

func (r *result) fail(err error) result {
	r.Error = err.Error()
	return *r
}

func resolveQuery(resolver udev.Resolver, q QueryConfig) (*udev.Device, error) {
	if q.Devnum == "" {
		return udev.Resolve(resolver, q.Syspath)
	}
	kind, n, err := udev.ParseDeviceID(q.Devnum)
	if err != nil {
		return nil, err
	}
	return resolver.DeviceFromDevnum(kind, n)
}

func runQuery(resolver udev.Resolver, q QueryConfig) result {
	res := result{Query: q.Syspath}
	if q.Devnum != "" {
		res.Query = q.Devnum
	}

	dev, err := resolveQuery(resolver, q)
	if err != nil {
		klog.Errorf("failed to resolve %v: %v", res.Query, err)
		return res.fail(err)
	}
	res.Device = dev

	if q.Parent != nil {
		parent, err := dev.ParentWithSubsystemDevtype(q.Parent.Subsystem, q.Parent.DevType)
		if err != nil {
			klog.Errorf("failed to look up parent of %s: %v", dev, err)
			return res.fail(err)
		}
		if parent == nil {
			klog.V(2).Infof("%s has no parent with subsystem=%q devtype=%q", dev, q.Parent.Subsystem, q.Parent.DevType)
		}
		res.Parent = parent
	}

	if q.Ancestors {
		ancestors, err := dev.Ancestors()
		if err != nil {
			klog.Errorf("failed to walk ancestors of %s: %v", dev, err)
			return res.fail(err)
		}
		res.Ancestors = ancestors
	}

	return res
}
