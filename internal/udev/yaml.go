package udev

type deviceYAML struct {
	Syspath         string            `yaml:"syspath"`
	Sysname         string            `yaml:"sysname"`
	Sysnum          *string           `yaml:"sysnum,omitempty"`
	Devpath         string            `yaml:"devpath"`
	Devnode         *string           `yaml:"devnode,omitempty"`
	Devnum          *uint64           `yaml:"devnum,omitempty"`
	Major           *uint32           `yaml:"major,omitempty"`
	Minor           *uint32           `yaml:"minor,omitempty"`
	Devtype         *string           `yaml:"devtype,omitempty"`
	Subsystem       *string           `yaml:"subsystem,omitempty"`
	Driver          *string           `yaml:"driver,omitempty"`
	Initialized     bool              `yaml:"initialized"`
	UsecInitialized *uint64           `yaml:"usecInitialized,omitempty"`
	Devlinks        []string          `yaml:"devlinks,omitempty"`
	Tags            []string          `yaml:"tags,omitempty"`
	Properties      map[string]string `yaml:"properties,omitempty"`
}

// MarshalYAML implements yaml.Marshaler. Absent attributes are omitted.
func (d *Device) MarshalYAML() (any, error) {
	out := deviceYAML{
		Syspath:         d.syspath,
		Sysname:         d.sysname,
		Sysnum:          d.sysnum,
		Devpath:         d.devpath,
		Devnode:         d.devnode,
		Devtype:         d.devtype,
		Subsystem:       d.subsystem,
		Driver:          d.driver,
		Initialized:     d.initialized,
		UsecInitialized: d.usecInitialized,
		Devlinks:        d.devlinks,
		Tags:            d.tags,
		Properties:      d.properties,
	}
	if d.devnum != nil {
		raw, major, minor := d.devnum.Raw(), d.devnum.Major(), d.devnum.Minor()
		out.Devnum, out.Major, out.Minor = &raw, &major, &minor
	}
	return out, nil
}
