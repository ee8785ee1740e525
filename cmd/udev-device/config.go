package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ydb-platform/udev-device/internal/udev"
)

const (
	backendSysfs   = "sysfs"
	backendLibudev = "libudev"
)

// ConfigFlag names where the YAML configuration comes from: "file:<path>",
// "env:<VARIABLE>" or "stdin".
type ConfigFlag struct {
	kind string
	arg  string
}

func (cf *ConfigFlag) Set(value string) error {
	kind, arg, _ := strings.Cut(value, ":")
	switch {
	case (kind == "file" || kind == "env") && arg != "":
	case value == "stdin":
		kind, arg = value, ""
	default:
		return fmt.Errorf("invalid config source %q, want file:<path>, env:<VARIABLE> or stdin", value)
	}
	cf.kind, cf.arg = kind, arg
	return nil
}

func (cf *ConfigFlag) String() string {
	if cf.arg == "" {
		return cf.kind
	}
	return cf.kind + ":" + cf.arg
}

func (cf *ConfigFlag) isSet() bool {
	return cf.kind != ""
}

func (cf *ConfigFlag) open() (io.ReadCloser, error) {
	switch cf.kind {
	case "file":
		file, err := os.Open(cf.arg)
		if err != nil {
			return nil, err
		}
		return file, nil
	case "env":
		data := os.Getenv(cf.arg)
		if data == "" {
			return nil, fmt.Errorf("environment variable %s is not set", cf.arg)
		}
		return io.NopCloser(strings.NewReader(data)), nil
	case "stdin":
		return io.NopCloser(os.Stdin), nil
	}
	return nil, errors.New("no config source")
}

type SysfsConfig struct {
	Root        string `yaml:"root"`
	UdevDataDir string `yaml:"udevData"`
	DevRoot     string `yaml:"dev"`
}

func (sc *SysfsConfig) validate() error {
	var errs error
	for name, p := range map[string]string{"root": sc.Root, "udevData": sc.UdevDataDir, "dev": sc.DevRoot} {
		if p != "" && !path.IsAbs(p) {
			errs = errors.Join(errs, fmt.Errorf(".%s: %q must be an absolute path", name, p))
		}
	}
	return errs
}

func (sc *SysfsConfig) options() []udev.Option {
	var opts []udev.Option
	if sc.Root != "" {
		opts = append(opts, udev.WithSysRoot(sc.Root))
	}
	if sc.UdevDataDir != "" {
		opts = append(opts, udev.WithUdevDataDir(sc.UdevDataDir))
	}
	if sc.DevRoot != "" {
		opts = append(opts, udev.WithDevRoot(sc.DevRoot))
	}
	return opts
}

type ParentConfig struct {
	Subsystem string `yaml:"subsystem"`
	DevType   string `yaml:"devtype,omitempty"`
}

// QueryConfig selects one device by syspath or by device id ("c1:3").
type QueryConfig struct {
	// Syspath is kept untyped so a malformed entry is reported per query
	// instead of failing the whole document.
	Syspath   any           `yaml:"syspath,omitempty"`
	Devnum    string        `yaml:"devnum,omitempty"`
	Parent    *ParentConfig `yaml:"parent,omitempty"`
	Ancestors bool          `yaml:"ancestors,omitempty"`
}

type Config struct {
	Backend string        `yaml:"backend"`
	Sysfs   SysfsConfig   `yaml:"sysfs"`
	Queries []QueryConfig `yaml:"queries"`
}

func (c *Config) validate() error {
	var errs error
	switch c.Backend {
	case "":
		c.Backend = backendSysfs
	case backendSysfs, backendLibudev:
	default:
		errs = errors.Join(errs, fmt.Errorf(".backend: %q must be %q or %q", c.Backend, backendSysfs, backendLibudev))
	}

	if err := c.Sysfs.validate(); err != nil {
		errs = errors.Join(errs, fmt.Errorf(".sysfs%w", err))
	}

	for i, q := range c.Queries {
		switch {
		case q.Syspath == nil && q.Devnum == "":
			errs = errors.Join(errs, fmt.Errorf(".queries[%d]: one of syspath or devnum must be set", i))
		case q.Syspath != nil && q.Devnum != "":
			errs = errors.Join(errs, fmt.Errorf(".queries[%d]: syspath and devnum are mutually exclusive", i))
		}
	}

	return errs
}

func (c *Config) resolver() (udev.Resolver, error) {
	if c.Backend == backendLibudev {
		l, err := udev.NewLibudev()
		if err != nil {
			return nil, err
		}
		return l, nil
	}
	return udev.NewSysfs(c.Sysfs.options()...), nil
}

func parseConfig(reader io.Reader) (*Config, error) {
	decoder := yaml.NewDecoder(reader)
	config := &Config{}
	if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}
