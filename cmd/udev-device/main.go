package main

import (
	"flag"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"k8s.io/klog/v2"
)

func main() {
	defer klog.Flush()

	flags := initFlags()

	resolver, err := flags.config.resolver()
	if err != nil {
		klog.Fatalf("failed to create %s resolver: %v", flags.config.Backend, err)
	}

	encoder := yaml.NewEncoder(os.Stdout)
	encoder.SetIndent(2)

	failed := 0
	for _, query := range flags.config.Queries {
		res := runQuery(resolver, query)
		if res.Error != "" {
			failed++
		}
		if err := encoder.Encode(res); err != nil {
			klog.Fatalf("failed to write result for %v: %v", query.Syspath, err)
		}
	}
	if err := encoder.Close(); err != nil {
		klog.Fatalf("failed to flush output: %v", err)
	}

	if failed > 0 {
		klog.Errorf("%d of %d queries failed", failed, len(flags.config.Queries))
		klog.Flush()
		os.Exit(1)
	}
}

type FlagValues struct {
	Config          ConfigFlag
	Backend         string
	ParentSubsystem string
	ParentDevType   string
	Ancestors       bool

	config *Config
}

// queries turns positional arguments into queries using the flag selectors.
// Absolute paths are syspaths, anything else a device id such as "b8:0".
func (fv *FlagValues) queries(args []string) []QueryConfig {
	queries := make([]QueryConfig, 0, len(args))
	for _, arg := range args {
		q := QueryConfig{Ancestors: fv.Ancestors}
		if strings.HasPrefix(arg, "/") {
			q.Syspath = arg
		} else {
			q.Devnum = arg
		}
		if fv.ParentSubsystem != "" || fv.ParentDevType != "" {
			q.Parent = &ParentConfig{Subsystem: fv.ParentSubsystem, DevType: fv.ParentDevType}
		}
		queries = append(queries, q)
	}
	return queries
}

func initFlags() FlagValues {
	values := FlagValues{}
	flags := flag.NewFlagSet("udev-device", flag.ExitOnError)
	klog.InitFlags(flags)
	flags.Var(&values.Config, "config", `configuration source (in form "file:<path>", "env:<ENV_VARIABLE>" or "stdin")`)
	flags.StringVar(&values.Backend, "backend", "", `resolver backend, "sysfs" or "libudev" (overrides config)`)
	flags.StringVar(&values.ParentSubsystem, "parent-subsystem", "", "also report the nearest ancestor in this subsystem")
	flags.StringVar(&values.ParentDevType, "parent-devtype", "", "restrict -parent-subsystem to this devtype")
	flags.BoolVar(&values.Ancestors, "ancestors", false, "also report every ancestor device")
	flags.Parse(os.Args[1:])

	if !values.Config.isSet() && flags.NArg() == 0 {
		flags.Output().Write([]byte("either --config or at least one syspath or device id is required\n"))
		flags.Usage()
		os.Exit(2)
	}

	config := &Config{}
	if values.Config.isSet() {
		configReader, err := values.Config.open()
		if err != nil {
			klog.Fatalf("failed to open --config %q: %v", values.Config.String(), err)
		}
		defer configReader.Close()

		config, err = parseConfig(configReader)
		if err != nil {
			klog.Fatalf("failed to parse --config %q: %v", values.Config.String(), err)
		}
	}

	if values.Backend != "" {
		config.Backend = values.Backend
	}
	config.Queries = append(config.Queries, values.queries(flags.Args())...)
	if err := config.validate(); err != nil {
		klog.Fatalf("invalid configuration: %v", err)
	}

	values.config = config

	return values
}
