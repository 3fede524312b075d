package sim

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"time"

	"github.com/joeycumines/go-fiberevent"
	"github.com/joeycumines/logiface"
	"gopkg.in/yaml.v3"
)

// Config describes a simulation run.
type Config struct {
	// Cores is the number of cores, each driven by its own scheduler.
	Cores int `yaml:"cores"`
	// Duration bounds the run. Zero runs until all work finishes, which
	// never happens while interrupt sources are configured.
	Duration time.Duration `yaml:"duration"`
	// LogLevel is a syslog keyword, e.g. "info" or "debug".
	LogLevel string `yaml:"log_level"`
	// MetricsAddr, if set, serves /metrics on that address during the run.
	MetricsAddr string `yaml:"metrics_addr"`

	IRQs    []IRQConfig    `yaml:"irqs"`
	Lookups []LookupConfig `yaml:"lookups"`
	Alarms  []AlarmConfig  `yaml:"alarms"`

	// Hosts, if not empty, replaces the system resolver with a static
	// table of host names to addresses.
	Hosts map[string][]string `yaml:"hosts"`
}

// IRQConfig is an interrupt source, raised every Period from its own
// goroutine, and handled by a fiber on Core.
type IRQConfig struct {
	Name   string        `yaml:"name"`
	Core   int           `yaml:"core"`
	Period time.Duration `yaml:"period"`
}

// LookupConfig is a host lookup, made once by a fiber on Core.
type LookupConfig struct {
	Host    string `yaml:"host"`
	Core    int    `yaml:"core"`
	Network string `yaml:"network"`
}

// AlarmConfig is an alarm on Core, first firing after In. A non-zero Repeat
// reschedules it (negative keeps a fixed period, see fiber.AlarmFunc), up
// to Count firings in total, zero meaning no limit.
type AlarmConfig struct {
	Name   string        `yaml:"name"`
	Core   int           `yaml:"core"`
	In     time.Duration `yaml:"in"`
	Repeat time.Duration `yaml:"repeat"`
	Count  int           `yaml:"count"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Cores:    2,
		Duration: time.Second,
		LogLevel: logiface.LevelInformational.String(),
	}
}

// LoadConfig reads a YAML config file, over the defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML data, over the defaults. Unknown fields are
// rejected.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the config for values the simulation cannot run.
func (c *Config) Validate() error {
	var errs []error
	if c.Cores < 1 || c.Cores > fiberevent.MaxCores {
		errs = append(errs, fmt.Errorf("cores: must be between 1 and %d, got %d", fiberevent.MaxCores, c.Cores))
	}
	if c.Duration < 0 {
		errs = append(errs, fmt.Errorf("duration: must not be negative, got %s", c.Duration))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	checkCore := func(field string, core int) {
		if core < 0 || core >= c.Cores {
			errs = append(errs, fmt.Errorf("%s: core %d out of range", field, core))
		}
	}
	for i, v := range c.IRQs {
		field := fmt.Sprintf("irqs[%d]", i)
		checkCore(field, v.Core)
		if v.Period <= 0 {
			errs = append(errs, fmt.Errorf("%s: period must be positive", field))
		}
	}
	for i, v := range c.Lookups {
		field := fmt.Sprintf("lookups[%d]", i)
		checkCore(field, v.Core)
		if v.Host == "" {
			errs = append(errs, fmt.Errorf("%s: empty host", field))
		}
	}
	for i, v := range c.Alarms {
		field := fmt.Sprintf("alarms[%d]", i)
		checkCore(field, v.Core)
		if v.In < 0 {
			errs = append(errs, fmt.Errorf("%s: in must not be negative", field))
		}
		if v.Count < 0 {
			errs = append(errs, fmt.Errorf("%s: count must not be negative", field))
		}
	}
	for host, addrs := range c.Hosts {
		for _, s := range addrs {
			if _, err := netip.ParseAddr(s); err != nil {
				errs = append(errs, fmt.Errorf("hosts[%s]: %w", host, err))
			}
		}
	}
	return errors.Join(errs...)
}

// ParseLevel maps a syslog keyword, as printed by [logiface.Level.String],
// to its level.
func ParseLevel(s string) (logiface.Level, error) {
	for level := logiface.LevelDisabled; level <= logiface.LevelTrace; level++ {
		if level.String() == s {
			return level, nil
		}
	}
	return logiface.LevelDisabled, fmt.Errorf("unknown log level %q", s)
}
