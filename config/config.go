// Package config holds the settings of the andersen command.
package config

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/BarrensZeppelin/andersen"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Output formats of the points-to sets.
const (
	FormatText = "text"
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Config contains the settings read from a config file. Fields that are not
// defined in the file keep their default value.
type Config struct {
	Options `yaml:",inline"`

	sourceFile string
}

// Options are the solver and output settings.
type Options struct {
	// DisableHCD turns off Hybrid Cycle Detection.
	DisableHCD bool `yaml:"disable-hcd"`

	// DisableLCD turns off Lazy Cycle Detection.
	DisableLCD bool `yaml:"disable-lcd"`

	// LogLevel is one of the logrus level names (panic, fatal, error, warn,
	// info, debug, trace).
	LogLevel string `yaml:"log-level"`

	// Format is the output format: text, yaml or json. When empty the format
	// is chosen based on whether the output is a terminal.
	Format string `yaml:"format"`

	// Parallelism bounds the number of functions translated concurrently.
	Parallelism int `yaml:"parallelism"`

	// SortOutput sorts every points-to set in the output.
	SortOutput bool `yaml:"sort-output"`
}

// NewDefault returns the default config.
func NewDefault() *Config {
	return &Config{
		Options: Options{
			DisableHCD:  false,
			DisableLCD:  false,
			LogLevel:    log.InfoLevel.String(),
			Format:      "",
			Parallelism: runtime.GOMAXPROCS(0),
			SortOutput:  true,
		},
	}
}

// Load reads a configuration from a file.
func Load(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	defer f.Close()

	cfg, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	cfg.sourceFile = filename
	return cfg, nil
}

// Read reads a YAML configuration from r.
func Read(r io.Reader) (*Config, error) {
	cfg := NewDefault()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	switch c.Format {
	case "", FormatText, FormatYAML, FormatJSON:
	default:
		return fmt.Errorf("unknown output format %q", c.Format)
	}

	if c.Parallelism <= 0 {
		c.Parallelism = runtime.GOMAXPROCS(0)
	}
	return nil
}

// SourceFile returns the file the config was loaded from, if any.
func (c *Config) SourceFile() string {
	return c.sourceFile
}

// SolveConfig returns the solver settings of c, logging to logger.
func (c *Config) SolveConfig(logger log.FieldLogger) andersen.SolveConfig {
	return andersen.SolveConfig{
		DisableHCD: c.DisableHCD,
		DisableLCD: c.DisableLCD,
		Logger:     logger,
	}
}

// NewLogger returns a logger writing to stderr at the level of the config.
func NewLogger(c *Config) *log.Logger {
	logger := log.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})

	if level, err := log.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	return logger
}
