// Package config loads tool settings from a YAML file and the
// environment and turns them into writer configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/danpilch/gonytprof/pkg/format"
	"github.com/danpilch/gonytprof/pkg/writer"
)

// DefaultOutput is the trace path used when none is configured.
const DefaultOutput = "nytprof.out"

// Environment variables read by ApplyEnv.
const (
	EnvOutput            = "NYTPROF_OUTPUT"
	EnvWriter            = "NYTPROF_WRITER"
	EnvLegacyFraming     = "NYTPROF_LEGACY_FRAMING"
	EnvDebug             = "NYTPROF_DEBUG"
	EnvCompressThreshold = "NYTPROF_COMPRESS_THRESHOLD"
	EnvNVSize            = "NYTPROF_NV_SIZE"
)

// Config holds the tool settings, as read from YAML and the environment.
type Config struct {
	Output            string `yaml:"output"`
	Writer            string `yaml:"writer"`
	LegacyFraming     bool   `yaml:"legacy_framing"`
	Debug             bool   `yaml:"debug"`
	CompressThreshold int    `yaml:"compress_threshold"`
	NVSize            int    `yaml:"nv_size"`
	Application       string `yaml:"application"`

	// Workers bounds concurrent verification; zero means GOMAXPROCS.
	Workers int `yaml:"workers"`

	// PprofAddr, when set, serves runtime profiles of the tool itself.
	PprofAddr string `yaml:"pprof_addr"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Output: DefaultOutput,
		Writer: string(writer.BackendAuto),
		NVSize: format.NVSize8,
	}
}

// Load reads a YAML file over Default. Unknown keys are rejected.
func Load(path string) (Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	conf, err := Decode(file)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return conf, nil
}

// Decode reads YAML from r over Default. An empty document yields the
// defaults.
func Decode(r io.Reader) (Config, error) {
	conf := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&conf); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	return conf, conf.Validate()
}

// ApplyEnv overrides fields from the environment. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvOutput); ok && v != "" {
		c.Output = v
	}
	if v, ok := lookup(EnvWriter); ok && v != "" {
		c.Writer = v
	}
	if v, ok := lookup(EnvLegacyFraming); ok {
		c.LegacyFraming = envBool(v)
	}
	if v, ok := lookup(EnvDebug); ok {
		c.Debug = envBool(v)
	}
	if v, ok := lookup(EnvCompressThreshold); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvCompressThreshold, err)
		}
		c.CompressThreshold = n
	}
	if v, ok := lookup(EnvNVSize); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvNVSize, err)
		}
		c.NVSize = n
	}
	return c.Validate()
}

// envBool treats any non-empty value as true except the usual spellings
// of false.
func envBool(v string) bool {
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	return b
}

// Validate checks the fields a writer would reject later.
func (c Config) Validate() error {
	if _, err := writer.ParseBackend(c.Writer); err != nil {
		return err
	}
	if c.NVSize != 0 && !format.ValidNVSize(c.NVSize) {
		return fmt.Errorf("unsupported nv_size %d", c.NVSize)
	}
	if c.CompressThreshold < 0 {
		return fmt.Errorf("negative compress_threshold %d", c.CompressThreshold)
	}
	if c.Workers < 0 {
		return fmt.Errorf("negative workers %d", c.Workers)
	}
	return nil
}

// Logger returns a logger at WarnLevel, or DebugLevel when Debug is set.
func (c Config) Logger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	if c.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

// WriterConfig converts to a writer configuration. A nil logger gets
// one from Logger.
func (c Config) WriterConfig(logger *logrus.Logger) (writer.Config, error) {
	backend, err := writer.ParseBackend(c.Writer)
	if err != nil {
		return writer.Config{}, err
	}
	if logger == nil {
		logger = c.Logger()
	}
	return writer.Config{
		Backend:           backend,
		LegacyFraming:     c.LegacyFraming,
		Debug:             c.Debug,
		NVSize:            c.NVSize,
		CompressThreshold: c.CompressThreshold,
		Application:       c.Application,
		Logger:            logger,
	}, nil
}
