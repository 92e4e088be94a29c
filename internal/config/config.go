// Package config loads the settings of the dansbag command from a YAML file and
// DANSBAG_* environment variables.
package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/birkland/dansbag"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Output formats of validation reports
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config holds the settings of the dansbag command
type Config struct {
	Mode          dansbag.Mode  `yaml:"mode"`
	Workers       int           `yaml:"workers"`
	FixityWorkers int           `yaml:"fixity_workers"`
	Timeout       time.Duration `yaml:"timeout"`
	Format        string        `yaml:"format"`
	Extensions    string        `yaml:"extensions"`

	Logging struct {
		Level  string `yaml:"level"`  // debug|info|warn|error
		Format string `yaml:"format"` // json|console
	} `yaml:"logging"`
}

// Default settings, used for anything the file and environment leave out
func Default() Config {
	var c Config
	c.Mode = dansbag.Deposit
	c.Workers = 1
	c.FixityWorkers = runtime.NumCPU()
	c.Timeout = 10 * time.Minute
	c.Format = FormatText
	c.Logging.Level = "warn"
	c.Logging.Format = "console"
	return c
}

// Load reads the configuration file (if path is not empty), and applies environment
// overrides
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, env func(string) (string, bool)) (Config, error) {
	c := Default()

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return c, errors.Wrapf(err, "could not read configuration")
		}
		if err := yaml.Unmarshal(content, &c); err != nil {
			return c, errors.Wrapf(err, "malformed configuration in %s", path)
		}
	}

	if err := c.override(env); err != nil {
		return c, err
	}
	return c, c.Validate()
}

func (c *Config) override(env func(string) (string, bool)) error {
	var err error
	set := func(name string, apply func(v string) error) {
		if v, ok := env(name); ok && v != "" && err == nil {
			if e := apply(v); e != nil {
				err = errors.Wrapf(e, "bad value for %s", name)
			}
		}
	}

	set("DANSBAG_MODE", func(v string) error {
		return c.Mode.UnmarshalText([]byte(v))
	})
	set("DANSBAG_WORKERS", func(v string) (e error) {
		c.Workers, e = strconv.Atoi(v)
		return e
	})
	set("DANSBAG_FIXITY_WORKERS", func(v string) (e error) {
		c.FixityWorkers, e = strconv.Atoi(v)
		return e
	})
	set("DANSBAG_TIMEOUT", func(v string) (e error) {
		c.Timeout, e = time.ParseDuration(v)
		return e
	})
	set("DANSBAG_FORMAT", func(v string) error {
		c.Format = v
		return nil
	})
	set("DANSBAG_EXTENSIONS", func(v string) error {
		c.Extensions = v
		return nil
	})
	set("DANSBAG_LOG_LEVEL", func(v string) error {
		c.Logging.Level = v
		return nil
	})
	set("DANSBAG_LOG_FORMAT", func(v string) error {
		c.Logging.Format = v
		return nil
	})
	return err
}

// Validate checks the settings for values the command cannot work with
func (c Config) Validate() error {
	var problems []string
	if c.Workers < 1 {
		problems = append(problems, "workers must be at least 1")
	}
	if c.FixityWorkers < 1 {
		problems = append(problems, "fixity_workers must be at least 1")
	}
	if c.Timeout < 0 {
		problems = append(problems, "timeout must not be negative")
	}
	if c.Format != FormatText && c.Format != FormatJSON {
		problems = append(problems, "format must be text or json")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		problems = append(problems, "logging.level must be debug, info, warn or error")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		problems = append(problems, "logging.format must be json or console")
	}

	if len(problems) > 0 {
		return errors.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Logger builds the logger the settings describe.  Logs go to standard error, so they
// never mix with reports.
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, errors.Wrapf(err, "bad log level")
	}

	config := zap.NewProductionConfig()
	if c.Logging.Format == "console" {
		config = zap.NewDevelopmentConfig()
	}
	config.Level = zap.NewAtomicLevelAt(level)
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	logger, err := config.Build()
	return logger, errors.Wrapf(err, "could not build logger")
}
