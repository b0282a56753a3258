// Package config loads the daemon configuration. Values are taken from the
// defaults, then the TOML file, then LEDD_* environment variables, then
// command line flags that were explicitly set.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/gloworm-vision/gloworm-led/hardware"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const envPrefix = "LEDD_"

type Config struct {
	Addr     string `toml:"addr"`
	DBPath   string `toml:"db"`
	LogLevel string `toml:"log_level"`

	// Hardware seeds the stored board layout on first run.
	Hardware hardware.Config `toml:"hardware"`
}

func Default() Config {
	return Config{
		Addr:     ":8080",
		DBPath:   "ledd.db",
		LogLevel: "info",
		Hardware: hardware.Config{
			Bank: hardware.BankConfig{Driver: hardware.DriverSim},
		},
	}
}

// Load reads the TOML file at path over the defaults. A missing file is not
// an error.
func Load(path string) (Config, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config, nil
	} else if err != nil {
		return config, fmt.Errorf("unable to read config: %w", err)
	}

	if err := toml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("unable to parse config %s: %w", path, err)
	}

	return config, nil
}

// flagFields maps flag names to the fields they override.
func (c *Config) flagFields() map[string]*string {
	return map[string]*string{
		"addr":      &c.Addr,
		"db":        &c.DBPath,
		"log-level": &c.LogLevel,
	}
}

// RegisterFlags adds the overridable settings to flags, defaulted from c.
func (c *Config) RegisterFlags(flags *pflag.FlagSet) {
	flags.String("addr", c.Addr, "HTTP listen address")
	flags.String("db", c.DBPath, "path to the bbolt database")
	flags.String("log-level", c.LogLevel, "log level (trace, debug, info, warn, error)")
}

// ApplyEnv overrides settings from LEDD_ADDR, LEDD_DB and LEDD_LOG_LEVEL.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	env := map[string]*string{
		"ADDR":      &c.Addr,
		"DB":        &c.DBPath,
		"LOG_LEVEL": &c.LogLevel,
	}

	for key, field := range env {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			*field = v
		}
	}
}

// ApplyFlags overrides settings with the flags of cmd that were set on the
// command line.
func (c *Config) ApplyFlags(cmd *cobra.Command) {
	fields := c.flagFields()

	// Visit only walks flags that were changed.
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if field, ok := fields[f.Name]; ok {
			*field = f.Value.String()
		}
	})
}
