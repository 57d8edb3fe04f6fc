package config

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

//go:embed schema.cue
var schemaCUE string

// EnvPrefix prefixes environment variables: FIXTUREKIT_BASE_URL, ...
const EnvPrefix = "FIXTUREKIT"

// Flag maps a CLI flag to its configuration key.
type Flag struct {
	Key string
	Cli string
}

// Flags lists every flag that feeds the configuration.
var Flags = []Flag{
	{Key: "base_url", Cli: "base-url"},
	{Key: "driver", Cli: "driver"},
	{Key: "selenium_url", Cli: "selenium-url"},
	{Key: "browser", Cli: "browser"},
	{Key: "reruns", Cli: "reruns"},
	{Key: "timeout", Cli: "timeout"},
	{Key: "select", Cli: "select"},
	{Key: "run", Cli: "run"},
	{Key: "skip", Cli: "skip"},
	{Key: "db", Cli: "db"},
	{Key: "metrics_file", Cli: "metrics-file"},
	{Key: "markers", Cli: "markers"},
	{Key: "strict_markers", Cli: "strict-markers"},
}

// ValidationError is returned when the merged settings violate the schema.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err is a schema violation.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NewViper creates a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("driver", d.Driver)
	v.SetDefault("selenium_url", "")
	v.SetDefault("browser", d.Browser)
	v.SetDefault("reruns", 0)
	v.SetDefault("timeout", "0s")
	v.SetDefault("select", "")
	v.SetDefault("run", []string{})
	v.SetDefault("skip", []string{})
	v.SetDefault("db", "")
	v.SetDefault("metrics_file", "")
	v.SetDefault("markers", "")
	v.SetDefault("strict_markers", false)
	return v
}

// BindFlags binds every known flag present in fs to its configuration key.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, f := range Flags {
		pf := fs.Lookup(f.Cli)
		if pf == nil {
			continue
		}
		if err := v.BindPFlag(f.Key, pf); err != nil {
			return fmt.Errorf("bind flag %q: %w", f.Cli, err)
		}
	}
	return nil
}

// Load merges the settings, reads file when given, and validates the result.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cfg against the embedded CUE schema.
func Validate(cfg *Config) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	value := ctx.Encode(cfg)
	if err := value.Err(); err != nil {
		return &ValidationError{Err: err}
	}

	if err := def.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}
