package aerobasic

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// ConfigEnv is the environment variable holding the directory of conf.toml.
const ConfigEnv = "AEROBASIC_CONFIG"

// Config is the toolkit configuration.
type Config struct {
	Integrator IntegratorConfig
	LogLevel   string
}

// IntegratorConfig returns the validated integrator settings.
func (c Config) IntegratorConfig() (IntegratorConfig, error) {
	return c.Integrator, c.Integrator.Validate()
}

func setDefaults(v *viper.Viper) {
	def := DefaultIntegratorConfig()
	v.SetDefault("integrator.tolerance", def.Tolerance)
	v.SetDefault("integrator.initial_step", def.InitialStep)
	v.SetDefault("integrator.max_steps", def.MaxSteps)
	v.SetDefault("integrator.max_duration", def.MaxDuration)
	v.SetDefault("integrator.sample_interval", def.SampleInterval)
	v.SetDefault("integrator.shrink_factor", def.ShrinkFactor)
	v.SetDefault("integrator.adaptive", !def.FixedStep)
	v.SetDefault("log.level", "info")
}

// DefaultConfig returns the configuration used when no file is provided.
func DefaultConfig() Config {
	v := viper.New()
	setDefaults(v)
	return configFrom(v)
}

// LoadConfig reads the configuration file at path. The path may be a file, or a
// directory containing conf.toml.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	if info, err := os.Stat(path); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfiguration, err)
	} else if info.IsDir() {
		v.SetConfigName("conf")
		v.SetConfigType("toml")
		v.AddConfigPath(path)
	} else {
		v.SetConfigFile(path)
	}
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("%w: reading %s: %s", ErrConfiguration, filepath.Clean(path), err)
	}
	conf := configFrom(v)
	if err := conf.Integrator.Validate(); err != nil {
		return Config{}, err
	}
	return conf, nil
}

// ConfigFromEnv loads the configuration from the directory in AEROBASIC_CONFIG,
// or returns the defaults if the variable is empty.
func ConfigFromEnv() (Config, error) {
	confPath := os.Getenv(ConfigEnv)
	if confPath == "" {
		return DefaultConfig(), nil
	}
	return LoadConfig(confPath)
}

// IntegratorConfigFrom overrides base with the integrator.* keys set in v,
// which must not carry defaults for these keys.
func IntegratorConfigFrom(v *viper.Viper, base IntegratorConfig) IntegratorConfig {
	c := base
	if v.IsSet("integrator.tolerance") {
		c.Tolerance = v.GetFloat64("integrator.tolerance")
	}
	if v.IsSet("integrator.initial_step") {
		c.InitialStep = v.GetFloat64("integrator.initial_step")
	}
	if v.IsSet("integrator.max_steps") {
		c.MaxSteps = v.GetInt("integrator.max_steps")
	}
	if v.IsSet("integrator.max_duration") {
		c.MaxDuration = v.GetFloat64("integrator.max_duration")
	}
	if v.IsSet("integrator.sample_interval") {
		c.SampleInterval = v.GetFloat64("integrator.sample_interval")
	}
	if v.IsSet("integrator.shrink_factor") {
		c.ShrinkFactor = v.GetFloat64("integrator.shrink_factor")
	}
	if v.IsSet("integrator.adaptive") {
		c.FixedStep = !v.GetBool("integrator.adaptive")
	}
	return c
}

func configFrom(v *viper.Viper) Config {
	return Config{
		Integrator: IntegratorConfig{
			Tolerance:      v.GetFloat64("integrator.tolerance"),
			InitialStep:    v.GetFloat64("integrator.initial_step"),
			MaxSteps:       v.GetInt("integrator.max_steps"),
			MaxDuration:    v.GetFloat64("integrator.max_duration"),
			SampleInterval: v.GetFloat64("integrator.sample_interval"),
			ShrinkFactor:   v.GetFloat64("integrator.shrink_factor"),
			FixedStep:      !v.GetBool("integrator.adaptive"),
		},
		LogLevel: v.GetString("log.level"),
	}
}
