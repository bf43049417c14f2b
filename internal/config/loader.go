package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// ConfigLoader reads the YAML configuration file and layers environment
// variable overrides on top, for fields that must not live in a committed file
// (vendor API keys, store credentials).
type ConfigLoader struct {
	v *viper.Viper
}

func NewConfigLoader() *ConfigLoader {
	v := viper.New()
	v.SetEnvPrefix("TOKENMARKET")
	v.AutomaticEnv()
	return &ConfigLoader{v: v}
}

// LoadConfig reads filename, applies any TOKENMARKET_* environment overrides,
// and fills unset fields with the defaults enumerated in the spec.
func (cl *ConfigLoader) LoadConfig(filename string) (*Config, error) {
	cl.v.SetConfigFile(filename)
	cl.v.SetConfigType("yaml")
	if err := cl.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	var cfg Config
	if err := cl.v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
