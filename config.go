/*
 * Copyright (c) 2020 Go IoC
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 */

package di

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables overriding container settings, e.g. BLOOM_TEARDOWN_POLICY.
const EnvPrefix = "BLOOM"

// Config holds the container settings. Bean wiring itself is never configured here.
type Config struct {
	// LogLevel is applied to the container logger when set.
	LogLevel string `mapstructure:"log_level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	// AutoProxy enables the extension wrapping advised beans into proxies.
	AutoProxy bool `mapstructure:"auto_proxy"`
	// TeardownPolicy decides whether Close stops at the first failing bean.
	TeardownPolicy TeardownPolicy `mapstructure:"teardown_policy" validate:"omitempty,oneof=fail-fast continue"`
	// StrictTypeResolution turns an ambiguous lookup by type into an error.
	StrictTypeResolution bool `mapstructure:"strict_type_resolution"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		AutoProxy:      true,
		TeardownPolicy: FailFast,
	}
}

var validate = validator.New()

// Validate checks the settings.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid container config: %w", err)
	}
	return nil
}

// LoadConfig reads the config file name (without extension) from paths, then applies environment overrides.
// A missing file is not an error: defaults and the environment are used instead.
func LoadConfig(name string, paths ...string) (Config, error) {
	v := viper.New()
	defaults := DefaultConfig()
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("auto_proxy", defaults.AutoProxy)
	v.SetDefault("teardown_policy", string(defaults.TeardownPolicy))
	v.SetDefault("strict_type_resolution", defaults.StrictTypeResolution)

	v.SetConfigName(name)
	for _, path := range paths {
		v.AddConfigPath(path)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read container config: %w", err)
		}
		logrus.WithField("name", name).Debug("No container config file found, using defaults")
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("decode container config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}
