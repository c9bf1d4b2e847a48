package config

import (
	"fmt"

	"github.com/kbukum/resolvekit/compiler"
	"github.com/kbukum/resolvekit/logger"
	"github.com/kbukum/resolvekit/observability"
	"github.com/kbukum/resolvekit/registry"
)

// Config describes how a container is assembled: lookup behaviour,
// compiler behaviour, logging and telemetry.
//
// Example:
//
//	type AppConfig struct {
//	    config.Config `yaml:",inline" mapstructure:",squash"`
//	    Database DatabaseConfig `yaml:"database" mapstructure:"database"`
//	}
type Config struct {
	Name          string               `yaml:"name" mapstructure:"name" validate:"required"`
	Environment   string               `yaml:"environment" mapstructure:"environment" validate:"oneof=development staging production"`
	Registry      RegistryConfig       `yaml:"registry" mapstructure:"registry"`
	Compiler      CompilerConfig       `yaml:"compiler" mapstructure:"compiler"`
	Logging       logger.Config        `yaml:"logging" mapstructure:"logging"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// RegistryConfig controls target lookup.
type RegistryConfig struct {
	DisableContravariance bool `yaml:"disable_contravariance" mapstructure:"disable_contravariance"`
	DisableCovariance     bool `yaml:"disable_covariance" mapstructure:"disable_covariance"`
	DisableEnumerables    bool `yaml:"disable_enumerables" mapstructure:"disable_enumerables"`
	DisableArrays         bool `yaml:"disable_arrays" mapstructure:"disable_arrays"`
	DisallowMultiple      bool `yaml:"disallow_multiple" mapstructure:"disallow_multiple"`
}

// CompilerConfig controls target compilation.
type CompilerConfig struct {
	DisableSharedExpressions bool `yaml:"disable_shared_expressions" mapstructure:"disable_shared_expressions"`
}

// GetConfig returns c. When Config is embedded the method is promoted, so
// the embedding struct can be handed to code that needs the container part.
func (c *Config) GetConfig() *Config {
	return c
}

// ApplyDefaults applies default values. Embedding structs that override it
// should call c.Config.ApplyDefaults() first.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "resolvekit"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	c.Logging.ApplyDefaults()
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = c.Name
	}
	if c.Observability.Environment == "" {
		c.Observability.Environment = c.Environment
	}
	c.Observability.ApplyDefaults()
}

// Validate checks the struct tags of c and the logging settings.
func (c *Config) Validate() error {
	if err := Validate(c); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	return nil
}

// RegistryOptions converts the registry settings, attaching l as the
// registry's logger.
func (c *Config) RegistryOptions(l *logger.Logger) registry.Options {
	return registry.Options{
		DisableContravariance: c.Registry.DisableContravariance,
		DisableCovariance:     c.Registry.DisableCovariance,
		DisableEnumerables:    c.Registry.DisableEnumerables,
		DisableArrays:         c.Registry.DisableArrays,
		DisallowMultiple:      c.Registry.DisallowMultiple,
		Logger:                l,
	}
}

// CompilerOptions converts the compiler settings.
func (c *Config) CompilerOptions() compiler.Options {
	return compiler.Options{DisableSharedExpressions: c.Compiler.DisableSharedExpressions}
}
