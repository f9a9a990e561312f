package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLocalize(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.CommonsDir == "" {
		return errors.New("paths.commons_dir must be set")
	}
	if c.Paths.UserDir == "" {
		return errors.New("paths.user_dir must be set")
	}
	if c.Paths.CommonsDir == c.Paths.UserDir {
		return errors.New("paths.commons_dir and paths.user_dir must differ")
	}
	return nil
}

func (c *Config) validateLocalize() error {
	if !c.Localize.Enabled {
		return nil
	}
	if c.Localize.CacheDir == "" {
		return errors.New("localize.cache_dir must be set when localize is enabled")
	}
	if !c.Localize.CacheWorks && !c.Localize.CachePublishes {
		return errors.New("localize is enabled but caches neither works nor publishes")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
