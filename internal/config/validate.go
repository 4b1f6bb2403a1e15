package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCompiler(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCompiler() error {
	if c.Compiler.SpeedMin >= c.Compiler.SpeedMax {
		return fmt.Errorf("compiler.speed_min (%g) must be below compiler.speed_max (%g)", c.Compiler.SpeedMin, c.Compiler.SpeedMax)
	}
	if c.Compiler.SpeedMin > 1 || c.Compiler.SpeedMax < 1 {
		return errors.New("compiler speed range must include 1.0")
	}
	if c.Compiler.DuckingDB > 0 {
		return errors.New("compiler.ducking_db must be zero or negative")
	}
	return nil
}

func (c *Config) validateOutput() error {
	if c.Output.CRF < 0 || c.Output.CRF > 51 {
		return fmt.Errorf("output.crf must be in [0, 51], got %d", c.Output.CRF)
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
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
