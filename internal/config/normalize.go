package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeCompiler()
	c.normalizeOutput()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkspaceDir) == "" {
		c.Paths.WorkspaceDir = defaultWorkspaceDir
	}
	if c.Paths.WorkspaceDir, err = expandPath(c.Paths.WorkspaceDir); err != nil {
		return fmt.Errorf("paths.workspace_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.HistoryDB) == "" {
		c.Paths.HistoryDB = defaultHistoryDB
	}
	if c.Paths.HistoryDB, err = expandPath(c.Paths.HistoryDB); err != nil {
		return fmt.Errorf("paths.history_db: %w", err)
	}
	return nil
}

func (c *Config) normalizeTools() {
	if strings.TrimSpace(c.Tools.FFmpegBinary) == "" {
		c.Tools.FFmpegBinary = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Tools.FFprobeBinary) == "" {
		c.Tools.FFprobeBinary = defaultFFprobeBinary
	}
	if c.Tools.ProbeTimeout <= 0 {
		c.Tools.ProbeTimeout = defaultProbeTimeout
	}
	if c.Tools.ProbeWorkers <= 0 {
		c.Tools.ProbeWorkers = defaultProbeWorkers
	}
	if c.Tools.FetchTimeout <= 0 {
		c.Tools.FetchTimeout = defaultFetchTimeout
	}
}

func (c *Config) normalizeCompiler() {
	if c.Compiler.EpsilonMS <= 0 {
		c.Compiler.EpsilonMS = defaultEpsilonMS
	}
	if c.Compiler.GapToleranceMS <= 0 {
		c.Compiler.GapToleranceMS = defaultGapTolerance
	}
	if c.Compiler.SpeedMin <= 0 {
		c.Compiler.SpeedMin = defaultSpeedMin
	}
	if c.Compiler.SpeedMax <= 0 {
		c.Compiler.SpeedMax = defaultSpeedMax
	}
	if c.Compiler.DuckingDB == 0 {
		c.Compiler.DuckingDB = defaultDuckingDB
	}
	if c.Compiler.DuckFade <= 0 {
		c.Compiler.DuckFade = defaultDuckFade
	}
}

func (c *Config) normalizeOutput() {
	if c.Output.Width <= 0 {
		c.Output.Width = defaultOutputWidth
	}
	if c.Output.Height <= 0 {
		c.Output.Height = defaultOutputHeight
	}
	if c.Output.FPS <= 0 {
		c.Output.FPS = defaultOutputFPS
	}
	if strings.TrimSpace(c.Output.Preset) == "" {
		c.Output.Preset = defaultPreset
	}
	if c.Output.CRF <= 0 {
		c.Output.CRF = defaultCRF
	}
	if strings.TrimSpace(c.Output.AudioBitrate) == "" {
		c.Output.AudioBitrate = defaultAudioBitrate
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		trimmed = filepath.Join(home, trimmed[2:])
	}
	return filepath.Clean(trimmed), nil
}
