// Package config loads bitlog's configuration with the precedence chain
// defaults < global config < project config < CLI overrides, the way the
// teacher's root package loads ticket configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
)

// Config holds all configuration options for a bitlog store.
type Config struct {
	DataDir              string `json:"data_dir"`
	CompactionThresholdB int64  `json:"compaction_threshold_bytes,omitempty"`
	Verbose              bool   `json:"verbose,omitempty"`
}

// Sources tracks which config files contributed to the resolved Config, for
// `bitlog config` to report provenance.
type Sources struct {
	Global  string
	Project string
}

// Default returns the baseline configuration applied before any file or
// flag is consulted.
func Default() Config {
	return Config{
		DataDir:              "./data",
		CompactionThresholdB: 1 << 20,
	}
}

// FileName is the project-local config file name.
const FileName = ".bitlog.jsonc"

// globalConfigPath returns $XDG_CONFIG_HOME/bitlog/config.jsonc, falling
// back to ~/.config/bitlog/config.jsonc. Returns "" if neither can be
// determined.
func globalConfigPath(env []string) string {
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, "XDG_CONFIG_HOME="); ok {
			return filepath.Join(after, "bitlog", "config.jsonc")
		}
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "bitlog", "config.jsonc")
	}

	home, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(home, ".config", "bitlog", "config.jsonc")
	}

	return ""
}

// Load resolves configuration with precedence (highest wins):
//  1. Default()
//  2. Global config file, if present
//  3. Project config file (workDir/.bitlog.jsonc, or configPath if non-empty)
//  4. cliOverrides, applied field-by-field only where hasDataDirOverride /
//     hasThresholdOverride / hasVerboseOverride say the flag was actually set
func Load(workDir, configPath string, cliOverrides Config, hasDataDirOverride, hasThresholdOverride, hasVerboseOverride bool, env []string) (Config, Sources, error) {
	cfg := Default()

	var sources Sources

	globalCfg, globalPath, err := loadGlobalConfig(env)
	if err != nil {
		return Config{}, Sources{}, err
	}
	sources.Global = globalPath
	cfg = merge(cfg, globalCfg)

	projectCfg, projectPath, err := loadProjectConfig(workDir, configPath)
	if err != nil {
		return Config{}, Sources{}, err
	}
	sources.Project = projectPath
	cfg = merge(cfg, projectCfg)

	if hasDataDirOverride {
		cfg.DataDir = cliOverrides.DataDir
	}
	if hasThresholdOverride {
		cfg.CompactionThresholdB = cliOverrides.CompactionThresholdB
	}
	if hasVerboseOverride {
		cfg.Verbose = cliOverrides.Verbose
	}

	if err := validate(cfg); err != nil {
		return Config{}, Sources{}, err
	}

	return cfg, sources, nil
}

func loadGlobalConfig(env []string) (Config, string, error) {
	path := globalConfigPath(env)
	if path == "" {
		return Config{}, "", nil
	}

	cfg, loaded, err := loadConfigFile(path, false)
	if err != nil {
		return Config{}, "", err
	}
	if !loaded {
		return Config{}, "", nil
	}

	return cfg, path, nil
}

func loadProjectConfig(workDir, configPath string) (Config, string, error) {
	var cfgFile string
	var mustExist bool

	if configPath != "" {
		cfgFile = configPath
		if !filepath.IsAbs(cfgFile) {
			cfgFile = filepath.Join(workDir, cfgFile)
		}
		mustExist = true

		if _, err := os.Stat(cfgFile); err != nil {
			return Config{}, "", fmt.Errorf("%w: %s", errConfigFileNotFound, configPath)
		}
	} else {
		cfgFile = filepath.Join(workDir, FileName)
		mustExist = false
	}

	cfg, loaded, err := loadConfigFile(cfgFile, mustExist)
	if err != nil {
		return Config{}, "", err
	}
	if !loaded {
		return Config{}, "", nil
	}

	return cfg, cfgFile, nil
}

func loadConfigFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}
		if mustExist {
			return Config{}, false, fmt.Errorf("%w: %s", errConfigFileRead, path)
		}
		return Config{}, false, nil
	}

	cfg, err := parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
	}

	return cfg, true, nil
}

// parse standardizes JWCC (JSON-with-comments, trailing commas) to strict
// JSON before decoding, so config files may carry `//` comments.
func parse(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.DataDir != "" {
		base.DataDir = overlay.DataDir
	}
	if overlay.CompactionThresholdB != 0 {
		base.CompactionThresholdB = overlay.CompactionThresholdB
	}
	if overlay.Verbose {
		base.Verbose = true
	}

	return base
}

func validate(cfg Config) error {
	if cfg.DataDir == "" {
		return errDataDirEmpty
	}
	if cfg.CompactionThresholdB < 0 {
		return errThresholdNegative
	}

	return nil
}

// Format returns cfg as pretty-printed JSON, the form [Persist] writes.
func Format(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format config: %w", err)
	}

	return string(data), nil
}
