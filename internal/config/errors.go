package config

import "errors"

var (
	errConfigFileNotFound = errors.New("config file not found")
	errConfigFileRead     = errors.New("failed to read config file")
	errConfigInvalid      = errors.New("invalid config file")
	errDataDirEmpty       = errors.New("data_dir must not be empty")
	errThresholdNegative  = errors.New("compaction_threshold_bytes must not be negative")
)
