package config

import (
	"bytes"
	"os"
	"path/filepath"

	natomic "github.com/natefinch/atomic"
)

// Persist durably rewrites the project config file at workDir/FileName with
// cfg, using a temp-file-plus-rename so a crash mid-write never leaves a
// truncated or partially-written config behind. Mirrors the teacher's
// atomic.WriteFile usage for its binary cache.
func Persist(workDir string, cfg Config) (string, error) {
	data, err := Format(cfg)
	if err != nil {
		return "", err
	}

	path := filepath.Join(workDir, FileName)

	if err := natomic.WriteFile(path, bytes.NewReader([]byte(data+"\n"))); err != nil {
		return "", err
	}

	return path, nil
}

// EnsureDataDir creates dir (and its parents) if missing.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
