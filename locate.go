package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// toolDir returns the directory holding this tool's sources. Binaries built
// with -trimpath carry no absolute source path; they fall back to the
// directory of the executable.
func toolDir() (string, error) {
	if _, file, _, ok := runtime.Caller(0); ok && filepath.IsAbs(file) {
		dir := filepath.Dir(file)
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			return dir, nil
		}
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

// referenceDir resolves the directory the reference module is imported from:
// override when set, otherwise the manifest path under base.
func referenceDir(m Manifest, base, override string) (string, error) {
	if override != "" {
		return filepath.Abs(override)
	}
	return filepath.Join(base, filepath.FromSlash(m.Reference.Path)), nil
}
