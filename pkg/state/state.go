// Package state owns the canonical on-disk layout under the database
// path. Everything the server writes outside Pebble lives in one of
// these folders.
package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths is the resolved folder layout for a database root.
type Paths struct {
	Store     string
	State     string
	Audit     string
	Retention string
	Crash     string
	Tmp       string
}

// PathsVar holds the layout for the running process, set by Init.
var PathsVar Paths

// Layout computes the folder layout for dbPath without touching disk.
func Layout(dbPath string) Paths {
	statePath := filepath.Join(dbPath, "state")
	return Paths{
		Store:     filepath.Join(dbPath, "store"),
		State:     statePath,
		Audit:     filepath.Join(statePath, "audit"),
		Retention: filepath.Join(statePath, "retention"),
		Crash:     filepath.Join(statePath, "crash"),
		Tmp:       filepath.Join(statePath, "tmp"),
	}
}

// Init ensures the state directories exist and records the layout in
// PathsVar for the rest of the process.
func Init(dbPath string) error {
	p := Layout(dbPath)
	if err := ensureDirs(p.Store, p.Audit, p.Retention, p.Crash, p.Tmp); err != nil {
		return err
	}
	PathsVar = p
	return nil
}

// ensureDirs creates the folders with restrictive permissions. Symlinks
// and group/other-writable modes are rejected so audit and crash files
// cannot be redirected.
func ensureDirs(paths ...string) error {
	for _, p := range paths {
		if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
			return fmt.Errorf("cannot create parent for %s: %w", p, err)
		}
		if fi, err := os.Lstat(p); err == nil {
			if fi.Mode()&os.ModeSymlink != 0 {
				return fmt.Errorf("path is a symlink: %s", p)
			}
			if !fi.IsDir() {
				return fmt.Errorf("path exists and is not a directory: %s", p)
			}
			if fi.Mode().Perm()&0o022 != 0 {
				return fmt.Errorf("path has permissive mode (group/other write): %s", p)
			}
		}
		if err := os.MkdirAll(p, 0o700); err != nil {
			return fmt.Errorf("cannot create path %s: %w", p, err)
		}

		// writability check: create and remove a temp file
		tmp, err := os.CreateTemp(p, ".validate-*")
		if err != nil {
			return fmt.Errorf("path not writable: %s: %w", p, err)
		}
		tmp.Close()
		_ = os.Remove(tmp.Name())
	}
	return nil
}
