package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/srg/gattsrv/internal/registry"
)

// restoreState loads a snapshot into store. A missing file is not an error.
func restoreState(store *registry.Store, path string, logger *logrus.Logger) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.WithField("path", path).Debug("No saved state")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open state file: %w", err)
	}
	defer f.Close()

	n, err := store.Load(f)
	if err != nil {
		return fmt.Errorf("failed to load state from %s: %w", path, err)
	}
	logger.WithFields(logrus.Fields{"path": path, "values": n}).Info("State restored")
	return nil
}

// saveState writes a snapshot of store through a temporary file so an
// interrupted save never truncates the previous state.
func saveState(store *registry.Store, path string, logger *logrus.Logger) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := store.Save(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to save state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	logger.WithField("path", path).Info("State saved")
	return nil
}
