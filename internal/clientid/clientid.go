// Package clientid manages the per-device identifier used to tag writes so
// a device can recognize the realtime echo of its own saves.
package clientid

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const fileName = "client-id"

// Load returns the device's stable client id, minting and persisting a new
// one on first run. The id survives restarts; a fresh id per process would
// defeat echo suppression across agent restarts.
func Load(dataDir string) (string, error) {
	path := filepath.Join(dataDir, fileName)

	raw, err := os.ReadFile(path)
	if err == nil {
		id := strings.TrimSpace(string(raw))
		if id != "" {
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("clientid: read %s: %w", path, err)
	}

	id := uuid.NewString()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("clientid: create data dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("clientid: write %s: %w", path, err)
	}
	return id, nil
}
