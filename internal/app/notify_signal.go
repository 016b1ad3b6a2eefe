package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TouchSignal writes the ledger revision and a timestamp to the signal file so
// fsnotify watchers see every commit, including commits from a restarted process
// whose revision counter began again at zero. Creates the parent dir if needed.
func TouchSignal(signalPath string, revision uint64) error {
	if signalPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(signalPath), 0755); err != nil {
		return fmt.Errorf("create signal file dir: %w", err)
	}
	content := fmt.Sprintf("%d %d", revision, time.Now().UnixNano())
	if err := os.WriteFile(signalPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("write signal file: %w", err)
	}
	return nil
}
