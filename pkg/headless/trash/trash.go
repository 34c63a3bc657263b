// Package trash disposes of component data directories such as ~/.ollama.
// On macOS it asks Finder to move the path to the Trash so it can be put
// back; when Finder is unavailable, which is common on a headless machine
// reached over SSH, the path is deleted permanently.
package trash

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/jamesainslie/headless/pkg/headless/logging"
	"github.com/jamesainslie/headless/pkg/headless/shell"
)

// commandTimeout bounds the Finder request.
const commandTimeout = 30 * time.Second

// Method says how a path was disposed of.
type Method string

const (
	MethodTrash  Method = "moved to Trash"
	MethodDelete Method = "deleted"
)

// Dispose moves path to the Trash, falling back to deleting it. goos
// selects the strategy; pass runtime.GOOS outside tests.
func Dispose(ctx context.Context, r shell.Runner, goos, path string) (Method, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("cannot dispose of %q: %w", path, err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("cannot resolve absolute path for %q: %w", path, err)
	}

	log := logging.Get("trash")
	if goos == "darwin" {
		ctx, cancel := context.WithTimeout(ctx, commandTimeout)
		defer cancel()

		script := fmt.Sprintf(`tell application "Finder" to delete POSIX file %q`, absPath)
		_, err := r.Run(ctx, shell.Command("osascript", "-e", script))
		if err == nil {
			log.Info("moved to trash", "path", absPath)
			return MethodTrash, nil
		}
		log.Debug("finder unavailable, deleting", "path", absPath, "error", err)
	}

	if err := os.RemoveAll(absPath); err != nil {
		return "", fmt.Errorf("failed to delete %q: %w", absPath, err)
	}
	log.Info("deleted", "path", absPath)
	return MethodDelete, nil
}

// DisposeHost is Dispose for the running OS.
func DisposeHost(ctx context.Context, r shell.Runner, path string) (Method, error) {
	return Dispose(ctx, r, runtime.GOOS, path)
}
