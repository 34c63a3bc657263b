// Package footprint measures how much disk a component's data occupies,
// e.g. downloaded models under ~/.ollama/models or the Colima VM disks.
package footprint

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"
	"github.com/dustin/go-humanize"
)

// Usage is the measured size of a directory tree.
type Usage struct {
	Path   string `json:"path" yaml:"path"`
	Exists bool   `json:"exists" yaml:"exists"`
	Bytes  int64  `json:"bytes" yaml:"bytes"`
	Files  int64  `json:"files" yaml:"files"`

	// Errors counts entries that could not be read.
	Errors int64 `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// String renders the usage for prompts and status, e.g. "4.1 GiB in 12 files".
func (u Usage) String() string {
	if !u.Exists {
		return "not present"
	}
	return humanize.IBytes(uint64(u.Bytes)) + " in " + humanize.Comma(u.Files) + " files"
}

// Measure walks path in parallel and sums the sizes of regular files.
// Symlinks are not followed. A missing path yields a zero Usage with
// Exists false and no error.
func Measure(ctx context.Context, path string) (Usage, error) {
	usage := Usage{Path: path}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return usage, nil
	}
	if err != nil {
		return usage, err
	}
	usage.Exists = true

	if !info.IsDir() {
		usage.Bytes = info.Size()
		usage.Files = 1
		return usage, nil
	}

	var bytes, files, failed atomic.Int64
	conf := fastwalk.Config{Follow: false}

	err = fastwalk.Walk(&conf, path, func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			failed.Add(1)
			if d != nil && d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			failed.Add(1)
			return nil
		}
		bytes.Add(fi.Size())
		files.Add(1)
		return nil
	})
	usage.Bytes = bytes.Load()
	usage.Files = files.Load()
	usage.Errors = failed.Load()

	if err != nil {
		return usage, err
	}
	return usage, nil
}

// MeasureAll measures each path; the first error aborts.
func MeasureAll(ctx context.Context, paths ...string) ([]Usage, error) {
	out := make([]Usage, 0, len(paths))
	for _, p := range paths {
		u, err := Measure(ctx, filepath.Clean(p))
		if err != nil {
			return out, err
		}
		out = append(out, u)
	}
	return out, nil
}
