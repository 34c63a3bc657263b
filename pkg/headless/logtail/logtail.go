// Package logtail prints the end of a service's log files and streams lines
// appended to them, the way tail -F does.
package logtail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/jamesainslie/headless/pkg/headless/logging"
)

const chunkSize = 8192

// Tail returns the last n lines of the file at path, without trailing
// newlines. A missing file returns no lines and no error.
func Tail(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	// Read backwards until the buffer holds more than n newlines.
	var buf []byte
	end := info.Size()
	for end > 0 && bytes.Count(buf, []byte{'\n'}) <= n {
		start := max(end-chunkSize, 0)
		chunk := make([]byte, end-start)
		if _, err := f.ReadAt(chunk, start); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		buf = append(chunk, buf...)
		end = start
	}

	buf = bytes.TrimSuffix(buf, []byte{'\n'})
	if len(buf) == 0 {
		return nil, nil
	}
	lines := bytes.Split(buf, []byte{'\n'})
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = string(bytes.TrimSuffix(l, []byte{'\r'}))
	}
	return out, nil
}

// follower tracks one file and how much of it has been printed.
type follower struct {
	path   string
	prefix string
	offset int64
}

// Follow writes data appended to paths to w until ctx is done. Output
// starts at the current end of each file. Files that do not exist yet are
// picked up when created; truncated or replaced files are read again from
// the start. With more than one path every line is prefixed by the base name.
func Follow(ctx context.Context, w io.Writer, paths ...string) error {
	if len(paths) == 0 {
		return errors.New("logtail: no files to follow")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	log := logging.Get("logtail")
	followers := make(map[string]*follower, len(paths))
	dirs := make(map[string]bool)

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		f := &follower{path: abs}
		if len(paths) > 1 {
			f.prefix = "[" + filepath.Base(abs) + "] "
		}
		if info, err := os.Stat(abs); err == nil {
			f.offset = info.Size()
		}
		followers[abs] = f

		dir := filepath.Dir(abs)
		if !dirs[dir] {
			// Watch the directory so creation and rename are seen too.
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", dir, err)
			}
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("watching %s: %w", dir, err)
			}
			dirs[dir] = true
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			f, tracked := followers[filepath.Clean(ev.Name)]
			if !tracked {
				continue
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				f.offset = 0
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				if err := f.drain(w); err != nil {
					return err
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", "error", err)
		}
	}
}

// drain copies everything after f.offset to w.
func (f *follower) drain(w io.Writer) error {
	file, err := os.Open(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		f.offset = 0
		return nil
	}
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	if info.Size() < f.offset {
		f.offset = 0
	}
	if info.Size() == f.offset {
		return nil
	}

	data := make([]byte, info.Size()-f.offset)
	n, err := file.ReadAt(data, f.offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	data = data[:n]

	// Hold back a partial last line until its newline arrives.
	if i := bytes.LastIndexByte(data, '\n'); i >= 0 {
		data = data[:i+1]
	} else {
		return nil
	}
	f.offset += int64(len(data))

	if f.prefix == "" {
		_, err = w.Write(data)
		return err
	}
	for _, line := range bytes.SplitAfter(data, []byte{'\n'}) {
		if len(line) == 0 {
			continue
		}
		if _, err := io.WriteString(w, f.prefix); err != nil {
			return err
		}
		if _, err := w.Write(line); err != nil {
			return err
		}
	}
	return nil
}
