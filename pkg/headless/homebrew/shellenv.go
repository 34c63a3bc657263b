package homebrew

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ShellenvLine is the ~/.zprofile line that puts prefix on PATH.
func ShellenvLine(prefix string) string {
	return fmt.Sprintf(`eval "$(%s/bin/brew shellenv)"`, prefix)
}

// EnsureLine appends line to the file at path unless an identical line is
// already present. It reports whether the file changed.
func EnsureLine(path, line string) (bool, error) {
	content, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	for _, l := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(l) == line {
			return false, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	var buf bytes.Buffer
	buf.Write(content)
	if len(content) > 0 && !bytes.HasSuffix(content, []byte{'\n'}) {
		buf.WriteByte('\n')
	}
	buf.WriteString(line + "\n")

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveLine deletes every line equal to line. It reports whether the file
// changed; a missing file is unchanged.
func RemoveLine(path, line string) (bool, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	lines := strings.SplitAfter(string(content), "\n")
	kept := lines[:0]
	removed := false
	for _, l := range lines {
		if strings.TrimSpace(l) == line {
			removed = true
			continue
		}
		kept = append(kept, l)
	}
	if !removed {
		return false, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(path, []byte(strings.Join(kept, "")), info.Mode().Perm()); err != nil {
		return false, err
	}
	return true, nil
}

func lineExists(path, line string) (bool, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	for _, l := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(l) == line {
			return true, nil
		}
	}
	return false, nil
}
