package logtail

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree\nfour\n"), 0o644))

	tests := []struct {
		n    int
		want []string
	}{
		{0, nil},
		{1, []string{"four"}},
		{2, []string{"three", "four"}},
		{10, []string{"one", "two", "three", "four"}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.n), func(t *testing.T) {
			got, err := Tail(path, tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTailNoTrailingNewlineAndCRLF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.err.log")
	require.NoError(t, os.WriteFile(path, []byte("a\r\nb\r\nlast"), 0o644))

	got, err := Tail(path, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "last"}, got)
}

func TestTailLargeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.log")
	var buf bytes.Buffer
	for i := 0; i < 5000; i++ {
		fmt.Fprintf(&buf, "line %04d %s\n", i, strings.Repeat("x", 20))
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	got, err := Tail(path, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, strings.HasPrefix(got[0], "line 4997"))
	assert.True(t, strings.HasPrefix(got[2], "line 4999"))
}

func TestTailMissingAndEmpty(t *testing.T) {
	dir := t.TempDir()
	got, err := Tail(filepath.Join(dir, "missing.log"), 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	empty := filepath.Join(dir, "empty.log")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	got, err = Tail(empty, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func appendTo(t *testing.T, path, text string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(text)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestFollow(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "server.log")
	errPath := filepath.Join(dir, "server.err.log")
	require.NoError(t, os.WriteFile(out, []byte("old line\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var buf syncBuffer
	done := make(chan error, 1)
	go func() { done <- Follow(ctx, &buf, out, errPath) }()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)

	appendTo(t, out, "new line\n")
	appendTo(t, errPath, "created later\n")

	assert.Eventually(t, func() bool {
		s := buf.String()
		return strings.Contains(s, "[server.log] new line\n") &&
			strings.Contains(s, "[server.err.log] created later\n")
	}, 3*time.Second, 20*time.Millisecond, "got %q", buf.String())

	assert.NotContains(t, buf.String(), "old line")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Follow did not return after cancel")
	}
}

func TestFollowNoPaths(t *testing.T) {
	assert.Error(t, Follow(context.Background(), &bytes.Buffer{}))
}

func TestDrainHoldsPartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.log")
	require.NoError(t, os.WriteFile(path, []byte("complete\npart"), 0o644))

	f := &follower{path: path}
	var buf bytes.Buffer
	require.NoError(t, f.drain(&buf))
	assert.Equal(t, "complete\n", buf.String())

	appendTo(t, path, "ial\n")
	require.NoError(t, f.drain(&buf))
	assert.Equal(t, "complete\npartial\n", buf.String())

	require.NoError(t, os.WriteFile(path, []byte("truncated\n"), 0o644))
	require.NoError(t, f.drain(&buf))
	assert.Equal(t, "complete\npartial\ntruncated\n", buf.String())
}
