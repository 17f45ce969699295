package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) handle(_ context.Context, path string) error {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
	return nil
}

func (r *recorder) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func TestWatchDebouncesWrites(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	page := filepath.Join(dir, "page.html")
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(page, []byte("<p></p>"), 0644))

	rec := &recorder{}
	w, err := New([]string{page}, rec.handle, WithDebounce(50*time.Millisecond), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(page, []byte(strings.Repeat("<p></p>", i+2)), 0644))
	}
	require.NoError(t, os.WriteFile(other, []byte("ignored"), 0644))

	assert.Eventually(t, func() bool { return len(rec.Paths()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return len(rec.Paths()) > 1 }, 200*time.Millisecond, 20*time.Millisecond)

	want, _ := filepath.Abs(page)
	assert.Equal(t, []string{want}, rec.Paths())

	cancel()
	require.NoError(t, <-done)
}

func TestWatchDirectoryWithMatch(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}

	w, err := New([]string{dir}, rec.handle,
		WithDebounce(20*time.Millisecond),
		WithMatch(func(p string) bool { return strings.HasSuffix(p, ".html") }))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.html"), nil, 0644))

	assert.Eventually(t, func() bool { return len(rec.Paths()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, strings.HasSuffix(rec.Paths()[0], "b.html"))
}

func TestNewMissingPath(t *testing.T) {
	_, err := New([]string{filepath.Join(t.TempDir(), "missing")}, nil)
	assert.Error(t, err)
}
