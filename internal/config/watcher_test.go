package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher(t *testing.T) {
	t.Run("fires on write to a watched file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("name: ceopilot\n"), 0644))

		var fired atomic.Int32
		w, err := NewWatcher([]string{path}, func(changed string) {
			fired.Add(1)
		})
		require.NoError(t, err)
		w.Start(context.Background())
		defer w.Stop()

		require.NoError(t, os.WriteFile(path, []byte("name: renamed\n"), 0644))

		assert.Eventually(t, func() bool {
			return fired.Load() >= 1
		}, 3*time.Second, 20*time.Millisecond)
	})

	t.Run("ignores unwatched siblings", func(t *testing.T) {
		dir := t.TempDir()
		watched := filepath.Join(dir, "config.yaml")
		sibling := filepath.Join(dir, "notes.txt")
		require.NoError(t, os.WriteFile(watched, []byte("name: ceopilot\n"), 0644))

		var fired atomic.Int32
		w, err := NewWatcher([]string{watched}, func(string) {
			fired.Add(1)
		})
		require.NoError(t, err)
		w.Start(context.Background())
		defer w.Stop()

		require.NoError(t, os.WriteFile(sibling, []byte("scratch\n"), 0644))
		time.Sleep(300 * time.Millisecond)
		assert.Equal(t, int32(0), fired.Load())
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		w, err := NewWatcher([]string{filepath.Join(t.TempDir(), "config.yaml")}, func(string) {})
		require.NoError(t, err)
		w.Start(context.Background())
		w.Stop()
		w.Stop()
	})
}
