package imagesweeper

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeperRemovesEnqueuedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cached.png")
	require.NoError(t, os.WriteFile(path, []byte("png bytes"), 0644))

	sweeper := New(8, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sweeper.Run(ctx)

	sweeper.EnqueueJob(path)

	assert.Eventually(
		t,
		func() bool {
			_, err := os.Stat(path)
			return os.IsNotExist(err)
		},
		3*time.Second,
		50*time.Millisecond,
		"the enqueued file should be removed on the next sweep",
	)
}

func TestSweeperIgnoresEmptyAndMissingPaths(t *testing.T) {
	sweeper := New(8, 1)

	errCh := make(chan error, 1)
	sweeper.ListenErrors(func(err error) {
		errCh <- err
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sweeper.Run(ctx)

	sweeper.EnqueueJob("")
	sweeper.EnqueueJob(filepath.Join(t.TempDir(), "never-existed.png"))

	select {
	case err := <-errCh:
		t.Fatalf("no error expected for empty or missing paths, got: %v", err)
	case <-time.After(1500 * time.Millisecond):
	}
}
