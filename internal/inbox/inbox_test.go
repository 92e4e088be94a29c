package inbox_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/birkland/dansbag/internal/bagtest"
	"github.com/birkland/dansbag/internal/inbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func next(t *testing.T, arrivals <-chan string) string {
	t.Helper()
	select {
	case dir := <-arrivals:
		return dir
	case <-time.After(5 * time.Second):
		t.Fatal("no bag arrived")
		return ""
	}
}

func TestWatcherReportsSettledBags(t *testing.T) {
	dir := t.TempDir()

	existing := bagtest.New(t).Dir()
	require.NoError(t, os.Rename(existing, filepath.Join(dir, "existing")))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "not-a-bag"), 0775))

	w, err := inbox.New(dir, 50*time.Millisecond, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	arrivals := make(chan string, 10)
	done := make(chan error)
	go func() {
		done <- w.Run(ctx, func(_ context.Context, bag string) {
			arrivals <- bag
		})
	}()

	assert.Equal(t, filepath.Join(dir, "existing"), next(t, arrivals))

	uploaded := bagtest.New(t).Migration().Dir()
	require.NoError(t, os.Rename(uploaded, filepath.Join(dir, "uploaded")))
	assert.Equal(t, filepath.Join(dir, "uploaded"), next(t, arrivals))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "uploaded", "data", "late.txt"), []byte("late"), 0664))
	assert.Equal(t, filepath.Join(dir, "uploaded"), next(t, arrivals))

	cancel()
	assert.NoError(t, <-done)

	select {
	case bag := <-arrivals:
		t.Errorf("unexpected arrival of %s", bag)
	default:
	}
}

func TestNewMissingInbox(t *testing.T) {
	_, err := inbox.New(filepath.Join(t.TempDir(), "missing"), time.Second, nil)
	assert.Error(t, err)
}
