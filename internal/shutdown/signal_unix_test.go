//go:build unix

package shutdown

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmmcquay/sgfrender/internal/logging"
)

func TestHandleSignals(t *testing.T) {
	manager := NewManager(logging.NewNopLogger())
	stopped := make(chan struct{})
	manager.Register("http", func(context.Context) error {
		close(stopped)
		return nil
	})

	ctx := manager.HandleSignals(context.Background())
	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled after SIGTERM")
	}
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("components not stopped after SIGTERM")
	}
	manager.WaitForShutdown()
}
