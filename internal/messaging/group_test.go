package messaging_test

import (
	"context"
	"errors"
	"testing"

	"github.com/serroba/shortlink/internal/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockRunnable struct {
	started     bool
	shutdown    bool
	startErr    error
	shutdownErr error
}

func (m *mockRunnable) Start(_ context.Context) error {
	if m.startErr != nil {
		return m.startErr
	}

	m.started = true

	return nil
}

func (m *mockRunnable) Shutdown() error {
	m.shutdown = true

	return m.shutdownErr
}

type mockCloser struct {
	closed bool
	err    error
}

func (m *mockCloser) Close() error {
	m.closed = true

	return m.err
}

func TestGroup_Start(t *testing.T) {
	t.Run("starts all members", func(t *testing.T) {
		group := messaging.NewGroup(zap.NewNop())
		first := &mockRunnable{}
		second := &mockRunnable{}

		group.Add(first)
		group.Add(second)

		err := group.Start(context.Background())

		require.NoError(t, err)
		assert.True(t, first.started)
		assert.True(t, second.started)
		assert.Equal(t, 2, group.Len())
	})

	t.Run("rolls back on failure", func(t *testing.T) {
		group := messaging.NewGroup(zap.NewNop())
		first := &mockRunnable{}
		second := &mockRunnable{startErr: errors.New("start error")}
		third := &mockRunnable{}

		group.Add(first)
		group.Add(second)
		group.Add(third)

		err := group.Start(context.Background())

		require.Error(t, err)
		assert.True(t, first.shutdown)
		assert.False(t, second.started)
		assert.False(t, third.started)
	})
}

func TestGroup_Shutdown(t *testing.T) {
	t.Run("stops members then closers", func(t *testing.T) {
		closer := &mockCloser{}
		group := messaging.NewGroup(zap.NewNop(), closer)
		member := &mockRunnable{}

		group.Add(member)
		_ = group.Start(context.Background())

		err := group.Shutdown()

		require.NoError(t, err)
		assert.True(t, member.shutdown)
		assert.True(t, closer.closed)
	})

	t.Run("returns first error but shuts down all", func(t *testing.T) {
		closer := &mockCloser{err: errors.New("close error")}
		group := messaging.NewGroup(zap.NewNop(), closer)
		first := &mockRunnable{shutdownErr: errors.New("shutdown error 1")}
		second := &mockRunnable{shutdownErr: errors.New("shutdown error 2")}

		group.Add(first)
		group.Add(second)
		_ = group.Start(context.Background())

		err := group.Shutdown()

		require.EqualError(t, err, "shutdown error 1")
		assert.True(t, second.shutdown)
		assert.True(t, closer.closed)
	})
}
