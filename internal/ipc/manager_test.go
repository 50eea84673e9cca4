package ipc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/microkernel-project/microkernel/internal/kernel"
	"github.com/microkernel-project/microkernel/internal/logging"
)

func newTestManager(t *testing.T) (*Manager, *kernel.Kernel) {
	t.Helper()
	k := kernel.New(kernel.DefaultConfig(), logging.NewNop())
	t.Cleanup(k.Shutdown)
	return NewManager(k, logging.NewNop()), k
}

func spawn(t *testing.T, k *kernel.Kernel, name string) string {
	t.Helper()
	pid, err := k.CreateProcess(name, nil, 5)
	require.NoError(t, err)
	return pid
}

func TestSendValidatesBothEnds(t *testing.T) {
	m, k := newTestManager(t)
	alice := spawn(t, k, "alice")
	bob := spawn(t, k, "bob")

	require.NoError(t, m.Send(alice, bob, "hi", "data"))

	err := m.Send("proc_ghost", bob, "hi", "data")
	require.ErrorIs(t, err, kernel.ErrNotFound)

	err = m.Send(alice, "proc_ghost", "hi", "data")
	require.ErrorIs(t, err, kernel.ErrNotFound)

	// Only the one valid message landed.
	require.Equal(t, 1, m.MessageCount(bob))
}

func TestMessagesDeliverInOrder(t *testing.T) {
	m, k := newTestManager(t)
	alice := spawn(t, k, "alice")
	bob := spawn(t, k, "bob")

	for _, payload := range []string{"first", "second", "third"} {
		require.NoError(t, m.Send(alice, bob, payload, "data"))
	}
	require.True(t, m.HasMessages(bob))

	for _, want := range []string{"first", "second", "third"} {
		msg := m.Receive(bob)
		require.NotNil(t, msg)
		require.Equal(t, want, msg.Payload)
		require.Equal(t, alice, msg.Sender)
	}
	require.Nil(t, m.Receive(bob))
	require.False(t, m.HasMessages(alice), "receiving must not touch other inboxes")
}

func TestNamedEntityRegistration(t *testing.T) {
	m, _ := newTestManager(t)

	require.NoError(t, m.CreateSemaphore("lock", 1))
	require.ErrorIs(t, m.CreateSemaphore("lock", 1), kernel.ErrAlreadyExists)

	require.NoError(t, m.CreateSharedMemory("seg", 4096))
	require.ErrorIs(t, m.CreateSharedMemory("seg", 4096), kernel.ErrAlreadyExists)

	require.NoError(t, m.CreatePipe("pipe", 8))
	require.ErrorIs(t, m.CreatePipe("pipe", 8), kernel.ErrAlreadyExists)

	// Name spaces are per kind, so the same name can exist across kinds.
	require.NoError(t, m.CreateSemaphore("shared-name", 1))
	require.NoError(t, m.CreatePipe("shared-name", 1))
}

func TestOperationsOnMissingEntities(t *testing.T) {
	m, _ := newTestManager(t)

	require.ErrorIs(t, m.AcquireSemaphore("nope", "proc_a", time.Millisecond), kernel.ErrNotFound)
	require.ErrorIs(t, m.ReleaseSemaphore("nope", "proc_a"), kernel.ErrNotFound)
	_, err := m.ReadSharedMemory("nope", "proc_a", "key")
	require.ErrorIs(t, err, kernel.ErrNotFound)
	require.ErrorIs(t, m.WritePipe("nope", "proc_a", "x", time.Millisecond), kernel.ErrNotFound)
}

func TestSharedMemoryThroughManager(t *testing.T) {
	m, k := newTestManager(t)
	alice := spawn(t, k, "alice")

	require.NoError(t, m.CreateSharedMemory("seg", 4096))

	err := m.WriteSharedMemory("seg", alice, "k", "v")
	require.ErrorIs(t, err, kernel.ErrUnauthorized)

	require.NoError(t, m.AuthorizeSharedMemory("seg", alice))
	require.NoError(t, m.WriteSharedMemory("seg", alice, "k", "v"))
	value, err := m.ReadSharedMemory("seg", alice, "k")
	require.NoError(t, err)
	require.Equal(t, "v", value)
}

func TestPipeThroughManager(t *testing.T) {
	m, k := newTestManager(t)
	alice := spawn(t, k, "alice")
	bob := spawn(t, k, "bob")

	require.NoError(t, m.CreatePipe("pipe", 2))
	require.NoError(t, m.AddPipeWriter("pipe", alice))
	require.NoError(t, m.AddPipeReader("pipe", bob))

	require.NoError(t, m.WritePipe("pipe", alice, "payload", 50*time.Millisecond))
	value, err := m.ReadPipe("pipe", bob, 50*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, "payload", value)
}

func TestReleaseProcessForfeitsEverything(t *testing.T) {
	m, k := newTestManager(t)
	alice := spawn(t, k, "alice")

	require.NoError(t, m.CreateSemaphore("sem", 0))
	require.NoError(t, m.CreateSharedMemory("seg", 1024))
	require.NoError(t, m.CreatePipe("pipe", 2))
	require.NoError(t, m.AuthorizeSharedMemory("seg", alice))
	require.NoError(t, m.AddPipeWriter("pipe", alice))

	done := make(chan error, 1)
	go func() {
		done <- m.AcquireSemaphore("sem", alice, 100*time.Millisecond)
	}()
	waitCondition(t, func() bool {
		stats := m.Stats()
		return len(stats.Semaphores) == 1 && len(stats.Semaphores[0].Waiters) == 1
	})

	m.ReleaseProcess(alice)

	stats := m.Stats()
	require.Empty(t, stats.Semaphores[0].Waiters)
	require.Empty(t, stats.Segments[0].Authorized)
	require.Empty(t, stats.Pipes[0].Writers)

	// The entities themselves survive the process.
	require.ErrorIs(t, m.CreateSemaphore("sem", 0), kernel.ErrAlreadyExists)

	require.ErrorIs(t, <-done, kernel.ErrTimeout)
}

func TestStats(t *testing.T) {
	m, k := newTestManager(t)
	alice := spawn(t, k, "alice")
	bob := spawn(t, k, "bob")

	require.NoError(t, m.CreateSemaphore("sem", 2))
	require.NoError(t, m.CreateSharedMemory("seg", 1024))
	require.NoError(t, m.CreatePipe("pipe", 4))
	require.NoError(t, m.Send(alice, bob, "hi", "data"))
	require.NoError(t, m.Send(alice, bob, "again", "data"))

	stats := m.Stats()
	require.Equal(t, 2, stats.PendingMessages)
	require.Len(t, stats.Semaphores, 1)
	require.Len(t, stats.Segments, 1)
	require.Len(t, stats.Pipes, 1)
	require.Equal(t, 2, stats.Semaphores[0].Count)
}

func waitCondition(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never held")
}
