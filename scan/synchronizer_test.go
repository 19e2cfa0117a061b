package scan

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitAsync(s *Synchronizer) <-chan error {
	ch := make(chan error, 1)
	go func() { ch <- s.Wait() }()
	return ch
}

func TestSynchronizer_Signal(t *testing.T) {
	t.Run("signal antes da espera", func(t *testing.T) {
		s := NewSynchronizer()
		s.Signal()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, s.WaitContext(ctx))
		assert.True(t, s.Done())
	})

	t.Run("acorda todos os waiters", func(t *testing.T) {
		s := NewSynchronizer()

		var wg sync.WaitGroup
		errs := make(chan error, 3)
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- s.Wait()
			}()
		}

		s.Signal()
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}
	})

	t.Run("idempotente", func(t *testing.T) {
		s := NewSynchronizer()
		s.Signal()
		s.Signal()

		assert.True(t, s.Done())
		assert.Equal(t, 2, s.Signals())
		assert.NoError(t, s.Wait())
	})
}

func TestSynchronizer_NoPrematureWake(t *testing.T) {
	s := NewSynchronizer()
	done := waitAsync(s)

	// Broadcasts sem mudança de estado não podem liberar o waiter.
	for i := 0; i < 5; i++ {
		s.mu.Lock()
		s.broadcastLocked()
		s.mu.Unlock()
	}

	select {
	case err := <-done:
		t.Fatalf("Wait retornou com o flag falso (err=%v)", err)
	case <-time.After(50 * time.Millisecond):
	}
	assert.False(t, s.Done())

	s.Signal()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Wait não retornou após Signal")
	}
}

func TestSynchronizer_Abort(t *testing.T) {
	boom := errors.New("boom")

	t.Run("acorda com o erro sem marcar conclusão", func(t *testing.T) {
		s := NewSynchronizer()
		done := waitAsync(s)

		s.Abort(boom)
		select {
		case err := <-done:
			assert.ErrorIs(t, err, boom)
		case <-time.After(2 * time.Second):
			t.Fatal("Wait não retornou após Abort")
		}
		assert.False(t, s.Done())
		assert.Zero(t, s.Signals())
	})

	t.Run("primeiro erro vence", func(t *testing.T) {
		s := NewSynchronizer()
		s.Abort(boom)
		s.Abort(errors.New("outro"))
		s.Abort(nil)
		assert.ErrorIs(t, s.Err(), boom)
	})

	t.Run("ignorado depois do signal", func(t *testing.T) {
		s := NewSynchronizer()
		s.Signal()
		s.Abort(boom)
		assert.NoError(t, s.Err())
		assert.NoError(t, s.Wait())
	})

	t.Run("nil não acorda", func(t *testing.T) {
		s := NewSynchronizer()
		s.Abort(nil)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, s.WaitContext(ctx), context.DeadlineExceeded)
	})
}

func TestSynchronizer_WaitContext(t *testing.T) {
	t.Run("timeout", func(t *testing.T) {
		s := NewSynchronizer()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()

		start := time.Now()
		err := s.WaitContext(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
		assert.False(t, s.Done())
	})

	t.Run("cancelamento", func(t *testing.T) {
		s := NewSynchronizer()
		ctx, cancel := context.WithCancel(context.Background())

		ch := make(chan error, 1)
		go func() { ch <- s.WaitContext(ctx) }()
		cancel()

		select {
		case err := <-ch:
			require.ErrorIs(t, err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Fatal("WaitContext ignorou o cancelamento")
		}
	})
}
