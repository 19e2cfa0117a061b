package scan

import (
	"context"
	"sync"
)

// Synchronizer é o ponto de encontro entre a goroutine que iniciou o scan e
// a goroutine de despacho que executa as continuations.
//
// O flag de conclusão passa de false para true uma única vez, via Signal.
// Abort acorda quem espera com um erro sem tocar no flag.
type Synchronizer struct {
	mu      sync.Mutex
	done    bool
	err     error
	signals int
	wake    chan struct{}
}

func NewSynchronizer() *Synchronizer {
	return &Synchronizer{wake: make(chan struct{})}
}

// Signal marca o scan como concluído e acorda quem espera. Chamadas
// repetidas não têm efeito além de contar.
func (s *Synchronizer) Signal() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.signals++
	if s.done {
		return
	}
	s.done = true
	s.broadcastLocked()
}

// Abort acorda quem espera com err. O primeiro erro vence; depois de
// Signal o abort é ignorado.
func (s *Synchronizer) Abort(err error) {
	if err == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done || s.err != nil {
		return
	}
	s.err = err
	s.broadcastLocked()
}

// broadcastLocked acorda todos os waiters atuais. Eles voltam a checar o
// estado sob o mutex, então um broadcast sem mudança de estado não os
// libera.
func (s *Synchronizer) broadcastLocked() {
	close(s.wake)
	s.wake = make(chan struct{})
}

// Wait bloqueia até Signal (devolve nil) ou Abort (devolve o erro).
func (s *Synchronizer) Wait() error {
	return s.WaitContext(context.Background())
}

// WaitContext é Wait limitado por ctx. Se ctx expirar antes, devolve
// ctx.Err() e o flag continua como estava.
func (s *Synchronizer) WaitContext(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.done {
			s.mu.Unlock()
			return nil
		}
		if s.err != nil {
			err := s.err
			s.mu.Unlock()
			return err
		}
		wake := s.wake
		s.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Done informa o estado do flag de conclusão.
func (s *Synchronizer) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Err devolve o erro registrado por Abort, se houver.
func (s *Synchronizer) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Signals conta as chamadas a Signal.
func (s *Synchronizer) Signals() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signals
}
