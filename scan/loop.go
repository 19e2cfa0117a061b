package scan

import (
	"errors"
	"fmt"
	"sync"

	"github.com/raywall/fast-scan-toolkit/tablesvc"
	"github.com/rs/zerolog"
)

var (
	// ErrScanAborted marca toda falha que encerra o scan antes da drenagem.
	ErrScanAborted = errors.New("scan: aborted")
	// ErrNotStarted é devolvido por Loop.Err antes do primeiro fetch.
	ErrNotStarted = errors.New("scan: loop not started")
)

// State é o estado da continuation loop.
type State int32

const (
	Idle State = iota
	AwaitingPage
	Drained
	Fatal
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingPage:
		return "awaiting_page"
	case Drained:
		return "drained"
	case Fatal:
		return "fatal"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Stats acumula os números de um único scan.
type Stats struct {
	Pages   int
	Rows    int
	Cells   int
	Fetches int
}

// Loop consome páginas entregues pelo serviço: materializa e libera cada
// linha na ordem de entrega e pede a próxima página, até receber uma
// página vazia.
type Loop struct {
	svc    tablesvc.Service
	mat    *Materializer
	logger zerolog.Logger

	mu     sync.Mutex
	state  State
	stats  Stats
	err    error
	syncer *Synchronizer
}

func NewLoop(svc tablesvc.Service, mat *Materializer, logger zerolog.Logger) *Loop {
	return &Loop{svc: svc, mat: mat, logger: logger}
}

// Start emite o primeiro fetch. O Synchronizer segue como extra de cada
// Next e é sinalizado (ou abortado) pela própria loop.
func (l *Loop) Start(scanner *tablesvc.Scanner, syncer *Synchronizer) error {
	if syncer == nil {
		return fmt.Errorf("scan: nil synchronizer")
	}

	l.mu.Lock()
	if l.state != Idle {
		state := l.state
		l.mu.Unlock()
		return fmt.Errorf("scan: loop already started (state %s)", state)
	}
	l.state = AwaitingPage
	l.syncer = syncer
	l.stats.Fetches++
	l.mu.Unlock()

	if err := l.svc.Next(scanner, l.onPage, syncer); err != nil {
		err = fmt.Errorf("%w: first fetch: %w", ErrScanAborted, err)
		l.fail(syncer, err)
		return err
	}
	return nil
}

// onPage é a ScanCallback da loop. Roda na goroutine de despacho do cliente.
func (l *Loop) onPage(status error, scanner *tablesvc.Scanner, page []*tablesvc.Result, extra any) {
	syncer, ok := extra.(*Synchronizer)
	if !ok || syncer == nil {
		l.logger.Error().Str("extra", fmt.Sprintf("%T", extra)).Msg("callback recebido sem synchronizer")
		l.mu.Lock()
		owner := l.syncer
		l.mu.Unlock()
		err := fmt.Errorf("%w: callback without synchronizer", ErrScanAborted)
		if owner == nil {
			l.setFatal(err)
			return
		}
		// o synchronizer registrado em Start ainda precisa ser acordado
		l.fail(owner, err)
		return
	}

	if status != nil {
		l.fail(syncer, fmt.Errorf("%w: fetch: %w", ErrScanAborted, status))
		return
	}

	if len(page) == 0 {
		l.mu.Lock()
		l.state = Drained
		stats := l.stats
		l.mu.Unlock()

		l.logger.Info().Int("rows", stats.Rows).Int("pages", stats.Pages).Msg("nenhum resultado no callback, scan drenado")
		syncer.Signal()
		return
	}

	l.logger.Debug().Int("rows", len(page)).Msg("página recebida")
	for _, result := range page {
		report, err := l.mat.Materialize(result)
		if err != nil {
			l.fail(syncer, fmt.Errorf("%w: %w", ErrScanAborted, err))
			return
		}
		if err := l.svc.Release(result); err != nil {
			l.fail(syncer, fmt.Errorf("%w: release row %q: %w", ErrScanAborted, report.Key, err))
			return
		}

		l.mu.Lock()
		l.stats.Rows++
		l.stats.Cells += len(report.Cells)
		l.mu.Unlock()
	}

	l.mu.Lock()
	l.stats.Pages++
	l.stats.Fetches++
	l.mu.Unlock()

	if err := l.svc.Next(scanner, l.onPage, syncer); err != nil {
		l.fail(syncer, fmt.Errorf("%w: next fetch: %w", ErrScanAborted, err))
	}
}

func (l *Loop) fail(syncer *Synchronizer, err error) {
	l.setFatal(err)

	ev := l.logger.Error().Err(err)
	var se *tablesvc.StatusError
	if errors.As(err, &se) {
		ev = ev.Stringer("code", se.Code)
	}
	ev.Msg("scan abortado")
	syncer.Abort(err)
}

func (l *Loop) setFatal(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = Fatal
	l.err = err
}

// Stats devolve uma cópia das estatísticas atuais.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Err devolve a falha que levou a loop a Fatal, ErrNotStarted antes do
// primeiro fetch e nil nos demais casos.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == Idle {
		return ErrNotStarted
	}
	return l.err
}
