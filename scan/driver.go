package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/raywall/fast-scan-toolkit/pkg/metrics"
	"github.com/raywall/fast-scan-toolkit/tablesvc"
	"github.com/rs/zerolog"
)

// ErrWaitTimeout indica que a espera pelo fim do scan excedeu WaitTimeout.
var ErrWaitTimeout = errors.New("scan: wait timeout")

// TeardownPolicy controla o encerramento do cliente e da conexão.
type TeardownPolicy string

const (
	// TeardownAlways encerra tudo e devolve qualquer falha do encerramento.
	TeardownAlways TeardownPolicy = "always"
	// TeardownNever deixa o processo recuperar os recursos na saída.
	TeardownNever TeardownPolicy = "never"
	// TeardownBestEffort encerra tudo mas só registra as falhas no log.
	TeardownBestEffort TeardownPolicy = "best_effort"
)

func ParseTeardownPolicy(s string) (TeardownPolicy, error) {
	switch p := TeardownPolicy(s); p {
	case TeardownAlways, TeardownNever, TeardownBestEffort:
		return p, nil
	case "":
		return TeardownBestEffort, nil
	default:
		return "", fmt.Errorf("scan: unknown teardown policy %q", s)
	}
}

// Options descreve um scan. Campos zerados usam o padrão do backend.
type Options struct {
	Quorum      string
	Root        *string
	Table       string
	MaxRows     int
	MaxVersions int8
	Filter      []byte

	// WaitTimeout limita a espera pelo fim do scan (0 = sem limite).
	WaitTimeout     time.Duration
	Teardown        TeardownPolicy
	TeardownTimeout time.Duration

	// Backend só é usado em logs e tags de métricas.
	Backend string
}

// ScanRecorder recebe o resumo de cada scan.
type ScanRecorder interface {
	RecordScan(sample metrics.ScanSample) error
}

// Driver executa um único scan do começo ao fim.
type Driver struct {
	svc     tablesvc.Service
	opts    Options
	out     io.Writer
	logger  zerolog.Logger
	metrics ScanRecorder
}

type DriverOption func(*Driver)

// WithOutput define onde os relatórios das linhas são escritos (padrão: stdout).
func WithOutput(w io.Writer) DriverOption {
	return func(d *Driver) {
		d.out = w
	}
}

func WithLogger(logger zerolog.Logger) DriverOption {
	return func(d *Driver) {
		d.logger = logger
	}
}

func WithMetrics(recorder ScanRecorder) DriverOption {
	return func(d *Driver) {
		d.metrics = recorder
	}
}

func NewDriver(svc tablesvc.Service, opts Options, options ...DriverOption) *Driver {
	d := &Driver{
		svc:    svc,
		opts:   opts,
		out:    os.Stdout,
		logger: zerolog.Nop(),
	}
	for _, opt := range options {
		opt(d)
	}
	if d.opts.Teardown == "" {
		d.opts.Teardown = TeardownBestEffort
	}
	return d
}

// handles guarda o que a preparação conseguiu criar, para o teardown.
type handles struct {
	conn    *tablesvc.Connection
	client  *tablesvc.Client
	scanner *tablesvc.Scanner
}

// Run prepara o scanner, emite o primeiro fetch, bloqueia até o scan ser
// drenado (ou abortado) e encerra os recursos conforme a política. Em caso
// de sucesso imprime a linha de resumo.
func (d *Driver) Run(ctx context.Context) (Stats, error) {
	started := time.Now()
	logger := d.logger.With().
		Str("scan_id", uuid.NewString()).
		Str("table", d.opts.Table).
		Str("backend", d.opts.Backend).
		Logger()

	var h handles
	stats, err := d.scan(ctx, logger, &h)

	if terr := d.teardown(logger, &h); terr != nil {
		if d.opts.Teardown == TeardownAlways {
			err = errors.Join(err, terr)
		} else {
			logger.Warn().Err(terr).Msg("falha no teardown ignorada")
		}
	}

	d.record(logger, stats, time.Since(started), err != nil)

	if err != nil {
		return stats, err
	}
	if _, werr := fmt.Fprintf(d.out, "done! rows=%d pages=%d\n", stats.Rows, stats.Pages); werr != nil {
		return stats, fmt.Errorf("scan: write summary: %w", werr)
	}
	return stats, nil
}

func (d *Driver) scan(ctx context.Context, logger zerolog.Logger, h *handles) (Stats, error) {
	if err := d.setup(logger, h); err != nil {
		return Stats{}, err
	}

	syncer := NewSynchronizer()
	loop := NewLoop(d.svc, NewMaterializer(d.svc, d.out), logger)
	if err := loop.Start(h.scanner, syncer); err != nil {
		return loop.Stats(), err
	}

	logger.Info().Msg("aguardando o fim do scan")

	waitCtx := ctx
	if d.opts.WaitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, d.opts.WaitTimeout)
		defer cancel()
	}

	if err := syncer.WaitContext(waitCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w after %s", ErrWaitTimeout, d.opts.WaitTimeout)
		}
		return loop.Stats(), err
	}

	stats := loop.Stats()
	logger.Info().Int("rows", stats.Rows).Int("pages", stats.Pages).Int("cells", stats.Cells).Msg("scan concluído")
	return stats, nil
}

// setup segue a ordem connect, client, scanner, tabela e ajustes opcionais.
func (d *Driver) setup(logger zerolog.Logger, h *handles) error {
	var err error

	if h.conn, err = d.svc.Connect(d.opts.Quorum, d.opts.Root); err != nil {
		return fmt.Errorf("connect to %q: %w", d.opts.Quorum, err)
	}
	logger.Debug().Str("quorum", d.opts.Quorum).Msg("conexão criada")

	if h.client, err = d.svc.CreateClient(h.conn); err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	logger.Debug().Msg("cliente criado")

	if h.scanner, err = d.svc.CreateScanner(h.client); err != nil {
		return fmt.Errorf("create scanner: %w", err)
	}

	if err := d.svc.SetTable(h.scanner, d.opts.Table); err != nil {
		return fmt.Errorf("set table: %w", err)
	}
	if d.opts.MaxRows > 0 {
		if err := d.svc.SetMaxRows(h.scanner, d.opts.MaxRows); err != nil {
			return fmt.Errorf("set max rows: %w", err)
		}
	}
	if d.opts.MaxVersions > 0 {
		if err := d.svc.SetMaxVersions(h.scanner, d.opts.MaxVersions); err != nil {
			return fmt.Errorf("set max versions: %w", err)
		}
	}
	if len(d.opts.Filter) > 0 {
		if err := d.svc.SetFilter(h.scanner, d.opts.Filter); err != nil {
			return fmt.Errorf("set filter: %w", err)
		}
	}

	logger.Debug().
		Int("max_rows", d.opts.MaxRows).
		Int8("max_versions", d.opts.MaxVersions).
		Bool("filter", len(d.opts.Filter) > 0).
		Msg("scanner configurado")
	return nil
}

// teardown destrói o cliente (aguardando o DisconnectCallback) e depois a
// conexão. Também roda quando a preparação parou no meio.
func (d *Driver) teardown(logger zerolog.Logger, h *handles) error {
	if d.opts.Teardown == TeardownNever {
		logger.Debug().Msg("teardown desativado")
		return nil
	}

	var errs []error
	if h.client != nil {
		errs = append(errs, d.destroyClient(logger, h.client))
	}
	if h.conn != nil {
		if err := d.svc.DestroyConnection(h.conn); err != nil {
			errs = append(errs, fmt.Errorf("destroy connection: %w", err))
		} else {
			logger.Debug().Msg("conexão encerrada")
		}
	}
	return errors.Join(errs...)
}

func (d *Driver) destroyClient(logger zerolog.Logger, client *tablesvc.Client) error {
	disconnected := make(chan error, 1)
	err := d.svc.DestroyClient(client, func(status error, _ *tablesvc.Client, _ any) {
		disconnected <- status
	}, nil)
	if err != nil {
		return fmt.Errorf("destroy client: %w", err)
	}

	var timeout <-chan time.Time
	if d.opts.TeardownTimeout > 0 {
		timer := time.NewTimer(d.opts.TeardownTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case status := <-disconnected:
		if status != nil {
			return fmt.Errorf("disconnect callback: %w", status)
		}
		logger.Debug().Msg("cliente encerrado")
		return nil
	case <-timeout:
		return fmt.Errorf("destroy client: disconnect callback not invoked within %s", d.opts.TeardownTimeout)
	}
}

func (d *Driver) record(logger zerolog.Logger, stats Stats, elapsed time.Duration, failed bool) {
	if d.metrics == nil {
		return
	}
	err := d.metrics.RecordScan(metrics.ScanSample{
		Table:    d.opts.Table,
		Backend:  d.opts.Backend,
		Pages:    stats.Pages,
		Rows:     stats.Rows,
		Cells:    stats.Cells,
		Duration: elapsed,
		Failed:   failed,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("falha ao enviar métricas do scan")
	}
}
