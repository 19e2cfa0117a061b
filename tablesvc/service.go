package tablesvc

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultQueueSize é a capacidade da fila de fetches de cada cliente.
const DefaultQueueSize = 64

type fetchJob struct {
	scanner *Scanner
	cb      ScanCallback
	extra   any
}

// Gateway implementa Service sobre um Backend. Handles são registrados
// aqui e só podem ser criados por ele.
type Gateway struct {
	backend   Backend
	logger    zerolog.Logger
	ctx       context.Context
	queueSize int

	mu      sync.Mutex
	nextID  uint64
	results map[uint64]*Result
}

// Option configura um Gateway.
type Option func(*Gateway)

func WithLogger(logger zerolog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithContext define o contexto base das chamadas ao backend.
func WithContext(ctx context.Context) Option {
	return func(g *Gateway) {
		g.ctx = ctx
	}
}

func WithQueueSize(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.queueSize = n
		}
	}
}

// New cria um Gateway para o backend informado.
func New(backend Backend, opts ...Option) *Gateway {
	g := &Gateway{
		backend:   backend,
		logger:    zerolog.Nop(),
		ctx:       context.Background(),
		queueSize: DefaultQueueSize,
		results:   make(map[uint64]*Result),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With().Str("component", "tablesvc").Str("backend", backend.Name()).Logger()
	return g
}

var _ Service = (*Gateway)(nil)

func (g *Gateway) id() uint64 {
	g.nextID++
	return g.nextID
}

func (g *Gateway) Connect(quorum string, root *string) (*Connection, error) {
	session, err := g.backend.Open(g.ctx, quorum, root)
	if err != nil {
		return nil, wrap("connect", ENOTCONN, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	conn := &Connection{id: g.id(), quorum: quorum, session: session}
	g.logger.Debug().Uint64("connection", conn.id).Str("quorum", quorum).Msg("conexão criada")
	return conn, nil
}

func (g *Gateway) CreateClient(conn *Connection) (*Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if conn == nil {
		return nil, statusf("create client", EINVAL, "nil connection")
	}
	if conn.closed {
		return nil, statusf("create client", ENOTCONN, "connection %d is closed", conn.id)
	}

	ctx, cancel := context.WithCancel(g.ctx)
	client := &Client{
		id:       g.id(),
		conn:     conn,
		ctx:      ctx,
		cancel:   cancel,
		queue:    make(chan fetchJob, g.queueSize),
		stop:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	go g.dispatch(client)
	return client, nil
}

func (g *Gateway) CreateScanner(client *Client) (*Scanner, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.usableClient("create scanner", client); err != nil {
		return nil, err
	}
	scanner := &Scanner{id: g.id(), client: client}
	client.scanners = append(client.scanners, scanner)
	return scanner, nil
}

func (g *Gateway) usableClient(op string, client *Client) error {
	if client == nil {
		return statusf(op, EINVAL, "nil client")
	}
	if client.closing {
		return statusf(op, ENOTCONN, "client %d is being destroyed", client.id)
	}
	if client.conn.closed {
		return statusf(op, ENOTCONN, "connection %d is closed", client.conn.id)
	}
	return nil
}

// configure aplica uma alteração no scanner enquanto nenhum Next foi emitido.
func (g *Gateway) configure(op string, scanner *Scanner, apply func(*ScanSpec) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if scanner == nil {
		return statusf(op, EINVAL, "nil scanner")
	}
	if scanner.started {
		return statusf(op, EBUSY, "scanner %d already started", scanner.id)
	}
	return apply(&scanner.spec)
}

func (g *Gateway) SetTable(scanner *Scanner, table string) error {
	return g.configure("set table", scanner, func(spec *ScanSpec) error {
		if table == "" {
			return statusf("set table", EINVAL, "empty table name")
		}
		spec.Table = table
		return nil
	})
}

func (g *Gateway) SetMaxRows(scanner *Scanner, rows int) error {
	return g.configure("set max rows", scanner, func(spec *ScanSpec) error {
		if rows <= 0 {
			return statusf("set max rows", EINVAL, "max rows must be positive, got %d", rows)
		}
		spec.MaxRows = rows
		return nil
	})
}

func (g *Gateway) SetMaxVersions(scanner *Scanner, versions int8) error {
	return g.configure("set max versions", scanner, func(spec *ScanSpec) error {
		if versions <= 0 {
			return statusf("set max versions", EINVAL, "max versions must be positive, got %d", versions)
		}
		spec.MaxVersions = versions
		return nil
	})
}

func (g *Gateway) SetFilter(scanner *Scanner, filter []byte) error {
	return g.configure("set filter", scanner, func(spec *ScanSpec) error {
		spec.Filter = append([]byte(nil), filter...)
		return nil
	})
}

func (g *Gateway) Next(scanner *Scanner, cb ScanCallback, extra any) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if scanner == nil {
		return statusf("next", EINVAL, "nil scanner")
	}
	if cb == nil {
		return statusf("next", EINVAL, "nil callback")
	}
	if err := g.usableClient("next", scanner.client); err != nil {
		return err
	}
	if scanner.spec.Table == "" {
		return statusf("next", EINVAL, "scanner %d has no table", scanner.id)
	}
	if scanner.inFlight {
		return statusf("next", EALREADY, "scanner %d already has a fetch in flight", scanner.id)
	}

	select {
	case scanner.client.queue <- fetchJob{scanner: scanner, cb: cb, extra: extra}:
	default:
		return statusf("next", EAGAIN, "dispatch queue of client %d is full", scanner.client.id)
	}
	scanner.started = true
	scanner.inFlight = true
	return nil
}

// dispatch é a goroutine de I/O do cliente. Cada job enfileirado gera
// exatamente uma invocação de callback, inclusive quando o cliente é
// destruído com fetches pendentes.
func (g *Gateway) dispatch(client *Client) {
	defer close(client.finished)

	for {
		select {
		case job := <-client.queue:
			g.fetch(client, job)
		case <-client.stop:
			for {
				select {
				case job := <-client.queue:
					g.deliver(job, statusf("next", ENOTCONN, "client %d destroyed", client.id), nil)
				default:
					return
				}
			}
		}
	}
}

func (g *Gateway) fetch(client *Client, job fetchJob) {
	g.mu.Lock()
	scanner := job.scanner
	cursor := scanner.cursor
	spec := scanner.spec
	exhausted := scanner.exhausted
	g.mu.Unlock()

	if exhausted {
		g.deliver(job, nil, nil)
		return
	}

	if cursor == nil {
		var err error
		cursor, err = client.conn.session.OpenScan(client.ctx, spec)
		if err != nil {
			g.deliver(job, wrap("next", EIO, err), nil)
			return
		}
		g.mu.Lock()
		scanner.cursor = cursor
		g.mu.Unlock()
	}

	rows, err := cursor.NextPage(client.ctx)
	if err != nil {
		g.deliver(job, wrap("next", EIO, err), nil)
		return
	}

	g.mu.Lock()
	page := make([]*Result, 0, len(rows))
	for _, row := range rows {
		page = append(page, g.register(client, row))
	}
	if len(rows) == 0 {
		scanner.exhausted = true
	}
	g.mu.Unlock()

	g.logger.Debug().Uint64("scanner", scanner.id).Int("rows", len(page)).Msg("página recebida do backend")
	g.deliver(job, nil, page)
}

// register precisa ser chamado com g.mu travado.
func (g *Gateway) register(client *Client, row Row) *Result {
	result := &Result{id: g.id(), owner: client.id, key: row.Key, cells: make([]*Cell, len(row.Cells))}
	for i := range row.Cells {
		cell := row.Cells[i]
		result.cells[i] = &cell
	}
	g.results[result.id] = result
	return result
}

func (g *Gateway) deliver(job fetchJob, status error, page []*Result) {
	g.mu.Lock()
	job.scanner.inFlight = false
	g.mu.Unlock()

	job.cb(status, job.scanner, page, job.extra)
}

// live devolve o Result se ele ainda não foi liberado. Requer g.mu.
func (g *Gateway) live(op string, result *Result) (*Result, error) {
	if result == nil {
		return nil, statusf(op, EINVAL, "nil result")
	}
	if result.released {
		return nil, statusf(op, EINVAL, "result %d already released", result.id)
	}
	if _, ok := g.results[result.id]; !ok {
		return nil, statusf(op, EINVAL, "unknown result %d", result.id)
	}
	return result, nil
}

func (g *Gateway) RowKey(result *Result) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, err := g.live("get row key", result)
	if err != nil {
		return nil, err
	}
	return r.key, nil
}

func (g *Gateway) CellCount(result *Result) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, err := g.live("get cell count", result)
	if err != nil {
		return 0, err
	}
	return len(r.cells), nil
}

// Cells devolve sempre o mesmo slice para o mesmo Result.
func (g *Gateway) Cells(result *Result) ([]*Cell, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, err := g.live("get cells", result)
	if err != nil {
		return nil, err
	}
	return r.cells, nil
}

func (g *Gateway) Release(result *Result) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, err := g.live("release result", result)
	if err != nil {
		return err
	}
	r.released = true
	delete(g.results, r.id)
	return nil
}

// Outstanding informa quantos Results ainda não foram liberados.
func (g *Gateway) Outstanding() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.results)
}

func (g *Gateway) DestroyClient(client *Client, cb DisconnectCallback, extra any) error {
	g.mu.Lock()
	if client == nil {
		g.mu.Unlock()
		return statusf("destroy client", EINVAL, "nil client")
	}
	if client.closing {
		g.mu.Unlock()
		return statusf("destroy client", EALREADY, "client %d already destroyed", client.id)
	}
	client.closing = true
	scanners := client.scanners
	g.mu.Unlock()

	client.cancel()
	close(client.stop)

	go func() {
		<-client.finished

		var errs []error
		for _, s := range scanners {
			if s.cursor == nil {
				continue
			}
			if err := s.cursor.Close(); err != nil {
				errs = append(errs, err)
			}
		}

		if n := g.reclaim(client.id); n > 0 {
			g.logger.Warn().Uint64("client", client.id).Int("results", n).Msg("results não liberados recuperados no encerramento do cliente")
		}

		if cb != nil {
			cb(wrap("destroy client", EIO, errors.Join(errs...)), client, extra)
		}
	}()
	return nil
}

// reclaim libera os Results do cliente que o consumidor deixou para trás.
func (g *Gateway) reclaim(owner uint64) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	for id, r := range g.results {
		if r.owner != owner {
			continue
		}
		r.released = true
		delete(g.results, id)
		n++
	}
	return n
}

func (g *Gateway) DestroyConnection(conn *Connection) error {
	g.mu.Lock()
	if conn == nil {
		g.mu.Unlock()
		return statusf("destroy connection", EINVAL, "nil connection")
	}
	if conn.closed {
		g.mu.Unlock()
		return statusf("destroy connection", EALREADY, "connection %d already destroyed", conn.id)
	}
	conn.closed = true
	g.mu.Unlock()

	if err := conn.session.Close(); err != nil {
		return wrap("destroy connection", EIO, err)
	}
	return nil
}
