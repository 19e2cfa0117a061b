package tablesvc

import "context"

// noCopy faz o `go vet -copylocks` acusar cópias de handles.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Connection é o handle de uma conexão aberta com o cluster.
type Connection struct {
	_ noCopy

	id      uint64
	quorum  string
	session Session
	closed  bool
}

// Client é o handle de um cliente. Cada cliente possui a sua própria
// goroutine de despacho, onde as continuations de scan são invocadas.
type Client struct {
	_ noCopy

	id       uint64
	conn     *Connection
	ctx      context.Context
	cancel   context.CancelFunc
	queue    chan fetchJob
	stop     chan struct{}
	finished chan struct{}
	scanners []*Scanner
	closing  bool
}

// Scanner é o handle de um scanner do lado do cliente. Nenhuma chamada ao
// backend acontece antes do primeiro Next.
type Scanner struct {
	_ noCopy

	id        uint64
	client    *Client
	spec      ScanSpec
	cursor    Cursor
	started   bool
	inFlight  bool
	exhausted bool
}

// Result é o handle de uma linha entregue numa página. Deve ser liberado
// exatamente uma vez com Release.
type Result struct {
	_ noCopy

	id       uint64
	owner    uint64
	key      []byte
	cells    []*Cell
	released bool
}

// Cell é uma visão somente-leitura de uma célula, válida até o Release do
// Result que a contém.
type Cell struct {
	Family    []byte
	Qualifier []byte
	Value     []byte
	Timestamp int64
}

// ScanCallback é a continuation de Next. page é válida apenas durante a
// invocação; cada Result dentro dela pertence a quem recebeu a página.
type ScanCallback func(status error, scanner *Scanner, page []*Result, extra any)

// DisconnectCallback é invocado depois que as conexões do cliente foram
// fechadas, logo antes de o cliente ser descartado.
type DisconnectCallback func(status error, client *Client, extra any)

// Service é o contrato do serviço remoto de tabelas.
type Service interface {
	Connect(quorum string, root *string) (*Connection, error)
	CreateClient(conn *Connection) (*Client, error)
	CreateScanner(client *Client) (*Scanner, error)

	SetTable(scanner *Scanner, table string) error
	SetMaxRows(scanner *Scanner, rows int) error
	SetMaxVersions(scanner *Scanner, versions int8) error
	SetFilter(scanner *Scanner, filter []byte) error

	// Next não bloqueia: cb é invocado depois, exatamente uma vez, na
	// goroutine de despacho do cliente.
	Next(scanner *Scanner, cb ScanCallback, extra any) error

	RowKey(result *Result) ([]byte, error)
	CellCount(result *Result) (int, error)
	Cells(result *Result) ([]*Cell, error)
	Release(result *Result) error

	DestroyClient(client *Client, cb DisconnectCallback, extra any) error
	DestroyConnection(conn *Connection) error
}
