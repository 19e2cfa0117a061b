package tablesvc

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/tsuna/gohbase"
	"github.com/tsuna/gohbase/hrpc"
)

// HBaseBackend fala com o HBase pelo protocolo RPC nativo, localizando o
// cluster pelo quorum do ZooKeeper. A linguagem de filtros do HBase não é
// interpretada no cliente, então SetFilter resulta em ENOTSUP.
type HBaseBackend struct {
	newClient func(quorum string, opts ...gohbase.Option) hbaseClient
}

// hbaseClient é o subconjunto de gohbase.Client usado aqui.
type hbaseClient interface {
	Scan(s *hrpc.Scan) hrpc.Scanner
	Close()
}

// rowScanner é o subconjunto de hrpc.Scanner usado pelo cursor.
type rowScanner interface {
	Next() (*hrpc.Result, error)
	Close() error
}

func NewHBaseBackend() *HBaseBackend {
	return &HBaseBackend{
		newClient: func(quorum string, opts ...gohbase.Option) hbaseClient {
			return gohbase.NewClient(quorum, opts...)
		},
	}
}

func (b *HBaseBackend) Name() string { return "hbase" }

func (b *HBaseBackend) Open(_ context.Context, quorum string, root *string) (Session, error) {
	if quorum == "" {
		return nil, statusf("connect", EINVAL, "empty zookeeper quorum")
	}

	var opts []gohbase.Option
	if root != nil && *root != "" {
		opts = append(opts, gohbase.ZookeeperRoot(*root))
	}
	return &hbaseSession{client: b.newClient(quorum, opts...)}, nil
}

type hbaseSession struct {
	client hbaseClient
}

func (s *hbaseSession) OpenScan(ctx context.Context, spec ScanSpec) (Cursor, error) {
	if len(spec.Filter) > 0 {
		return nil, statusf("open scan", ENOTSUP, "hbase filter language is not supported by the native client")
	}

	var options []func(hrpc.Call) error
	if spec.MaxRows > 0 {
		options = append(options, hrpc.NumberOfRows(uint32(spec.MaxRows)))
	}
	if spec.MaxVersions > 0 {
		options = append(options, hrpc.MaxVersions(uint32(spec.MaxVersions)))
	}

	req, err := hrpc.NewScanStr(ctx, spec.Table, options...)
	if err != nil {
		return nil, statusf("open scan", EINVAL, "build scan request: %w", err)
	}
	return newHBaseCursor(s.client.Scan(req), spec.PageRows()), nil
}

func (s *hbaseSession) Close() error {
	s.client.Close()
	return nil
}

type hbaseCursor struct {
	scanner  rowScanner
	pageRows int
	pending  *Row
	done     bool
}

func newHBaseCursor(scanner rowScanner, pageRows int) *hbaseCursor {
	return &hbaseCursor{scanner: scanner, pageRows: pageRows}
}

// NextPage agrupa até pageRows linhas. Resultados parciais da mesma linha
// são unidos antes de a linha entrar na página.
func (c *hbaseCursor) NextPage(ctx context.Context) ([]Row, error) {
	page := make([]Row, 0, c.pageRows)

	for !c.done && len(page) < c.pageRows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := c.scanner.Next()
		if errors.Is(err, io.EOF) {
			c.done = true
			break
		}
		if err != nil {
			return nil, statusf("next", EIO, "hbase scan: %w", err)
		}

		row, ok := rowFromResult(res)
		if !ok {
			continue
		}
		if c.pending != nil && bytes.Equal(c.pending.Key, row.Key) {
			c.pending.Cells = append(c.pending.Cells, row.Cells...)
			continue
		}
		if c.pending != nil {
			page = append(page, *c.pending)
		}
		c.pending = &row
	}

	if c.done && c.pending != nil && len(page) < c.pageRows {
		page = append(page, *c.pending)
		c.pending = nil
	}
	return page, nil
}

func (c *hbaseCursor) Close() error {
	return c.scanner.Close()
}

func rowFromResult(res *hrpc.Result) (Row, bool) {
	if res == nil || len(res.Cells) == 0 {
		return Row{}, false
	}

	row := Row{Key: res.Cells[0].Row, Cells: make([]Cell, 0, len(res.Cells))}
	for _, c := range res.Cells {
		var ts int64
		if c.Timestamp != nil {
			ts = int64(*c.Timestamp)
		}
		row.Cells = append(row.Cells, Cell{
			Family:    c.Family,
			Qualifier: c.Qualifier,
			Value:     c.Value,
			Timestamp: ts,
		})
	}
	return row, true
}
