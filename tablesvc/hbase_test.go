package tablesvc

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsuna/gohbase"
	"github.com/tsuna/gohbase/hrpc"
)

type fakeRowScanner struct {
	results []*hrpc.Result
	err     error
	closed  bool
}

func (s *fakeRowScanner) Next() (*hrpc.Result, error) {
	if len(s.results) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r, nil
}

func (s *fakeRowScanner) Close() error {
	s.closed = true
	return nil
}

type fakeHBaseClient struct {
	scanner *fakeRowScanner
	scans   []*hrpc.Scan
	closed  bool
}

func (c *fakeHBaseClient) Scan(s *hrpc.Scan) hrpc.Scanner {
	c.scans = append(c.scans, s)
	return c.scanner
}

func (c *fakeHBaseClient) Close() { c.closed = true }

func hbaseResult(row string, cells ...[3]string) *hrpc.Result {
	res := &hrpc.Result{}
	for i, c := range cells {
		ts := uint64(100 + i)
		res.Cells = append(res.Cells, &hrpc.Cell{
			Row:       []byte(row),
			Family:    []byte(c[0]),
			Qualifier: []byte(c[1]),
			Value:     []byte(c[2]),
			Timestamp: &ts,
		})
	}
	return res
}

func TestHBaseCursor_Pages(t *testing.T) {
	scanner := &fakeRowScanner{results: []*hrpc.Result{
		hbaseResult("r1", [3]string{"f", "a", "1"}),
		hbaseResult("r2", [3]string{"f", "a", "2"}),
		hbaseResult("r3", [3]string{"f", "a", "3"}),
	}}
	cursor := newHBaseCursor(scanner, 2)

	page, err := cursor.NextPage(context.Background())
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "r1", string(page[0].Key))
	assert.Equal(t, "r2", string(page[1].Key))
	assert.Equal(t, int64(100), page[0].Cells[0].Timestamp)

	page, err = cursor.NextPage(context.Background())
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "r3", string(page[0].Key))

	page, err = cursor.NextPage(context.Background())
	require.NoError(t, err)
	assert.Empty(t, page)

	require.NoError(t, cursor.Close())
	assert.True(t, scanner.closed)
}

func TestHBaseCursor_MergesPartialResults(t *testing.T) {
	scanner := &fakeRowScanner{results: []*hrpc.Result{
		hbaseResult("r1", [3]string{"f", "a", "1"}),
		hbaseResult("r1", [3]string{"f", "b", "2"}),
		{},
		hbaseResult("r2", [3]string{"f", "a", "3"}),
	}}
	cursor := newHBaseCursor(scanner, 10)

	page, err := cursor.NextPage(context.Background())
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Len(t, page[0].Cells, 2, "resultados parciais da mesma linha devem ser unidos")
	assert.Equal(t, "b", string(page[0].Cells[1].Qualifier))
	assert.Len(t, page[1].Cells, 1)
}

func TestHBaseCursor_Errors(t *testing.T) {
	t.Run("falha no scanner", func(t *testing.T) {
		cursor := newHBaseCursor(&fakeRowScanner{err: errors.New("region moved")}, 10)
		_, err := cursor.NextPage(context.Background())
		assert.Equal(t, EIO, CodeOf(err))
		assert.ErrorContains(t, err, "region moved")
	})

	t.Run("contexto cancelado", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		cursor := newHBaseCursor(&fakeRowScanner{}, 10)
		_, err := cursor.NextPage(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestHBaseBackend_Open(t *testing.T) {
	client := &fakeHBaseClient{scanner: &fakeRowScanner{}}
	var gotQuorum string
	var gotOpts int

	b := NewHBaseBackend()
	b.newClient = func(quorum string, opts ...gohbase.Option) hbaseClient {
		gotQuorum = quorum
		gotOpts = len(opts)
		return client
	}

	_, err := b.Open(context.Background(), "", nil)
	assert.Equal(t, EINVAL, CodeOf(err))

	root := "/hbase-unsecure"
	session, err := b.Open(context.Background(), "zk1,zk2", &root)
	require.NoError(t, err)
	assert.Equal(t, "zk1,zk2", gotQuorum)
	assert.Equal(t, 1, gotOpts, "root deve virar a opção ZookeeperRoot")

	_, err = session.OpenScan(context.Background(), ScanSpec{Table: "t", Filter: []byte("PrefixFilter('r')")})
	assert.Equal(t, ENOTSUP, CodeOf(err))

	cursor, err := session.OpenScan(context.Background(), ScanSpec{Table: "t", MaxRows: 5, MaxVersions: 2})
	require.NoError(t, err)
	require.Len(t, client.scans, 1)
	assert.Equal(t, "t", string(client.scans[0].Table()))

	page, err := cursor.NextPage(context.Background())
	require.NoError(t, err)
	assert.Empty(t, page)

	require.NoError(t, session.Close())
	assert.True(t, client.closed)
}
