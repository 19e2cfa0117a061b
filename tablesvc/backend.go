package tablesvc

import (
	"bytes"
	"context"
	"sort"
)

// DefaultPageRows é o tamanho de página usado quando o scanner não define
// SetMaxRows.
const DefaultPageRows = 100

// Row é uma linha materializada por um backend.
type Row struct {
	Key   []byte
	Cells []Cell
}

// ScanSpec reúne a configuração de um scanner no momento do primeiro Next.
type ScanSpec struct {
	Table       string
	MaxRows     int
	MaxVersions int8
	Filter      []byte
}

// PageRows devolve o tamanho efetivo da página.
func (s ScanSpec) PageRows() int {
	if s.MaxRows > 0 {
		return s.MaxRows
	}
	return DefaultPageRows
}

// Backend é a implementação concreta do armazenamento atrás do Service.
type Backend interface {
	Name() string
	Open(ctx context.Context, quorum string, root *string) (Session, error)
}

// Session é uma conexão aberta com o backend.
type Session interface {
	OpenScan(ctx context.Context, spec ScanSpec) (Cursor, error)
	Close() error
}

// Cursor avança o scan do lado do servidor. Uma página vazia sem erro
// indica que o scan terminou.
type Cursor interface {
	NextPage(ctx context.Context) ([]Row, error)
	Close() error
}

// limitVersions mantém no máximo n versões (as mais recentes) de cada
// coluna, preservando a ordem family/qualifier.
func limitVersions(cells []Cell, n int) []Cell {
	if n <= 0 || len(cells) == 0 {
		return cells
	}

	sorted := make([]Cell, len(cells))
	copy(sorted, cells)
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := bytes.Compare(sorted[i].Family, sorted[j].Family); c != 0 {
			return c < 0
		}
		if c := bytes.Compare(sorted[i].Qualifier, sorted[j].Qualifier); c != 0 {
			return c < 0
		}
		return sorted[i].Timestamp > sorted[j].Timestamp
	})

	out := make([]Cell, 0, len(sorted))
	seen := 0
	for i, c := range sorted {
		if i > 0 && bytes.Equal(c.Family, sorted[i-1].Family) && bytes.Equal(c.Qualifier, sorted[i-1].Qualifier) {
			seen++
		} else {
			seen = 0
		}
		if seen < n {
			out = append(out, c)
		}
	}
	return out
}
