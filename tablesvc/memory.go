package tablesvc

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// MemoryBackend guarda tabelas em memória, ordenadas por chave de linha.
// Filtros não são suportados.
type MemoryBackend struct {
	mu     sync.RWMutex
	tables map[string][]Row
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{tables: make(map[string][]Row)}
}

func (m *MemoryBackend) Name() string { return "memory" }

// CreateTable registra uma tabela vazia.
func (m *MemoryBackend) CreateTable(table string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[table]; !ok {
		m.tables[table] = nil
	}
}

// Put grava (ou acrescenta células a) uma linha.
func (m *MemoryBackend) Put(table string, key []byte, cells ...Cell) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.tables[table]
	i := sort.Search(len(rows), func(i int) bool { return bytes.Compare(rows[i].Key, key) >= 0 })
	if i < len(rows) && bytes.Equal(rows[i].Key, key) {
		merged := append(append([]Cell(nil), rows[i].Cells...), cells...)
		updated := make([]Row, len(rows))
		copy(updated, rows)
		updated[i] = Row{Key: rows[i].Key, Cells: merged}
		m.tables[table] = updated
		return
	}

	updated := make([]Row, 0, len(rows)+1)
	updated = append(updated, rows[:i]...)
	updated = append(updated, Row{Key: append([]byte(nil), key...), Cells: append([]Cell(nil), cells...)})
	updated = append(updated, rows[i:]...)
	m.tables[table] = updated
}

type fixtureCell struct {
	Family    string `yaml:"family"`
	Qualifier string `yaml:"qualifier"`
	Value     string `yaml:"value"`
	Timestamp int64  `yaml:"timestamp"`
}

type fixtureRow struct {
	Key   string        `yaml:"key"`
	Cells []fixtureCell `yaml:"cells"`
}

type fixtureFile struct {
	Tables map[string][]fixtureRow `yaml:"tables"`
}

// LoadFixture carrega tabelas de um arquivo YAML no formato:
//
//	tables:
//	  /tmp/tempTable:
//	    - key: r1
//	      cells:
//	        - {family: f, qualifier: q, value: v1, timestamp: 100}
func (m *MemoryBackend) LoadFixture(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("memory: read fixture: %w", err)
	}
	return m.LoadFixtureYAML(data)
}

func (m *MemoryBackend) LoadFixtureYAML(data []byte) error {
	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("memory: parse fixture: %w", err)
	}

	for table, rows := range f.Tables {
		m.CreateTable(table)
		for _, r := range rows {
			cells := make([]Cell, 0, len(r.Cells))
			for _, c := range r.Cells {
				cells = append(cells, Cell{
					Family:    []byte(c.Family),
					Qualifier: []byte(c.Qualifier),
					Value:     []byte(c.Value),
					Timestamp: c.Timestamp,
				})
			}
			m.Put(table, []byte(r.Key), cells...)
		}
	}
	return nil
}

func (m *MemoryBackend) Open(_ context.Context, _ string, root *string) (Session, error) {
	prefix := ""
	if root != nil {
		prefix = *root
	}
	return &memorySession{backend: m, prefix: prefix}, nil
}

type memorySession struct {
	backend *MemoryBackend
	prefix  string
}

func (s *memorySession) OpenScan(_ context.Context, spec ScanSpec) (Cursor, error) {
	if len(spec.Filter) > 0 {
		return nil, statusf("open scan", ENOTSUP, "memory backend does not evaluate filters")
	}

	s.backend.mu.RLock()
	rows, ok := s.backend.tables[s.prefix+spec.Table]
	s.backend.mu.RUnlock()
	if !ok {
		return nil, statusf("open scan", ENOENT, "table %q not found", s.prefix+spec.Table)
	}

	// Put nunca altera o slice publicado, então rows é um snapshot estável.
	return &memoryCursor{rows: rows, pageRows: spec.PageRows(), versions: int(spec.MaxVersions)}, nil
}

func (s *memorySession) Close() error { return nil }

type memoryCursor struct {
	rows     []Row
	pos      int
	pageRows int
	versions int
}

func (c *memoryCursor) NextPage(ctx context.Context) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	end := c.pos + c.pageRows
	if end > len(c.rows) {
		end = len(c.rows)
	}
	page := make([]Row, 0, end-c.pos)
	for _, r := range c.rows[c.pos:end] {
		page = append(page, Row{Key: r.Key, Cells: limitVersions(r.Cells, c.versions)})
	}
	c.pos = end
	return page, nil
}

func (c *memoryCursor) Close() error { return nil }
