package scan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/raywall/fast-scan-toolkit/tablesvc"
)

// ErrInvalidText indica bytes que não são UTF-8 válido em chave, family,
// qualifier ou valor.
var ErrInvalidText = errors.New("scan: invalid utf-8 text")

// RowReader é o subconjunto do serviço usado para ler um Result.
type RowReader interface {
	RowKey(result *tablesvc.Result) ([]byte, error)
	CellCount(result *tablesvc.Result) (int, error)
	Cells(result *tablesvc.Result) ([]*tablesvc.Cell, error)
}

// CellReport é uma célula já decodificada.
type CellReport struct {
	Index     int
	Family    string
	Qualifier string
	Value     string
	Timestamp int64
}

// RowReport é uma linha já decodificada, pronta para ser impressa.
type RowReport struct {
	Key       string
	CellCount int
	Cells     []CellReport
}

// WriteTo renderiza o bloco da linha:
//
//	Row <key>,cell count <n>
//	Cell <i> family=<f> qualifier=<q> value=<v> timestamp=<ts>
func (r RowReport) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Row %s,cell count %d\n", r.Key, r.CellCount)
	for _, c := range r.Cells {
		fmt.Fprintf(&buf, "Cell %d family=%s qualifier=%s value=%s timestamp=%d\n",
			c.Index, c.Family, c.Qualifier, c.Value, c.Timestamp)
	}
	return buf.WriteTo(w)
}

// Materializer lê um Result vivo e escreve o seu relatório. Ele nunca
// libera o Result.
type Materializer struct {
	reader RowReader
	out    io.Writer
}

func NewMaterializer(reader RowReader, out io.Writer) *Materializer {
	return &Materializer{reader: reader, out: out}
}

// Materialize decodifica a linha por completo antes de escrever qualquer
// coisa; uma linha com erro não produz saída.
func (m *Materializer) Materialize(result *tablesvc.Result) (RowReport, error) {
	report, err := m.read(result)
	if err != nil {
		return RowReport{}, err
	}
	if _, err := report.WriteTo(m.out); err != nil {
		return RowReport{}, fmt.Errorf("scan: write row %q: %w", report.Key, err)
	}
	return report, nil
}

func (m *Materializer) read(result *tablesvc.Result) (RowReport, error) {
	rawKey, err := m.reader.RowKey(result)
	if err != nil {
		return RowReport{}, fmt.Errorf("scan: get row key: %w", err)
	}
	key, err := decodeText("row key", rawKey)
	if err != nil {
		return RowReport{}, err
	}

	count, err := m.reader.CellCount(result)
	if err != nil {
		return RowReport{}, fmt.Errorf("scan: get cell count of %q: %w", key, err)
	}

	cells, err := m.reader.Cells(result)
	if err != nil {
		return RowReport{}, fmt.Errorf("scan: get cells of %q: %w", key, err)
	}

	// O cabeçalho usa a contagem informada; o corpo, as células devolvidas.
	report := RowReport{Key: key, CellCount: count, Cells: make([]CellReport, 0, len(cells))}
	for i, c := range cells {
		cell, err := decodeCell(i, c)
		if err != nil {
			return RowReport{}, fmt.Errorf("row %q: %w", key, err)
		}
		report.Cells = append(report.Cells, cell)
	}
	return report, nil
}

func decodeCell(i int, c *tablesvc.Cell) (CellReport, error) {
	if c == nil {
		return CellReport{}, fmt.Errorf("scan: cell %d is nil", i)
	}

	cell := CellReport{Index: i, Timestamp: c.Timestamp}
	var err error
	if cell.Family, err = decodeText("family", c.Family); err != nil {
		return CellReport{}, err
	}
	if cell.Qualifier, err = decodeText("qualifier", c.Qualifier); err != nil {
		return CellReport{}, err
	}
	if cell.Value, err = decodeText("value", c.Value); err != nil {
		return CellReport{}, err
	}
	return cell, nil
}

func decodeText(field string, b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: %s %q", ErrInvalidText, field, b)
	}
	return string(b), nil
}
