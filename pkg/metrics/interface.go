package metrics

// Provider define o contrato para envio de métricas.
// Isso permite trocar Datadog por outro backend sem alterar o scan.
type Provider interface {
	Count(name string, value float64, tags []string) error
	Gauge(name string, value float64, tags []string) error
	Histogram(name string, value float64, tags []string) error
	// Close descarrega o que estiver em buffer.
	Close() error
}

// MetricType define os tipos suportados.
type MetricType string

const (
	TypeCount     MetricType = "count"
	TypeGauge     MetricType = "gauge"
	TypeHistogram MetricType = "histogram"
)

// MetricDefinition armazena os metadados da métrica (nome real, tipo).
type MetricDefinition struct {
	Name string
	Type MetricType
}

// IDs das métricas emitidas por scan.
const (
	ScanPages    = "scan_pages"
	ScanRows     = "scan_rows"
	ScanCells    = "scan_cells"
	ScanDuration = "scan_duration"
	ScanFailures = "scan_failures"
)

// DefaultDefinitions devolve os nomes e tipos padrão das métricas do scan.
func DefaultDefinitions() map[string]MetricDefinition {
	return map[string]MetricDefinition{
		ScanPages:    {Name: "scan.pages", Type: TypeCount},
		ScanRows:     {Name: "scan.rows", Type: TypeCount},
		ScanCells:    {Name: "scan.cells", Type: TypeCount},
		ScanDuration: {Name: "scan.duration_ms", Type: TypeHistogram},
		ScanFailures: {Name: "scan.failures", Type: TypeCount},
	}
}
