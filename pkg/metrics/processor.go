package metrics

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/raywall/fast-scan-toolkit/pkg/config"
)

// Processor resolve IDs de métricas para as suas definições e envia os
// valores ao Provider.
type Processor struct {
	definitions map[string]MetricDefinition
	provider    Provider
}

// NewProcessor parte das definições padrão e aplica as customizações do
// YAML (nome e, opcionalmente, tipo).
func NewProcessor(conf []config.CustomMetricDefinition, provider Provider) *Processor {
	defs := DefaultDefinitions()
	for _, d := range conf {
		def := defs[d.ID]
		def.Name = d.Name
		if d.Type != "" {
			def.Type = MetricType(d.Type)
		}
		defs[d.ID] = def
	}

	return &Processor{
		definitions: defs,
		provider:    provider,
	}
}

// Record envia um valor para a métrica identificada por id.
func (p *Processor) Record(id string, value interface{}, tags map[string]string) error {
	def, exists := p.definitions[id]
	if !exists {
		return fmt.Errorf("métrica não definida: %s", id)
	}

	val, err := toFloat64(value)
	if err != nil {
		return fmt.Errorf("valor da métrica %s inválido: %w", id, err)
	}

	finalTags := make([]string, 0, len(tags))
	for k, v := range tags {
		finalTags = append(finalTags, fmt.Sprintf("%s:%s", k, v))
	}
	sort.Strings(finalTags)

	switch def.Type {
	case TypeCount:
		return p.provider.Count(def.Name, val, finalTags)
	case TypeGauge:
		return p.provider.Gauge(def.Name, val, finalTags)
	case TypeHistogram:
		return p.provider.Histogram(def.Name, val, finalTags)
	default:
		return fmt.Errorf("tipo de métrica desconhecido: %s", def.Type)
	}
}

// ScanSample resume um scan concluído (ou abortado).
type ScanSample struct {
	Table    string
	Backend  string
	Pages    int
	Rows     int
	Cells    int
	Duration time.Duration
	Failed   bool
}

// RecordScan envia todas as métricas de um scan. Falhas de envio não
// interrompem as demais.
func (p *Processor) RecordScan(s ScanSample) error {
	tags := map[string]string{"table": s.Table, "backend": s.Backend}

	errs := []error{
		p.Record(ScanPages, s.Pages, tags),
		p.Record(ScanRows, s.Rows, tags),
		p.Record(ScanCells, s.Cells, tags),
		p.Record(ScanDuration, s.Duration, tags),
	}
	if s.Failed {
		errs = append(errs, p.Record(ScanFailures, 1, tags))
	}
	return errors.Join(errs...)
}

// toFloat64 converte os tipos numéricos aceitos para float64.
// Durações viram milissegundos.
func toFloat64(v interface{}) (float64, error) {
	switch i := v.(type) {
	case float64:
		return i, nil
	case float32:
		return float64(i), nil
	case int:
		return float64(i), nil
	case int64:
		return float64(i), nil
	case time.Duration:
		return float64(i) / float64(time.Millisecond), nil
	case string:
		return strconv.ParseFloat(i, 64)
	default:
		return 0, fmt.Errorf("tipo numérico não suportado: %T", v)
	}
}
