package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/raywall/fast-scan-toolkit/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockProvider verifica as chamadas feitas ao Provider.
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Count(name string, val float64, tags []string) error {
	return m.Called(name, val, tags).Error(0)
}

func (m *MockProvider) Gauge(name string, val float64, tags []string) error {
	return m.Called(name, val, tags).Error(0)
}

func (m *MockProvider) Histogram(name string, val float64, tags []string) error {
	return m.Called(name, val, tags).Error(0)
}

func (m *MockProvider) Close() error { return nil }

var scanTags = []string{"backend:memory", "table:/tmp/tempTable"}

func TestProcessor_RecordScan(t *testing.T) {
	t.Run("Scan drenado", func(t *testing.T) {
		provider := new(MockProvider)
		provider.On("Count", "scan.pages", 3.0, scanTags).Return(nil).Once()
		provider.On("Count", "scan.rows", 5.0, scanTags).Return(nil).Once()
		provider.On("Count", "scan.cells", 9.0, scanTags).Return(nil).Once()
		provider.On("Histogram", "scan.duration_ms", 1500.0, scanTags).Return(nil).Once()

		p := NewProcessor(nil, provider)
		err := p.RecordScan(ScanSample{
			Table: "/tmp/tempTable", Backend: "memory",
			Pages: 3, Rows: 5, Cells: 9, Duration: 1500 * time.Millisecond,
		})

		assert.NoError(t, err)
		provider.AssertExpectations(t)
		provider.AssertNotCalled(t, "Count", "scan.failures", mock.Anything, mock.Anything)
	})

	t.Run("Scan com falha e nomes customizados", func(t *testing.T) {
		provider := new(MockProvider)
		provider.On("Count", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		provider.On("Histogram", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		provider.On("Gauge", "hbscan.rows_total", 0.0, scanTags).Return(errors.New("udp closed")).Once()

		defs := []config.CustomMetricDefinition{
			{ID: ScanRows, Name: "hbscan.rows_total", Type: "gauge"},
			{ID: ScanFailures, Name: "hbscan.errors"},
		}
		p := NewProcessor(defs, provider)
		err := p.RecordScan(ScanSample{Table: "/tmp/tempTable", Backend: "memory", Failed: true})

		assert.ErrorContains(t, err, "udp closed")
		provider.AssertCalled(t, "Count", "hbscan.errors", 1.0, scanTags)
		provider.AssertCalled(t, "Count", "scan.pages", 0.0, scanTags)
	})
}

func TestProcessor_Record(t *testing.T) {
	provider := new(MockProvider)
	p := NewProcessor(nil, provider)

	assert.ErrorContains(t, p.Record("latency", 1, nil), "métrica não definida")
	assert.ErrorContains(t, p.Record(ScanRows, []int{1}, nil), "tipo numérico não suportado")

	p.definitions["broken"] = MetricDefinition{Name: "x", Type: "summary"}
	assert.ErrorContains(t, p.Record("broken", 1, nil), "tipo de métrica desconhecido")
}

func TestToFloat64(t *testing.T) {
	tests := []struct {
		in   interface{}
		want float64
	}{
		{float64(1.5), 1.5},
		{float32(2), 2},
		{7, 7},
		{int64(8), 8},
		{250 * time.Millisecond, 250},
		{"3.25", 3.25},
	}
	for _, tt := range tests {
		got, err := toFloat64(tt.in)
		if err != nil {
			t.Errorf("toFloat64(%v) erro inesperado: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("toFloat64(%v) = %v, esperado %v", tt.in, got, tt.want)
		}
	}
}
