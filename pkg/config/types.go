package config

import "time"

// ScanConfig representa a estrutura raiz do arquivo YAML de um scan.
type ScanConfig struct {
	Version    string         `yaml:"version" validate:"required"`
	Backend    BackendConf    `yaml:"backend"`
	Connection ConnectionConf `yaml:"connection"`
	Scan       ScanConf       `yaml:"scan"`
	Teardown   TeardownConf   `yaml:"teardown"`
	Logging    LoggingConf    `yaml:"logging"`
	Metrics    MetricsConf    `yaml:"metrics"`
}

// BackendConf escolhe a implementação do serviço de tabelas.
type BackendConf struct {
	Type     string       `yaml:"type" env:"HBSCAN_BACKEND" validate:"required,oneof=hbase dynamodb redis memory"`
	DynamoDB DynamoDBConf `yaml:"dynamodb"`
	Redis    RedisConf    `yaml:"redis"`
	Memory   MemoryConf   `yaml:"memory"`
}

type DynamoDBConf struct {
	Region             string `yaml:"region" env:"AWS_REGION"`
	Endpoint           string `yaml:"endpoint" env:"HBSCAN_DYNAMODB_ENDPOINT" validate:"omitempty,url"`
	KeyAttribute       string `yaml:"key_attribute"`
	TimestampAttribute string `yaml:"timestamp_attribute"`
}

type RedisConf struct {
	Password string `yaml:"password" env:"HBSCAN_REDIS_PASSWORD"`
	DB       int    `yaml:"db" validate:"gte=0"`
}

type MemoryConf struct {
	Fixture string `yaml:"fixture" env:"HBSCAN_FIXTURE"`
}

// ConnectionConf identifica o cluster. Para HBase o quorum é a lista de
// hosts do ZooKeeper; para Redis é o endereço; para DynamoDB é a região
// quando dynamodb.region está vazio.
type ConnectionConf struct {
	Quorum string `yaml:"quorum" env:"HBSCAN_QUORUM" validate:"required"`
	Root   string `yaml:"root" env:"HBSCAN_ROOT"` // opcional
}

type ScanConf struct {
	Table       string `yaml:"table" env:"HBSCAN_TABLE" validate:"required"`
	MaxRows     int    `yaml:"max_rows" env:"HBSCAN_MAX_ROWS" validate:"gte=0,lte=2147483647"`
	MaxVersions int    `yaml:"max_versions" validate:"gte=0,lte=127"`
	Filter      string `yaml:"filter"`
	WaitTimeout string `yaml:"wait_timeout" env:"HBSCAN_WAIT_TIMEOUT"` // Ex: "30s"; vazio = sem limite
}

type TeardownConf struct {
	Policy  string `yaml:"policy" validate:"omitempty,oneof=always never best_effort"`
	Timeout string `yaml:"timeout"`
}

type LoggingConf struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format  string `yaml:"format" validate:"omitempty,oneof=json console"`
}

type MetricsConf struct {
	Datadog DatadogConf `yaml:"datadog"`
}

type DatadogConf struct {
	Enabled           bool                     `yaml:"enabled" env:"DD_ENABLED"`
	Addr              string                   `yaml:"addr" env:"DD_AGENT_HOST" validate:"required_if=Enabled true"`
	Namespace         string                   `yaml:"namespace"`
	CustomDefinitions []CustomMetricDefinition `yaml:"custom_definitions" validate:"dive"`
}

// CustomMetricDefinition renomeia uma das métricas do scan.
type CustomMetricDefinition struct {
	ID   string `yaml:"id" validate:"required,oneof=scan_pages scan_rows scan_cells scan_duration scan_failures"`
	Name string `yaml:"name" validate:"required"`
	Type string `yaml:"type" validate:"omitempty,oneof=count gauge histogram"` // vazio mantém o tipo padrão
}

const (
	DefaultTeardownPolicy  = "best_effort"
	DefaultTeardownTimeout = 5 * time.Second
	DefaultNamespace       = "hbscan."
)

// ApplyDefaults preenche os campos opcionais ausentes.
func (c *ScanConfig) ApplyDefaults() {
	if c.Teardown.Policy == "" {
		c.Teardown.Policy = DefaultTeardownPolicy
	}
	if c.Teardown.Timeout == "" {
		c.Teardown.Timeout = DefaultTeardownTimeout.String()
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Metrics.Datadog.Namespace == "" {
		c.Metrics.Datadog.Namespace = DefaultNamespace
	}
}

// WaitTimeoutDuration devolve scan.wait_timeout como duração (0 = sem limite).
func (s ScanConf) WaitTimeoutDuration() (time.Duration, error) {
	return parseOptionalDuration(s.WaitTimeout)
}

func (t TeardownConf) TimeoutDuration() (time.Duration, error) {
	return parseOptionalDuration(t.Timeout)
}

// RootPtr devolve nil quando o root não foi informado.
func (c ConnectionConf) RootPtr() *string {
	if c.Root == "" {
		return nil
	}
	root := c.Root
	return &root
}

func parseOptionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
