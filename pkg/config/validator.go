package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ConfigValidator struct {
	validate *validator.Validate
}

// NewValidator cria uma nova instância do validador
func NewValidator() *ConfigValidator {
	return &ConfigValidator{
		validate: validator.New(),
	}
}

// Validate realiza validações estruturais (tags) e semânticas (lógica)
func (cv *ConfigValidator) Validate(cfg *ScanConfig) error {
	// 1. Validação Estrutural (Tags do struct: required, oneof, etc)
	if err := cv.validate.Struct(cfg); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			var errMsgs []string
			for _, e := range validationErrors {
				errMsgs = append(errMsgs, fmt.Sprintf("Campo '%s' falhou na regra '%s'", e.Namespace(), e.Tag()))
			}
			return fmt.Errorf("erros de validação estrutural:\n- %s", strings.Join(errMsgs, "\n- "))
		}
		return fmt.Errorf("erro de validação estrutural: %w", err)
	}

	// 2. Validação Semântica (Regras que dependem de mais de um campo)
	if err := cv.validateSemantics(cfg); err != nil {
		return fmt.Errorf("erro de validação semântica: %w", err)
	}

	return nil
}

func (cv *ConfigValidator) validateSemantics(cfg *ScanConfig) error {
	// 1. Durações
	if _, err := cfg.Scan.WaitTimeoutDuration(); err != nil {
		return fmt.Errorf("scan.wait_timeout inválido '%s': %w", cfg.Scan.WaitTimeout, err)
	}
	if _, err := cfg.Teardown.TimeoutDuration(); err != nil {
		return fmt.Errorf("teardown.timeout inválido '%s': %w", cfg.Teardown.Timeout, err)
	}

	// 2. Fixture obrigatória (e existente) para o backend em memória
	if cfg.Backend.Type == "memory" {
		if cfg.Backend.Memory.Fixture == "" {
			return fmt.Errorf("backend 'memory' exige 'backend.memory.fixture'")
		}
		if _, err := os.Stat(cfg.Backend.Memory.Fixture); err != nil {
			return fmt.Errorf("fixture '%s' inacessível: %w", cfg.Backend.Memory.Fixture, err)
		}
	}

	// 3. Filtros só são avaliados pelo DynamoDB
	if cfg.Scan.Filter != "" && cfg.Backend.Type != "dynamodb" {
		return fmt.Errorf("scan.filter não é suportado pelo backend '%s'", cfg.Backend.Type)
	}

	// 4. IDs de métricas customizadas não podem repetir
	seen := make(map[string]bool)
	for _, d := range cfg.Metrics.Datadog.CustomDefinitions {
		if seen[d.ID] {
			return fmt.Errorf("métrica customizada duplicada: '%s'", d.ID)
		}
		seen[d.ID] = true
	}

	return nil
}
