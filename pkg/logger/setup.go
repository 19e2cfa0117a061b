package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/raywall/fast-scan-toolkit/pkg/config"
	"github.com/rs/zerolog"
)

// Configure inicializa o logger global baseando-se na configuração do YAML.
// Os logs vão para stderr: stdout é reservado para o relatório do scan.
func Configure(cfg config.LoggingConf) zerolog.Logger {
	return ConfigureTo(os.Stderr, cfg)
}

// ConfigureTo é Configure com destino explícito.
func ConfigureTo(w io.Writer, cfg config.LoggingConf) zerolog.Logger {
	// Define o nível de log (default: info)
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := w
	if !cfg.Enabled {
		output = io.Discard
	} else if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Logger()
}
