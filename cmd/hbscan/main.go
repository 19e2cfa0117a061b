package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/raywall/fast-scan-toolkit/pkg/config"
	"github.com/raywall/fast-scan-toolkit/pkg/logger"
	"github.com/raywall/fast-scan-toolkit/pkg/metrics"
	"github.com/raywall/fast-scan-toolkit/pkg/observability"
	"github.com/raywall/fast-scan-toolkit/scan"
	"github.com/raywall/fast-scan-toolkit/tablesvc"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	configPath string
	// Variáveis injetáveis para mocking
	newBackend   = buildBackend
	setupMetrics = observability.SetupMetrics
	logOutput    io.Writer = os.Stderr
)

func init() {
	configPath = os.Getenv("CONFIG_FILE_PATH")
}

func main() {
	args := os.Args[1:]
	if len(args) > 0 && args[0] == "validate" {
		validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
		filePtr := validateCmd.String("file", configPath, "Caminho do arquivo YAML ou S3/DynamoDB URI")
		validateCmd.Parse(args[1:])

		if err := runValidate(context.Background(), *filePtr, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Configuração inválida:\n%v\n", err)
			os.Exit(1)
		}
		return
	}

	if len(args) > 0 && args[0] == "run" {
		args = args[1:]
	}
	runCmd := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPtr := runCmd.String("config", configPath, "Caminho do arquivo YAML ou S3/DynamoDB URI")
	runCmd.Parse(args)

	if *cfgPtr == "" {
		log.Fatal().Msg("FATAL: informe -config ou CONFIG_FILE_PATH")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *cfgPtr, os.Stdout); err != nil {
		stop()
		reportFailure(logOutput, err)
		os.Exit(1)
	}
}

// reportFailure escreve o diagnóstico final mesmo com logging.enabled=false:
// o logger configurado por run pode estar descartando tudo.
func reportFailure(w io.Writer, err error) {
	fatal := zerolog.New(w).With().Timestamp().Logger()
	fatal.WithLevel(zerolog.FatalLevel).Err(err).Msg("FATAL: scan falhou")
}

// runValidate carrega e valida a configuração sem conectar em nada.
func runValidate(ctx context.Context, path string, out io.Writer) error {
	if path == "" {
		return fmt.Errorf("flag -file é obrigatória")
	}
	if _, err := config.Load(ctx, path); err != nil {
		return err
	}
	fmt.Fprintln(out, "config ok")
	return nil
}

// run contém a lógica principal testável
func run(ctx context.Context, cfgPath string, out io.Writer) error {
	// 1. Carrega Configuração (Loader)
	cfg, err := config.Load(ctx, cfgPath)
	if err != nil {
		return err
	}

	// 2. Logger e métricas
	lg := logger.ConfigureTo(logOutput, cfg.Logging)
	log.Logger = lg

	provider, err := setupMetrics(cfg.Metrics)
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.Close(); err != nil {
			lg.Warn().Err(err).Msg("falha ao descarregar métricas")
		}
	}()

	// 3. Backend e opções do scan
	backend, err := newBackend(cfg)
	if err != nil {
		return err
	}
	opts, err := scanOptions(cfg)
	if err != nil {
		return err
	}

	svc := tablesvc.New(backend,
		tablesvc.WithLogger(lg),
		tablesvc.WithContext(ctx),
	)

	// 4. Executa
	driver := scan.NewDriver(svc, opts,
		scan.WithOutput(out),
		scan.WithLogger(lg),
		scan.WithMetrics(metrics.NewProcessor(cfg.Metrics.Datadog.CustomDefinitions, provider)),
	)
	_, err = driver.Run(ctx)
	return err
}

func scanOptions(cfg *config.ScanConfig) (scan.Options, error) {
	wait, err := cfg.Scan.WaitTimeoutDuration()
	if err != nil {
		return scan.Options{}, err
	}
	teardownTimeout, err := cfg.Teardown.TimeoutDuration()
	if err != nil {
		return scan.Options{}, err
	}
	policy, err := scan.ParseTeardownPolicy(cfg.Teardown.Policy)
	if err != nil {
		return scan.Options{}, err
	}

	opts := scan.Options{
		Quorum:          cfg.Connection.Quorum,
		Root:            cfg.Connection.RootPtr(),
		Table:           cfg.Scan.Table,
		MaxRows:         cfg.Scan.MaxRows,
		MaxVersions:     int8(cfg.Scan.MaxVersions),
		WaitTimeout:     wait,
		Teardown:        policy,
		TeardownTimeout: teardownTimeout,
		Backend:         cfg.Backend.Type,
	}
	if cfg.Scan.Filter != "" {
		opts.Filter = []byte(cfg.Scan.Filter)
	}
	return opts, nil
}

// buildBackend seleciona a implementação do serviço de tabelas.
func buildBackend(cfg *config.ScanConfig) (tablesvc.Backend, error) {
	switch cfg.Backend.Type {
	case "hbase":
		return tablesvc.NewHBaseBackend(), nil
	case "dynamodb":
		d := cfg.Backend.DynamoDB
		return tablesvc.NewDynamoBackend(tablesvc.DynamoOptions{
			Region:             d.Region,
			Endpoint:           d.Endpoint,
			KeyAttribute:       d.KeyAttribute,
			TimestampAttribute: d.TimestampAttribute,
		}), nil
	case "redis":
		return tablesvc.NewRedisBackend(tablesvc.RedisOptions{
			Password: cfg.Backend.Redis.Password,
			DB:       cfg.Backend.Redis.DB,
		}), nil
	case "memory":
		backend := tablesvc.NewMemoryBackend()
		if err := backend.LoadFixture(cfg.Backend.Memory.Fixture); err != nil {
			return nil, fmt.Errorf("fixture do backend em memória: %w", err)
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("backend desconhecido: %s", cfg.Backend.Type)
	}
}

