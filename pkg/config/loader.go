package config

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/raywall/fast-scan-toolkit/pkg/awsconf"
	"github.com/raywall/fast-scan-toolkit/pkg/config/injector"
	"gopkg.in/yaml.v3"
)

// Load é a função simplificada usada pelo CLI.
func Load(ctx context.Context, source string) (*ScanConfig, error) {
	return NewLoader().Load(ctx, source)
}

// --- Interfaces para Mocking ---

type S3Downloader interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type DynamoGetter interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// Loader suporta múltiplas fontes de configuração (Local, S3, DynamoDB).
type Loader struct {
	validator *ConfigValidator
	injector  *injector.Injector
	s3        S3Downloader
	dynamo    DynamoGetter
}

type LoaderOption func(*Loader)

func WithS3Client(client S3Downloader) LoaderOption {
	return func(l *Loader) {
		l.s3 = client
	}
}

func WithDynamoClient(client DynamoGetter) LoaderOption {
	return func(l *Loader) {
		l.dynamo = client
	}
}

func WithInjector(inj *injector.Injector) LoaderOption {
	return func(l *Loader) {
		l.injector = inj
	}
}

func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		validator: NewValidator(),
		injector:  injector.New(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load detecta o esquema da fonte e carrega a configuração.
func (l *Loader) Load(ctx context.Context, source string) (*ScanConfig, error) {
	raw, err := l.Read(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("falha leitura config (%s): %w", source, err)
	}
	return l.parseAndValidate(ctx, raw)
}

// Read devolve o conteúdo bruto da fonte.
func (l *Loader) Read(ctx context.Context, source string) ([]byte, error) {
	switch {
	case source == "":
		return nil, fmt.Errorf("fonte de configuração vazia")

	case strings.HasPrefix(source, "s3://"):
		client, err := l.s3Client(ctx)
		if err != nil {
			return nil, err
		}
		return l.loadFromS3(ctx, client, source)

	case strings.HasPrefix(source, "dynamodb://"):
		client, err := l.dynamoClient(ctx)
		if err != nil {
			return nil, err
		}
		return l.loadFromDynamoDB(ctx, client, source)
	}

	// Default: Arquivo Local
	return l.loadFromFile(source)
}

func (l *Loader) s3Client(ctx context.Context) (S3Downloader, error) {
	if l.s3 != nil {
		return l.s3, nil
	}
	cfg, err := awsconf.Load(ctx, os.Getenv("AWS_REGION"))
	if err != nil {
		return nil, fmt.Errorf("config aws para S3: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

func (l *Loader) dynamoClient(ctx context.Context) (DynamoGetter, error) {
	if l.dynamo != nil {
		return l.dynamo, nil
	}
	cfg, err := awsconf.Load(ctx, os.Getenv("AWS_REGION"))
	if err != nil {
		return nil, fmt.Errorf("config aws para DynamoDB: %w", err)
	}
	return dynamodb.NewFromConfig(cfg), nil
}

// --- Estratégias de carregamento ---

func (l *Loader) loadFromFile(path string) ([]byte, error) {
	// Suporta tanto "file://config.yaml" quanto apenas "config.yaml"
	return os.ReadFile(strings.TrimPrefix(path, "file://"))
}

func (l *Loader) loadFromS3(ctx context.Context, client S3Downloader, uri string) ([]byte, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("URL S3 inválida: %w", err)
	}
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("URL S3 inválida: esperado s3://bucket/chave")
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}

// loadFromDynamoDB lê o YAML salvo em uma coluna de um item:
// dynamodb://tabela/chave?col=config&pk=id
func (l *Loader) loadFromDynamoDB(ctx context.Context, client DynamoGetter, uri string) ([]byte, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("URL DynamoDB inválida: %w", err)
	}

	tableName := u.Host
	pkValue := strings.TrimPrefix(u.Path, "/")

	colName := u.Query().Get("col")
	if colName == "" {
		colName = "config"
	}
	pkName := u.Query().Get("pk")
	if pkName == "" {
		pkName = "id"
	}

	out, err := client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &tableName,
		Key: map[string]types.AttributeValue{
			pkName: &types.AttributeValueMemberS{Value: pkValue},
		},
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("item não encontrado no DynamoDB")
	}

	var itemMap map[string]interface{}
	if err := attributevalue.UnmarshalMap(out.Item, &itemMap); err != nil {
		return nil, err
	}

	content, ok := itemMap[colName].(string)
	if !ok || content == "" {
		return nil, fmt.Errorf("coluna '%s' inválida ou vazia no DynamoDB", colName)
	}
	return []byte(content), nil
}

// Parse aplica o pipeline YAML -> injeção -> defaults -> validação sobre
// um conteúdo já lido.
func (l *Loader) Parse(ctx context.Context, data []byte) (*ScanConfig, error) {
	return l.parseAndValidate(ctx, data)
}

func (l *Loader) parseAndValidate(ctx context.Context, data []byte) (*ScanConfig, error) {
	var cfg ScanConfig

	// 1. Unmarshal (YAML -> Struct)
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("YAML malformado: %w", err)
	}

	// 2. Injection (Env/Secrets/SSM)
	if err := l.injector.Inject(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("falha na injeção de variáveis: %w", err)
	}

	// 3. Defaults
	cfg.ApplyDefaults()

	// 4. Validation
	if l.validator != nil {
		if err := l.validator.Validate(&cfg); err != nil {
			return nil, fmt.Errorf("validação da configuração falhou: %w", err)
		}
	}

	return &cfg, nil
}
