// Package awsconf carrega a configuração da AWS compartilhada pelos
// clientes do toolkit (S3, DynamoDB, SSM, Secrets Manager).
package awsconf

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

var (
	mu    sync.Mutex
	cache = make(map[string]aws.Config)

	// loadDefault é substituível nos testes.
	loadDefault = config.LoadDefaultConfig
)

// Load carrega a configuração da AWS (env vars, profile, IAM role) uma vez
// por região. Região vazia usa a resolução padrão do SDK.
func Load(ctx context.Context, region string) (aws.Config, error) {
	mu.Lock()
	defer mu.Unlock()

	if cfg, ok := cache[region]; ok {
		return cfg, nil
	}

	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := loadDefault(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}
	cache[region] = cfg
	return cfg, nil
}
