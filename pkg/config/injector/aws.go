package injector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/raywall/fast-scan-toolkit/pkg/awsconf"
)

// Interfaces para abstrair o SDK da AWS (Permite Mocking)
type SSMClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

type SecretsClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

func (i *Injector) ssmClient(ctx context.Context) (SSMClient, error) {
	if i.ssm != nil {
		return i.ssm, nil
	}
	cfg, err := awsconf.Load(ctx, i.region)
	if err != nil {
		return nil, fmt.Errorf("config aws para SSM: %w", err)
	}
	i.ssm = ssm.NewFromConfig(cfg)
	return i.ssm, nil
}

func (i *Injector) secretsClient(ctx context.Context) (SecretsClient, error) {
	if i.secrets != nil {
		return i.secrets, nil
	}
	cfg, err := awsconf.Load(ctx, i.region)
	if err != nil {
		return nil, fmt.Errorf("config aws para SecretsManager: %w", err)
	}
	i.secrets = secretsmanager.NewFromConfig(cfg)
	return i.secrets, nil
}

func getParameterInternal(ctx context.Context, client SSMClient, path string, decrypt bool) (string, error) {
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &path,
		WithDecryption: &decrypt,
	})
	if err != nil {
		return "", fmt.Errorf("erro no SSM GetParameter: %w", err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("parâmetro SSM '%s' sem valor", path)
	}
	return *out.Parameter.Value, nil
}

// getSecretInternal devolve o segredo inteiro ou, com field, o campo do
// segredo armazenado como JSON.
func getSecretInternal(ctx context.Context, client SecretsClient, secretID, field string) (string, error) {
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &secretID,
	})
	if err != nil {
		return "", fmt.Errorf("erro no SecretsManager: %w", err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("segredo '%s' sem SecretString", secretID)
	}

	val := *out.SecretString
	if field == "" {
		return val, nil
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(val), &data); err != nil {
		return "", fmt.Errorf("segredo '%s' não é JSON: %w", secretID, err)
	}
	fieldVal, ok := data[field]
	if !ok {
		return "", fmt.Errorf("campo '%s' não existe no segredo '%s'", field, secretID)
	}
	return fmt.Sprintf("%v", fieldVal), nil
}
