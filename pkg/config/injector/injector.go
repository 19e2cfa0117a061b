package injector

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// Regex para capturar padrões ${tipo.chave}
// Ex: ${env.HBSCAN_QUORUM}, ${ssm./hbscan/quorum}, ${secret.redis#password}
var pattern = regexp.MustCompile(`\$\{(env|ssm|secret)\.([^}]+)\}`)

// Injector resolve tags `env:"..."` e placeholders ${...} em structs de
// configuração.
type Injector struct {
	region  string
	ssm     SSMClient
	secrets SecretsClient
}

type Option func(*Injector)

// WithRegion define a região usada pelos clientes AWS criados sob demanda.
func WithRegion(region string) Option {
	return func(i *Injector) {
		i.region = region
	}
}

func WithSSMClient(client SSMClient) Option {
	return func(i *Injector) {
		i.ssm = client
	}
}

func WithSecretsClient(client SecretsClient) Option {
	return func(i *Injector) {
		i.secrets = client
	}
}

func New(opts ...Option) *Injector {
	i := &Injector{region: os.Getenv("AWS_REGION")}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Injector) Inject(ctx context.Context, target interface{}) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("target deve ser um ponteiro para struct não nulo")
	}
	return i.injectRecursive(ctx, v.Elem())
}

func (i *Injector) injectRecursive(ctx context.Context, v reflect.Value) error {
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for k := 0; k < t.NumField(); k++ {
			field := t.Field(k)
			value := v.Field(k)

			// 1. Tags (env:"...") têm precedência sobre o YAML
			if err := i.processStructTags(field, value); err != nil {
				return err
			}

			// 2. Strings com interpolação "${...}"
			if value.Kind() == reflect.String && value.CanSet() {
				newValue, err := i.interpolateString(ctx, value.String())
				if err != nil {
					return fmt.Errorf("campo '%s': %w", field.Name, err)
				}
				value.SetString(newValue)
			}

			if value.CanSet() || value.Kind() == reflect.Ptr {
				if err := i.injectRecursive(ctx, value); err != nil {
					return err
				}
			}
		}

	case reflect.Ptr:
		if !v.IsNil() {
			return i.injectRecursive(ctx, v.Elem())
		}

	case reflect.Slice:
		for j := 0; j < v.Len(); j++ {
			if err := i.injectRecursive(ctx, v.Index(j)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (i *Injector) processStructTags(field reflect.StructField, value reflect.Value) error {
	if !value.CanSet() {
		return nil
	}
	if tag := field.Tag.Get("env"); tag != "" {
		if val, exists := os.LookupEnv(tag); exists {
			if err := setField(value, val); err != nil {
				return fmt.Errorf("variável %s: %w", tag, err)
			}
		}
	}
	return nil
}

// interpolateString substitui cada ${tipo.chave} pelo valor resolvido.
func (i *Injector) interpolateString(ctx context.Context, input string) (string, error) {
	if !strings.Contains(input, "${") {
		return input, nil
	}

	var err error
	result := pattern.ReplaceAllStringFunc(input, func(match string) string {
		if err != nil {
			return match
		}
		groups := pattern.FindStringSubmatch(match)
		val, resolveErr := i.fetchValue(ctx, groups[1], groups[2])
		if resolveErr != nil {
			err = resolveErr
			return match
		}
		return val
	})
	return result, err
}

func (i *Injector) fetchValue(ctx context.Context, sourceType, key string) (string, error) {
	switch sourceType {
	case "env":
		// Variável inexistente vira string vazia
		return os.Getenv(key), nil

	case "ssm":
		client, err := i.ssmClient(ctx)
		if err != nil {
			return "", err
		}
		return getParameterInternal(ctx, client, key, true)

	case "secret":
		client, err := i.secretsClient(ctx)
		if err != nil {
			return "", err
		}
		id, field, _ := strings.Cut(key, "#")
		return getSecretInternal(ctx, client, id, field)
	}
	return "", fmt.Errorf("fonte desconhecida: %s", sourceType)
}

func setField(field reflect.Value, val string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(val)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(val, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("valor inteiro inválido '%s'", val)
		}
		field.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("valor booleano inválido '%s'", val)
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("tipo %s não suportado em tag env", field.Kind())
	}
	return nil
}
