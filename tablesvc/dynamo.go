// Copyright 2025 Raywall Malheiros de Souza
// Licensed under the Mozilla Public License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.mozilla.org/en-US/MPL/2.0/
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package tablesvc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/raywall/fast-scan-toolkit/pkg/awsconf"
)

const (
	DefaultKeyAttribute       = "row"
	DefaultTimestampAttribute = "_ts"
)

// DynamoScanAPI abstrai o cliente DynamoDB usado pelo backend
type DynamoScanAPI interface {
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoOptions configura o backend DynamoDB.
type DynamoOptions struct {
	Region             string
	Endpoint           string // opcional, ex.: DynamoDB Local
	KeyAttribute       string
	TimestampAttribute string
}

// DynamoBackend expõe tabelas DynamoDB como tabelas de linhas. Cada item é
// uma linha: o atributo KeyAttribute é a chave e cada atributo no formato
// "family:qualifier" vira uma célula. O filtro é enviado como
// FilterExpression.
type DynamoBackend struct {
	opts      DynamoOptions
	newClient func(ctx context.Context, region, endpoint string) (DynamoScanAPI, error)
}

func NewDynamoBackend(opts DynamoOptions) *DynamoBackend {
	if opts.KeyAttribute == "" {
		opts.KeyAttribute = DefaultKeyAttribute
	}
	if opts.TimestampAttribute == "" {
		opts.TimestampAttribute = DefaultTimestampAttribute
	}
	return &DynamoBackend{opts: opts, newClient: newDynamoClient}
}

// NewDynamoBackendWithClient usa um cliente já construído (testes, clientes
// com middlewares próprios).
func NewDynamoBackendWithClient(client DynamoScanAPI, opts DynamoOptions) *DynamoBackend {
	b := NewDynamoBackend(opts)
	b.newClient = func(context.Context, string, string) (DynamoScanAPI, error) {
		return client, nil
	}
	return b
}

func newDynamoClient(ctx context.Context, region, endpoint string) (DynamoScanAPI, error) {
	cfg, err := awsconf.Load(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("dynamodb: load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

func (b *DynamoBackend) Name() string { return "dynamodb" }

// Open usa o quorum como região quando DynamoOptions.Region está vazio. O
// root, se informado, é prefixado ao nome das tabelas.
func (b *DynamoBackend) Open(ctx context.Context, quorum string, root *string) (Session, error) {
	region := b.opts.Region
	if region == "" {
		region = quorum
	}

	client, err := b.newClient(ctx, region, b.opts.Endpoint)
	if err != nil {
		return nil, statusf("connect", ENOTCONN, "%w", err)
	}

	prefix := ""
	if root != nil {
		prefix = *root
	}
	return &dynamoSession{client: client, opts: b.opts, prefix: prefix}, nil
}

type dynamoSession struct {
	client DynamoScanAPI
	opts   DynamoOptions
	prefix string
}

func (s *dynamoSession) OpenScan(_ context.Context, spec ScanSpec) (Cursor, error) {
	return &dynamoCursor{
		client:   s.client,
		opts:     s.opts,
		table:    s.prefix + spec.Table,
		filter:   string(spec.Filter),
		pageRows: spec.PageRows(),
		versions: int(spec.MaxVersions),
	}, nil
}

func (s *dynamoSession) Close() error { return nil }

// scanLimit satura o tamanho da página no Limit int32 do Scan.
func scanLimit(rows int) int32 {
	if rows > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(rows)
}

type dynamoCursor struct {
	client   DynamoScanAPI
	opts     DynamoOptions
	table    string
	filter   string
	pageRows int
	versions int
	lastKey  map[string]types.AttributeValue
	done     bool
}

// NextPage faz Scan com Limit e ExclusiveStartKey. Páginas vazias que ainda
// trazem LastEvaluatedKey (comum com FilterExpression) são puladas.
func (c *dynamoCursor) NextPage(ctx context.Context) ([]Row, error) {
	for !c.done {
		input := &dynamodb.ScanInput{
			TableName:         aws.String(c.table),
			Limit:             aws.Int32(scanLimit(c.pageRows)),
			ExclusiveStartKey: c.lastKey,
		}
		if c.filter != "" {
			input.FilterExpression = aws.String(c.filter)
		}

		out, err := c.client.Scan(ctx, input)
		if err != nil {
			var notFound *types.ResourceNotFoundException
			if errors.As(err, &notFound) {
				return nil, statusf("next", ENOENT, "table %q not found", c.table)
			}
			return nil, fmt.Errorf("dynamodb: scan %s: %w", c.table, err)
		}

		c.lastKey = out.LastEvaluatedKey
		c.done = len(out.LastEvaluatedKey) == 0

		if len(out.Items) == 0 {
			continue
		}

		rows := make([]Row, 0, len(out.Items))
		for _, item := range out.Items {
			row, err := c.rowFromItem(item)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
		return rows, nil
	}
	return nil, nil
}

func (c *dynamoCursor) Close() error { return nil }

func (c *dynamoCursor) rowFromItem(item map[string]types.AttributeValue) (Row, error) {
	keyAttr, ok := item[c.opts.KeyAttribute]
	if !ok {
		return Row{}, statusf("next", EIO, "item without key attribute %q", c.opts.KeyAttribute)
	}
	key, err := attributeBytes(keyAttr)
	if err != nil {
		return Row{}, statusf("next", EIO, "key attribute %q: %w", c.opts.KeyAttribute, err)
	}

	var ts int64
	if tsAttr, ok := item[c.opts.TimestampAttribute]; ok {
		if err := attributevalue.Unmarshal(tsAttr, &ts); err != nil {
			return Row{}, statusf("next", EIO, "timestamp attribute %q: %w", c.opts.TimestampAttribute, err)
		}
	}

	cells := make([]Cell, 0, len(item))
	for name, av := range item {
		if name == c.opts.KeyAttribute || name == c.opts.TimestampAttribute {
			continue
		}
		value, err := attributeBytes(av)
		if err != nil {
			return Row{}, statusf("next", EIO, "attribute %q: %w", name, err)
		}
		family, qualifier, _ := strings.Cut(name, ":")
		cells = append(cells, Cell{
			Family:    []byte(family),
			Qualifier: []byte(qualifier),
			Value:     value,
			Timestamp: ts,
		})
	}
	// limitVersions também ordena por family/qualifier, o que dá uma ordem
	// estável às células (o mapa de atributos não tem ordem).
	return Row{Key: key, Cells: limitVersions(cells, max(c.versions, 1))}, nil
}

// attributeBytes converte um AttributeValue para os bytes da célula.
// Tipos escalares viram o seu texto; os demais são decodificados com
// attributevalue e formatados.
func attributeBytes(av types.AttributeValue) ([]byte, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return []byte(v.Value), nil
	case *types.AttributeValueMemberB:
		return v.Value, nil
	case *types.AttributeValueMemberN:
		return []byte(v.Value), nil
	case *types.AttributeValueMemberBOOL:
		return []byte(fmt.Sprint(v.Value)), nil
	case *types.AttributeValueMemberNULL:
		return nil, nil
	}

	var decoded any
	if err := attributevalue.Unmarshal(av, &decoded); err != nil {
		return nil, err
	}
	return []byte(fmt.Sprint(decoded)), nil
}
