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
package tablesvc_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/raywall/fast-scan-toolkit/tablesvc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockDynamoClient é um mock para a interface DynamoScanAPI
type MockDynamoClient struct {
	mock.Mock
}

func (m *MockDynamoClient) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.ScanOutput), args.Error(1)
}

func item(key string, attrs map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := map[string]types.AttributeValue{"row": &types.AttributeValueMemberS{Value: key}}
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

func openDynamo(t *testing.T, client *MockDynamoClient, root *string) tablesvc.Session {
	t.Helper()
	backend := tablesvc.NewDynamoBackendWithClient(client, tablesvc.DynamoOptions{Region: "us-east-1"})
	assert.Equal(t, "dynamodb", backend.Name())

	session, err := backend.Open(context.Background(), "ignored", root)
	require.NoError(t, err)
	return session
}

func TestDynamoBackend_ScanPages(t *testing.T) {
	client := new(MockDynamoClient)
	root := "dev-"
	session := openDynamo(t, client, &root)

	lastKey := map[string]types.AttributeValue{"row": &types.AttributeValueMemberS{Value: "r2"}}

	client.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return aws.ToString(in.TableName) == "dev-users" && in.ExclusiveStartKey == nil && aws.ToInt32(in.Limit) == 2
	})).Return(&dynamodb.ScanOutput{
		Items: []map[string]types.AttributeValue{
			item("r1", map[string]types.AttributeValue{
				"info:name": &types.AttributeValueMemberS{Value: "ana"},
				"info:age":  &types.AttributeValueMemberN{Value: "30"},
				"_ts":       &types.AttributeValueMemberN{Value: "1700"},
			}),
			item("r2", map[string]types.AttributeValue{
				"flag": &types.AttributeValueMemberBOOL{Value: true},
			}),
		},
		LastEvaluatedKey: lastKey,
	}, nil).Once()

	client.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return in.ExclusiveStartKey != nil
	})).Return(&dynamodb.ScanOutput{
		Items: []map[string]types.AttributeValue{
			item("r3", map[string]types.AttributeValue{
				"info:tags": &types.AttributeValueMemberSS{Value: []string{"a", "b"}},
			}),
		},
	}, nil).Once()

	cursor, err := session.OpenScan(context.Background(), tablesvc.ScanSpec{Table: "users", MaxRows: 2})
	require.NoError(t, err)

	page, err := cursor.NextPage(context.Background())
	require.NoError(t, err)
	require.Len(t, page, 2)

	r1 := page[0]
	assert.Equal(t, "r1", string(r1.Key))
	require.Len(t, r1.Cells, 2)
	assert.Equal(t, "age", string(r1.Cells[0].Qualifier), "células ordenadas por family/qualifier")
	assert.Equal(t, "30", string(r1.Cells[0].Value))
	assert.Equal(t, int64(1700), r1.Cells[0].Timestamp)
	assert.Equal(t, "ana", string(r1.Cells[1].Value))

	r2 := page[1]
	require.Len(t, r2.Cells, 1)
	assert.Equal(t, "flag", string(r2.Cells[0].Family))
	assert.Empty(t, r2.Cells[0].Qualifier)
	assert.Equal(t, "true", string(r2.Cells[0].Value))

	page, err = cursor.NextPage(context.Background())
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "[a b]", string(page[0].Cells[0].Value))

	page, err = cursor.NextPage(context.Background())
	require.NoError(t, err)
	assert.Empty(t, page)

	client.AssertExpectations(t)
}

func TestDynamoBackend_SkipsEmptyFilteredPages(t *testing.T) {
	client := new(MockDynamoClient)
	session := openDynamo(t, client, nil)

	client.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return in.ExclusiveStartKey == nil && aws.ToString(in.FilterExpression) == "attribute_exists(#n)"
	})).Return(&dynamodb.ScanOutput{
		LastEvaluatedKey: map[string]types.AttributeValue{"row": &types.AttributeValueMemberS{Value: "r9"}},
	}, nil).Once()

	client.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return in.ExclusiveStartKey != nil
	})).Return(&dynamodb.ScanOutput{
		Items: []map[string]types.AttributeValue{item("r10", nil)},
	}, nil).Once()

	cursor, err := session.OpenScan(context.Background(), tablesvc.ScanSpec{Table: "users", Filter: []byte("attribute_exists(#n)")})
	require.NoError(t, err)

	page, err := cursor.NextPage(context.Background())
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "r10", string(page[0].Key))
	assert.Empty(t, page[0].Cells)

	client.AssertExpectations(t)
}

func TestDynamoBackend_LimitSaturates(t *testing.T) {
	client := new(MockDynamoClient)
	session := openDynamo(t, client, nil)

	client.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return aws.ToInt32(in.Limit) == math.MaxInt32
	})).Return(&dynamodb.ScanOutput{}, nil).Once()

	maxRows := math.MaxInt32
	maxRows++ // acima do Limit int32 do Scan

	cursor, err := session.OpenScan(context.Background(), tablesvc.ScanSpec{Table: "users", MaxRows: maxRows})
	require.NoError(t, err)

	page, err := cursor.NextPage(context.Background())
	require.NoError(t, err)
	assert.Empty(t, page)

	client.AssertExpectations(t)
}

func TestDynamoBackend_Errors(t *testing.T) {
	tests := []struct {
		name string
		out  *dynamodb.ScanOutput
		err  error
		want tablesvc.Code
	}{
		{
			name: "tabela inexistente",
			err:  &types.ResourceNotFoundException{Message: aws.String("no table")},
			want: tablesvc.ENOENT,
		},
		{
			name: "falha de rede",
			err:  errors.New("dial tcp: timeout"),
			want: tablesvc.EIO,
		},
		{
			name: "item sem chave",
			out: &dynamodb.ScanOutput{Items: []map[string]types.AttributeValue{
				{"other": &types.AttributeValueMemberS{Value: "x"}},
			}},
			want: tablesvc.EIO,
		},
		{
			name: "timestamp inválido",
			out: &dynamodb.ScanOutput{Items: []map[string]types.AttributeValue{
				item("r1", map[string]types.AttributeValue{"_ts": &types.AttributeValueMemberS{Value: "ontem"}}),
			}},
			want: tablesvc.EIO,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(MockDynamoClient)
			session := openDynamo(t, client, nil)
			if tt.err != nil {
				client.On("Scan", mock.Anything, mock.Anything).Return(nil, tt.err)
			} else {
				client.On("Scan", mock.Anything, mock.Anything).Return(tt.out, nil)
			}

			cursor, err := session.OpenScan(context.Background(), tablesvc.ScanSpec{Table: "users"})
			require.NoError(t, err)

			_, err = cursor.NextPage(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.want, tablesvc.CodeOf(err))
		})
	}
}

func TestDynamoBackend_ThroughGateway(t *testing.T) {
	client := new(MockDynamoClient)
	client.On("Scan", mock.Anything, mock.Anything).Return(&dynamodb.ScanOutput{
		Items: []map[string]types.AttributeValue{
			item("r1", map[string]types.AttributeValue{"f:q": &types.AttributeValueMemberB{Value: []byte("v")}}),
		},
	}, nil)

	svc := tablesvc.New(tablesvc.NewDynamoBackendWithClient(client, tablesvc.DynamoOptions{}))
	conn, err := svc.Connect("sa-east-1", nil)
	require.NoError(t, err)
	c, err := svc.CreateClient(conn)
	require.NoError(t, err)
	s, err := svc.CreateScanner(c)
	require.NoError(t, err)
	require.NoError(t, svc.SetTable(s, "users"))

	events := make(chan pageEvent, 1)
	require.NoError(t, svc.Next(s, collect(events), nil))
	ev := await(t, events)
	require.NoError(t, ev.status)
	require.Len(t, ev.page, 1)

	cells, err := svc.Cells(ev.page[0])
	require.NoError(t, err)
	assert.Equal(t, "v", string(cells[0].Value))
	require.NoError(t, svc.Release(ev.page[0]))
}
