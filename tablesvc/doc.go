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

// Package tablesvc é a fronteira com o serviço remoto de tabelas.
//
// Visão Geral:
// O pacote expõe a interface `Service`, com handles opacos (`Connection`,
// `Client`, `Scanner`, `Result`) no estilo de um cliente nativo de HBase:
// conectar ao quorum, criar um cliente, configurar um scanner e pedir
// páginas com `Next`, que não bloqueia e entrega cada página a uma
// continuation na goroutine de despacho do cliente.
//
// O `Gateway` implementa o contrato sobre um `Backend`:
//   - HBaseBackend: HBase via RPC nativo (github.com/tsuna/gohbase).
//   - DynamoBackend: tabelas DynamoDB, paginadas com Limit/ExclusiveStartKey.
//   - RedisBackend: sorted set de chaves + hash por linha.
//   - MemoryBackend: tabelas em memória, com fixtures YAML.
//
// Falhas na fronteira são `*StatusError`, com códigos no estilo errno
// (`EINVAL`, `ENOENT`, `EIO`, ...). Use `CodeOf` para extrair o código.
//
// Exemplo:
//
//	backend := tablesvc.NewMemoryBackend()
//	backend.Put("/tmp/tempTable", []byte("r1"), tablesvc.Cell{Family: []byte("f"), Qualifier: []byte("q"), Value: []byte("v")})
//
//	svc := tablesvc.New(backend)
//	conn, _ := svc.Connect("localhost", nil)
//	client, _ := svc.CreateClient(conn)
//	scanner, _ := svc.CreateScanner(client)
//	_ = svc.SetTable(scanner, "/tmp/tempTable")
//	_ = svc.Next(scanner, func(status error, s *tablesvc.Scanner, page []*tablesvc.Result, extra any) {
//		for _, r := range page {
//			key, _ := svc.RowKey(r)
//			fmt.Println(string(key))
//			_ = svc.Release(r)
//		}
//	}, nil)
package tablesvc
