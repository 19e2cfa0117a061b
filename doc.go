// Package fast_scan_toolkit reúne o driver de scan paginado e assíncrono e
// os backends de tabela que ele consome.
//
// Visão Geral:
// O módulo executa um único scan sobre uma tabela no estilo HBase (linhas
// com células family/qualifier/valor/timestamp), imprime cada linha em
// stdout e termina quando o serviço entrega uma página vazia.
//
// Sub-Pacotes Principais:
//
// 1. tablesvc:
//   - Contrato do serviço remoto (Service) com handles tipados.
//   - Gateway com uma goroutine de despacho por cliente.
//   - Backends HBase (gohbase), DynamoDB, Redis e em memória.
//
// 2. scan:
//   - Materializer, Loop, Synchronizer e Driver.
//   - Política de teardown (always, never, best_effort) e espera limitada.
//
// 3. pkg/config:
//   - YAML local, S3 ou DynamoDB, com injeção de env/SSM/Secrets Manager.
//
// 4. cmd/hbscan:
//   - CLI com os subcomandos run e validate.
//
// Exemplo de Início Rápido:
//
//	backend := tablesvc.NewMemoryBackend()
//	_ = backend.LoadFixture("examples/memory/rows.yaml")
//
//	driver := scan.NewDriver(tablesvc.New(backend), scan.Options{
//		Quorum: "localhost",
//		Table:  "/tmp/tempTable",
//	})
//	if _, err := driver.Run(context.Background()); err != nil {
//		log.Fatalf("scan falhou: %v", err)
//	}
package fast_scan_toolkit
