// Package scan conduz um scan paginado e assíncrono sobre um
// tablesvc.Service.
//
// A Loop recebe cada página na goroutine de despacho do cliente, escreve o
// relatório de cada linha, libera o Result e pede a próxima página. Quando
// uma página vazia chega, o Synchronizer é sinalizado e a goroutine que
// iniciou o scan volta a rodar. Falhas acordam a espera pelo caminho de
// abort, sem marcar o scan como concluído.
//
// Uso típico:
//
//	svc := tablesvc.New(tablesvc.NewHBaseBackend())
//	driver := scan.NewDriver(svc, scan.Options{
//		Quorum: "maprdemo.mapr.io",
//		Table:  "/tmp/tempTable",
//	})
//	stats, err := driver.Run(ctx)
package scan
