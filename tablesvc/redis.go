package tablesvc

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configura o acesso ao Redis. O endereço vem do quorum.
type RedisOptions struct {
	Password string
	DB       int
}

// redisReader é o subconjunto do cliente go-redis usado pelo backend.
type redisReader interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	ZRangeByLex(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Close() error
}

// RedisBackend guarda cada tabela como um sorted set de chaves de linha
// (score 0, ordenado lexicograficamente) e um hash por linha:
//
//	<root><table>:rows          ZSET  chave de linha
//	<root><table>:row:<chave>   HASH  "family:qualifier" -> valor
//	<root><table>:ts:<chave>    HASH  "family:qualifier" -> timestamp
//
// Filtros não são suportados.
type RedisBackend struct {
	opts      RedisOptions
	newClient func(addr string, opts RedisOptions) redisReader
}

func NewRedisBackend(opts RedisOptions) *RedisBackend {
	return &RedisBackend{
		opts: opts,
		newClient: func(addr string, opts RedisOptions) redisReader {
			return redis.NewClient(&redis.Options{
				Addr:     addr,
				Password: opts.Password,
				DB:       opts.DB,
			})
		},
	}
}

func (b *RedisBackend) Name() string { return "redis" }

func (b *RedisBackend) Open(_ context.Context, quorum string, root *string) (Session, error) {
	if quorum == "" {
		return nil, statusf("connect", EINVAL, "empty redis address")
	}
	prefix := ""
	if root != nil {
		prefix = *root
	}
	return &redisSession{client: b.newClient(quorum, b.opts), prefix: prefix}, nil
}

type redisSession struct {
	client redisReader
	prefix string
}

func (s *redisSession) OpenScan(ctx context.Context, spec ScanSpec) (Cursor, error) {
	if len(spec.Filter) > 0 {
		return nil, statusf("open scan", ENOTSUP, "redis backend does not evaluate filters")
	}

	table := s.prefix + spec.Table
	n, err := s.client.Exists(ctx, table+":rows").Result()
	if err != nil {
		return nil, fmt.Errorf("redis: exists %s: %w", table, err)
	}
	if n == 0 {
		return nil, statusf("open scan", ENOENT, "table %q not found", table)
	}

	return &redisCursor{
		client:   s.client,
		table:    table,
		pageRows: spec.PageRows(),
		versions: int(spec.MaxVersions),
	}, nil
}

func (s *redisSession) Close() error {
	return s.client.Close()
}

type redisCursor struct {
	client   redisReader
	table    string
	pageRows int
	versions int
	last     string
	started  bool
}

func (c *redisCursor) NextPage(ctx context.Context) ([]Row, error) {
	from := "-"
	if c.started {
		from = "(" + c.last
	}

	keys, err := c.client.ZRangeByLex(ctx, c.table+":rows", &redis.ZRangeBy{
		Min:   from,
		Max:   "+",
		Count: int64(c.pageRows),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: range %s: %w", c.table, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	rows := make([]Row, 0, len(keys))
	for _, key := range keys {
		row, err := c.readRow(ctx, key)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	c.started = true
	c.last = keys[len(keys)-1]
	return rows, nil
}

func (c *redisCursor) readRow(ctx context.Context, key string) (Row, error) {
	values, err := c.client.HGetAll(ctx, c.table+":row:"+key).Result()
	if err != nil {
		return Row{}, fmt.Errorf("redis: read row %q: %w", key, err)
	}
	stamps, err := c.client.HGetAll(ctx, c.table+":ts:"+key).Result()
	if err != nil {
		return Row{}, fmt.Errorf("redis: read timestamps of %q: %w", key, err)
	}

	columns := make([]string, 0, len(values))
	for column := range values {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	cells := make([]Cell, 0, len(columns))
	for _, column := range columns {
		var ts int64
		if raw, ok := stamps[column]; ok {
			ts, err = strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return Row{}, statusf("next", EIO, "row %q column %q: bad timestamp %q", key, column, raw)
			}
		}
		family, qualifier, _ := strings.Cut(column, ":")
		cells = append(cells, Cell{
			Family:    []byte(family),
			Qualifier: []byte(qualifier),
			Value:     []byte(values[column]),
			Timestamp: ts,
		})
	}
	return Row{Key: []byte(key), Cells: limitVersions(cells, c.versions)}, nil
}

func (c *redisCursor) Close() error { return nil }
