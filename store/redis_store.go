package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/algojudge/corejudge/errs"
)

// RedisStore is the production Store: one Redis hash per item holds
// the item body, and a sorted set per partition/index provides ordered
// listings.
//
// GSI sort keys (GSI1SK, GSI3SK) are expected to be base-10 strings
// parseable as float64 (callers use zero-padded decimal timestamps) and
// are stored as sorted-set scores, so listings read an index in order
// with ZRANGE/ZREVRANGE instead of loading every item to sort. GSI2 has no sort key (§3: "hash-only") and is backed by a plain
// Redis Set.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// RedisStoreConfig configures RedisStore.
type RedisStoreConfig struct {
	Addr      string
	Password  string
	DB        int
	PoolSize  int
	KeyPrefix string
}

// NewRedisStore connects to Redis and verifies connectivity.
func NewRedisStore(cfg RedisStoreConfig, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errs.Wrap(errs.KindTransient, "connect to redis store", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "corejudge:store:"
	}
	return &RedisStore{client: client, prefix: prefix, logger: logger}, nil
}

// NewRedisStoreFromClient wraps an already-constructed client, used by
// tests running against miniredis.
func NewRedisStoreFromClient(client *redis.Client, keyPrefix string, logger *zap.Logger) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "corejudge:store:"
	}
	return &RedisStore{client: client, prefix: keyPrefix, logger: logger}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return errs.Wrap(errs.KindTransient, "ping redis store", err)
	}
	return nil
}

func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) itemKey(pk, sk string) string { return s.prefix + "item:" + pk + "\x1f" + sk }
func (s *RedisStore) pkIndexKey(pk string) string  { return s.prefix + "pk:" + pk }
func (s *RedisStore) gsiKey(index int, pk string) string {
	return s.prefix + "gsi" + strconv.Itoa(index) + ":" + pk
}

func member(pk, sk string) string { return pk + "\x1f" + sk }

func splitMember(m string) (pk, sk string) {
	parts := strings.SplitN(m, "\x1f", 2)
	if len(parts) != 2 {
		return m, ""
	}
	return parts[0], parts[1]
}

func (s *RedisStore) Put(ctx context.Context, item *Item, cond Condition) error {
	key := s.itemKey(item.PK, item.SK)

	if cond.kind != conditionNone {
		existing, err := s.Get(ctx, item.PK, item.SK)
		exists := err == nil
		switch cond.kind {
		case conditionExists:
			if !exists {
				return preconditionFailed(item.PK, item.SK)
			}
		case conditionNotExists:
			if exists {
				return preconditionFailed(item.PK, item.SK)
			}
		case conditionAttrEquals:
			if !exists || existing.Data[cond.attr] != cond.wantEquals {
				return preconditionFailed(item.PK, item.SK)
			}
		}
		if item.Crt == 0 && exists {
			item.Crt = existing.Crt
		}
		// Clean stale index entries if the indexed attributes changed.
		if exists {
			s.removeFromIndexes(ctx, existing)
		}
	}

	now := time.Now().Unix()
	if item.Crt == 0 {
		item.Crt = now
	}
	item.Upd = now

	data, err := json.Marshal(item.Data)
	if err != nil {
		return errs.Wrap(errs.KindValidation, "marshal item data", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"tp":  item.Type,
		"dat": data,
		"crt": item.Crt,
		"upd": item.Upd,
		"ttl": item.TTL,
		"g1p": item.GSI1PK, "g1s": item.GSI1SK,
		"g2p": item.GSI2PK,
		"g3p": item.GSI3PK, "g3s": item.GSI3SK,
	})
	if item.TTL > 0 {
		pipe.ExpireAt(ctx, key, time.Unix(item.TTL, 0))
	}

	m := member(item.PK, item.SK)
	pipe.ZAdd(ctx, s.pkIndexKey(item.PK), redis.Z{Score: float64(item.Crt), Member: item.SK})
	if item.GSI1PK != "" {
		score, _ := strconv.ParseFloat(item.GSI1SK, 64)
		pipe.ZAdd(ctx, s.gsiKey(1, item.GSI1PK), redis.Z{Score: score, Member: m})
	}
	if item.GSI2PK != "" {
		pipe.SAdd(ctx, s.gsiKey(2, item.GSI2PK), m)
	}
	if item.GSI3PK != "" {
		score, _ := strconv.ParseFloat(item.GSI3SK, 64)
		pipe.ZAdd(ctx, s.gsiKey(3, item.GSI3PK), redis.Z{Score: score, Member: m})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return errs.Wrap(errs.KindTransient, "put item", err)
	}
	return nil
}

// removeFromIndexes drops old is stale projections before a re-put so a
// changed GSI1PK/GSI3PK (e.g. a status transition) doesn't leave the item
// visible under its old partition.
func (s *RedisStore) removeFromIndexes(ctx context.Context, old *Item) {
	m := member(old.PK, old.SK)
	pipe := s.client.Pipeline()
	if old.GSI1PK != "" {
		pipe.ZRem(ctx, s.gsiKey(1, old.GSI1PK), m)
	}
	if old.GSI2PK != "" {
		pipe.SRem(ctx, s.gsiKey(2, old.GSI2PK), m)
	}
	if old.GSI3PK != "" {
		pipe.ZRem(ctx, s.gsiKey(3, old.GSI3PK), m)
	}
	_, _ = pipe.Exec(ctx)
}

func (s *RedisStore) Get(ctx context.Context, pk, sk string) (*Item, error) {
	res, err := s.client.HGetAll(ctx, s.itemKey(pk, sk)).Result()
	if err != nil {
		return nil, errs.Wrap(errs.KindTransient, "get item", err)
	}
	if len(res) == 0 {
		return nil, notFound(pk, sk)
	}
	return decodeItem(pk, sk, res)
}

func decodeItem(pk, sk string, res map[string]string) (*Item, error) {
	item := &Item{PK: pk, SK: sk, Type: res["tp"], GSI1PK: res["g1p"], GSI1SK: res["g1s"], GSI2PK: res["g2p"], GSI3PK: res["g3p"], GSI3SK: res["g3s"]}
	item.Crt, _ = strconv.ParseInt(res["crt"], 10, 64)
	item.Upd, _ = strconv.ParseInt(res["upd"], 10, 64)
	item.TTL, _ = strconv.ParseInt(res["ttl"], 10, 64)
	item.Data = map[string]any{}
	if raw, ok := res["dat"]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &item.Data); err != nil {
			return nil, errs.Wrap(errs.KindTransient, "decode item data", err)
		}
	}
	return item, nil
}

func (s *RedisStore) Delete(ctx context.Context, pk, sk string, cond Condition) error {
	existing, err := s.Get(ctx, pk, sk)
	exists := err == nil
	if cond.kind == conditionExists && !exists {
		return preconditionFailed(pk, sk)
	}
	if cond.kind == conditionAttrEquals {
		if !exists || existing.Data[cond.attr] != cond.wantEquals {
			return preconditionFailed(pk, sk)
		}
	}
	if !exists {
		return nil
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.itemKey(pk, sk))
	pipe.ZRem(ctx, s.pkIndexKey(pk), sk)
	m := member(pk, sk)
	if existing.GSI1PK != "" {
		pipe.ZRem(ctx, s.gsiKey(1, existing.GSI1PK), m)
	}
	if existing.GSI2PK != "" {
		pipe.SRem(ctx, s.gsiKey(2, existing.GSI2PK), m)
	}
	if existing.GSI3PK != "" {
		pipe.ZRem(ctx, s.gsiKey(3, existing.GSI3PK), m)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errs.Wrap(errs.KindTransient, "delete item", err)
	}
	return nil
}

func (s *RedisStore) Query(ctx context.Context, pk, skPrefix string, descending bool, limit int, cursorTok string) (*Page, error) {
	sks, err := s.client.ZRange(ctx, s.pkIndexKey(pk), 0, -1).Result()
	if err != nil {
		return nil, errs.Wrap(errs.KindTransient, "query pk index", err)
	}
	sort.Strings(sks)
	if descending {
		for i, j := 0, len(sks)-1; i < j; i, j = i+1, j-1 {
			sks[i], sks[j] = sks[j], sks[i]
		}
	}

	var filtered []string
	for _, sk := range sks {
		if strings.HasPrefix(sk, skPrefix) {
			filtered = append(filtered, sk)
		}
	}

	start := 0
	if cursorTok != "" {
		if c, ok := decodeCursor(cursorTok); ok {
			for i, sk := range filtered {
				if sk == c.member {
					start = i + 1
					break
				}
			}
		}
	}
	if start > len(filtered) {
		start = len(filtered)
	}
	rest := filtered[start:]
	if limit > 0 && limit < len(rest) {
		rest = rest[:limit]
	}

	items := make([]*Item, 0, len(rest))
	for _, sk := range rest {
		item, err := s.Get(ctx, pk, sk)
		if err != nil {
			continue
		}
		items = append(items, item)
	}

	page := &Page{Items: items}
	if limit > 0 && start+limit < len(filtered) {
		page.Cursor = encodeCursor(cursor{member: rest[len(rest)-1]})
	}
	return page, nil
}

func (s *RedisStore) QueryIndex(ctx context.Context, index int, pk string, descending bool, limit int, cursorTok string) (*Page, error) {
	if index == 2 {
		return s.queryGSI2(ctx, pk, limit, cursorTok)
	}

	key := s.gsiKey(index, pk)
	var members []string
	var err error
	if descending {
		members, err = s.client.ZRevRange(ctx, key, 0, -1).Result()
	} else {
		members, err = s.client.ZRange(ctx, key, 0, -1).Result()
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindTransient, "query gsi", err)
	}

	start := 0
	if cursorTok != "" {
		if c, ok := decodeCursor(cursorTok); ok {
			for i, m := range members {
				if m == c.member {
					start = i + 1
					break
				}
			}
		}
	}
	if start > len(members) {
		start = len(members)
	}
	rest := members[start:]
	if limit > 0 && limit < len(rest) {
		rest = rest[:limit]
	}

	items := make([]*Item, 0, len(rest))
	stale := s.client.Pipeline()
	for _, m := range rest {
		pk2, sk2 := splitMember(m)
		item, err := s.Get(ctx, pk2, sk2)
		if err != nil {
			// Lazily evict index entries whose base item expired or
			// was deleted out from under the index.
			stale.ZRem(ctx, key, m)
			continue
		}
		items = append(items, item)
	}
	_, _ = stale.Exec(ctx)

	page := &Page{Items: items}
	if limit > 0 && start+limit < len(members) {
		page.Cursor = encodeCursor(cursor{member: rest[len(rest)-1]})
	}
	return page, nil
}

func (s *RedisStore) queryGSI2(ctx context.Context, pk string, limit int, cursorTok string) (*Page, error) {
	members, err := s.client.SMembers(ctx, s.gsiKey(2, pk)).Result()
	if err != nil {
		return nil, errs.Wrap(errs.KindTransient, "query gsi2", err)
	}
	start := 0
	if cursorTok != "" {
		if c, ok := decodeCursor(cursorTok); ok {
			for i, m := range members {
				if m == c.member {
					start = i + 1
					break
				}
			}
		}
	}
	if start > len(members) {
		start = len(members)
	}
	rest := members[start:]
	if limit > 0 && limit < len(rest) {
		rest = rest[:limit]
	}
	items := make([]*Item, 0, len(rest))
	for _, m := range rest {
		pk2, sk2 := splitMember(m)
		item, err := s.Get(ctx, pk2, sk2)
		if err != nil {
			continue
		}
		items = append(items, item)
	}
	page := &Page{Items: items}
	if limit > 0 && start+limit < len(members) {
		page.Cursor = encodeCursor(cursor{member: rest[len(rest)-1]})
	}
	return page, nil
}

func (s *RedisStore) CountIndex(ctx context.Context, index int, pk string) (int64, error) {
	var count int64
	var err error
	switch index {
	case 2:
		count, err = s.client.SCard(ctx, s.gsiKey(2, pk)).Result()
	default:
		count, err = s.client.ZCard(ctx, s.gsiKey(index, pk)).Result()
	}
	if err != nil {
		return 0, errs.Wrap(errs.KindTransient, "count index", err)
	}
	return count, nil
}

// CountPK returns the number of items directly under a base-table
// partition, used by the usage ledger (§4.2 step 3: a COUNT-only query
// on PK = USR#{user}#ULOG#{date}).
func (s *RedisStore) CountPK(ctx context.Context, pk string) (int64, error) {
	n, err := s.client.ZCard(ctx, s.pkIndexKey(pk)).Result()
	if err != nil {
		return 0, errs.Wrap(errs.KindTransient, "count pk", err)
	}
	return n, nil
}

var _ fmt.Stringer = (*RedisStore)(nil)

func (s *RedisStore) String() string { return "RedisStore(" + s.prefix + ")" }
