package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brianYuDesign/balance-engine/pkg/mmodel"
	"github.com/brianYuDesign/balance-engine/pkg/mredis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
)

// snapshotScript overwrites value and timestamp only when the incoming
// logical timestamp strictly exceeds the stored one (last writer wins).
// Returns 1 when written, 0 when the stored state is newer or equal.
const snapshotScriptSource = `
local ts = redis.call('HGET', KEYS[1], 'ts')
if ts and tonumber(ts) >= tonumber(ARGV[1]) then
    return 0
end
redis.call('HSET', KEYS[1], 'ts', ARGV[1], 'value', ARGV[2])
return 1
`

var snapshotScript = goredis.NewScript(snapshotScriptSource)

// snapshotValue is the msgpack shape stored in the cache hash. Amounts travel
// as strings so the exact decimal survives the round trip.
type snapshotValue struct {
	AccountID string    `msgpack:"account_id"`
	Currency  string    `msgpack:"currency"`
	Available string    `msgpack:"available"`
	Frozen    string    `msgpack:"frozen"`
	Version   int64     `msgpack:"version"`
	UpdatedAt time.Time `msgpack:"updated_at"`
}

func toSnapshotValue(balance mmodel.Balance) snapshotValue {
	return snapshotValue{
		AccountID: balance.AccountID,
		Currency:  balance.Currency,
		Available: balance.Available.String(),
		Frozen:    balance.Frozen.String(),
		Version:   balance.Version,
		UpdatedAt: balance.UpdatedAt,
	}
}

func (v snapshotValue) toBalance() (*mmodel.Balance, error) {
	available, err := decimal.NewFromString(v.Available)
	if err != nil {
		return nil, err
	}

	frozen, err := decimal.NewFromString(v.Frozen)
	if err != nil {
		return nil, err
	}

	return &mmodel.Balance{
		AccountID: v.AccountID,
		Currency:  v.Currency,
		Available: available,
		Frozen:    frozen,
		Version:   v.Version,
		UpdatedAt: v.UpdatedAt,
	}, nil
}

// Repository is the snapshot sink and read-side of the external cache.
type Repository interface {
	Flush(ctx context.Context, entries []mmodel.SnapshotEntry) error
	Get(ctx context.Context, accountID, currency string) (*mmodel.Balance, error)
}

// SnapshotRedisRepository is a Redis-specific implementation of the snapshot Repository.
type SnapshotRedisRepository struct {
	conn      *mredis.RedisConnection
	namespace string
}

// NewSnapshotRedisRepository returns a new instance of SnapshotRedisRepository using the given Redis connection.
func NewSnapshotRedisRepository(rc *mredis.RedisConnection, namespace string) *SnapshotRedisRepository {
	return &SnapshotRedisRepository{
		conn:      rc,
		namespace: namespace,
	}
}

func (r *SnapshotRedisRepository) key(accountID, currency string) string {
	return fmt.Sprintf("%s:%s:%s", r.namespace, accountID, currency)
}

// Flush writes a batch of committed balances through one pipeline, each under
// the compare-and-set-on-timestamp script. Best effort by contract: the
// relational store stays authoritative, so script errors are returned but a
// caller may drop them after logging.
func (r *SnapshotRedisRepository) Flush(ctx context.Context, entries []mmodel.SnapshotEntry) error {
	if len(entries) == 0 {
		return nil
	}

	client, err := r.conn.GetClient(ctx)
	if err != nil {
		return err
	}

	pipe := client.Pipeline()

	for _, entry := range entries {
		value, err := msgpack.Marshal(toSnapshotValue(entry.Balance))
		if err != nil {
			return err
		}

		snapshotScript.Run(ctx, pipe,
			[]string{r.key(entry.Balance.AccountID, entry.Balance.Currency)},
			entry.Timestamp, value)
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		return err
	}

	return nil
}

// Get reads a cached balance; a miss returns nil without error so the caller
// can fall back to the authoritative store.
func (r *SnapshotRedisRepository) Get(ctx context.Context, accountID, currency string) (*mmodel.Balance, error) {
	client, err := r.conn.GetClient(ctx)
	if err != nil {
		return nil, err
	}

	value, err := client.HGet(ctx, r.key(accountID, currency), "value").Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}

		return nil, err
	}

	var stored snapshotValue
	if err := msgpack.Unmarshal(value, &stored); err != nil {
		return nil, err
	}

	return stored.toBalance()
}
