// Package cache puts a Redis read-through cache in front of an account store.
//
// Only single-account lookups are cached. Updates and deletes invalidate the
// entry before touching the store and fail if Redis cannot be reached. Each
// entry carries a version counter; a fill is dropped when a write started
// after the lookup began. Read failures are logged and fall back to the store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kvetinski/bank/internal/domain"
)

const keyPrefix = "account:"

// Store is the subset of the persistence port the cache wraps.
type Store interface {
	Save(ctx context.Context, acc domain.Account) (domain.Account, error)
	FindByID(ctx context.Context, id int64) (domain.Account, error)
	FindAll(ctx context.Context) ([]domain.Account, error)
	DeleteByID(ctx context.Context, id int64) error
}

type Repository struct {
	next   Store
	client *goredis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New wraps next. A zero ttl stores entries without expiry.
func New(next Store, client *goredis.Client, ttl time.Duration, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Repository{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Connect creates a client for addr and pings it.
func Connect(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// pendingTTL bounds how long a write in progress blocks cache fills if the
// writer dies before clearing its marker.
const pendingTTL = 30 * time.Second

func key(id int64) string {
	return keyPrefix + strconv.FormatInt(id, 10)
}

func versionKey(id int64) string {
	return key(id) + ":version"
}

func pendingKey(id int64) string {
	return key(id) + ":pending"
}

// Save writes through to the store. Updates invalidate the cached entry
// before the store write and refuse to proceed if that fails.
func (r *Repository) Save(ctx context.Context, acc domain.Account) (domain.Account, error) {
	if acc.ID == 0 {
		return r.next.Save(ctx, acc)
	}

	if err := r.beginWrite(ctx, acc.ID); err != nil {
		return domain.Account{}, err
	}
	defer r.endWrite(ctx, acc.ID)

	return r.next.Save(ctx, acc)
}

func (r *Repository) FindByID(ctx context.Context, id int64) (domain.Account, error) {
	acc, version, ok := r.get(ctx, id)
	if ok {
		return acc, nil
	}

	acc, err := r.next.FindByID(ctx, id)
	if err != nil {
		return domain.Account{}, err
	}

	if version >= 0 {
		r.fill(ctx, acc, version)
	}
	return acc, nil
}

func (r *Repository) FindAll(ctx context.Context) ([]domain.Account, error) {
	return r.next.FindAll(ctx)
}

func (r *Repository) DeleteByID(ctx context.Context, id int64) error {
	if err := r.beginWrite(ctx, id); err != nil {
		return err
	}
	defer r.endWrite(ctx, id)

	return r.next.DeleteByID(ctx, id)
}

// get returns the cached account, or on a miss the entry version observed
// before the store is consulted. A negative version means Redis could not
// be read and the result must not be cached.
func (r *Repository) get(ctx context.Context, id int64) (domain.Account, int64, bool) {
	data, err := r.client.Get(ctx, key(id)).Bytes()
	switch {
	case err == nil:
		var acc domain.Account
		if err = json.Unmarshal(data, &acc); err == nil {
			return acc, 0, true
		}
		r.logger.Warn("cache entry undecodable", zap.Int64("account_id", id), zap.Error(err))
	case !errors.Is(err, goredis.Nil):
		r.logger.Warn("cache read failed", zap.Int64("account_id", id), zap.Error(err))
		return domain.Account{}, -1, false
	}

	version, err := readVersion(ctx, r.client, id)
	if err != nil {
		r.logger.Warn("cache version read failed", zap.Int64("account_id", id), zap.Error(err))
		return domain.Account{}, -1, false
	}

	return domain.Account{}, version, false
}

// fill caches acc only if no write started since version was read and
// none is in progress.
func (r *Repository) fill(ctx context.Context, acc domain.Account, version int64) {
	data, err := json.Marshal(acc)
	if err != nil {
		r.logger.Warn("cache encode failed", zap.Int64("account_id", acc.ID), zap.Error(err))
		return
	}

	err = r.client.Watch(ctx, func(tx *goredis.Tx) error {
		current, err := readVersion(ctx, tx, acc.ID)
		if err != nil {
			return err
		}
		pending, err := tx.Exists(ctx, pendingKey(acc.ID)).Result()
		if err != nil {
			return err
		}
		if current != version || pending > 0 {
			return errWriteRaced
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key(acc.ID), data, r.ttl)
			return nil
		})
		return err
	}, versionKey(acc.ID), pendingKey(acc.ID))

	switch {
	case err == nil:
	case errors.Is(err, errWriteRaced), errors.Is(err, goredis.TxFailedErr):
		r.logger.Debug("cache fill skipped", zap.Int64("account_id", acc.ID))
	default:
		r.logger.Warn("cache write failed", zap.Int64("account_id", acc.ID), zap.Error(err))
	}
}

// beginWrite drops the cached entry, bumps its version and marks a write as
// pending. Concurrent fills that started earlier are then discarded.
func (r *Repository) beginWrite(ctx context.Context, id int64) error {
	_, err := r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(id))
		pipe.Set(ctx, pendingKey(id), 1, pendingTTL)
		pipe.Del(ctx, key(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate cached account %d: %w", id, err)
	}

	return nil
}

// endWrite repeats the invalidation after the store write and clears the
// pending marker. A failure here is only logged: the marker expires on its
// own and fills stay blocked until then.
func (r *Repository) endWrite(ctx context.Context, id int64) {
	_, err := r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(id))
		pipe.Del(ctx, key(id), pendingKey(id))
		return nil
	})
	if err != nil {
		r.logger.Warn("cache invalidate after write failed", zap.Int64("account_id", id), zap.Error(err))
	}
}

var errWriteRaced = errors.New("account written during cache fill")

type getter interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
}

func readVersion(ctx context.Context, c getter, id int64) (int64, error) {
	v, err := c.Get(ctx, versionKey(id)).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}

	return v, err
}
