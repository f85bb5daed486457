package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/directory-service/internal/apperrors"
)

type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	SetEx(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// querier is implemented by both the pool and transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is shared by all repositories. Every operation checks a connection out
// of the pool and returns it before the operation completes.
type DB struct {
	pool  *pgxpool.Pool
	cache *SourceCache

	mu        sync.RWMutex
	listeners []func(ctx context.Context, sourceUUID string)
}

// New wraps pool. cache may be nil.
func New(pool *pgxpool.Pool, cache *SourceCache) *DB {
	return &DB{pool: pool, cache: cache}
}

func (db *DB) Close() {
	db.pool.Close()
}

// OnSourceChange registers fn to be called after a source was edited or
// deleted, directly or through its phonebook.
func (db *DB) OnSourceChange(fn func(ctx context.Context, sourceUUID string)) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.listeners = append(db.listeners, fn)
}

func (db *DB) sourcesChanged(ctx context.Context, uuids ...string) {
	if len(uuids) == 0 {
		return
	}
	db.cache.Invalidate(ctx, uuids...)

	db.mu.RLock()
	listeners := make([]func(context.Context, string), len(db.listeners))
	copy(listeners, db.listeners)
	db.mu.RUnlock()

	for _, uuid := range uuids {
		for _, fn := range listeners {
			fn(ctx, uuid)
		}
	}
}

// withTx runs fn in a transaction. The transaction is rolled back when fn
// fails or panics, and errors are classified before being returned.
func (db *DB) withTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return classify(err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Ctx(ctx).Error().Err(rbErr).Msg("Failed to roll back transaction")
			}
		}
	}()

	if err = fn(tx); err != nil {
		return classify(err)
	}
	if err = tx.Commit(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// Postgres error codes the store reacts to.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

func pgError(err error) *pgconn.PgError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr
	}
	return nil
}

// isUniqueViolation reports whether err violates the named unique
// constraint. An empty constraint matches any unique violation.
func isUniqueViolation(err error, constraint string) bool {
	pgErr := pgError(err)
	if pgErr == nil || pgErr.Code != codeUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// isDataException reports whether postgres rejected a value, such as text
// that is not valid in the database encoding.
func isDataException(err error) bool {
	pgErr := pgError(err)
	return pgErr != nil && strings.HasPrefix(pgErr.Code, "22")
}

func isForeignKeyViolation(err error) bool {
	pgErr := pgError(err)
	return pgErr != nil && pgErr.Code == codeForeignKeyViolation
}

// classify maps errors that repositories did not translate themselves.
// Directory errors and context errors are returned unchanged. Rejected values
// become ErrInvalidArgument, constraint violations ErrIntegrity, and
// everything else is reported as the database being unavailable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if isDataException(err) {
		return apperrors.ErrInvalidArgument.Err(err)
	}
	if pgErr := pgError(err); pgErr != nil && strings.HasPrefix(pgErr.Code, "23") {
		return apperrors.ErrIntegrity.Err(err)
	}
	return apperrors.ErrDatabaseUnavailable.Err(err)
}
