package cache

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/p2repo/cdenrich/internal/infra/resilience"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the content-cache schema migrations to the database
// behind pool. It is called once at startup, before the first query.
func Migrate(pool *pgxpool.Pool) error {
	const op = "cache.Migrate"

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("%s: set dialect: %w", op, err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("%s: goose up: %w", op, err)
	}
	return nil
}

// Postgres is the durable ContentHandler. A row with a NULL payload is a
// negative marker. Each statement runs under the injected timeout, and
// transient connection failures are retried through the injected Retrier;
// either may be nil to disable that wrapping.
type Postgres struct {
	pool    *pgxpool.Pool
	retrier resilience.Retrier
	timeout resilience.Timeout
}

// NewPostgres returns a Postgres ContentHandler over pool.
func NewPostgres(pool *pgxpool.Pool, retrier resilience.Retrier, timeout resilience.Timeout) *Postgres {
	return &Postgres{pool: pool, retrier: retrier, timeout: timeout}
}

func (p *Postgres) do(ctx context.Context, fn func(ctx context.Context) error) error {
	wrapped := fn
	if p.timeout != nil {
		inner := wrapped
		wrapped = func(ctx context.Context) error { return p.timeout.Do(ctx, inner) }
	}
	if p.retrier == nil {
		return wrapped(ctx)
	}
	return p.retrier.Do(ctx, wrapped)
}

// GetContent implements ContentHandler.
func (p *Postgres) GetContent(ctx context.Context, uri string) (string, error) {
	const op = "cache.Postgres.GetContent"

	var payload *string
	var found bool
	err := p.do(ctx, func(ctx context.Context) error {
		err := p.pool.QueryRow(ctx,
			`SELECT payload FROM content_cache WHERE uri = $1`, uri,
		).Scan(&payload)
		// A miss is a result, not a failure to retry.
		if errors.Is(err, pgx.ErrNoRows) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return "", ErrNotCached
	}
	if payload == nil {
		return "", ErrAbsent
	}
	return *payload, nil
}

// SaveContent implements ContentHandler.
func (p *Postgres) SaveContent(ctx context.Context, uri, payload string) error {
	const op = "cache.Postgres.SaveContent"

	if err := p.upsert(ctx, uri, &payload); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SaveAbsent implements ContentHandler.
func (p *Postgres) SaveAbsent(ctx context.Context, uri string) error {
	const op = "cache.Postgres.SaveAbsent"

	if err := p.upsert(ctx, uri, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (p *Postgres) upsert(ctx context.Context, uri string, payload *string) error {
	return p.do(ctx, func(ctx context.Context) error {
		_, err := p.pool.Exec(ctx,
			`INSERT INTO content_cache (uri, payload, fetched_at)
			 VALUES ($1, $2, now())
			 ON CONFLICT (uri) DO UPDATE
			 SET payload = EXCLUDED.payload, fetched_at = EXCLUDED.fetched_at`,
			uri, payload)
		return err
	})
}
