package postgres

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/siftql/sift/sift"
	"github.com/siftql/sift/sift/storage"
	"github.com/siftql/sift/sift/storage/sqlbuilder"
)

// Adapter connects to PostgreSQL through pgx's database/sql shim.
type Adapter struct {
	DSN string
}

func New(dsn string) *Adapter {
	return &Adapter{DSN: dsn}
}

func (a *Adapter) Backend() storage.Backend { return storage.BackendPostgres }

func (a *Adapter) PlaceholderStyle() sqlbuilder.PlaceholderStyle {
	return sqlbuilder.PlaceholderDollar
}

func (a *Adapter) Connect(ctx context.Context) (*sql.DB, error) {
	cfg, err := pgx.ParseConfig(a.DSN)
	if err != nil {
		return nil, sift.Wrap(sift.ErrSQL, "parse postgres dsn", err)
	}
	db := stdlib.OpenDB(*cfg)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, sift.Wrap(sift.ErrSQL, "connect to postgres database", err)
	}
	return db, nil
}

func (a *Adapter) Close() error { return nil }
