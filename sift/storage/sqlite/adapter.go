package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/siftql/sift/sift"
	"github.com/siftql/sift/sift/storage"
	"github.com/siftql/sift/sift/storage/sqlbuilder"
)

// Adapter connects to a SQLite database. The default driver is the cgo-free
// modernc driver ("sqlite"); NewWithDriver selects an alternative such as
// mattn's "sqlite3".
type Adapter struct {
	Path       string
	DriverName string
}

func New(path string) *Adapter {
	return &Adapter{Path: path, DriverName: "sqlite"}
}

func NewWithDriver(path, driver string) *Adapter {
	return &Adapter{Path: path, DriverName: driver}
}

func (a *Adapter) Backend() storage.Backend {
	return storage.BackendSQLite
}

func (a *Adapter) PlaceholderStyle() sqlbuilder.PlaceholderStyle {
	return sqlbuilder.PlaceholderQuestion
}

func (a *Adapter) Connect(ctx context.Context) (*sql.DB, error) {
	dsn := a.Path
	if !strings.Contains(dsn, "?") {
		dsn = dsn + "?_busy_timeout=5000&_foreign_keys=on"
	} else {
		dsn = dsn + "&_busy_timeout=5000&_foreign_keys=on"
	}
	db, err := sql.Open(a.DriverName, dsn)
	if err != nil {
		return nil, sift.Wrap(sift.ErrSQL, "open sqlite database", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, sift.Wrap(sift.ErrSQL, "connect to sqlite database", err)
	}
	return db, nil
}

func (a *Adapter) Close() error {
	return nil
}
