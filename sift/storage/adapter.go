package storage

import (
	"context"
	"database/sql"

	"github.com/siftql/sift/sift/storage/sqlbuilder"
)

type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// Adapter abstracts database-specific connection concerns. Query execution
// itself stays with the caller; this module only compiles predicates.
type Adapter interface {
	Backend() Backend
	PlaceholderStyle() sqlbuilder.PlaceholderStyle

	Connect(ctx context.Context) (*sql.DB, error)
	Close() error
}
