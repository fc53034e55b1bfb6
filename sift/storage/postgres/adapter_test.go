package postgres

import (
	"context"
	"testing"

	"github.com/siftql/sift/sift"
	"github.com/siftql/sift/sift/storage"
	"github.com/siftql/sift/sift/storage/sqlbuilder"
)

func TestAdapterShape(t *testing.T) {
	a := New("postgres://localhost/sift")
	if a.Backend() != storage.BackendPostgres {
		t.Errorf("backend = %v", a.Backend())
	}
	if a.PlaceholderStyle() != sqlbuilder.PlaceholderDollar {
		t.Errorf("placeholder style = %v", a.PlaceholderStyle())
	}
}

func TestConnectRejectsBadDSN(t *testing.T) {
	_, err := New("port=not-a-port").Connect(context.Background())
	if err == nil {
		t.Fatal("expected an error for an unparsable dsn")
	}
	if !sift.IsKind(err, sift.ErrSQL) {
		t.Fatalf("expected a %s error, got %v", sift.ErrSQL, err)
	}
}
