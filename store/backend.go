package store

import (
	"context"

	"github.com/jacentio/strata/mapping"
	"github.com/jacentio/strata/query"
)

// Backend performs single-record operations against one concrete datastore.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// Dialect renders condition trees for Query.
	Dialect() query.Dialect

	// Persist writes one record. When the record's id field is empty the
	// backend assigns an identifier and returns it; otherwise the record
	// replaces the existing one and newID is empty.
	Persist(ctx context.Context, req PersistRequest) (newID string, err error)

	// Query returns the records of a table matching req.Expr.
	Query(ctx context.Context, req QueryRequest) ([]*mapping.StoreObject, error)

	// Delete removes the record with the given id.
	Delete(ctx context.Context, req DeleteRequest) error
}

// PersistRequest is a single create-or-update call.
type PersistRequest struct {
	Table   string
	IDField string
	Object  *mapping.StoreObject
}

// QueryRequest is a single query call.
type QueryRequest struct {
	Table   string
	IDField string

	// Expr is the rendered condition. An empty expression matches every record.
	Expr *query.Expression

	// Limit caps the number of matching records. 0 means no limit.
	Limit int
}

// DeleteRequest removes one record.
type DeleteRequest struct {
	Table   string
	IDField string
	ID      string
}
