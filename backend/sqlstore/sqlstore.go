package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jacentio/strata/mapping"
	"github.com/jacentio/strata/query"
	"github.com/jacentio/strata/store"
)

// DB is the subset of *sql.DB the backend uses.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Config holds configuration for the Backend.
type Config struct {
	// Placeholder is the bound argument style of the driver.
	// Default: Question
	Placeholder Placeholder

	// Quoting is the identifier quoting of the driver.
	// Default: DoubleQuotes
	Quoting Quoting

	// Logger receives statement-level debug logs. Nil uses slog.Default().
	Logger *slog.Logger
}

// Backend stores records in relational tables.
type Backend struct {
	db      DB
	dialect Dialect
	logger  *slog.Logger
}

// New creates a new Backend.
func New(db DB, config Config) *Backend {
	if config.Placeholder != Dollar {
		config.Placeholder = Question
	}
	if config.Quoting != Backticks {
		config.Quoting = DoubleQuotes
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		db:      db,
		dialect: Dialect{Placeholder: config.Placeholder, Quoting: config.Quoting},
		logger:  logger,
	}
}

func (b *Backend) Name() string { return "sql" }

func (b *Backend) Dialect() query.Dialect { return b.dialect }

// Persist inserts the record with a new UUID when its id is empty and
// otherwise updates the row with that id. Updating a missing row fails with
// store.ErrNotFound.
func (b *Backend) Persist(ctx context.Context, req store.PersistRequest) (string, error) {
	raw, _ := req.Object.Get(req.IDField)
	id, _ := raw.(string)

	values := req.Object.Map()
	columns := make([]string, 0, len(values))
	for _, k := range req.Object.Keys() {
		if k != req.IDField {
			columns = append(columns, k)
		}
	}

	if id == "" {
		id = uuid.NewString()
		if err := b.insert(ctx, req.Table, req.IDField, id, columns, values); err != nil {
			return "", err
		}
		return id, nil
	}
	return "", b.update(ctx, req.Table, req.IDField, id, columns, values)
}

func (b *Backend) insert(ctx context.Context, table, idField, id string, columns []string, values map[string]any) error {
	names := []string{b.dialect.Quoting.quote(idField)}
	marks := []string{b.dialect.Placeholder.mark(1)}
	args := []any{id}
	for _, c := range columns {
		v, err := encodeValue(values[c])
		if err != nil {
			return fmt.Errorf("encode %s: %w", c, err)
		}
		args = append(args, v)
		names = append(names, b.dialect.Quoting.quote(c))
		marks = append(marks, b.dialect.Placeholder.mark(len(args)))
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		b.dialect.Quoting.quote(table), strings.Join(names, ", "), strings.Join(marks, ", "))
	if _, err := b.db.ExecContext(ctx, stmt, args...); err != nil {
		b.logger.Error("insert failed", "table", table, "id", id, "error", err)
		return err
	}
	b.logger.Debug("inserted row", "table", table, "id", id)
	return nil
}

func (b *Backend) update(ctx context.Context, table, idField, id string, columns []string, values map[string]any) error {
	sets := make([]string, 0, len(columns))
	args := make([]any, 0, len(columns)+1)
	for _, c := range columns {
		v, err := encodeValue(values[c])
		if err != nil {
			return fmt.Errorf("encode %s: %w", c, err)
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = %s", b.dialect.Quoting.quote(c), b.dialect.Placeholder.mark(len(args))))
	}
	if len(sets) == 0 {
		// Nothing but the id: still verify the row exists.
		args = append(args, id)
		sets = append(sets, fmt.Sprintf("%s = %s", b.dialect.Quoting.quote(idField), b.dialect.Placeholder.mark(len(args))))
	}
	args = append(args, id)

	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		b.dialect.Quoting.quote(table), strings.Join(sets, ", "), b.dialect.Quoting.quote(idField), b.dialect.Placeholder.mark(len(args)))
	result, err := b.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		b.logger.Error("update failed", "table", table, "id", id, "error", err)
		return err
	}
	if err := requireRow(result, table, id); err != nil {
		return err
	}
	b.logger.Debug("updated row", "table", table, "id", id)
	return nil
}

// Query selects the rows matching the rendered WHERE clause.
func (b *Backend) Query(ctx context.Context, req store.QueryRequest) ([]*mapping.StoreObject, error) {
	stmt := "SELECT * FROM " + b.dialect.Quoting.quote(req.Table)
	var args []any
	if !req.Expr.Empty() {
		stmt += " WHERE " + req.Expr.Text
		args = req.Expr.Args
	}
	if req.Limit > 0 {
		stmt += " LIMIT " + strconv.Itoa(req.Limit)
	}

	rows, err := b.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []*mapping.StoreObject
	for rows.Next() {
		cells := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		so := mapping.NewStoreObject()
		for i, c := range columns {
			so.Set(c, cells[i])
		}
		results = append(results, so)
	}

	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Delete removes the row with the given id, failing with store.ErrNotFound
// when there is none.
func (b *Backend) Delete(ctx context.Context, req store.DeleteRequest) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		b.dialect.Quoting.quote(req.Table), b.dialect.Quoting.quote(req.IDField), b.dialect.Placeholder.mark(1))
	result, err := b.db.ExecContext(ctx, stmt, req.ID)
	if err != nil {
		b.logger.Error("delete failed", "table", req.Table, "id", req.ID, "error", err)
		return err
	}
	return requireRow(result, req.Table, req.ID)
}

func requireRow(result sql.Result, table, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", store.ErrNotFound, table, id)
	}
	return nil
}

// encodeValue turns containers into JSON text; scalars pass through.
func encodeValue(v any) (any, error) {
	switch v.(type) {
	case []any, map[string]any:
		text, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(text), nil
	}
	return v, nil
}
