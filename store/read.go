package store

import (
	"context"
	"fmt"

	"github.com/jacentio/strata/mapping"
	"github.com/jacentio/strata/query"
)

// FindOptions tunes a Find call.
type FindOptions struct {
	// Limit caps the number of returned entities. 0 means no limit.
	Limit int
}

// Find returns the entities of typeName matching cond. A nil cond matches
// every record. Translation errors are returned before any backend call.
func (s *Store) Find(ctx context.Context, typeName string, cond query.Condition, opts FindOptions) ([]any, error) {
	m, err := s.registry.Mapper(typeName)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, m, cond, opts)
}

func (s *Store) find(ctx context.Context, m *mapping.Mapper, cond query.Condition, opts FindOptions) ([]any, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	idField := m.IDField()
	if idField == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotPersistable, m.Name())
	}

	expr, err := query.Render(cond, s.backend.Dialect())
	if err != nil {
		return nil, err
	}

	s.metrics.queries.WithLabelValues(s.backend.Name(), m.Name()).Inc()
	records, err := s.backend.Query(ctx, QueryRequest{
		Table:   m.Table(),
		IDField: idField.Name,
		Expr:    expr,
		Limit:   opts.Limit,
	})
	if err != nil {
		s.metrics.failures.WithLabelValues(s.backend.Name(), m.Name(), "query").Inc()
		return nil, &BackendError{Op: "query", Type: m.Name(), Err: err}
	}

	entities := make([]any, 0, len(records))
	for _, so := range records {
		entity, err := s.Decode(ctx, m, so)
		if err != nil {
			return nil, err
		}
		if hook, ok := entity.(AfterLoader); ok {
			if err := hook.AfterLoad(ctx); err != nil {
				return nil, fmt.Errorf("after load %s: %w", m.Name(), err)
			}
		}
		id, _ := m.ID(entity)
		if err := s.Notify(ctx, Notification{Event: EventAfterLoad, Type: m, ID: id, Entity: entity, Object: so}); err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

// Decode converts a raw record of m's table into an entity. Referenced
// fields are loaded through the store.
func (s *Store) Decode(ctx context.Context, m *mapping.Mapper, so *mapping.StoreObject) (any, error) {
	return s.converter.FromStore(ctx, m, so, s)
}

// FindFirst returns the first entity matching cond. When nothing matches it
// returns ErrNotFound if required, otherwise nil.
func (s *Store) FindFirst(ctx context.Context, typeName string, cond query.Condition, required bool) (any, error) {
	found, err := s.Find(ctx, typeName, cond, FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		if required {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, typeName)
		}
		return nil, nil
	}
	return found[0], nil
}

// FindByID returns the entity of typeName with the given id, or ErrNotFound.
func (s *Store) FindByID(ctx context.Context, typeName, id string) (any, error) {
	m, err := s.registry.Mapper(typeName)
	if err != nil {
		return nil, err
	}
	if m.IDField() == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotPersistable, typeName)
	}
	e, err := s.FindFirst(ctx, typeName, query.Eq(m.IDField().Name, id), false)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, typeName, id)
	}
	return e, nil
}

// LoadReferences fetches referenced entities with IN queries, split to the
// dialect's operand limit, and returns them in the order of ids. A missing id
// is ErrNotFound.
func (s *Store) LoadReferences(ctx context.Context, m *mapping.Mapper, ids []any) ([]any, error) {
	if len(ids) == 0 {
		return []any{}, nil
	}
	seen := make(map[string]struct{}, len(ids))
	keys := make([]any, 0, len(ids))
	for _, id := range ids {
		k := fmt.Sprint(id)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	size := query.MaxOperands(s.backend.Dialect())
	if size <= 0 {
		size = len(keys)
	}
	var found []any
	for start := 0; start < len(keys); start += size {
		chunk := keys[start:min(start+size, len(keys))]
		var cond query.Condition
		if len(chunk) == 1 {
			cond = query.Eq(m.IDField().Name, chunk[0])
		} else {
			cond = query.In(m.IDField().Name, chunk...)
		}
		part, err := s.find(ctx, m, cond, FindOptions{})
		if err != nil {
			return nil, err
		}
		found = append(found, part...)
	}

	byID := make(map[string]any, len(found))
	for _, e := range found {
		id, err := m.ID(e)
		if err != nil {
			return nil, err
		}
		byID[id] = e
	}

	out := make([]any, len(ids))
	for i, id := range ids {
		e, ok := byID[fmt.Sprint(id)]
		if !ok {
			return nil, fmt.Errorf("%w: %s %v", ErrNotFound, m.Name(), id)
		}
		out[i] = e
	}
	return out, nil
}
