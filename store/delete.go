package store

import (
	"context"
	"fmt"
	"sync"
)

// Delete removes entities. Each entity is removed concurrently; the first
// error is returned once every removal has finished.
func (s *Store) Delete(ctx context.Context, entities ...any) error {
	if s.isClosed() {
		return ErrClosed
	}
	if len(entities) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(entities))
	for _, entity := range entities {
		wg.Add(1)
		go func(entity any) {
			defer wg.Done()
			if err := s.deleteOne(ctx, entity); err != nil {
				s.metrics.failures.WithLabelValues(s.backend.Name(), typeLabel(s.registry, entity), "delete").Inc()
				errs <- err
			}
		}(entity)
	}

	go func() {
		wg.Wait()
		close(errs)
	}()

	var first error
	for err := range errs {
		if first == nil {
			first = err
		}
	}
	return first
}

func (s *Store) deleteOne(ctx context.Context, entity any) error {
	m, err := s.registry.MapperOf(entity)
	if err != nil {
		return err
	}
	idField := m.IDField()
	if idField == nil {
		return fmt.Errorf("%w: %s", ErrNotPersistable, m.Name())
	}
	id, err := m.ID(entity)
	if err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("%w: %s", ErrMissingID, m.Name())
	}

	if hook, ok := entity.(BeforeDeleter); ok {
		if err := hook.BeforeDelete(ctx); err != nil {
			return fmt.Errorf("before delete %s: %w", m.Name(), err)
		}
	}
	if err := s.Notify(ctx, Notification{Event: EventBeforeDelete, Type: m, ID: id, Entity: entity}); err != nil {
		return err
	}

	if err := s.backend.Delete(ctx, DeleteRequest{Table: m.Table(), IDField: idField.Name, ID: id}); err != nil {
		return &BackendError{Op: "delete", Type: m.Name(), Err: err}
	}

	s.logger.Debug("entity deleted", "type", m.Name(), "id", id)
	return s.Notify(ctx, Notification{Event: EventAfterDelete, Type: m, ID: id, Entity: entity})
}
