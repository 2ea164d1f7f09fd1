package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/jacentio/strata/mapping"
)

// Save persists entities and returns one entry per entity in completion order.
//
// Each entity is converted and persisted on its own goroutine with exactly one
// backend call. The first failure is returned and later outcomes are dropped;
// work already dispatched keeps running and is not rolled back. Cancelling ctx
// stops Save from waiting but does not cancel dispatched work.
//
// Concurrent saves of the same entity pointer, within a batch or across
// referenced fields, are collapsed into one and share its entry.
func (s *Store) Save(ctx context.Context, entities ...any) (*WriteResult, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	result := &WriteResult{Entries: make([]Entry, 0, len(entities))}
	if len(entities) == 0 {
		return result, nil
	}
	s.metrics.batch.Observe(float64(len(entities)))

	var (
		failure error
		done    = make(chan struct{})
	)
	counter := NewCounter(len(entities), func(err error) {
		failure = err
		close(done)
	})

	work := context.WithoutCancel(ctx)
	var wg sync.WaitGroup
	for _, entity := range entities {
		wg.Add(1)
		go func(entity any) {
			defer wg.Done()
			entry, err := s.saveShared(work, entity)
			if err != nil {
				s.metrics.failures.WithLabelValues(s.backend.Name(), typeLabel(s.registry, entity), "save").Inc()
				if !counter.Fail(err) {
					s.logger.Warn("suppressed save failure", "error", err)
				}
				return
			}
			counter.Succeed(func() {
				result.Entries = append(result.Entries, entry)
			})
		}(entity)
	}

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if failure != nil {
		if s.config.DrainOnFailure {
			s.drain(ctx, &wg)
		}
		return nil, failure
	}
	return result, nil
}

func (s *Store) drain(ctx context.Context, wg *sync.WaitGroup) {
	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
	}
}

func (s *Store) saveShared(ctx context.Context, entity any) (Entry, error) {
	if _, err := s.registry.MapperOf(entity); err != nil {
		return Entry{}, err
	}
	key := flightKey(entity)
	if chain := ancestors(ctx); len(chain) > 0 {
		release, ok := s.waits.wait(chain[0], chain, key)
		if !ok {
			return Entry{}, fmt.Errorf("%w: %T", ErrReferenceCycle, entity)
		}
		defer release()
	}
	v, err, _ := s.inflight.Do(key, func() (any, error) {
		return s.saveOne(withAncestor(ctx, key), entity)
	})
	if err != nil {
		return Entry{}, err
	}
	return v.(Entry), nil
}

func (s *Store) saveOne(ctx context.Context, entity any) (Entry, error) {
	m, err := s.registry.MapperOf(entity)
	if err != nil {
		return Entry{}, err
	}
	idField := m.IDField()
	if idField == nil {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotPersistable, m.Name())
	}
	id, err := m.ID(entity)
	if err != nil {
		return Entry{}, err
	}

	if hook, ok := entity.(BeforeSaver); ok {
		if err := hook.BeforeSave(ctx); err != nil {
			return Entry{}, fmt.Errorf("before save %s: %w", m.Name(), err)
		}
	}
	if err := s.Notify(ctx, Notification{Event: EventBeforeSave, Type: m, ID: id, Entity: entity}); err != nil {
		return Entry{}, err
	}

	bridge := mapping.NewBridge()
	so, err := s.converter.IntoStore(ctx, m, entity, bridge, s)
	if err != nil {
		return Entry{}, err
	}
	if err := bridge.Resolve(ctx, so); err != nil {
		return Entry{}, err
	}

	newID, err := s.persist(ctx, PersistRequest{Table: m.Table(), IDField: idField.Name, Object: so})
	if err != nil {
		return Entry{}, &BackendError{Op: "persist", Type: m.Name(), Err: err}
	}

	entry := Entry{ID: id, Object: so, Action: ActionUnknown, Entity: entity}
	switch {
	case newID != "":
		if err := m.SetID(entity, newID); err != nil {
			return Entry{}, err
		}
		so.Set(idField.Name, newID)
		entry.ID = newID
		entry.Action = ActionInsert
	case id != "":
		entry.Action = ActionUpdate
	}

	if hook, ok := entity.(AfterSaver); ok {
		if err := hook.AfterSave(ctx, entry); err != nil {
			return Entry{}, fmt.Errorf("after save %s: %w", m.Name(), err)
		}
	}
	n := Notification{Event: EventAfterSave, Type: m, ID: entry.ID, Entity: entity, Object: so, Action: entry.Action}
	if err := s.Notify(ctx, n); err != nil {
		return Entry{}, err
	}

	s.metrics.writes.WithLabelValues(s.backend.Name(), m.Name(), entry.Action.String()).Inc()
	s.logger.Debug("entity persisted", "type", m.Name(), "id", entry.ID, "action", entry.Action)
	return entry, nil
}

// persist issues the backend call, on the write pool when one is configured.
func (s *Store) persist(ctx context.Context, req PersistRequest) (string, error) {
	if s.pool == nil {
		return s.backend.Persist(ctx, req)
	}

	type outcome struct {
		id  string
		err error
	}
	ch := make(chan outcome, 1)
	err := s.pool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("backend panic: %v", r)}
			}
		}()
		id, err := s.backend.Persist(ctx, req)
		ch <- outcome{id: id, err: err}
	})
	if err != nil {
		return "", err
	}
	o := <-ch
	return o.id, o.err
}

// SaveReferences saves referenced entities through the write pipeline and
// returns their identifiers in input order.
func (s *Store) SaveReferences(ctx context.Context, m *mapping.Mapper, entities []any) ([]any, error) {
	if _, err := s.Save(ctx, entities...); err != nil {
		return nil, err
	}

	ids := make([]any, len(entities))
	for i, e := range entities {
		id, err := m.ID(e)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

func flightKey(entity any) string {
	return fmt.Sprintf("%T@%p", entity, entity)
}

type ancestorKey struct{}

type ancestor struct {
	key    string
	parent *ancestor
}

// withAncestor records the flight of an entity being saved for the nested
// referenced saves its conversion starts.
func withAncestor(ctx context.Context, key string) context.Context {
	parent, _ := ctx.Value(ancestorKey{}).(*ancestor)
	return context.WithValue(ctx, ancestorKey{}, &ancestor{key: key, parent: parent})
}

// ancestors returns the flights held up the reference chain, innermost first.
func ancestors(ctx context.Context) []string {
	var keys []string
	for a, _ := ctx.Value(ancestorKey{}).(*ancestor); a != nil; a = a.parent {
		keys = append(keys, a.key)
	}
	return keys
}

// waitGraph records which in-flight saves are blocked on which others, across
// every batch of a store.
type waitGraph struct {
	mu    sync.Mutex
	edges map[string]map[string]int
}

// wait records that flight from waits on flight to. It refuses when to is one
// of held or already waits, directly or transitively, on one of them. The
// returned func removes the edge.
func (g *waitGraph) wait(from string, held []string, to string) (func(), bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	holds := make(map[string]struct{}, len(held))
	for _, k := range held {
		holds[k] = struct{}{}
	}
	visited := make(map[string]struct{})
	stack := []string{to}
	for len(stack) > 0 {
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := holds[k]; ok {
			return nil, false
		}
		if _, ok := visited[k]; ok {
			continue
		}
		visited[k] = struct{}{}
		for next := range g.edges[k] {
			stack = append(stack, next)
		}
	}

	if g.edges == nil {
		g.edges = make(map[string]map[string]int)
	}
	if g.edges[from] == nil {
		g.edges[from] = make(map[string]int)
	}
	g.edges[from][to]++
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.edges[from][to]--; g.edges[from][to] == 0 {
			delete(g.edges[from], to)
		}
		if len(g.edges[from]) == 0 {
			delete(g.edges, from)
		}
	}, true
}

func typeLabel(reg *mapping.Registry, entity any) string {
	if m, err := reg.MapperOf(entity); err == nil {
		return m.Name()
	}
	return "unknown"
}
