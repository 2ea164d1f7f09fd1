package store_test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/jacentio/strata/mapping"
	"github.com/jacentio/strata/query"
	"github.com/jacentio/strata/store"
)

type author struct {
	ID   string
	Name string

	saved []store.Entry
}

func (a *author) AfterSave(_ context.Context, e store.Entry) error {
	a.saved = append(a.saved, e)
	return nil
}

type book struct {
	ID        string
	Title     string
	Author    *author
	Reviewers []*author
}

type chapter struct {
	ID   string
	Next *chapter
}

type note struct {
	Text string
}

func newRegistry() *mapping.Registry {
	r := mapping.NewRegistry()
	r.MustRegister(
		mapping.MustNew[author](mapping.Definition{
			Name:        "author",
			Table:       "authors",
			ID:          mapping.String("id", func(a *author) *string { return &a.ID }),
			Supertypes:  []string{"person"},
			Annotations: []string{"audited"},
			Fields: []*mapping.Field{
				mapping.String("name", func(a *author) *string { return &a.Name }),
			},
		}),
		mapping.MustNew[book](mapping.Definition{
			Name:  "book",
			Table: "books",
			ID:    mapping.String("id", func(b *book) *string { return &b.ID }),
			Fields: []*mapping.Field{
				mapping.String("title", func(b *book) *string { return &b.Title }),
				mapping.Referenced("author", "author", func(b *book) **author { return &b.Author }),
				mapping.ReferencedList("reviewers", "author", func(b *book) *[]*author { return &b.Reviewers }),
			},
		}),
		mapping.MustNew[chapter](mapping.Definition{
			Name: "chapter",
			ID:   mapping.String("id", func(c *chapter) *string { return &c.ID }),
			Fields: []*mapping.Field{
				mapping.Referenced("next", "chapter", func(c *chapter) **chapter { return &c.Next }),
			},
		}),
		mapping.MustNew[note](mapping.Definition{
			Name: "note",
			Fields: []*mapping.Field{
				mapping.String("text", func(n *note) *string { return &n.Text }),
			},
		}),
	)
	return r
}

func newStore(t *testing.T, b *memBackend, mutate ...func(*store.Config)) *store.Store {
	t.Helper()
	cfg := store.DefaultConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}
	s, err := store.New(b, newRegistry(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// memDialect renders "field OP $n" and has no ENDS. A positive max caps the
// values of one leaf.
type memDialect struct {
	max int
}

func (d memDialect) MaxOperands() int { return d.max }

func (memDialect) Name() string { return "mem" }

func (memDialect) Translate(op query.Operator) (string, error) {
	if op == query.OpEnds {
		return "", query.Unsupported("mem", op)
	}
	return op.String(), nil
}

func (memDialect) Connective(l query.Logic) string { return l.String() }

func (d memDialect) Leaf(c *query.FieldCondition, fragment string, p *query.Params) (string, error) {
	if d.max > 0 && len(c.Values()) > d.max {
		return "", fmt.Errorf("%w: %d values", query.ErrInvalidCondition, len(c.Values()))
	}
	marks := make([]string, 0, len(c.Values()))
	for _, v := range c.Values() {
		marks = append(marks, fmt.Sprintf("$%d", p.Arg(v)))
	}
	return c.Field() + " " + fragment + " " + strings.Join(marks, ","), nil
}

// memBackend keeps records in memory. Queries with a non-empty expression
// return the records whose id is one of the bound arguments.
type memBackend struct {
	mu       sync.Mutex
	tables   map[string]map[string]*mapping.StoreObject
	persists []store.PersistRequest
	queries  []store.QueryRequest
	deletes  []store.DeleteRequest
	next     int
	inFlight int
	maxSeen  int

	// beforePersist runs outside the lock; an error fails the call.
	beforePersist func(req store.PersistRequest) error

	// noSignal makes Persist never report a new id.
	noSignal bool

	deleteErr error

	// maxOperands is passed to the dialect.
	maxOperands int
}

func newMemBackend() *memBackend {
	return &memBackend{tables: make(map[string]map[string]*mapping.StoreObject)}
}

func (b *memBackend) Name() string           { return "mem" }
func (b *memBackend) Dialect() query.Dialect { return memDialect{max: b.maxOperands} }

func (b *memBackend) Persist(_ context.Context, req store.PersistRequest) (string, error) {
	b.mu.Lock()
	b.inFlight++
	if b.inFlight > b.maxSeen {
		b.maxSeen = b.inFlight
	}
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.inFlight--
		b.mu.Unlock()
	}()

	if b.beforePersist != nil {
		if err := b.beforePersist(req); err != nil {
			b.mu.Lock()
			b.persists = append(b.persists, req)
			b.mu.Unlock()
			return "", err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.persists = append(b.persists, req)

	raw, _ := req.Object.Get(req.IDField)
	id, _ := raw.(string)
	newID := ""
	if id == "" && !b.noSignal {
		b.next++
		id = fmt.Sprintf("%s-%d", req.Table, b.next)
		newID = id
	}
	rec := mapping.StoreObjectFromMap(req.Object.Map())
	rec.Set(req.IDField, id)
	b.table(req.Table)[id] = rec
	return newID, nil
}

func (b *memBackend) Query(_ context.Context, req store.QueryRequest) ([]*mapping.StoreObject, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queries = append(b.queries, req)

	table := b.table(req.Table)
	ids := make([]string, 0, len(table))
	if req.Expr.Empty() {
		for id := range table {
			ids = append(ids, id)
		}
	} else {
		for _, arg := range req.Expr.Args {
			if id, ok := arg.(string); ok {
				if _, found := table[id]; found {
					ids = append(ids, id)
				}
			}
		}
	}
	sort.Strings(ids)
	if req.Limit > 0 && len(ids) > req.Limit {
		ids = ids[:req.Limit]
	}
	out := make([]*mapping.StoreObject, len(ids))
	for i, id := range ids {
		out[i] = mapping.StoreObjectFromMap(table[id].Map())
	}
	return out, nil
}

func (b *memBackend) Delete(_ context.Context, req store.DeleteRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes = append(b.deletes, req)
	if b.deleteErr != nil {
		return b.deleteErr
	}
	delete(b.table(req.Table), req.ID)
	return nil
}

func (b *memBackend) table(name string) map[string]*mapping.StoreObject {
	t, ok := b.tables[name]
	if !ok {
		t = make(map[string]*mapping.StoreObject)
		b.tables[name] = t
	}
	return t
}

func (b *memBackend) record(table, id string) (*mapping.StoreObject, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.tables[table][id]
	return rec, ok
}

func (b *memBackend) persistCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.persists)
}

func (b *memBackend) queryCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queries)
}

func titleOf(req store.PersistRequest) string {
	v, _ := req.Object.Get("title")
	s, _ := v.(string)
	return s
}
