package mapping_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jacentio/strata/mapping"
	"github.com/shopspring/decimal"
)

type address struct {
	Street string
	City   string
}

type user struct {
	ID      string
	Name    string
	Age     int
	Tags    []string
	Joined  time.Time
	Balance decimal.Decimal
	Nick    *string
}

type post struct {
	ID      string
	Title   string
	Author  *user
	Readers []*user
	Editors map[string]*user
	Address *address
	Stops   []*address
	Labels  map[string]string
	Flags   map[string]struct{}
}

func addressMapper() *mapping.Mapper {
	return mapping.MustNew[address](mapping.Definition{
		Name: "address",
		Fields: []*mapping.Field{
			mapping.String("street", func(a *address) *string { return &a.Street }),
			mapping.String("city", func(a *address) *string { return &a.City }),
		},
	})
}

func userMapper() *mapping.Mapper {
	return mapping.MustNew[user](mapping.Definition{
		Name:        "user",
		Table:       "users",
		ID:          mapping.String("id", func(u *user) *string { return &u.ID }),
		Supertypes:  []string{"principal"},
		Annotations: []string{"audited"},
		Fields: []*mapping.Field{
			mapping.String("name", func(u *user) *string { return &u.Name }),
			mapping.Plain("age", mapping.KindInt, func(u *user) *int { return &u.Age }),
			mapping.PlainList("tags", mapping.KindString, func(u *user) *[]string { return &u.Tags }),
			mapping.Plain("joined", mapping.KindTime, func(u *user) *time.Time { return &u.Joined }),
			mapping.Plain("balance", mapping.KindDecimal, func(u *user) *decimal.Decimal { return &u.Balance }),
			mapping.PlainPtr("nick", mapping.KindString, func(u *user) **string { return &u.Nick }),
		},
	})
}

func postMapper() *mapping.Mapper {
	return mapping.MustNew[post](mapping.Definition{
		Name: "post",
		ID:   mapping.String("id", func(p *post) *string { return &p.ID }),
		Fields: []*mapping.Field{
			mapping.String("title", func(p *post) *string { return &p.Title }),
			mapping.Referenced("author", "user", func(p *post) **user { return &p.Author }),
			mapping.ReferencedList("readers", "user", func(p *post) *[]*user { return &p.Readers }),
			mapping.ReferencedMap("editors", "user", func(p *post) *map[string]*user { return &p.Editors }),
			mapping.Embedded("address", "address", func(p *post) **address { return &p.Address }),
			mapping.EmbeddedList("stops", "address", func(p *post) *[]*address { return &p.Stops }),
			mapping.PlainMap("labels", mapping.KindString, func(p *post) *map[string]string { return &p.Labels }),
			mapping.PlainSet("flags", mapping.KindString, func(p *post) *map[string]struct{} { return &p.Flags }),
		},
	})
}

func newRegistry() *mapping.Registry {
	r := mapping.NewRegistry()
	r.MustRegister(addressMapper(), userMapper(), postMapper())
	return r
}

// fakeSaver assigns sequential ids to entities without one.
type fakeSaver struct {
	mu    sync.Mutex
	calls [][]any
	next  int
	err   error
}

func (s *fakeSaver) SaveReferences(_ context.Context, m *mapping.Mapper, entities []any) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, entities)
	if s.err != nil {
		return nil, s.err
	}
	ids := make([]any, len(entities))
	for i, e := range entities {
		id, err := m.ID(e)
		if err != nil {
			return nil, err
		}
		if id == "" {
			s.next++
			id = fmt.Sprintf("%s-%d", m.Name(), s.next)
			if err := m.SetID(e, id); err != nil {
				return nil, err
			}
		}
		ids[i] = id
	}
	return ids, nil
}

// fakeLoader returns entities from a fixed id index.
type fakeLoader struct {
	byID  map[string]any
	calls int
}

func (l *fakeLoader) LoadReferences(_ context.Context, _ *mapping.Mapper, ids []any) ([]any, error) {
	l.calls++
	out := make([]any, len(ids))
	for i, id := range ids {
		e, ok := l.byID[id.(string)]
		if !ok {
			return nil, fmt.Errorf("missing %v", id)
		}
		out[i] = e
	}
	return out, nil
}
