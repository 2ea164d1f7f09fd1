package store_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jacentio/strata/mapping"
	"github.com/jacentio/strata/store"
)

func TestObserve_PriorityOrder(t *testing.T) {
	s := newStore(t, newMemBackend())

	var order []string
	add := func(name string, priority int) {
		s.Observe(store.ObserverSettings{
			Events:   []store.Event{store.EventChanged},
			Priority: priority,
			Observer: store.ObserverFunc(func(context.Context, store.Notification) error {
				order = append(order, name)
				return nil
			}),
		})
	}
	add("low", 1)
	add("high", 10)
	add("low-second", 1)

	m, _ := s.Registry().Mapper("book")
	if err := s.Notify(context.Background(), store.Notification{Event: store.EventChanged, Type: m}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"high", "low", "low-second"}, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestObserve_RuleAndEventFilter(t *testing.T) {
	s := newStore(t, newMemBackend())

	var seen []string
	s.Observe(store.ObserverSettings{
		Rule:   mapping.Rule{Type: "person"},
		Events: []store.Event{store.EventRemoved},
		Observer: store.ObserverFunc(func(_ context.Context, n store.Notification) error {
			seen = append(seen, "exact:"+n.Type.Name())
			return nil
		}),
	})
	s.Observe(store.ObserverSettings{
		Rule:   mapping.Rule{Type: "person", InstanceOf: true},
		Events: []store.Event{store.EventRemoved},
		Observer: store.ObserverFunc(func(_ context.Context, n store.Notification) error {
			seen = append(seen, "instance:"+n.Type.Name())
			return nil
		}),
	})

	ctx := context.Background()
	authors, _ := s.Registry().Mapper("author")
	books, _ := s.Registry().Mapper("book")
	_ = s.Notify(ctx, store.Notification{Event: store.EventRemoved, Type: authors})
	_ = s.Notify(ctx, store.Notification{Event: store.EventRemoved, Type: books})
	_ = s.Notify(ctx, store.Notification{Event: store.EventChanged, Type: authors})

	if diff := cmp.Diff([]string{"instance:author"}, seen); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestEvent_String(t *testing.T) {
	if store.EventAfterSave.String() != "after_save" {
		t.Errorf("unexpected %q", store.EventAfterSave.String())
	}
	if store.Event(99).String() != "Event(99)" {
		t.Errorf("unexpected %q", store.Event(99).String())
	}
	if store.ActionInsert.String() != "INSERT" || store.ActionUnknown.String() != "UNKNOWN" {
		t.Error("unexpected action names")
	}
}
