package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/jacentio/strata/mapping"
)

// Event is a lifecycle point observers can subscribe to.
type Event int

const (
	EventBeforeSave Event = iota + 1
	EventAfterSave
	EventAfterLoad
	EventBeforeDelete
	EventAfterDelete

	// EventChanged and EventRemoved are delivered by change-stream handlers
	// for records written or removed outside this process.
	EventChanged
	EventRemoved
)

var eventNames = map[Event]string{
	EventBeforeSave:   "before_save",
	EventAfterSave:    "after_save",
	EventAfterLoad:    "after_load",
	EventBeforeDelete: "before_delete",
	EventAfterDelete:  "after_delete",
	EventChanged:      "changed",
	EventRemoved:      "removed",
}

func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

// Notification is delivered to observers.
type Notification struct {
	Event  Event
	Type   *mapping.Mapper
	ID     string
	Entity any

	// Object is the store form, when one exists at this point.
	Object *mapping.StoreObject

	// Action is set for EventAfterSave.
	Action Action
}

// Observer receives notifications for the types its rule applies to.
type Observer interface {
	Observe(ctx context.Context, n Notification) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, n Notification) error

func (f ObserverFunc) Observe(ctx context.Context, n Notification) error { return f(ctx, n) }

// ObserverSettings registers an observer.
type ObserverSettings struct {
	Rule     mapping.Rule
	Events   []Event
	Priority int
	Observer Observer
}

func (o ObserverSettings) wants(e Event) bool {
	return slices.Contains(o.Events, e)
}

type observers struct {
	mu   sync.RWMutex
	list []ObserverSettings
}

func (o *observers) add(settings ObserverSettings) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.list = append(o.list, settings)
	// higher priority first, registration order among equals
	slices.SortStableFunc(o.list, func(a, b ObserverSettings) int {
		return b.Priority - a.Priority
	})
}

func (o *observers) notify(ctx context.Context, n Notification) error {
	o.mu.RLock()
	list := o.list
	o.mu.RUnlock()

	for _, settings := range list {
		if !settings.wants(n.Event) || !settings.Rule.Applies(n.Type) {
			continue
		}
		if err := settings.Observer.Observe(ctx, n); err != nil {
			return fmt.Errorf("%s observer for %s: %w", n.Event, n.Type.Name(), err)
		}
	}
	return nil
}
