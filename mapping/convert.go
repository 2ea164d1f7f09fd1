package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Saver persists referenced entities during conversion. It returns the
// identifiers of entities in input order.
type Saver interface {
	SaveReferences(ctx context.Context, m *Mapper, entities []any) ([]any, error)
}

// Loader fetches referenced entities by identifier. It returns the entities in
// the order of ids.
type Loader interface {
	LoadReferences(ctx context.Context, m *Mapper, ids []any) ([]any, error)
}

var errNoSaver = errors.New("referenced field requires a saver")
var errNoLoader = errors.New("referenced field requires a loader")

// Converter turns entities into StoreObjects and back, dispatching each field
// to its strategy.
type Converter struct {
	registry *Registry
	handlers *TypeHandlers
}

// NewConverter creates a converter. A nil handlers uses DefaultTypeHandlers.
func NewConverter(registry *Registry, handlers *TypeHandlers) *Converter {
	if handlers == nil {
		handlers = DefaultTypeHandlers()
	}
	return &Converter{registry: registry, handlers: handlers}
}

// Registry returns the converter's registry.
func (c *Converter) Registry() *Registry { return c.registry }

// IntoStore converts entity to its store form. Referenced values are saved
// through saver and registered with bridge; the returned object holds tokens
// until bridge.Resolve is called.
func (c *Converter) IntoStore(ctx context.Context, m *Mapper, entity any, bridge *Bridge, saver Saver) (*StoreObject, error) {
	so := NewStoreObject()
	for _, f := range m.fields {
		v, err := f.Get(entity)
		if err != nil {
			return nil, &ConversionError{Type: m.name, Field: f.Name, Err: err}
		}
		sv, err := c.fieldInto(ctx, m, f, v, bridge, saver)
		if err != nil {
			return nil, &ConversionError{Type: m.name, Field: f.Name, Err: err}
		}
		so.Set(f.Name, sv)
	}
	return so, nil
}

func (c *Converter) fieldInto(ctx context.Context, m *Mapper, f *Field, v any, bridge *Bridge, saver Saver) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f.Strategy {
	case StrategyPlain:
		h, err := c.handlers.Handler(f.Kind)
		if err != nil {
			return nil, err
		}
		return mapShape(f.Shape, v, func(item any) (any, error) {
			if item == nil {
				return nil, nil
			}
			return h.IntoStore(item)
		})

	case StrategyEmbedded:
		target, err := c.registry.Mapper(f.Kind)
		if err != nil {
			return nil, err
		}
		return mapShape(f.Shape, v, func(item any) (any, error) {
			if item == nil {
				return nil, fmt.Errorf("nil %s element", f.Kind)
			}
			return c.IntoStore(ctx, target, item, bridge, saver)
		})

	case StrategyReferenced:
		target, err := c.registry.Mapper(f.Kind)
		if err != nil {
			return nil, err
		}
		return c.referenceInto(ctx, m.name+"."+f.Name, f, target, v, bridge, saver)
	}
	return nil, fmt.Errorf("unknown strategy %s", f.Strategy)
}

func (c *Converter) referenceInto(ctx context.Context, label string, f *Field, target *Mapper, v any, bridge *Bridge, saver Saver) (any, error) {
	if saver == nil || bridge == nil {
		return nil, errNoSaver
	}
	switch f.Shape {
	case ShapeScalar:
		return bridge.Register(ctx, label, func(ctx context.Context) (any, error) {
			ids, err := saver.SaveReferences(ctx, target, []any{v})
			if err != nil {
				return nil, err
			}
			return ids[0], nil
		}), nil

	case ShapeList, ShapeSet:
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("expected []any, got %T", v)
		}
		if len(items) == 0 {
			return []any{}, nil
		}
		for i, item := range items {
			if item == nil {
				return nil, fmt.Errorf("nil %s element %d", f.Kind, i)
			}
		}
		return bridge.Register(ctx, label, func(ctx context.Context) (any, error) {
			return saver.SaveReferences(ctx, target, items)
		}), nil

	case ShapeMap:
		items, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected map[string]any, got %T", v)
		}
		if len(items) == 0 {
			return map[string]any{}, nil
		}
		keys := sortedKeys(items)
		entities := make([]any, len(keys))
		for i, k := range keys {
			if items[k] == nil {
				return nil, fmt.Errorf("nil %s element %q", f.Kind, k)
			}
			entities[i] = items[k]
		}
		return bridge.Register(ctx, label, func(ctx context.Context) (any, error) {
			ids, err := saver.SaveReferences(ctx, target, entities)
			if err != nil {
				return nil, err
			}
			out := make(map[string]any, len(keys))
			for i, k := range keys {
				out[k] = ids[i]
			}
			return out, nil
		}), nil
	}
	return nil, fmt.Errorf("unknown shape %s", f.Shape)
}

// FromStore builds a new entity of m from its store form. Fields absent from
// so keep their zero value. Referenced fields are fetched through loader.
func (c *Converter) FromStore(ctx context.Context, m *Mapper, so *StoreObject, loader Loader) (any, error) {
	entity := m.NewEntity()
	for _, f := range m.fields {
		raw, ok := so.Get(f.Name)
		if !ok {
			continue
		}
		v, err := c.fieldFrom(ctx, f, raw, loader)
		if err != nil {
			return nil, &ConversionError{Type: m.name, Field: f.Name, Err: err}
		}
		if err := f.Set(entity, v); err != nil {
			return nil, &ConversionError{Type: m.name, Field: f.Name, Err: err}
		}
	}
	return entity, nil
}

func (c *Converter) fieldFrom(ctx context.Context, f *Field, raw any, loader Loader) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch f.Strategy {
	case StrategyPlain:
		h, err := c.handlers.Handler(f.Kind)
		if err != nil {
			return nil, err
		}
		if f.Shape != ShapeScalar {
			if raw, err = decodeText(raw); err != nil {
				return nil, err
			}
		}
		return mapShape(f.Shape, raw, func(item any) (any, error) {
			if item == nil {
				return nil, nil
			}
			return h.FromStore(item)
		})

	case StrategyEmbedded:
		target, err := c.registry.Mapper(f.Kind)
		if err != nil {
			return nil, err
		}
		if raw, err = decodeText(raw); err != nil {
			return nil, err
		}
		return mapShape(f.Shape, raw, func(item any) (any, error) {
			so, err := asStoreObject(item)
			if err != nil {
				return nil, err
			}
			return c.FromStore(ctx, target, so, loader)
		})

	case StrategyReferenced:
		target, err := c.registry.Mapper(f.Kind)
		if err != nil {
			return nil, err
		}
		if loader == nil {
			return nil, errNoLoader
		}
		return c.referenceFrom(ctx, f, target, raw, loader)
	}
	return nil, fmt.Errorf("unknown strategy %s", f.Strategy)
}

func (c *Converter) referenceFrom(ctx context.Context, f *Field, target *Mapper, raw any, loader Loader) (any, error) {
	switch f.Shape {
	case ShapeScalar:
		loaded, err := loader.LoadReferences(ctx, target, []any{raw})
		if err != nil {
			return nil, err
		}
		return loaded[0], nil

	case ShapeList, ShapeSet:
		raw, err := decodeText(raw)
		if err != nil {
			return nil, err
		}
		ids, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("expected list of ids, got %T", raw)
		}
		if len(ids) == 0 {
			return []any{}, nil
		}
		return loader.LoadReferences(ctx, target, ids)

	case ShapeMap:
		raw, err := decodeText(raw)
		if err != nil {
			return nil, err
		}
		idMap, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected map of ids, got %T", raw)
		}
		if len(idMap) == 0 {
			return map[string]any{}, nil
		}
		keys := sortedKeys(idMap)
		ids := make([]any, len(keys))
		for i, k := range keys {
			ids[i] = idMap[k]
		}
		loaded, err := loader.LoadReferences(ctx, target, ids)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(keys))
		for i, k := range keys {
			out[k] = loaded[i]
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown shape %s", f.Shape)
}

// mapShape applies fn to a scalar, to every element of a list or set, or to
// every value of a map. Order and keys are preserved.
func mapShape(shape Shape, v any, fn func(any) (any, error)) (any, error) {
	switch shape {
	case ShapeScalar:
		return fn(v)
	case ShapeList, ShapeSet:
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("expected []any, got %T", v)
		}
		out := make([]any, len(items))
		for i, item := range items {
			r, err := fn(item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = r
		}
		return out, nil
	case ShapeMap:
		items, ok := v.(map[string]any)
		if !ok {
			if so, isSO := v.(*StoreObject); isSO {
				items = so.Map()
			} else {
				return nil, fmt.Errorf("expected map[string]any, got %T", v)
			}
		}
		out := make(map[string]any, len(items))
		for k, item := range items {
			r, err := fn(item)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = r
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown shape %s", shape)
}

// decodeText unpacks containers that a relational backend stored as JSON text.
func decodeText(raw any) (any, error) {
	var text []byte
	switch r := raw.(type) {
	case string:
		text = []byte(r)
	case []byte:
		text = r
	default:
		return raw, nil
	}
	var v any
	if err := json.Unmarshal(text, &v); err != nil {
		return nil, fmt.Errorf("decode stored JSON: %w", err)
	}
	return v, nil
}

func asStoreObject(v any) (*StoreObject, error) {
	switch r := v.(type) {
	case *StoreObject:
		return r, nil
	case map[string]any:
		return StoreObjectFromMap(r), nil
	}
	return nil, fmt.Errorf("expected embedded object, got %T", v)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
