package mapping

import (
	"cmp"
	"fmt"
	"slices"
)

// Strategy selects how a field persists.
type Strategy int

const (
	StrategyPlain Strategy = iota
	StrategyReferenced
	StrategyEmbedded
)

func (s Strategy) String() string {
	switch s {
	case StrategyPlain:
		return "plain"
	case StrategyReferenced:
		return "referenced"
	case StrategyEmbedded:
		return "embedded"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// Shape is the container shape of a field.
type Shape int

const (
	ShapeScalar Shape = iota
	ShapeList
	ShapeSet
	ShapeMap
)

func (s Shape) String() string {
	switch s {
	case ShapeScalar:
		return "scalar"
	case ShapeList:
		return "list"
	case ShapeSet:
		return "set"
	case ShapeMap:
		return "map"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// Field describes one persisted field of a mapped type.
//
// Accessors exchange values in a neutral form: scalars as themselves, lists and
// sets as []any and maps as map[string]any. A nil value stands for an absent
// (null) field value.
type Field struct {
	// Name is the store-side field name.
	Name     string
	Strategy Strategy
	Shape    Shape

	// Kind is the type handler kind of a plain field, or the mapped type name
	// of the values of a referenced or embedded field.
	Kind string

	get func(entity any) (any, error)
	set func(entity any, value any) error
}

// Get reads the field from entity in neutral form.
func (f *Field) Get(entity any) (any, error) {
	return f.get(entity)
}

// Set writes a neutral-form value into entity.
func (f *Field) Set(entity any, value any) error {
	return f.set(entity, value)
}

func (f *Field) String() string {
	return fmt.Sprintf("%s(%s %s %s)", f.Name, f.Strategy, f.Shape, f.Kind)
}

// Plain maps a scalar field converted by the type handler for kind.
func Plain[T, V any](name, kind string, ptr func(*T) *V) *Field {
	return &Field{
		Name:     name,
		Strategy: StrategyPlain,
		Shape:    ShapeScalar,
		Kind:     kind,
		get: func(entity any) (any, error) {
			e, err := entityOf[T](entity)
			if err != nil {
				return nil, err
			}
			return *ptr(e), nil
		},
		set: func(entity any, value any) error {
			e, err := entityOf[T](entity)
			if err != nil {
				return err
			}
			return assign(ptr(e), value)
		},
	}
}

// PlainPtr maps a nullable scalar field. A nil pointer persists as null.
func PlainPtr[T, V any](name, kind string, ptr func(*T) **V) *Field {
	return &Field{
		Name:     name,
		Strategy: StrategyPlain,
		Shape:    ShapeScalar,
		Kind:     kind,
		get: func(entity any) (any, error) {
			e, err := entityOf[T](entity)
			if err != nil {
				return nil, err
			}
			if p := *ptr(e); p != nil {
				return *p, nil
			}
			return nil, nil
		},
		set: func(entity any, value any) error {
			e, err := entityOf[T](entity)
			if err != nil {
				return err
			}
			if value == nil {
				*ptr(e) = nil
				return nil
			}
			v := new(V)
			if err := assign(v, value); err != nil {
				return err
			}
			*ptr(e) = v
			return nil
		},
	}
}

// String maps a string field.
func String[T any](name string, ptr func(*T) *string) *Field {
	return Plain(name, KindString, ptr)
}

// PlainList maps a slice of plain values.
func PlainList[T, V any](name, kind string, ptr func(*T) *[]V) *Field {
	return listField(name, StrategyPlain, ShapeList, kind, ptr, boxValue[V])
}

// PlainSet maps a set of plain values. Elements are stored in ascending order.
func PlainSet[T any, V cmp.Ordered](name, kind string, ptr func(*T) *map[V]struct{}) *Field {
	return &Field{
		Name:     name,
		Strategy: StrategyPlain,
		Shape:    ShapeSet,
		Kind:     kind,
		get: func(entity any) (any, error) {
			e, err := entityOf[T](entity)
			if err != nil {
				return nil, err
			}
			set := *ptr(e)
			if set == nil {
				return nil, nil
			}
			keys := make([]V, 0, len(set))
			for k := range set {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			out := make([]any, len(keys))
			for i, k := range keys {
				out[i] = k
			}
			return out, nil
		},
		set: func(entity any, value any) error {
			e, err := entityOf[T](entity)
			if err != nil {
				return err
			}
			if value == nil {
				*ptr(e) = nil
				return nil
			}
			list, ok := value.([]any)
			if !ok {
				return fmt.Errorf("expected []any for set, got %T", value)
			}
			set := make(map[V]struct{}, len(list))
			for i, item := range list {
				var v V
				if err := assign(&v, item); err != nil {
					return fmt.Errorf("element %d: %w", i, err)
				}
				set[v] = struct{}{}
			}
			*ptr(e) = set
			return nil
		},
	}
}

// PlainMap maps a string-keyed map of plain values.
func PlainMap[T, V any](name, kind string, ptr func(*T) *map[string]V) *Field {
	return mapField(name, StrategyPlain, kind, ptr, boxValue[V])
}

// Referenced maps a pointer to another mapped entity persisted on its own.
func Referenced[T, R any](name, typeName string, ptr func(*T) **R) *Field {
	return objectField(name, StrategyReferenced, typeName, ptr)
}

// ReferencedList maps a slice of referenced entities.
func ReferencedList[T, R any](name, typeName string, ptr func(*T) *[]*R) *Field {
	return listField(name, StrategyReferenced, ShapeList, typeName, ptr, boxPointer[R])
}

// ReferencedMap maps a string-keyed map of referenced entities.
func ReferencedMap[T, R any](name, typeName string, ptr func(*T) *map[string]*R) *Field {
	return mapField(name, StrategyReferenced, typeName, ptr, boxPointer[R])
}

// Embedded maps a pointer to a sub-object stored inline.
func Embedded[T, R any](name, typeName string, ptr func(*T) **R) *Field {
	return objectField(name, StrategyEmbedded, typeName, ptr)
}

// EmbeddedList maps a slice of inline sub-objects.
func EmbeddedList[T, R any](name, typeName string, ptr func(*T) *[]*R) *Field {
	return listField(name, StrategyEmbedded, ShapeList, typeName, ptr, boxPointer[R])
}

// EmbeddedMap maps a string-keyed map of inline sub-objects.
func EmbeddedMap[T, R any](name, typeName string, ptr func(*T) *map[string]*R) *Field {
	return mapField(name, StrategyEmbedded, typeName, ptr, boxPointer[R])
}

func objectField[T, R any](name string, strategy Strategy, typeName string, ptr func(*T) **R) *Field {
	return &Field{
		Name:     name,
		Strategy: strategy,
		Shape:    ShapeScalar,
		Kind:     typeName,
		get: func(entity any) (any, error) {
			e, err := entityOf[T](entity)
			if err != nil {
				return nil, err
			}
			return boxPointer(*ptr(e)), nil
		},
		set: func(entity any, value any) error {
			e, err := entityOf[T](entity)
			if err != nil {
				return err
			}
			return assign(ptr(e), value)
		},
	}
}

func listField[T, E any](name string, strategy Strategy, shape Shape, kind string, ptr func(*T) *[]E, box func(E) any) *Field {
	return &Field{
		Name:     name,
		Strategy: strategy,
		Shape:    shape,
		Kind:     kind,
		get: func(entity any) (any, error) {
			e, err := entityOf[T](entity)
			if err != nil {
				return nil, err
			}
			list := *ptr(e)
			if list == nil {
				return nil, nil
			}
			out := make([]any, len(list))
			for i, item := range list {
				out[i] = box(item)
			}
			return out, nil
		},
		set: func(entity any, value any) error {
			e, err := entityOf[T](entity)
			if err != nil {
				return err
			}
			if value == nil {
				*ptr(e) = nil
				return nil
			}
			items, ok := value.([]any)
			if !ok {
				return fmt.Errorf("expected []any, got %T", value)
			}
			list := make([]E, len(items))
			for i, item := range items {
				if err := assign(&list[i], item); err != nil {
					return fmt.Errorf("element %d: %w", i, err)
				}
			}
			*ptr(e) = list
			return nil
		},
	}
}

func mapField[T, E any](name string, strategy Strategy, kind string, ptr func(*T) *map[string]E, box func(E) any) *Field {
	return &Field{
		Name:     name,
		Strategy: strategy,
		Shape:    ShapeMap,
		Kind:     kind,
		get: func(entity any) (any, error) {
			e, err := entityOf[T](entity)
			if err != nil {
				return nil, err
			}
			m := *ptr(e)
			if m == nil {
				return nil, nil
			}
			out := make(map[string]any, len(m))
			for k, v := range m {
				out[k] = box(v)
			}
			return out, nil
		},
		set: func(entity any, value any) error {
			e, err := entityOf[T](entity)
			if err != nil {
				return err
			}
			if value == nil {
				*ptr(e) = nil
				return nil
			}
			items, ok := value.(map[string]any)
			if !ok {
				return fmt.Errorf("expected map[string]any, got %T", value)
			}
			m := make(map[string]E, len(items))
			for k, item := range items {
				var v E
				if err := assign(&v, item); err != nil {
					return fmt.Errorf("key %q: %w", k, err)
				}
				m[k] = v
			}
			*ptr(e) = m
			return nil
		},
	}
}

func entityOf[T any](entity any) (*T, error) {
	e, ok := entity.(*T)
	if !ok || e == nil {
		return nil, fmt.Errorf("expected non-nil %T, got %T", (*T)(nil), entity)
	}
	return e, nil
}

func assign[V any](dst *V, value any) error {
	if value == nil {
		var zero V
		*dst = zero
		return nil
	}
	v, ok := value.(V)
	if !ok {
		return fmt.Errorf("cannot assign %T to %T", value, *dst)
	}
	*dst = v
	return nil
}

func boxValue[V any](v V) any { return v }

func boxPointer[R any](p *R) any {
	if p == nil {
		return nil
	}
	return p
}
