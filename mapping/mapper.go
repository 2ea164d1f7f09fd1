package mapping

import (
	"fmt"
	"reflect"
)

// Definition describes a mapped type.
type Definition struct {
	// Name is the type identifier (e.g. "user").
	Name string

	// Table is the backend table or collection. Default: Name.
	Table string

	// ID is the identifier field. It must be a plain scalar string field.
	// Types that are only ever embedded may leave it nil.
	ID *Field

	// Fields are the remaining persisted fields, in store order.
	Fields []*Field

	// Supertypes lists every type name this type is an instance of.
	Supertypes []string

	// Annotations are marker names attached to the type.
	Annotations []string
}

// Mapper is the static mapping table of one type.
type Mapper struct {
	name        string
	table       string
	id          *Field
	fields      []*Field
	byName      map[string]*Field
	supertypes  []string
	annotations map[string]struct{}
	goType      reflect.Type
	newEntity   func() any
}

// New builds the mapper for *T.
func New[T any](def Definition) (*Mapper, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("%w: empty type name", ErrInvalidMapping)
	}
	m := &Mapper{
		name:        def.Name,
		table:       def.Table,
		id:          def.ID,
		byName:      make(map[string]*Field, len(def.Fields)+1),
		supertypes:  append([]string(nil), def.Supertypes...),
		annotations: make(map[string]struct{}, len(def.Annotations)),
		goType:      reflect.TypeOf((*T)(nil)),
		newEntity:   func() any { return new(T) },
	}
	if m.table == "" {
		m.table = def.Name
	}

	fields := def.Fields
	if def.ID != nil {
		if def.ID.Strategy != StrategyPlain || def.ID.Shape != ShapeScalar || def.ID.Kind != KindString {
			return nil, fmt.Errorf("%w: %s: id field %s must be a plain string", ErrInvalidMapping, def.Name, def.ID.Name)
		}
		fields = append([]*Field{def.ID}, def.Fields...)
	}
	for _, f := range fields {
		if f == nil || f.Name == "" {
			return nil, fmt.Errorf("%w: %s: field without name", ErrInvalidMapping, def.Name)
		}
		if _, dup := m.byName[f.Name]; dup {
			return nil, fmt.Errorf("%w: %s: duplicate field %s", ErrInvalidMapping, def.Name, f.Name)
		}
		m.byName[f.Name] = f
		m.fields = append(m.fields, f)
	}
	for _, a := range def.Annotations {
		m.annotations[a] = struct{}{}
	}
	return m, nil
}

// MustNew is like New but panics on an invalid definition.
func MustNew[T any](def Definition) *Mapper {
	m, err := New[T](def)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Mapper) Name() string  { return m.name }
func (m *Mapper) Table() string { return m.table }

// IDField returns the identifier field, or nil for embedded-only types.
func (m *Mapper) IDField() *Field { return m.id }

// Fields returns all fields, the id field first.
func (m *Mapper) Fields() []*Field {
	return append([]*Field(nil), m.fields...)
}

// Field looks up a field by store name.
func (m *Mapper) Field(name string) (*Field, bool) {
	f, ok := m.byName[name]
	return f, ok
}

// Supertypes returns the declared supertype names.
func (m *Mapper) Supertypes() []string {
	return append([]string(nil), m.supertypes...)
}

// Implements reports whether the type is typeName or declares it as a supertype.
func (m *Mapper) Implements(typeName string) bool {
	if m.name == typeName {
		return true
	}
	for _, s := range m.supertypes {
		if s == typeName {
			return true
		}
	}
	return false
}

// HasAnnotation reports whether the type carries the marker annotation.
func (m *Mapper) HasAnnotation(annotation string) bool {
	_, ok := m.annotations[annotation]
	return ok
}

// NewEntity returns a new zero *T.
func (m *Mapper) NewEntity() any { return m.newEntity() }

// Owns reports whether entity is a *T of this mapper.
func (m *Mapper) Owns(entity any) bool {
	return entity != nil && reflect.TypeOf(entity) == m.goType
}

// ID returns the entity's identifier; empty means not yet assigned.
func (m *Mapper) ID(entity any) (string, error) {
	if m.id == nil {
		return "", fmt.Errorf("%w: %s has no id field", ErrInvalidMapping, m.name)
	}
	v, err := m.id.Get(entity)
	if err != nil {
		return "", err
	}
	id, _ := v.(string)
	return id, nil
}

// SetID assigns the entity's identifier.
func (m *Mapper) SetID(entity any, id string) error {
	if m.id == nil {
		return fmt.Errorf("%w: %s has no id field", ErrInvalidMapping, m.name)
	}
	return m.id.Set(entity, id)
}
