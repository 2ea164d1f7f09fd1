package mapping

import (
	"fmt"
	"reflect"
)

// Relationship is a field of one mapped type that holds values of another.
type Relationship struct {
	// OwnerType is the type declaring the field (e.g. "post").
	OwnerType string

	// Field is the store name of the field (e.g. "author").
	Field string

	// TargetType is the mapped type of the field's values (e.g. "user").
	TargetType string

	Strategy Strategy
	Shape    Shape
}

// Registry holds all mapped types and the relationships between them.
// Register every type before the registry is shared with a store.
type Registry struct {
	mappers       map[string]*Mapper
	byGoType      map[reflect.Type]*Mapper
	byTable       map[string]*Mapper
	order         []*Mapper
	relationships []Relationship
	byOwner       map[string][]Relationship
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		mappers:       make(map[string]*Mapper),
		byGoType:      make(map[reflect.Type]*Mapper),
		byTable:       make(map[string]*Mapper),
		relationships: []Relationship{},
		byOwner:       make(map[string][]Relationship),
	}
}

// Register adds a mapper and records the relationships of its referenced
// and embedded fields.
func (r *Registry) Register(m *Mapper) error {
	if _, ok := r.mappers[m.name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateType, m.name)
	}
	r.mappers[m.name] = m
	r.byGoType[m.goType] = m
	if m.id != nil {
		r.byTable[m.table] = m
	}
	r.order = append(r.order, m)

	for _, f := range m.fields {
		if f.Strategy == StrategyPlain {
			continue
		}
		rel := Relationship{
			OwnerType:  m.name,
			Field:      f.Name,
			TargetType: f.Kind,
			Strategy:   f.Strategy,
			Shape:      f.Shape,
		}
		r.relationships = append(r.relationships, rel)
		r.byOwner[m.name] = append(r.byOwner[m.name], rel)
	}
	return nil
}

// MustRegister registers mappers and panics on error.
func (r *Registry) MustRegister(mappers ...*Mapper) {
	for _, m := range mappers {
		if err := r.Register(m); err != nil {
			panic(err)
		}
	}
}

// Mapper returns the mapper registered under a type name.
func (r *Registry) Mapper(typeName string) (*Mapper, error) {
	m, ok := r.mappers[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeName)
	}
	return m, nil
}

// MapperOf returns the mapper of an entity.
func (r *Registry) MapperOf(entity any) (*Mapper, error) {
	if entity == nil {
		return nil, fmt.Errorf("%w: nil entity", ErrUnknownType)
	}
	m, ok := r.byGoType[reflect.TypeOf(entity)]
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, entity)
	}
	return m, nil
}

// MapperForTable returns the persisted type stored in a table.
func (r *Registry) MapperForTable(table string) (*Mapper, bool) {
	m, ok := r.byTable[table]
	return m, ok
}

// Mappers returns all mappers in registration order.
func (r *Registry) Mappers() []*Mapper {
	return append([]*Mapper(nil), r.order...)
}

// RelationshipsOf returns the referenced and embedded fields of a type.
func (r *Registry) RelationshipsOf(ownerType string) []Relationship {
	return r.byOwner[ownerType]
}

// AllRelationships returns all registered relationships.
func (r *Registry) AllRelationships() []Relationship {
	return r.relationships
}

// HasRelationships returns true if the type has any referenced or embedded field.
func (r *Registry) HasRelationships(ownerType string) bool {
	return len(r.byOwner[ownerType]) > 0
}

// Validate checks that every relationship targets a registered type and that
// referenced targets can be persisted on their own.
func (r *Registry) Validate() error {
	for _, rel := range r.relationships {
		target, ok := r.mappers[rel.TargetType]
		if !ok {
			return fmt.Errorf("%w: %s.%s targets unregistered type %s", ErrInvalidMapping, rel.OwnerType, rel.Field, rel.TargetType)
		}
		if rel.Strategy == StrategyReferenced && target.id == nil {
			return fmt.Errorf("%w: %s.%s references %s which has no id field", ErrInvalidMapping, rel.OwnerType, rel.Field, rel.TargetType)
		}
	}
	return nil
}
