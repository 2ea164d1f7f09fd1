// Package sqlstore persists mapped entities in relational tables through
// database/sql.
//
// Each mapped type is one table with one column per field. Scalars are bound
// as driver values; lists, maps and embedded objects are stored as JSON text.
// The package does not create or migrate tables.
//
// Conditions render to WHERE clauses with either "?" or "$n" placeholders:
//
//	b := sqlstore.New(db, sqlstore.Config{Placeholder: sqlstore.Dollar})
//	s, err := store.New(b, registry, store.DefaultConfig())
package sqlstore
