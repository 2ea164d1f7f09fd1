// Package query provides the backend-neutral condition tree used to select
// mapped records.
//
// A condition is either a leaf [FieldCondition] (field, operator, values) or a
// [Container] joining child conditions with AND or OR:
//
//	cond := query.And(
//	    query.Eq("status", "active"),
//	    query.Or(query.Gt("age", 21), query.In("role", "admin", "owner")),
//	)
//
// Conditions are pure data. A backend turns them into its native syntax by
// passing them to [Render] together with its [Dialect]. A dialect must either map
// an [Operator] to a fragment or reject it with [ErrUnsupportedOperator]; it never
// substitutes a different operator.
package query
