// Package mapping translates mapped entities to and from their store form.
//
// Every persisted Go type is described once by a [Mapper]: its type name,
// table, id field and an ordered list of [Field] descriptors. A field declares
// how it persists:
//
//   - Plain fields are converted by a [TypeHandler] selected by kind ("string", "time", "decimal", ...).
//   - Referenced fields hold other mapped entities that are persisted on their own;
//     only their identifiers are stored in the owner.
//   - Embedded fields are converted recursively into a nested [StoreObject].
//
// Fields may be scalars, lists, sets or string-keyed maps. Field accessors are
// plain closures built with the generic constructors ([String], [Plain],
// [ReferencedList], [EmbeddedMap], ...), so conversion is a table walk rather than
// struct-tag reflection.
//
// Referenced children are persisted asynchronously while the owner is converted.
// The [Converter] writes a [Token] in their place and registers the pending save
// on a [Bridge]; [Bridge.Resolve] later waits for the saves and substitutes the
// assigned identifiers before the record is handed to a backend.
package mapping
