// Package store is the datastore façade over a pluggable [Backend].
//
// A Store saves, finds and deletes mapped entities. Entities are pointers to
// structs whose mapping is registered in a [mapping.Registry]; the store
// converts them to [mapping.StoreObject] records and hands one record per
// entity to the backend.
//
// # Writes
//
// [Store.Save] fans a batch out to one goroutine per entity and fans the
// outcomes back into a single [WriteResult] through a [Counter]:
//
//	res, err := s.Save(ctx, &user, &post)
//	for _, e := range res.Entries {
//	    fmt.Println(e.ID, e.Action)
//	}
//
// The first failure wins. Entities already dispatched are neither cancelled
// nor rolled back; set [Config.DrainOnFailure] to wait for them before Save
// returns.
//
// Referenced fields are saved through the same pipeline before their owner.
// Backend calls are bounded by [Config.MaxConcurrentWrites].
//
// # Reads
//
// [Store.Find] renders a [query.Condition] with the backend's dialect and
// converts each returned record back into an entity, loading referenced
// fields with one additional query per field.
//
// # Observers
//
// Cross-cutting hooks are registered with [Store.Observe] and apply to the
// types selected by their [mapping.Rule]. Entities may also implement
// [BeforeSaver], [AfterSaver], [AfterLoader] and [BeforeDeleter].
//
// # Errors
//
//   - [ErrNotFound] - a required record does not exist
//   - [ErrBackend] - matched by every [BackendError]
//   - [ErrNotPersistable] - the entity's type has no id field
//   - [mapping.ErrConversion] - a field could not be converted
//   - [mapping.ErrResolution] - a referenced save failed
//   - [query.ErrUnsupportedOperator] - the backend cannot express an operator
package store
