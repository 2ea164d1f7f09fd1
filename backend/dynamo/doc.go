// Package dynamo is the DynamoDB backend of the store.
//
// Each mapped type is a table keyed by its id attribute. Inserts are
// conditional puts with a generated UUID; updates are SET expressions over
// every mapped attribute. Records carry managed version, created_at and
// updated_at attributes.
//
// Deletes are soft: the TTL attribute is set to the current time and
// DynamoDB's TTL sweeper removes the item later. Until then the item is
// invisible to queries, which always AND a TTL filter onto the rendered
// condition. ENDS has no DynamoDB equivalent and is rejected.
package dynamo
