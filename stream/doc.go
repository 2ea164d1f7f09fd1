// Package stream turns DynamoDB Streams records of mapped tables into store
// notifications.
//
// Records written by the dynamo backend carry a TTL attribute once they are
// deleted. The handler reports:
//
//   - INSERT, and MODIFY of a live record, as store.EventChanged
//   - MODIFY that sets the TTL, as store.EventRemoved
//   - REMOVE of a record that was never soft deleted, as store.EventRemoved
//
// Records of tables with no registered type are skipped.
package stream
