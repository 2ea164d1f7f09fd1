// Package textstore persists mapped entities as JSON documents on disk.
//
// Each table is a directory holding one JSON file per shard; a file maps
// document ids to documents. Conditions render to JSONPath filter
// expressions that are evaluated over the documents of a table:
//
//	$[?(@.age > 30 && @.name =~ "^A")]
//
// A table may carry a JSON schema; documents that violate it are rejected
// before they are written.
package textstore
