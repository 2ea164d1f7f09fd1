// Package shard spreads keys over a fixed number of named buckets.
package shard

import (
	"fmt"
	"hash/fnv"
)

// MaxShards is the largest supported shard count.
const MaxShards = 256

// Of returns the shard name for key as two hex digits.
// With numShards=1, every key goes to shard "00".
// With numShards>1, keys are distributed by FNV-1a hash.
func Of(key string, numShards int) string {
	if numShards <= 1 {
		return "00"
	}
	if numShards > MaxShards {
		numShards = MaxShards
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return fmt.Sprintf("%02x", h.Sum32()%uint32(numShards))
}

// Names lists every shard name for numShards in order.
func Names(numShards int) []string {
	if numShards <= 1 {
		return []string{"00"}
	}
	if numShards > MaxShards {
		numShards = MaxShards
	}
	names := make([]string, numShards)
	for i := range names {
		names[i] = fmt.Sprintf("%02x", i)
	}
	return names
}
