// Package props implements the property bag carried by every resource.
//
// A Map is an ordered mapping from case-sensitive string keys to a closed
// set of value types: nil, bool, int64, float64, string, []any, and nested
// *Map. Key casing and insertion order are part of the contract: JSON and
// YAML round trips reproduce keys in the order they were set, which keeps
// snapshots and request bodies deterministic.
package props
