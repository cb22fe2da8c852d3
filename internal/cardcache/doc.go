// Package cardcache implements the offline-first multi-key card store.
//
// The cache maps typed keys over four schemes (name, id, oracle, print) to
// immutable card records and persists the whole index as one JSON document.
// Name lookups fall through to a Resolver on miss; every other scheme is
// served purely from memory. Mutations are write-through except during bulk
// loads, where persistence defers to a single atomic flush so a failed
// ingestion can never leave a partially written document behind.
package cardcache
