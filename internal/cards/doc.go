// Package cards defines the card record model, the typed lookup keys used by
// the cache indexes, and the error taxonomy shared by the card-data layer.
//
// Records are semantically immutable: once decoded from a remote response or
// a bulk-dataset entry they are never mutated, only replaced wholesale by a
// later fetch of the same key.
package cards
