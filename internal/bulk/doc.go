// Package bulk implements the dataset ingestion pipeline.
//
// A run advances through fetching the bulk manifest, streaming the chosen
// dataset to a uuid-named staging file, and parsing every record into the
// card cache. Parsing upserts with persistence deferred, so the on-disk
// cache document changes only in the single flush at the end; a failure at
// any stage leaves it byte-identical to its pre-run state. Gzip payloads
// are decompressed transparently.
package bulk
