// Package scryfall wraps the Scryfall REST API behind a rate-limited client.
//
// The client enforces a minimum pause between consecutive requests across
// every endpoint it serves and maps HTTP failures onto the shared card-data
// error taxonomy: a 404 becomes a recoverable not-found, anything else that
// goes wrong on the wire is tagged transient. No retries happen here; the
// cache layer above is expected to mask transient unavailability.
package scryfall
