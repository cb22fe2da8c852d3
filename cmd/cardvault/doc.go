// Command cardvault is the CLI for the local card collection cache: card
// lookups and searches served cache-first, bulk dataset ingestion, and image
// cache maintenance.
package main
