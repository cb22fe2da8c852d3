// Package library composes the remote client, card cache, image cache, and
// bulk ingestor into one service the CLI talks to. It owns the adapter that
// lets the card cache resolve name misses over the network and the mapping
// from display tiers to the remote source's image variants.
package library
