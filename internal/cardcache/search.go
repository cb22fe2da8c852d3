package cardcache

import (
	"strings"

	"cardvault/internal/cards"
)

// SearchLocal scans the name-scheme entries for names containing the query,
// case-insensitively. Results are ranked in three tiers — exact match,
// prefix match, then substring match — and within a tier the original
// encounter order of the index is preserved. At most limit records are
// returned.
func (c *Cache) SearchLocal(query string, limit int) []cards.Card {
	folded := cards.Fold(query)
	if folded == "" || limit <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var exact, prefix, substring []cards.Card
	for _, key := range c.nameOrder {
		card, found := c.entries[key]
		if !found {
			continue
		}
		name := key.Value()
		switch {
		case name == folded:
			exact = append(exact, card)
		case strings.HasPrefix(name, folded):
			prefix = append(prefix, card)
		case strings.Contains(name, folded):
			substring = append(substring, card)
		}
	}

	results := make([]cards.Card, 0, len(exact)+len(prefix)+len(substring))
	results = append(results, exact...)
	results = append(results, prefix...)
	results = append(results, substring...)
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
