package cards

import "strings"

// Face describes one face of a multi-faced card. Single-faced cards carry
// their image references directly on the Card.
type Face struct {
	Name       string            `json:"name"`
	ManaCost   string            `json:"mana_cost,omitempty"`
	TypeLine   string            `json:"type_line,omitempty"`
	OracleText string            `json:"oracle_text,omitempty"`
	ImageURIs  map[string]string `json:"image_uris,omitempty"`
}

// Prices captures the optional price quotes attached to a print.
type Prices struct {
	USD     string `json:"usd,omitempty"`
	USDFoil string `json:"usd_foil,omitempty"`
}

// Card is an immutable snapshot of one printed card as returned by the
// remote source. A later fetch of the same key replaces the whole record;
// records are never merged in place.
type Card struct {
	ID              string            `json:"id"`
	OracleID        string            `json:"oracle_id,omitempty"`
	Name            string            `json:"name"`
	SetCode         string            `json:"set,omitempty"`
	CollectorNumber string            `json:"collector_number,omitempty"`
	ManaCost        string            `json:"mana_cost,omitempty"`
	TypeLine        string            `json:"type_line,omitempty"`
	OracleText      string            `json:"oracle_text,omitempty"`
	Colors          []string          `json:"colors,omitempty"`
	CMC             float64           `json:"cmc"`
	Layout          string            `json:"layout,omitempty"`
	Rarity          string            `json:"rarity,omitempty"`
	ImageURIs       map[string]string `json:"image_uris,omitempty"`
	Faces           []Face            `json:"card_faces,omitempty"`
	Prices          Prices            `json:"prices,omitempty"`
}

// ImageURL returns the image reference for the given resolution tier,
// falling back to the front face for cards whose images live per-face.
func (c Card) ImageURL(tier string) string {
	if url := c.ImageURIs[tier]; url != "" {
		return url
	}
	if len(c.Faces) > 0 {
		return c.Faces[0].ImageURIs[tier]
	}
	return ""
}

// HasPrint reports whether the record carries enough data to be indexed
// under the print scheme.
func (c Card) HasPrint() bool {
	return strings.TrimSpace(c.SetCode) != "" && strings.TrimSpace(c.CollectorNumber) != ""
}
