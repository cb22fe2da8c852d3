package imagecache

import (
	"bytes"
	"image/color"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"cardvault/internal/cards"
	"cardvault/internal/fileutil"
	"cardvault/internal/logging"
)

// placeholderBackground matches the card-back blue used across the UI.
const placeholderBackground = "#2C3E50"

// Placeholder returns the path to a locally rendered stand-in image for the
// label at the requested tier, generating and caching it on first use. The
// label, usually a card name, is drawn centered on a bordered card-shaped
// rectangle.
func (c *Cache) Placeholder(label string, size Size) (string, error) {
	path := c.pathFor("placeholder:"+label, size)
	if fileutil.Exists(path) {
		return path, nil
	}

	width, height, resize := size.Dimensions()
	if !resize {
		// Original tier has no fixed box; render at the large tier's size.
		width, height, _ = SizeLarge.Dimensions()
	}

	dc := gg.NewContext(width, height)
	dc.SetHexColor(placeholderBackground)
	dc.Clear()

	dc.SetColor(color.White)
	dc.SetLineWidth(2)
	dc.DrawRectangle(1, 1, float64(width-2), float64(height-2))
	dc.Stroke()

	dc.SetFontFace(basicfont.Face7x13)
	dc.DrawStringWrapped(label,
		float64(width)/2, float64(height)/2,
		0.5, 0.5,
		float64(width-16), 1.4, gg.AlignCenter)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return "", cards.Wrap(cards.ErrCachePersistence, "imagecache", "placeholder", "encode png", err)
	}
	if err := writeAtomic(path, buf.Bytes()); err != nil {
		return "", err
	}

	c.logger.Debug("rendered placeholder",
		logging.String("label", label),
		logging.String("size", string(size)))
	return path, nil
}
