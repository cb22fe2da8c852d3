package imagecache

// Size selects a display tier. Every tier except SizeOriginal maps to a
// fixed pixel box the cached file is scaled into.
type Size string

const (
	SizeThumbnail Size = "thumbnail"
	SizeMedium    Size = "medium"
	SizeLarge     Size = "large"
	SizeOriginal  Size = "original"
)

// Dimensions returns the target box for the tier. resize is false for
// SizeOriginal, which stores the downloaded bytes at their native size.
func (s Size) Dimensions() (width, height int, resize bool) {
	switch s {
	case SizeThumbnail:
		return 146, 204, true
	case SizeMedium:
		return 223, 311, true
	case SizeLarge:
		return 488, 680, true
	default:
		return 0, 0, false
	}
}

// Valid reports whether s names a known tier.
func (s Size) Valid() bool {
	switch s {
	case SizeThumbnail, SizeMedium, SizeLarge, SizeOriginal:
		return true
	}
	return false
}

// Sizes lists every tier, smallest first.
func Sizes() []Size {
	return []Size{SizeThumbnail, SizeMedium, SizeLarge, SizeOriginal}
}
