// Package imagecache stores card images on disk under names derived from
// the source URL, so the same url and display tier always map to the same
// file. Downloads of the same pair are coalesced: concurrent requesters
// share one transfer and each completion callback fires exactly once. The
// package also renders placeholder images for cards whose scans are not
// available, preloads image sets sequentially with a polite pause, and
// evicts files by age.
package imagecache
