package ingest

import "github.com/joseph-ayodele/batch-ocr/internal/entity"

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned    uint32 // regular files seen
	Matched    uint32 // files with an accepted extension
	Hidden     uint32 // dot-files skipped
	Duplicates uint32 // files whose identifier was already taken
}

// DiscoveryResult is the ordered task list plus scan statistics.
type DiscoveryResult struct {
	Tasks []entity.ImageTask
	Stats DirStats
}
