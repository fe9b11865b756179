package core

// This file centralizes constants related to the segment file format and
// the layout of a segment directory.

// --- Magic Numbers ---
const (
	// SegmentMagicNumber identifies a segment file.
	SegmentMagicNumber uint32 = 0x4B565347 // "KVSG"
)

// --- File Names & Prefixes ---
const (
	// SegmentFilePrefix starts every segment name, e.g. segment_1700000000000000.
	SegmentFilePrefix = "segment_"
	// CompactedSuffix marks a segment produced by compaction.
	CompactedSuffix = "_compacted"
	// TempFileSuffix is appended while a segment is being written.
	TempFileSuffix = ".tmp"
	// LockFileName is the advisory lock held by the process owning a directory.
	LockFileName = "LOCK"
)

// --- Protocol & Format Versions ---
const (
	// FormatVersion is the current version of the segment file format.
	FormatVersion uint8 = 1
)
