package asset

import (
	"fmt"
	"time"
)

// Object-store path roots.
const (
	ActiveRoot   = "assets"
	ArchivedRoot = "archived"
	BackupRoot   = "backups"
	orgDir       = "organization"
)

// ActiveKey returns the active location of an individually stored asset.
// Collection kinds share one document; use CollectionKey for those.
func ActiveKey(kind Kind, id string) string {
	if kind.IsCollection() {
		return CollectionKey(kind)
	}
	return fmt.Sprintf("%s/%s/%s.json", ActiveRoot, kind.Plural(), id)
}

// CollectionKey returns the active collection document for a collection kind.
func CollectionKey(kind Kind) string {
	return fmt.Sprintf("%s/%s/%s.json", ActiveRoot, orgDir, kind.Plural())
}

// ArchivedKey returns the archived mirror of an asset. Archived copies are
// always stored per asset, including collection kinds.
func ArchivedKey(kind Kind, id string) string {
	return fmt.Sprintf("%s/%s/%s.json", ArchivedRoot, kind.Plural(), id)
}

// PreviousArchiveKey returns the numbered archival backup slot n (n >= 1).
func PreviousArchiveKey(kind Kind, id string, n int) string {
	return fmt.Sprintf("%s/%s/%s-previous-archive-%d.json", ArchivedRoot, kind.Plural(), id, n)
}

// BackupKey returns the pre-overwrite backup location for the given time,
// stamped in epoch milliseconds.
func BackupKey(kind Kind, id string, at time.Time) string {
	return fmt.Sprintf("%s/%s/%s-%d.json", BackupRoot, kind.Plural(), id, at.UnixMilli())
}

// ActivePrefix returns the listing prefix for individually stored active assets.
func ActivePrefix(kind Kind) string {
	return fmt.Sprintf("%s/%s/", ActiveRoot, kind.Plural())
}
