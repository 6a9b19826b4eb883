package metadata

import "github.com/JonMunkholm/assetkeeper/internal/asset"

// ClassifyEnrichment reports how much of an asset has been captured.
//
// An envelope holding only permission or tag snapshots is a metadata
// update; it never downgrades a previously enriched asset. Otherwise a
// definition (a describe for leaf kinds) means enriched, a describe or list
// alone for kinds that need a definition means partial, and anything else is
// a skeleton.
func ClassifyEnrichment(kind asset.Kind, data *asset.ExportData, previous asset.EnrichmentStatus) asset.EnrichmentStatus {
	if data == nil {
		return asset.EnrichmentSkeleton
	}
	hasDescribe := data.Has(asset.SnapshotDescribe)
	hasDefinition := data.Has(asset.SnapshotDefinition)
	hasList := data.Has(asset.SnapshotList)
	hasAccess := data.Has(asset.SnapshotPermissions) || data.Has(asset.SnapshotTags)

	if hasAccess && !hasDescribe && !hasDefinition {
		if previous == asset.EnrichmentEnriched {
			return asset.EnrichmentEnriched
		}
		return asset.EnrichmentMetadataUpdate
	}

	if hasDefinition {
		return asset.EnrichmentEnriched
	}
	if !kind.RequiresDefinition() && hasDescribe {
		return asset.EnrichmentEnriched
	}
	if kind.RequiresDefinition() && (hasDescribe || hasList) {
		return asset.EnrichmentPartial
	}
	return asset.EnrichmentSkeleton
}

// NeedsRefetch reports whether an asset with the given status should be
// fetched again to complete its export.
func NeedsRefetch(status asset.EnrichmentStatus) bool {
	return status != asset.EnrichmentEnriched
}
