// Package asset defines the asset kinds managed by the archive, their
// capability descriptors, the export envelope and the object-store path
// conventions shared by every other package.
package asset

import (
	"fmt"
	"sort"
	"strings"
)

// Kind identifies a BI asset type.
type Kind string

const (
	KindDashboard  Kind = "dashboard"
	KindAnalysis   Kind = "analysis"
	KindDataset    Kind = "dataset"
	KindDatasource Kind = "datasource"
	KindFolder     Kind = "folder"
	KindGroup      Kind = "group"
	KindUser       Kind = "user"
)

// kindInfo holds the static per-kind facts.
type kindInfo struct {
	plural     string
	collection bool // stored as one document under assets/organization/
	leaf       bool // describe alone is a complete definition
}

var kinds = map[Kind]kindInfo{
	KindDashboard:  {plural: "dashboards"},
	KindAnalysis:   {plural: "analyses"},
	KindDataset:    {plural: "datasets"},
	KindDatasource: {plural: "datasources", leaf: true},
	KindFolder:     {plural: "folders", collection: true, leaf: true},
	KindGroup:      {plural: "groups", collection: true, leaf: true},
	KindUser:       {plural: "users", collection: true, leaf: true},
}

// ParseKind accepts a singular or plural kind name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, info := range kinds {
		if s == string(k) || s == info.plural {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown asset kind: %q", s)
}

// AllKinds returns every known kind in a stable order.
func AllKinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Plural returns the storage directory name for the kind.
// Unknown kinds get a naive "s" suffix so paths stay well-formed.
func (k Kind) Plural() string {
	if info, ok := kinds[k]; ok {
		return info.plural
	}
	return string(k) + "s"
}

// IsCollection reports whether active copies of this kind live in a single
// organization-level collection document.
func (k Kind) IsCollection() bool {
	return kinds[k].collection
}

// IsLeaf reports whether a describe snapshot is a complete definition for
// this kind.
func (k Kind) IsLeaf() bool {
	return kinds[k].leaf
}

// IsExploration reports whether the kind shares the sheet/visual structure.
func (k Kind) IsExploration() bool {
	return k == KindDashboard || k == KindAnalysis
}

// RequiresDefinition reports whether the kind needs a definition snapshot
// to be considered fully enriched.
func (k Kind) RequiresDefinition() bool {
	return k.IsExploration() || k == KindDataset
}

func (k Kind) String() string { return string(k) }
