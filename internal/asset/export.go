package asset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Snapshot names recorded in an export envelope.
const (
	SnapshotList              = "list"
	SnapshotDescribe          = "describe"
	SnapshotDefinition        = "definition"
	SnapshotPermissions       = "permissions"
	SnapshotTags              = "tags"
	SnapshotRefreshSchedules  = "refreshSchedules"
	SnapshotRefreshProperties = "refreshProperties"
	SnapshotFolderMemberships = "folderMemberships"
	SnapshotMembers           = "members"
)

// EnrichmentStatus classifies how much metadata has been captured for an asset.
type EnrichmentStatus string

const (
	EnrichmentSkeleton       EnrichmentStatus = "skeleton"
	EnrichmentPartial        EnrichmentStatus = "partial"
	EnrichmentEnriched       EnrichmentStatus = "enriched"
	EnrichmentMetadataUpdate EnrichmentStatus = "metadata-update"
)

// Snapshot is one captured API response.
type Snapshot struct {
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// ExportMetadata describes the export itself rather than the asset.
type ExportMetadata struct {
	AssetID          string           `json:"assetId,omitempty"`
	Kind             Kind             `json:"kind,omitempty"`
	ExportTime       time.Time        `json:"exportTime,omitempty"`
	EnrichmentStatus EnrichmentStatus `json:"enrichmentStatus,omitempty"`
}

// ExportData is the envelope of named API-response snapshots for one asset.
// A missing snapshot means the asset has not been enriched with that
// response yet; it never stands for an empty payload.
type ExportData struct {
	Metadata     ExportMetadata       `json:"@metadata"`
	APIResponses map[string]*Snapshot `json:"apiResponses"`
}

// NewExportData returns an empty envelope for the given asset.
func NewExportData(kind Kind, id string) *ExportData {
	return &ExportData{
		Metadata:     ExportMetadata{AssetID: id, Kind: kind},
		APIResponses: make(map[string]*Snapshot),
	}
}

// DecodeExportData parses a stored envelope.
func DecodeExportData(raw []byte) (*ExportData, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("decode export data: empty document")
	}
	var d ExportData
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode export data: %w", err)
	}
	if d.APIResponses == nil {
		d.APIResponses = make(map[string]*Snapshot)
	}
	return &d, nil
}

// Encode serializes the envelope.
func (d *ExportData) Encode() ([]byte, error) {
	return json.Marshal(d)
}

// Snapshot returns the named snapshot. Missing snapshots, nil entries and
// snapshots without a payload all report false.
func (d *ExportData) Snapshot(name string) (*Snapshot, bool) {
	if d == nil || d.APIResponses == nil {
		return nil, false
	}
	s, ok := d.APIResponses[name]
	if !ok || s == nil || len(s.Data) == 0 {
		return nil, false
	}
	return s, true
}

// Has reports whether the named snapshot is present.
func (d *ExportData) Has(name string) bool {
	_, ok := d.Snapshot(name)
	return ok
}

// Data returns the raw payload of the named snapshot, or nil.
func (d *ExportData) Data(name string) json.RawMessage {
	if s, ok := d.Snapshot(name); ok {
		return s.Data
	}
	return nil
}

// Set records a snapshot captured at the given time.
func (d *ExportData) Set(name string, data json.RawMessage, at time.Time) {
	if d.APIResponses == nil {
		d.APIResponses = make(map[string]*Snapshot)
	}
	d.APIResponses[name] = &Snapshot{Timestamp: at, Data: data}
}

// DefinitionDocument returns the definition snapshot, falling back to the
// describe snapshot for kinds whose describe response is their definition.
func (d *ExportData) DefinitionDocument() (json.RawMessage, bool) {
	if s, ok := d.Snapshot(SnapshotDefinition); ok {
		return s.Data, true
	}
	if s, ok := d.Snapshot(SnapshotDescribe); ok {
		return s.Data, true
	}
	return nil, false
}

// Clone returns a deep copy of the envelope.
func (d *ExportData) Clone() *ExportData {
	if d == nil {
		return nil
	}
	out := &ExportData{
		Metadata:     d.Metadata,
		APIResponses: make(map[string]*Snapshot, len(d.APIResponses)),
	}
	for name, s := range d.APIResponses {
		if s == nil {
			continue
		}
		data := make(json.RawMessage, len(s.Data))
		copy(data, s.Data)
		out.APIResponses[name] = &Snapshot{Timestamp: s.Timestamp, Data: data}
	}
	return out
}
