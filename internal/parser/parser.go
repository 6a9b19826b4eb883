// Package parser turns raw platform definition documents into a normalized
// ParsedAssetInfo.
//
// Documents are treated as loosely typed trees read with gjson; any key may
// be missing or carry an unexpected type. Parsing never fails: malformed
// input is logged and produces the empty result, and each capability facet
// is extracted independently so one broken section does not hide the rest.
//
// Which facets run is decided by the kind's asset.Capabilities descriptor:
//
//	info := parser.For(asset.KindDashboard).Parse(raw)
package parser

import (
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/JonMunkholm/assetkeeper/internal/asset"
)

// Parser extracts ParsedAssetInfo for one asset kind.
type Parser struct {
	kind asset.Kind
	caps asset.Capabilities
}

// For returns the parser for kind. Kinds without capabilities get a
// metadata-only parser that always returns the empty result.
func For(kind asset.Kind) Parser {
	return Parser{kind: kind, caps: asset.CapabilitiesFor(kind)}
}

// Kind returns the kind this parser handles.
func (p Parser) Kind() asset.Kind { return p.kind }

// Capabilities returns the descriptor driving extraction.
func (p Parser) Capabilities() asset.Capabilities { return p.caps }

// Parse extracts the semantic model from a raw definition document.
func (p Parser) Parse(raw []byte) ParsedAssetInfo {
	info := Empty()
	if p.caps.None() || len(raw) == 0 {
		return info
	}
	if !gjson.ValidBytes(raw) {
		slog.Warn("definition is not valid JSON, returning empty parse", "kind", p.kind, "bytes", len(raw))
		return info
	}

	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		slog.Warn("definition is not an object, returning empty parse", "kind", p.kind)
		return info
	}

	switch {
	case p.kind.IsExploration():
		p.parseExploration(doc, &info)
	case p.kind == asset.KindDataset:
		p.parseDataset(doc, &info)
	case p.kind == asset.KindDatasource:
		p.parseConnection(doc, &info)
	}
	return info
}

// extract runs one facet routine, containing any panic so the remaining
// facets still run. Routines assign their slot only on success.
func (p Parser) extract(facet string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("definition extractor failed", "kind", p.kind, "facet", facet, "panic", r)
		}
	}()
	fn()
}

// unwrap returns doc[key] when the document is a describe-style wrapper,
// otherwise the document itself.
func unwrap(doc gjson.Result, key string) gjson.Result {
	if inner := doc.Get(key); inner.IsObject() {
		return inner
	}
	return doc
}
