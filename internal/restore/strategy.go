package restore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/JonMunkholm/assetkeeper/internal/asset"
	"github.com/JonMunkholm/assetkeeper/internal/parser"
	"github.com/JonMunkholm/assetkeeper/internal/platform"
)

// Strategy restores one asset kind on the platform.
type Strategy interface {
	Kind() asset.Kind

	// CheckPreconditions returns a *PreconditionError naming the first
	// structurally required component missing from archived. Validation
	// runs it so an incomplete archive fails before anything is deleted.
	CheckPreconditions(id string, archived *asset.ExportData) error

	// Restore creates the asset under id from the archived envelope. It
	// runs CheckPreconditions before any platform call.
	Restore(ctx context.Context, id string, archived *asset.ExportData, info parser.ParsedAssetInfo) (RestoreOutput, error)

	// DeleteExisting removes the live asset. A missing asset is not an error.
	DeleteExisting(ctx context.Context, id string) error

	// ValidateDependencies checks that assets referenced by the archived
	// definition exist on the platform.
	ValidateDependencies(ctx context.Context, id string, archived *asset.ExportData) []ValidationResult

	// Exists reports whether a live asset with id is present.
	Exists(ctx context.Context, id string) (bool, error)
}

// Describer is implemented by strategies that can capture the live asset,
// used to back it up before an overwrite.
type Describer interface {
	Describe(ctx context.Context, id string) (json.RawMessage, error)
}

// Permission is the normalized create-call permission shape.
type Permission struct {
	Principal string   `json:"Principal"`
	Actions   []string `json:"Actions"`
}

// Tag is the normalized create-call tag shape.
type Tag struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

// permissionsFrom reads the permissions snapshot. The result is never nil so
// create payloads always carry a (possibly empty) list.
func permissionsFrom(archived *asset.ExportData) []Permission {
	out := []Permission{}
	doc := snapshotDoc(archived, asset.SnapshotPermissions)
	list := doc.Get("Permissions")
	if doc.IsArray() {
		list = doc
	}
	for _, p := range list.Array() {
		principal := p.Get("Principal").String()
		if principal == "" {
			continue
		}
		var actions []string
		for _, a := range p.Get("Actions").Array() {
			if s := a.String(); s != "" {
				actions = append(actions, s)
			}
		}
		if len(actions) == 0 {
			continue
		}
		out = append(out, Permission{Principal: principal, Actions: actions})
	}
	return out
}

// tagsFrom reads the tags snapshot, accepting both the platform's
// [{Key, Value}] list and a plain object map.
func tagsFrom(archived *asset.ExportData) []Tag {
	var out []Tag
	doc := snapshotDoc(archived, asset.SnapshotTags)
	list := doc.Get("Tags")
	if doc.IsArray() {
		list = doc
	}
	if list.IsObject() {
		list.ForEach(func(k, v gjson.Result) bool {
			out = append(out, Tag{Key: k.String(), Value: v.String()})
			return true
		})
		return out
	}
	for _, t := range list.Array() {
		key := t.Get("Key").String()
		if key == "" {
			continue
		}
		out = append(out, Tag{Key: key, Value: t.Get("Value").String()})
	}
	return out
}

// withAccess adds permissions and tags to a create payload. Tags are left
// out entirely when empty; the platform rejects an empty tag list.
func withAccess(p platform.Payload, archived *asset.ExportData) platform.Payload {
	p["Permissions"] = permissionsFrom(archived)
	if tags := tagsFrom(archived); len(tags) > 0 {
		p["Tags"] = tags
	}
	return p
}

// snapshotDoc parses a snapshot payload, returning an empty result when it
// is absent or malformed.
func snapshotDoc(archived *asset.ExportData, name string) gjson.Result {
	raw := archived.Data(name)
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return gjson.Result{}
	}
	return gjson.ParseBytes(raw)
}

// definitionDoc returns the definition document (describe for leaf kinds)
// unwrapped from its describe-style wrapper.
func definitionDoc(archived *asset.ExportData, wrapper string) gjson.Result {
	raw, ok := archived.DefinitionDocument()
	if !ok || !gjson.ValidBytes(raw) {
		return gjson.Result{}
	}
	doc := gjson.ParseBytes(raw)
	if wrapper != "" {
		if inner := doc.Get(wrapper); inner.IsObject() {
			return inner
		}
	}
	return doc
}

// describeDoc returns the unwrapped describe snapshot.
func describeDoc(archived *asset.ExportData, wrapper string) gjson.Result {
	doc := snapshotDoc(archived, asset.SnapshotDescribe)
	if inner := doc.Get(wrapper); inner.IsObject() {
		return inner
	}
	return doc
}

// copyRaw sets p[key] to the raw JSON found at doc[key] when present.
func copyRaw(p platform.Payload, doc gjson.Result, keys ...string) {
	for _, key := range keys {
		v := doc.Get(key)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		p[key] = json.RawMessage(v.Raw)
	}
}

// firstNonEmpty returns the first non-blank value.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// deleteIgnoringNotFound runs del and swallows platform not-found errors.
func deleteIgnoringNotFound(ctx context.Context, kind asset.Kind, id string, del func(context.Context, string) error) error {
	err := del(ctx, id)
	if err == nil {
		return nil
	}
	if platform.IsNotFound(err) {
		slog.Debug("delete skipped, asset not found", "kind", kind, "asset_id", id)
		return nil
	}
	return fmt.Errorf("delete %s %s: %w", kind, id, err)
}

// existsVia runs describe and maps not-found to false.
func existsVia(ctx context.Context, id string, describe func(context.Context, string) (json.RawMessage, error)) (bool, error) {
	_, err := describe(ctx, id)
	if err == nil {
		return true, nil
	}
	if platform.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// checkReferences describes every referenced id and reports missing ones as
// warnings. Dependency problems never block a restore on their own.
func checkReferences(ctx context.Context, refKind asset.Kind, ids []string, describe func(context.Context, string) (json.RawMessage, error)) []ValidationResult {
	var out []ValidationResult
	for _, id := range ids {
		_, err := describe(ctx, id)
		switch {
		case err == nil:
			out = append(out, ValidationResult{
				Validator: ValidatorDependencies,
				Passed:    true,
				Message:   fmt.Sprintf("referenced %s %s exists", refKind, id),
				Severity:  SeverityInfo,
				Details:   map[string]any{"kind": refKind, "id": id},
			})
		case platform.IsNotFound(err):
			out = append(out, ValidationResult{
				Validator: ValidatorDependencies,
				Passed:    false,
				Message:   fmt.Sprintf("referenced %s %s does not exist", refKind, id),
				Severity:  SeverityWarning,
				Details:   map[string]any{"kind": refKind, "id": id},
			})
		default:
			out = append(out, ValidationResult{
				Validator: ValidatorDependencies,
				Passed:    false,
				Message:   fmt.Sprintf("could not verify %s %s: %v", refKind, id, err),
				Severity:  SeverityWarning,
				Details:   map[string]any{"kind": refKind, "id": id},
			})
		}
	}
	return out
}

func noDependencies(kind asset.Kind) []ValidationResult {
	return []ValidationResult{{
		Validator: ValidatorDependencies,
		Passed:    true,
		Message:   fmt.Sprintf("%s has no dependencies", kind),
		Severity:  SeverityInfo,
	}}
}

// unsupportedStrategy makes "not supported" an observable outcome for kinds
// without a restore implementation.
type unsupportedStrategy struct {
	kind asset.Kind
}

// Unsupported returns the strategy used for kinds that cannot be restored.
func Unsupported(kind asset.Kind) Strategy {
	return unsupportedStrategy{kind: kind}
}

func (s unsupportedStrategy) Kind() asset.Kind { return s.kind }

// CheckPreconditions passes; Restore reports the unsupported kind itself.
func (s unsupportedStrategy) CheckPreconditions(string, *asset.ExportData) error { return nil }

func (s unsupportedStrategy) Restore(context.Context, string, *asset.ExportData, parser.ParsedAssetInfo) (RestoreOutput, error) {
	return RestoreOutput{}, fmt.Errorf("restore not implemented for kind %s", s.kind)
}

// DeleteExisting is a no-op: nothing is ever created for unsupported kinds.
func (s unsupportedStrategy) DeleteExisting(context.Context, string) error { return nil }

func (s unsupportedStrategy) ValidateDependencies(context.Context, string, *asset.ExportData) []ValidationResult {
	return []ValidationResult{{
		Validator: ValidatorDependencies,
		Passed:    false,
		Message:   fmt.Sprintf("dependency validation is not available for kind %s", s.kind),
		Severity:  SeverityWarning,
	}}
}

func (s unsupportedStrategy) Exists(context.Context, string) (bool, error) { return false, nil }
