package parser

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ResolveDisplayName returns the human-readable name of a visual-bound field.
//
// Precedence, later steps winning: raw column name, prefix/suffix from the
// field's number display format, a DisplayName/CustomLabel inside the format
// configuration, then an explicit label for fieldID elsewhere in the chart
// configuration. A result shaped like a synthetic field id (dot and hyphen)
// is discarded for the raw column name.
func ResolveDisplayName(column, fieldID string, field, chart gjson.Result) string {
	name := column

	if format := field.Get("FormatConfiguration"); format.Exists() {
		prefix := firstString(format, "Prefix")
		suffix := firstString(format, "Suffix")
		if prefix != "" || suffix != "" {
			name = strings.TrimSpace(prefix + name + suffix)
		}
		if override := firstString(format, "DisplayName", "CustomLabel"); override != "" {
			name = override
		}
	}

	if label := fieldLabel(chart, fieldID); label != "" {
		name = label
	}

	if looksSynthetic(name) {
		return column
	}
	return name
}

// firstString returns the first non-empty string value found under any of
// keys, searching the tree in document order.
func firstString(root gjson.Result, keys ...string) string {
	var found string
	walk(root, func(n node) bool {
		if found != "" {
			return false
		}
		for _, k := range keys {
			if v, ok := stringValue(n.value.Get(k)); ok && strings.TrimSpace(v) != "" {
				found = v
				return false
			}
		}
		return true
	})
	return found
}

// fieldLabel finds a CustomLabel attached to fieldID in a chart
// configuration: SelectedFieldOptions entries carry FieldId directly, axis
// label options carry it under ApplyTo.
func fieldLabel(chart gjson.Result, fieldID string) string {
	if fieldID == "" || !chart.Exists() {
		return ""
	}
	var label string
	walk(chart, func(n node) bool {
		if label != "" {
			return false
		}
		if n.key == "FieldWells" {
			return false
		}
		id := n.value.Get("FieldId").String()
		if id == "" {
			id = n.value.Get("ApplyTo.FieldId").String()
		}
		if id != fieldID {
			return true
		}
		if v, ok := stringValue(n.value.Get("CustomLabel")); ok && strings.TrimSpace(v) != "" {
			label = v
			return false
		}
		return true
	})
	return label
}

// roleKeys maps field-well keys to role tags.
var roleKeys = map[string]string{
	"Category":       "category",
	"Values":         "value",
	"Colors":         "color",
	"SmallMultiples": "group",
	"Rows":           "row",
	"Columns":        "column",
	"GroupBy":        "dimension",
	"Size":           "size",
	"XAxis":          "x",
	"YAxis":          "y",
	"TargetValues":   "target",
	"Tooltip":        "tooltip",
	"Geospatial":     "dimension",
	"Source":         "dimension",
	"Destination":    "dimension",
	"Weight":         "value",
	"Time":           "dimension",
	"Breakdown":      "dimension",
	"Label":          "dimension",
}

// fieldRole derives the role tag from the nearest field-well key above the
// field, falling back to the wrapper type.
func fieldRole(path []string, wrapper string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if role, ok := roleKeys[path[i]]; ok {
			return role
		}
	}
	switch {
	case strings.Contains(wrapper, "Measure"):
		return "measure"
	case strings.Contains(wrapper, "Dimension"):
		return "dimension"
	}
	return "dimension"
}
