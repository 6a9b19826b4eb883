package parser

import "strings"

// invalidNames are sentinel names some exports write for unnamed columns.
var invalidNames = map[string]bool{
	"":          true,
	"undefined": true,
	"null":      true,
}

// validFieldName reports whether name is usable as a field name.
func validFieldName(name string) bool {
	return !invalidNames[strings.TrimSpace(name)]
}

type fieldKey struct {
	id      string
	dataset string
}

// DedupeFields keeps the first occurrence of each (FieldID, DatasetIdentifier)
// pair and drops fields whose name is empty, "undefined" or "null".
// Order is preserved.
func DedupeFields(fields []Field) []Field {
	out := make([]Field, 0, len(fields))
	seen := make(map[fieldKey]struct{}, len(fields))
	for _, f := range fields {
		if !validFieldName(f.Name) {
			continue
		}
		k := fieldKey{id: f.FieldID, dataset: f.DatasetIdentifier}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, f)
	}
	return out
}

// wrapperTypes maps visual field wrappers to a column data type.
var wrapperTypes = map[string]string{
	"NumericalDimensionField":   "NUMERIC",
	"NumericalMeasureField":     "NUMERIC",
	"CategoricalDimensionField": "STRING",
	"CategoricalMeasureField":   "STRING",
	"DateDimensionField":        "DATETIME",
	"DateMeasureField":          "DATETIME",
}

// looksSynthetic reports whether s has the shape of a platform-generated
// field id, which contains both a dot and a hyphen.
func looksSynthetic(s string) bool {
	return strings.Contains(s, ".") && strings.Contains(s, "-")
}
