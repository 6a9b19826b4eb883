package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func TestResolveDisplayName(t *testing.T) {
	tests := []struct {
		name    string
		column  string
		fieldID string
		field   string
		chart   string
		want    string
	}{
		{
			name:   "raw column",
			column: "revenue", fieldID: "f1",
			field: `{}`, chart: `{}`,
			want: "revenue",
		},
		{
			name:   "prefix and suffix",
			column: "revenue", fieldID: "f1",
			field: `{"FormatConfiguration": {"NumberDisplayFormatConfiguration": {"Prefix": "$", "Suffix": " USD"}}}`,
			chart: `{}`,
			want:  "$revenue USD",
		},
		{
			name:   "format override beats decoration",
			column: "revenue", fieldID: "f1",
			field: `{"FormatConfiguration": {"Prefix": "$", "DisplayName": "Revenue"}}`,
			chart: `{}`,
			want:  "Revenue",
		},
		{
			name:   "chart label wins",
			column: "revenue", fieldID: "f1",
			field: `{"FormatConfiguration": {"DisplayName": "Revenue"}}`,
			chart: `{"FieldOptions": {"SelectedFieldOptions": [{"FieldId": "f1", "CustomLabel": "Total Revenue"}]}}`,
			want:  "Total Revenue",
		},
		{
			name:   "label for another field ignored",
			column: "revenue", fieldID: "f1",
			field: `{}`,
			chart: `{"FieldOptions": {"SelectedFieldOptions": [{"FieldId": "f2", "CustomLabel": "Other"}]}}`,
			want:  "revenue",
		},
		{
			name:   "synthetic label discarded",
			column: "revenue", fieldID: "f1",
			field: `{}`,
			chart: `{"FieldOptions": {"SelectedFieldOptions": [{"FieldId": "f1", "CustomLabel": "a1b2.revenue-3.1700000000"}]}}`,
			want:  "revenue",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveDisplayName(tt.column, tt.fieldID, gjson.Parse(tt.field), gjson.Parse(tt.chart))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFieldRole(t *testing.T) {
	tests := []struct {
		path    []string
		wrapper string
		want    string
	}{
		{[]string{"BarChartAggregatedFieldWells", "Category", "CategoricalDimensionField"}, "CategoricalDimensionField", "category"},
		{[]string{"PivotTableAggregatedFieldWells", "Rows", "DateDimensionField"}, "DateDimensionField", "row"},
		{[]string{"Unknown", "NumericalMeasureField"}, "NumericalMeasureField", "measure"},
		{nil, "CategoricalDimensionField", "dimension"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, fieldRole(tt.path, tt.wrapper), "%v", tt.path)
	}
}

func TestDedupeFields(t *testing.T) {
	in := []Field{
		{FieldID: "a", Name: "a", DatasetIdentifier: "x", DataType: "STRING"},
		{FieldID: "a", Name: "a", DatasetIdentifier: "x", DataType: "NUMERIC"},
		{FieldID: "a", Name: "a", DatasetIdentifier: "y"},
		{FieldID: "n", Name: "null"},
		{FieldID: "u", Name: " undefined "},
		{FieldID: "e", Name: ""},
		{FieldID: "b", Name: "b"},
	}
	out := DedupeFields(in)

	assert.Len(t, out, 3)
	assert.Equal(t, "STRING", out[0].DataType, "first occurrence wins")
	assert.Equal(t, "y", out[1].DatasetIdentifier)
	assert.Equal(t, "b", out[2].FieldID)
}

func TestWalkDepthAndOrder(t *testing.T) {
	doc := gjson.Parse(`{"a": {"k": 1}, "b": [{"k": 2}, {"k": 3}], "c": {"d": {"k": 4}}}`)
	var keys []string
	walk(doc, func(n node) bool {
		if n.value.Get("k").Exists() {
			keys = append(keys, n.key)
		}
		return true
	})
	assert.Equal(t, []string{"a", "b", "b", "d"}, keys)
}
