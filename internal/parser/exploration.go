package parser

import (
	"strings"

	"github.com/tidwall/gjson"
)

// parseExploration handles dashboards and analyses. The document may be a
// describe-definition response or the bare definition.
func (p Parser) parseExploration(doc gjson.Result, info *ParsedAssetInfo) {
	def := unwrap(doc, "Definition")

	if p.caps.Datasets {
		p.extract("datasets", func() { info.Datasets = explorationDatasets(def) })
	}
	if p.caps.CalculatedFields {
		p.extract("calculatedFields", func() { info.CalculatedFields = explorationCalculatedFields(def) })
	}
	if p.caps.Parameters {
		p.extract("parameters", func() { info.Parameters = explorationParameters(def) })
	}
	if p.caps.Filters {
		p.extract("filters", func() { info.Filters = explorationFilters(def) })
	}
	if p.caps.Sheets {
		p.extract("sheets", func() { info.Sheets = explorationSheets(def) })
	}
	if p.caps.Visuals {
		p.extract("visuals", func() {
			visuals, mappings := explorationVisuals(def)
			info.Visuals = visuals
			info.VisualFieldMappings = mappings
		})
	}
	if p.caps.Fields {
		p.extract("fields", func() { info.Fields = explorationFields(def) })
	}
	if p.caps.Lineage {
		p.extract("lineage", func() { info.Lineage = explorationLineage(doc, def) })
	}
}

func explorationDatasets(def gjson.Result) []DatasetRef {
	out := []DatasetRef{}
	seen := make(map[string]bool)
	for _, decl := range def.Get("DataSetIdentifierDeclarations").Array() {
		identifier, ok := stringValue(decl.Get("Identifier"))
		if !ok || identifier == "" || seen[identifier] {
			continue
		}
		seen[identifier] = true
		arn := decl.Get("DataSetArn").String()
		out = append(out, DatasetRef{
			Identifier: identifier,
			Name:       identifier,
			Arn:        arn,
			DatasetID:  arnSuffix(arn),
		})
	}
	return out
}

func explorationCalculatedFields(def gjson.Result) []CalculatedField {
	out := []CalculatedField{}
	for _, cf := range def.Get("CalculatedFields").Array() {
		name, ok := stringValue(cf.Get("Name"))
		if !ok || !validFieldName(name) {
			continue
		}
		out = append(out, CalculatedField{
			Name:              name,
			Expression:        cf.Get("Expression").String(),
			DatasetIdentifier: cf.Get("DataSetIdentifier").String(),
		})
	}
	return out
}

func explorationParameters(def gjson.Result) []Parameter {
	out := []Parameter{}
	for _, decl := range def.Get("ParameterDeclarations").Array() {
		key, body := onlyKey(decl)
		name, ok := stringValue(body.Get("Name"))
		if !ok || name == "" {
			continue
		}
		out = append(out, Parameter{
			Name:          name,
			Type:          strings.TrimSuffix(key, "ParameterDeclaration"),
			ValueType:     body.Get("ParameterValueType").String(),
			DefaultValues: staticStrings(body),
		})
	}
	return out
}

func explorationFilters(def gjson.Result) []Filter {
	out := []Filter{}
	for _, group := range def.Get("FilterGroups").Array() {
		groupID := group.Get("FilterGroupId").String()
		scope, sheets := filterScope(group.Get("ScopeConfiguration"))
		for _, f := range group.Get("Filters").Array() {
			typ, body := onlyKey(f)
			if typ == "" {
				continue
			}
			out = append(out, Filter{
				FilterGroupID:     groupID,
				FilterID:          body.Get("FilterId").String(),
				Type:              strings.TrimSuffix(typ, "Filter"),
				ColumnName:        body.Get("Column.ColumnName").String(),
				DatasetIdentifier: body.Get("Column.DataSetIdentifier").String(),
				Scope:             scope,
				SheetIDs:          sheets,
			})
		}
	}
	return out
}

func filterScope(scope gjson.Result) (string, []string) {
	if scope.Get("AllSheets").Exists() {
		return "all-sheets", nil
	}
	var sheets []string
	for _, cfg := range scope.Get("SelectedSheets.SheetVisualScopingConfigurations").Array() {
		if id := cfg.Get("SheetId").String(); id != "" {
			sheets = append(sheets, id)
		}
	}
	if len(sheets) == 0 {
		return "", nil
	}
	return "selected-sheets", sheets
}

func explorationSheets(def gjson.Result) []Sheet {
	out := []Sheet{}
	for _, s := range def.Get("Sheets").Array() {
		id := s.Get("SheetId").String()
		if id == "" {
			continue
		}
		out = append(out, Sheet{
			SheetID:     id,
			Name:        s.Get("Name").String(),
			VisualCount: len(s.Get("Visuals").Array()),
		})
	}
	return out
}

// explorationVisuals inventories every visual and the fields bound to it.
func explorationVisuals(def gjson.Result) ([]Visual, []VisualFieldMapping) {
	visuals := []Visual{}
	mappings := []VisualFieldMapping{}
	for _, s := range def.Get("Sheets").Array() {
		sheetID := s.Get("SheetId").String()
		sheetName := s.Get("Name").String()
		for _, v := range s.Get("Visuals").Array() {
			typ, body := onlyKey(v)
			if typ == "" {
				continue
			}
			visual := Visual{
				VisualID: body.Get("VisualId").String(),
				Type:     typ,
				Title:    body.Get("Title.FormatText.PlainText").String(),
				SheetID:  sheetID,
			}
			visuals = append(visuals, visual)
			mappings = append(mappings, visualMappings(visual, sheetName, body)...)
		}
	}
	return visuals, mappings
}

// visualMappings collects the column references in a visual's field wells.
func visualMappings(visual Visual, sheetName string, body gjson.Result) []VisualFieldMapping {
	chart := body.Get("ChartConfiguration")
	wells := chart.Get("FieldWells")
	if !wells.Exists() {
		wells = body
	}

	var out []VisualFieldMapping
	seen := make(map[string]bool)
	walk(wells, func(n node) bool {
		column, ok := stringValue(n.value.Get("Column.ColumnName"))
		if !ok {
			return true
		}
		fieldID := n.value.Get("FieldId").String()
		if fieldID == "" || seen[fieldID] {
			return false
		}
		seen[fieldID] = true
		out = append(out, VisualFieldMapping{
			FieldID:           fieldID,
			ColumnName:        column,
			DatasetIdentifier: n.value.Get("Column.DataSetIdentifier").String(),
			VisualID:          visual.VisualID,
			VisualType:        visual.Type,
			SheetID:           visual.SheetID,
			SheetName:         sheetName,
			DisplayName:       ResolveDisplayName(column, fieldID, n.value, chart),
			Role:              fieldRole(n.path, n.key),
		})
		return false
	})
	return out
}

// explorationFields walks the whole definition for column references.
func explorationFields(def gjson.Result) []Field {
	var fields []Field
	walk(def, func(n node) bool {
		column := n.value.Get("Column")
		if !column.IsObject() {
			return true
		}
		name, ok := stringValue(column.Get("ColumnName"))
		if !ok {
			return true
		}
		fields = append(fields, Field{
			FieldID:           name,
			Name:              name,
			DataType:          wrapperTypes[n.key],
			DatasetIdentifier: column.Get("DataSetIdentifier").String(),
		})
		return false
	})
	return DedupeFields(fields)
}

func explorationLineage(doc, def gjson.Result) Lineage {
	datasets := newIDSet()
	for _, decl := range def.Get("DataSetIdentifierDeclarations").Array() {
		datasets.add(arnSuffix(decl.Get("DataSetArn").String()))
	}
	// Describe responses list dataset ARNs next to the definition.
	for _, wrapper := range []string{"Dashboard.Version.DataSetArns", "Analysis.DataSetArns", "DataSetArns"} {
		for _, arn := range doc.Get(wrapper).Array() {
			datasets.add(arnSuffix(arn.String()))
		}
	}
	return Lineage{DatasetIDs: datasets.list(), DatasourceIDs: []string{}}
}
