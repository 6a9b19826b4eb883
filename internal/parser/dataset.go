package parser

import (
	"strings"

	"github.com/tidwall/gjson"
)

// physicalColumnPaths lists where each physical table source keeps its columns.
var physicalColumnPaths = []string{
	"RelationalTable.InputColumns",
	"CustomSql.Columns",
	"S3Source.InputColumns",
}

// physicalSourceKeys lists the physical table variants that reference a datasource.
var physicalSourceKeys = []string{"RelationalTable", "CustomSql", "S3Source"}

func (p Parser) parseDataset(doc gjson.Result, info *ParsedAssetInfo) {
	ds := unwrap(doc, "DataSet")
	datasetID := ds.Get("DataSetId").String()

	if p.caps.Fields {
		p.extract("fields", func() { info.Fields = datasetFields(ds, datasetID) })
	}
	if p.caps.CalculatedFields {
		p.extract("calculatedFields", func() { info.CalculatedFields = datasetCalculatedFields(ds, datasetID) })
	}
	if p.caps.Parameters {
		p.extract("parameters", func() { info.Parameters = datasetParameters(ds) })
	}
	if p.caps.Lineage {
		p.extract("lineage", func() { info.Lineage = DatasetLineage(ds) })
	}
}

// orderedTables returns the entries of a table map in document order.
type tableEntry struct {
	id    string
	value gjson.Result
}

func orderedTables(m gjson.Result) []tableEntry {
	var out []tableEntry
	m.ForEach(func(k, v gjson.Result) bool {
		if v.IsObject() {
			out = append(out, tableEntry{id: k.String(), value: v})
		}
		return true
	})
	return out
}

// datasetFields prefers the platform-computed OutputColumns. Without them
// the schema is rebuilt from physical columns corrected by logical-table
// transforms in declaration order.
func datasetFields(ds gjson.Result, datasetID string) []Field {
	if output := ds.Get("OutputColumns").Array(); len(output) > 0 {
		fields := make([]Field, 0, len(output))
		for _, col := range output {
			name, ok := stringValue(col.Get("Name"))
			if !ok {
				continue
			}
			fields = append(fields, Field{
				FieldID:           name,
				Name:              name,
				DataType:          col.Get("Type").String(),
				DatasetIdentifier: datasetID,
			})
		}
		return DedupeFields(fields)
	}

	var fields []Field
	for _, table := range orderedTables(ds.Get("PhysicalTableMap")) {
		for _, path := range physicalColumnPaths {
			for _, col := range table.value.Get(path).Array() {
				name, ok := stringValue(col.Get("Name"))
				if !ok {
					continue
				}
				fields = append(fields, Field{
					FieldID:           name,
					Name:              name,
					DataType:          col.Get("Type").String(),
					DatasetIdentifier: datasetID,
				})
			}
		}
	}

	for _, table := range orderedTables(ds.Get("LogicalTableMap")) {
		for _, transform := range table.value.Get("DataTransforms").Array() {
			applyTransform(fields, transform)
		}
	}
	return DedupeFields(fields)
}

// applyTransform mutates fields in place. Tag operations carry metadata only
// and project/filter/create operations do not change physical columns.
func applyTransform(fields []Field, transform gjson.Result) {
	if cast := transform.Get("CastColumnTypeOperation"); cast.IsObject() {
		if i := findField(fields, cast.Get("ColumnName").String()); i >= 0 {
			if t := cast.Get("NewColumnType").String(); t != "" {
				fields[i].DataType = t
			}
		}
		return
	}
	if rename := transform.Get("RenameColumnOperation"); rename.IsObject() {
		newName, ok := stringValue(rename.Get("NewColumnName"))
		if !ok {
			return
		}
		if i := findField(fields, rename.Get("ColumnName").String()); i >= 0 {
			fields[i].FieldID = newName
			fields[i].Name = newName
		}
	}
}

// findField returns the index of the last field with the given id.
func findField(fields []Field, id string) int {
	if id == "" {
		return -1
	}
	for i := len(fields) - 1; i >= 0; i-- {
		if fields[i].FieldID == id {
			return i
		}
	}
	return -1
}

func datasetCalculatedFields(ds gjson.Result, datasetID string) []CalculatedField {
	out := []CalculatedField{}
	for _, table := range orderedTables(ds.Get("LogicalTableMap")) {
		for _, transform := range table.value.Get("DataTransforms").Array() {
			for _, col := range transform.Get("CreateColumnsOperation.Columns").Array() {
				name, ok := stringValue(col.Get("ColumnName"))
				if !ok || !validFieldName(name) {
					continue
				}
				out = append(out, CalculatedField{
					Name:              name,
					Expression:        col.Get("Expression").String(),
					DatasetIdentifier: datasetID,
				})
			}
		}
	}
	return out
}

func datasetParameters(ds gjson.Result) []Parameter {
	out := []Parameter{}
	for _, param := range ds.Get("DatasetParameters").Array() {
		key, body := onlyKey(param)
		name, ok := stringValue(body.Get("Name"))
		if !ok || name == "" {
			continue
		}
		out = append(out, Parameter{
			Name:          name,
			Type:          strings.TrimSuffix(key, "DatasetParameter"),
			ValueType:     body.Get("ValueType").String(),
			DefaultValues: staticStrings(body),
		})
	}
	return out
}

// DatasetLineage resolves the datasources and child datasets a dataset
// reads from. Join operands naming a sibling logical table are resolved by
// exactly one lookup; a sibling that is itself a join is not followed.
func DatasetLineage(ds gjson.Result) Lineage {
	datasets := newIDSet()
	sources := newIDSet()

	physical := make(map[string]gjson.Result)
	for _, table := range orderedTables(ds.Get("PhysicalTableMap")) {
		physical[table.id] = table.value
		for _, key := range physicalSourceKeys {
			sources.add(arnSuffix(table.value.Get(key + ".DataSourceArn").String()))
		}
	}

	logical := orderedTables(ds.Get("LogicalTableMap"))
	siblings := make(map[string]gjson.Result, len(logical))
	for _, table := range logical {
		siblings[table.id] = table.value
	}

	resolveSource := func(src gjson.Result) {
		datasets.add(arnSuffix(src.Get("DataSetArn").String()))
		if pid := src.Get("PhysicalTableId").String(); pid != "" {
			for _, key := range physicalSourceKeys {
				sources.add(arnSuffix(physical[pid].Get(key + ".DataSourceArn").String()))
			}
		}
	}

	for _, table := range logical {
		src := table.value.Get("Source")
		resolveSource(src)

		join := src.Get("JoinInstruction")
		if !join.IsObject() {
			continue
		}
		for _, operand := range []string{"LeftOperand", "RightOperand"} {
			sibling, ok := siblings[join.Get(operand).String()]
			if !ok {
				continue
			}
			resolveSource(sibling.Get("Source"))
		}
	}

	return Lineage{DatasetIDs: datasets.list(), DatasourceIDs: sources.list()}
}
