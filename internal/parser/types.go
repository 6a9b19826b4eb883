package parser

// CalculatedField is a derived column declared in a definition.
type CalculatedField struct {
	Name              string `json:"name"`
	Expression        string `json:"expression"`
	DatasetIdentifier string `json:"datasetIdentifier,omitempty"`
}

// Field is a column referenced or produced by an asset. Identity is
// (FieldID, DatasetIdentifier).
type Field struct {
	FieldID           string `json:"fieldId"`
	Name              string `json:"name"`
	DataType          string `json:"dataType,omitempty"`
	DatasetIdentifier string `json:"datasetIdentifier,omitempty"`
}

// DatasetRef is a dataset declared by an exploration.
type DatasetRef struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
	Arn        string `json:"arn,omitempty"`
	DatasetID  string `json:"datasetId,omitempty"`
}

// Parameter is an exploration or dataset parameter declaration.
type Parameter struct {
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	ValueType     string   `json:"valueType,omitempty"`
	DefaultValues []string `json:"defaultValues,omitempty"`
}

// Filter is one filter inside a filter group.
type Filter struct {
	FilterGroupID     string   `json:"filterGroupId"`
	FilterID          string   `json:"filterId"`
	Type              string   `json:"type"`
	ColumnName        string   `json:"columnName,omitempty"`
	DatasetIdentifier string   `json:"datasetIdentifier,omitempty"`
	Scope             string   `json:"scope,omitempty"`
	SheetIDs          []string `json:"sheetIds,omitempty"`
}

// Visual is one visual on a sheet.
type Visual struct {
	VisualID string `json:"visualId"`
	Type     string `json:"type"`
	Title    string `json:"title,omitempty"`
	SheetID  string `json:"sheetId"`
}

// Sheet is a page of an exploration.
type Sheet struct {
	SheetID     string `json:"sheetId"`
	Name        string `json:"name"`
	VisualCount int    `json:"visualCount"`
}

// VisualFieldMapping binds a column to a visual with a human-readable name
// and a role tag.
type VisualFieldMapping struct {
	FieldID           string `json:"fieldId"`
	ColumnName        string `json:"columnName"`
	DatasetIdentifier string `json:"datasetIdentifier,omitempty"`
	VisualID          string `json:"visualId"`
	VisualType        string `json:"visualType"`
	SheetID           string `json:"sheetId"`
	SheetName         string `json:"sheetName,omitempty"`
	DisplayName       string `json:"displayName"`
	Role              string `json:"role"`
}

// Lineage lists the logical ids an asset depends on.
type Lineage struct {
	DatasetIDs    []string `json:"datasetIds"`
	DatasourceIDs []string `json:"datasourceIds"`
}

// ConnectionInfo summarizes a datasource connection.
type ConnectionInfo struct {
	Type             string            `json:"type,omitempty"`
	ParametersType   string            `json:"parametersType,omitempty"`
	Host             string            `json:"host,omitempty"`
	Port             int64             `json:"port,omitempty"`
	Database         string            `json:"database,omitempty"`
	VPCConnectionArn string            `json:"vpcConnectionArn,omitempty"`
	SSLDisabled      bool              `json:"sslDisabled,omitempty"`
	Parameters       map[string]string `json:"parameters,omitempty"`
}

// ParsedAssetInfo is the normalized semantic model of a definition.
type ParsedAssetInfo struct {
	CalculatedFields    []CalculatedField    `json:"calculatedFields"`
	Fields              []Field              `json:"fields"`
	Datasets            []DatasetRef         `json:"datasets"`
	Parameters          []Parameter          `json:"parameters"`
	Filters             []Filter             `json:"filters"`
	Sheets              []Sheet              `json:"sheets"`
	Visuals             []Visual             `json:"visuals"`
	VisualFieldMappings []VisualFieldMapping `json:"visualFieldMappings"`
	Lineage             Lineage              `json:"lineage"`
	Connection          *ConnectionInfo      `json:"connection,omitempty"`
}

// Empty returns a well-typed result with every collection initialized.
func Empty() ParsedAssetInfo {
	return ParsedAssetInfo{
		CalculatedFields:    []CalculatedField{},
		Fields:              []Field{},
		Datasets:            []DatasetRef{},
		Parameters:          []Parameter{},
		Filters:             []Filter{},
		Sheets:              []Sheet{},
		Visuals:             []Visual{},
		VisualFieldMappings: []VisualFieldMapping{},
		Lineage:             Lineage{DatasetIDs: []string{}, DatasourceIDs: []string{}},
	}
}
