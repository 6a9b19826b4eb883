package asset

// Capabilities declares which structural facets are meaningful for a kind.
// Parsers run one extraction routine per set flag; unset flags leave the
// corresponding output empty.
type Capabilities struct {
	Datasets         bool
	CalculatedFields bool
	Parameters       bool
	Filters          bool
	Sheets           bool
	Visuals          bool
	Fields           bool
	ConnectionInfo   bool
	Lineage          bool
}

var explorationCapabilities = Capabilities{
	Datasets:         true,
	CalculatedFields: true,
	Parameters:       true,
	Filters:          true,
	Sheets:           true,
	Visuals:          true,
	Fields:           true,
	Lineage:          true,
}

var capabilities = map[Kind]Capabilities{
	KindDashboard: explorationCapabilities,
	KindAnalysis:  explorationCapabilities,
	KindDataset: {
		CalculatedFields: true,
		Parameters:       true,
		Fields:           true,
		Lineage:          true,
	},
	KindDatasource: {ConnectionInfo: true},
	KindFolder:     {},
	KindGroup:      {},
	KindUser:       {},
}

// CapabilitiesFor returns the descriptor for kind. Unknown kinds have no
// capabilities.
func CapabilitiesFor(kind Kind) Capabilities {
	return capabilities[kind]
}

// None reports whether no facet is set (metadata-only kinds).
func (c Capabilities) None() bool {
	return c == Capabilities{}
}
