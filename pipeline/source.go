package pipeline

import "strings"

// CountryConfig describes one country's source table and how to read it.
// It is supplied by the external configuration collaborator; the pipeline
// never persists it.
type CountryConfig struct {
	CountryISO3 string

	// Provenance identifiers carried through to output records.
	DatasetName  string
	DatasetID    string
	ResourceName string
	ResourceID   string

	// Reading instructions for the row reader.
	Path      string
	Format    string // "csv" or "xlsx"
	Sheet     string
	HeaderRow int // 1-based; 0 means first row

	// Column identifiers: literal headers, or HXL tags when the org name
	// column starts with "#".
	AdmCodeColumns   []string // per admin level, "" where absent
	AdmNameColumns   []string
	OrgNameColumn    string
	OrgAcronymColumn string
	OrgTypeColumn    string
	SectorColumn     string
	StartDateColumn  string
	EndDateColumn    string

	// Optional row filter expression, compiled by CompileFilter.
	Filter string

	// Explicit date bounds override anything found in rows (ISO dates).
	StartDate string
	EndDate   string

	// FilenameDates extracts the reference period from ResourceName.
	FilenameDates bool
}

// UsesHXL reports whether column identifiers are HXL tags to be translated
// through the source's tag row.
func (c *CountryConfig) UsesHXL() bool {
	return strings.HasPrefix(c.OrgNameColumn, "#")
}

// RowReader yields the ordered rows of a country's source table as
// column-name → value mappings. When the source carries an inline HXL tag
// row it appears as the first mapping (header → tag). Implementations live
// outside the core.
type RowReader interface {
	ReadRows(cfg *CountryConfig) ([]map[string]string, error)
}
