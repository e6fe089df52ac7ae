package pipeline

// Row is one canonical operational-presence record. Unresolved admin levels
// hold empty strings, never nulls, so downstream tabular output stays
// rectangular.
type Row struct {
	CountryISO3          string
	ProviderAdmin1Name   string
	ProviderAdmin2Name   string
	Admin1Code           string
	Admin1Name           string
	Admin2Code           string
	Admin2Name           string
	Admin3Code           string
	Admin3Name           string
	AdminLevel           int
	OrgAcronym           string
	OrgName              string
	OrgTypeCode          string
	OrgTypeDescription   string
	SectorCode           string
	SectorName           string
	ReferencePeriodStart string
	ReferencePeriodEnd   string
	DatasetID            string
	ResourceID           string
	Warning              string
	Error                string
}

// RowKey is the composite deduplication key: two source rows sharing a key
// describe the same presence and collapse into one record.
type RowKey struct {
	CountryISO3        string
	ProviderAdmin1Name string
	ProviderAdmin2Name string
	Admin1Code         string
	Admin2Code         string
	OrgAcronym         string
	OrgName            string
	SectorCode         string
	PeriodStart        string
}

// Key derives the deduplication key of the row.
func (r Row) Key() RowKey {
	return RowKey{
		CountryISO3:        r.CountryISO3,
		ProviderAdmin1Name: r.ProviderAdmin1Name,
		ProviderAdmin2Name: r.ProviderAdmin2Name,
		Admin1Code:         r.Admin1Code,
		Admin2Code:         r.Admin2Code,
		OrgAcronym:         r.OrgAcronym,
		OrgName:            r.OrgName,
		SectorCode:         r.SectorCode,
		PeriodStart:        r.ReferencePeriodStart,
	}
}
