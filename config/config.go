// Package config loads and validates the YAML run file: where the
// reference database lives, where output goes and how to read each
// country's source table. Configuration problems are the only fatal
// condition of a run, so validation is strict and happens entirely at
// load time.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"opresence/pipeline"
)

// Output says where and in which formats result tables are written.
type Output struct {
	Directory string   `yaml:"directory"`
	Formats   []string `yaml:"formats"`
}

// Country configures one country's source table.
type Country struct {
	ISO3         string `yaml:"iso3"`
	DatasetName  string `yaml:"dataset_name"`
	DatasetID    string `yaml:"dataset_id"`
	ResourceName string `yaml:"resource_name"`
	ResourceID   string `yaml:"resource_id"`

	Path      string `yaml:"path"`
	Format    string `yaml:"format"`
	Sheet     string `yaml:"sheet"`
	HeaderRow int    `yaml:"header_row"`

	AdmCodeColumns   []string `yaml:"adm_code_columns"`
	AdmNameColumns   []string `yaml:"adm_name_columns"`
	OrgNameColumn    string   `yaml:"org_name_column"`
	OrgAcronymColumn string   `yaml:"org_acronym_column"`
	OrgTypeColumn    string   `yaml:"org_type_column"`
	SectorColumn     string   `yaml:"sector_column"`
	StartDateColumn  string   `yaml:"start_date_column"`
	EndDateColumn    string   `yaml:"end_date_column"`

	Filter        string `yaml:"filter"`
	StartDate     string `yaml:"start_date"`
	EndDate       string `yaml:"end_date"`
	FilenameDates bool   `yaml:"filename_dates"`
}

// Run is the whole run file.
type Run struct {
	Database      string    `yaml:"database"`
	MaxAdminLevel int       `yaml:"max_admin_level"`
	Output        Output    `yaml:"output"`
	Countries     []Country `yaml:"countries"`
}

// Load reads, decodes and validates a run file. Unknown keys are errors:
// a typo in a column mapping must not silently drop the column.
func Load(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run file: %w", err)
	}

	var run Run
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&run); err != nil {
		return nil, fmt.Errorf("decoding run file %s: %w", path, err)
	}

	run.applyDefaults()
	if err := run.Validate(); err != nil {
		return nil, fmt.Errorf("validating run file %s: %w", path, err)
	}
	return &run, nil
}

func (r *Run) applyDefaults() {
	if r.Output.Directory == "" {
		r.Output.Directory = "."
	}
	if len(r.Output.Formats) == 0 {
		r.Output.Formats = []string{"csv"}
	}
	for i := range r.Countries {
		country := &r.Countries[i]
		if country.DatasetName == "" {
			country.DatasetName = country.ISO3
		}
	}
}

// Validate checks the run file as a whole.
func (r *Run) Validate() error {
	if r.Database == "" {
		return fmt.Errorf("database path is required")
	}
	if len(r.Countries) == 0 {
		return fmt.Errorf("at least one country is required")
	}
	for _, format := range r.Output.Formats {
		if format != "csv" && format != "xlsx" {
			return fmt.Errorf("unsupported output format %q", format)
		}
	}
	for i, country := range r.Countries {
		if err := country.validate(); err != nil {
			return fmt.Errorf("country %d (%s): %w", i, country.ISO3, err)
		}
	}
	return nil
}

func (c *Country) validate() error {
	if len(c.ISO3) != 3 {
		return fmt.Errorf("iso3 must be a 3-letter code, got %q", c.ISO3)
	}
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	if c.OrgNameColumn == "" {
		return fmt.Errorf("org_name_column is required")
	}
	if c.SectorColumn == "" {
		return fmt.Errorf("sector_column is required")
	}
	if !hasColumn(c.AdmCodeColumns) && !hasColumn(c.AdmNameColumns) {
		return fmt.Errorf("at least one adm_code_columns or adm_name_columns entry is required")
	}
	if _, err := pipeline.CompileFilter(c.Filter); err != nil {
		return err
	}
	return nil
}

func hasColumn(columns []string) bool {
	for _, column := range columns {
		if column != "" {
			return true
		}
	}
	return false
}

// ToPipeline converts one country entry to the pipeline's configuration.
func (c *Country) ToPipeline() *pipeline.CountryConfig {
	return &pipeline.CountryConfig{
		CountryISO3:      c.ISO3,
		DatasetName:      c.DatasetName,
		DatasetID:        c.DatasetID,
		ResourceName:     c.ResourceName,
		ResourceID:       c.ResourceID,
		Path:             c.Path,
		Format:           c.Format,
		Sheet:            c.Sheet,
		HeaderRow:        c.HeaderRow,
		AdmCodeColumns:   c.AdmCodeColumns,
		AdmNameColumns:   c.AdmNameColumns,
		OrgNameColumn:    c.OrgNameColumn,
		OrgAcronymColumn: c.OrgAcronymColumn,
		OrgTypeColumn:    c.OrgTypeColumn,
		SectorColumn:     c.SectorColumn,
		StartDateColumn:  c.StartDateColumn,
		EndDateColumn:    c.EndDateColumn,
		Filter:           c.Filter,
		StartDate:        c.StartDate,
		EndDate:          c.EndDate,
		FilenameDates:    c.FilenameDates,
	}
}

// PipelineConfigs converts every country entry.
func (r *Run) PipelineConfigs() []*pipeline.CountryConfig {
	configs := make([]*pipeline.CountryConfig, len(r.Countries))
	for i := range r.Countries {
		configs[i] = r.Countries[i].ToPipeline()
	}
	return configs
}
