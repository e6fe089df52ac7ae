// Package export renders pipeline output as tabular files. Each table
// carries an HXL tag row under its headers so downstream tooling can
// consume the files without per-publisher column mapping.
package export

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/xuri/excelize/v2"

	"opresence/orgs"
	"opresence/pipeline"
)

// Table is one output sheet: headers, their HXL tags and data rows.
type Table struct {
	Name    string
	Headers []string
	Tags    []string
	Rows    [][]string
}

var presenceColumns = []struct {
	header string
	tag    string
}{
	{"Country ISO3", "#country+code"},
	{"Provider Admin1 Name", "#adm1+name+provided"},
	{"Provider Admin2 Name", "#adm2+name+provided"},
	{"Admin1 PCode", "#adm1+code"},
	{"Admin1 Name", "#adm1+name"},
	{"Admin2 PCode", "#adm2+code"},
	{"Admin2 Name", "#adm2+name"},
	{"Admin3 PCode", "#adm3+code"},
	{"Admin3 Name", "#adm3+name"},
	{"Admin Level", "#adm+level"},
	{"Org Acronym", "#org+acronym"},
	{"Org Name", "#org+name"},
	{"Org Type Code", "#org+type+code"},
	{"Org Type Description", "#org+type+name"},
	{"Sector Code", "#sector+code"},
	{"Sector Name", "#sector+name"},
	{"Reference Period Start", "#date+start"},
	{"Reference Period End", "#date+end"},
	{"Dataset ID", "#meta+dataset_id"},
	{"Resource ID", "#meta+resource_id"},
	{"Warning", "#meta+warning"},
	{"Error", "#meta+error"},
}

// PresenceTable builds the operational presence table. Row order is
// whatever the pipeline produced (already sorted).
func PresenceTable(rows []pipeline.Row) *Table {
	table := &Table{Name: "Operational Presence"}
	for _, column := range presenceColumns {
		table.Headers = append(table.Headers, column.header)
		table.Tags = append(table.Tags, column.tag)
	}
	for _, row := range rows {
		table.Rows = append(table.Rows, []string{
			row.CountryISO3,
			row.ProviderAdmin1Name,
			row.ProviderAdmin2Name,
			row.Admin1Code,
			row.Admin1Name,
			row.Admin2Code,
			row.Admin2Name,
			row.Admin3Code,
			row.Admin3Name,
			strconv.Itoa(row.AdminLevel),
			row.OrgAcronym,
			row.OrgName,
			row.OrgTypeCode,
			row.OrgTypeDescription,
			row.SectorCode,
			row.SectorName,
			row.ReferencePeriodStart,
			row.ReferencePeriodEnd,
			row.DatasetID,
			row.ResourceID,
			row.Warning,
			row.Error,
		})
	}
	return table
}

// OrgTable builds the canonical organizations table. describe maps a type
// code to its preferred label and may be nil.
func OrgTable(list []orgs.CanonicalOrg, describe func(code string) string) *Table {
	table := &Table{
		Name:    "Organizations",
		Headers: []string{"Acronym", "Name", "Org Type Code", "Org Type Description"},
		Tags:    []string{"#org+acronym", "#org+name", "#org+type+code", "#org+type+name"},
	}
	for _, org := range list {
		description := ""
		if describe != nil {
			description = describe(org.TypeCode)
		}
		table.Rows = append(table.Rows, []string{org.Acronym, org.Name, org.TypeCode, description})
	}
	return table
}

func (t *Table) records() [][]string {
	records := make([][]string, 0, len(t.Rows)+2)
	records = append(records, t.Headers, t.Tags)
	records = append(records, t.Rows...)
	return records
}

// Writer writes tables to disk.
type Writer struct {
	logger *slog.Logger
}

// NewWriter creates a table writer.
func NewWriter() *Writer {
	return &Writer{logger: slog.Default().With("component", "export")}
}

// WriteCSV writes one table as a CSV file with header and tag rows.
func (w *Writer) WriteCSV(path string, table *Table) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	for _, record := range table.records() {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	w.logger.Info("CSV written", "path", path, "table", table.Name, "rows", len(table.Rows))
	return nil
}

// WriteXLSX writes one workbook with one styled sheet per table.
func (w *Writer) WriteXLSX(path string, tables ...*Table) error {
	if len(tables) == 0 {
		return fmt.Errorf("no tables to write to %s", path)
	}
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	for i, table := range tables {
		sheet := table.Name
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
				return fmt.Errorf("naming sheet %q: %w", sheet, err)
			}
		} else {
			if _, err := f.NewSheet(sheet); err != nil {
				return fmt.Errorf("creating sheet %q: %w", sheet, err)
			}
		}
		for rowIdx, record := range table.records() {
			cell, err := excelize.CoordinatesToCellName(1, rowIdx+1)
			if err != nil {
				return fmt.Errorf("cell name for row %d: %w", rowIdx+1, err)
			}
			values := make([]interface{}, len(record))
			for j, value := range record {
				values[j] = value
			}
			if err := f.SetSheetRow(sheet, cell, &values); err != nil {
				return fmt.Errorf("writing sheet %q row %d: %w", sheet, rowIdx+1, err)
			}
		}
		lastColumn, err := excelize.ColumnNumberToName(len(table.Headers))
		if err != nil {
			return fmt.Errorf("column name: %w", err)
		}
		if err := f.SetCellStyle(sheet, "A1", lastColumn+"1", headerStyle); err != nil {
			return fmt.Errorf("styling sheet %q header: %w", sheet, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	w.logger.Info("Workbook written", "path", path, "sheets", len(tables))
	return nil
}
