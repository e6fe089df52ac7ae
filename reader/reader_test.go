package reader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"opresence/pipeline"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestReadRowsCSV(t *testing.T) {
	path := writeTempFile(t, "afg.csv",
		"Org,Sector,Province\n"+
			"WHO,Health,Kabul\n"+
			"ACTED,Education,Kapisa\n")

	rows, err := New().ReadRows(&pipeline.CountryConfig{
		CountryISO3: "AFG",
		Path:        path,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0]["Org"] != "WHO" || rows[0]["Sector"] != "Health" {
		t.Errorf("row 0 = %v", rows[0])
	}
	if rows[1]["Province"] != "Kapisa" {
		t.Errorf("row 1 = %v", rows[1])
	}
}

func TestReadRowsCSVKeepsHXLTagRow(t *testing.T) {
	path := writeTempFile(t, "afg.csv",
		"Org,Sector\n"+
			"#org,#sector\n"+
			"WHO,Health\n")

	rows, err := New().ReadRows(&pipeline.CountryConfig{Path: path, Format: "csv"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2 (tag row plus data row)", len(rows))
	}
	if rows[0]["Org"] != "#org" || rows[0]["Sector"] != "#sector" {
		t.Errorf("tag row = %v, must pass through untouched", rows[0])
	}
}

func TestReadRowsCSVHeaderRowOffset(t *testing.T) {
	path := writeTempFile(t, "afg.csv",
		"Operational presence January 2025,,\n"+
			"Org,Sector,Province\n"+
			"WHO,Health,Kabul\n")

	rows, err := New().ReadRows(&pipeline.CountryConfig{Path: path, HeaderRow: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	if rows[0]["Org"] != "WHO" {
		t.Errorf("row = %v", rows[0])
	}
}

func TestReadRowsCSVSkipsEmptyAndRaggedRows(t *testing.T) {
	path := writeTempFile(t, "afg.csv",
		"Org,Sector,Province\n"+
			",,\n"+
			"WHO,Health\n")

	rows, err := New().ReadRows(&pipeline.CountryConfig{Path: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1 (blank row dropped)", len(rows))
	}
	if rows[0]["Province"] != "" {
		t.Errorf("short row must pad missing cells, got %v", rows[0])
	}
}

func TestReadRowsXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "afg.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	cells := [][]interface{}{
		{"Org", "Sector", "Province"},
		{"WHO", "Health", "Kabul"},
	}
	for i, row := range cells {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	rows, err := New().ReadRows(&pipeline.CountryConfig{Path: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	if rows[0]["Org"] != "WHO" || rows[0]["Province"] != "Kabul" {
		t.Errorf("row = %v", rows[0])
	}
}

func TestReadRowsUnsupportedFormat(t *testing.T) {
	if _, err := New().ReadRows(&pipeline.CountryConfig{Path: "data.parquet"}); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestReadRowsMissingFile(t *testing.T) {
	if _, err := New().ReadRows(&pipeline.CountryConfig{Path: "/does/not/exist.csv"}); err == nil {
		t.Error("expected error for missing file")
	}
}
