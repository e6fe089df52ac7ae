package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

const migrationsTableName = "schema_migrations"

func ensureMigrationTable(db *sql.DB) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`, migrationsTableName)

	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("ensuring schema_migrations table: %w", err)
	}
	return nil
}

func isMigrationApplied(db *sql.DB, name string) (bool, error) {
	if err := ensureMigrationTable(db); err != nil {
		return false, err
	}

	var appliedAt sql.NullTime
	query := fmt.Sprintf(`SELECT applied_at FROM %s WHERE name = ?`, migrationsTableName)
	err := db.QueryRow(query, name).Scan(&appliedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("checking migration %s: %w", name, err)
	}
	return appliedAt.Valid, nil
}

func markMigrationApplied(db *sql.DB, name string) error {
	query := fmt.Sprintf(`INSERT OR REPLACE INTO %s(name, applied_at) VALUES(?, ?)`, migrationsTableName)
	if _, err := db.Exec(query, name, time.Now()); err != nil {
		return fmt.Errorf("marking migration %s applied: %w", name, err)
	}
	return nil
}

func ensureMigrationApplied(db *sql.DB, logger *slog.Logger, name string, migration func(*sql.DB) error) error {
	applied, err := isMigrationApplied(db, name)
	if err != nil {
		return err
	}
	if applied {
		logger.Debug("Skipping migration, already applied", "migration", name)
		return nil
	}
	if err := migration(db); err != nil {
		return fmt.Errorf("applying migration %s: %w", name, err)
	}
	if err := markMigrationApplied(db, name); err != nil {
		return err
	}
	logger.Info("Migration applied", "migration", name)
	return nil
}

// migrateReferenceTables creates the reference snapshot schema. Each
// migration runs exactly once per database file.
func migrateReferenceTables(db *sql.DB, logger *slog.Logger) error {
	migrations := []struct {
		name string
		fn   func(*sql.DB) error
	}{
		{"001_org_types", createOrgTypesTable},
		{"002_sectors", createSectorsTable},
		{"003_org_reference", createOrgReferenceTable},
		{"004_admin_units", createAdminUnitsTable},
	}
	for _, m := range migrations {
		if err := ensureMigrationApplied(db, logger, m.name, m.fn); err != nil {
			return err
		}
	}
	return nil
}

func createOrgTypesTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS org_types (
			code TEXT PRIMARY KEY,
			name TEXT NOT NULL
		)
	`)
	return err
}

func createSectorsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sectors (
			code TEXT PRIMARY KEY,
			name TEXT NOT NULL
		)
	`)
	return err
}

func createOrgReferenceTable(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS org_reference (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			country_code TEXT NOT NULL,
			canonical_name TEXT NOT NULL,
			acronym TEXT NOT NULL DEFAULT '',
			pattern TEXT NOT NULL DEFAULT '',
			type_code TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_org_reference_country ON org_reference(country_code)`,
	}
	for _, statement := range statements {
		if _, err := db.Exec(statement); err != nil {
			return err
		}
	}
	return nil
}

func createAdminUnitsTable(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS admin_units (
			level INTEGER NOT NULL,
			country_iso3 TEXT NOT NULL,
			pcode TEXT NOT NULL,
			name TEXT NOT NULL,
			parent_pcode TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (level, pcode)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_admin_units_country ON admin_units(country_iso3)`,
	}
	for _, statement := range statements {
		if _, err := db.Exec(statement); err != nil {
			return err
		}
	}
	return nil
}
