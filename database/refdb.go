// Package database persists the reference snapshot the resolvers are
// populated from at startup: the authoritative organization table, the
// org-type and sector code lists and the pcode tree. Everything lives in
// one SQLite file with tracked schema migrations.
package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"opresence/admins"
	"opresence/orgs"
	"opresence/vocab"
)

// RefDB is the reference snapshot store.
type RefDB struct {
	conn   *sql.DB
	retry  retryConfig
	logger *slog.Logger
}

// Open opens (creating and migrating as needed) a reference database.
func Open(path string) (*RefDB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening reference database: %w", err)
	}
	// In-memory SQLite needs exactly one connection, otherwise each new
	// connection sees an empty database without the migrated schema.
	if isInMemory(path) {
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pinging reference database: %w", err)
	}

	db := &RefDB{
		conn:   conn,
		retry:  defaultRetryConfig(),
		logger: slog.Default().With("component", "refdb"),
	}
	if err := migrateReferenceTables(conn, db.logger); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func isInMemory(path string) bool {
	if path == ":memory:" {
		return true
	}
	return strings.HasPrefix(path, "file:") && strings.Contains(path, "mode=memory")
}

// Close closes the underlying connection.
func (db *RefDB) Close() error {
	return db.conn.Close()
}

// SaveOrgTypes replaces the org-type code list.
func (db *RefDB) SaveOrgTypes(entries []vocab.Entry) error {
	return db.saveCodeList("org_types", entries)
}

// LoadOrgTypes loads the org-type code list ordered by code.
func (db *RefDB) LoadOrgTypes() ([]vocab.Entry, error) {
	return db.loadCodeList("org_types")
}

// SaveSectors replaces the sector code list.
func (db *RefDB) SaveSectors(entries []vocab.Entry) error {
	return db.saveCodeList("sectors", entries)
}

// LoadSectors loads the sector code list ordered by code.
func (db *RefDB) LoadSectors() ([]vocab.Entry, error) {
	return db.loadCodeList("sectors")
}

func (db *RefDB) saveCodeList(table string, entries []vocab.Entry) error {
	return withRetry(db.retry, func() error {
		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("beginning %s transaction: %w", table, err)
		}
		defer tx.Rollback()

		if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s`, table)); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
		statement, err := tx.Prepare(fmt.Sprintf(`INSERT INTO %s(code, name) VALUES(?, ?)`, table))
		if err != nil {
			return fmt.Errorf("preparing %s insert: %w", table, err)
		}
		defer statement.Close()
		for _, entry := range entries {
			if _, err := statement.Exec(entry.Code, entry.Name); err != nil {
				return fmt.Errorf("inserting %s row %s: %w", table, entry.Code, err)
			}
		}
		return tx.Commit()
	})
}

func (db *RefDB) loadCodeList(table string) ([]vocab.Entry, error) {
	var entries []vocab.Entry
	err := withRetry(db.retry, func() error {
		entries = entries[:0]
		rows, err := db.conn.Query(fmt.Sprintf(`SELECT code, name FROM %s ORDER BY code`, table))
		if err != nil {
			return fmt.Errorf("querying %s: %w", table, err)
		}
		defer rows.Close()
		for rows.Next() {
			var entry vocab.Entry
			if err := rows.Scan(&entry.Code, &entry.Name); err != nil {
				return fmt.Errorf("scanning %s row: %w", table, err)
			}
			entries = append(entries, entry)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// SaveOrgs replaces the authoritative organization table.
func (db *RefDB) SaveOrgs(reference []orgs.ReferenceRow) error {
	err := withRetry(db.retry, func() error {
		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("beginning org_reference transaction: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`DELETE FROM org_reference`); err != nil {
			return fmt.Errorf("clearing org_reference: %w", err)
		}
		statement, err := tx.Prepare(`
			INSERT INTO org_reference(country_code, canonical_name, acronym, pattern, type_code)
			VALUES(?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing org_reference insert: %w", err)
		}
		defer statement.Close()
		for _, row := range reference {
			_, err := statement.Exec(row.CountryCode, row.CanonicalName, row.Acronym, row.Pattern, row.TypeCode)
			if err != nil {
				return fmt.Errorf("inserting org %q: %w", row.CanonicalName, err)
			}
		}
		return tx.Commit()
	})
	if err == nil {
		db.logger.Info("Org reference table saved", "rows", len(reference))
	}
	return err
}

// LoadOrgs loads the authoritative organization table in insertion order.
func (db *RefDB) LoadOrgs() ([]orgs.ReferenceRow, error) {
	var reference []orgs.ReferenceRow
	err := withRetry(db.retry, func() error {
		reference = reference[:0]
		rows, err := db.conn.Query(`
			SELECT country_code, canonical_name, acronym, pattern, type_code
			FROM org_reference ORDER BY id
		`)
		if err != nil {
			return fmt.Errorf("querying org_reference: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var row orgs.ReferenceRow
			err := rows.Scan(&row.CountryCode, &row.CanonicalName, &row.Acronym, &row.Pattern, &row.TypeCode)
			if err != nil {
				return fmt.Errorf("scanning org_reference row: %w", err)
			}
			reference = append(reference, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return reference, nil
}

// SaveAdminUnits replaces one level of the pcode tree.
func (db *RefDB) SaveAdminUnits(level int, units []admins.Unit) error {
	if level < 1 || level > admins.MaxLevels {
		return fmt.Errorf("admin level %d out of range 1..%d", level, admins.MaxLevels)
	}
	err := withRetry(db.retry, func() error {
		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("beginning admin_units transaction: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`DELETE FROM admin_units WHERE level = ?`, level); err != nil {
			return fmt.Errorf("clearing admin_units level %d: %w", level, err)
		}
		statement, err := tx.Prepare(`
			INSERT INTO admin_units(level, country_iso3, pcode, name, parent_pcode)
			VALUES(?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing admin_units insert: %w", err)
		}
		defer statement.Close()
		for _, unit := range units {
			_, err := statement.Exec(level, unit.CountryISO3, unit.PCode, unit.Name, unit.ParentPCode)
			if err != nil {
				return fmt.Errorf("inserting admin unit %s: %w", unit.PCode, err)
			}
		}
		return tx.Commit()
	})
	if err == nil {
		db.logger.Info("Admin units saved", "level", level, "units", len(units))
	}
	return err
}

// LoadAdminUnits streams every stored admin unit, shallowest level first,
// into the callback. The callback's error aborts the load.
func (db *RefDB) LoadAdminUnits(load func(level int, unit admins.Unit) error) error {
	return withRetry(db.retry, func() error {
		rows, err := db.conn.Query(`
			SELECT level, country_iso3, pcode, name, parent_pcode
			FROM admin_units ORDER BY level, pcode
		`)
		if err != nil {
			return fmt.Errorf("querying admin_units: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var level int
			var unit admins.Unit
			if err := rows.Scan(&level, &unit.CountryISO3, &unit.PCode, &unit.Name, &unit.ParentPCode); err != nil {
				return fmt.Errorf("scanning admin_units row: %w", err)
			}
			if err := load(level, unit); err != nil {
				return err
			}
		}
		return rows.Err()
	})
}
