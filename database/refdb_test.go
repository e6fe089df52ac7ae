package database

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opresence/admins"
	"opresence/orgs"
	"opresence/vocab"
)

func openTestDB(t *testing.T) *RefDB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCodeListsRoundTrip(t *testing.T) {
	db := openTestDB(t)

	sectors := []vocab.Entry{
		{Code: "HEA", Name: "Health"},
		{Code: "EDU", Name: "Education"},
	}
	require.NoError(t, db.SaveSectors(sectors))

	loaded, err := db.LoadSectors()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	// ORDER BY code.
	assert.Equal(t, "EDU", loaded[0].Code)
	assert.Equal(t, "Health", loaded[1].Name)

	types, err := db.LoadOrgTypes()
	require.NoError(t, err)
	assert.Empty(t, types, "sector save must not touch org types")
}

func TestSaveCodeListReplaces(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.SaveOrgTypes([]vocab.Entry{{Code: "447", Name: "United Nations"}}))
	require.NoError(t, db.SaveOrgTypes([]vocab.Entry{{Code: "437", Name: "International NGO"}}))

	loaded, err := db.LoadOrgTypes()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "437", loaded[0].Code)
}

func TestOrgsRoundTrip(t *testing.T) {
	db := openTestDB(t)

	reference := []orgs.ReferenceRow{
		{
			CountryCode:   orgs.GlobalScope,
			CanonicalName: "World Health Organization",
			Acronym:       "WHO",
			Pattern:       "World Health Organization (WHO)",
			TypeCode:      "447",
		},
		{CountryCode: "AFG", CanonicalName: "Afghan Red Crescent Society", Acronym: "ARCS"},
	}
	require.NoError(t, db.SaveOrgs(reference))

	loaded, err := db.LoadOrgs()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, reference[0], loaded[0], "insertion order and all fields survive")
	assert.Equal(t, "", loaded[1].TypeCode)
}

func TestAdminUnitsRoundTrip(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.SaveAdminUnits(1, []admins.Unit{
		{CountryISO3: "AFG", PCode: "AF01", Name: "Kabul"},
	}))
	require.NoError(t, db.SaveAdminUnits(2, []admins.Unit{
		{CountryISO3: "AFG", PCode: "AF0101", Name: "Paghman", ParentPCode: "AF01"},
	}))

	resolver := admins.NewResolver(0)
	err := db.LoadAdminUnits(func(level int, unit admins.Unit) error {
		return resolver.AddUnit(level, unit)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resolver.UnitCount(1))
	assert.Equal(t, 1, resolver.UnitCount(2))
	assert.Equal(t, "Paghman", resolver.Name(2, "AF0101"))
}

func TestSaveAdminUnitsLevelScoped(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.SaveAdminUnits(1, []admins.Unit{
		{CountryISO3: "AFG", PCode: "AF01", Name: "Kabul"},
	}))
	require.NoError(t, db.SaveAdminUnits(2, []admins.Unit{
		{CountryISO3: "AFG", PCode: "AF0101", Name: "Paghman", ParentPCode: "AF01"},
	}))
	// Replacing level 2 must keep level 1 intact.
	require.NoError(t, db.SaveAdminUnits(2, nil))

	levels := map[int]int{}
	require.NoError(t, db.LoadAdminUnits(func(level int, unit admins.Unit) error {
		levels[level]++
		return nil
	}))
	assert.Equal(t, map[int]int{1: 1}, levels)
}

func TestSaveAdminUnitsRejectsBadLevel(t *testing.T) {
	db := openTestDB(t)
	assert.Error(t, db.SaveAdminUnits(0, nil))
	assert.Error(t, db.SaveAdminUnits(admins.MaxLevels+1, nil))
}

func TestLoadAdminUnitsCallbackErrorAborts(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveAdminUnits(1, []admins.Unit{
		{CountryISO3: "AFG", PCode: "AF01", Name: "Kabul"},
	}))

	wantErr := errors.New("stop")
	err := db.LoadAdminUnits(func(level int, unit admins.Unit) error { return wantErr })
	assert.ErrorIs(t, err, wantErr)
}

func TestMigrationsIdempotentAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reference.db")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.SaveSectors([]vocab.Entry{{Code: "HEA", Name: "Health"}}))
	require.NoError(t, db.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.LoadSectors()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "HEA", loaded[0].Code)
}
