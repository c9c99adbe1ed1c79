package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListEmbeddedMigrations(t *testing.T) {
	files, err := ListEmbeddedMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, files)

	// Lexicographic order and the naming standard hold for the whole set.
	assert.Contains(t, files, "001_init.up.sql")
	assert.Contains(t, files, "001_init.down.sql")

	for _, file := range files {
		assert.Regexp(t, migrationFilenameRegex, file)
	}
}

func TestValidateEmbeddedMigrations(t *testing.T) {
	assert.NoError(t, ValidateEmbeddedMigrations())
}

func TestParseMigrationFilename(t *testing.T) {
	info, err := parseMigrationFilename("001_init.up.sql")
	require.NoError(t, err)
	assert.Equal(t, 1, info.Sequence)
	assert.Equal(t, "init", info.Name)
	assert.Equal(t, "up", info.Direction)

	info, err = parseMigrationFilename("012_add_indexes.down.sql")
	require.NoError(t, err)
	assert.Equal(t, 12, info.Sequence)
	assert.Equal(t, "add_indexes", info.Name)
	assert.Equal(t, "down", info.Direction)

	invalid := []string{
		"1_init.up.sql",
		"001-init.up.sql",
		"001_init.sql",
		"001_init.up.txt",
		"001_init.sideways.sql",
	}
	for _, name := range invalid {
		_, err := parseMigrationFilename(name)
		assert.Error(t, err, "expected %s to be rejected", name)
	}
}

func TestValidatePairing(t *testing.T) {
	paired := []*migrationInfo{
		{Sequence: 1, Name: "init", Direction: "up"},
		{Sequence: 1, Name: "init", Direction: "down"},
	}
	assert.NoError(t, validatePairing(paired))

	missingDown := []*migrationInfo{
		{Sequence: 1, Name: "init", Direction: "up"},
	}
	assert.Error(t, validatePairing(missingDown))

	missingUp := []*migrationInfo{
		{Sequence: 1, Name: "init", Direction: "down"},
	}
	assert.Error(t, validatePairing(missingUp))
}

func TestValidateSequence(t *testing.T) {
	ok := []*migrationInfo{
		{Sequence: 1}, {Sequence: 1}, {Sequence: 2}, {Sequence: 2},
	}
	assert.NoError(t, validateSequence(ok))

	startsAtTwo := []*migrationInfo{{Sequence: 2}}
	assert.Error(t, validateSequence(startsAtTwo))

	gap := []*migrationInfo{{Sequence: 1}, {Sequence: 3}}
	assert.Error(t, validateSequence(gap))
}
