package seeds

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadSeedSet(t *testing.T) {
	set, rep := buildFixture(t, DefaultOptions())
	dir := t.TempDir()

	require.NoError(t, WriteSeedSet(dir, set, rep))
	for _, name := range []string{FileUsers, FileLicenses, FilePatients, FileEncounters,
		FileAppointments, FileStudies, FileResults, FileReport} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	got, err := ReadSeedSet(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, set.Counts(), got.Counts())

	assert.Equal(t, legacyHash, got.Users[0].PasswordHash, "password hash survives the seed files")
	assert.Equal(t, set.Users[0].ID, got.Users[0].ID)

	var synthesized int
	for _, p := range got.Patients {
		if p.Synthesized {
			synthesized++
		}
	}
	assert.Equal(t, 2, synthesized)
	assert.Equal(t, []string{"hemogram", "renal"}, got.Studies[0].Types)
}

func TestWriteSeedSet_EmptyCollections(t *testing.T) {
	dir := t.TempDir()
	set, rep := Build(&Dump{}, DefaultOptions())
	require.NoError(t, WriteSeedSet(dir, set, rep))

	b, err := os.ReadFile(filepath.Join(dir, FilePatients))
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(b))

	got, err := ReadSeedSet(context.Background(), dir)
	require.NoError(t, err)
	assert.Empty(t, got.Patients)
}

func TestReadSeedSet_MissingFile(t *testing.T) {
	_, err := ReadSeedSet(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read seeds")
}
