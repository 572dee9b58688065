package seeds

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDocs_Array(t *testing.T) {
	docs, bad, err := decodeDocs[LegacyPatient](strings.NewReader(`
		[{"_id":{"$oid":"a1"},"firstName":"Ana"},{"_id":{"$oid":"a2"},"firstName":"Luis"}]`))
	require.NoError(t, err)
	assert.Empty(t, bad)
	require.Len(t, docs, 2)
	assert.Equal(t, OID("a2"), docs[1].ID)
}

func TestDecodeDocs_NDJSON(t *testing.T) {
	in := "\xef\xbb\xbf{\"_id\":{\"$oid\":\"a1\"}}\n\n{\"_id\":{\"$oid\":\"a2\"}}\n"
	docs, _, err := decodeDocs[LegacyPatient](strings.NewReader(in))
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestDecodeDocs_Empty(t *testing.T) {
	docs, _, err := decodeDocs[LegacyPatient](strings.NewReader("  \n"))
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestDecodeDocs_Malformed(t *testing.T) {
	_, _, err := decodeDocs[LegacyPatient](strings.NewReader("{\"_id\":\"a1\"}\n{\"_id\":"))
	assert.ErrorContains(t, err, "document 2")
}

func TestDecodeDocs_BadFieldDropsOnlyItsDocument(t *testing.T) {
	docs, bad, err := decodeDocs[LegacyEncounter](strings.NewReader(
		`[{"_id":"e1","data":"free text"},{"_id":{"$oid":"e2"},"data":{"a":1}},{"data":[]}]`))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, OID("e2"), docs[0].ID)

	require.Len(t, bad, 2)
	assert.Equal(t, "e1", bad[0].LegacyID)
	assert.Contains(t, bad[0].Err, "document 1")
	assert.Empty(t, bad[1].LegacyID)
	assert.Contains(t, bad[1].Err, "document 3")
}

func TestLoadDump(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), []byte(body), 0o644))
	}
	write(CollUsers, `[{"_id":{"$oid":"u1"},"username":"jperez","roles":"medic"}]`)
	write(CollPatients, "{\"_id\":\"p1\",\"documentValue\":20123456}\n{\"_id\":\"p2\"}\n")
	write(CollResults, `[]`)

	d, err := LoadDump(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, d.Users, 1)
	assert.Equal(t, StringList{"medic"}, d.Users[0].Roles)
	assert.Len(t, d.Patients, 2)
	assert.Equal(t, Text("20123456"), d.Patients[0].DocumentValue)
	assert.ElementsMatch(t, []string{CollLicenses, CollEncounters, CollAppointments, CollStudies}, d.Missing)
	assert.Equal(t, 2, d.Counts()[CollPatients])
}

func TestLoadDump_BadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "studies.json"), []byte(`[{"_id":`), 0o644))

	_, err := LoadDump(context.Background(), dir)
	assert.ErrorContains(t, err, "studies")
}

func TestLoadDump_MalformedDocument(t *testing.T) {
	dir := t.TempDir()
	body := "{\"_id\":\"p1\",\"firstName\":\"Ana\",\"birthDate\":\"1980-12-31\"}\n" +
		"{\"_id\":\"p2\",\"firstName\":\"Luis\",\"birthDate\":\"31-12-1980\"}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "patients.json"), []byte(body), 0o644))

	d, err := LoadDump(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, d.Patients, 1)
	assert.Equal(t, OID("p1"), d.Patients[0].ID)

	require.Len(t, d.Malformed, 1)
	assert.Equal(t, CollPatients, d.Malformed[0].Collection)
	assert.Equal(t, "p2", d.Malformed[0].LegacyID)
	assert.Contains(t, d.Malformed[0].Err, "31-12-1980")
	assert.Equal(t, 2, d.Counts()[CollPatients])

	_, rep := Build(d, DefaultOptions())
	assert.Equal(t, 1, rep.Skips(ReasonMalformedDocument))
}
