package seeds

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOID(t *testing.T) {
	cases := map[string]OID{
		`{"$oid":"5f1a2b3c4d5e6f7a8b9c0d1e"}`: "5f1a2b3c4d5e6f7a8b9c0d1e",
		`"5f1a2b3c4d5e6f7a8b9c0d1e"`:          "5f1a2b3c4d5e6f7a8b9c0d1e",
		`20123456`:                            "20123456",
		`null`:                                "",
	}
	for in, want := range cases {
		var got OID
		require.NoError(t, json.Unmarshal([]byte(in), &got), in)
		assert.Equal(t, want, got, in)
	}

	var bad OID
	assert.Error(t, json.Unmarshal([]byte(`{"$date":"2020-01-01"}`), &bad))
}

func TestText(t *testing.T) {
	cases := map[string]Text{
		`"  Ana "`:                   "Ana",
		`20123456`:                   "20123456",
		`{"$numberLong":"20123456"}`: "20123456",
		`{"$numberInt":"42"}`:        "42",
		`null`:                       "",
	}
	for in, want := range cases {
		var got Text
		require.NoError(t, json.Unmarshal([]byte(in), &got), in)
		assert.Equal(t, want, got, in)
	}
	assert.Nil(t, Text("").Ptr())
	assert.Equal(t, "x", *Text("x").Ptr())
}

func TestDate(t *testing.T) {
	want := time.Date(2021, 3, 4, 10, 30, 0, 0, time.UTC)
	ms := want.UnixMilli()

	cases := []string{
		`{"$date":"2021-03-04T10:30:00.000Z"}`,
		`{"$date":{"$numberLong":"` + jsonInt(ms) + `"}}`,
		`{"$date":` + jsonInt(ms) + `}`,
		`"2021-03-04T10:30:00Z"`,
		`"2021-03-04T07:30:00-03:00"`,
		`"2021-03-04 10:30:00"`,
		jsonInt(ms),
	}
	for _, in := range cases {
		var d Date
		require.NoError(t, json.Unmarshal([]byte(in), &d), in)
		assert.True(t, d.Equal(want), "%s decoded as %s", in, d.Time)
	}

	var day Date
	require.NoError(t, json.Unmarshal([]byte(`"1980-05-02"`), &day))
	assert.Equal(t, "1980-05-02", day.Format("2006-01-02"))

	var empty Date
	require.NoError(t, json.Unmarshal([]byte(`""`), &empty))
	assert.True(t, empty.IsZero())
	assert.Nil(t, empty.Ptr())

	var bad Date
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &bad))
}

func TestStringList(t *testing.T) {
	var l StringList
	require.NoError(t, json.Unmarshal([]byte(`["medic","", "admin"]`), &l))
	assert.Equal(t, StringList{"medic", "admin"}, l)

	require.NoError(t, json.Unmarshal([]byte(`"hemogram, thyroid"`), &l))
	assert.Equal(t, StringList{"hemogram", "thyroid"}, l)

	require.NoError(t, json.Unmarshal([]byte(`null`), &l))
	assert.Nil(t, l)
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
