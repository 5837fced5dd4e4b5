package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCSV(t *testing.T) {
	body := "\xEF\xBB\xBFName,Count,note,ignored\n" +
		"Dune,\"1,200\",\"=\"\"sci-fi\"\"\",x\n" +
		",,,\n" +
		"Emma,,,y\n"

	recs, err := DecodeCSV[widget](strings.NewReader(body), widgetSchema)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "Dune", recs[0].Name)
	assert.Equal(t, int64(1200), recs[0].Count)
	require.NotNil(t, recs[0].Note)
	assert.Equal(t, "sci-fi", *recs[0].Note)

	assert.Equal(t, "Emma", recs[1].Name)
	assert.Nil(t, recs[1].Note)
	assert.Zero(t, recs[1].Count)
}

func TestDecodeCSV_InvalidUTF8(t *testing.T) {
	recs, err := DecodeCSV[widget](strings.NewReader("name\nab\xffc\n"), widgetSchema)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "ab\uFFFDc", recs[0].Name)
}

func TestDecodeCSV_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		contains string
		code     string
	}{
		{"empty", "", "empty file", "FILE005"},
		{"only blank rows", "\n,,\n", "empty file", "FILE005"},
		{"missing required column", "note,count\nx,1\n", `missing required column "name"`, "FILE002"},
		{"bad number", "name,count\nDune,lots\n", "line 2", "FILE002"},
		{"bad quoting", "name\n\"unterminated\n", "invalid csv", "FILE002"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCSV[widget](strings.NewReader(tt.body), widgetSchema)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
			assert.Equal(t, tt.code, MapError(InvalidInput(err)).Code)
		})
	}
}

func TestCleanCell(t *testing.T) {
	assert.Equal(t, "value", CleanCell(` ="value" `))
	assert.Equal(t, "SUM(A1)", CleanCell("=SUM(A1)"))
	assert.Equal(t, "quoted", CleanCell(`'quoted'`))
	assert.Equal(t, "", CleanCell("   "))
}
