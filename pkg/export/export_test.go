package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roster() Dataset {
	return Dataset{
		Title:   "Users",
		Headers: []string{"Registration", "Name", "Role"},
		Rows: [][]string{
			{"S100", "Ana, Putri", "student"},
			{"T7", "Budi", "teacher"},
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat(" PDF ")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestCSVRendererQuotesCells(t *testing.T) {
	out, err := For(FormatCSV).Render(roster())
	require.NoError(t, err)
	assert.Equal(t, "Registration,Name,Role\nS100,\"Ana, Putri\",student\nT7,Budi,teacher\n", string(out))
}

func TestPDFRendererProducesDocument(t *testing.T) {
	r := For(FormatPDF)
	out, err := r.Render(roster())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Equal(t, "application/pdf", r.ContentType())
}

func TestRenderRejectsRaggedRows(t *testing.T) {
	data := roster()
	data.Rows = append(data.Rows, []string{"only-one"})

	_, err := CSVRenderer{}.Render(data)
	assert.Error(t, err)
	_, err = PDFRenderer{}.Render(Dataset{})
	assert.Error(t, err)
}
