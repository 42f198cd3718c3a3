package report

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestDocumentWritesHeaderAndLines(t *testing.T) {
	w := NewWriter(t.TempDir())

	path, err := w.Document("relatorio_teste", "Data de Processamento: 01/02/2024 08:30:00", []string{
		"Crachá: 4021, Nome: Maria Souza",
		"Crachá: 118, Nome: João Lima",
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"Data de Processamento: 01/02/2024 08:30:00\n"+
			"Crachá: 4021, Nome: Maria Souza\n"+
			"Crachá: 118, Nome: João Lima\n",
		string(data))
	assert.Contains(t, path, "relatorio_teste.txt")
}

func TestJSONWritesIndentedArtifact(t *testing.T) {
	w := NewWriter(t.TempDir())

	path, err := w.JSON("falhas_teste", []map[string]string{{"cracha": "999"}})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out []map[string]string
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out, 1)
	assert.Equal(t, "999", out[0]["cracha"])
}

func TestAppointmentsXLSX(t *testing.T) {
	data, err := AppointmentsXLSX([]AppointmentRow{
		{Badge: "4021", Device: 8, Serial: "REP008", Date: "01/02/2024", Time: "08:30"},
		{Badge: "118", Device: 1, Serial: "REP001", Date: "01/02/2024", Time: "09:00"},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Relatorio")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Matricula", "RelogioID", "NumeroSerieRep", "DataFormatada", "HoraFormatada"}, rows[0])
	assert.Equal(t, []string{"4021", "8", "REP008", "01/02/2024", "08:30"}, rows[1])
	assert.Equal(t, "118", rows[2][0])
}

func TestAppointmentsXLSXEmpty(t *testing.T) {
	data, err := AppointmentsXLSX(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Relatorio")
	require.NoError(t, err)
	require.Len(t, rows, 1, "header only")
}
