package kairos

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, "test-key", "test-id")
}

func readPayload(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
	return payload
}

func TestSearchPersonFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/People/SearchPerson", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("key"))
		assert.Equal(t, "test-id", r.Header.Get("identifier"))

		payload := readPayload(t, r)
		assert.Equal(t, "4021", payload["Cracha"])
		assert.Equal(t, "true", payload["CarregarBiometrias"])

		_, _ = w.Write([]byte(`{
			"Sucesso": true,
			"Obj": [{
				"Id": 77,
				"Cracha": 4021,
				"Matricula": 118,
				"Nome": "Maria Souza",
				"DataDemissao": "01/01/1753 00:00:00",
				"Templates": [{"Dedo": 1}]
			}]
		}`))
	})

	person, err := client.SearchPerson(context.Background(), "4021")
	require.NoError(t, err)
	require.NotNil(t, person)
	assert.Equal(t, int64(77), person.ID)
	assert.Equal(t, "4021", person.Badge)
	assert.Equal(t, "118", person.Registration)
	assert.Equal(t, "Maria Souza", person.Name)
	assert.Equal(t, SentinelTermination, person.TerminationDate)
	assert.True(t, person.HasTemplates)
}

func TestSearchPersonNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Sucesso": true, "Obj": []}`))
	})

	person, err := client.SearchPerson(context.Background(), "999")
	require.NoError(t, err)
	assert.Nil(t, person)
}

func TestSearchPersonRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Sucesso": false, "Mensagem": "Chave inválida"}`))
	})

	_, err := client.SearchPerson(context.Background(), "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Chave inválida")
}

func TestSearchPersonTransportError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.SearchPerson(context.Background(), "1")
	require.Error(t, err)
}

// The API sometimes returns Obj as a JSON-encoded string instead of an
// array; the decoder must accept both.
func TestSearchPersonStringWrappedObj(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"Sucesso": true,
			"Obj": "[{\"Id\": 5, \"Cracha\": \"12\", \"Nome\": \"João Lima\", \"Template\": [1]}]"
		}`))
	})

	person, err := client.SearchPerson(context.Background(), "12")
	require.NoError(t, err)
	require.NotNil(t, person)
	assert.Equal(t, "João Lima", person.Name)
	assert.True(t, person.HasTemplates)
}

func TestSearchPeopleMapPaginates(t *testing.T) {
	var pages []int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		payload := readPayload(t, r)
		page := int(payload["Pagina"].(float64))
		pages = append(pages, page)

		if page == 1 {
			_, _ = w.Write([]byte(`{
				"Sucesso": true, "TotalPagina": 2,
				"Obj": [{"Cracha": "0042", "Matricula": 7, "Nome": "Ana"}]
			}`))
			return
		}
		_, _ = w.Write([]byte(`{
			"Sucesso": true, "TotalPagina": 2,
			"Obj": [{"Cracha": "51", "Matricula": 8, "Nome": "Bruno"}]
		}`))
	})

	people, err := client.SearchPeopleMap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, pages)
	require.Len(t, people, 2)

	ana, ok := people["42"] // keys are normalized, leading zeros stripped
	require.True(t, ok)
	assert.Equal(t, "0042", ana.Badge)
	assert.Equal(t, "Ana", ana.Name)
	assert.Equal(t, "7", ana.Registration)
}

func TestSearchClocks(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Clock/SearchClocks", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"Sucesso": true,
			"Obj": [{"RelogioNumero": 8, "RelogioNome": "REP Oficina"}]
		}`))
	})

	clocks, err := client.SearchClocks(context.Background())
	require.NoError(t, err)
	require.Len(t, clocks, 1)
	assert.Equal(t, 8, clocks[0].Number)
	assert.Equal(t, "REP Oficina", clocks[0].Name)
}

func TestAssociateClocksSendsCredentialFlags(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		payload := readPayload(t, r)
		assert.Equal(t, true, payload["EnviarListaCredenciais"])
		assert.Equal(t, true, payload["EnviarListaTemplate"])
		_, _ = w.Write([]byte(`{"Sucesso": true}`))
	})

	err := client.AssociateClocks(context.Background(), []string{"1", "2"}, []int{8})
	require.NoError(t, err)
}

func TestAssociateClocksRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Sucesso": false}`))
	})

	err := client.AssociateClocks(context.Background(), []string{"1"}, []int{8})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Erro na associação")
}

func TestScheduleCommandsForwardsFlags(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		payload := readPayload(t, r)
		assert.Equal(t, true, payload["EnviarCredenciais"])
		assert.Equal(t, false, payload["ColetarMarcacoes"])
		_, _ = w.Write([]byte(`{"Sucesso": true, "Mensagem": "Comandos agendados"}`))
	})

	detail, err := client.ScheduleCommands(context.Background(), []string{"1"},
		map[string]bool{"EnviarCredenciais": true, "ColetarMarcacoes": false}, []int{3})
	require.NoError(t, err)
	assert.Equal(t, "Comandos agendados", detail)
}

func TestMarkDismiss(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Dismiss/MarkDismiss", r.URL.Path)
		payload := readPayload(t, r)
		assert.Equal(t, float64(33), payload["PESSOAID"])
		assert.Equal(t, "01/02/2024", payload["DATA"])
		_, _ = w.Write([]byte(`{"Sucesso": true}`))
	})

	err := client.MarkDismiss(context.Background(), 33, "11-Rescisão", "01/02/2024")
	require.NoError(t, err)
}

func TestGetAppointmentsBadgeFilter(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		payload := readPayload(t, r)
		assert.Equal(t, []any{float64(4021)}, payload["CrachasPessoa"])
		assert.Nil(t, payload["IdsPessoa"])
		_, _ = w.Write([]byte(`{
			"Sucesso": true, "TotalPagina": 3,
			"Obj": [{"Matricula": 4021, "RelogioID": 8, "NumeroSerieRep": "A1",
				"Dia": 5, "Mes": 1, "Ano": 2024, "Hora": 7, "Minuto": 59}]
		}`))
	})

	page, err := client.GetAppointments(context.Background(), "01-01-2024", "05-01-2024", "4021", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Records, 1)
	rec := page.Records[0]
	assert.Equal(t, "4021", rec.Badge)
	assert.Equal(t, 8, rec.Device)
	assert.Equal(t, "A1", rec.Serial)
	assert.Equal(t, 59, rec.Minute)
}

func TestGetAppointmentsAllPeopleMarker(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		payload := readPayload(t, r)
		assert.Equal(t, []any{float64(0)}, payload["IdsPessoa"])
		assert.Nil(t, payload["CrachasPessoa"])
		_, _ = w.Write([]byte(`{"Sucesso": true, "TotalPagina": 1, "Obj": []}`))
	})

	page, err := client.GetAppointments(context.Background(), "01-01-2024", "05-01-2024", "", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalPages)
	assert.Empty(t, page.Records)
}

func TestNormalizeBadge(t *testing.T) {
	assert.Equal(t, "42", NormalizeBadge("0042"))
	assert.Equal(t, "42", NormalizeBadge(" 42 "))
	assert.Equal(t, "0", NormalizeBadge("0000"))
	assert.Equal(t, "0", NormalizeBadge(""))
}
