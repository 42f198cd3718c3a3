package kairos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SentinelTermination is the placeholder the Kairos API stores when an
// employee has no termination date set. It must never be read as a real
// dismissal.
const SentinelTermination = "01/01/1753 00:00:00"

// Person is the directory record behind one badge.
type Person struct {
	ID              int64
	Badge           string
	Registration    string
	Name            string
	TerminationDate string // raw API value, sentinel-aware consumers only
	HasTemplates    bool
}

// PersonSummary is the slim row returned by the bulk people listing.
type PersonSummary struct {
	Badge        string
	Registration string
	Name         string
}

// Clock is one attendance device.
type Clock struct {
	Number int    `json:"RelogioNumero"`
	Name   string `json:"RelogioNome"`
}

// Appointment is one raw clock-in/out record from the attendance feed.
type Appointment struct {
	Badge  string
	Device int
	Serial string
	Day    int
	Month  int
	Year   int
	Hour   int
	Minute int
}

// AppointmentPage is one page of the paginated attendance feed.
type AppointmentPage struct {
	Records    []Appointment
	TotalPages int
}

// Client calls the Kairos REST API.
type Client struct {
	BaseURL    string
	Key        string
	Identifier string
	HTTP       *http.Client
}

// New creates a client authenticated with the account key and identifier.
func New(baseURL, key, identifier string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Key:        key,
		Identifier: identifier,
		HTTP: &http.Client{
			Timeout: 30 * time.Second, // bulk commands can take a while server-side
		},
	}
}

// envelope is the common Kairos response wrapper. Obj is kept raw because
// the server sometimes returns it as a JSON-encoded string instead of an
// array.
type envelope struct {
	Sucesso     bool            `json:"Sucesso"`
	Mensagem    string          `json:"Mensagem"`
	TotalPagina int             `json:"TotalPagina"`
	Obj         json.RawMessage `json:"Obj"`
}

func (c *Client) post(ctx context.Context, path string, payload any) (*envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("key", c.Key)
	req.Header.Set("identifier", c.Identifier)
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kairos request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("kairos error %s", resp.Status)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &env, nil
}

// flexString decodes a field the API serves either as a JSON string or a
// number. Badges keep their leading zeros when sent as strings.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = flexString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

// decodeObj unwraps the Obj field, tolerating the string-wrapped variant.
func decodeObj(raw json.RawMessage, out any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return fmt.Errorf("invalid Obj payload: %w", err)
		}
		if inner == "" {
			return nil
		}
		raw = json.RawMessage(inner)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("invalid Obj payload: %w", err)
	}
	return nil
}

type personObj struct {
	ID           int64           `json:"Id"`
	Cracha       flexString      `json:"Cracha"`
	Matricula    flexString      `json:"Matricula"`
	Nome         string          `json:"Nome"`
	DataDemissao string          `json:"DataDemissao"`
	Template     json.RawMessage `json:"Template"`
	Templates    json.RawMessage `json:"Templates"`
}

func hasEntries(raw json.RawMessage) bool {
	var entries []json.RawMessage
	if err := decodeObj(raw, &entries); err != nil {
		return false
	}
	return len(entries) > 0
}

// SearchPerson looks up one badge with biometric templates loaded.
// A badge unknown to the directory returns (nil, nil); eligibility rules
// are the caller's concern, this only reports what the API said.
func (c *Client) SearchPerson(ctx context.Context, badge string) (*Person, error) {
	env, err := c.post(ctx, "/People/SearchPerson", map[string]any{
		"Cracha":             badge,
		"CarregarBiometrias": "true",
	})
	if err != nil {
		return nil, err
	}
	if !env.Sucesso {
		return nil, remoteError(env.Mensagem)
	}

	var people []personObj
	if err := decodeObj(env.Obj, &people); err != nil {
		return nil, err
	}
	if len(people) == 0 {
		return nil, nil
	}

	p := people[0]
	return &Person{
		ID:              p.ID,
		Badge:           string(p.Cracha),
		Registration:    string(p.Matricula),
		Name:            p.Nome,
		TerminationDate: p.DataDemissao,
		HasTemplates:    hasEntries(p.Template) || hasEntries(p.Templates),
	}, nil
}

// SearchPeopleMap lists the whole directory, paginating until the
// server-reported page count is exhausted. Keys are normalized badges.
func (c *Client) SearchPeopleMap(ctx context.Context) (map[string]PersonSummary, error) {
	people := make(map[string]PersonSummary)
	page, totalPages := 1, 1
	for page <= totalPages {
		env, err := c.post(ctx, "/People/SearchPeople", map[string]any{"Pagina": page})
		if err != nil {
			return nil, err
		}
		if !env.Sucesso {
			return nil, remoteError(env.Mensagem)
		}

		var rows []personObj
		if err := decodeObj(env.Obj, &rows); err != nil {
			return nil, err
		}
		for _, row := range rows {
			badge := string(row.Cracha)
			people[NormalizeBadge(badge)] = PersonSummary{
				Badge:        badge,
				Registration: string(row.Matricula),
				Name:         row.Nome,
			}
		}

		if env.TotalPagina > 0 {
			totalPages = env.TotalPagina
		}
		page++
	}
	return people, nil
}

// SearchClocks lists every registered attendance device.
func (c *Client) SearchClocks(ctx context.Context) ([]Clock, error) {
	env, err := c.post(ctx, "/Clock/SearchClocks", map[string]any{"TodosRelogios": "true"})
	if err != nil {
		return nil, err
	}
	if !env.Sucesso {
		return nil, remoteError(env.Mensagem)
	}
	var clocks []Clock
	if err := decodeObj(env.Obj, &clocks); err != nil {
		return nil, err
	}
	return clocks, nil
}

// AssociateClocks links the badges to the given devices and pushes their
// credential and template lists.
func (c *Client) AssociateClocks(ctx context.Context, badges []string, clocks []int) error {
	env, err := c.post(ctx, "/Clock/AssociateClocks", map[string]any{
		"PessoaCracha":           badges,
		"RelogioNumero":          clocks,
		"EnviarListaCredenciais": true,
		"EnviarListaTemplate":    true,
	})
	if err != nil {
		return err
	}
	if !env.Sucesso {
		return remoteError(orDefault(env.Mensagem, "Erro na associação"))
	}
	return nil
}

// UnassociateClocks unlinks the badges from the given devices. Callers
// treat this as best-effort and only log a failure.
func (c *Client) UnassociateClocks(ctx context.Context, badges []string, clocks []int) error {
	env, err := c.post(ctx, "/Clock/UnassociateClocks", map[string]any{
		"PessoaCracha":  badges,
		"RelogioNumero": clocks,
	})
	if err != nil {
		return err
	}
	if !env.Sucesso {
		return remoteError(env.Mensagem)
	}
	return nil
}

// ScheduleCommands queues the flagged commands for the badges on the given
// devices. The option flags are forwarded verbatim; their semantics belong
// to the Kairos side.
func (c *Client) ScheduleCommands(ctx context.Context, badges []string, options map[string]bool, clocks []int) (string, error) {
	payload := map[string]any{
		"PessoaCracha":  badges,
		"RelogioNumero": clocks,
	}
	for name, value := range options {
		payload[name] = value
	}

	env, err := c.post(ctx, "/Clock/ScheduleCommands", payload)
	if err != nil {
		return "", err
	}
	if !env.Sucesso {
		return "", remoteError(orDefault(env.Mensagem, "Falha no agendamento"))
	}
	return env.Mensagem, nil
}

// MarkDismiss registers a dismissal for one person.
func (c *Client) MarkDismiss(ctx context.Context, personID int64, reason, date string) error {
	env, err := c.post(ctx, "/Dismiss/MarkDismiss", map[string]any{
		"PESSOAID": personID,
		"MOTIVO":   reason,
		"DATA":     date,
	})
	if err != nil {
		return err
	}
	if !env.Sucesso {
		return remoteError(orDefault(env.Mensagem, "Erro no desligamento"))
	}
	return nil
}

type appointmentObj struct {
	Matricula      flexString `json:"Matricula"`
	RelogioID      int        `json:"RelogioID"`
	NumeroSerieRep string     `json:"NumeroSerieRep"`
	Dia            int        `json:"Dia"`
	Mes            int        `json:"Mes"`
	Ano            int        `json:"Ano"`
	Hora           int        `json:"Hora"`
	Minuto         int        `json:"Minuto"`
}

// GetAppointments fetches one page of attendance records for the date
// range. badge restricts the feed to a single person; empty means
// everyone. Dates use the dd-mm-yyyy wire format.
func (c *Client) GetAppointments(ctx context.Context, startDate, endDate, badge string, page int) (*AppointmentPage, error) {
	payload := map[string]any{
		"DataInicio":           startDate,
		"DataFim":              endDate,
		"CalculoNaoAtualizado": "true",
		"Pagina":               page,
		"ResponseType":         "AS400V1",
	}
	if badge != "" {
		n, err := badgeAsInt(badge)
		if err != nil {
			return nil, err
		}
		payload["CrachasPessoa"] = []int64{n}
	} else {
		payload["IdsPessoa"] = []int{0}
	}

	env, err := c.post(ctx, "/Appointment/GetAppointmentsV2", payload)
	if err != nil {
		return nil, err
	}
	if !env.Sucesso {
		return nil, remoteError(orDefault(env.Mensagem, "Erro desconhecido na API"))
	}

	var rows []appointmentObj
	if err := decodeObj(env.Obj, &rows); err != nil {
		return nil, err
	}

	out := &AppointmentPage{TotalPages: 1}
	if env.TotalPagina > 0 {
		out.TotalPages = env.TotalPagina
	}
	for _, row := range rows {
		out.Records = append(out.Records, Appointment{
			Badge:  string(row.Matricula),
			Device: row.RelogioID,
			Serial: row.NumeroSerieRep,
			Day:    row.Dia,
			Month:  row.Mes,
			Year:   row.Ano,
			Hour:   row.Hora,
			Minute: row.Minuto,
		})
	}
	return out, nil
}

func remoteError(msg string) error {
	if msg == "" {
		msg = "Erro desconhecido"
	}
	return fmt.Errorf("kairos: %s", msg)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
