// Package appointments implements the attendance query pipeline:
// validation, paginated fetch, identity and location enrichment,
// filtering and ordering.
package appointments

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"ponto/internal/kairos"
	"ponto/internal/locations"
)

// Span limits in days. A single-badge query may cover a longer range
// because it returns far fewer rows.
const (
	maxSpanWithBadge = 60
	maxSpanDefault   = 5
)

const wireDateFormat = "02-01-2006"

// Directory is the remote API surface the engine needs. *kairos.Client
// satisfies it.
type Directory interface {
	SearchPerson(ctx context.Context, badge string) (*kairos.Person, error)
	SearchPeopleMap(ctx context.Context) (map[string]kairos.PersonSummary, error)
	GetAppointments(ctx context.Context, startDate, endDate, badge string, page int) (*kairos.AppointmentPage, error)
}

// PeopleCache keeps the expensive paginated people listing warm between
// queries.
type PeopleCache interface {
	Get(ctx context.Context) (map[string]kairos.PersonSummary, bool)
	Put(ctx context.Context, people map[string]kairos.PersonSummary)
}

// Query is one attendance search.
type Query struct {
	StartDate string // dd-mm-yyyy
	EndDate   string // dd-mm-yyyy
	Badge     string // optional single-badge filter
	Location  string // optional location filter, locations.All disables it
}

// Record is one enriched attendance event.
type Record struct {
	Badge        string `json:"Matricula"`
	DisplayBadge string `json:"MatriculaExibicao,omitempty"`
	Name         string `json:"Nome"`
	Device       int    `json:"RelogioID"`
	Serial       string `json:"NumeroSerieRep"`
	Location     string `json:"Local"`
	Day          int    `json:"Dia"`
	Month        int    `json:"Mes"`
	Year         int    `json:"Ano"`
	Hour         int    `json:"Hora"`
	Minute       int    `json:"Minuto"`
	Date         string `json:"DataFormatada"`
	Time         string `json:"HoraFormatada"`
}

// ValidationError rejects a query before any remote call is made.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// Engine runs attendance queries.
type Engine struct {
	dir   Directory
	table *locations.Table
	cache PeopleCache
}

// NewEngine creates an engine. cache may be nil to always hit the
// directory.
func NewEngine(dir Directory, table *locations.Table, cache PeopleCache) *Engine {
	return &Engine{dir: dir, table: table, cache: cache}
}

// Search validates the query, fetches every page of the range, enriches
// the records with identity and location, filters and sorts them.
func (e *Engine) Search(ctx context.Context, q Query) ([]Record, error) {
	start, err := parseDate(q.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseDate(q.EndDate)
	if err != nil {
		return nil, err
	}

	badge := strings.TrimSpace(q.Badge)
	if badge != "" && !isNumeric(badge) {
		return nil, validationf("a matrícula deve ser um número")
	}

	limit := maxSpanDefault
	if badge != "" {
		limit = maxSpanWithBadge
	}
	if span := spanDays(start, end); span > limit {
		queriesTotal.WithLabelValues("rejected").Inc()
		return nil, validationf("o intervalo máximo é de %d dias", limit)
	}

	records, err := e.fetchAll(ctx, start.Format(wireDateFormat), end.Format(wireDateFormat), badge)
	if err != nil {
		queriesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	e.enrichIdentity(ctx, badge, records)
	for i := range records {
		records[i].Location = e.table.LocationOf(records[i].Device)
	}

	if q.Location != "" && q.Location != locations.All {
		filtered := records[:0]
		for _, rec := range records {
			if rec.Location == q.Location {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if a.Hour != b.Hour {
			return a.Hour < b.Hour
		}
		return a.Minute < b.Minute
	})

	for i := range records {
		records[i].Date = fmt.Sprintf("%02d/%02d/%04d", records[i].Day, records[i].Month, records[i].Year)
		records[i].Time = fmt.Sprintf("%02d:%02d", records[i].Hour, records[i].Minute)
	}

	queriesTotal.WithLabelValues("ok").Inc()
	return records, nil
}

// fetchAll pulls every page, re-reading the server's page count each
// response. Any page error aborts the whole fetch: a partially paginated
// range cannot be safely resumed.
func (e *Engine) fetchAll(ctx context.Context, startDate, endDate, badge string) ([]Record, error) {
	var records []Record
	page, totalPages := 1, 1
	for page <= totalPages {
		resp, err := e.dir.GetAppointments(ctx, startDate, endDate, badge, page)
		if err != nil {
			return nil, err
		}
		for _, r := range resp.Records {
			records = append(records, Record{
				Badge:  r.Badge,
				Device: r.Device,
				Serial: r.Serial,
				Day:    r.Day,
				Month:  r.Month,
				Year:   r.Year,
				Hour:   r.Hour,
				Minute: r.Minute,
			})
		}
		if resp.TotalPages > 0 {
			totalPages = resp.TotalPages
		}
		page++
	}
	return records, nil
}

// enrichIdentity joins names and display badges onto the records. With a
// badge filter a single person lookup covers everything; otherwise the
// full people map is used. Enrichment is best-effort: a directory failure
// leaves names empty rather than discarding the attendance data.
func (e *Engine) enrichIdentity(ctx context.Context, badge string, records []Record) {
	if badge != "" {
		person, err := e.dir.SearchPerson(ctx, badge)
		if err != nil {
			log.Printf("identity lookup for badge %s failed: %v", badge, err)
			return
		}
		if person == nil {
			return
		}
		norm := kairos.NormalizeBadge(badge)
		for i := range records {
			if kairos.NormalizeBadge(records[i].Badge) == norm {
				records[i].Name = person.Name
				records[i].DisplayBadge = person.Registration
			}
		}
		return
	}

	people := e.peopleMap(ctx)
	for i := range records {
		if p, ok := people[kairos.NormalizeBadge(records[i].Badge)]; ok {
			records[i].Name = p.Name
			records[i].DisplayBadge = p.Registration
		}
	}
}

func (e *Engine) peopleMap(ctx context.Context) map[string]kairos.PersonSummary {
	if e.cache != nil {
		if people, ok := e.cache.Get(ctx); ok {
			return people
		}
	}
	people, err := e.dir.SearchPeopleMap(ctx)
	if err != nil {
		log.Printf("people listing failed: %v", err)
		return nil
	}
	if e.cache != nil {
		e.cache.Put(ctx, people)
	}
	return people
}

// parseDate parses a dd-mm-yyyy date, first truncating a year segment
// longer than four digits. Some calendar widgets emit years like "20244"
// when users type over a prefilled value.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if parts := strings.Split(s, "-"); len(parts) == 3 && len(parts[2]) > 4 {
		parts[2] = parts[2][:4]
		s = strings.Join(parts, "-")
	}
	t, err := time.Parse(wireDateFormat, s)
	if err != nil {
		return time.Time{}, validationf("data inválida: %q", s)
	}
	return t, nil
}

func spanDays(start, end time.Time) int {
	days := int(end.Sub(start).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
