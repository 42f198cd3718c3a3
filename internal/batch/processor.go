package batch

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Mode selects which remote operation a batch performs.
type Mode string

const (
	ModeScheduleCommand Mode = "envio_comando"
	ModeAssociate       Mode = "associacao"
	ModeDismiss         Mode = "desligamento"
)

// Batch is one run over a list of badges. Badges drives ScheduleCommand
// and Associate mode; Dismissals drives Dismiss mode.
type Batch struct {
	Mode       Mode
	Badges     []string
	Dismissals []Dismissal
	Options    map[string]bool
	Clocks     []int
}

// Entry is one successfully attempted badge.
type Entry struct {
	Badge           string `json:"cracha"`
	Name            string `json:"nome"`
	TerminationDate string `json:"dataDesligamento,omitempty"`
}

// Failure is one reported per-badge failure. Success stays true for
// missing-biometrics entries: the action was still attempted for them.
type Failure struct {
	Badge           string `json:"cracha"`
	Name            string `json:"nome"`
	Success         bool   `json:"sucesso"`
	Message         string `json:"mensagem"`
	TerminationDate string `json:"dataDesligamento,omitempty"`
}

// Outcome is the full result of a batch run. Every list preserves the
// input badge order.
type Outcome struct {
	RunID     string
	Successes []Entry
	Failures  []Failure

	// BulkFailures covers the all-or-nothing remote calls of
	// ScheduleCommand and Associate mode; one message spans every badge
	// attempted in that call.
	BulkFailures []string

	Detail          string
	SuccessArtifact string
	FailureArtifact string
}

// Artifacts persists the durable outputs of a run.
type Artifacts interface {
	Document(name, header string, lines []string) (string, error)
	JSON(name string, v any) (string, error)
}

// ValidationError rejects a batch before any remote call is made.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// ErrNoBadges is returned when parsing left no usable badge.
var ErrNoBadges = &ValidationError{msg: "nenhum crachá válido informado"}

// Processor drives a batch end to end: resolution, the mode's remote
// operation, and artifact generation.
type Processor struct {
	dir       Directory
	resolver  *Resolver
	artifacts Artifacts
	now       func() time.Time
}

// NewProcessor creates a processor. artifacts may be nil, in which case no
// files are written.
func NewProcessor(dir Directory, artifacts Artifacts) *Processor {
	return &Processor{
		dir:       dir,
		resolver:  NewResolver(dir),
		artifacts: artifacts,
		now:       time.Now,
	}
}

// Run executes one batch. Per-badge failures are recorded in the outcome,
// never returned as errors; the only error is an empty badge list.
func (p *Processor) Run(ctx context.Context, b Batch) (*Outcome, error) {
	badges := b.Badges
	if b.Mode == ModeDismiss {
		badges = make([]string, 0, len(b.Dismissals))
		for _, d := range b.Dismissals {
			badges = append(badges, d.Badge)
		}
	}
	if len(badges) == 0 {
		runsTotal.WithLabelValues(string(b.Mode), "rejected").Inc()
		return nil, ErrNoBadges
	}

	out := &Outcome{RunID: uuid.NewString()}

	// Resolution pass. Missing-biometrics badges land in both the attempt
	// set and the failure list: the command is still sent for them, the
	// absence is reported anyway.
	var attempts []Resolution
	for _, badge := range badges {
		res := p.resolver.Resolve(ctx, badge)
		if res.Eligible || res.MissingBiometrics {
			attempts = append(attempts, res)
		}
		if !res.Eligible {
			out.Failures = append(out.Failures, Failure{
				Badge:           res.Badge,
				Name:            resolvedName(res),
				Success:         res.MissingBiometrics,
				Message:         res.Reason,
				TerminationDate: res.TerminationDate,
			})
		}
	}

	switch b.Mode {
	case ModeDismiss:
		p.runDismissals(ctx, b, attempts, out)
	case ModeAssociate:
		p.runAssociation(ctx, b, attempts, out)
	default:
		p.runSchedule(ctx, b, attempts, out)
	}

	p.writeArtifacts(ctx, b, out)

	result := "ok"
	if len(out.BulkFailures) > 0 {
		result = "bulk_failure"
	}
	runsTotal.WithLabelValues(string(b.Mode), result).Inc()
	badgeFailuresTotal.Add(float64(len(out.Failures)))
	return out, nil
}

func (p *Processor) runSchedule(ctx context.Context, b Batch, attempts []Resolution, out *Outcome) {
	if len(attempts) == 0 {
		return
	}
	detail, err := p.dir.ScheduleCommands(ctx, badgeList(attempts), b.Options, b.Clocks)
	if err != nil {
		out.BulkFailures = append(out.BulkFailures, err.Error())
		return
	}
	out.Detail = detail
	for _, res := range attempts {
		out.Successes = append(out.Successes, Entry{Badge: res.Badge, Name: resolvedName(res)})
	}
}

func (p *Processor) runAssociation(ctx context.Context, b Batch, attempts []Resolution, out *Outcome) {
	if len(attempts) == 0 {
		return
	}
	badges := badgeList(attempts)

	// Intentional best-effort: clearing stale associations must never
	// block the association itself.
	if err := p.dir.UnassociateClocks(ctx, badges, b.Clocks); err != nil {
		log.Printf("unassociate before associate failed: %v", err)
	}

	if err := p.dir.AssociateClocks(ctx, badges, b.Clocks); err != nil {
		out.BulkFailures = append(out.BulkFailures, err.Error())
		return
	}
	for _, res := range attempts {
		out.Successes = append(out.Successes, Entry{Badge: res.Badge, Name: resolvedName(res)})
	}
}

func (p *Processor) runDismissals(ctx context.Context, b Batch, attempts []Resolution, out *Outcome) {
	dates := make(map[string]Dismissal, len(b.Dismissals))
	for _, d := range b.Dismissals {
		if _, ok := dates[d.Badge]; !ok {
			dates[d.Badge] = d
		}
	}
	for _, res := range attempts {
		date := dates[res.Badge].Date()
		if err := p.dir.MarkDismiss(ctx, res.Person.ID, DismissReason, date); err != nil {
			out.Failures = append(out.Failures, Failure{
				Badge:   res.Badge,
				Name:    resolvedName(res),
				Message: err.Error(),
			})
			continue
		}
		out.Successes = append(out.Successes, Entry{
			Badge:           res.Badge,
			Name:            resolvedName(res),
			TerminationDate: date,
		})
	}
}

func (p *Processor) writeArtifacts(ctx context.Context, b Batch, out *Outcome) {
	if p.artifacts == nil {
		return
	}
	suffix := fmt.Sprintf("%s_%s", b.Mode, out.RunID[:8])

	if len(out.Failures) > 0 {
		path, err := p.artifacts.JSON("falhas_"+suffix, out.Failures)
		if err != nil {
			log.Printf("failure artifact write failed: %v", err)
		} else {
			out.FailureArtifact = path
		}
	}

	if len(out.Successes) > 0 {
		lines := make([]string, 0, len(out.Successes))
		for _, e := range out.Successes {
			line := fmt.Sprintf("Crachá: %s, Nome: %s", e.Badge, e.Name)
			if b.Mode == ModeDismiss {
				line += ", Data de Desligamento: " + e.TerminationDate
			}
			lines = append(lines, line)
		}
		path, err := p.artifacts.Document("relatorio_"+suffix, p.header(ctx, b), lines)
		if err != nil {
			log.Printf("success artifact write failed: %v", err)
		} else {
			out.SuccessArtifact = path
		}
	}
}

// header builds the document artifact's header block: processing
// timestamp plus, for clock-targeting modes, the selected clocks and the
// enabled command flags.
func (p *Processor) header(ctx context.Context, b Batch) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Data de Processamento: %s\n", p.now().Format("02/01/2006 15:04:05"))
	if b.Mode == ModeDismiss {
		return sb.String()
	}

	sb.WriteString("Relógios Selecionados:\n")
	clocks, err := p.dir.SearchClocks(ctx)
	if err != nil {
		log.Printf("clock listing for report header failed: %v", err)
	}
	for _, c := range clocks {
		if slices.Contains(b.Clocks, c.Number) {
			fmt.Fprintf(&sb, "Código: %d - Descrição: %s\n", c.Number, c.Name)
		}
	}

	sb.WriteString("\nComandos Selecionados:\n")
	names := make([]string, 0, len(b.Options))
	for name, on := range b.Options {
		if on {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		sb.WriteString("- " + name + "\n")
	}
	return sb.String()
}

func badgeList(attempts []Resolution) []string {
	badges := make([]string, len(attempts))
	for i, res := range attempts {
		badges[i] = res.Badge
	}
	return badges
}

func resolvedName(res Resolution) string {
	if res.Person == nil {
		return ""
	}
	return res.Person.Name
}
