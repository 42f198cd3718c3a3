package batch

import (
	"context"
	"strings"

	"ponto/internal/kairos"
)

// Messages carried into failure lists and artifacts. These are
// operator-facing and match what the clock administrators expect to read.
const (
	MsgNoBiometrics = "Não possui Biometria"
	MsgDismissed    = "Funcionário Desligado"
	MsgNotFound     = "Crachá não encontrado"
)

// DismissReason is the fixed legal reason code sent with every dismissal.
const DismissReason = "11-Rescisão sem justa causa por iniciativa do empregador"

// Directory is the remote workforce API surface the batch pipeline needs.
// *kairos.Client satisfies it.
type Directory interface {
	SearchPerson(ctx context.Context, badge string) (*kairos.Person, error)
	SearchClocks(ctx context.Context) ([]kairos.Clock, error)
	AssociateClocks(ctx context.Context, badges []string, clocks []int) error
	UnassociateClocks(ctx context.Context, badges []string, clocks []int) error
	ScheduleCommands(ctx context.Context, badges []string, options map[string]bool, clocks []int) (string, error)
	MarkDismiss(ctx context.Context, personID int64, reason, date string) error
}

// Resolution is the outcome of looking one badge up in the directory.
type Resolution struct {
	Badge  string
	Person *kairos.Person // nil when the lookup itself failed

	// Eligible means the remote action may proceed for this badge.
	// MissingBiometrics is the one soft case: the action is still
	// attempted, but the absence is reported alongside.
	Eligible          bool
	MissingBiometrics bool
	Reason            string
	TerminationDate   string // short date, only set for dismissed employees
}

// Resolver turns badges into directory records, applying the eligibility
// rules.
type Resolver struct {
	dir Directory
}

// NewResolver creates a resolver backed by the directory.
func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve looks up one badge. The biometric-template check runs before the
// termination check; a dismissed employee without templates reports the
// missing biometrics, not the dismissal.
func (r *Resolver) Resolve(ctx context.Context, badge string) Resolution {
	person, err := r.dir.SearchPerson(ctx, badge)
	if err != nil {
		return Resolution{Badge: badge, Reason: err.Error()}
	}
	if person == nil {
		return Resolution{Badge: badge, Reason: MsgNotFound}
	}

	if !person.HasTemplates {
		return Resolution{
			Badge:             badge,
			Person:            person,
			MissingBiometrics: true,
			Reason:            MsgNoBiometrics,
		}
	}

	if person.TerminationDate != "" && person.TerminationDate != kairos.SentinelTermination {
		short, _, _ := strings.Cut(person.TerminationDate, " ")
		return Resolution{
			Badge:           badge,
			Person:          person,
			Reason:          MsgDismissed,
			TerminationDate: short,
		}
	}

	return Resolution{Badge: badge, Person: person, Eligible: true}
}
