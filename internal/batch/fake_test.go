package batch

import (
	"context"

	"ponto/internal/kairos"
)

// fakeDirectory scripts the remote API for processor and resolver tests.
type fakeDirectory struct {
	people    map[string]*kairos.Person
	personErr map[string]error

	clocks    []kairos.Clock
	clocksErr error

	scheduledBadges []string
	scheduleOpts    map[string]bool
	scheduleClocks  []int
	scheduleErr     error
	detail          string

	associatedBadges   []string
	associateErr       error
	unassociatedBadges []string
	unassociateErr     error

	dismissed   map[int64]string // person id -> date
	dismissErrs map[int64]error
}

func (f *fakeDirectory) SearchPerson(_ context.Context, badge string) (*kairos.Person, error) {
	if err, ok := f.personErr[badge]; ok {
		return nil, err
	}
	return f.people[badge], nil
}

func (f *fakeDirectory) SearchClocks(context.Context) ([]kairos.Clock, error) {
	return f.clocks, f.clocksErr
}

func (f *fakeDirectory) AssociateClocks(_ context.Context, badges []string, _ []int) error {
	f.associatedBadges = append(f.associatedBadges, badges...)
	return f.associateErr
}

func (f *fakeDirectory) UnassociateClocks(_ context.Context, badges []string, _ []int) error {
	f.unassociatedBadges = append(f.unassociatedBadges, badges...)
	return f.unassociateErr
}

func (f *fakeDirectory) ScheduleCommands(_ context.Context, badges []string, options map[string]bool, clocks []int) (string, error) {
	f.scheduledBadges = append(f.scheduledBadges, badges...)
	f.scheduleOpts = options
	f.scheduleClocks = clocks
	return f.detail, f.scheduleErr
}

func (f *fakeDirectory) MarkDismiss(_ context.Context, personID int64, _, date string) error {
	if err, ok := f.dismissErrs[personID]; ok {
		return err
	}
	if f.dismissed == nil {
		f.dismissed = make(map[int64]string)
	}
	f.dismissed[personID] = date
	return nil
}

func activePerson(id int64, badge, name string) *kairos.Person {
	return &kairos.Person{
		ID:              id,
		Badge:           badge,
		Name:            name,
		TerminationDate: kairos.SentinelTermination,
		HasTemplates:    true,
	}
}
