package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ponto/internal/kairos"
)

func TestResolveEligible(t *testing.T) {
	dir := &fakeDirectory{people: map[string]*kairos.Person{
		"4021": activePerson(1, "4021", "Maria Souza"),
	}}

	res := NewResolver(dir).Resolve(context.Background(), "4021")

	assert.True(t, res.Eligible)
	assert.False(t, res.MissingBiometrics)
	assert.Empty(t, res.Reason)
	require.NotNil(t, res.Person)
	assert.Equal(t, "Maria Souza", res.Person.Name)
}

func TestResolveNotFound(t *testing.T) {
	dir := &fakeDirectory{}

	res := NewResolver(dir).Resolve(context.Background(), "999")

	assert.False(t, res.Eligible)
	assert.Nil(t, res.Person)
	assert.Equal(t, MsgNotFound, res.Reason)
}

func TestResolveRemoteError(t *testing.T) {
	dir := &fakeDirectory{personErr: map[string]error{
		"1": errors.New("kairos: Chave inválida"),
	}}

	res := NewResolver(dir).Resolve(context.Background(), "1")

	assert.False(t, res.Eligible)
	assert.Equal(t, "kairos: Chave inválida", res.Reason)
}

func TestResolveMissingBiometrics(t *testing.T) {
	person := activePerson(2, "118", "João Lima")
	person.HasTemplates = false
	dir := &fakeDirectory{people: map[string]*kairos.Person{"118": person}}

	res := NewResolver(dir).Resolve(context.Background(), "118")

	assert.False(t, res.Eligible)
	assert.True(t, res.MissingBiometrics)
	assert.Equal(t, MsgNoBiometrics, res.Reason)
	require.NotNil(t, res.Person) // identity still needed to attempt the action
}

func TestResolveTerminated(t *testing.T) {
	person := activePerson(3, "200", "Carlos Dias")
	person.TerminationDate = "15/06/2023 00:00:00"
	dir := &fakeDirectory{people: map[string]*kairos.Person{"200": person}}

	res := NewResolver(dir).Resolve(context.Background(), "200")

	assert.False(t, res.Eligible)
	assert.Equal(t, MsgDismissed, res.Reason)
	assert.Equal(t, "15/06/2023", res.TerminationDate)
}

// The sentinel placeholder means "no date set" and must never classify an
// employee as terminated.
func TestResolveSentinelDateIsNotTermination(t *testing.T) {
	dir := &fakeDirectory{people: map[string]*kairos.Person{
		"300": activePerson(4, "300", "Ana Reis"),
	}}

	res := NewResolver(dir).Resolve(context.Background(), "300")

	assert.True(t, res.Eligible)
	assert.Empty(t, res.TerminationDate)
}

// A dismissed employee without templates reports the missing biometrics:
// the template check runs first.
func TestResolveTemplateCheckBeforeTerminationCheck(t *testing.T) {
	person := activePerson(5, "400", "Rita Alves")
	person.HasTemplates = false
	person.TerminationDate = "01/03/2022 00:00:00"
	dir := &fakeDirectory{people: map[string]*kairos.Person{"400": person}}

	res := NewResolver(dir).Resolve(context.Background(), "400")

	assert.True(t, res.MissingBiometrics)
	assert.Equal(t, MsgNoBiometrics, res.Reason)
}
