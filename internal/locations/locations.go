package locations

// All is the filter value meaning "do not filter by location".
const All = "Todos"

// Group is a named site covering a set of clock numbers.
type Group struct {
	Name   string
	Clocks []int
}

// Table maps clock numbers to their site name. It is built once at
// startup and never mutated afterwards, so concurrent reads need no
// locking.
type Table struct {
	groups []Group
}

// New builds a table from the given groups.
func New(groups []Group) *Table {
	return &Table{groups: groups}
}

// Default returns the site layout of the current clock fleet.
func Default() *Table {
	return New([]Group{
		{Name: "FÁBRICA", Clocks: []int{1, 2, 3}},
		{Name: "ESCRITÓRIO", Clocks: []int{4, 5}},
		{Name: "PORTARIA", Clocks: []int{6, 9}},
		{Name: "OFICINA I", Clocks: []int{7}},
		{Name: "OFICINA II", Clocks: []int{8, 11}},
		{Name: "EXPEDIÇÃO", Clocks: []int{10, 12}},
	})
}

// LocationOf returns the site name for a clock, or "" when the clock
// belongs to no group. The fleet is small; a linear scan is fine.
func (t *Table) LocationOf(clock int) string {
	for _, g := range t.groups {
		for _, n := range g.Clocks {
			if n == clock {
				return g.Name
			}
		}
	}
	return ""
}

// Groups returns the configured groups in declaration order.
func (t *Table) Groups() []Group {
	out := make([]Group, len(t.groups))
	copy(out, t.groups)
	return out
}
