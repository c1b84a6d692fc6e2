package profile

// DefaultTable is the built-in, read-only profile set shipped with the
// daemon. It is never persisted and never mutated by an RPC call; it is
// the fallback when a custom profile referenced by the state map has
// been deleted.
type DefaultTable struct {
	profiles map[string]*Profile
	order    []string
}

// NewDefaultTable builds a DefaultTable from the given profiles, keyed
// by their own ID field.
func NewDefaultTable(profiles ...*Profile) *DefaultTable {
	t := &DefaultTable{profiles: make(map[string]*Profile, len(profiles))}
	for _, p := range profiles {
		t.profiles[p.ID] = p
		t.order = append(t.order, p.ID)
	}
	return t
}

// Get returns the default profile with id, if any.
func (t *DefaultTable) Get(id string) (*Profile, bool) {
	p, ok := t.profiles[id]
	return p, ok
}

// Has reports whether id names a default profile.
func (t *DefaultTable) Has(id string) bool {
	_, ok := t.profiles[id]
	return ok
}

// First returns the first default profile in declaration order, used to
// self-heal a state-map entry whose profile no longer exists anywhere.
func (t *DefaultTable) First() *Profile {
	if len(t.order) == 0 {
		return nil
	}
	return t.profiles[t.order[0]]
}

// All returns every default profile in declaration order.
func (t *DefaultTable) All() []*Profile {
	result := make([]*Profile, 0, len(t.order))
	for _, id := range t.order {
		result = append(result, t.profiles[id])
	}
	return result
}
