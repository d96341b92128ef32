package schema

import (
	"fmt"
	"sort"
)

// Registry is a closed set of entities whose foreign keys all resolve
type Registry struct {
	entities []*Entity
	byName   map[string]*Entity
}

// NewRegistry checks that every reference points at a declared entity and field
// and that no two entities share a table.
func NewRegistry(entities ...*Entity) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Entity, len(entities))}
	tables := make(map[string]string, len(entities))

	for _, e := range entities {
		if e == nil {
			return nil, fmt.Errorf("nil entity in registry")
		}
		if _, dup := r.byName[e.name]; dup {
			return nil, fmt.Errorf("duplicate entity %q", e.name)
		}
		if other, dup := tables[e.table]; dup {
			return nil, fmt.Errorf("entities %s and %s share table %q", other, e.name, e.table)
		}
		r.byName[e.name] = e
		tables[e.table] = e.name
		r.entities = append(r.entities, e)
	}

	for _, e := range r.entities {
		for _, f := range e.fields {
			if f.ref == nil {
				continue
			}
			target, ok := r.byName[f.ref.Entity]
			if !ok {
				return nil, fmt.Errorf("%s.%s references unknown entity %q", e.name, f.name, f.ref.Entity)
			}
			tf, ok := target.Field(f.ref.Field)
			if !ok {
				return nil, fmt.Errorf("%s.%s references unknown field %s.%s", e.name, f.name, f.ref.Entity, f.ref.Field)
			}
			if !tf.primaryKey && !tf.unique {
				return nil, fmt.Errorf("%s.%s references %s.%s which is neither primary key nor unique", e.name, f.name, f.ref.Entity, f.ref.Field)
			}
		}
	}

	if _, err := r.order(); err != nil {
		return nil, err
	}
	return r, nil
}

// MustRegistry panics when the declarations are inconsistent
func MustRegistry(entities ...*Entity) *Registry {
	r, err := NewRegistry(entities...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Entity(name string) (*Entity, bool) {
	e, ok := r.byName[name]
	return e, ok
}

// Entities returns the entities in registration order
func (r *Registry) Entities() []*Entity {
	return append([]*Entity(nil), r.entities...)
}

// Dependent is a field of another entity that references the queried one
type Dependent struct {
	Entity *Entity
	Field  Field
}

// Dependents lists every field that references the named entity
func (r *Registry) Dependents(name string) []Dependent {
	var out []Dependent
	for _, e := range r.entities {
		for _, f := range e.fields {
			if f.ref != nil && f.ref.Entity == name && e.name != name {
				out = append(out, Dependent{Entity: e, Field: f})
			}
		}
	}
	return out
}

// Order returns the entities so that every referenced entity precedes the
// entities referencing it. Self references are ignored.
func (r *Registry) Order() []*Entity {
	out, _ := r.order()
	return out
}

func (r *Registry) order() ([]*Entity, error) {
	indegree := make(map[string]int, len(r.entities))
	edges := make(map[string][]string, len(r.entities))
	for _, e := range r.entities {
		seen := map[string]bool{}
		for _, f := range e.fields {
			if f.ref == nil || f.ref.Entity == e.name || seen[f.ref.Entity] {
				continue
			}
			seen[f.ref.Entity] = true
			edges[f.ref.Entity] = append(edges[f.ref.Entity], e.name)
			indegree[e.name]++
		}
	}

	var ready []string
	for _, e := range r.entities {
		if indegree[e.name] == 0 {
			ready = append(ready, e.name)
		}
	}

	out := make([]*Entity, 0, len(r.entities))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		out = append(out, r.byName[name])

		next := edges[name]
		sort.Strings(next)
		for _, child := range next {
			indegree[child]--
			if indegree[child] == 0 {
				ready = append(ready, child)
			}
		}
	}

	if len(out) != len(r.entities) {
		return nil, fmt.Errorf("reference cycle between entities")
	}
	return out, nil
}
