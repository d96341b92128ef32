package schema

import "slices"

// SelectContract is the full shape of a row as returned by reads. It carries
// no runtime validation; callers use it to type and document responses.
type SelectContract struct {
	entity *Entity
	fields []Field
}

// SelectContract lists every non-secret field of the entity
func (e *Entity) SelectContract() *SelectContract {
	s := &SelectContract{entity: e}
	for _, f := range e.fields {
		if !f.secret {
			s.fields = append(s.fields, f)
		}
	}
	return s
}

func (s *SelectContract) Entity() *Entity { return s.entity }

func (s *SelectContract) Fields() []Field { return slices.Clone(s.fields) }

func (s *SelectContract) Names() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.name
	}
	return out
}

func (s *SelectContract) Has(name string) bool {
	return slices.ContainsFunc(s.fields, func(f Field) bool { return f.name == name })
}

// Covers reports whether every non-secret field of the insert contract is part of the select shape
func (s *SelectContract) Covers(c *InsertContract) bool {
	for _, f := range c.fields {
		if !f.secret && !s.Has(f.name) {
			return false
		}
	}
	return true
}
