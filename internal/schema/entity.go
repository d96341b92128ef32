package schema

import (
	"errors"
	"fmt"
	"slices"

	"github.com/jinzhu/inflection"
)

// Entity is the canonical, immutable declaration of a persisted row
type Entity struct {
	name   string
	table  string
	fields []Field
	byName map[string]int
	pk     int
}

// Declare builds an entity descriptor whose table name is the plural
// snake_case form of name ("DataSource" -> "data_sources").
func Declare(name string, fields ...Field) (*Entity, error) {
	return DeclareTable(name, inflection.Plural(toSnake(name)), fields...)
}

// DeclareTable builds an entity descriptor stored in an explicit table
func DeclareTable(name, table string, fields ...Field) (*Entity, error) {
	if name == "" {
		return nil, errors.New("entity name is required")
	}
	if table == "" {
		return nil, fmt.Errorf("entity %s: table name is required", name)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("entity %s: at least one field is required", name)
	}

	e := &Entity{
		name:   name,
		table:  table,
		fields: make([]Field, 0, len(fields)),
		byName: make(map[string]int, len(fields)),
		pk:     -1,
	}
	columns := make(map[string]struct{}, len(fields))

	for _, f := range fields {
		if f.name == "" || f.column == "" {
			return nil, fmt.Errorf("entity %s: field name and column are required", name)
		}
		if _, dup := e.byName[f.name]; dup {
			return nil, fmt.Errorf("entity %s: duplicate field %q", name, f.name)
		}
		if _, dup := columns[f.column]; dup {
			return nil, fmt.Errorf("entity %s: duplicate column %q", name, f.column)
		}
		if f.primaryKey {
			if e.pk >= 0 {
				return nil, fmt.Errorf("entity %s: multiple primary keys (%s, %s)", name, e.fields[e.pk].name, f.name)
			}
			e.pk = len(e.fields)
		}
		if f.kind == KindEnum {
			if len(f.enum) == 0 {
				return nil, fmt.Errorf("entity %s: enum field %q has no values", name, f.name)
			}
			if f.hasDefault {
				def, ok := f.defaultVal.(string)
				if !ok || !slices.Contains(f.enum, def) {
					return nil, fmt.Errorf("entity %s: default %v of %q is not one of %v", name, f.defaultVal, f.name, f.enum)
				}
			}
		}
		if f.ref != nil && (f.ref.Entity == "" || f.ref.Field == "") {
			return nil, fmt.Errorf("entity %s: field %q has an empty reference", name, f.name)
		}

		e.byName[f.name] = len(e.fields)
		columns[f.column] = struct{}{}
		e.fields = append(e.fields, f)
	}

	if e.pk < 0 {
		return nil, fmt.Errorf("entity %s: no primary key", name)
	}
	return e, nil
}

// MustDeclare is Declare for package-level declarations evaluated at start-up
func MustDeclare(name string, fields ...Field) *Entity {
	e, err := Declare(name, fields...)
	if err != nil {
		panic(err)
	}
	return e
}

// MustDeclareTable is DeclareTable for package-level declarations
func MustDeclareTable(name, table string, fields ...Field) *Entity {
	e, err := DeclareTable(name, table, fields...)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Entity) Name() string  { return e.name }
func (e *Entity) Table() string { return e.table }

// Fields returns the declared fields in declaration order
func (e *Entity) Fields() []Field {
	return slices.Clone(e.fields)
}

func (e *Entity) Field(name string) (Field, bool) {
	i, ok := e.byName[name]
	if !ok {
		return Field{}, false
	}
	return e.fields[i], true
}

func (e *Entity) PrimaryKey() Field {
	return e.fields[e.pk]
}

// Columns returns the column names in declaration order
func (e *Entity) Columns() []string {
	out := make([]string, len(e.fields))
	for i, f := range e.fields {
		out[i] = f.column
	}
	return out
}
