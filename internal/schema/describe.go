package schema

import "fmt"

// FieldDoc is the wire description of one field
type FieldDoc struct {
	Name       string   `json:"name" yaml:"name"`
	Column     string   `json:"column" yaml:"column"`
	Kind       Kind     `json:"kind" yaml:"kind"`
	Nullable   bool     `json:"nullable" yaml:"nullable"`
	Enum       []string `json:"enum,omitempty" yaml:"enum,omitempty"`
	Default    string   `json:"default,omitempty" yaml:"default,omitempty"`
	References string   `json:"references,omitempty" yaml:"references,omitempty"`
}

// ContractDoc lists the fields an insert contract accepts
type ContractDoc struct {
	Fields   []string `json:"fields" yaml:"fields"`
	Required []string `json:"required" yaml:"required"`
}

// EntityDoc describes the select shape of an entity and, when clients may write it, its insert contract
type EntityDoc struct {
	Name   string       `json:"name" yaml:"name"`
	Table  string       `json:"table" yaml:"table"`
	Select []FieldDoc   `json:"select" yaml:"select"`
	Insert *ContractDoc `json:"insert,omitempty" yaml:"insert,omitempty"`
}

// Describe renders e and its insert contract; insert may be nil
func Describe(e *Entity, insert *InsertContract) EntityDoc {
	doc := EntityDoc{Name: e.name, Table: e.table}
	for _, f := range e.SelectContract().fields {
		doc.Select = append(doc.Select, describeField(f))
	}
	if insert != nil {
		doc.Insert = &ContractDoc{Fields: insert.Names(), Required: insert.Required()}
		if doc.Insert.Required == nil {
			doc.Insert.Required = []string{}
		}
	}
	return doc
}

func describeField(f Field) FieldDoc {
	fd := FieldDoc{
		Name:     f.name,
		Column:   f.column,
		Kind:     f.kind,
		Nullable: f.IsNullable(),
		Enum:     f.EnumValues(),
	}
	switch {
	case f.defaultNow:
		fd.Default = "now()"
	case f.kind == KindSerial:
		fd.Default = "serial"
	case f.hasDefault && f.defaultVal != nil:
		fd.Default = fmt.Sprint(f.defaultVal)
	}
	if f.ref != nil {
		fd.References = f.ref.Entity + "." + f.ref.Field
	}
	return fd
}
