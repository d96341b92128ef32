package schema

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Kind is the semantic type of a persisted column
type Kind string

const (
	KindSerial    Kind = "serial"
	KindString    Kind = "string"
	KindInteger   Kind = "integer"
	KindBoolean   Kind = "boolean"
	KindDecimal   Kind = "decimal"
	KindTimestamp Kind = "timestamp"
	KindDate      Kind = "date"
	KindDocument  Kind = "document"
	KindEnum      Kind = "enum"
)

// Reference is a foreign-key target
type Reference struct {
	Entity string
	Field  string
}

// Field declares one column of an entity. Fields are values; every modifier
// returns a modified copy so declarations read as a single expression.
type Field struct {
	name       string
	column     string
	kind       Kind
	notNull    bool
	unique     bool
	primaryKey bool
	secret     bool
	hasDefault bool
	defaultNow bool
	defaultVal any
	enum       []string
	precision  int
	scale      int
	min        *decimal.Decimal
	ref        *Reference
}

func newField(name string, kind Kind) Field {
	return Field{name: name, column: toSnake(name), kind: kind}
}

// Serial is a server-generated integer primary key
func Serial(name string) Field {
	f := newField(name, KindSerial)
	f.notNull = true
	f.primaryKey = true
	f.hasDefault = true
	return f
}

func String(name string) Field  { return newField(name, KindString) }
func Integer(name string) Field { return newField(name, KindInteger) }
func Boolean(name string) Field { return newField(name, KindBoolean) }

// Decimal is a fixed-point number stored as NUMERIC(precision, scale)
func Decimal(name string, precision, scale int) Field {
	f := newField(name, KindDecimal)
	f.precision = precision
	f.scale = scale
	return f
}

func Timestamp(name string) Field { return newField(name, KindTimestamp) }

// Date is a calendar date exchanged as YYYY-MM-DD
func Date(name string) Field { return newField(name, KindDate) }

// Document is opaque JSON; its shape is not checked at this layer
func Document(name string) Field { return newField(name, KindDocument) }

// Enum is a string restricted to the given values
func Enum(name string, values ...string) Field {
	f := newField(name, KindEnum)
	f.enum = append([]string(nil), values...)
	return f
}

func (f Field) NotNull() Field {
	f.notNull = true
	return f
}

func (f Field) Unique() Field {
	f.unique = true
	return f
}

func (f Field) PrimaryKey() Field {
	f.primaryKey = true
	f.notNull = true
	return f
}

// Secret fields are writable but never part of a select contract
func (f Field) Secret() Field {
	f.secret = true
	return f
}

func (f Field) Default(v any) Field {
	f.hasDefault = true
	f.defaultVal = v
	return f
}

// DefaultNow marks a timestamp filled by the database at insert time
func (f Field) DefaultNow() Field {
	f.hasDefault = true
	f.defaultNow = true
	return f
}

func (f Field) Column(name string) Field {
	f.column = name
	return f
}

// Min rejects values lower than m. Only meaningful for numeric kinds.
func (f Field) Min(m decimal.Decimal) Field {
	f.min = &m
	return f
}

func (f Field) References(entity, field string) Field {
	f.ref = &Reference{Entity: entity, Field: field}
	return f
}

func (f Field) Name() string       { return f.name }
func (f Field) ColumnName() string { return f.column }
func (f Field) Kind() Kind         { return f.kind }
func (f Field) IsNullable() bool   { return !f.notNull }
func (f Field) IsUnique() bool     { return f.unique }
func (f Field) IsPrimaryKey() bool { return f.primaryKey }
func (f Field) IsSecret() bool     { return f.secret }
func (f Field) HasDefault() bool   { return f.hasDefault }
func (f Field) IsDefaultNow() bool { return f.defaultNow }
func (f Field) DefaultValue() any  { return f.defaultVal }
func (f Field) Precision() int     { return f.precision }
func (f Field) Scale() int         { return f.scale }
func (f Field) Reference() *Reference {
	if f.ref == nil {
		return nil
	}
	r := *f.ref
	return &r
}

func (f Field) EnumValues() []string {
	return append([]string(nil), f.enum...)
}

func (f Field) MinValue() (decimal.Decimal, bool) {
	if f.min == nil {
		return decimal.Zero, false
	}
	return *f.min, true
}

// Required reports whether an insert payload must carry the field
func (f Field) Required() bool {
	return f.notNull && !f.hasDefault
}

// toSnake converts a camelCase field name into its snake_case column name.
// Runs of capitals are kept together, so "aiContextID" becomes "ai_context_id".
func toSnake(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
