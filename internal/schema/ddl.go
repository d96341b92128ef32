package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// DDL renders PostgreSQL CREATE TABLE statements for every entity, parents first.
// Foreign keys restrict deletion of referenced rows.
func DDL(r *Registry) string {
	var b strings.Builder
	for i, e := range r.Order() {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(TableDDL(e, r))
	}
	return b.String()
}

// TableDDL renders the CREATE TABLE statement of one entity. The registry resolves
// referenced tables and may be nil when the entity has no references.
func TableDDL(e *Entity, r *Registry) string {
	lines := make([]string, 0, len(e.fields))
	for _, f := range e.fields {
		lines = append(lines, "    "+columnDDL(f, r))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n);\n", e.table, strings.Join(lines, ",\n"))
}

func columnDDL(f Field, r *Registry) string {
	parts := []string{f.column, sqlType(f)}

	if f.kind == KindSerial {
		return strings.Join(append(parts, "PRIMARY KEY"), " ")
	}
	if f.primaryKey {
		parts = append(parts, "PRIMARY KEY")
	} else if f.notNull {
		parts = append(parts, "NOT NULL")
	}
	if f.unique && !f.primaryKey {
		parts = append(parts, "UNIQUE")
	}
	if def, ok := defaultDDL(f); ok {
		parts = append(parts, "DEFAULT "+def)
	}

	if f.kind == KindEnum {
		quoted := make([]string, len(f.enum))
		for i, v := range f.enum {
			quoted[i] = pq.QuoteLiteral(v)
		}
		parts = append(parts, fmt.Sprintf("CHECK (%s IN (%s))", f.column, strings.Join(quoted, ", ")))
	}
	if f.min != nil {
		parts = append(parts, fmt.Sprintf("CHECK (%s >= %s)", f.column, f.min.String()))
	}

	if f.ref != nil {
		table, column := f.ref.Entity, f.ref.Field
		if r != nil {
			if target, ok := r.Entity(f.ref.Entity); ok {
				table = target.table
				if tf, ok := target.Field(f.ref.Field); ok {
					column = tf.column
				}
			}
		}
		parts = append(parts, fmt.Sprintf("REFERENCES %s(%s) ON DELETE RESTRICT", table, column))
	}
	return strings.Join(parts, " ")
}

func sqlType(f Field) string {
	switch f.kind {
	case KindSerial:
		return "SERIAL"
	case KindInteger:
		return "INTEGER"
	case KindBoolean:
		return "BOOLEAN"
	case KindDecimal:
		if f.precision > 0 {
			return fmt.Sprintf("NUMERIC(%d, %d)", f.precision, f.scale)
		}
		return "NUMERIC"
	case KindTimestamp:
		return "TIMESTAMPTZ"
	case KindDate:
		return "DATE"
	case KindDocument:
		return "JSONB"
	default:
		return "TEXT"
	}
}

func defaultDDL(f Field) (string, bool) {
	if !f.hasDefault {
		return "", false
	}
	if f.defaultNow {
		return "NOW()", true
	}
	switch v := f.defaultVal.(type) {
	case nil:
		return "", false
	case string:
		if f.kind == KindDocument {
			return pq.QuoteLiteral(v) + "::jsonb", true
		}
		return pq.QuoteLiteral(v), true
	case bool:
		if v {
			return "TRUE", true
		}
		return "FALSE", true
	case int, int64, float64:
		return fmt.Sprint(v), true
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		return pq.QuoteLiteral(string(raw)) + "::jsonb", true
	}
}
