package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of KindDate fields
const DateLayout = "2006-01-02"

type contractConfig struct {
	omit    []string
	pick    []string
	partial bool
}

// ContractOption shapes a derived insert contract
type ContractOption func(*contractConfig)

// Omit drops the named fields, typically the generated id and creation timestamp
func Omit(fields ...string) ContractOption {
	return func(c *contractConfig) { c.omit = append(c.omit, fields...) }
}

// Pick keeps only the named fields
func Pick(fields ...string) ContractOption {
	return func(c *contractConfig) { c.pick = append(c.pick, fields...) }
}

// Partial makes every field optional, for patch payloads
func Partial() ContractOption {
	return func(c *contractConfig) { c.partial = true }
}

// InsertContract validates writable payloads for one entity. It holds no
// mutable state and is safe for concurrent use.
type InsertContract struct {
	entity  *Entity
	fields  []Field
	index   map[string]int
	partial bool
}

// InsertContract derives a validation contract from the entity declaration
func (e *Entity) InsertContract(opts ...ContractOption) (*InsertContract, error) {
	var cfg contractConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(cfg.omit) > 0 && len(cfg.pick) > 0 {
		return nil, fmt.Errorf("%s contract: omit and pick are exclusive", e.name)
	}
	for _, name := range append(append([]string(nil), cfg.omit...), cfg.pick...) {
		if _, ok := e.byName[name]; !ok {
			return nil, fmt.Errorf("%s contract: unknown field %q", e.name, name)
		}
	}

	c := &InsertContract{entity: e, index: map[string]int{}, partial: cfg.partial}
	for _, f := range e.fields {
		if len(cfg.pick) > 0 && !slices.Contains(cfg.pick, f.name) {
			continue
		}
		if slices.Contains(cfg.omit, f.name) {
			continue
		}
		c.index[f.name] = len(c.fields)
		c.fields = append(c.fields, f)
	}
	return c, nil
}

// MustInsertContract panics on an invalid derivation
func (e *Entity) MustInsertContract(opts ...ContractOption) *InsertContract {
	c, err := e.InsertContract(opts...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *InsertContract) Entity() *Entity { return c.entity }

func (c *InsertContract) Fields() []Field { return slices.Clone(c.fields) }

// Names returns the writable field names in declaration order
func (c *InsertContract) Names() []string {
	out := make([]string, len(c.fields))
	for i, f := range c.fields {
		out[i] = f.name
	}
	return out
}

// Required returns the fields a payload must carry
func (c *InsertContract) Required() []string {
	if c.partial {
		return nil
	}
	var out []string
	for _, f := range c.fields {
		if f.Required() {
			out = append(out, f.name)
		}
	}
	return out
}

// Validate checks a decoded JSON object. Numbers may be json.Number or float64.
func (c *InsertContract) Validate(payload map[string]any) error {
	var errs []FieldError

	for _, f := range c.fields {
		v, present := payload[f.name]
		if !present {
			if !c.partial && f.Required() {
				errs = append(errs, FieldError{Field: f.name, Reason: ReasonMissing, Message: "is required"})
			}
			continue
		}
		if fe, bad := checkValue(f, v); bad {
			errs = append(errs, fe)
		}
	}

	var unknown []string
	for name := range payload {
		if _, ok := c.index[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		errs = append(errs, FieldError{Field: name, Reason: ReasonUnknownField, Message: "is not a writable field"})
	}

	if len(errs) > 0 {
		return &ValidationError{Entity: c.entity.name, Fields: errs}
	}
	return nil
}

// Parse decodes a raw JSON object and validates it, returning the decoded payload.
// Numbers are kept as json.Number.
func (c *InsertContract) Parse(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil || payload == nil {
		return nil, &ValidationError{
			Entity: c.entity.name,
			Fields: []FieldError{{Reason: ReasonWrongType, Message: "payload must be a JSON object"}},
		}
	}
	if err := c.Validate(payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// ApplyDefaults fills absent fields that declare a literal default.
// Document defaults are inserted as raw JSON.
func (c *InsertContract) ApplyDefaults(payload map[string]any) {
	for _, f := range c.fields {
		if _, present := payload[f.name]; present || !f.hasDefault || f.defaultVal == nil {
			continue
		}
		v := f.defaultVal
		if s, ok := v.(string); ok && f.kind == KindDocument {
			v = json.RawMessage(s)
		}
		payload[f.name] = v
	}
}

// Decode validates a raw JSON payload and, when it passes, unmarshals it into dst.
// Fields absent from the payload leave dst untouched.
func (c *InsertContract) Decode(data []byte, dst any) error {
	if _, err := c.Parse(data); err != nil {
		return err
	}
	return c.unmarshal(data, dst)
}

// Assign unmarshals an already validated payload into dst
func (c *InsertContract) Assign(payload map[string]any, dst any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", c.entity.name, err)
	}
	return c.unmarshal(data, dst)
}

func (c *InsertContract) unmarshal(data []byte, dst any) error {
	err := json.Unmarshal(data, dst)
	if err == nil {
		return nil
	}

	field := c.failingField(data, dst)
	var typeErr *json.UnmarshalTypeError
	if field == "" && errors.As(err, &typeErr) {
		field, _, _ = strings.Cut(typeErr.Field, ".")
	}
	return &ValidationError{
		Entity: c.entity.name,
		Fields: []FieldError{{Field: field, Reason: ReasonWrongType, Message: "has an unexpected shape: " + err.Error()}},
	}
}

// failingField decodes the payload one field at a time into a fresh value of dst's type
// and returns the first field that does not decode
func (c *InsertContract) failingField(data []byte, dst any) string {
	var raw map[string]json.RawMessage
	if json.Unmarshal(data, &raw) != nil {
		return ""
	}
	t := reflect.TypeOf(dst)
	if t == nil || t.Kind() != reflect.Pointer {
		return ""
	}
	for _, f := range c.fields {
		v, ok := raw[f.name]
		if !ok {
			continue
		}
		single, err := json.Marshal(map[string]json.RawMessage{f.name: v})
		if err != nil {
			continue
		}
		if json.Unmarshal(single, reflect.New(t.Elem()).Interface()) != nil {
			return f.name
		}
	}
	return ""
}

func checkValue(f Field, v any) (FieldError, bool) {
	wrong := func(msg string) (FieldError, bool) {
		return FieldError{Field: f.name, Reason: ReasonWrongType, Message: msg}, true
	}

	if v == nil {
		if f.notNull {
			return wrong("must not be null")
		}
		return FieldError{}, false
	}

	switch f.kind {
	case KindString:
		if _, ok := v.(string); !ok {
			return wrong("must be a string")
		}
	case KindEnum:
		s, ok := v.(string)
		if !ok {
			return wrong("must be a string")
		}
		if !slices.Contains(f.enum, s) {
			return FieldError{Field: f.name, Reason: ReasonConstraint, Message: fmt.Sprintf("must be one of %v", f.enum)}, true
		}
	case KindBoolean:
		if _, ok := v.(bool); !ok {
			return wrong("must be a boolean")
		}
	case KindSerial, KindInteger:
		d, ok := asDecimal(v, false)
		if !ok || !d.IsInteger() {
			return wrong("must be an integer")
		}
		if d.GreaterThan(decimal.NewFromInt(math.MaxInt32)) || d.LessThan(decimal.NewFromInt(math.MinInt32)) {
			return FieldError{Field: f.name, Reason: ReasonConstraint, Message: "is out of range"}, true
		}
		return checkMin(f, d)
	case KindDecimal:
		d, ok := asDecimal(v, true)
		if !ok {
			return wrong("must be a decimal number")
		}
		if fe, bad := checkDigits(f, d); bad {
			return fe, true
		}
		return checkMin(f, d)
	case KindTimestamp:
		s, ok := v.(string)
		if !ok {
			return wrong("must be an RFC 3339 timestamp")
		}
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			return wrong("must be an RFC 3339 timestamp")
		}
	case KindDate:
		s, ok := v.(string)
		if !ok {
			return wrong("must be a date (YYYY-MM-DD)")
		}
		if _, err := time.Parse(DateLayout, s); err != nil {
			return wrong("must be a date (YYYY-MM-DD)")
		}
	case KindDocument:
		// any JSON value
	}
	return FieldError{}, false
}

// checkDigits rejects values whose integer part does not fit NUMERIC(precision, scale)
func checkDigits(f Field, d decimal.Decimal) (FieldError, bool) {
	if f.precision <= 0 {
		return FieldError{}, false
	}
	intDigits := f.precision - f.scale
	if d.Round(int32(f.scale)).Abs().GreaterThanOrEqual(decimal.New(1, int32(intDigits))) {
		return FieldError{
			Field:   f.name,
			Reason:  ReasonConstraint,
			Message: fmt.Sprintf("must have at most %d digits before the decimal point", intDigits),
		}, true
	}
	return FieldError{}, false
}

func checkMin(f Field, d decimal.Decimal) (FieldError, bool) {
	if f.min != nil && d.LessThan(*f.min) {
		return FieldError{Field: f.name, Reason: ReasonConstraint, Message: "must be at least " + f.min.String()}, true
	}
	return FieldError{}, false
}

// asDecimal accepts JSON numbers; quoted numbers are accepted only when allowString is set
func asDecimal(v any, allowString bool) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case string:
		if !allowString {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(n)
		return d, err == nil
	}
	return decimal.Zero, false
}
