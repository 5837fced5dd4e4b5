package core

// schema.go describes entity types as a flat list of attributes.
//
// A Schema is built once per struct type from its tags and never changes
// afterwards. The filter, the batch validator and both store implementations
// read attributes through it instead of touching struct fields directly.
//
// Recognised tags:
//
//	db:"column"       column name (required; fields without it are skipped)
//	pk:"true"         integer primary key, generated by the store
//	required:"true"   must be present and non-blank on insert
//	unique:"true"     dedupe key, compared case-insensitively
//	readonly:"true"   generated by the store, never inserted or assigned

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// AttrKind is the value category of an attribute.
type AttrKind int

const (
	KindString AttrKind = iota
	KindInt
	KindFloat
	KindBool
	KindTime
)

func (k AttrKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	case KindFloat:
		return "number"
	case KindBool:
		return "boolean"
	case KindTime:
		return "timestamp"
	default:
		return "unknown"
	}
}

var timeType = reflect.TypeOf(time.Time{})

// Attribute is one persisted field of an entity.
type Attribute struct {
	Name     string // Go field name
	Column   string // column name
	Kind     AttrKind
	Nullable bool // pointer field
	Primary  bool
	Required bool
	Unique   bool
	ReadOnly bool

	index []int
}

// Writable reports whether the attribute may be inserted or assigned.
func (a Attribute) Writable() bool {
	return !a.Primary && !a.ReadOnly
}

// IsNumeric reports whether arithmetic assignments apply.
func (a Attribute) IsNumeric() bool {
	return a.Kind == KindInt || a.Kind == KindFloat
}

// field returns the addressable struct field for rec, which must be a
// non-nil pointer to the schema's struct type.
func (a Attribute) field(rec any) reflect.Value {
	return reflect.ValueOf(rec).Elem().FieldByIndex(a.index)
}

// Value returns the attribute value of rec. A nil pointer field yields nil.
func (a Attribute) Value(rec any) any {
	f := a.field(rec)
	if a.Nullable {
		if f.IsNil() {
			return nil
		}
		return f.Elem().Interface()
	}
	return f.Interface()
}

// StringValue returns the value of a string attribute. ok is false when the
// attribute is not string-typed or the pointer is nil.
func (a Attribute) StringValue(rec any) (string, bool) {
	if a.Kind != KindString {
		return "", false
	}
	f := a.field(rec)
	if a.Nullable {
		if f.IsNil() {
			return "", false
		}
		f = f.Elem()
	}
	return f.String(), true
}

// Set stores v into the attribute of rec. v must already be coerced.
func (a Attribute) Set(rec any, v any) {
	f := a.field(rec)
	if v == nil {
		f.Set(reflect.Zero(f.Type()))
		return
	}
	rv := reflect.ValueOf(v)
	if a.Nullable {
		p := reflect.New(f.Type().Elem())
		p.Elem().Set(rv.Convert(f.Type().Elem()))
		f.Set(p)
		return
	}
	f.Set(rv.Convert(f.Type()))
}

// Coerce converts a decoded JSON or CSV value into the attribute's Go type.
// Strings are parsed for non-string kinds; float64 is accepted for integers
// when it has no fractional part.
func (a Attribute) Coerce(v any) (any, error) {
	if v == nil {
		if a.Nullable {
			return nil, nil
		}
		return nil, fmt.Errorf("%s cannot be null", a.Column)
	}

	switch a.Kind {
	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case KindInt:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			if n == float64(int64(n)) {
				return int64(n), nil
			}
		case string:
			if i, err := parseInt(n); err == nil {
				return i, nil
			}
		}
	case KindFloat:
		switch n := v.(type) {
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case float64:
			return n, nil
		case string:
			if f, err := parseFloat(n); err == nil {
				return f, nil
			}
		}
	case KindBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			if parsed, ok := parseBool(b); ok {
				return parsed, nil
			}
		}
	case KindTime:
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case string:
			if parsed, err := parseTime(t); err == nil {
				return parsed, nil
			}
		}
	}
	return nil, fmt.Errorf("invalid %s for %q: %v", a.Kind, a.Column, v)
}

// Schema is the attribute list of one entity type.
type Schema struct {
	Type       reflect.Type
	Table      string
	Attributes []Attribute

	byName map[string]int
	pk     int
	key    int
}

// SchemaFor builds the schema of struct type T persisted in table.
// Panics on a malformed type since schemas are built during init.
func SchemaFor[T any](table string) *Schema {
	t := reflect.TypeOf((*T)(nil)).Elem()
	s, err := buildSchema(t, table)
	if err != nil {
		panic(err)
	}
	return s
}

func buildSchema(t reflect.Type, table string) (*Schema, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("schema %s: %s is not a struct", table, t)
	}

	s := &Schema{
		Type:   t,
		Table:  table,
		byName: make(map[string]int),
		pk:     -1,
		key:    -1,
	}

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		col := sf.Tag.Get("db")
		if !sf.IsExported() || col == "" || col == "-" {
			continue
		}

		attr := Attribute{
			Name:     sf.Name,
			Column:   col,
			Primary:  sf.Tag.Get("pk") == "true",
			Required: sf.Tag.Get("required") == "true",
			Unique:   sf.Tag.Get("unique") == "true",
			ReadOnly: sf.Tag.Get("readonly") == "true",
			index:    sf.Index,
		}

		ft := sf.Type
		if ft.Kind() == reflect.Pointer {
			attr.Nullable = true
			ft = ft.Elem()
		}
		kind, ok := kindOf(ft)
		if !ok {
			return nil, fmt.Errorf("schema %s: field %s has unsupported type %s", table, sf.Name, sf.Type)
		}
		attr.Kind = kind

		pos := len(s.Attributes)
		s.Attributes = append(s.Attributes, attr)
		s.byName[strings.ToLower(attr.Name)] = pos
		s.byName[strings.ToLower(attr.Column)] = pos

		if attr.Primary {
			if attr.Kind != KindInt || attr.Nullable {
				return nil, fmt.Errorf("schema %s: primary key %s must be a non-pointer integer", table, sf.Name)
			}
			s.pk = pos
		}
		if attr.Unique {
			if attr.Kind != KindString {
				return nil, fmt.Errorf("schema %s: unique key %s must be a string", table, sf.Name)
			}
			s.key = pos
		}
	}

	if s.pk < 0 {
		return nil, fmt.Errorf("schema %s: no primary key", table)
	}
	return s, nil
}

func kindOf(t reflect.Type) (AttrKind, bool) {
	if t == timeType {
		return KindTime, true
	}
	switch t.Kind() {
	case reflect.String:
		return KindString, true
	case reflect.Int, reflect.Int32, reflect.Int64:
		return KindInt, true
	case reflect.Float32, reflect.Float64:
		return KindFloat, true
	case reflect.Bool:
		return KindBool, true
	}
	return 0, false
}

// Lookup finds any attribute by Go field name or column, case-insensitively.
func (s *Schema) Lookup(name string) (Attribute, bool) {
	i, ok := s.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Attribute{}, false
	}
	return s.Attributes[i], true
}

// Resolve finds a filterable attribute. Only string attributes qualify;
// anything else is reported as not applicable.
func (s *Schema) Resolve(column string) (Attribute, bool) {
	attr, ok := s.Lookup(column)
	if !ok || attr.Kind != KindString {
		return Attribute{}, false
	}
	return attr, true
}

// PrimaryKey returns the id attribute.
func (s *Schema) PrimaryKey() Attribute {
	return s.Attributes[s.pk]
}

// Key returns the dedupe key attribute, if the entity has one.
func (s *Schema) Key() (Attribute, bool) {
	if s.key < 0 {
		return Attribute{}, false
	}
	return s.Attributes[s.key], true
}

// Columns returns all column names in declaration order.
func (s *Schema) Columns() []string {
	cols := make([]string, len(s.Attributes))
	for i, a := range s.Attributes {
		cols[i] = a.Column
	}
	return cols
}

// Writable returns the attributes that are inserted by the store.
func (s *Schema) Writable() []Attribute {
	var out []Attribute
	for _, a := range s.Attributes {
		if a.Writable() {
			out = append(out, a)
		}
	}
	return out
}

// Filterable returns the columns accepted by Resolve.
func (s *Schema) Filterable() []string {
	var out []string
	for _, a := range s.Attributes {
		if a.Kind == KindString {
			out = append(out, a.Column)
		}
	}
	return out
}

// ID reads the primary key of rec.
func (s *Schema) ID(rec any) int64 {
	return s.PrimaryKey().field(rec).Int()
}

// SetID writes the primary key of rec.
func (s *Schema) SetID(rec any, id int64) {
	s.PrimaryKey().field(rec).SetInt(id)
}
