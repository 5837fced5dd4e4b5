package core

import (
	"fmt"
	"strings"
)

// Filter selects records whose string attribute contains a keyword,
// ignoring case. The zero value and any filter built from a blank or
// unusable column match everything.
type Filter[T any] struct {
	attr    Attribute
	keyword string
	active  bool
}

// NewFilter builds a filter from request-time column and keyword strings.
// Unknown and non-string columns yield the identity filter rather than an
// error.
func NewFilter[T any](schema *Schema, column, keyword string) Filter[T] {
	if strings.TrimSpace(column) == "" || strings.TrimSpace(keyword) == "" {
		return Filter[T]{}
	}
	attr, ok := schema.Resolve(column)
	if !ok {
		return Filter[T]{}
	}
	return Filter[T]{attr: attr, keyword: keyword, active: true}
}

// IsIdentity reports whether the filter matches every record.
func (f Filter[T]) IsIdentity() bool { return !f.active }

// Column returns the filtered column, or "" for the identity filter.
func (f Filter[T]) Column() string {
	if !f.active {
		return ""
	}
	return f.attr.Column
}

// Keyword returns the keyword as supplied.
func (f Filter[T]) Keyword() string { return f.keyword }

// Match evaluates the filter against one record in process. Case folding
// is strings.ToLower (Unicode simple folding). PostgreSQL ILIKE folds by the
// database collation, so the two paths agree on ASCII and on letters with a
// one-to-one lower case (É, Å) in a UTF-8 ICU or libc locale, but may differ
// for special cases such as 'ß' or dotted 'İ', or under the C collation.
func (f Filter[T]) Match(rec *T) bool {
	if !f.active {
		return true
	}
	if rec == nil {
		return false
	}
	v, ok := f.attr.StringValue(rec)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(v), strings.ToLower(f.keyword))
}

// Apply returns the records that match, preserving order.
func (f Filter[T]) Apply(recs []*T) []*T {
	if !f.active {
		return recs
	}
	out := make([]*T, 0, len(recs))
	for _, r := range recs {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// SQL renders the filter as a WHERE condition using placeholder $argIdx.
// The keyword is matched literally: LIKE metacharacters are escaped so the
// pushed-down result equals Match. The identity filter renders "".
func (f Filter[T]) SQL(argIdx int) (string, []any, int) {
	if !f.active {
		return "", nil, argIdx
	}
	clause := fmt.Sprintf(`%s ILIKE $%d ESCAPE '\'`, QuoteIdentifier(f.attr.Column), argIdx)
	return clause, []any{"%" + EscapeLike(f.keyword) + "%"}, argIdx + 1
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes LIKE wildcards with backslash.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// QuoteIdentifier quotes a SQL identifier to prevent injection.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
