package report

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// Row is one report row: field name to value.
type Row map[string]any

// Matcher maps field names to patterns. A row matches when every named
// field is present and its stringified value matches the pattern. The same
// matcher backs exception rules and ad-hoc queries.
type Matcher map[string]*regexp.Regexp

// ExceptionRule suppresses the rows it matches.
type ExceptionRule = Matcher

// Compile builds a Matcher from field name to pattern source.
func Compile(patterns map[string]string) (Matcher, error) {
	m := make(Matcher, len(patterns))
	for field, src := range patterns {
		re, err := regexp.Compile(src)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field, err)
		}
		m[field] = re
	}
	return m, nil
}

// MustCompile is like Compile but panics on an invalid pattern.
func MustCompile(patterns map[string]string) Matcher {
	m, err := Compile(patterns)
	if err != nil {
		panic(err)
	}
	return m
}

// Match reports whether row satisfies every field pattern. An empty matcher
// matches every row.
func (m Matcher) Match(row Row) bool {
	for field, re := range m {
		v, ok := row[field]
		if !ok {
			return false
		}
		if !re.MatchString(Stringify(v)) {
			return false
		}
	}
	return true
}

// String renders the matcher with sorted field names, for logging.
func (m Matcher) String() string {
	fields := make([]string, 0, len(m))
	for f := range m {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	s := "{"
	for i, f := range fields {
		if i > 0 {
			s += ", "
		}
		s += f + ": /" + m[f].String() + "/"
	}
	return s + "}"
}

// Stringify renders a field value the way patterns see it. Nil is "".
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case time.Time:
		return x.Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
