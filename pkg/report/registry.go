package report

import "github.com/sirupsen/logrus"

// Registry owns the tables of one run, keyed by name, and hands each the
// exception rules configured for it.
type Registry struct {
	rules  map[string][]ExceptionRule
	filter bool
	log    logrus.FieldLogger

	tables []*Table
	byName map[string]*Table
}

// NewRegistry creates a registry. rules maps table name to its rules.
func NewRegistry(rules map[string][]ExceptionRule, filterExceptions bool, log logrus.FieldLogger) *Registry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registry{
		rules:  rules,
		filter: filterExceptions,
		log:    log,
		byName: make(map[string]*Table),
	}
}

// Table returns the named table, creating it with header on first use.
// The header of an existing table is left unchanged.
func (r *Registry) Table(name string, header ...string) *Table {
	if t, ok := r.byName[name]; ok {
		return t
	}
	t := NewTable(name, header, Options{
		Rules:            r.rules[name],
		FilterExceptions: r.filter,
		Log:              r.log,
	})
	r.byName[name] = t
	r.tables = append(r.tables, t)
	return t
}

// Tables returns every table in creation order.
func (r *Registry) Tables() []*Table {
	return append([]*Table(nil), r.tables...)
}
