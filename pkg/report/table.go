// Package report holds graded report tables: append-only row sets that
// validate shape, drop exact repeats, and suppress rows matching exception
// rules.
package report

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// Options configure a Table.
type Options struct {
	// Rules are the exception rules for this table.
	Rules []ExceptionRule
	// FilterExceptions enables rule suppression. Rules are ignored when false.
	FilterExceptions bool
	Log              logrus.FieldLogger
}

// Table is a graded report table. Rows keep insertion order.
type Table struct {
	name   string
	header []string
	fields map[string]struct{}
	opts   Options

	rows []Row
	seen map[string]struct{}

	rejected int
}

// NewTable creates an empty table with the declared header.
func NewTable(name string, header []string, opts Options) *Table {
	fields := make(map[string]struct{}, len(header))
	for _, h := range header {
		fields[h] = struct{}{}
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return &Table{
		name:   name,
		header: append([]string(nil), header...),
		fields: fields,
		opts:   opts,
		seen:   make(map[string]struct{}),
	}
}

func (t *Table) Name() string { return t.name }

// Header returns the declared field names in declaration order.
func (t *Table) Header() []string { return append([]string(nil), t.header...) }

// Len returns the number of stored rows.
func (t *Table) Len() int { return len(t.rows) }

// Rejected returns how many rows AddRow has turned away.
func (t *Table) Rejected() int { return t.rejected }

// AddRow stores row and reports whether it was accepted. Rows whose fields
// differ from the header, exact duplicates, and rows matching an exception
// rule are logged and dropped.
func (t *Table) AddRow(row Row) bool {
	log := t.opts.Log.WithField("table", t.name)

	if missing, extra := t.diffHeader(row); len(missing) > 0 || len(extra) > 0 {
		t.rejected++
		log.WithFields(logrus.Fields{
			"missing": missing,
			"extra":   extra,
		}).Error("row does not match table header")
		return false
	}

	key := rowKey(row)
	if _, dup := t.seen[key]; dup {
		t.rejected++
		log.WithField("row", key).Error("duplicate row rejected")
		return false
	}

	if t.opts.FilterExceptions {
		for _, rule := range t.opts.Rules {
			if len(rule) > 0 && rule.Match(row) {
				t.rejected++
				log.WithFields(logrus.Fields{
					"row":  key,
					"rule": rule.String(),
				}).Warn("row omitted by exception")
				return false
			}
		}
	}

	t.seen[key] = struct{}{}
	t.rows = append(t.rows, row)
	return true
}

// AddRows adds each row in order and returns how many were accepted.
func (t *Table) AddRows(rows []Row) int {
	n := 0
	for _, r := range rows {
		if t.AddRow(r) {
			n++
		}
	}
	return n
}

// GetRows returns the stored rows matching q, in insertion order.
func (t *Table) GetRows(q Matcher) []Row {
	var out []Row
	for _, r := range t.rows {
		if q.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Rows returns every stored row.
func (t *Table) Rows() []Row {
	return append([]Row(nil), t.rows...)
}

func (t *Table) diffHeader(row Row) (missing, extra []string) {
	for _, h := range t.header {
		if _, ok := row[h]; !ok {
			missing = append(missing, h)
		}
	}
	for k := range row {
		if _, ok := t.fields[k]; !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return missing, extra
}

// rowKey is a canonical encoding of row content. encoding/json writes map
// keys sorted, so equal rows encode equally.
func rowKey(row Row) string {
	b, err := json.Marshal(row)
	if err != nil {
		return fmt.Sprintf("%v", map[string]any(row))
	}
	return string(b)
}
