package db

import (
	"strconv"
	"strings"
)

// Where accumulates AND-ed predicates with numbered Postgres placeholders.
// Column names are always literals supplied by repository code; only values
// travel as arguments.
type Where struct {
	clauses []string
	args    []any
}

// Eq adds column = value.
func (w *Where) Eq(column string, value any) *Where {
	w.clauses = append(w.clauses, column+" = "+w.bind(value))
	return w
}

// Lt adds column < value.
func (w *Where) Lt(column string, value any) *Where {
	w.clauses = append(w.clauses, column+" < "+w.bind(value))
	return w
}

// In adds column IN (...). An empty set is skipped.
func (w *Where) In(column string, values []string) *Where {
	if len(values) == 0 {
		return w
	}
	holders := make([]string, 0, len(values))
	for _, v := range values {
		holders = append(holders, w.bind(v))
	}
	w.clauses = append(w.clauses, column+" IN ("+strings.Join(holders, ", ")+")")
	return w
}

// Page appends LIMIT and OFFSET placeholders to query.
func (w *Where) Page(query string, limit, offset int) string {
	return query + " LIMIT " + w.bind(limit) + " OFFSET " + w.bind(offset)
}

// SQL renders the WHERE clause, or "" when no predicate was added.
func (w *Where) SQL() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// Args returns the bound values in placeholder order.
func (w *Where) Args() []any {
	return w.args
}

func (w *Where) bind(value any) string {
	w.args = append(w.args, value)
	return "$" + strconv.Itoa(len(w.args))
}
