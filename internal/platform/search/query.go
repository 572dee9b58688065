package search

import (
	"fmt"
	"strings"
	"time"
)

// DefaultThreshold is the pg_trgm similarity a candidate must reach to be
// returned by a fuzzy search.
const DefaultThreshold = 0.3

// Query accumulates a filtered SELECT against one table. Rows whose
// deleted_at is set are excluded unless IncludeDeleted is called.
type Query struct {
	table          string
	cols           string
	clauses        []string
	args           []interface{}
	orderBy        string
	rankBy         string
	includeDeleted bool
}

func NewQuery(table, cols string) *Query {
	return &Query{table: table, cols: cols}
}

func (q *Query) next() int { return len(q.args) + 1 }

// Add appends a raw clause. Placeholders must be numbered from Next().
func (q *Query) Add(clause string, args ...interface{}) *Query {
	q.clauses = append(q.clauses, clause)
	q.args = append(q.args, args...)
	return q
}

// Next returns the index of the next positional placeholder.
func (q *Query) Next() int { return q.next() }

func (q *Query) Eq(column string, value interface{}) *Query {
	return q.Add(fmt.Sprintf("%s = $%d", column, q.next()), value)
}

// AnyOf matches rows whose array column contains value.
func (q *Query) AnyOf(column string, value interface{}) *Query {
	return q.Add(fmt.Sprintf("$%d = ANY(%s)", q.next(), column), value)
}

// In matches rows whose column equals any of values.
func (q *Query) In(column string, values []string) *Query {
	return q.Add(fmt.Sprintf("%s = ANY($%d)", column, q.next()), values)
}

func (q *Query) Prefix(column, value string) *Query {
	return q.Add(fmt.Sprintf("%s ILIKE $%d", column, q.next()), escapeLike(value)+"%")
}

// Date applies a date filter with an optional comparison prefix
// (gt, lt, ge, le, eq). A bare YYYY-MM-DD value with eq matches the whole day.
func (q *Query) Date(column, raw string) error {
	prefix, value := splitPrefix(raw)
	t, dayOnly, err := ParseDate(value)
	if err != nil {
		return err
	}
	i := q.next()
	switch prefix {
	case "gt":
		q.Add(fmt.Sprintf("%s > $%d", column, i), t)
	case "lt":
		q.Add(fmt.Sprintf("%s < $%d", column, i), t)
	case "ge":
		q.Add(fmt.Sprintf("%s >= $%d", column, i), t)
	case "le":
		if dayOnly {
			q.Add(fmt.Sprintf("%s < $%d", column, i), t.AddDate(0, 0, 1))
		} else {
			q.Add(fmt.Sprintf("%s <= $%d", column, i), t)
		}
	default:
		if dayOnly {
			q.Add(fmt.Sprintf("(%s >= $%d AND %s < $%d)", column, i, column, i+1), t, t.AddDate(0, 0, 1))
		} else {
			q.Add(fmt.Sprintf("%s = $%d", column, i), t)
		}
	}
	return nil
}

// Fuzzy matches a normalized text column against term using trigram
// similarity, falling back to substring containment for short terms.
// Results are ranked by similarity.
func (q *Query) Fuzzy(column, term string) *Query {
	term = Normalize(term)
	if term == "" {
		return q
	}
	i := q.next()
	q.Add(fmt.Sprintf("(similarity(%s, $%d) >= $%d OR %s LIKE $%d)", column, i, i+1, column, i+2),
		term, DefaultThreshold, "%"+escapeLike(term)+"%")
	q.rankBy = fmt.Sprintf("similarity(%s, $%d) DESC", column, i)
	return q
}

func (q *Query) IncludeDeleted() *Query {
	q.includeDeleted = true
	return q
}

func (q *Query) OrderBy(orderBy string) *Query {
	q.orderBy = orderBy
	return q
}

func (q *Query) where() string {
	clauses := q.clauses
	if !q.includeDeleted {
		clauses = append([]string{"deleted_at IS NULL"}, clauses...)
	}
	if len(clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

func (q *Query) CountSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s%s", q.table, q.where())
}

func (q *Query) CountArgs() []interface{} {
	return q.args
}

// DataSQL returns the SELECT with ordering and LIMIT/OFFSET placeholders. A
// fuzzy rank, when present, takes precedence over the configured order.
func (q *Query) DataSQL() string {
	sql := fmt.Sprintf("SELECT %s FROM %s%s", q.cols, q.table, q.where())
	var order []string
	if q.rankBy != "" {
		order = append(order, q.rankBy)
	}
	if q.orderBy != "" {
		order = append(order, q.orderBy)
	}
	if len(order) > 0 {
		sql += " ORDER BY " + strings.Join(order, ", ")
	}
	n := q.next()
	return sql + fmt.Sprintf(" LIMIT $%d OFFSET $%d", n, n+1)
}

func (q *Query) DataArgs(limit, offset int) []interface{} {
	out := make([]interface{}, 0, len(q.args)+2)
	out = append(out, q.args...)
	return append(out, limit, offset)
}

func splitPrefix(raw string) (string, string) {
	if len(raw) > 2 {
		switch p := strings.ToLower(raw[:2]); p {
		case "gt", "lt", "ge", "le", "eq":
			return p, raw[2:]
		}
	}
	return "eq", raw
}

// ParseDate accepts RFC3339, "2006-01-02T15:04:05" and "2006-01-02". The
// second result reports whether only a calendar day was given.
func ParseDate(s string) (time.Time, bool, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, false, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unable to parse date: %q", s)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
