package listing

import (
	"fmt"
	"strings"
)

// Columns names the SQL expressions behind each filter for one table.
type Columns struct {
	ID       string
	Supplier string
	Status   string
	Date     string
	// Sortable maps accepted sort keys to column expressions.
	Sortable map[string]string
}

// Where builds a WHERE clause with positional arguments starting at $1.
// It returns an empty clause when no filter is set.
func Where(filter Filter, cols Columns) (string, []any) {
	filter = filter.Normalize()
	var conditions []string
	var args []any
	argPos := 1

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(%s ILIKE $%d OR %s ILIKE $%d)", cols.Supplier, argPos, cols.ID, argPos))
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		argPos++
	}
	if filter.Supplier != "" {
		conditions = append(conditions, fmt.Sprintf("%s = $%d", cols.Supplier, argPos))
		args = append(args, filter.Supplier)
		argPos++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("%s = $%d", cols.Status, argPos))
		args = append(args, filter.Status)
		argPos++
	}
	if filter.DateFrom != "" {
		conditions = append(conditions, fmt.Sprintf("%s >= $%d::date", cols.Date, argPos))
		args = append(args, filter.DateFrom)
		argPos++
	}
	if filter.DateTo != "" {
		conditions = append(conditions, fmt.Sprintf("%s <= $%d::date", cols.Date, argPos))
		args = append(args, filter.DateTo)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// OrderBy renders the ORDER BY clause for q, defaulting to the date column
// descending. Unknown sort keys fall back to the default.
func OrderBy(q Query, cols Columns) string {
	column := cols.Date
	if expr, ok := cols.Sortable[q.SortBy]; ok {
		column = expr
	}
	direction := "DESC"
	if q.SortAsc {
		direction = "ASC"
	}
	return fmt.Sprintf("ORDER BY %s %s, %s %s", column, direction, cols.ID, direction)
}

// LimitOffset renders LIMIT/OFFSET placeholders after n existing arguments.
func LimitOffset(q Query, args []any) (string, []any) {
	q = q.Normalize()
	clause := fmt.Sprintf("LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	return clause, append(args, q.PageSize, q.Offset())
}

func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}
