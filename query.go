package rainbow

import (
	"context"
	"fmt"
	"iter"
	"reflect"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
)

// DefaultSplitOn is the column multi-mapping queries split rows on when no
// other is given.
const DefaultSplitOn = idColumn

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// isScannable reports whether t is scanned from a single column rather than
// field by field.
func isScannable(m *reflectx.Mapper, t reflect.Type) bool {
	if reflect.PointerTo(t).Implements(_scannerInterface) {
		return true
	}
	if t.Kind() != reflect.Struct {
		return true
	}
	return len(m.TypeMap(t).Index) == 0
}

// A rowScanner points the columns of a result set at the fields of one
// entity type. Struct fields match columns regardless of case; columns no
// field matches are read and dropped. A scannable type takes the first
// column.
type rowScanner struct {
	scalar     bool
	traversals [][]int
}

func newRowScanner(m *reflectx.Mapper, t reflect.Type, columns []string) *rowScanner {
	if isScannable(m, t) {
		return &rowScanner{scalar: true}
	}
	folded := make([]string, len(columns))
	for i, c := range columns {
		folded[i] = strings.ToLower(c)
	}
	return &rowScanner{traversals: m.TraversalsByName(t, folded)}
}

// targets fills dest, one entry per column, with pointers into v.
func (s *rowScanner) targets(v reflect.Value, dest []interface{}) {
	for i := range dest {
		switch {
		case s.scalar && i == 0:
			dest[i] = v.Addr().Interface()
		case s.scalar || len(s.traversals[i]) == 0:
			dest[i] = new(interface{})
		default:
			dest[i] = reflectx.FieldByIndexes(v, s.traversals[i]).Addr().Interface()
		}
	}
}

// scanAll reads the remaining rows of the current result set, handing each
// to yield until it returns false.
func scanAll[T any](rows *sqlx.Rows, yield func(T, error) bool) {
	var zero T
	columns, err := rows.Columns()
	if err != nil {
		yield(zero, err)
		return
	}
	s := newRowScanner(rows.Mapper, typeOf[T](), columns)
	dest := make([]interface{}, len(columns))
	for rows.Next() {
		var v T
		s.targets(reflect.ValueOf(&v).Elem(), dest)
		if err := rows.Scan(dest...); err != nil {
			yield(zero, err)
			return
		}
		if !yield(v, nil) {
			return
		}
	}
	if err := rows.Err(); err != nil {
		yield(zero, err)
	}
}

// Query runs query and returns every row. T is either a struct, whose fields
// are matched to columns by name ignoring case, or a value type scanned from
// the first column.
//
// Every distinct query text is compiled once and kept for the life of the
// process, so pass values as @name parameters rather than formatting them
// into the query.
func Query[T any](s Session, query string, params interface{}) ([]T, error) {
	var out []T
	for v, err := range queryIter[T](dbOf(s), query, params) {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// QueryIter is the unbuffered form of Query: rows are read as the sequence
// is ranged over. The connection stays busy until the range ends.
func QueryIter[T any](s Session, query string, params interface{}) iter.Seq2[T, error] {
	return queryIter[T](dbOf(s), query, params)
}

func queryIter[T any](db *Database, query string, params interface{}) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		rows, cancel, err := db.rows(query, params)
		if err != nil {
			yield(zero, err)
			return
		}
		defer cancel()
		defer rows.Close()
		scanAll(rows, yield)
	}
}

// QueryMaps runs query and returns each row as a map from column name to
// value.
func QueryMaps(s Session, query string, params interface{}) ([]map[string]interface{}, error) {
	rows, cancel, err := dbOf(s).rows(query, params)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer rows.Close()

	var out []map[string]interface{}
	for rows.Next() {
		m := make(map[string]interface{})
		if err := rows.MapScan(m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// QueryMap2 runs a query returning two entities per row, such as a join,
// and maps each row through fn. The columns of the second entity start at
// the last column named splitOn (DefaultSplitOn when empty).
func QueryMap2[A, B, R any](s Session, query string, params interface{}, splitOn string, fn func(A, B) R) ([]R, error) {
	var out []R
	err := queryMap(dbOf(s), query, params, splitOn, []reflect.Type{typeOf[A](), typeOf[B]()}, func(v []reflect.Value) {
		out = append(out, fn(v[0].Interface().(A), v[1].Interface().(B)))
	})
	return out, err
}

// QueryMap3 is QueryMap2 for three entities per row. splitOn may list one
// column per boundary separated by commas.
func QueryMap3[A, B, C, R any](s Session, query string, params interface{}, splitOn string, fn func(A, B, C) R) ([]R, error) {
	var out []R
	err := queryMap(dbOf(s), query, params, splitOn, []reflect.Type{typeOf[A](), typeOf[B](), typeOf[C]()}, func(v []reflect.Value) {
		out = append(out, fn(v[0].Interface().(A), v[1].Interface().(B), v[2].Interface().(C)))
	})
	return out, err
}

func QueryMap4[A, B, C, D, R any](s Session, query string, params interface{}, splitOn string, fn func(A, B, C, D) R) ([]R, error) {
	var out []R
	err := queryMap(dbOf(s), query, params, splitOn, []reflect.Type{typeOf[A](), typeOf[B](), typeOf[C](), typeOf[D]()}, func(v []reflect.Value) {
		out = append(out, fn(v[0].Interface().(A), v[1].Interface().(B), v[2].Interface().(C), v[3].Interface().(D)))
	})
	return out, err
}

func queryMap(db *Database, query string, params interface{}, splitOn string, types []reflect.Type, fn func([]reflect.Value)) error {
	rows, cancel, err := db.rows(query, params)
	if err != nil {
		return err
	}
	defer cancel()
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return err
	}
	bounds, err := splitColumns(columns, splitOn, len(types))
	if err != nil {
		return err
	}

	scanners := make([]*rowScanner, len(types))
	for i, t := range types {
		scanners[i] = newRowScanner(rows.Mapper, t, columns[bounds[i]:bounds[i+1]])
	}

	dest := make([]interface{}, len(columns))
	for rows.Next() {
		values := make([]reflect.Value, len(types))
		for i, t := range types {
			values[i] = reflect.New(t).Elem()
			scanners[i].targets(values[i], dest[bounds[i]:bounds[i+1]])
		}
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		fn(values)
	}
	return rows.Err()
}

// splitColumns returns n+1 column offsets delimiting n entities. A single
// split name is searched for from the right, so the first entity may carry
// a column of the same name; a comma separated list names each boundary in
// order from the left.
func splitColumns(columns []string, splitOn string, n int) ([]int, error) {
	if splitOn == "" {
		splitOn = DefaultSplitOn
	}
	names := strings.Split(splitOn, ",")
	for i := range names {
		names[i] = strings.TrimSpace(names[i])
	}

	bounds := make([]int, n+1)
	bounds[n] = len(columns)
	if len(names) == 1 {
		pos := len(columns)
		for b := n - 1; b > 0; b-- {
			pos = lastColumn(columns, names[0], 1, pos)
			if pos < 0 {
				return nil, fmt.Errorf("rainbow: split column %s not found for entity %d", names[0], b+1)
			}
			bounds[b] = pos
		}
		return bounds, nil
	}
	if len(names) != n-1 {
		return nil, fmt.Errorf("rainbow: %d split columns given for %d entities", len(names), n)
	}
	pos := 0
	for b := 1; b < n; b++ {
		pos = firstColumn(columns, names[b-1], pos+1)
		if pos < 0 {
			return nil, fmt.Errorf("rainbow: split column %s not found for entity %d", names[b-1], b+1)
		}
		bounds[b] = pos
	}
	return bounds, nil
}

// lastColumn finds name in columns[from:to], searching backwards.
func lastColumn(columns []string, name string, from, to int) int {
	for i := to - 1; i >= from; i-- {
		if strings.EqualFold(columns[i], name) {
			return i
		}
	}
	return -1
}

func firstColumn(columns []string, name string, from int) int {
	for i := from; i < len(columns); i++ {
		if strings.EqualFold(columns[i], name) {
			return i
		}
	}
	return -1
}

// GridReader reads the result sets of a multi-statement query in order.
type GridReader struct {
	rows   *sqlx.Rows
	cancel context.CancelFunc
	read   bool
	closed bool
}

// QueryMultiple runs a query producing several result sets. Read them in
// order with Read and Close the reader when done.
func QueryMultiple(s Session, query string, params interface{}) (*GridReader, error) {
	rows, cancel, err := dbOf(s).rows(query, params)
	if err != nil {
		return nil, err
	}
	return &GridReader{rows: rows, cancel: cancel}, nil
}

// Read returns every row of the next result set of g.
func Read[T any](g *GridReader) ([]T, error) {
	if g.closed {
		return nil, ErrNoMoreResults
	}
	if g.read && !g.rows.NextResultSet() {
		if err := g.rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNoMoreResults
	}
	g.read = true

	var out []T
	var err error
	scanAll(g.rows, func(v T, e error) bool {
		if e != nil {
			err = e
			return false
		}
		out = append(out, v)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the connection. It is safe to call more than once.
func (g *GridReader) Close() error {
	if g.closed {
		return nil
	}
	g.closed = true
	err := g.rows.Close()
	g.cancel()
	return err
}
