package rainbow

import (
	"database/sql"
	"iter"
	"reflect"
	"strings"
)

// idColumn is the identity primary key every table carries.
const idColumn = "Id"

// Table gives typed CRUD access to the rows of one table. Containers declare
// tables as exported *Table[T] fields; the field name is tried as the table
// name first and the name of T second.
type Table[T any] struct {
	db         *Database
	likelyName string
	name       string
}

// NewTable returns an accessor for the table likelyName on db.
func NewTable[T any](db *Database, likelyName string) *Table[T] {
	return &Table[T]{db: db, likelyName: likelyName}
}

func (t *Table[T]) bind(db *Database, likelyName string) {
	t.db = db
	t.likelyName = likelyName
	t.name = ""
}

// TableName resolves the table name on first use. Once resolved it does not
// change.
func (t *Table[T]) TableName() (string, error) {
	if t.db == nil || t.db.conn == nil {
		return "", ErrNotOpen
	}
	if t.name != "" {
		return t.name, nil
	}
	name, err := t.db.resolveTableName(t.likelyName, reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return "", err
	}
	t.name = name
	return name, nil
}

// Insert inserts record and returns the identity the store generated for
// it, or nil when it reports none. record may be a struct, a pointer to a
// struct, a map[string]interface{} or a *Params.
func (t *Table[T]) Insert(record interface{}) (*int64, error) {
	return InsertAs[int64](t, record)
}

// InsertAs is Insert for identities of type ID.
func InsertAs[ID any, T any](t *Table[T], record interface{}) (*ID, error) {
	name, err := t.TableName()
	if err != nil {
		return nil, err
	}
	names, err := insertNames(record)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, ErrNoColumns
	}
	values := make([]string, len(names))
	for i, n := range names {
		values[i] = "@" + n
	}

	tpl := t.db.template
	query := render(tpl.Insert, name, strings.Join(names, ","), strings.Join(values, ","))
	if _, err := t.db.exec(query, record); err != nil {
		return nil, err
	}

	var id sql.Null[ID]
	if err := t.db.scalar(tpl.LastInsertID, nil, &id); err != nil {
		return nil, err
	}
	if !id.Valid {
		return nil, nil
	}
	return &id.V, nil
}

// insertNames returns the columns to insert. A struct record whose identity
// field holds its zero value leaves the identity to the store.
func insertNames(record interface{}) ([]string, error) {
	names, err := ParamNames(record)
	if err != nil {
		return nil, err
	}
	switch record.(type) {
	case *Params, map[string]interface{}:
		return names, nil
	}
	get, err := argSource(record)
	if err != nil {
		return nil, err
	}
	out := names[:0:0]
	for _, n := range names {
		if strings.EqualFold(n, idColumn) {
			if v, _ := get(n); v == nil || reflect.ValueOf(v).IsZero() {
				continue
			}
		}
		out = append(out, n)
	}
	return out, nil
}

// Update sets every column of record except the identity on the row with
// identity id and returns the number of rows affected.
func (t *Table[T]) Update(id interface{}, record interface{}) (int64, error) {
	name, err := t.TableName()
	if err != nil {
		return 0, err
	}
	params, err := ParamsOf(record)
	if err != nil {
		return 0, err
	}
	var sets []string
	for _, n := range params.Names() {
		if strings.EqualFold(n, idColumn) {
			continue
		}
		sets = append(sets, n+" = @"+n)
	}
	if len(sets) == 0 {
		return 0, ErrNoColumns
	}
	params.Add(idColumn, id)

	query := render(t.db.template.Update, name, strings.Join(sets, ", "), idColumn+" = @"+idColumn)
	return t.db.Execute(query, params)
}

// Delete removes the row with identity id and reports whether there was one.
func (t *Table[T]) Delete(id interface{}) (bool, error) {
	name, err := t.TableName()
	if err != nil {
		return false, err
	}
	n, err := t.db.Execute(render(t.db.template.Delete, name, idColumn+" = @id"), NewParams().Add("id", id))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Get returns the row with identity id, or nil when there is none.
func (t *Table[T]) Get(id interface{}) (*T, error) {
	name, err := t.TableName()
	if err != nil {
		return nil, err
	}
	return queryFirst[T](t.db, render(t.db.template.SelectAll, name, idColumn+" = @id"), NewParams().Add("id", id))
}

// First returns some row of the table, or nil when it is empty.
func (t *Table[T]) First() (*T, error) {
	name, err := t.TableName()
	if err != nil {
		return nil, err
	}
	return queryFirst[T](t.db, render(t.db.template.SelectFirst, name), nil)
}

// All streams every row of the table. Each range over the sequence runs the
// query again.
func (t *Table[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		name, err := t.TableName()
		if err != nil {
			var zero T
			yield(zero, err)
			return
		}
		for v, err := range queryIter[T](t.db, render(t.db.template.SelectAll, name, "1 = 1"), nil) {
			if !yield(v, err) {
				return
			}
		}
	}
}

func queryFirst[T any](db *Database, query string, params interface{}) (*T, error) {
	for v, err := range queryIter[T](db, query, params) {
		if err != nil {
			return nil, err
		}
		return &v, nil
	}
	return nil, nil
}
