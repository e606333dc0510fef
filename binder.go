package rainbow

import (
	"fmt"
	"reflect"
	"sync"
)

// tableSlot is implemented by *Table[T] for every T.
type tableSlot interface {
	bind(db *Database, likelyName string)
}

var tableSlotType = reflect.TypeOf((*tableSlot)(nil)).Elem()

type slot struct {
	index []int
	name  string
	typ   reflect.Type // Table[T]
}

// A binder assigns the table slots of one container type.
type binder struct {
	slots []slot
	// allocs are the embedded pointers leading to slots, outermost first.
	allocs [][]int
	err    error
}

// binders maps a container reflect.Type to its *binder.
var binders sync.Map

// bindTables assigns a fresh accessor to every table slot of container,
// which must be an addressable struct value. Each accessor takes its field
// name as the likely table name.
func bindTables(container reflect.Value, db *Database) error {
	return binderOf(container.Type()).apply(container, db)
}

func binderOf(t reflect.Type) *binder {
	b, ok := binders.Load(t)
	if !ok {
		b, _ = binders.LoadOrStore(t, newBinder(t))
	}
	return b.(*binder)
}

func newBinder(t reflect.Type) *binder {
	b := &binder{}
	b.discover(t, nil, map[reflect.Type]bool{t: true})
	return b
}

// discover records the slots of t and of every struct embedded in it.
// outer holds the types enclosing t, which cannot be embedded again.
func (b *binder) discover(t reflect.Type, index []int, outer map[reflect.Type]bool) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		path := append(append(make([]int, 0, len(index)+1), index...), i)

		switch {
		case f.Type.Kind() == reflect.Ptr && f.Type.Implements(tableSlotType):
			if !f.IsExported() {
				b.malformed(t, f, "is unexported")
				continue
			}
			b.slots = append(b.slots, slot{path, f.Name, f.Type.Elem()})
		case f.Type.Kind() == reflect.Struct && reflect.PointerTo(f.Type).Implements(tableSlotType):
			b.malformed(t, f, "must be a pointer")
		case f.Anonymous && f.Type.Kind() == reflect.Struct:
			b.discover(f.Type, path, outer)
		case f.Anonymous && f.Type.Kind() == reflect.Ptr && f.Type.Elem().Kind() == reflect.Struct:
			elem := f.Type.Elem()
			if outer[elem] {
				continue
			}
			allocs, slots := len(b.allocs), len(b.slots)
			b.allocs = append(b.allocs, path)
			outer[elem] = true
			b.discover(elem, path, outer)
			delete(outer, elem)
			switch {
			case len(b.slots) == slots:
				b.allocs = b.allocs[:allocs]
			case !f.IsExported():
				b.malformed(t, f, "is unexported")
			}
		}
	}
}

func (b *binder) malformed(t reflect.Type, f reflect.StructField, why string) {
	if b.err == nil {
		b.err = fmt.Errorf("%w: %s.%s %s", ErrMalformedSlot, t, f.Name, why)
	}
}

func (b *binder) apply(container reflect.Value, db *Database) error {
	if b.err != nil {
		return b.err
	}
	for _, index := range b.allocs {
		if f := container.FieldByIndex(index); f.IsNil() {
			f.Set(reflect.New(f.Type().Elem()))
		}
	}
	for _, s := range b.slots {
		table := reflect.New(s.typ)
		table.Interface().(tableSlot).bind(db, s.name)
		container.FieldByIndex(s.index).Set(table)
	}
	return nil
}
