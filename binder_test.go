package rainbow

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type catalog struct {
	Widgets *Table[Widget]
}

type Inventory struct {
	Gadgets *Table[Gadget]
}

// Warehouse extends two container levels, one of them unexported.
type Warehouse struct {
	Database
	catalog
	Inventory
	Products *Table[Product]
	Note     string
	ignored  *Widget
}

type valueSlot struct {
	Database
	Gadgets *Table[Gadget]
	Widgets Table[Widget]
}

type unexportedSlot struct {
	Database
	Gadgets *Table[Gadget]
	widgets *Table[Widget]
}

type Stockroom struct {
	Gadgets *Table[Gadget]
}

// Depot reaches one container level through a pointer.
type Depot struct {
	Database
	*Stockroom
	*Widget
	Products *Table[Product]
}

type stockroom struct {
	Gadgets *Table[Gadget]
}

type hiddenLevel struct {
	Database
	*stockroom
	Products *Table[Product]
}

// chain embeds itself and must not be walked twice.
type chain struct {
	*chain
	Widgets *Table[Widget]
}

func TestBindTables(t *testing.T) {
	db := &Database{}
	var w Warehouse
	require.NoError(t, bindTables(reflect.ValueOf(&w).Elem(), db))

	require.NotNil(t, w.Widgets)
	require.Same(t, db, w.Widgets.db)
	require.Equal(t, "Widgets", w.Widgets.likelyName)

	require.NotNil(t, w.Gadgets)
	require.Same(t, db, w.Gadgets.db)
	require.Equal(t, "Gadgets", w.Gadgets.likelyName)

	require.NotNil(t, w.Products)
	require.Equal(t, "Products", w.Products.likelyName)
	require.Nil(t, w.ignored)
}

func TestBindTablesCache(t *testing.T) {
	typ := reflect.TypeOf(Warehouse{})
	binders.Delete(typ)

	var first, second Warehouse
	db1, db2 := &Database{}, &Database{}
	require.NoError(t, bindTables(reflect.ValueOf(&first).Elem(), db1))
	b, ok := binders.Load(typ)
	require.True(t, ok)
	require.Len(t, b.(*binder).slots, 3)

	require.NoError(t, bindTables(reflect.ValueOf(&second).Elem(), db2))
	again, _ := binders.Load(typ)
	require.Same(t, b, again)

	// each instance gets its own accessors
	require.NotSame(t, first.Widgets, second.Widgets)
	require.Same(t, db1, first.Widgets.db)
	require.Same(t, db2, second.Widgets.db)
}

func TestBindTablesMalformed(t *testing.T) {
	var v valueSlot
	err := bindTables(reflect.ValueOf(&v).Elem(), &Database{})
	require.True(t, errors.Is(err, ErrMalformedSlot), err)
	require.ErrorContains(t, err, "Widgets")
	require.Nil(t, v.Gadgets)

	var u unexportedSlot
	err = bindTables(reflect.ValueOf(&u).Elem(), &Database{})
	require.True(t, errors.Is(err, ErrMalformedSlot), err)
	require.ErrorContains(t, err, "widgets")
	require.Nil(t, u.Gadgets)
	require.Nil(t, u.widgets)

	// the failure is cached with the binder and reported every time
	err = bindTables(reflect.ValueOf(&u).Elem(), &Database{})
	require.ErrorIs(t, err, ErrMalformedSlot)
}

func TestBindTablesEmbeddedPointer(t *testing.T) {
	db := &Database{}
	var d Depot
	require.NoError(t, bindTables(reflect.ValueOf(&d).Elem(), db))
	require.NotNil(t, d.Stockroom)
	require.NotNil(t, d.Gadgets)
	require.Same(t, db, d.Gadgets.db)
	require.Equal(t, "Gadgets", d.Gadgets.likelyName)
	require.NotNil(t, d.Products)
	// no slots below it, so it stays nil
	require.Nil(t, d.Widget)

	// a level the caller already set is kept
	room := &Stockroom{}
	e := Depot{Stockroom: room}
	require.NoError(t, bindTables(reflect.ValueOf(&e).Elem(), db))
	require.Same(t, room, e.Stockroom)
	require.NotNil(t, room.Gadgets)

	var c chain
	require.NoError(t, bindTables(reflect.ValueOf(&c).Elem(), db))
	require.NotNil(t, c.Widgets)
	require.Nil(t, c.chain)

	var h hiddenLevel
	err := bindTables(reflect.ValueOf(&h).Elem(), db)
	require.ErrorIs(t, err, ErrMalformedSlot)
	require.ErrorContains(t, err, "stockroom")
	require.Nil(t, h.stockroom)
	require.Nil(t, h.Products)
}

func TestBindTablesConcurrent(t *testing.T) {
	typ := reflect.TypeOf(Depot{})
	binders.Delete(typ)

	var wg sync.WaitGroup
	found := make([]*binder, 8)
	depots := make([]Depot, len(found))
	errs := make([]error, len(found))
	for i := range found {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = bindTables(reflect.ValueOf(&depots[i]).Elem(), &Database{})
			found[i] = binderOf(typ)
		}()
	}
	wg.Wait()

	cached, ok := binders.Load(typ)
	require.True(t, ok)
	for i := range found {
		require.NoError(t, errs[i])
		require.Same(t, cached.(*binder), found[i])
		require.NotNil(t, depots[i].Gadgets)
		require.NotNil(t, depots[i].Products)
	}
}
