package rainbow

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx/reflectx"
)

// Params is an ordered bag of named statement parameters. The zero value is
// ready to use.
type Params struct {
	names  []string
	values map[string]interface{}
}

// NewParams returns an empty parameter bag.
func NewParams() *Params {
	return &Params{}
}

// ParamsOf copies the named values of record (a struct, a pointer to a
// struct, a map[string]interface{} or a *Params) into a new bag.
func ParamsOf(record interface{}) (*Params, error) {
	names, err := ParamNames(record)
	if err != nil {
		return nil, err
	}
	get, err := argSource(record)
	if err != nil {
		return nil, err
	}
	p := &Params{
		names:  make([]string, 0, len(names)),
		values: make(map[string]interface{}, len(names)),
	}
	for _, name := range names {
		v, _ := get(name)
		p.Add(name, v)
	}
	return p, nil
}

// Add sets name to value and returns the bag. Adding a name that is already
// present replaces its value and keeps its position.
func (p *Params) Add(name string, value interface{}) *Params {
	if p.values == nil {
		p.values = make(map[string]interface{})
	}
	if _, ok := p.values[name]; !ok {
		p.names = append(p.names, name)
	}
	p.values[name] = value
	return p
}

// Names returns the parameter names in insertion order.
func (p *Params) Names() []string {
	return append([]string(nil), p.names...)
}

func (p *Params) Get(name string) (interface{}, bool) {
	v, ok := p.values[name]
	return v, ok
}

func (p *Params) Len() int {
	return len(p.names)
}

// A column is one parameter of a record type with the path to its field.
type column struct {
	name  string
	index []int
}

type recordInfo struct {
	columns []column
	byName  map[string]int
}

// paramNameCache maps a record reflect.Type to its *recordInfo.
var paramNameCache sync.Map

var (
	_valuerInterface  = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	_scannerInterface = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
)

// ParamNames returns the parameter names record exposes. Struct types are
// enumerated once and cached for the life of the process; maps yield their
// keys in sorted order.
func ParamNames(record interface{}) ([]string, error) {
	switch r := record.(type) {
	case *Params:
		if r == nil {
			return nil, fmt.Errorf("rainbow: nil *Params")
		}
		return r.Names(), nil
	case map[string]interface{}:
		names := make([]string, 0, len(r))
		for k := range r {
			names = append(names, k)
		}
		sort.Strings(names)
		return names, nil
	}
	info, err := recordInfoOf(reflect.TypeOf(record))
	if err != nil {
		return nil, err
	}
	names := make([]string, len(info.columns))
	for i, c := range info.columns {
		names[i] = c.name
	}
	return names, nil
}

func recordInfoOf(t reflect.Type) (*recordInfo, error) {
	if t == nil {
		return nil, fmt.Errorf("rainbow: cannot take parameters from nil")
	}
	t = reflectx.Deref(t)
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("rainbow: cannot take parameters from %s", t)
	}
	if info, ok := paramNameCache.Load(t); ok {
		return info.(*recordInfo), nil
	}
	info, _ := paramNameCache.LoadOrStore(t, buildRecordInfo(t))
	return info.(*recordInfo), nil
}

type candidate struct {
	column
	depth int
}

func buildRecordInfo(t reflect.Type) *recordInfo {
	var found []candidate
	collectColumns(t, nil, 0, &found)

	// A name declared at a shallower depth shadows the same name deeper down;
	// at equal depth the first declaration wins.
	winner := make(map[string]int, len(found))
	for i, c := range found {
		j, ok := winner[c.name]
		if !ok || c.depth < found[j].depth {
			winner[c.name] = i
		}
	}
	info := &recordInfo{byName: make(map[string]int, len(winner))}
	for i, c := range found {
		if winner[c.name] != i {
			continue
		}
		info.byName[c.name] = len(info.columns)
		info.columns = append(info.columns, c.column)
	}
	return info
}

func isValueType(t reflect.Type) bool {
	return t.Implements(_valuerInterface) || reflect.PointerTo(t).Implements(_scannerInterface)
}

func collectColumns(t reflect.Type, index []int, depth int, out *[]candidate) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag, hasTag := f.Tag.Lookup("db")
		if tag == "-" {
			continue
		}
		if comma := strings.IndexByte(tag, ','); comma >= 0 {
			tag = tag[:comma]
		}
		path := append(append(make([]int, 0, len(index)+1), index...), i)

		ft := reflectx.Deref(f.Type)
		embedded := f.Anonymous && !hasTag && ft.Kind() == reflect.Struct && !isValueType(ft)
		if embedded && (f.IsExported() || f.Type.Kind() == reflect.Struct) {
			collectColumns(ft, path, depth+1, out)
			continue
		}
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag != "" {
			name = tag
		}
		*out = append(*out, candidate{column{name, path}, depth})
	}
}

// fieldValue reads the field at index, returning nil when an embedded
// pointer on the way is nil.
func fieldValue(v reflect.Value, index []int) interface{} {
	for _, i := range index {
		v = reflect.Indirect(v)
		if !v.IsValid() {
			return nil
		}
		v = v.Field(i)
	}
	return v.Interface()
}
