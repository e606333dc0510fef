package rainbow

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
)

type compiled struct {
	query string
	names []string
}

type compileKey struct {
	query    string
	bindType int
}

// compiledCache maps a compileKey to its *compiled statement. Entries are
// never evicted.
var compiledCache sync.Map

// compileNamed rewrites the @name parameters of qs into the bindvar style of
// bindType and returns the names in the order the driver expects their
// values. Parameters inside literals, quoted identifiers and comments are
// left alone, as are @@system variables.
func compileNamed(qs string, bindType int) (query string, names []string) {
	key := compileKey{qs, bindType}
	if c, ok := compiledCache.Load(key); ok {
		c := c.(*compiled)
		return c.query, c.names
	}

	rebound := strings.Builder{}
	names = make([]string, 0, 10)
	currentVar := 1
	byteOffset := 0

	lex := lexSQL(qs)
	for tok := range lex.items {
		if tok.typ != itemParameter {
			continue
		}
		name := tok.val[1:]
		names = append(names, name)
		rebound.WriteString(qs[byteOffset:tok.pos])
		switch bindType {
		case sqlx.NAMED:
			rebound.WriteByte(':')
			rebound.WriteString(name)
		case sqlx.DOLLAR:
			rebound.WriteByte('$')
			rebound.WriteString(strconv.Itoa(currentVar))
			currentVar++
		case sqlx.AT:
			rebound.WriteString("@p")
			rebound.WriteString(strconv.Itoa(currentVar))
			currentVar++
		default:
			rebound.WriteByte('?')
		}
		byteOffset = tok.pos + len(tok.val)
	}
	query = qs
	if len(names) > 0 {
		rebound.WriteString(qs[byteOffset:])
		query = rebound.String()
	}
	compiledCache.Store(key, &compiled{query, names})
	return query, names
}

// bindNamed compiles query for bindType and collects the values of its
// parameters from params.
func bindNamed(bindType int, query string, params interface{}) (string, []interface{}, error) {
	q, names := compileNamed(query, bindType)
	if len(names) == 0 {
		return q, nil, nil
	}
	get, err := argSource(params)
	if err != nil {
		return "", nil, err
	}
	args := make([]interface{}, 0, len(names))
	for _, name := range names {
		v, ok := get(name)
		if !ok {
			return "", nil, fmt.Errorf("rainbow: could not find name %s in %T", name, params)
		}
		args = append(args, v)
	}
	return q, args, nil
}

// argSource returns a lookup over the values of params. Names match exactly
// first and case-insensitively second.
func argSource(params interface{}) (func(string) (interface{}, bool), error) {
	switch p := params.(type) {
	case nil:
		return func(string) (interface{}, bool) { return nil, false }, nil
	case *Params:
		if p == nil {
			return nil, fmt.Errorf("rainbow: nil *Params")
		}
		return func(name string) (interface{}, bool) {
			if v, ok := p.Get(name); ok {
				return v, true
			}
			for _, n := range p.names {
				if strings.EqualFold(n, name) {
					return p.values[n], true
				}
			}
			return nil, false
		}, nil
	case map[string]interface{}:
		return func(name string) (interface{}, bool) {
			if v, ok := p[name]; ok {
				return v, true
			}
			for n, v := range p {
				if strings.EqualFold(n, name) {
					return v, true
				}
			}
			return nil, false
		}, nil
	}

	info, err := recordInfoOf(reflect.TypeOf(params))
	if err != nil {
		return nil, err
	}
	v := reflect.ValueOf(params)
	if v.Kind() == reflect.Ptr && v.IsNil() {
		return nil, fmt.Errorf("rainbow: nil %T", params)
	}
	return func(name string) (interface{}, bool) {
		if i, ok := info.byName[name]; ok {
			return fieldValue(v, info.columns[i].index), true
		}
		for _, c := range info.columns {
			if strings.EqualFold(c.name, name) {
				return fieldValue(v, c.index), true
			}
		}
		return nil, false
	}, nil
}
