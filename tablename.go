package rainbow

import (
	"context"
	"reflect"
	"sync"
)

// tableNameCache maps an entity reflect.Type to its resolved table name. The
// first resolution for a type wins for the life of the process.
var tableNameCache sync.Map

// resolveTableName returns the table an entity type is stored in: candidate
// when the catalog knows a table by that name, the entity's Go type name
// otherwise.
func (db *Database) resolveTableName(candidate string, entity reflect.Type) (string, error) {
	if name, ok := tableNameCache.Load(entity); ok {
		return name.(string), nil
	}
	if db == nil || db.conn == nil {
		return "", ErrNotOpen
	}

	exists := db.template.TableExists
	if exists == "" {
		exists = informationSchemaExists
	}
	var count int64
	err := db.statement(exists, NewParams().Add("name", candidate),
		func(ctx context.Context, q queryer, query string, args []interface{}) error {
			return q.QueryRowxContext(ctx, query, args...).Scan(&count)
		})
	if err != nil {
		return "", err
	}

	name := entity.Name()
	if count > 0 {
		name = candidate
	}
	actual, _ := tableNameCache.LoadOrStore(entity, name)
	return actual.(string), nil
}
