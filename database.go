package rainbow

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
)

// Database is the base of a container type. Embed it by value next to the
// table slots:
//
//	type Shop struct {
//	        rainbow.Database
//	        Products *rainbow.Table[Product]
//	        Orders   *rainbow.Table[Order]
//	}
//
//	shop, err := rainbow.Open[Shop](ctx, db, 30*time.Second)
//
// A Database uses one connection for its whole life, so session state such
// as the last generated identity survives between statements. It is not safe
// for concurrent use.
type Database struct {
	conn     *sqlx.Conn
	tx       *sqlx.Tx
	timeout  time.Duration
	template *CrudTemplate
	bindType int
	pool     *sqlx.DB
}

// Session is implemented by *Database and by every container embedding it.
type Session interface {
	database() *Database
}

func (db *Database) database() *Database {
	return db
}

func dbOf(s Session) *Database {
	if s == nil {
		return nil
	}
	return s.database()
}

// TemplateProvider can be implemented by a container type to pick its
// dialect instead of the one registered for the driver.
type TemplateProvider interface {
	CrudTemplate() *CrudTemplate
}

// columnMapper names struct fields by their db tag, or their Go name when
// there is none, folded to lower case. Column names are folded the same
// way before they are looked up.
var columnMapper = reflectx.NewMapperTagFunc("db", strings.ToLower, strings.ToLower)

// Init allocates a container of type D on conn and assigns every table slot
// it declares. driverName selects the bindvar style and the default
// template. A commandTimeout of zero means statements never time out.
func Init[D any](conn *sqlx.Conn, driverName string, commandTimeout time.Duration) (*D, error) {
	if conn == nil {
		return nil, ErrNotOpen
	}
	d := new(D)
	s, ok := any(d).(Session)
	if !ok || s.database() == nil {
		return nil, ErrNoDatabase
	}
	db := s.database()
	conn.Mapper = columnMapper
	db.conn = conn
	db.timeout = commandTimeout
	db.bindType = sqlx.BindType(driverName)
	db.template = TemplateFor(driverName)
	if tp, ok := any(d).(TemplateProvider); ok {
		if t := tp.CrudTemplate(); t != nil {
			db.template = t
		}
	}
	if err := bindTables(reflect.ValueOf(d).Elem(), db); err != nil {
		return nil, err
	}
	return d, nil
}

// Open takes a dedicated connection from pool and initializes a container
// of type D on it. Closing the container returns the connection to the pool.
func Open[D any](ctx context.Context, pool *sqlx.DB, commandTimeout time.Duration) (*D, error) {
	conn, err := pool.Connx(ctx)
	if err != nil {
		return nil, err
	}
	d, err := Init[D](conn, pool.DriverName(), commandTimeout)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return d, nil
}

// queryer is the part of *sqlx.Conn and *sqlx.Tx statements run against.
type queryer interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
}

func (db *Database) queryer() (queryer, error) {
	if db == nil || db.conn == nil {
		return nil, ErrNotOpen
	}
	if db.tx != nil {
		return db.tx, nil
	}
	return db.conn, nil
}

func (db *Database) context() (context.Context, context.CancelFunc) {
	if db.timeout > 0 {
		return context.WithTimeout(context.Background(), db.timeout)
	}
	return context.WithCancel(context.Background())
}

// statement binds the parameters of query and runs fn under the command
// timeout, on the open transaction if there is one.
func (db *Database) statement(query string, params interface{}, fn func(ctx context.Context, q queryer, query string, args []interface{}) error) error {
	q, err := db.queryer()
	if err != nil {
		return err
	}
	query, args, err := bindNamed(db.bindType, query, params)
	if err != nil {
		return err
	}
	ctx, cancel := db.context()
	defer cancel()

	start := time.Now()
	err = fn(ctx, q, query, args)
	logs.Statement(ctx, query, args, time.Since(start), err)
	return err
}

// rows runs query and leaves the result open. The returned cancel func must
// be called once the rows are closed.
func (db *Database) rows(query string, params interface{}) (*sqlx.Rows, context.CancelFunc, error) {
	q, err := db.queryer()
	if err != nil {
		return nil, nil, err
	}
	query, args, err := bindNamed(db.bindType, query, params)
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := db.context()

	start := time.Now()
	rows, err := q.QueryxContext(ctx, query, args...)
	logs.Statement(ctx, query, args, time.Since(start), err)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return rows, cancel, nil
}

func (db *Database) exec(query string, params interface{}) (res sql.Result, err error) {
	err = db.statement(query, params, func(ctx context.Context, q queryer, query string, args []interface{}) error {
		res, err = q.ExecContext(ctx, query, args...)
		return err
	})
	return res, err
}

// scalar scans the first column of the first row into dest.
func (db *Database) scalar(query string, params interface{}, dest interface{}) error {
	return db.statement(query, params, func(ctx context.Context, q queryer, query string, args []interface{}) error {
		return q.QueryRowxContext(ctx, query, args...).Scan(dest)
	})
}

// Execute runs a statement with @name parameters taken from params and
// returns the number of rows affected. The compiled form of every distinct
// query text is kept for the life of the process, so values belong in
// params, not in the query text.
func (db *Database) Execute(query string, params interface{}) (int64, error) {
	res, err := db.exec(query, params)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// BeginTransaction starts a transaction every following statement joins
// until it is committed or rolled back.
func (db *Database) BeginTransaction(level sql.IsolationLevel) error {
	if db == nil || db.conn == nil {
		return ErrNotOpen
	}
	if db.tx != nil {
		return ErrTransactionOpen
	}
	// The transaction outlives any single statement, so it must not be
	// bound to the command timeout.
	tx, err := db.conn.BeginTxx(context.Background(), &sql.TxOptions{Isolation: level})
	if err != nil {
		return err
	}
	db.tx = tx
	return nil
}

// CommitTransaction commits the open transaction. The container leaves the
// transaction even when the commit fails.
func (db *Database) CommitTransaction() error {
	if db == nil || db.tx == nil {
		return ErrNoTransaction
	}
	tx := db.tx
	db.tx = nil
	return tx.Commit()
}

// RollbackTransaction rolls back the open transaction. The container leaves
// the transaction even when the rollback fails.
func (db *Database) RollbackTransaction() error {
	if db == nil || db.tx == nil {
		return ErrNoTransaction
	}
	tx := db.tx
	db.tx = nil
	return tx.Rollback()
}

func (db *Database) InTransaction() bool {
	return db != nil && db.tx != nil
}

// Template returns the statement template in use.
func (db *Database) Template() *CrudTemplate {
	return db.template
}

// SetTemplate switches the container to another dialect. Table names that
// were already resolved are kept.
func (db *Database) SetTemplate(t *CrudTemplate) {
	if t != nil {
		db.template = t
	}
}

func (db *Database) CommandTimeout() time.Duration {
	return db.timeout
}

// Close rolls back an open transaction and releases the connection, and the
// pool when the container owns one. Closing twice is a no-op.
func (db *Database) Close() error {
	if db == nil || db.conn == nil {
		return nil
	}
	var errs []error
	if db.tx != nil {
		if err := db.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			errs = append(errs, err)
		}
		db.tx = nil
	}
	if err := db.conn.Close(); err != nil {
		errs = append(errs, err)
	}
	db.conn = nil
	if db.pool != nil {
		if err := db.pool.Close(); err != nil {
			errs = append(errs, err)
		}
		db.pool = nil
	}
	return errors.Join(errs...)
}
