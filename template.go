package rainbow

import (
	"strconv"
	"strings"
	"sync"
)

// CrudTemplate holds the statement shapes a dialect uses for the generated
// CRUD operations. Positional placeholders are {0} for the table name, {1}
// for the column list, assignment list or predicate and {2} for the value
// list or predicate. Parameters inside the statements use the @name form.
type CrudTemplate struct {
	Insert       string
	Update       string
	Delete       string
	SelectAll    string
	SelectFirst  string
	LastInsertID string

	// TableExists counts the catalog entries for the table bound to @name.
	// When empty, INFORMATION_SCHEMA.TABLES is asked.
	TableExists string
}

const (
	stmtUpdate    = "UPDATE {0} SET {1} WHERE {2}"
	stmtDelete    = "DELETE FROM {0} WHERE {1}"
	stmtSelectAll = "SELECT * FROM {0} WHERE {1}"

	informationSchemaExists = "SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_NAME = @name"
)

var (
	// SQLServerTemplate is the default template, used for any driver without
	// a registered one.
	//
	// SCOPE_IDENTITY() is scoped to a batch, and LastInsertID runs in a batch
	// of its own after the insert, so Insert returns a nil identity on SQL
	// Server. When the identity is needed, send the INSERT and
	// SELECT SCOPE_IDENTITY() together through Query.
	SQLServerTemplate = &CrudTemplate{
		Insert:       "SET NOCOUNT ON INSERT {0} ({1}) VALUES ({2})",
		Update:       stmtUpdate,
		Delete:       stmtDelete,
		SelectAll:    stmtSelectAll,
		SelectFirst:  "SELECT TOP 1 * FROM {0}",
		LastInsertID: "SELECT CAST(SCOPE_IDENTITY() AS INT)",
		TableExists:  informationSchemaExists,
	}

	MySQLTemplate = &CrudTemplate{
		Insert:       "INSERT INTO {0} ({1}) VALUES ({2})",
		Update:       stmtUpdate,
		Delete:       stmtDelete,
		SelectAll:    stmtSelectAll,
		SelectFirst:  "SELECT * FROM {0} LIMIT 1",
		LastInsertID: "SELECT LAST_INSERT_ID()",
		TableExists:  "SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = @name",
	}

	// PostgresTemplate compares table names case-insensitively since
	// unquoted identifiers are folded to lower case.
	PostgresTemplate = &CrudTemplate{
		Insert:       "INSERT INTO {0} ({1}) VALUES ({2})",
		Update:       stmtUpdate,
		Delete:       stmtDelete,
		SelectAll:    stmtSelectAll,
		SelectFirst:  "SELECT * FROM {0} LIMIT 1",
		LastInsertID: "SELECT lastval()",
		TableExists:  "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND lower(table_name) = lower(@name)",
	}

	SQLiteTemplate = &CrudTemplate{
		Insert:       "INSERT INTO {0} ({1}) VALUES ({2})",
		Update:       stmtUpdate,
		Delete:       stmtDelete,
		SelectAll:    stmtSelectAll,
		SelectFirst:  "SELECT * FROM {0} LIMIT 1",
		LastInsertID: "SELECT last_insert_rowid()",
		TableExists:  "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = @name COLLATE NOCASE",
	}
)

var templates sync.Map

var defaultTemplates = map[*CrudTemplate][]string{
	SQLServerTemplate: {"sqlserver", "mssql"},
	MySQLTemplate:     {"mysql", "nrmysql"},
	PostgresTemplate:  {"postgres", "pgx", "nrpostgres"},
	SQLiteTemplate:    {"sqlite3", "sqlite", "nrsqlite3"},
}

func init() {
	for t, drivers := range defaultTemplates {
		for _, driver := range drivers {
			RegisterTemplate(driver, t)
		}
	}
}

// RegisterTemplate sets the template used by containers opened on driverName.
// A nil template removes the registration.
func RegisterTemplate(driverName string, t *CrudTemplate) {
	if t == nil {
		templates.Delete(driverName)
		return
	}
	templates.Store(driverName, t)
}

// TemplateFor returns the template registered for driverName, or
// SQLServerTemplate when there is none.
func TemplateFor(driverName string) *CrudTemplate {
	if t, ok := templates.Load(driverName); ok {
		return t.(*CrudTemplate)
	}
	return SQLServerTemplate
}

// render replaces every {n} in tmpl with args[n].
func render(tmpl string, args ...string) string {
	pairs := make([]string, 0, 2*len(args))
	for i, a := range args {
		pairs = append(pairs, "{"+strconv.Itoa(i)+"}", a)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
