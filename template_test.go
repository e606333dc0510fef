package rainbow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	var tests = []struct {
		tmpl string
		args []string
		want string
	}{
		{SQLServerTemplate.Insert, []string{"Widgets", "Name,Price", "@Name,@Price"},
			"SET NOCOUNT ON INSERT Widgets (Name,Price) VALUES (@Name,@Price)"},
		{MySQLTemplate.Insert, []string{"Widgets", "Name", "@Name"},
			"INSERT INTO Widgets (Name) VALUES (@Name)"},
		{stmtUpdate, []string{"Widgets", "Name = @Name", "Id = @Id"},
			"UPDATE Widgets SET Name = @Name WHERE Id = @Id"},
		{stmtDelete, []string{"Widgets", "Id = @id"}, "DELETE FROM Widgets WHERE Id = @id"},
		{SQLServerTemplate.SelectFirst, []string{"Widgets"}, "SELECT TOP 1 * FROM Widgets"},
		{"{1} {0} {1}", []string{"a", "b"}, "b a b"},
		{"{0} {1}", []string{"a"}, "a {1}"},
		// substituted text is not scanned again
		{"{0} {1}", []string{"{1}", "x"}, "{1} x"},
	}
	for _, test := range tests {
		require.Equal(t, test.want, render(test.tmpl, test.args...))
	}
}

func TestTemplateFor(t *testing.T) {
	require.Same(t, SQLServerTemplate, TemplateFor("sqlserver"))
	require.Same(t, SQLServerTemplate, TemplateFor("mssql"))
	require.Same(t, MySQLTemplate, TemplateFor("mysql"))
	require.Same(t, PostgresTemplate, TemplateFor("postgres"))
	require.Same(t, PostgresTemplate, TemplateFor("pgx"))
	require.Same(t, SQLiteTemplate, TemplateFor("sqlite3"))
	require.Same(t, SQLiteTemplate, TemplateFor("sqlite"))

	// unknown drivers get the default
	require.Same(t, SQLServerTemplate, TemplateFor("sqlmock"))
	require.Same(t, SQLServerTemplate, TemplateFor(""))
}

func TestRegisterTemplate(t *testing.T) {
	firebird := &CrudTemplate{
		Insert:       "INSERT INTO {0} ({1}) VALUES ({2})",
		Update:       stmtUpdate,
		Delete:       stmtDelete,
		SelectAll:    stmtSelectAll,
		SelectFirst:  "SELECT FIRST 1 * FROM {0}",
		LastInsertID: "SELECT GEN_ID(gen_id, 0) FROM RDB$DATABASE",
		TableExists:  "SELECT COUNT(*) FROM RDB$RELATIONS WHERE RDB$RELATION_NAME = @name",
	}
	RegisterTemplate("firebirdsql", firebird)
	t.Cleanup(func() { RegisterTemplate("firebirdsql", nil) })

	require.Same(t, firebird, TemplateFor("firebirdsql"))
	require.Equal(t, "SELECT FIRST 1 * FROM Widgets", render(TemplateFor("firebirdsql").SelectFirst, "Widgets"))

	RegisterTemplate("firebirdsql", nil)
	require.Same(t, SQLServerTemplate, TemplateFor("firebirdsql"))
}

func TestTemplatesAreComplete(t *testing.T) {
	for _, tpl := range []*CrudTemplate{SQLServerTemplate, MySQLTemplate, PostgresTemplate, SQLiteTemplate} {
		for _, stmt := range []string{tpl.Insert, tpl.Update, tpl.Delete, tpl.SelectAll, tpl.SelectFirst, tpl.LastInsertID, tpl.TableExists} {
			require.NotEmpty(t, stmt)
		}
		_, names := compileNamed(tpl.TableExists, 0)
		require.Equal(t, []string{"name"}, names, tpl.TableExists)
	}
}
