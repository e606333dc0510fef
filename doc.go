// Package rainbow is a small convention-based data access layer on top of
// sqlx.
//
// A container type embeds Database and declares one *Table[T] field per
// table. Init, Open or Connect allocate the container, run it on a single
// connection and assign every table field, after which each table offers
// Insert, Update, Delete, Get, First and All without any SQL:
//
//	type Product struct {
//	        Id    int64
//	        Name  string
//	        Price float64
//	}
//
//	type Shop struct {
//	        rainbow.Database
//	        Products *rainbow.Table[Product]
//	}
//
//	shop, err := rainbow.Open[Shop](ctx, db, 30*time.Second)
//	id, err := shop.Products.Insert(Product{Name: "kettle", Price: 25})
//	p, err := shop.Products.Get(*id)
//
// Conventions: every table has an identity primary key column named Id, and
// a table field is backed by the table with the field's name when the
// database has one, or else by the table named after the entity type.
//
// Statements take @name parameters, which are rewritten into the bindvar
// style of the driver (?, $n, @pn or :name). Parameter values come from a
// struct, a map[string]interface{} or a *Params bag.
//
// The SQL of the generated statements comes from a CrudTemplate picked by
// driver name; SQL Server, MySQL, PostgreSQL and SQLite are built in, and
// RegisterTemplate adds others.
package rainbow
