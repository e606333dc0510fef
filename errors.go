package rainbow

import "errors"

var (
	// ErrTransactionOpen is returned by BeginTransaction when the container
	// already holds an open transaction.
	ErrTransactionOpen = errors.New("rainbow: transaction already open")

	// ErrNoTransaction is returned by CommitTransaction and RollbackTransaction
	// when there is nothing to finish.
	ErrNoTransaction = errors.New("rainbow: no open transaction")

	// ErrMalformedSlot is returned when a container declares a table slot the
	// binder cannot assign, such as a Table[T] held by value or an unexported
	// *Table[T] field.
	ErrMalformedSlot = errors.New("rainbow: malformed table slot")

	// ErrNoDatabase is returned by Init when the container type does not embed
	// Database.
	ErrNoDatabase = errors.New("rainbow: container does not embed rainbow.Database")

	// ErrNotOpen is returned by operations on a container that was never
	// initialized or has been closed.
	ErrNotOpen = errors.New("rainbow: database is not open")

	// ErrNoColumns is returned when a record yields no parameter names to
	// insert or update.
	ErrNoColumns = errors.New("rainbow: record has no columns")
)

// ErrNoMoreResults is returned by Read once every result set has been read.
var ErrNoMoreResults = errors.New("rainbow: no more result sets")
