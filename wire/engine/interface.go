package engine

import (
	"context"
	"errors"
	"fmt"
)

// Row is one result row: opaque byte payloads, one per column. Value
// encoding is between the query engine and the client; the wire layer never
// interprets column bytes.
type Row [][]byte

// Outcome is the terminal status of a query's row stream
type Outcome struct {
	// Verb is the statement verb, e.g. "SELECT" or "INSERT"
	Verb string
	// RowCount is the number of rows returned or affected
	RowCount uint64
}

// Tag renders the outcome as a command-complete status tag, e.g. "SELECT 3"
func (o Outcome) Tag() string {
	return fmt.Sprintf("%s %d", o.Verb, o.RowCount)
}

// IRowStream is a finite, non-restartable sequence of rows produced by the
// query engine. The consumer pulls rows one at a time and must stop pulling
// when its context is canceled — that is the cooperative cancellation signal
// for a client that went away mid-stream.
type IRowStream interface {
	// Next returns the next row. ok=false means the stream finished and
	// Outcome is valid. A non-nil error ends the stream; wrap it in
	// FatalError when the failure poisons the whole connection.
	Next(ctx context.Context) (row Row, ok bool, err error)

	// Outcome returns the terminal status. Only valid after Next has
	// returned ok=false with a nil error.
	Outcome() Outcome
}

// IQueryEngine is the boundary to the external query execution engine.
// Execute errors are query-level (the connection survives) unless wrapped
// in FatalError.
type IQueryEngine interface {
	Execute(ctx context.Context, sql string) (IRowStream, error)
}

// --------------------------------------------------------------------------
// Fatal errors
// --------------------------------------------------------------------------

// FatalError marks an engine failure that must terminate the connection
// (e.g. underlying storage corruption) rather than just fail the statement.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("engine: fatal: %v", e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err as connection-fatal
func Fatal(err error) error {
	return &FatalError{Err: err}
}

// IsFatal reports whether err is (or wraps) a FatalError
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
