package index

import "errors"

// Sentinel errors shared by all drivers.
var (
	ErrKeyNotFound        = errors.New("index: key not found")
	ErrCollectionNotFound = errors.New("index: collection not found")
	ErrDimensionMismatch  = errors.New("index: vector dimension mismatch")
	ErrUnavailable        = errors.New("index: backend unavailable")
)

// Logical operation names for error context. Drivers tag failures with the
// operation rather than backend-specific command names so callers can reason
// about them uniformly.
const (
	OpEnsure = "ensure"
	OpList   = "list"
	OpCount  = "count"
	OpUpsert = "upsert"
	OpQuery  = "query"
	OpGet    = "get"
	OpSet    = "set"
	OpIncr   = "incr"
	OpExpire = "expire"
	OpPing   = "ping"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "index " + e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
