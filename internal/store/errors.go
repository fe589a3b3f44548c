package store

import "fmt"

// Op constants name vector store operations for error context.
const (
	OpCreateCollection = "create_collection"
	OpDescribe         = "describe_collection"
	OpDrop             = "drop_collection"
	OpUpsert           = "upsert_points"
	OpDelete           = "delete_points"
	OpQuery            = "search_points"
	OpPing             = "ping"
)

// Error wraps an underlying error with the operation and collection name
// so failures are diagnosable without inspecting internals.
type Error struct {
	Op         string
	Collection string
	Err        error
}

func (e *Error) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Collection, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
