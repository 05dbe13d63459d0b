package store

import "github.com/oklog/ulid/v2"

// NewID returns a new sortable identifier for a stored entity.
func NewID() string {
	return ulid.Make().String()
}
