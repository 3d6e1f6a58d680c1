package session

import "time"

// Reserved hash fields holding the fixed session attributes.
const (
	FieldUserID     = "__userId"
	FieldCreatedAt  = "__created"
	FieldLastAccess = "__last"
)

// Record is a decoded session hash.
type Record struct {
	Token        string
	UserID       int64
	CreatedAt    time.Time
	LastAccessAt time.Time
}

// RawRecord carries the fixed fields exactly as the store returned them.
// A field the store did not have is the empty string.
type RawRecord struct {
	Token        string
	UserID       string
	CreatedAt    string
	LastAccessAt string
}

// IsReservedField reports whether name is one of the fixed session fields
// that callers may not overwrite through value slots.
func IsReservedField(name string) bool {
	switch name {
	case FieldUserID, FieldCreatedAt, FieldLastAccess:
		return true
	default:
		return false
	}
}
