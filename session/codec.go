package session

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrCorruptRecord is returned by [RawRecord.Decode] when a fixed field cannot be parsed.
var ErrCorruptRecord = errors.New("corrupt session record")

// FormatUserID encodes a user id for storage.
func FormatUserID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// FormatTime encodes a timestamp for storage as RFC 3339 with nanoseconds in UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime decodes a stored timestamp.
func ParseTime(v string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, v)
}

// Decode parses the fixed fields. The caller must have checked that the user
// id field was present; an empty timestamp counts as corrupt.
func (r RawRecord) Decode() (*Record, error) {
	userID, err := strconv.ParseInt(r.UserID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: user id %q", ErrCorruptRecord, r.UserID)
	}

	createdAt, err := ParseTime(r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: created at %q", ErrCorruptRecord, r.CreatedAt)
	}

	lastAccess, err := ParseTime(r.LastAccessAt)
	if err != nil {
		return nil, fmt.Errorf("%w: last access %q", ErrCorruptRecord, r.LastAccessAt)
	}

	return &Record{
		Token:        r.Token,
		UserID:       userID,
		CreatedAt:    createdAt,
		LastAccessAt: lastAccess,
	}, nil
}
