package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrReservedField is returned when a value slot targets one of the fixed fields.
var ErrReservedField = errors.New("reserved session field")

// DefaultKeyPrefix namespaces session keys as "S:<token>".
const DefaultKeyPrefix = "S"

// Store maps session records onto hash keys of a [Backend].
//
// Store holds no mutable state; it is safe for concurrent use whenever the backend is.
type Store struct {
	backend Backend
	prefix  string
}

// NewStore creates a [Store]. An empty prefix selects [DefaultKeyPrefix].
func NewStore(backend Backend, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{
		backend: backend,
		prefix:  prefix,
	}
}

// Key returns the backend key for a token.
func (s *Store) Key(token string) string {
	return s.prefix + ":" + token
}

// Fetch reads the fixed fields of token and, in the same round trip, stamps
// accessedAt into the last-access field and resets the TTL. The stamp and TTL
// reset only apply when the key exists, so fetching an unknown token writes nothing.
//
// found is false when the user id field is absent. The raw fields are returned
// undecoded so the caller decides how to treat corrupt values.
//
//	Performance: 1 round trip (3x HGET + guarded touch).
func (s *Store) Fetch(ctx context.Context, token string, accessedAt time.Time, ttl time.Duration) (RawRecord, bool, error) {
	key := s.Key(token)

	res, err := s.backend.Exec(ctx, []Op{
		HGet(key, FieldUserID),
		HGet(key, FieldCreatedAt),
		HGet(key, FieldLastAccess),
		Touch(key, FieldLastAccess, FormatTime(accessedAt), ttl),
	})
	if err != nil {
		return RawRecord{}, false, err
	}

	if !res[0].Found {
		return RawRecord{}, false, nil
	}

	return RawRecord{
		Token:        token,
		UserID:       res[0].Value,
		CreatedAt:    res[1].Value,
		LastAccessAt: res[2].Value,
	}, true, nil
}

// Exists reports whether a key for token is present.
func (s *Store) Exists(ctx context.Context, token string) (bool, error) {
	res, err := s.backend.Exec(ctx, []Op{Exists(s.Key(token))})
	if err != nil {
		return false, err
	}
	return res[0].Found, nil
}

// Create writes the fixed fields of rec and its TTL and, in the same batch,
// deletes previousToken's key. previousToken is skipped when empty or equal to
// rec.Token.
//
// The batch is not atomic with respect to other batches. Two concurrent Create
// calls that carry the same previousToken will both leave their own record behind.
//
//	Performance: 1 round trip (3x HSET + EXPIRE [+ DEL]).
func (s *Store) Create(ctx context.Context, rec Record, ttl time.Duration, previousToken string) error {
	key := s.Key(rec.Token)
	created := FormatTime(rec.CreatedAt)

	ops := []Op{
		HSet(key, FieldUserID, FormatUserID(rec.UserID)),
		HSet(key, FieldCreatedAt, created),
		HSet(key, FieldLastAccess, FormatTime(rec.LastAccessAt)),
		Expire(key, ttl),
	}
	if previousToken != "" && previousToken != rec.Token {
		ops = append(ops, Del(s.Key(previousToken)))
	}

	if _, err := s.backend.Exec(ctx, ops); err != nil {
		return err
	}
	return nil
}

// Delete removes the record for token and reports whether one existed.
func (s *Store) Delete(ctx context.Context, token string) (bool, error) {
	res, err := s.backend.Exec(ctx, []Op{Del(s.Key(token))})
	if err != nil {
		return false, err
	}
	return res[0].N > 0, nil
}

// SetValue stores a caller-defined field on an existing session without
// touching its TTL. existed is false when there was no session to write to.
func (s *Store) SetValue(ctx context.Context, token, field, value string) (bool, error) {
	if IsReservedField(field) {
		return false, fmt.Errorf("%w: %s", ErrReservedField, field)
	}

	res, err := s.backend.Exec(ctx, []Op{HSetExisting(s.Key(token), field, value)})
	if err != nil {
		return false, err
	}
	return res[0].Found, nil
}

// GetValue reads a caller-defined field.
func (s *Store) GetValue(ctx context.Context, token, field string) (string, bool, error) {
	res, err := s.backend.Exec(ctx, []Op{HGet(s.Key(token), field)})
	if err != nil {
		return "", false, err
	}
	return res[0].Value, res[0].Found, nil
}

// DeleteValue removes a caller-defined field.
func (s *Store) DeleteValue(ctx context.Context, token, field string) error {
	if IsReservedField(field) {
		return fmt.Errorf("%w: %s", ErrReservedField, field)
	}

	_, err := s.backend.Exec(ctx, []Op{HDel(s.Key(token), field)})
	return err
}

// TTL returns the remaining lifetime of token's record. ok is false when the
// record does not exist or has no expiry.
func (s *Store) TTL(ctx context.Context, token string) (time.Duration, bool, error) {
	res, err := s.backend.Exec(ctx, []Op{TTL(s.Key(token))})
	if err != nil {
		return 0, false, err
	}
	if !res[0].Found || res[0].N < 0 {
		return 0, false, nil
	}
	return time.Duration(res[0].N) * time.Millisecond, true, nil
}
