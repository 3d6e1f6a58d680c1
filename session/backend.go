package session

import (
	"context"
	"errors"
	"time"
)

// ErrBackendUnavailable wraps transport failures from a [Backend].
var ErrBackendUnavailable = errors.New("session backend unavailable")

// OpKind identifies a single store command inside a batch.
type OpKind uint8

const (
	// OpHGet reads one hash field. Result.Found reports field presence.
	OpHGet OpKind = iota + 1
	// OpHSet writes one hash field, creating the key if needed.
	OpHSet
	// OpHSetExisting writes one hash field only if the key exists. Result.Found reports whether it did.
	OpHSetExisting
	// OpHDel removes one hash field. Result.N is the number of fields removed.
	OpHDel
	// OpDel removes a key. Result.N is the number of keys removed.
	OpDel
	// OpExpire sets the key TTL. Result.Found is false when the key does not exist.
	OpExpire
	// OpExists checks key presence.
	OpExists
	// OpTouch writes one hash field and resets the key TTL, only if the key exists.
	OpTouch
	// OpTTL reads the remaining key lifetime in milliseconds into Result.N (-1 when the key has no TTL).
	OpTTL
)

// String returns the op name used in logs.
func (k OpKind) String() string {
	switch k {
	case OpHGet:
		return "HGET"
	case OpHSet:
		return "HSET"
	case OpHSetExisting:
		return "HSETXX"
	case OpHDel:
		return "HDEL"
	case OpDel:
		return "DEL"
	case OpExpire:
		return "EXPIRE"
	case OpExists:
		return "EXISTS"
	case OpTouch:
		return "TOUCH"
	case OpTTL:
		return "PTTL"
	default:
		return "UNKNOWN"
	}
}

// Writes reports whether the op can mutate the store.
func (k OpKind) Writes() bool {
	switch k {
	case OpHSet, OpHSetExisting, OpHDel, OpDel, OpExpire, OpTouch:
		return true
	default:
		return false
	}
}

// Op is one command in a batch.
type Op struct {
	Kind  OpKind
	Key   string
	Field string
	Value string
	TTL   time.Duration
}

// Result is the reply to one [Op].
type Result struct {
	Value string
	Found bool
	N     int64
}

// Backend executes ordered batches of ops in a single round trip.
//
// Implementations must return exactly len(ops) results in submission order, must not
// wrap the batch in a transaction, and must report transport failures as errors
// wrapping [ErrBackendUnavailable]. A missing key or field is a normal result.
type Backend interface {
	Exec(ctx context.Context, ops []Op) ([]Result, error)
}

// HGet builds an [OpHGet].
func HGet(key, field string) Op { return Op{Kind: OpHGet, Key: key, Field: field} }

// HSet builds an [OpHSet].
func HSet(key, field, value string) Op {
	return Op{Kind: OpHSet, Key: key, Field: field, Value: value}
}

// HSetExisting builds an [OpHSetExisting].
func HSetExisting(key, field, value string) Op {
	return Op{Kind: OpHSetExisting, Key: key, Field: field, Value: value}
}

// HDel builds an [OpHDel].
func HDel(key, field string) Op { return Op{Kind: OpHDel, Key: key, Field: field} }

// Del builds an [OpDel].
func Del(key string) Op { return Op{Kind: OpDel, Key: key} }

// Expire builds an [OpExpire].
func Expire(key string, ttl time.Duration) Op { return Op{Kind: OpExpire, Key: key, TTL: ttl} }

// Exists builds an [OpExists].
func Exists(key string) Op { return Op{Kind: OpExists, Key: key} }

// Touch builds an [OpTouch].
func Touch(key, field, value string, ttl time.Duration) Op {
	return Op{Kind: OpTouch, Key: key, Field: field, Value: value, TTL: ttl}
}

// TTL builds an [OpTTL].
func TTL(key string) Op { return Op{Kind: OpTTL, Key: key} }
