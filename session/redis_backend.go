package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const touchScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return 1
`

const hsetExistingScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
return 1
`

var (
	touchLua        = redis.NewScript(touchScript)
	hsetExistingLua = redis.NewScript(hsetExistingScript)
)

// RedisBackend executes batches as go-redis pipelines.
//
// Guarded writes (touch, set-if-exists) are short Lua scripts sent inside the same
// pipeline, so a batch is still one round trip. The pipeline itself is not MULTI/EXEC.
type RedisBackend struct {
	client redis.UniversalClient
}

// NewRedisBackend wraps a go-redis client. The client is owned by the caller.
func NewRedisBackend(client redis.UniversalClient) *RedisBackend {
	return &RedisBackend{client: client}
}

// Exec implements [Backend].
//
//	Performance: 1 round trip regardless of len(ops).
func (b *RedisBackend) Exec(ctx context.Context, ops []Op) ([]Result, error) {
	if len(ops) == 0 {
		return []Result{}, nil
	}

	pipe := b.client.Pipeline()
	cmds := make([]redis.Cmder, len(ops))
	for i, op := range ops {
		switch op.Kind {
		case OpHGet:
			cmds[i] = pipe.HGet(ctx, op.Key, op.Field)
		case OpHSet:
			cmds[i] = pipe.HSet(ctx, op.Key, op.Field, op.Value)
		case OpHSetExisting:
			cmds[i] = hsetExistingLua.Eval(ctx, pipe, []string{op.Key}, op.Field, op.Value)
		case OpHDel:
			cmds[i] = pipe.HDel(ctx, op.Key, op.Field)
		case OpDel:
			cmds[i] = pipe.Del(ctx, op.Key)
		case OpExpire:
			cmds[i] = pipe.Expire(ctx, op.Key, op.TTL)
		case OpExists:
			cmds[i] = pipe.Exists(ctx, op.Key)
		case OpTouch:
			cmds[i] = touchLua.Eval(ctx, pipe, []string{op.Key}, op.Field, op.Value, op.TTL.Milliseconds())
		case OpTTL:
			cmds[i] = pipe.PTTL(ctx, op.Key)
		default:
			return nil, fmt.Errorf("session: unsupported op %s", op.Kind)
		}
	}

	// Exec reports the first failed command; redis.Nil from HGET on a missing
	// field is a normal reply and is sorted out per command below.
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	results := make([]Result, len(ops))
	for i, cmd := range cmds {
		res, err := resultFromCmd(cmd)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %s: %v", ErrBackendUnavailable, ops[i].Kind, ops[i].Key, err)
		}
		results[i] = res
	}

	return results, nil
}

func resultFromCmd(cmd redis.Cmder) (Result, error) {
	switch c := cmd.(type) {
	case *redis.StringCmd:
		v, err := c.Result()
		if errors.Is(err, redis.Nil) {
			return Result{}, nil
		}
		if err != nil {
			return Result{}, err
		}
		return Result{Value: v, Found: true}, nil
	case *redis.IntCmd:
		n, err := c.Result()
		if err != nil {
			return Result{}, err
		}
		return Result{N: n, Found: n > 0}, nil
	case *redis.BoolCmd:
		ok, err := c.Result()
		if err != nil {
			return Result{}, err
		}
		if ok {
			return Result{N: 1, Found: true}, nil
		}
		return Result{}, nil
	case *redis.DurationCmd:
		d, err := c.Result()
		if err != nil {
			return Result{}, err
		}
		switch d {
		case -2:
			return Result{N: -2}, nil
		case -1:
			return Result{N: -1, Found: true}, nil
		default:
			return Result{N: d.Milliseconds(), Found: true}, nil
		}
	case *redis.Cmd:
		n, err := c.Int64()
		if err != nil {
			return Result{}, err
		}
		return Result{N: n, Found: n > 0}, nil
	default:
		return Result{}, fmt.Errorf("unexpected reply type %T", cmd)
	}
}

// Ping checks that the Redis server answers, returning the observed latency.
func (b *RedisBackend) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := b.client.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return time.Since(start), nil
}
