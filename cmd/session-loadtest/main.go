// Command session-loadtest seeds sessions into Redis (or miniredis) and
// measures lookup, authorize and session-value throughput through the Engine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc/pool"
)

// seededUsers resolves the synthetic accounts the load test creates.
type seededUsers struct {
	mu    sync.RWMutex
	users map[int64]goSession.User
}

func newSeededUsers(n int) *seededUsers {
	s := &seededUsers{users: make(map[int64]goSession.User, n)}
	for id := int64(1); id <= int64(n); id++ {
		s.users[id] = goSession.User{
			ID:       id,
			Username: "user-" + strconv.FormatInt(id, 10),
			Admin:    id%10 == 0,
			Active:   true,
		}
	}
	return s
}

func (s *seededUsers) ResolveByID(_ context.Context, id int64) (*goSession.User, error) {
	s.mu.RLock()
	u, ok := s.users[id]
	s.mu.RUnlock()
	if !ok {
		return nil, goSession.ErrUserNotFound
	}
	return &u, nil
}

func (s *seededUsers) MarkLoggedIn(_ context.Context, user *goSession.User, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[user.ID]
	u.LastSessionKey = token
	s.users[user.ID] = u
	return nil
}

type options struct {
	sessions    int
	concurrency int
	ops         int
	redisAddr   string
	prefix      string
}

func main() {
	var opts options
	flag.IntVar(&opts.sessions, "sessions", 10000, "sessions to seed")
	flag.IntVar(&opts.concurrency, "concurrency", 256, "concurrent workers")
	flag.IntVar(&opts.ops, "ops", 200000, "operations per phase")
	flag.StringVar(&opts.redisAddr, "redis-addr", os.Getenv("REDIS_ADDR"), "redis address; empty starts miniredis")
	flag.StringVar(&opts.prefix, "prefix", "S", "session key prefix")
	flag.Parse()

	if err := run(context.Background(), opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "session-loadtest:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	if opts.sessions <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
		return errors.New("sessions, concurrency and ops must be > 0")
	}

	client, closeRedis, err := dialRedis(opts.redisAddr, out)
	if err != nil {
		return err
	}
	defer closeRedis()

	users := newSeededUsers(opts.sessions)

	cfg := goSession.DefaultConfig()
	cfg.Session.KeyPrefix = opts.prefix
	cfg.Security.LoginThrottle.Enabled = false
	cfg.Metrics.EnableLatencyHistograms = true

	engine, err := goSession.New().
		WithConfig(cfg).
		WithRedis(client).
		WithIdentityResolver(users).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	defer engine.Close()

	fmt.Fprintf(out, "seeding %d sessions...\n", opts.sessions)
	seedStart := time.Now()
	tokens := make([]string, opts.sessions)
	for i := range tokens {
		u, _ := users.ResolveByID(ctx, int64(i+1))
		s, err := engine.CreateNewSession(ctx, u)
		if err != nil {
			return fmt.Errorf("seed session %d: %w", i+1, err)
		}
		tokens[i] = s.Token
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(seedStart).Round(time.Millisecond))

	pick := func(r *rand.Rand) string { return tokens[r.IntN(len(tokens))] }
	adminOnly := &goSession.Policy{RequireAdminPermission: true}

	phases := []struct {
		name string
		op   func(*rand.Rand) error
	}{
		{"lookup", func(r *rand.Rand) error {
			s, err := engine.GetSession(ctx, pick(r))
			if err == nil && s == nil {
				return errors.New("session missing")
			}
			return err
		}},
		{"authorize", func(r *rand.Rand) error {
			// Nine in ten seeded users are not admins; those rejections are expected.
			_, err := engine.Authorize(ctx, adminOnly, pick(r))
			if errors.Is(err, goSession.ErrNotAuthorized) {
				return nil
			}
			return err
		}},
		{"value", func(r *rand.Rand) error {
			return engine.SetSessionValue(ctx, pick(r), "cart", strconv.FormatUint(r.Uint64(), 36))
		}},
	}

	fmt.Fprintln(out, "---- results ----")
	for i, ph := range phases {
		stats := runPhase(opts.ops, opts.concurrency, uint64(i+1), ph.op)
		stats.print(out, ph.name)
	}

	snap := engine.MetricsSnapshot()
	fmt.Fprintf(out, "engine: hits=%d misses=%d rejected=%d store_failures=%d\n",
		snap.Counters[goSession.MetricSessionLookupHit],
		snap.Counters[goSession.MetricSessionLookupMiss],
		snap.Counters[goSession.MetricAuthorizeRejected],
		snap.Counters[goSession.MetricStoreFailure],
	)
	return nil
}

func dialRedis(addr string, out io.Writer) (redis.UniversalClient, func(), error) {
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Fprintf(out, "using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Fprintf(out, "using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

// runPhase spreads ops calls of op over concurrency workers. Each worker keeps
// its own latency slice; they are merged once the pool drains.
func runPhase(ops, concurrency int, seed uint64, op func(*rand.Rand) error) phaseStats {
	var next, failures atomic.Int64
	p := pool.NewWithResults[[]time.Duration]().WithMaxGoroutines(concurrency)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		r := rand.New(rand.NewPCG(seed, uint64(w)))
		p.Go(func() []time.Duration {
			var local []time.Duration
			for next.Add(1) <= int64(ops) {
				t0 := time.Now()
				if err := op(r); err != nil {
					failures.Add(1)
				}
				local = append(local, time.Since(t0))
			}
			return local
		})
	}
	perWorker := p.Wait()
	elapsed := time.Since(start)

	return computeStats(elapsed, slices.Concat(perWorker...), failures.Load())
}

type phaseStats struct {
	elapsed       time.Duration
	ops           int
	failures      int64
	p50, p95, p99 time.Duration
}

func computeStats(elapsed time.Duration, samples []time.Duration, failures int64) phaseStats {
	s := phaseStats{elapsed: elapsed, ops: len(samples), failures: failures}
	if len(samples) == 0 {
		return s
	}
	slices.Sort(samples)
	s.p50 = percentile(samples, 50)
	s.p95 = percentile(samples, 95)
	s.p99 = percentile(samples, 99)
	return s
}

// percentile expects sorted samples and clamps p to [0, 100].
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	p = min(max(p, 0), 100)
	return sorted[(len(sorted)-1)*p/100]
}

func (s phaseStats) opsPerSecond() float64 {
	if s.elapsed <= 0 {
		return 0
	}
	return float64(s.ops) / s.elapsed.Seconds()
}

func (s phaseStats) print(w io.Writer, name string) {
	fmt.Fprintf(w, "%-9s ops=%d failures=%d elapsed=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name, s.ops, s.failures,
		s.elapsed.Round(time.Millisecond),
		s.opsPerSecond(),
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
