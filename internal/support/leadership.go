package support

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultLeadershipTTL   = 45 * time.Second
	leadershipRetryDelay   = time.Second
	renewalTimeout         = 5 * time.Second
	minRenewalInterval     = time.Second
	defaultRenewalFraction = 3
)

var (
	holderCounter atomic.Uint64

	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)
)

// LeaderLock is a redis key held by at most one process. Scheduled threatsync
// instances share one so that only a single instance rewrites the domain history.
type LeaderLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewLeaderLock(client *redis.Client, key string, ttl time.Duration) (*LeaderLock, error) {
	if client == nil {
		return nil, errors.New("support: leader lock requires a redis client")
	}
	if key == "" {
		return nil, errors.New("support: leader lock key cannot be empty")
	}
	if ttl <= 0 {
		ttl = DefaultLeadershipTTL
	}
	return &LeaderLock{client: client, key: key, ttl: ttl}, nil
}

// Run blocks until the lock is acquired, then invokes fn with a context that is
// cancelled when the lock is lost or ctx is done. The lock is renewed while fn
// runs and released when it returns. Run keeps competing for the lock until ctx
// is cancelled.
func (l *LeaderLock) Run(ctx context.Context, fn func(context.Context)) error {
	if fn == nil {
		return errors.New("support: leader run function cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		hold, err := l.acquire(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			log.Warn("leader lock: failed to acquire", "key", l.key, "error", err)
			if !sleepCtx(ctx, leadershipRetryDelay) {
				return ctx.Err()
			}
			continue
		}

		log.Debug("leader lock: acquired", "key", l.key)
		fn(hold.ctx)
		hold.release()
		log.Debug("leader lock: released", "key", l.key)

		if !sleepCtx(ctx, leadershipRetryDelay) {
			return ctx.Err()
		}
	}
}

type lockHold struct {
	lock      *LeaderLock
	value     string
	ctx       context.Context
	cancel    context.CancelFunc
	stopRenew chan struct{}
	closeOnce sync.Once
}

func (l *LeaderLock) acquire(ctx context.Context) (*lockHold, error) {
	value := newHolderID()

	for {
		ok, err := l.client.SetNX(ctx, l.key, value, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("leader lock: setnx failed", "key", l.key, "error", err)
		} else if ok {
			holdCtx, cancel := context.WithCancel(ctx)
			hold := &lockHold{
				lock:      l,
				value:     value,
				ctx:       holdCtx,
				cancel:    cancel,
				stopRenew: make(chan struct{}),
			}
			go hold.renewLoop()
			return hold, nil
		}

		if !sleepCtx(ctx, leadershipRetryDelay) {
			return nil, ctx.Err()
		}
	}
}

func (h *lockHold) release() {
	h.closeOnce.Do(func() {
		close(h.stopRenew)
		h.cancel()

		ctx, cancel := context.WithTimeout(context.Background(), renewalTimeout)
		defer cancel()

		_, err := releaseScript.Run(ctx, h.lock.client, []string{h.lock.key}, h.value).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			log.Warn("leader lock: release failed", "key", h.lock.key, "error", err)
		}
	})
}

func (h *lockHold) renewLoop() {
	ticker := time.NewTicker(renewalInterval(h.lock.ttl))
	defer ticker.Stop()

	for {
		select {
		case <-h.stopRenew:
			return
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			if err := h.renew(); err != nil {
				log.Warn("leader lock: renewal failed", "key", h.lock.key, "error", err)
				h.cancel()
				return
			}
		}
	}
}

func (h *lockHold) renew() error {
	ctx, cancel := context.WithTimeout(context.Background(), renewalTimeout)
	defer cancel()

	res, err := renewScript.Run(ctx, h.lock.client, []string{h.lock.key}, h.value, h.lock.ttl.Milliseconds()).Result()
	if err != nil {
		return err
	}
	if updated, ok := res.(int64); ok && updated == 0 {
		return errors.New("lock lost")
	}
	return nil
}

func renewalInterval(ttl time.Duration) time.Duration {
	interval := ttl / defaultRenewalFraction
	if interval < minRenewalInterval {
		interval = minRenewalInterval
	}
	return interval
}

// sleepCtx reports false when ctx ended before d elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func newHolderID() string {
	host, _ := os.Hostname()
	return fmt.Sprintf("%s-%d-%d-%d", host, os.Getpid(), time.Now().UnixNano(), holderCounter.Add(1))
}
