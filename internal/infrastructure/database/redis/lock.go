package redis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/clauselens/pkg/errors"
)

// ErrLockNotHeld is returned by Unlock when the key expired or belongs to
// another owner.
var ErrLockNotHeld = errors.New(errors.ErrCodeConflict, "lock not held by this owner")

const lockKeyPrefix = "clauselens:lock:"

// Lock is a single-owner lease keyed by name. Workers take one per job id so
// a redelivered request is not profiled twice at the same time.
type Lock interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
	Extend(ctx context.Context, ttl time.Duration) (bool, error)
	TTL(ctx context.Context) (time.Duration, error)
}

// Locker hands out named locks.
type Locker interface {
	NewLock(name string, opts ...LockOption) Lock
}

type LockOption func(*lease)

func WithLockTTL(ttl time.Duration) LockOption {
	return func(l *lease) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithWatchdog re-extends the lease every interval while it is held.
func WithWatchdog(interval time.Duration) LockOption {
	return func(l *lease) { l.renewEvery = interval }
}

// ownerScript runs DEL (ARGV[2] == "0") or PEXPIRE ARGV[2] on KEYS[1] only
// while it still holds the caller's token ARGV[1].
var ownerScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
if ARGV[2] == "0" then
	return redis.call("DEL", KEYS[1])
end
return redis.call("PEXPIRE", KEYS[1], ARGV[2])
`)

type locker struct {
	client *Client
	log    logging.Logger
}

// NewLocker stores locks under "clauselens:lock:<name>".
func NewLocker(client *Client, log logging.Logger) Locker {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &locker{client: client, log: log.Named("lock")}
}

func (l *locker) NewLock(name string, opts ...LockOption) Lock {
	ls := &lease{
		client: l.client,
		key:    lockKeyPrefix + name,
		token:  uuid.NewString(),
		ttl:    30 * time.Second,
		log:    l.log,
	}
	for _, opt := range opts {
		opt(ls)
	}
	return ls
}

type lease struct {
	client     *Client
	key        string
	token      string
	ttl        time.Duration
	renewEvery time.Duration
	log        logging.Logger

	mu   sync.Mutex
	stop context.CancelFunc
	done chan struct{}
}

func (l *lease) TryLock(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "acquire lock").WithDetail(l.key)
	}
	if ok && l.renewEvery > 0 {
		l.startRenewal()
	}
	return ok, nil
}

func (l *lease) Unlock(ctx context.Context) error {
	l.stopRenewal()
	n, err := l.owned(ctx, 0)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "release lock").WithDetail(l.key)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

func (l *lease) Extend(ctx context.Context, ttl time.Duration) (bool, error) {
	n, err := l.owned(ctx, ttl.Milliseconds())
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "extend lock").WithDetail(l.key)
	}
	return n == 1, nil
}

func (l *lease) TTL(ctx context.Context) (time.Duration, error) {
	return l.client.PTTL(ctx, l.key).Result()
}

func (l *lease) owned(ctx context.Context, pexpire int64) (int64, error) {
	return ownerScript.Run(ctx, l.client.Underlying(), []string{l.key}, l.token, pexpire).Int64()
}

func (l *lease) startRenewal() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	l.mu.Lock()
	l.stop, l.done = cancel, done
	l.mu.Unlock()
	go l.renew(ctx, done)
}

func (l *lease) stopRenewal() {
	l.mu.Lock()
	stop, done := l.stop, l.done
	l.stop, l.done = nil, nil
	l.mu.Unlock()
	if stop == nil {
		return
	}
	stop()
	<-done
}

func (l *lease) renew(ctx context.Context, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(l.renewEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		ok, err := l.Extend(ctx, l.ttl)
		switch {
		case err != nil && ctx.Err() == nil:
			l.log.Error("lock renewal failed", logging.String("key", l.key), logging.Err(err))
			return
		case err != nil:
			return
		case !ok:
			l.log.Warn("lock lost before release", logging.String("key", l.key))
			return
		}
	}
}
