// Package locker guards tickets against being allocated by two matching attempts at once.
package locker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"metaldesk/pkg/xlog"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var ErrTicketBusy = errors.New("ticket is being matched by another request")

var logger = xlog.GetLogger()

// Locker takes all-or-nothing locks on a set of tickets.
type Locker interface {
	// Lock returns a release func; on ErrTicketBusy nothing stays locked.
	Lock(ctx context.Context, ticketIDs []int64) (release func(), err error)
}

func sortedUnique(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 0
	for i, id := range out {
		if i == 0 || id != out[n-1] {
			out[n] = id
			n++
		}
	}
	return out[:n]
}

// Redis locks with SET NX PX, one key per ticket, owned by a random token.
type Redis struct {
	rc  *redis.Client
	ttl time.Duration
}

func NewRedis(rc *redis.Client, ttl time.Duration) *Redis {
	return &Redis{rc: rc, ttl: ttl}
}

func KeyTicket(id int64) string {
	return fmt.Sprintf("metaldesk:lock:ticket:%d", id)
}

// releaseScript deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

func (l *Redis) Lock(ctx context.Context, ticketIDs []int64) (release func(), err error) {
	token := uuid.NewString()
	var held []string

	release = func() {
		for _, k := range held {
			if err := releaseScript.Run(context.Background(), l.rc, []string{k}, token).Err(); err != nil {
				logger.Warningf("locker release %s failed with err:%s", k, err)
			}
		}
	}

	for _, id := range sortedUnique(ticketIDs) {
		k := KeyTicket(id)
		ok, err := l.rc.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			release()
			return nil, fmt.Errorf("lock ticket %d: %w", id, err)
		}
		if !ok {
			release()
			return nil, fmt.Errorf("%w: %d", ErrTicketBusy, id)
		}
		held = append(held, k)
	}

	return release, nil
}

// Local is an in-process Locker.
type Local struct {
	mu   sync.Mutex
	held map[int64]bool
}

func NewLocal() *Local {
	return &Local{held: map[int64]bool{}}
}

func (l *Local) Lock(ctx context.Context, ticketIDs []int64) (func(), error) {
	ids := sortedUnique(ticketIDs)

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range ids {
		if l.held[id] {
			return nil, fmt.Errorf("%w: %d", ErrTicketBusy, id)
		}
	}
	for _, id := range ids {
		l.held[id] = true
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			for _, id := range ids {
				delete(l.held, id)
			}
		})
	}, nil
}
