package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix = "progress:"

	// activeTTL bounds snapshots of runs that never reach a terminal stage.
	activeTTL    = time.Hour
	pollInterval = time.Second
	watchRetries = 10
)

// RedisStore is a Notifier shared across processes. The snapshot lives at
// key "progress:<id>" and every publish is also sent on the pub/sub channel
// of the same name.
type RedisStore struct {
	rdb    redis.UniversalClient
	expiry time.Duration
	logger *zap.Logger
}

// NewRedisStore creates a Redis-backed notifier.
func NewRedisStore(rdb redis.UniversalClient, logger *zap.Logger, expiry time.Duration) *RedisStore {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &RedisStore{rdb: rdb, expiry: expiry, logger: logger.With(zap.String("pkg", "progress"))}
}

func key(id string) string {
	return keyPrefix + id
}

// Publish implements Notifier. The read-check-write runs under WATCH so
// concurrent publishers cannot interleave a regression.
func (s *RedisStore) Publish(ctx context.Context, u Update) error {
	k := key(u.CorrelationID)
	u.Progress = clampProgress(u.Progress)
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = time.Now()
	}

	b, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encoding update: %w", err)
	}

	ttl := activeTTL
	if u.Stage.Terminal() {
		ttl = s.expiry
	}

	txf := func(tx *redis.Tx) error {
		prev, ok, err := decode(tx.Get(ctx, k).Bytes())
		if err != nil {
			return err
		}
		var prevPtr *Update
		if ok {
			prevPtr = &prev
		}
		if err := checkTransition(prevPtr, u.Stage); err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, b, ttl)
			pipe.Publish(ctx, k, b)
			return nil
		})
		return err
	}

	// Another publisher changed the key between GET and EXEC; re-read and
	// check the transition again.
	for range watchRetries {
		err = s.rdb.Watch(ctx, txf, k)
		if !errors.Is(err, redis.TxFailedErr) || ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		if errors.Is(err, ErrStageRegression) || errors.Is(err, ErrTerminal) || errors.Is(err, ErrUnknownStage) {
			return err
		}
		return fmt.Errorf("publishing progress: %w", err)
	}
	return nil
}

// decode interprets a GET result; a missing key is not an error.
func decode(b []byte, err error) (Update, bool, error) {
	if errors.Is(err, redis.Nil) {
		return Update{}, false, nil
	}
	if err != nil {
		return Update{}, false, fmt.Errorf("reading progress: %w", err)
	}
	var u Update
	if err := json.Unmarshal(b, &u); err != nil {
		return Update{}, false, fmt.Errorf("decoding progress: %w", err)
	}
	return u, true, nil
}

// Latest implements Notifier.
func (s *RedisStore) Latest(ctx context.Context, id string) (Update, bool, error) {
	return decode(s.rdb.Get(ctx, key(id)).Bytes())
}

// Reset implements Notifier.
func (s *RedisStore) Reset(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("resetting progress: %w", err)
	}
	return nil
}

// Subscribe implements Notifier. Live updates arrive over pub/sub; the
// snapshot is also polled every second so a dropped message only delays
// delivery.
func (s *RedisStore) Subscribe(ctx context.Context, id string) (<-chan Update, error) {
	k := key(id)

	pubsub := s.rdb.Subscribe(ctx, k)
	// Wait for the subscription so nothing published after the snapshot read is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribing to progress: %w", err)
	}

	out := make(chan Update, subscriberBuffer)
	go s.stream(ctx, k, pubsub, out)
	return out, nil
}

func (s *RedisStore) stream(ctx context.Context, k string, pubsub *redis.PubSub, out chan<- Update) {
	defer close(out)
	defer pubsub.Close()

	var last *Update
	// emit forwards u if it is newer than the last one sent and reports
	// whether the stream should end.
	emit := func(u Update) bool {
		if last != nil && !u.UpdatedAt.After(last.UpdatedAt) {
			return false
		}
		last = &u
		select {
		case out <- u:
		case <-ctx.Done():
			return true
		}
		return u.Stage.Terminal()
	}

	poll := func() bool {
		u, ok, err := decode(s.rdb.Get(ctx, k).Bytes())
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("polling progress", zap.String("key", k), zap.Error(err))
			}
			return false
		}
		return ok && emit(u)
	}

	if poll() {
		return
	}

	msgs := pubsub.Channel()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var u Update
			if err := json.Unmarshal([]byte(msg.Payload), &u); err != nil {
				s.logger.Warn("decoding progress message", zap.String("key", k), zap.Error(err))
				continue
			}
			if emit(u) {
				return
			}
		case <-ticker.C:
			if poll() {
				return
			}
		}
	}
}
