package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/DevDonal19/imparablesmujeres/internal/auth"
)

const redisOpTimeout = 3 * time.Second

// RedisStore keeps the session under a Redis key so several terminals or
// hosts share one login. Changes are announced on a pub/sub channel.
type RedisStore struct {
	hub
	client  *redis.Client
	key     string
	channel string
	logger  *zap.Logger
}

// NewRedisStore loads the session stored under key (StorageKey when empty).
func NewRedisStore(ctx context.Context, client *redis.Client, key string, logger *zap.Logger) (*RedisStore, error) {
	if key == "" {
		key = StorageKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RedisStore{client: client, key: key, channel: key + ":changed", logger: logger}
	sess, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.current = sess
	return s, nil
}

// Set updates the process view, then Redis, then tells other subscribers.
// The key expires together with the token it holds.
func (s *RedisStore) Set(sess *Session) error {
	s.replace(sess)

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if sess == nil {
		if err := s.client.Del(ctx, s.key).Err(); err != nil {
			return fmt.Errorf("delete session key: %w", err)
		}
	} else {
		payload, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		if err := s.client.Set(ctx, s.key, payload, keyTTL(sess.Token, time.Now())).Err(); err != nil {
			return fmt.Errorf("store session key: %w", err)
		}
	}
	if err := s.client.Publish(ctx, s.channel, "changed").Err(); err != nil {
		s.logger.Warn("publish session change", zap.Error(err))
	}
	return nil
}

// ClearToken clears the session if it still carries token. The key is
// deleted in a WATCH transaction and only while it holds that token, so a
// login stored from another host in the meantime is kept.
func (s *RedisStore) ClearToken(token string) (bool, error) {
	if !s.dropToken(token) {
		return false, nil
	}
	s.publish()

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	deleted := false
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, s.key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		var stored Session
		if json.Unmarshal(data, &stored) == nil && stored.Token != "" && stored.Token != token {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, s.key)
			return nil
		})
		deleted = err == nil
		return err
	}, s.key)
	switch {
	case errors.Is(err, redis.TxFailedErr):
		s.logger.Debug("session key changed during clear, keeping it")
	case err != nil:
		return true, fmt.Errorf("clear session key: %w", err)
	}

	if deleted {
		if err := s.client.Publish(ctx, s.channel, "changed").Err(); err != nil {
			s.logger.Warn("publish session change", zap.Error(err))
		}
		return true, nil
	}
	if sess, err := s.load(ctx); err == nil {
		s.replace(sess)
	}
	return true, nil
}

func (s *RedisStore) load(ctx context.Context) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session key: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil || sess.Token == "" {
		s.logger.Warn("discarding unreadable session key", zap.String("key", s.key), zap.Error(err))
		return nil, nil
	}
	return &sess, nil
}

// Watch reloads the session whenever another process announces a change.
func (s *RedisStore) Watch(ctx context.Context) error {
	sub := s.client.Subscribe(ctx, s.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("subscribe session channel: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				sess, err := s.load(ctx)
				if err != nil {
					s.logger.Warn("reload session key", zap.Error(err))
					continue
				}
				s.replace(sess)
			}
		}
	}()
	return nil
}

// keyTTL returns how long the key should live: until the token's exp when
// it can be read, otherwise with no expiry.
func keyTTL(token string, now time.Time) time.Duration {
	hint, err := auth.DecodeUnverified(token)
	if err != nil {
		return 0
	}
	remaining := hint.Remaining(now)
	if remaining <= 0 {
		return time.Second
	}
	return remaining
}
