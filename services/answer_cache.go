package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"skyquery-bot/internal/logger"
	"skyquery-bot/models"

	"github.com/redis/go-redis/v9"
)

const (
	answerKeyPrefix = "answer:"

	DefaultAnswerTTL = 6 * time.Hour
)

// Asker answers one question.
type Asker interface {
	Route(ctx context.Context, question string) models.Answer
}

// kvStore is the subset of *redis.Client the cache uses.
type kvStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedAsker serves repeated questions from Redis. Keys include a version
// string, so a reloaded chunk file invalidates earlier answers. Redis errors
// fall through to the wrapped asker.
type CachedAsker struct {
	next    Asker
	kv      kvStore
	ttl     time.Duration
	version func() string
}

func NewCachedAsker(next Asker, rdb *redis.Client, ttl time.Duration, version func() string) *CachedAsker {
	return newCachedAsker(next, rdb, ttl, version)
}

func newCachedAsker(next Asker, kv kvStore, ttl time.Duration, version func() string) *CachedAsker {
	if ttl <= 0 {
		ttl = DefaultAnswerTTL
	}
	if version == nil {
		version = func() string { return "" }
	}
	return &CachedAsker{next: next, kv: kv, ttl: ttl, version: version}
}

func (c *CachedAsker) Route(ctx context.Context, question string) models.Answer {
	normalized := strings.ToLower(strings.Join(strings.Fields(question), " "))
	if normalized == "" {
		return c.next.Route(ctx, question)
	}
	key := c.key(normalized)

	if raw, err := c.kv.Get(ctx, key).Bytes(); err == nil {
		var answer models.Answer
		if err := json.Unmarshal(raw, &answer); err == nil {
			logger.Debug("Answer cache hit", "key", key)
			return answer
		}
	} else if !errors.Is(err, redis.Nil) {
		logger.Warn("Answer cache read failed", "error", err)
	}

	answer := c.next.Route(ctx, question)
	if !cacheable(answer) {
		return answer
	}

	data, err := json.Marshal(answer)
	if err != nil {
		return answer
	}
	if err := c.kv.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logger.Warn("Answer cache write failed", "error", err)
	}
	return answer
}

func (c *CachedAsker) key(normalized string) string {
	sum := sha256.Sum256([]byte(c.version() + "\x00" + normalized))
	return answerKeyPrefix + hex.EncodeToString(sum[:])
}

// cacheable rejects answers produced by a failing backend.
func cacheable(answer models.Answer) bool {
	if answer.Degraded {
		return false
	}
	switch answer.Kind {
	case models.AnswerKindError, models.AnswerKindNoData:
		return false
	}
	return !strings.Contains(answer.Text, GenerationFailurePrefix)
}
