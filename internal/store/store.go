// Package store keeps unfinished registration drafts so a wizard survives a bot restart.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"mechconnect/internal/registration"
)

// Draft is a wizard saved between interactions. Passwords are never part of it.
type Draft struct {
	Form      registration.Form  `json:"form"`
	Stage     registration.Stage `json:"stage"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type Store interface {
	Save(ctx context.Context, userID string, draft Draft) error
	Load(ctx context.Context, userID string) (Draft, bool, error)
	Delete(ctx context.Context, userID string) error
}

var timeNow = time.Now

func key(userID string) string {
	return fmt.Sprintf("draft:%s", userID)
}

// Redis stores drafts as JSON strings that expire after ttl.
type Redis struct {
	db  *redis.Client
	ttl time.Duration
}

// Open connects to the Redis server at url, e.g. redis://localhost:6379/0.
func Open(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing REDIS_URL: %w", err)
	}

	db := redis.NewClient(opts)
	if err := db.Ping(ctx).Err(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewRedis(db, ttl), nil
}

func NewRedis(db *redis.Client, ttl time.Duration) *Redis {
	return &Redis{db: db, ttl: ttl}
}

// Save overwrites the user's draft. The form is redacted before it is written.
func (r *Redis) Save(ctx context.Context, userID string, draft Draft) error {
	draft.Form = draft.Form.Redacted()
	if draft.UpdatedAt.IsZero() {
		draft.UpdatedAt = timeNow().UTC()
	}

	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("encoding draft: %w", err)
	}
	if err := r.db.Set(ctx, key(userID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("saving draft: %w", err)
	}

	log.WithFields(log.Fields{"user": userID, "stage": draft.Stage.String()}).Debug("Saved draft")
	return nil
}

// Load returns the user's draft, or false when there is none.
func (r *Redis) Load(ctx context.Context, userID string) (Draft, bool, error) {
	data, err := r.db.Get(ctx, key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Draft{}, false, nil
	}
	if err != nil {
		return Draft{}, false, fmt.Errorf("loading draft: %w", err)
	}

	var draft Draft
	if err := json.Unmarshal(data, &draft); err != nil {
		// A draft we cannot read is as good as none.
		log.WithField("user", userID).WithError(err).Warn("Discarding unreadable draft")
		r.db.Del(ctx, key(userID))
		return Draft{}, false, nil
	}
	if !draft.Stage.Valid() {
		draft.Stage = registration.FirstStage
	}
	return draft, true, nil
}

func (r *Redis) Delete(ctx context.Context, userID string) error {
	if err := r.db.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("deleting draft: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.db.Close()
}

// Nop is used when no Redis URL is configured. It never has a draft.
type Nop struct{}

func (Nop) Save(context.Context, string, Draft) error { return nil }

func (Nop) Load(context.Context, string) (Draft, bool, error) { return Draft{}, false, nil }

func (Nop) Delete(context.Context, string) error { return nil }
