package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rmax-ai/pipeforge/pkg/store"
)

const (
	componentsSet = "pipeforge:components"
	maxSaveTries  = 16
)

// ComponentStore keeps component records in Redis.
//
// Keys:
//
//	pipeforge:component:<id>  JSON record
//	pipeforge:url:<url>       id of the latest record fetched from url
//	pipeforge:components      sorted set of ids scored by updatedAt
type ComponentStore struct {
	client *redis.Client
	clock  func() time.Time
}

// NewComponentStore wraps an existing client.
func NewComponentStore(client *redis.Client) *ComponentStore {
	return &ComponentStore{client: client, clock: time.Now}
}

// SetClock overrides the time source used for bookkeeping timestamps.
func (s *ComponentStore) SetClock(clock func() time.Time) {
	s.clock = clock
}

func (s *ComponentStore) recordKey(id string) string {
	return fmt.Sprintf("pipeforge:component:%s", id)
}

func (s *ComponentStore) urlKey(url string) string {
	return fmt.Sprintf("pipeforge:url:%s", url)
}

func decodeRecord(data string) (*store.Record, error) {
	var rec store.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *ComponentStore) GetByID(ctx context.Context, id string) (*store.Record, error) {
	key := s.recordKey(id)
	data, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to GET key %s: %w", key, err)
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal record from key %s: %w", key, err)
	}
	return rec, nil
}

func (s *ComponentStore) GetByURL(ctx context.Context, url string) (*store.Record, error) {
	if url == "" {
		return nil, nil
	}
	id, err := s.client.Get(ctx, s.urlKey(url)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve url %s: %w", url, err)
	}
	rec, err := s.GetByID(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}
	// The index is not rewritten when a record later moves to another url.
	if rec.URL != url {
		return nil, nil
	}
	return rec, nil
}

func (s *ComponentStore) ExistsByURL(ctx context.Context, url string) (bool, error) {
	rec, err := s.GetByURL(ctx, url)
	return rec != nil, err
}

// Save merges rec over the stored record using WATCH/MULTI, retrying when
// another writer touched the record in between.
func (s *ComponentStore) Save(ctx context.Context, rec store.Record) error {
	key := s.recordKey(rec.ID)

	txf := func(tx *redis.Tx) error {
		var existing *store.Record
		data, err := tx.Get(ctx, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("failed to GET key %s: %w", key, err)
		default:
			if existing, err = decodeRecord(data); err != nil {
				return fmt.Errorf("failed to unmarshal record from key %s: %w", key, err)
			}
		}

		merged := store.Merge(existing, rec, s.clock())
		payload, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("failed to marshal record %s: %w", rec.ID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			if merged.URL != "" {
				pipe.Set(ctx, s.urlKey(merged.URL), merged.ID, 0)
			}
			pipe.ZAdd(ctx, componentsSet, redis.Z{Score: float64(merged.UpdatedAt), Member: merged.ID})
			return nil
		})
		return err
	}

	for i := 0; i < maxSaveTries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to save record %s: %w", rec.ID, err)
		}
		return nil
	}
	return fmt.Errorf("failed to save record %s: too many concurrent writers", rec.ID)
}

func (s *ComponentStore) List(ctx context.Context, limit int) ([]store.Record, error) {
	if limit <= 0 {
		limit = store.DefaultListLimit
	}
	ids, err := s.client.ZRevRange(ctx, componentsSet, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to ZREVRANGE %s: %w", componentsSet, err)
	}
	if len(ids) == 0 {
		return []store.Record{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.recordKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to MGET records: %w", err)
	}

	out := make([]store.Record, 0, len(values))
	for i, val := range values {
		str, ok := val.(string)
		if !ok {
			continue
		}
		rec, err := decodeRecord(str)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal record from key %s: %w", keys[i], err)
		}
		out = append(out, *rec)
	}
	return out, nil
}
