package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const defaultRedisMaxRetries = 10

// redisDocument is the JSON value stored under a document key.
type redisDocument struct {
	Fields     Fields    `json:"fields"`
	CreateTime time.Time `json:"create_time"`
	UpdateTime time.Time `json:"update_time"`
}

// RedisStoreOptions configures a RedisStore.
type RedisStoreOptions struct {
	Prefix     string // key prefix, e.g. "roomclocks:"
	MaxRetries int    // optimistic transaction retries per write
}

// RedisStore keeps each document as a JSON string, indexes collections with a
// sorted set and broadcasts changes with PUBLISH.
type RedisStore struct {
	client     redis.UniversalClient
	prefix     string
	maxRetries int
	hub        *Hub
}

// Ensure RedisStore implements the Store interface.
var _ Store = (*RedisStore)(nil)

func NewRedisStore(client redis.UniversalClient, opts RedisStoreOptions) *RedisStore {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultRedisMaxRetries
	}
	return &RedisStore{
		client:     client,
		prefix:     opts.Prefix,
		maxRetries: opts.MaxRetries,
		hub:        NewHub(),
	}
}

func (s *RedisStore) docKey(ref DocumentRef) string {
	return s.prefix + "doc:" + ref.Path()
}

func (s *RedisStore) indexKey(col CollectionRef) string {
	return s.prefix + "idx:" + col.Path()
}

func (s *RedisStore) seqKey() string {
	return s.prefix + "seq"
}

func (s *RedisStore) channel() string {
	return s.prefix + "changes"
}

func (s *RedisStore) Hub() *Hub { return s.hub }

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Listen subscribes to the change channel and forwards changes to the hub until
// ctx is cancelled. It returns once the subscription is confirmed.
func (s *RedisStore) Listen(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, s.channel())
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", s.channel(), err)
	}

	log.Info().Str("channel", s.channel()).Msg("listening for document changes")

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("redis change listener shutting down")
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				change, err := decodeChange([]byte(msg.Payload))
				if err != nil {
					log.Error().Err(err).Msg("failed to handle change message")
					continue
				}
				s.hub.Publish(change)
			}
		}
	}()

	return nil
}

// write runs a WATCH/MULTI/EXEC cycle on one document key. fn receives the
// current document (nil when absent) and the server time, and returns the new
// document (nil to delete).
func (s *RedisStore) write(ctx context.Context, ref DocumentRef, fn func(cur *redisDocument, now time.Time) (*redisDocument, error)) (Change, error) {
	key := s.docKey(ref)
	idx := s.indexKey(ref.Collection())
	var change Change

	txf := func(tx *redis.Tx) error {
		cur, err := s.readDocument(ctx, tx, key)
		if err != nil {
			return err
		}
		now, err := tx.Time(ctx).Result()
		if err != nil {
			return fmt.Errorf("failed to read server time: %w", err)
		}

		next, err := fn(cur, now)
		if err != nil {
			return err
		}

		var seq int64
		if cur == nil && next != nil {
			if seq, err = tx.Incr(ctx, s.seqKey()).Result(); err != nil {
				return fmt.Errorf("failed to allocate sequence: %w", err)
			}
		}

		var data []byte
		if next != nil {
			if data, err = json.Marshal(next); err != nil {
				return fmt.Errorf("failed to encode document: %w", err)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil {
				pipe.Del(ctx, key)
				pipe.ZRem(ctx, idx, ref.ID())
				return nil
			}
			pipe.Set(ctx, key, data, 0)
			if cur == nil {
				pipe.ZAdd(ctx, idx, redis.Z{Score: float64(seq), Member: ref.ID()})
			}
			return nil
		})
		if err != nil {
			return err
		}

		switch {
		case next == nil:
			change = newChange(ref, ChangeDeleted, now)
		case cur == nil:
			change = newChange(ref, ChangeCreated, now)
		default:
			change = newChange(ref, ChangeUpdated, now)
		}
		return nil
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			log.Debug().Str("path", ref.Path()).Int("attempt", attempt+1).Msg("optimistic transaction conflict, retrying")
			continue
		}
		if err != nil {
			return Change{}, err
		}
		s.publish(ctx, change)
		return change, nil
	}
	return Change{}, fmt.Errorf("failed to write %s after %d attempts: %w", ref.Path(), s.maxRetries, redis.TxFailedErr)
}

func (s *RedisStore) publish(ctx context.Context, change Change) {
	payload, err := json.Marshal(change)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal change")
		return
	}
	if err := s.client.Publish(ctx, s.channel(), payload).Err(); err != nil {
		log.Error().Err(err).Str("path", change.Path).Msg("failed to publish change")
	}
}

func (s *RedisStore) readDocument(ctx context.Context, c redis.Cmdable, key string) (*redisDocument, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	var doc redisDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", key, err)
	}
	if doc.Fields == nil {
		doc.Fields = Fields{}
	}
	return &doc, nil
}

func (s *RedisStore) CreateOrMerge(ctx context.Context, ref DocumentRef, fields Fields) (DocumentRef, error) {
	if err := ref.Validate(); err != nil {
		return DocumentRef{}, err
	}

	_, err := s.write(ctx, ref, func(cur *redisDocument, now time.Time) (*redisDocument, error) {
		if cur == nil {
			cur = &redisDocument{Fields: Fields{}, CreateTime: now.UTC()}
		}
		return &redisDocument{
			Fields:     mergeFields(cur.Fields, fields, now),
			CreateTime: cur.CreateTime,
			UpdateTime: now.UTC(),
		}, nil
	})
	if err != nil {
		return DocumentRef{}, err
	}
	return ref, nil
}

func (s *RedisStore) Add(ctx context.Context, col CollectionRef, fields Fields) (DocumentRef, error) {
	return s.CreateOrMerge(ctx, col.Doc(newDocumentID()), fields)
}

func (s *RedisStore) Update(ctx context.Context, ref DocumentRef, fields Fields, preconds ...Precondition) error {
	if err := ref.Validate(); err != nil {
		return err
	}

	_, err := s.write(ctx, ref, func(cur *redisDocument, now time.Time) (*redisDocument, error) {
		if cur == nil {
			return nil, ErrNotFound
		}
		if err := checkPreconditions(cur.Fields, preconds); err != nil {
			return nil, err
		}
		return &redisDocument{
			Fields:     mergeFields(cur.Fields, fields, now),
			CreateTime: cur.CreateTime,
			UpdateTime: now.UTC(),
		}, nil
	})
	return err
}

func (s *RedisStore) Delete(ctx context.Context, ref DocumentRef) error {
	if err := ref.Validate(); err != nil {
		return err
	}

	_, err := s.write(ctx, ref, func(cur *redisDocument, now time.Time) (*redisDocument, error) {
		if cur == nil {
			return nil, ErrNotFound
		}
		return nil, nil
	})
	return err
}

func (s *RedisStore) Get(ctx context.Context, ref DocumentRef) (*Snapshot, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	doc, err := s.readDocument(ctx, s.client, s.docKey(ref))
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	return &Snapshot{Ref: ref, Fields: doc.Fields, CreateTime: doc.CreateTime, UpdateTime: doc.UpdateTime}, nil
}

func (s *RedisStore) List(ctx context.Context, col CollectionRef) ([]Snapshot, error) {
	if err := col.Validate(); err != nil {
		return nil, err
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(col), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list collection %s: %w", col.Path(), err)
	}
	out := make([]Snapshot, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.docKey(col.Doc(id))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read collection %s: %w", col.Path(), err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// deleted between ZRANGE and MGET
			continue
		}
		var doc redisDocument
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			log.Warn().Err(err).Str("key", keys[i]).Msg("skipping undecodable document")
			continue
		}
		if doc.Fields == nil {
			doc.Fields = Fields{}
		}
		out = append(out, Snapshot{
			Ref:        col.Doc(ids[i]),
			Fields:     doc.Fields,
			CreateTime: doc.CreateTime,
			UpdateTime: doc.UpdateTime,
		})
	}
	return out, nil
}

func (s *RedisStore) SubscribeCollection(ctx context.Context, col CollectionRef) (*Subscription[[]Snapshot], error) {
	return subscribeCollection(ctx, s, col)
}

func (s *RedisStore) SubscribeDocument(ctx context.Context, ref DocumentRef) (*Subscription[*Snapshot], error) {
	return subscribeDocument(ctx, s, ref)
}
