package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// DefaultNotifyChannel is the LISTEN/NOTIFY channel written by PostgresStore.
const DefaultNotifyChannel = "docstore_changes"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT        NOT NULL,
    id         TEXT        NOT NULL,
    fields     JSONB       NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_collection_created_idx
    ON documents (collection, created_at, id);
`

// PostgresStore keeps every document as a JSONB row of a single table. Each
// write sends a NOTIFY in its transaction; a PostgresChangeListener turns
// those notifications into hub changes.
type PostgresStore struct {
	pool    *pgxpool.Pool
	channel string
	hub     *Hub
}

// Ensure PostgresStore implements the Store interface.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool, channel string) *PostgresStore {
	if channel == "" {
		channel = DefaultNotifyChannel
	}
	return &PostgresStore{
		pool:    pool,
		channel: channel,
		hub:     NewHub(),
	}
}

// EnsureSchema creates the documents table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create documents schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Hub() *Hub { return s.hub }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// runTx executes fn inside a transaction. If fn returns an error the tx rolls
// back, else it commits.
func runTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// lockDocument reads a row FOR UPDATE. found is false when the row is missing.
func lockDocument(ctx context.Context, tx pgx.Tx, ref DocumentRef) (fields Fields, found bool, err error) {
	var raw []byte
	err = tx.QueryRow(ctx,
		`SELECT fields FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`,
		ref.Collection().Path(), ref.ID(),
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return Fields{}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to lock document: %w", err)
	}
	fields, err = decodeFields(raw)
	if err != nil {
		return nil, false, err
	}
	return fields, true, nil
}

func txNow(ctx context.Context, tx pgx.Tx) (time.Time, error) {
	var now time.Time
	if err := tx.QueryRow(ctx, `SELECT now()`).Scan(&now); err != nil {
		return time.Time{}, fmt.Errorf("failed to read server time: %w", err)
	}
	return now, nil
}

func (s *PostgresStore) notify(ctx context.Context, tx pgx.Tx, change Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, s.channel, string(payload)); err != nil {
		return fmt.Errorf("failed to notify change: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateOrMerge(ctx context.Context, ref DocumentRef, fields Fields) (DocumentRef, error) {
	if err := ref.Validate(); err != nil {
		return DocumentRef{}, err
	}

	err := runTx(ctx, s.pool, func(tx pgx.Tx) error {
		now, err := txNow(ctx, tx)
		if err != nil {
			return err
		}
		current, found, err := lockDocument(ctx, tx, ref)
		if err != nil {
			return err
		}
		data, err := encodeFields(mergeFields(current, fields, now))
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO documents (collection, id, fields, created_at, updated_at)
			VALUES ($1, $2, $3::jsonb, $4, $4)
			ON CONFLICT (collection, id)
			DO UPDATE SET fields = EXCLUDED.fields, updated_at = EXCLUDED.updated_at`,
			ref.Collection().Path(), ref.ID(), string(data), now,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert document: %w", err)
		}

		kind := ChangeCreated
		if found {
			kind = ChangeUpdated
		}
		return s.notify(ctx, tx, newChange(ref, kind, now))
	})
	if err != nil {
		return DocumentRef{}, err
	}
	return ref, nil
}

func (s *PostgresStore) Add(ctx context.Context, col CollectionRef, fields Fields) (DocumentRef, error) {
	return s.CreateOrMerge(ctx, col.Doc(newDocumentID()), fields)
}

func (s *PostgresStore) Update(ctx context.Context, ref DocumentRef, fields Fields, preconds ...Precondition) error {
	if err := ref.Validate(); err != nil {
		return err
	}

	return runTx(ctx, s.pool, func(tx pgx.Tx) error {
		current, found, err := lockDocument(ctx, tx, ref)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		if err := checkPreconditions(current, preconds); err != nil {
			return err
		}
		now, err := txNow(ctx, tx)
		if err != nil {
			return err
		}
		data, err := encodeFields(mergeFields(current, fields, now))
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE documents SET fields = $3::jsonb, updated_at = $4 WHERE collection = $1 AND id = $2`,
			ref.Collection().Path(), ref.ID(), string(data), now,
		)
		if err != nil {
			return fmt.Errorf("failed to update document: %w", err)
		}
		return s.notify(ctx, tx, newChange(ref, ChangeUpdated, now))
	})
}

func (s *PostgresStore) Delete(ctx context.Context, ref DocumentRef) error {
	if err := ref.Validate(); err != nil {
		return err
	}

	return runTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`DELETE FROM documents WHERE collection = $1 AND id = $2`,
			ref.Collection().Path(), ref.ID(),
		)
		if err != nil {
			return fmt.Errorf("failed to delete document: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		now, err := txNow(ctx, tx)
		if err != nil {
			return err
		}
		return s.notify(ctx, tx, newChange(ref, ChangeDeleted, now))
	})
}

func (s *PostgresStore) Get(ctx context.Context, ref DocumentRef) (*Snapshot, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	var (
		raw     []byte
		created time.Time
		updated time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT fields, created_at, updated_at FROM documents WHERE collection = $1 AND id = $2`,
		ref.Collection().Path(), ref.ID(),
	).Scan(&raw, &created, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	fields, err := decodeFields(raw)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Ref: ref, Fields: fields, CreateTime: created, UpdateTime: updated}, nil
}

func (s *PostgresStore) List(ctx context.Context, col CollectionRef) ([]Snapshot, error) {
	if err := col.Validate(); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, fields, created_at, updated_at FROM documents WHERE collection = $1 ORDER BY created_at, id`,
		col.Path(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	out := make([]Snapshot, 0)
	for rows.Next() {
		var (
			id      string
			raw     []byte
			created time.Time
			updated time.Time
		)
		if err := rows.Scan(&id, &raw, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		fields, err := decodeFields(raw)
		if err != nil {
			log.Warn().Err(err).Str("collection", col.Path()).Str("id", id).Msg("skipping undecodable document")
			continue
		}
		out = append(out, Snapshot{Ref: col.Doc(id), Fields: fields, CreateTime: created, UpdateTime: updated})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SubscribeCollection(ctx context.Context, col CollectionRef) (*Subscription[[]Snapshot], error) {
	return subscribeCollection(ctx, s, col)
}

func (s *PostgresStore) SubscribeDocument(ctx context.Context, ref DocumentRef) (*Subscription[*Snapshot], error) {
	return subscribeDocument(ctx, s, ref)
}
