// Package pgvector stores chunks in PostgreSQL with the pgvector extension,
// using the langchain_pg_collection / langchain_pg_embedding layout.
package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"impar/api/internal/content"
	"impar/api/internal/store"
)

const (
	findCollectionQuery   = `SELECT uuid FROM langchain_pg_collection WHERE name = $1`
	createCollectionQuery = `INSERT INTO langchain_pg_collection (uuid, name, cmetadata) VALUES ($1, $2, '{}'::jsonb) ON CONFLICT (name) DO NOTHING`
	insertEmbeddingQuery  = `INSERT INTO langchain_pg_embedding (id, collection_id, embedding, document, cmetadata) VALUES ($1, $2, $3, $4, $5)`
	searchQuery           = `SELECT document, cmetadata FROM langchain_pg_embedding WHERE collection_id = $1 AND ($2::text = '' OR cmetadata->>'source' = $2) ORDER BY embedding <=> $3 LIMIT $4`
	hasSourceQuery        = `SELECT 1 FROM langchain_pg_embedding WHERE collection_id = $1 AND cmetadata->>'source' = $2 LIMIT 1`
	distinctSourcesQuery  = `SELECT DISTINCT cmetadata->>'source' FROM langchain_pg_embedding WHERE collection_id = $1 AND cmetadata->>'source' IS NOT NULL ORDER BY 1`
	countQuery            = `SELECT COUNT(*) FROM langchain_pg_embedding WHERE collection_id = $1`
)

// Repository implements store.Repository. Every call runs in its own
// transaction; reads use read-only transactions.
type Repository struct {
	db         *sql.DB
	collection string
}

func NewRepository(db *sql.DB, collection string) *Repository {
	return &Repository{db: db, collection: collection}
}

func (r *Repository) EnsureCollection(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, createCollectionQuery, uuid.NewString(), r.collection)
	if err != nil {
		return fmt.Errorf("create collection %s: %w", r.collection, err)
	}
	return nil
}

func (r *Repository) Insert(ctx context.Context, records []store.Record) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	collectionID, err := r.collectionID(ctx, tx)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, insertEmbeddingQuery)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		md, err := json.Marshal(rec.Metadata)
		if err != nil {
			return err
		}
		id := rec.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := stmt.ExecContext(ctx, id, collectionID, pgvector.NewVector(rec.Vector), rec.Text, md); err != nil {
			return fmt.Errorf("insert embedding: %w", err)
		}
	}

	return tx.Commit()
}

func (r *Repository) Query(ctx context.Context, vector []float32, k int, source string) ([]store.Record, error) {
	var out []store.Record
	err := r.read(ctx, func(tx *sql.Tx, collectionID string) error {
		rows, err := tx.QueryContext(ctx, searchQuery, collectionID, source, pgvector.NewVector(vector), k)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				doc string
				raw []byte
			)
			if err := rows.Scan(&doc, &raw); err != nil {
				return err
			}
			var md content.Metadata
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &md); err != nil {
					return fmt.Errorf("decode metadata: %w", err)
				}
			}
			out = append(out, store.Record{Text: doc, Metadata: md})
		}
		return rows.Err()
	})
	return out, err
}

func (r *Repository) HasSource(ctx context.Context, source string) (bool, error) {
	found := false
	err := r.read(ctx, func(tx *sql.Tx, collectionID string) error {
		var one int
		err := tx.QueryRowContext(ctx, hasSourceQuery, collectionID, source).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

func (r *Repository) DistinctSources(ctx context.Context) ([]string, error) {
	var sources []string
	err := r.read(ctx, func(tx *sql.Tx, collectionID string) error {
		rows, err := tx.QueryContext(ctx, distinctSourcesQuery, collectionID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var s string
			if err := rows.Scan(&s); err != nil {
				return err
			}
			sources = append(sources, s)
		}
		return rows.Err()
	})
	return sources, err
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.read(ctx, func(tx *sql.Tx, collectionID string) error {
		return tx.QueryRowContext(ctx, countQuery, collectionID).Scan(&n)
	})
	return n, err
}

// read runs fn in a read-only transaction scoped to the collection.
func (r *Repository) read(ctx context.Context, fn func(tx *sql.Tx, collectionID string) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	collectionID, err := r.collectionID(ctx, tx)
	if err != nil {
		return err
	}
	if err := fn(tx, collectionID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repository) collectionID(ctx context.Context, tx *sql.Tx) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, findCollectionQuery, r.collection).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: %w", r.collection, store.ErrCollectionNotFound)
	}
	return id, err
}
