package repository

import (
	"context"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/FACorreiaa/statement-engine/internal/domain/statement/template"
)

// BucketTemplates holds one JSON document per template identifier.
const BucketTemplates = "templates"

// BoltStore is a single-file template store for the CLI.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens or creates the database at path and initializes buckets.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(BucketTemplates)); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", BucketTemplates, err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Load(_ context.Context, identifier string) (template.Template, error) {
	var t template.Template
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(BucketTemplates)).Get([]byte(identifier))
		if data == nil {
			return fmt.Errorf("%w: %s", template.ErrTemplateNotFound, identifier)
		}
		return json.Unmarshal(data, &t)
	})
	if err != nil {
		return template.Template{}, err
	}
	return t, nil
}

func (s *BoltStore) Create(_ context.Context, t template.Template) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode template: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketTemplates))
		if b.Get([]byte(t.Identifier)) != nil {
			return fmt.Errorf("%w: %s", template.ErrTemplateExists, t.Identifier)
		}
		return b.Put([]byte(t.Identifier), data)
	})
}

func (s *BoltStore) Save(_ context.Context, t template.Template) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode template: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketTemplates)).Put([]byte(t.Identifier), data)
	})
}

// List returns templates in key order, which is identifier order.
func (s *BoltStore) List(_ context.Context) ([]template.Template, error) {
	var out []template.Template
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketTemplates)).ForEach(func(k, v []byte) error {
			var t template.Template
			if err := json.Unmarshal(v, &t); err != nil {
				return fmt.Errorf("decode template %s: %w", k, err)
			}
			out = append(out, t)
			return nil
		})
	})
	return out, err
}
