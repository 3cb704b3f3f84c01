package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.etcd.io/bbolt"

	boltopts "github.com/kart-io/sentinel-rag/pkg/options/bolt"
	"github.com/kart-io/sentinel-rag/pkg/utils/json"
)

var bucketCollections = []byte("__collections")

// BoltStore 基于 bbolt 文件的嵌入式向量存储。每个集合一个 bucket, 检索为暴力余弦计算。
type BoltStore struct {
	db *bbolt.DB
}

var _ VectorStore = (*BoltStore)(nil)

// NewBoltStore 打开或创建 bbolt 数据库文件。
func NewBoltStore(opts *boltopts.Options) (*BoltStore, error) {
	if opts == nil {
		return nil, fmt.Errorf("bolt options is nil")
	}
	if dir := filepath.Dir(opts.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create bolt directory: %w", err)
		}
	}

	db, err := bbolt.Open(opts.Path, 0o600, &bbolt.Options{Timeout: opts.OpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCollections)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init bolt buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Name() string { return "bolt" }

func (s *BoltStore) HasCollection(_ context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket(bucketCollections).Get([]byte(name)) != nil
		return nil
	})
	return exists, err
}

func (s *BoltStore) EnsureCollection(_ context.Context, name string, dimension int) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketCollections)
		if meta.Get([]byte(name)) != nil {
			return nil
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
			return err
		}
		return meta.Put([]byte(name), []byte(strconv.Itoa(dimension)))
	})
}

func (s *BoltStore) dimension(tx *bbolt.Tx, name string) (int, error) {
	raw := tx.Bucket(bucketCollections).Get([]byte(name))
	if raw == nil {
		return 0, fmt.Errorf("collection %s not found", name)
	}
	return strconv.Atoi(string(raw))
}

func (s *BoltStore) Upsert(_ context.Context, name string, records []Record) (int, error) {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		dim, err := s.dimension(tx, name)
		if err != nil {
			return err
		}
		b := tx.Bucket([]byte(name))
		for _, r := range records {
			if len(r.Embedding) != dim {
				return fmt.Errorf("record %s has dimension %d, collection expects %d", r.ID, len(r.Embedding), dim)
			}
			data, err := json.Marshal(r)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(r.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func (s *BoltStore) Search(_ context.Context, name string, embedding []float32, topK int) ([]Hit, error) {
	var records []Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		if _, err := s.dimension(tx, name); err != nil {
			return err
		}
		return tx.Bucket([]byte(name)).ForEach(func(_, v []byte) error {
			var r Record
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			records = append(records, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return rankByCosine(records, embedding, topK), nil
}

func (s *BoltStore) Count(_ context.Context, name string) (int64, error) {
	var n int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(name))
		if b == nil {
			return fmt.Errorf("collection %s not found", name)
		}
		n = int64(b.Stats().KeyN)
		return nil
	})
	return n, err
}

func (s *BoltStore) DropCollection(_ context.Context, name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketCollections).Delete([]byte(name)); err != nil {
			return err
		}
		if tx.Bucket([]byte(name)) == nil {
			return nil
		}
		return tx.DeleteBucket([]byte(name))
	})
}

func (s *BoltStore) ListCollections(_ context.Context) ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCollections).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	return names, err
}

func (s *BoltStore) Ping(context.Context) error {
	return s.db.View(func(*bbolt.Tx) error { return nil })
}

func (s *BoltStore) Close(context.Context) error {
	return s.db.Close()
}
