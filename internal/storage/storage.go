// Package storage provides persistent recommendation history for the crop recommender.
// It uses BoltDB as the underlying storage engine. Recommendations are keyed by creation
// time so recent history and time-range queries are cursor scans.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"crop-recommender/internal/recommend"

	"go.etcd.io/bbolt"
)

const (
	recommendationsBucket = "recommendations" // Recommendation records keyed by time and ID
	regionsBucket         = "regions"         // Per-region request statistics

	dbFile = "croprec-history.db"
)

// Store provides persistent storage for recommendations using BoltDB.
type Store struct {
	db *bbolt.DB // BoltDB database instance
}

// New opens (or creates) the history database inside dataPath.
func New(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	dbPath := filepath.Join(dataPath, dbFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(recommendationsBucket)); err != nil {
			return fmt.Errorf("create recommendations bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(regionsBucket)); err != nil {
			return fmt.Errorf("create regions bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

func recommendationKey(ts time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%020d_%s", ts.UnixNano(), id))
}

func timeKey(ts time.Time) []byte {
	return []byte(fmt.Sprintf("%020d", ts.UnixNano()))
}

// SaveRecommendation stores rec and updates its region statistics in one transaction.
func (s *Store) SaveRecommendation(rec recommend.Recommendation) error {
	if rec.ID == "" {
		return errors.New("recommendation has no ID")
	}
	if s.db == nil {
		return errors.New("store is closed")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(recommendationsBucket))

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal recommendation: %w", err)
		}
		if err := b.Put(recommendationKey(rec.CreatedAt, rec.ID), data); err != nil {
			return err
		}
		return updateRegionStats(tx, rec)
	})
}

// GetRecommendations returns up to limit recommendations, newest first.
func (s *Store) GetRecommendations(limit int) ([]recommend.Recommendation, error) {
	if limit <= 0 {
		return nil, nil
	}
	if s.db == nil {
		return nil, errors.New("store is closed")
	}

	recs := make([]recommend.Recommendation, 0, limit)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(recommendationsBucket)).Cursor()
		for k, v := c.Last(); k != nil && len(recs) < limit; k, v = c.Prev() {
			var rec recommend.Recommendation
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // Skip malformed records
			}
			recs = append(recs, rec)
		}
		return nil
	})
	return recs, err
}

// GetRecommendationsInRange returns recommendations created within [start, end], oldest first.
func (s *Store) GetRecommendationsInRange(start, end time.Time) ([]recommend.Recommendation, error) {
	if s.db == nil {
		return nil, errors.New("store is closed")
	}

	var recs []recommend.Recommendation
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(recommendationsBucket)).Cursor()

		startKey := timeKey(start)
		endKey := timeKey(end)

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k[:len(endKey)], endKey) <= 0; k, v = c.Next() {
			var rec recommend.Recommendation
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			recs = append(recs, rec)
		}
		return nil
	})
	return recs, err
}

// Count returns the number of stored recommendations.
func (s *Store) Count() (int, error) {
	if s.db == nil {
		return 0, errors.New("store is closed")
	}
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(recommendationsBucket)).Stats().KeyN
		return nil
	})
	return n, err
}
