package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"crop-recommender/internal/recommend"

	"go.etcd.io/bbolt"
)

// RegionStats summarises the recommendations served for one region.
type RegionStats struct {
	State     string         `json:"state"`
	District  string         `json:"district"`
	Requests  int            `json:"requests"`
	Crops     map[string]int `json:"crops"` // crop name -> times recommended
	LastCrop  string         `json:"last_crop"`
	FirstSeen time.Time      `json:"first_seen"`
	LastSeen  time.Time      `json:"last_seen"`
}

func updateRegionStats(tx *bbolt.Tx, rec recommend.Recommendation) error {
	b := tx.Bucket([]byte(regionsBucket))
	key := []byte(rec.Region().Normalized())

	stats := RegionStats{
		State:     rec.State,
		District:  rec.District,
		Crops:     make(map[string]int),
		FirstSeen: rec.CreatedAt,
	}
	if v := b.Get(key); v != nil {
		if err := json.Unmarshal(v, &stats); err != nil {
			return fmt.Errorf("unmarshal region stats: %w", err)
		}
		if stats.Crops == nil {
			stats.Crops = make(map[string]int)
		}
	}

	stats.Requests++
	stats.Crops[rec.Crop]++
	stats.LastCrop = rec.Crop
	stats.LastSeen = rec.CreatedAt

	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal region stats: %w", err)
	}
	return b.Put(key, data)
}

// GetRegionStats returns statistics for every region with history, most requested first.
func (s *Store) GetRegionStats() ([]RegionStats, error) {
	if s.db == nil {
		return nil, errors.New("store is closed")
	}

	var all []RegionStats
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(regionsBucket)).ForEach(func(_, v []byte) error {
			var stats RegionStats
			if err := json.Unmarshal(v, &stats); err != nil {
				return nil // Skip malformed records
			}
			all = append(all, stats)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Requests != all[j].Requests {
			return all[i].Requests > all[j].Requests
		}
		if all[i].State != all[j].State {
			return all[i].State < all[j].State
		}
		return all[i].District < all[j].District
	})
	return all, nil
}
