package features

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"crop-recommender/internal/common"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
)

// ErrRegionNotFound is returned by Lookup when no row matches the requested state and district.
var ErrRegionNotFound = errors.New("region not found")

// Region table columns
const (
	ColState    = "state"
	ColDistrict = "capital_district"
)

// DuplicatePolicy decides what happens when the table holds more than one row for a region.
type DuplicatePolicy string

const (
	FirstRowWins     DuplicatePolicy = "first"
	RejectDuplicates DuplicatePolicy = "reject"
)

// missingMarkers are the cell values treated as missing, matching what pandas reads as NaN.
var missingMarkers = map[string]bool{
	"": true, "#N/A": true, "#N/A N/A": true, "#NA": true, "-1.#IND": true, "-1.#QNAN": true,
	"-NaN": true, "-nan": true, "1.#IND": true, "1.#QNAN": true, "<NA>": true, "N/A": true,
	"NA": true, "NULL": true, "NaN": true, "None": true, "n/a": true, "nan": true, "null": true,
}

// RegionKey identifies a region. Comparison is case-insensitive.
type RegionKey struct {
	State    string `json:"state"`
	District string `json:"district"`
}

func (k RegionKey) String() string {
	return k.State + "/" + k.District
}

// Normalized returns the case-folded lookup form of the key.
func (k RegionKey) Normalized() string {
	return fold(k.State) + "\x00" + fold(k.District)
}

// Region is one row of the table.
type Region struct {
	Key      RegionKey     `json:"region"`
	Features FeatureVector `json:"features"`
}

// LoadStats summarises a table load.
type LoadStats struct {
	Rows       int // rows kept
	Dropped    int // rows dropped for missing feature values
	Duplicates int // rows whose region key was already present
}

// RegionTable is an immutable, in-memory region -> features table.
type RegionTable struct {
	rows      []Region
	index     map[string]int // normalized key -> first row
	states    []string
	districts map[string][]string // folded state -> sorted districts
}

// LoadRegionTable reads the region CSV at path. Any failure is a ConfigError.
func LoadRegionTable(path string, policy DuplicatePolicy) (*RegionTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, common.NewConfigError("region table", path, err)
	}
	defer file.Close()

	table, stats, err := ReadRegionTable(file, policy)
	if err != nil {
		return nil, common.NewConfigError("region table", path, err)
	}

	log.Info().
		Str("file", path).
		Int("rows", stats.Rows).
		Int("dropped", stats.Dropped).
		Int("duplicates", stats.Duplicates).
		Int("states", len(table.states)).
		Msg("Region table loaded")

	return table, nil
}

// ReadRegionTable parses a region CSV. Rows with a missing feature value are dropped.
func ReadRegionTable(r io.Reader, policy DuplicatePolicy) (*RegionTable, LoadStats, error) {
	var stats LoadStats
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, stats, fmt.Errorf("failed to read CSV header: %w", err)
	}

	// Map header indices
	indices := make(map[string]int)
	for i, col := range header {
		if i == 0 {
			col = strings.TrimPrefix(col, "\ufeff")
		}
		indices[strings.TrimSpace(col)] = i
	}

	required := append([]string{ColState, ColDistrict}, Names[:]...)
	for _, col := range required {
		if _, ok := indices[col]; !ok {
			return nil, stats, fmt.Errorf("missing column %q", col)
		}
	}

	var rows []Region
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, stats, fmt.Errorf("line %d: %w", line, err)
		}

		values := make([]float64, Width)
		missing := false
		for i, name := range Names {
			cell := strings.TrimSpace(record[indices[name]])
			if missingMarkers[cell] {
				missing = true
				break
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, stats, fmt.Errorf("line %d: column %s: invalid number %q", line, name, cell)
			}
			if math.IsNaN(v) {
				missing = true
				break
			}
			if math.IsInf(v, 0) {
				return nil, stats, fmt.Errorf("line %d: column %s: infinite value", line, name)
			}
			values[i] = v
		}
		if missing {
			stats.Dropped++
			continue
		}

		fv, _ := FromSlice(values)
		rows = append(rows, Region{
			Key: RegionKey{
				State:    record[indices[ColState]],
				District: record[indices[ColDistrict]],
			},
			Features: fv,
		})
	}

	table, dups, err := newRegionTable(rows, policy)
	if err != nil {
		return nil, stats, err
	}
	stats.Rows = len(rows)
	stats.Duplicates = dups
	return table, stats, nil
}

// NewRegionTable builds a table from rows already in memory.
func NewRegionTable(rows []Region, policy DuplicatePolicy) (*RegionTable, error) {
	t, _, err := newRegionTable(rows, policy)
	return t, err
}

func newRegionTable(rows []Region, policy DuplicatePolicy) (*RegionTable, int, error) {
	switch policy {
	case FirstRowWins, RejectDuplicates:
	case "":
		policy = FirstRowWins
	default:
		return nil, 0, fmt.Errorf("unknown duplicate policy %q", policy)
	}

	t := &RegionTable{
		rows:      append([]Region(nil), rows...),
		index:     make(map[string]int, len(rows)),
		districts: make(map[string][]string),
	}

	duplicates := 0
	stateNames := make(map[string]string) // folded -> first spelling
	for i, row := range t.rows {
		if err := row.Features.Validate(); err != nil {
			return nil, 0, fmt.Errorf("region %s (row %d): %w", row.Key, i+1, err)
		}
		key := row.Key.Normalized()
		if first, ok := t.index[key]; ok {
			duplicates++
			if policy == RejectDuplicates {
				return nil, duplicates, fmt.Errorf("duplicate region %s (rows %d and %d)", row.Key, first+1, i+1)
			}
			log.Warn().
				Str("state", row.Key.State).
				Str("district", row.Key.District).
				Int("row", i+1).
				Int("first_row", first+1).
				Msg("Duplicate region row ignored, first row wins")
			continue
		}
		t.index[key] = i

		fs := fold(row.Key.State)
		if _, ok := stateNames[fs]; !ok {
			stateNames[fs] = row.Key.State
		}
		t.districts[fs] = append(t.districts[fs], row.Key.District)
	}

	for _, name := range stateNames {
		t.states = append(t.states, name)
	}
	sort.Strings(t.states)
	for _, ds := range t.districts {
		sort.Strings(ds)
	}

	return t, duplicates, nil
}

// Lookup returns the features of the first row matching state and district, compared
// case-insensitively. It returns ErrRegionNotFound when nothing matches.
func (t *RegionTable) Lookup(state, district string) (FeatureVector, error) {
	idx, ok := t.index[RegionKey{State: state, District: district}.Normalized()]
	if !ok {
		return FeatureVector{}, fmt.Errorf("%w: %s/%s", ErrRegionNotFound, state, district)
	}
	return t.rows[idx].Features, nil
}

// States returns the distinct state names, sorted.
func (t *RegionTable) States() []string {
	return append([]string(nil), t.states...)
}

// Districts returns the sorted districts of state, or nil for an unknown state.
func (t *RegionTable) Districts(state string) []string {
	ds := t.districts[fold(state)]
	if ds == nil {
		return nil
	}
	return append([]string(nil), ds...)
}

// Regions returns each distinct region key once, in table order.
func (t *RegionTable) Regions() []RegionKey {
	keys := make([]RegionKey, 0, len(t.index))
	for i, row := range t.rows {
		if t.index[row.Key.Normalized()] == i {
			keys = append(keys, row.Key)
		}
	}
	return keys
}

// Len returns the number of rows kept, duplicates included.
func (t *RegionTable) Len() int {
	return len(t.rows)
}

func fold(s string) string {
	// Casers are stateful and must not be shared across goroutines.
	return cases.Fold().String(s)
}
