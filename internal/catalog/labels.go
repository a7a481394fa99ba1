// Package catalog resolves classifier labels to crop names and crop names to image files.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"crop-recommender/internal/common"

	"github.com/rs/zerolog/log"
)

// Label mapping columns
const (
	ColNumber = "Number"
	ColName   = "Name"
)

// LabelMapping maps class labels to crop names. It is immutable once loaded.
type LabelMapping struct {
	names map[int]string
}

// NewLabelMapping copies names into a mapping.
func NewLabelMapping(names map[int]string) *LabelMapping {
	m := &LabelMapping{names: make(map[int]string, len(names))}
	for k, v := range names {
		m.names[k] = v
	}
	return m
}

// LoadLabelMapping reads the Number,Name CSV at path. Any failure is a ConfigError.
func LoadLabelMapping(path string) (*LabelMapping, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, common.NewConfigError("label mapping", path, err)
	}
	defer file.Close()

	m, err := ReadLabelMapping(file)
	if err != nil {
		return nil, common.NewConfigError("label mapping", path, err)
	}

	log.Info().Str("file", path).Int("labels", len(m.names)).Msg("Label mapping loaded")
	return m, nil
}

// ReadLabelMapping parses a Number,Name CSV. A label listed twice takes the later name.
func ReadLabelMapping(r io.Reader) (*LabelMapping, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	indices := make(map[string]int)
	for i, col := range header {
		if i == 0 {
			col = strings.TrimPrefix(col, "\ufeff")
		}
		indices[strings.TrimSpace(col)] = i
	}
	numIdx, ok := indices[ColNumber]
	if !ok {
		return nil, fmt.Errorf("missing column %q", ColNumber)
	}
	nameIdx, ok := indices[ColName]
	if !ok {
		return nil, fmt.Errorf("missing column %q", ColName)
	}

	m := &LabelMapping{names: make(map[int]string)}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		raw := strings.TrimSpace(record[numIdx])
		label, err := strconv.Atoi(raw)
		if err != nil {
			// Labels exported as floats ("3.0") are accepted when integral.
			f, ferr := strconv.ParseFloat(raw, 64)
			if ferr != nil || f != float64(int(f)) {
				return nil, fmt.Errorf("line %d: invalid label %q", line, raw)
			}
			label = int(f)
		}
		name := strings.TrimSpace(record[nameIdx])

		if prev, ok := m.names[label]; ok && prev != name {
			log.Warn().Int("label", label).Str("previous", prev).Str("name", name).Msg("Label mapped twice, later name wins")
		}
		m.names[label] = name
	}

	if len(m.names) == 0 {
		return nil, errors.New("label mapping is empty")
	}
	return m, nil
}

// Lookup returns the crop name for label.
func (m *LabelMapping) Lookup(label int) (string, bool) {
	name, ok := m.names[label]
	return name, ok
}

// Known reports whether label has a crop name.
func (m *LabelMapping) Known(label int) bool {
	_, ok := m.Lookup(label)
	return ok
}

// Resolve returns the crop name for label, or "Unknown Crop".
func (m *LabelMapping) Resolve(label int) string {
	return m.ResolveOr(label, common.UnknownCrop)
}

// ResolveOr returns the crop name for label, or fallback.
func (m *LabelMapping) ResolveOr(label int, fallback string) string {
	if name, ok := m.Lookup(label); ok {
		return name
	}
	return fallback
}

// Labels returns the mapped labels, sorted.
func (m *LabelMapping) Labels() []int {
	labels := make([]int, 0, len(m.names))
	for l := range m.names {
		labels = append(labels, l)
	}
	sort.Ints(labels)
	return labels
}

func (m *LabelMapping) Len() int { return len(m.names) }
