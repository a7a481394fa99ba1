package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// ErrEmptyEnsemble is returned when an ensemble would have no classifiers.
var ErrEmptyEnsemble = errors.New("ensemble has no classifiers")

// ModelVote is one classifier's output.
type ModelVote struct {
	Model string `json:"model"`
	Label int    `json:"label"`
}

// Vote is the outcome of running every classifier of an ensemble on one input.
type Vote struct {
	Consensus int         `json:"consensus"`
	Votes     []ModelVote `json:"votes"` // in ensemble order
	Tally     map[int]int `json:"tally"`
	Agreement float64     `json:"agreement"` // consensus votes / total votes
}

// ByModel returns the votes keyed by model name.
func (v Vote) ByModel() map[string]int {
	m := make(map[string]int, len(v.Votes))
	for _, mv := range v.Votes {
		m[mv.Model] = mv.Label
	}
	return m
}

// Ensemble runs a fixed set of named classifiers in name order and takes a plurality vote.
// It is immutable after construction and safe for concurrent use.
type Ensemble struct {
	handles []Handle
	width   int
	metrics MetricsInterface
}

// NewEnsemble sorts handles by name. Names must be unique and all classifiers must share
// one input width.
func NewEnsemble(handles ...Handle) (*Ensemble, error) {
	if len(handles) == 0 {
		return nil, ErrEmptyEnsemble
	}

	sorted := append([]Handle(nil), handles...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	width := -1
	for i, h := range sorted {
		if h.Name == "" {
			return nil, errors.New("classifier with empty name")
		}
		if h.Model == nil {
			return nil, fmt.Errorf("classifier %s is nil", h.Name)
		}
		if i > 0 && sorted[i-1].Name == h.Name {
			return nil, fmt.Errorf("duplicate classifier name %s", h.Name)
		}
		if width == -1 {
			width = h.Model.NumFeatures()
		} else if h.Model.NumFeatures() != width {
			return nil, fmt.Errorf("classifier %s expects %d features, %s expects %d",
				h.Name, h.Model.NumFeatures(), sorted[0].Name, width)
		}
	}

	return &Ensemble{handles: sorted, width: width}, nil
}

// SetMetrics attaches a metrics sink. Call before the ensemble is shared.
func (e *Ensemble) SetMetrics(m MetricsInterface) {
	e.metrics = m
}

// Names returns the classifier names in iteration order.
func (e *Ensemble) Names() []string {
	names := make([]string, len(e.handles))
	for i, h := range e.handles {
		names[i] = h.Name
	}
	return names
}

func (e *Ensemble) Len() int { return len(e.handles) }

func (e *Ensemble) NumFeatures() int { return e.width }

// Predict runs every classifier on scaled and votes. The consensus is the label with the most
// votes; among tied labels the one produced first in name order wins. A failing classifier
// fails the whole prediction.
func (e *Ensemble) Predict(ctx context.Context, scaled []float64) (Vote, error) {
	start := time.Now()
	if err := checkWidth(e.width, scaled); err != nil {
		return Vote{}, err
	}

	votes := make([]ModelVote, 0, len(e.handles))
	labels := make([]int, 0, len(e.handles))
	for _, h := range e.handles {
		if err := ctx.Err(); err != nil {
			return Vote{}, err
		}
		label, err := h.Model.Predict(scaled)
		if err != nil {
			if e.metrics != nil {
				e.metrics.ModelFailuresInc(h.Name)
			}
			return Vote{}, fmt.Errorf("classifier %s: %w", h.Name, err)
		}
		if e.metrics != nil {
			e.metrics.ModelPredictionsInc(h.Name)
		}
		votes = append(votes, ModelVote{Model: h.Name, Label: label})
		labels = append(labels, label)
	}

	consensus, count := plurality(labels)
	tally := make(map[int]int, len(labels))
	for _, l := range labels {
		tally[l]++
	}
	v := Vote{
		Consensus: consensus,
		Votes:     votes,
		Tally:     tally,
		Agreement: float64(count) / float64(len(labels)),
	}

	if e.metrics != nil {
		e.metrics.VoteLatencyObserve(time.Since(start).Seconds())
		e.metrics.VoteAgreementObserve(v.Agreement)
	}
	return v, nil
}

// plurality returns the most frequent label and its count. Ties go to the label seen first.
// labels must not be empty.
func plurality(labels []int) (int, int) {
	counts := make(map[int]int, len(labels))
	order := make([]int, 0, len(labels))
	for _, l := range labels {
		if counts[l] == 0 {
			order = append(order, l)
		}
		counts[l]++
	}
	best := order[0]
	for _, l := range order[1:] {
		if counts[l] > counts[best] {
			best = l
		}
	}
	return best, counts[best]
}

func allFinite(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
