// Package scoring computes popularity ranks from denormalized counters.
package scoring

import (
	"maps"
	"slices"

	"github.com/okian/vorell/internal/domain/model"
)

// Weights maps a counter name to its integer weight.
type Weights map[string]int64

// DefaultListingWeights ranks listings by likes*2 + views.
func DefaultListingWeights() Weights {
	return Weights{model.CounterLikes: 2, model.CounterViews: 1}
}

// DefaultStoreWeights ranks stores by listings*5 + articles*3 + likes*2 + views.
func DefaultStoreWeights() Weights {
	return Weights{
		model.CounterListings: 5,
		model.CounterArticles: 3,
		model.CounterLikes:    2,
		model.CounterViews:    1,
	}
}

// Option applies a configuration option to the WeightedScorer.
type Option func(*WeightedScorer)

// WithWeightsFromConfig replaces the weight table. Non-positive weights are
// dropped; an empty result keeps the defaults.
func WithWeightsFromConfig(weights map[string]int64) Option {
	return func(s *WeightedScorer) {
		w := make(Weights, len(weights))
		for name, weight := range weights {
			if weight > 0 {
				w[name] = weight
			}
		}
		if len(w) > 0 {
			s.weights = w
		}
	}
}

// WeightedScorer is a pure weighted sum over a fixed weight table.
type WeightedScorer struct {
	weights Weights
	names   []string
}

// NewWeightedScorer creates a scorer starting from base weights.
func NewWeightedScorer(base Weights, opts ...Option) *WeightedScorer {
	s := &WeightedScorer{weights: maps.Clone(base)}
	for _, opt := range opts {
		opt(s)
	}
	s.names = slices.Sorted(maps.Keys(s.weights))
	return s
}

// Score returns sum(weight * counter). Counters absent from the snapshot
// count as zero; counters without a weight are ignored.
func (s *WeightedScorer) Score(c model.Counters) int64 {
	var total int64
	for _, name := range s.names {
		total += s.weights[name] * c[name]
	}
	return total
}

// Weights returns a copy of the active weight table.
func (s *WeightedScorer) Weights() Weights {
	return maps.Clone(s.weights)
}

// Counters lists the counter names the score reads, sorted.
func (s *WeightedScorer) Counters() []string {
	return slices.Clone(s.names)
}
