// Package naivebayes implements a categorical Naive Bayes classifier,
// grounded on the original implementation's naive_bayes.hpp: each feature
// takes one of a small, fixed number of discrete values, and per-label
// per-feature-value counts back a Laplace-smoothed log-likelihood.
package naivebayes

import "math"

// Classifier is a categorical Naive Bayes model over a fixed feature and
// label alphabet.
type Classifier struct {
	labelCount   int
	featureSizes []int
	sumFeature   int
	smoothing    float64

	// counters[label*sumFeature + offset(feature) + value] is the count of
	// training points with that label and that feature value.
	counters      []int
	labelCounters []int
}

// New constructs a Classifier. featureSizes[i] is the number of distinct
// values feature i may take; smoothing is the Laplace smoothing constant
// added to every count.
func New(featureSizes []int, smoothing float64) *Classifier {
	sum := 0
	for _, s := range featureSizes {
		sum += s
	}

	return &Classifier{
		featureSizes: featureSizes,
		sumFeature:   sum,
		smoothing:    smoothing,
	}
}

func (c *Classifier) ensureLabels(label int) {
	for label >= c.labelCount {
		c.counters = append(c.counters, make([]int, c.sumFeature)...)
		c.labelCounters = append(c.labelCounters, 0)
		c.labelCount++
	}
}

// Train absorbs one training point: features[i] must be in
// [0,featureSizes[i]). It reports false and leaves the model unchanged if
// any feature value is out of range.
func (c *Classifier) Train(features []int, label int) bool {
	for i, v := range features {
		if v < 0 || v >= c.featureSizes[i] {
			return false
		}
	}

	c.ensureLabels(label)

	base := label * c.sumFeature
	offset := 0
	for i, v := range features {
		c.counters[base+offset+v]++
		offset += c.featureSizes[i]
	}
	c.labelCounters[label]++

	return true
}

// Predict scores features against every known label and returns the
// argmax. If out is non-nil, it must have length labelCount and receives
// the per-label log-scores.
func (c *Classifier) Predict(features []int, out []float64) int {
	var totalPoints float64
	for _, n := range c.labelCounters {
		totalPoints += float64(n)
	}

	scores := make([]float64, c.labelCount)

	for label := 0; label < c.labelCount; label++ {
		numerator := float64(c.labelCounters[label]) + float64(c.sumFeature)*c.smoothing
		scores[label] = math.Log(numerator / totalPoints)

		base := label * c.sumFeature
		offset := 0

		for i, v := range features {
			size := c.featureSizes[i]

			sumFeature := float64(size) * c.smoothing
			for fv := 0; fv < size; fv++ {
				sumFeature += float64(c.counters[base+offset+fv])
			}

			current := float64(c.counters[base+offset+v]) + c.smoothing
			scores[label] += math.Log(current / sumFeature)

			offset += size
		}
	}

	best := 0
	for l := 1; l < c.labelCount; l++ {
		if scores[l] > scores[best] {
			best = l
		}
	}

	if out != nil {
		copy(out, scores)
	}

	return best
}

// SetSmoothing changes the Laplace smoothing constant.
func (c *Classifier) SetSmoothing(v float64) { c.smoothing = v }

// Smoothing returns the current smoothing constant.
func (c *Classifier) Smoothing() float64 { return c.smoothing }
