// Package stats implements the pluggable per-tree scorers a Coarse
// Mondrian Forest attaches to each tree via cmf.Config.Statistics,
// grounded on the three scorers of the original implementation's
// metrics.hpp: error rate, Cohen's kappa, and a reservoir-sampling
// estimate of the same.
package stats

// ErrorRate tracks a running misclassification rate.
type ErrorRate struct {
	count, errors int
}

// NewErrorRate returns a zeroed ErrorRate scorer.
func NewErrorRate() *ErrorRate { return &ErrorRate{} }

func (e *ErrorRate) Update(truth, prediction int) {
	e.count++
	if truth != prediction {
		e.errors++
	}
}

// Score returns the running error rate, or 0 before any update.
func (e *ErrorRate) Score() float64 {
	if e.count == 0 {
		return 0
	}
	return float64(e.errors) / float64(e.count)
}

func (e *ErrorRate) Reset() { e.count, e.errors = 0, 0 }

// IncreaseError bumps both the total and error count by c, charging the
// scorer for c points counted as misclassified.
func (e *ErrorRate) IncreaseError(c int) { e.count += c; e.errors += c }

// Kappa tracks Cohen's kappa over a fixed label alphabet via a running
// confusion matrix, following metrics.hpp's KappaMetrics.
type Kappa struct {
	labelCount int
	confusion  []int // labelCount*labelCount, row-major [truth][prediction]
	total      int
}

// NewKappa returns a zeroed Kappa scorer for labelCount labels.
func NewKappa(labelCount int) *Kappa {
	return &Kappa{labelCount: labelCount, confusion: make([]int, labelCount*labelCount)}
}

func (k *Kappa) Update(truth, prediction int) {
	k.confusion[truth*k.labelCount+prediction]++
	k.total++
}

// kappa computes Cohen's kappa coefficient over the confusion matrix
// accumulated so far; NaN (0/0) is reported as 0 agreement-beyond-chance.
func (k *Kappa) kappa() float64 {
	var diagonal, sumColRow float64

	for i := 0; i < k.labelCount; i++ {
		diagonal += float64(k.confusion[i*k.labelCount+i])

		var sumCol, sumRow float64
		for j := 0; j < k.labelCount; j++ {
			sumCol += float64(k.confusion[i*k.labelCount+j])
			sumRow += float64(k.confusion[j*k.labelCount+i])
		}
		sumColRow += sumCol * sumRow
	}

	total := float64(k.total)
	denom := total*total - sumColRow
	if denom == 0 {
		return 0
	}

	return (total*diagonal - sumColRow) / denom
}

// Score maps kappa (in [-1,1], higher is better agreement) onto [0,1]
// where lower is better, matching ErrorRate's convention so the two are
// comparable as tree-contribution weights.
func (k *Kappa) Score() float64 { return (1 - k.kappa()) / 2 }

func (k *Kappa) Reset() {
	for i := range k.confusion {
		k.confusion[i] = 0
	}
	k.total = 0
}

// IncreaseError charges the confusion matrix the way metrics.hpp's
// increase_error does: c misclassifications between labels 0 and 1,
// an arbitrary but fixed penalty pair, since the caller supplies no labels.
func (k *Kappa) IncreaseError(c int) {
	if k.labelCount > 1 {
		k.confusion[1] += c // truth=0, prediction=1
	}
	k.total += c
}

// ReservoirScore estimates the error rate from a bounded reservoir sample
// of (truth, prediction) outcomes. The sample is kept uniform over the
// whole stream by Algorithm R, so memory stays fixed and the estimate
// follows the all-time error rate, not recent performance.
type ReservoirScore struct {
	sample  []bool // true = error
	seen    int
	uniform func() float64
}

// NewReservoirScore returns a ReservoirScore holding up to size outcomes,
// sampled uniformly via rnd.
func NewReservoirScore(size int, rnd func() float64) *ReservoirScore {
	return &ReservoirScore{sample: make([]bool, 0, size), uniform: rnd}
}

func (r *ReservoirScore) Update(truth, prediction int) {
	isError := truth != prediction

	if len(r.sample) < cap(r.sample) {
		r.sample = append(r.sample, isError)
	} else if cap(r.sample) > 0 {
		threshold := float64(cap(r.sample)) / float64(r.seen+1)
		if r.uniform() < threshold {
			idx := int(r.uniform() * float64(cap(r.sample)))
			if idx >= cap(r.sample) {
				idx = cap(r.sample) - 1
			}
			r.sample[idx] = isError
		}
	}

	r.seen++
}

func (r *ReservoirScore) Score() float64 {
	if len(r.sample) == 0 {
		return 0
	}

	errors := 0
	for _, e := range r.sample {
		if e {
			errors++
		}
	}

	return float64(errors) / float64(len(r.sample))
}

func (r *ReservoirScore) Reset() { r.sample, r.seen = r.sample[:0], 0 }

// IncreaseError records c synthetic errors against the reservoir.
func (r *ReservoirScore) IncreaseError(c int) {
	for i := 0; i < c; i++ {
		r.Update(0, 1)
	}
}
