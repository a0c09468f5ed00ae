// Package mcnn implements the Micro-Cluster Nearest Neighbour streaming
// classifier, grounded on the original implementation's mc_nn.hpp: each
// class is represented by one or more micro-clusters tracked by their
// running mean and variance, split when a cluster starts misclassifying
// too often.
package mcnn

import "math"

// EmptyClass is returned by Predict when no cluster exists yet.
const EmptyClass = -1

type cluster struct {
	featureSum       []float64
	featureSquareSum []float64
	pointCount       int
	label            int
	errorCount       int
	active           bool
}

func (c *cluster) incorporate(features []float64) {
	c.pointCount++
	for i, v := range features {
		c.featureSum[i] += v
		c.featureSquareSum[i] += v * v
	}
}

func (c *cluster) centroid() []float64 {
	out := make([]float64, len(c.featureSum))
	for i, s := range c.featureSum {
		out[i] = s / float64(c.pointCount)
	}
	return out
}

func (c *cluster) variance(feature int) float64 {
	n := float64(c.pointCount)
	a := c.featureSquareSum[feature] / n
	b := c.featureSum[feature] / n
	v := a - b*b
	if v < 0 {
		return 0
	}
	return v
}

// Classifier is an online nearest-centroid classifier with adaptive
// micro-clusters per label.
type Classifier struct {
	featureCount   int
	maxClusters    int
	errorThreshold int

	clusters []cluster
}

// New constructs a Classifier. maxClusters bounds the total number of
// micro-clusters across every label; errorThreshold sets the split
// trigger: a cluster's error counter starts at errorThreshold+1, rises by
// one for each point it classifies correctly and falls by one each time it
// takes part in a misclassification, and the cluster splits once the
// counter drops below errorThreshold.
func New(featureCount, maxClusters, errorThreshold int) *Classifier {
	clusters := make([]cluster, maxClusters)
	for i := range clusters {
		clusters[i].featureSum = make([]float64, featureCount)
		clusters[i].featureSquareSum = make([]float64, featureCount)
	}

	return &Classifier{
		featureCount:   featureCount,
		maxClusters:    maxClusters,
		errorThreshold: errorThreshold,
		clusters:       clusters,
	}
}

func euclideanSq(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func (c *Classifier) nearest(features []float64) int {
	nearest := -1
	shortest := math.MaxFloat64

	for i := range c.clusters {
		if !c.clusters[i].active {
			continue
		}
		d := euclideanSq(features, c.clusters[i].centroid())
		if d < shortest {
			shortest, nearest = d, i
		}
	}

	return nearest
}

func (c *Classifier) nearestWithLabel(features []float64, label int) int {
	nearest := -1
	shortest := math.MaxFloat64

	for i := range c.clusters {
		if !c.clusters[i].active || c.clusters[i].label != label {
			continue
		}
		d := euclideanSq(features, c.clusters[i].centroid())
		if d < shortest {
			shortest, nearest = d, i
		}
	}

	return nearest
}

// Train absorbs one labelled point, creating a new cluster for unseen
// labels, merging into the nearest same-label cluster on agreement, and
// splitting a cluster that has drifted into misclassifying too often.
func (c *Classifier) Train(features []float64, label int) {
	nearest := c.nearest(features)
	nearestWithLabel := c.nearestWithLabel(features, label)

	if nearestWithLabel < 0 {
		for i := range c.clusters {
			if !c.clusters[i].active {
				c.initCluster(i, features, label)
				return
			}
		}
		return // at capacity; drop the point
	}

	if nearest == nearestWithLabel {
		c.clusters[nearest].errorCount++
		c.clusters[nearest].incorporate(features)
		return
	}

	c.clusters[nearest].errorCount--
	c.clusters[nearestWithLabel].errorCount--
	c.clusters[nearestWithLabel].incorporate(features)

	if c.clusters[nearestWithLabel].errorCount < c.errorThreshold {
		c.split(nearestWithLabel)
	}
	if nearest >= 0 && c.clusters[nearest].errorCount < c.errorThreshold {
		c.split(nearest)
	}
}

func (c *Classifier) initCluster(idx int, features []float64, label int) {
	cl := &c.clusters[idx]
	cl.active = true
	cl.label = label
	cl.pointCount = 1
	cl.errorCount = c.errorThreshold + 1
	for i, v := range features {
		cl.featureSum[i] = v
		cl.featureSquareSum[i] = v * v
	}
}

// split clones the cluster at idx to the first free slot (deactivated
// cluster other than idx itself), a coarse approximation of the
// original's variance-guided centroid split: the mass is halved between
// the two copies rather than partitioned along the highest-variance
// feature, since doing the latter online would require buffering raw
// points the running sums do not retain.
func (c *Classifier) split(idx int) {
	newIdx := -1
	for i := range c.clusters {
		if !c.clusters[i].active && i != idx {
			newIdx = i
			break
		}
	}
	if newIdx < 0 {
		return
	}

	src := &c.clusters[idx]
	dst := &c.clusters[newIdx]

	dst.active = true
	dst.label = src.label
	dst.errorCount = c.errorThreshold + 1
	dst.pointCount = src.pointCount / 2
	if dst.pointCount == 0 {
		dst.pointCount = 1
	}
	src.pointCount -= dst.pointCount
	if src.pointCount == 0 {
		src.pointCount = 1
	}

	for i := range src.featureSum {
		dst.featureSum[i] = src.featureSum[i] / 2
		dst.featureSquareSum[i] = src.featureSquareSum[i] / 2
		src.featureSum[i] -= dst.featureSum[i]
		src.featureSquareSum[i] -= dst.featureSquareSum[i]
	}
}

// Predict returns the label of the nearest active cluster's centroid, or
// EmptyClass if no cluster is active yet.
func (c *Classifier) Predict(features []float64) int {
	idx := c.nearest(features)
	if idx < 0 {
		return EmptyClass
	}
	return c.clusters[idx].label
}
