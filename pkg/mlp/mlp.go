// Package mlp implements a feedforward multilayer perceptron, grounded on
// the original implementation's perceptron.hpp layout (one flat weight
// array covering every layer, each neuron's incoming weights followed by
// its bias), extended with a backpropagation training step the original
// leaves to its caller.
package mlp

import "math"

// Activation is a differentiable activation function and its derivative
// expressed in terms of the function's own output (the common trick that
// lets sigmoid/tanh backprop skip recomputing the pre-activation sum).
type Activation struct {
	Forward      func(float64) float64
	DerivFromOut func(out float64) float64
}

// Sigmoid is the standard logistic activation.
var Sigmoid = Activation{
	Forward:      func(x float64) float64 { return 1 / (1 + math.Exp(-x)) },
	DerivFromOut: func(out float64) float64 { return out * (1 - out) },
}

// Network is a fully connected feedforward network with len(layerSizes)
// layers, layerSizes[0] inputs and layerSizes[len-1] outputs.
type Network struct {
	layerSizes []int
	activation Activation

	// weights[l] holds layer l's incoming weights, laid out neuron-major:
	// weights[l][n*(layerSizes[l-1]+1)+i] is neuron n's weight for input i
	// of the previous layer, and weights[l][n*(layerSizes[l-1]+1)+layerSizes[l-1]]
	// is neuron n's bias, mirroring perceptron.hpp's flat weight array.
	weights [][]float64

	learningRate float64
}

// New constructs a Network with the given layer sizes (at least 2:
// input and output) and a random weight initializer supplying values in
// a small range around zero.
func New(layerSizes []int, activation Activation, learningRate float64, initWeight func() float64) *Network {
	n := &Network{layerSizes: layerSizes, activation: activation, learningRate: learningRate}

	n.weights = make([][]float64, len(layerSizes))
	for l := 1; l < len(layerSizes); l++ {
		count := layerSizes[l] * (layerSizes[l-1] + 1)
		n.weights[l] = make([]float64, count)
		for i := range n.weights[l] {
			n.weights[l][i] = initWeight()
		}
	}

	return n
}

// SetWeights overwrites layer l's weights directly, matching
// perceptron.hpp's set_weights(layer_idx, new_weights) escape hatch for
// callers that want to load a pretrained model.
func (n *Network) SetWeights(layer int, weights []float64) {
	copy(n.weights[layer], weights)
}

// feedForward propagates input through every layer, returning the
// per-layer neuron outputs (activations[0] is the input slice itself) so
// Predict and Train can share the same pass.
func (n *Network) feedForward(input []float64) [][]float64 {
	activations := make([][]float64, len(n.layerSizes))
	activations[0] = input

	for l := 1; l < len(n.layerSizes); l++ {
		prevSize := n.layerSizes[l-1]
		out := make([]float64, n.layerSizes[l])

		for neuron := 0; neuron < n.layerSizes[l]; neuron++ {
			base := neuron * (prevSize + 1)
			sum := n.weights[l][base+prevSize] // bias

			for i := 0; i < prevSize; i++ {
				sum += n.weights[l][base+i] * activations[l-1][i]
			}

			out[neuron] = n.activation.Forward(sum)
		}

		activations[l] = out
	}

	return activations
}

// Predict runs input through the network and returns the output layer's
// activations.
func (n *Network) Predict(input []float64) []float64 {
	activations := n.feedForward(input)
	return activations[len(activations)-1]
}

// Train runs one stochastic gradient descent step against a single
// labelled example using standard backpropagation with the configured
// activation's derivative.
func (n *Network) Train(input, target []float64) {
	activations := n.feedForward(input)
	last := len(n.layerSizes) - 1

	// deltas[l][j] is the error signal at neuron j of layer l.
	deltas := make([][]float64, len(n.layerSizes))
	deltas[last] = make([]float64, n.layerSizes[last])

	for j := range deltas[last] {
		out := activations[last][j]
		deltas[last][j] = (out - target[j]) * n.activation.DerivFromOut(out)
	}

	for l := last; l > 0; l-- {
		prevSize := n.layerSizes[l-1]

		if l > 1 {
			deltas[l-1] = make([]float64, prevSize)
			for i := 0; i < prevSize; i++ {
				var sum float64
				for j := 0; j < n.layerSizes[l]; j++ {
					sum += n.weights[l][j*(prevSize+1)+i] * deltas[l][j]
				}
				deltas[l-1][i] = sum * n.activation.DerivFromOut(activations[l-1][i])
			}
		}

		for j := 0; j < n.layerSizes[l]; j++ {
			base := j * (prevSize + 1)
			for i := 0; i < prevSize; i++ {
				n.weights[l][base+i] -= n.learningRate * deltas[l][j] * activations[l-1][i]
			}
			n.weights[l][base+prevSize] -= n.learningRate * deltas[l][j]
		}
	}
}
