package policy

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Gradients has the same shape as the Network it was computed for.
type Gradients struct {
	layers []layer
}

// Norm is the global L2 norm over every parameter gradient.
func (g *Gradients) Norm() float64 {
	var sq float64
	for _, data := range raw(g.layers) {
		n := floats.Norm(data, 2)
		sq += n * n
	}
	return math.Sqrt(sq)
}

// Clip rescales the gradients in place so their global norm does not exceed
// maxNorm. It returns the norm measured before clipping.
func (g *Gradients) Clip(maxNorm float64) float64 {
	norm := g.Norm()
	if maxNorm <= 0 || norm <= maxNorm {
		return norm
	}
	scale := maxNorm / (norm + 1e-6)
	for _, data := range raw(g.layers) {
		floats.Scale(scale, data)
	}
	return norm
}

// Weights exports the gradients in the parameter layout.
func (g *Gradients) Weights() Weights {
	return exportLayers(g.layers)
}
