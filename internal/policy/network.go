// Package policy implements the feed-forward softmax policy used by the
// agent: a batched forward pass, hand-derived gradients, global-norm
// clipping and an Adam optimiser.
package policy

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var ErrShapeMismatch = errors.New("weights shape mismatch")

type layer struct {
	W *mat.Dense    // outputs x inputs
	B *mat.VecDense // outputs
}

// Network maps a batch of observations (B x inputs) to action
// probabilities (B x outputs) through two ReLU hidden layers.
type Network struct {
	layers []layer
}

// New builds a network with He-initialised weights drawn from rng.
func New(inputs, hidden, outputs int, rng *rand.Rand) (*Network, error) {
	if inputs <= 0 || hidden <= 0 || outputs <= 0 {
		return nil, errors.Errorf("invalid network shape %d-%d-%d", inputs, hidden, outputs)
	}
	sizes := []int{inputs, hidden, hidden, outputs}
	n := &Network{layers: make([]layer, len(sizes)-1)}
	for l := range n.layers {
		in, out := sizes[l], sizes[l+1]
		scale := math.Sqrt(2.0 / float64(in))
		if l == len(n.layers)-1 {
			// keep the initial policy close to uniform
			scale *= 0.1
		}
		data := make([]float64, out*in)
		for i := range data {
			data[i] = rng.NormFloat64() * scale
		}
		n.layers[l] = layer{
			W: mat.NewDense(out, in, data),
			B: mat.NewVecDense(out, nil),
		}
	}
	return n, nil
}

func (n *Network) NumParams() int {
	var total int
	for _, l := range n.layers {
		r, c := l.W.Dims()
		total += r*c + r
	}
	return total
}

type trace struct {
	inputs []*mat.Dense // input to each layer
	pre    []*mat.Dense // pre-activation of each layer
	probs  *mat.Dense
}

// Forward returns the action probabilities for each row of x.
func (n *Network) Forward(x mat.Matrix) *mat.Dense {
	return n.forward(x).probs
}

func (n *Network) forward(x mat.Matrix) trace {
	t := trace{
		inputs: make([]*mat.Dense, len(n.layers)),
		pre:    make([]*mat.Dense, len(n.layers)),
	}
	a := mat.DenseCopyOf(x)
	for i, l := range n.layers {
		t.inputs[i] = a
		var z mat.Dense
		z.Mul(a, l.W.T())
		b := l.B
		z.Apply(func(_, j int, v float64) float64 { return v + b.AtVec(j) }, &z)
		t.pre[i] = &z
		if i == len(n.layers)-1 {
			break
		}
		var h mat.Dense
		h.Apply(func(_, _ int, v float64) float64 { return math.Max(v, 0) }, &z)
		a = &h
	}
	t.probs = softmaxRows(t.pre[len(n.layers)-1])
	return t
}

func softmaxRows(logits *mat.Dense) *mat.Dense {
	r, c := logits.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		row := out.RawRowView(i)
		copy(row, logits.RawRowView(i))
		maxLogit := floats.Max(row)
		for j := range row {
			row[j] = math.Exp(row[j] - maxLogit)
		}
		floats.Scale(1/floats.Sum(row), row)
	}
	return out
}

// Backward returns the gradient of a scalar loss with respect to every
// parameter, given x and the loss gradient at the logits (B x outputs).
func (n *Network) Backward(x mat.Matrix, dLogits mat.Matrix) *Gradients {
	t := n.forward(x)
	g := &Gradients{layers: make([]layer, len(n.layers))}
	delta := mat.DenseCopyOf(dLogits)
	for i := len(n.layers) - 1; i >= 0; i-- {
		var dW mat.Dense
		dW.Mul(delta.T(), t.inputs[i])
		rows, outs := delta.Dims()
		dB := mat.NewVecDense(outs, nil)
		for r := 0; r < rows; r++ {
			dB.AddVec(dB, delta.RowView(r))
		}
		g.layers[i] = layer{W: &dW, B: dB}
		if i == 0 {
			break
		}
		var next mat.Dense
		next.Mul(delta, n.layers[i].W)
		z := t.pre[i-1]
		next.Apply(func(r, c int, v float64) float64 {
			if z.At(r, c) <= 0 {
				return 0
			}
			return v
		}, &next)
		delta = &next
	}
	return g
}

// Weights exports a copy of the parameters.
func (n *Network) Weights() Weights {
	return exportLayers(n.layers)
}

// SetWeights replaces the parameters; the shapes must match the network.
func (n *Network) SetWeights(w Weights) error {
	layers, err := w.layers()
	if err != nil {
		return err
	}
	if err := sameShape(n.layers, layers); err != nil {
		return err
	}
	n.layers = layers
	return nil
}

// FromWeights builds a network whose shape is taken from w.
func FromWeights(w Weights) (*Network, error) {
	layers, err := w.layers()
	if err != nil {
		return nil, err
	}
	if len(layers) == 0 {
		return nil, errors.Wrap(ErrShapeMismatch, "no layers")
	}
	for i := 1; i < len(layers); i++ {
		_, in := layers[i].W.Dims()
		out, _ := layers[i-1].W.Dims()
		if in != out {
			return nil, errors.Wrapf(ErrShapeMismatch, "layer %d expects %d inputs, previous layer has %d outputs", i, in, out)
		}
	}
	return &Network{layers: layers}, nil
}

func sameShape(a, b []layer) error {
	if len(a) != len(b) {
		return errors.Wrapf(ErrShapeMismatch, "want %d layers, got %d", len(a), len(b))
	}
	for i := range a {
		ar, ac := a[i].W.Dims()
		br, bc := b[i].W.Dims()
		if ar != br || ac != bc || a[i].B.Len() != b[i].B.Len() {
			return errors.Wrapf(ErrShapeMismatch, "layer %d: want %dx%d, got %dx%d", i, ar, ac, br, bc)
		}
	}
	return nil
}

// raw returns the backing slices of every parameter in a fixed order.
func raw(layers []layer) [][]float64 {
	out := make([][]float64, 0, 2*len(layers))
	for _, l := range layers {
		out = append(out, l.W.RawMatrix().Data, l.B.RawVector().Data)
	}
	return out
}
