package policy

import (
	"math"

	"github.com/pkg/errors"
)

const (
	defaultBeta1   = 0.9
	defaultBeta2   = 0.999
	defaultEpsilon = 1e-8
)

// AdamState is the serialisable optimiser state.
type AdamState struct {
	LearningRate float64 `json:"learning_rate"`
	Beta1        float64 `json:"beta1"`
	Beta2        float64 `json:"beta2"`
	Epsilon      float64 `json:"epsilon"`
	Step         int     `json:"step"`
	M            Weights `json:"m"`
	V            Weights `json:"v"`
}

type Adam struct {
	lr, beta1, beta2, eps float64
	step                  int
	m, v                  []layer
}

func NewAdam(net *Network, lr float64) *Adam {
	return &Adam{
		lr:    lr,
		beta1: defaultBeta1,
		beta2: defaultBeta2,
		eps:   defaultEpsilon,
		m:     zerosLike(net.layers),
		v:     zerosLike(net.layers),
	}
}

func (a *Adam) LearningRate() float64 {
	return a.lr
}

// Step applies one bias-corrected Adam update of net against g.
func (a *Adam) Step(net *Network, g *Gradients) error {
	if err := sameShape(net.layers, g.layers); err != nil {
		return errors.Wrap(err, "gradients")
	}
	a.step++
	c1 := 1 - math.Pow(a.beta1, float64(a.step))
	c2 := 1 - math.Pow(a.beta2, float64(a.step))

	params, grads, ms, vs := raw(net.layers), raw(g.layers), raw(a.m), raw(a.v)
	for k := range params {
		p, gr, m, v := params[k], grads[k], ms[k], vs[k]
		for i := range p {
			m[i] = a.beta1*m[i] + (1-a.beta1)*gr[i]
			v[i] = a.beta2*v[i] + (1-a.beta2)*gr[i]*gr[i]
			p[i] -= a.lr * (m[i] / c1) / (math.Sqrt(v[i]/c2) + a.eps)
		}
	}
	return nil
}

func (a *Adam) State() AdamState {
	return AdamState{
		LearningRate: a.lr,
		Beta1:        a.beta1,
		Beta2:        a.beta2,
		Epsilon:      a.eps,
		Step:         a.step,
		M:            exportLayers(a.m),
		V:            exportLayers(a.v),
	}
}

// Restore loads s; moment shapes must match net.
func (a *Adam) Restore(net *Network, s AdamState) error {
	m, err := s.M.layers()
	if err != nil {
		return errors.Wrap(err, "adam first moment")
	}
	v, err := s.V.layers()
	if err != nil {
		return errors.Wrap(err, "adam second moment")
	}
	if err := sameShape(net.layers, m); err != nil {
		return errors.Wrap(err, "adam first moment")
	}
	if err := sameShape(net.layers, v); err != nil {
		return errors.Wrap(err, "adam second moment")
	}
	a.lr, a.beta1, a.beta2, a.eps = s.LearningRate, s.Beta1, s.Beta2, s.Epsilon
	a.step, a.m, a.v = s.Step, m, v
	return nil
}

func zerosLike(layers []layer) []layer {
	w := exportLayers(layers)
	for i := range w.Layers {
		for j := range w.Layers[i].W {
			w.Layers[i].W[j] = 0
		}
		for j := range w.Layers[i].B {
			w.Layers[i].B[j] = 0
		}
	}
	out, _ := w.layers()
	return out
}
