package policy

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// LayerWeights is the serialisable form of one dense layer. W is row-major
// with Rows outputs and Cols inputs.
type LayerWeights struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	W    []float64 `json:"w"`
	B    []float64 `json:"b"`
}

type Weights struct {
	Layers []LayerWeights `json:"layers"`
}

func exportLayers(layers []layer) Weights {
	w := Weights{Layers: make([]LayerWeights, len(layers))}
	for i, l := range layers {
		r, c := l.W.Dims()
		lw := LayerWeights{Rows: r, Cols: c, W: make([]float64, 0, r*c), B: make([]float64, l.B.Len())}
		for row := 0; row < r; row++ {
			lw.W = append(lw.W, l.W.RawRowView(row)...)
		}
		copy(lw.B, l.B.RawVector().Data)
		w.Layers[i] = lw
	}
	return w
}

func (w Weights) layers() ([]layer, error) {
	out := make([]layer, len(w.Layers))
	for i, lw := range w.Layers {
		if lw.Rows <= 0 || lw.Cols <= 0 || len(lw.W) != lw.Rows*lw.Cols || len(lw.B) != lw.Rows {
			return nil, errors.Wrapf(ErrShapeMismatch, "layer %d: %dx%d with %d weights and %d biases", i, lw.Rows, lw.Cols, len(lw.W), len(lw.B))
		}
		data := make([]float64, len(lw.W))
		copy(data, lw.W)
		bias := make([]float64, len(lw.B))
		copy(bias, lw.B)
		out[i] = layer{W: mat.NewDense(lw.Rows, lw.Cols, data), B: mat.NewVecDense(lw.Rows, bias)}
	}
	return out, nil
}
