package agent

import (
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"blockdodge-rl/internal/dodge"
)

const (
	normEpsilon     = 1e-8
	baselineEpsilon = 1e-8
)

// ComputeReturns computes G_t = r_t + gamma*G_{t+1} backwards with G_T = 0.
func ComputeReturns(rewards []float64, gamma float64) []float64 {
	returns := make([]float64, len(rewards))
	var g float64
	for t := len(rewards) - 1; t >= 0; t-- {
		g = rewards[t] + gamma*g
		returns[t] = g
	}
	return returns
}

// ComputeReturns returns the discounted returns of the recorded rewards.
func (a *Agent) ComputeReturns() []float64 {
	return ComputeReturns(a.rewards, a.cfg.Gamma)
}

// PMiss is the fraction of misses in the outcome window, or 0.5 when the
// window is empty.
func (a *Agent) PMiss() float64 {
	n := a.outcomes.Len()
	if n == 0 {
		return 0.5
	}
	misses := a.outcomes.Count(func(o dodge.Outcome) bool { return o == dodge.OutcomeMiss })
	return float64(misses) / float64(n)
}

// BaselineValue is the closed-form expected return for a block at height h
// under the current miss probability.
func (a *Agent) BaselineValue(h int) float64 {
	if h < 0 {
		h = 0
	}
	p := a.PMiss()
	gamma := a.cfg.Gamma
	top := a.cfg.GridHeight - 1

	var v0 float64
	denom := 1 - p*math.Pow(gamma, float64(top+1))
	if math.Abs(denom) >= baselineEpsilon {
		v0 = (a.cfg.Rewards.Miss*p + a.cfg.Rewards.Death*(1-p)) / denom
	}
	return math.Pow(gamma, float64(h)) * v0
}

// Advantages turns returns into advantages using the height baseline and
// normalisation settings.
func (a *Agent) Advantages(returns []float64, heights []int) []float64 {
	adv := make([]float64, len(returns))
	copy(adv, returns)
	if a.cfg.UseHeightBaseline {
		for t := range adv {
			adv[t] -= a.BaselineValue(heights[t])
		}
	}
	if a.cfg.UseNormalization && len(adv) > 1 {
		mean, std := stat.MeanStdDev(adv, nil)
		for t := range adv {
			adv[t] = (adv[t] - mean) / (std + normEpsilon)
		}
	}
	return adv
}

// UpdatePolicy performs one policy-gradient step on the recorded trajectory
// and returns the loss. Buffers are always cleared.
func (a *Agent) UpdatePolicy() (float64, error) {
	a.phase = Updating
	defer func() {
		a.ClearBuffers()
		a.phase = Collecting
	}()

	n := a.alignBuffers()
	if n < 2 {
		return 0, nil
	}

	returns := ComputeReturns(a.rewards, a.cfg.Gamma)
	adv := a.Advantages(returns, a.heights)

	var policyLoss, meanEntropy float64
	for t := 0; t < n; t++ {
		policyLoss -= a.logProbs[t] * adv[t]
		meanEntropy += a.entropies[t]
	}
	policyLoss /= float64(n)
	meanEntropy /= float64(n)
	loss := policyLoss - a.cfg.EntropyCoef*meanEntropy

	x := mat.NewDense(n, dodge.ObservationSize, nil)
	for t := 0; t < n; t++ {
		x.SetRow(t, a.observations[t][:])
	}
	probs := a.net.Forward(x)
	dLogits := mat.NewDense(n, dodge.NumActions, nil)
	scale := 1 / float64(n)
	for t := 0; t < n; t++ {
		p := probs.RawRowView(t)
		h := entropy(p)
		row := dLogits.RawRowView(t)
		for j := range row {
			var indicator float64
			if dodge.Action(j) == a.actions[t] {
				indicator = 1
			}
			row[j] = -scale * adv[t] * (indicator - p[j])
			if p[j] > 0 {
				row[j] += scale * a.cfg.EntropyCoef * p[j] * (math.Log(p[j]) + h)
			}
		}
	}

	grads := a.net.Backward(x, dLogits)
	norm := grads.Clip(a.cfg.MaxGradNorm)
	if err := a.opt.Step(a.net, grads); err != nil {
		return 0, errors.Wrap(err, "optimizer step")
	}
	a.log.WithFields(logrus.Fields{
		"steps":     n,
		"loss":      loss,
		"grad_norm": norm,
	}).Debug("policy updated")
	return loss, nil
}

// alignBuffers truncates every trajectory buffer to the shortest one and
// returns the common length.
func (a *Agent) alignBuffers() int {
	lengths := []int{
		len(a.observations), len(a.actions), len(a.logProbs),
		len(a.rewards), len(a.entropies), len(a.heights),
	}
	n := lengths[0]
	mismatch := false
	for _, l := range lengths[1:] {
		if l != n {
			mismatch = true
		}
		if l < n {
			n = l
		}
	}
	if mismatch {
		a.log.WithFields(logrus.Fields{
			"log_probs": len(a.logProbs),
			"rewards":   len(a.rewards),
			"entropies": len(a.entropies),
			"heights":   len(a.heights),
		}).Warn("trajectory buffers out of step, truncating")
		a.observations = a.observations[:n]
		a.actions = a.actions[:n]
		a.logProbs = a.logProbs[:n]
		a.rewards = a.rewards[:n]
		a.entropies = a.entropies[:n]
		a.heights = a.heights[:n]
	}
	return n
}
