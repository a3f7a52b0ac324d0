package agent

import (
	"github.com/pkg/errors"

	"blockdodge-rl/internal/policy"
)

// ErrIncompatible is returned when a snapshot does not fit the agent's network.
var ErrIncompatible = errors.New("incompatible checkpoint")

// Snapshot is everything needed to resume an agent.
type Snapshot struct {
	Policy    policy.Weights    `json:"policy"`
	Optimizer *policy.AdamState `json:"optimizer,omitempty"`
}

type Saver interface {
	Save(name string, v any) error
}

type Loader interface {
	Load(name string, v any) error
}

func (a *Agent) Snapshot() Snapshot {
	state := a.opt.State()
	return Snapshot{Policy: a.net.Weights(), Optimizer: &state}
}

// Restore replaces the policy parameters and, when present, the optimiser
// state. Without optimiser state the optimiser starts fresh. On error the
// agent is left untouched.
func (a *Agent) Restore(s Snapshot) error {
	net, err := policy.FromWeights(a.net.Weights())
	if err != nil {
		return err
	}
	if err := net.SetWeights(s.Policy); err != nil {
		return errors.Wrap(ErrIncompatible, err.Error())
	}
	opt := policy.NewAdam(net, a.cfg.LearningRate)
	if s.Optimizer != nil {
		if err := opt.Restore(net, *s.Optimizer); err != nil {
			return errors.Wrap(ErrIncompatible, err.Error())
		}
	}
	a.net, a.opt = net, opt
	return nil
}

// SetPolicy swaps in policy weights received from elsewhere, e.g. a
// running trainer.
func (a *Agent) SetPolicy(w policy.Weights) error {
	return a.Restore(Snapshot{Policy: w})
}

func (a *Agent) Save(s Saver, name string) error {
	return errors.Wrapf(s.Save(name, a.Snapshot()), "save %s", name)
}

func (a *Agent) Load(l Loader, name string) error {
	var snap Snapshot
	if err := l.Load(name, &snap); err != nil {
		return errors.Wrapf(err, "load %s", name)
	}
	return a.Restore(snap)
}

// Weights returns a copy of the current policy parameters.
func (a *Agent) Weights() policy.Weights {
	return a.net.Weights()
}
