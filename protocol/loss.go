package protocol

import "math/rand"

// lossSimulator drops inbound DATA with a fixed probability. random must
// return values in [0, 1); tests replace it to force drops.
type lossSimulator struct {
	probability float64
	random      func() float64
}

func newLossSimulator(probability float64, seed int64) *lossSimulator {
	return &lossSimulator{
		probability: probability,
		random:      rand.New(rand.NewSource(seed)).Float64,
	}
}

func (loss *lossSimulator) shouldDrop() bool {
	if loss.probability <= 0 {
		return false
	}
	return loss.random() < loss.probability
}
