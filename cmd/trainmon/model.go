package main

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/tailored-agentic-units/trainmon/monitor"
	"github.com/tailored-agentic-units/trainmon/tensor"
	"github.com/tailored-agentic-units/trainmon/tfevent"
	"github.com/tailored-agentic-units/trainmon/train"
)

const weightsSize = 8

// toyModel stands in for a real trainer: its loss decays with the global
// step, plus seeded noise, so a run produces plausible curves.
type toyModel struct {
	rng     *rand.Rand
	weights *tensor.Tensor
}

func newToyModel(seed uint64) *toyModel {
	return &toyModel{
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		weights: tensor.Zeros(weightsSize, weightsSize, 1),
	}
}

func (m *toyModel) step(hub *monitor.Monitors) train.StepFunc {
	return func(_ context.Context, p train.Progress) error {
		gs := float64(p.GlobalStep())
		loss := 2*math.Exp(-gs/200) + 0.05*m.rng.NormFloat64()
		acc := math.Min(1, math.Max(0, 1-loss/2))

		if err := hub.PutScalar("loss", loss); err != nil {
			return err
		}
		summary := &tfevent.Summary{Values: []*tfevent.Value{
			tfevent.NewSimpleValue("tower0/accuracy-summary", float32(acc)),
		}}
		if err := hub.PutSummary(summary); err != nil {
			return err
		}

		if p.LocalStep() != p.StepsPerEpoch()-1 {
			return nil
		}
		m.perturb()
		if err := hub.PutImage("weights", m.weights); err != nil {
			return err
		}
		return hub.PutEvent(&tfevent.Event{LogMessage: &tfevent.LogMessage{
			Level:   tfevent.LogInfo,
			Message: fmt.Sprintf("epoch %d finished, loss %.4f", p.EpochNum(), loss),
		}})
	}
}

func (m *toyModel) perturb() {
	for i := range weightsSize {
		for j := range weightsSize {
			v := m.weights.At(i, j, 0) + 16*m.rng.NormFloat64()
			m.weights.Set(math.Min(255, math.Max(0, v)), i, j, 0)
		}
	}
}
