package analyzer

import (
	"fmt"

	"algotrader/internal/marketdata/agg"
	"algotrader/internal/model"
)

// Default PSAR acceleration parameters.
const (
	DefaultPSARStep    = 0.02
	DefaultPSARMaxStep = 0.2

	// psarWarmUp is the number of closed periods needed to establish the
	// initial trend direction and extremes.
	psarWarmUp = 5
)

// PSAR is the parabolic stop-and-reverse trend indicator. It tracks a
// boolean trend direction, an acceleration factor that starts at the base
// step and grows by the step on each new extreme (capped at maxStep), and
// the highest/lowest prices seen since the last reversal.
type PSAR struct {
	step    float64
	maxStep float64
	accel   float64

	isRising bool
	highEP   float64 // highest price since last reversal
	lowEP    float64 // lowest price since last reversal

	sars  []float64
	guard seenGuard
}

// NewPSAR creates a PSAR analyzer with the default step and cap.
func NewPSAR() *PSAR {
	return NewPSARWithSteps(DefaultPSARStep, DefaultPSARMaxStep)
}

// NewPSARWithSteps creates a PSAR analyzer with an explicit base step and cap.
func NewPSARWithSteps(step, maxStep float64) *PSAR {
	return &PSAR{step: step, maxStep: maxStep, accel: step}
}

func (p *PSAR) Name() string { return fmt.Sprintf("psar_%g_%g", p.step, p.maxStep) }

func (p *PSAR) UpdateValues(a *agg.Aggregator) {
	if !p.guard.newPeriod(a) {
		return
	}
	if a.NumPeriods() < psarWarmUp {
		return
	}

	if len(p.sars) == 0 {
		p.initialize(a)
		return
	}

	lastHigh := a.LastValue(model.SourceHigh)
	lastLow := a.LastValue(model.SourceLow)
	sar := p.sars[len(p.sars)-1]

	flipped := (p.isRising && lastLow < sar) || (!p.isRising && lastHigh > sar)
	if flipped {
		p.isRising = !p.isRising
		var next float64
		if p.isRising {
			next = minFloat(p.lowEP, lastLow)
		} else {
			next = maxFloat(p.highEP, lastHigh)
		}
		p.highEP = lastHigh
		p.lowEP = lastLow
		p.accel = p.step
		p.sars = append(p.sars, next)
		return
	}

	if p.isRising {
		if lastHigh > p.highEP {
			p.incrementAccel()
			p.highEP = lastHigh
		}
		p.lowEP = minFloat(p.lowEP, lastLow)
		p.sars = append(p.sars, sar+p.accel*(p.highEP-sar))
	} else {
		if lastLow < p.lowEP {
			p.incrementAccel()
			p.lowEP = lastLow
		}
		p.highEP = maxFloat(p.highEP, lastHigh)
		p.sars = append(p.sars, sar-p.accel*(sar-p.lowEP))
	}
}

// initialize derives the starting direction from the last two closes and the
// starting extremes from the warm-up window, then seeds the stop value at
// the extreme opposite the trend.
func (p *PSAR) initialize(a *agg.Aggregator) {
	closes := a.LastValues(model.SourceClose, 2)
	p.isRising = closes[1] > closes[0]

	highs := a.LastValues(model.SourceHigh, psarWarmUp)
	lows := a.LastValues(model.SourceLow, psarWarmUp)
	p.highEP = highs[0]
	p.lowEP = lows[0]
	for i := 1; i < len(highs); i++ {
		p.highEP = maxFloat(p.highEP, highs[i])
		p.lowEP = minFloat(p.lowEP, lows[i])
	}

	if p.isRising {
		p.sars = append(p.sars, p.lowEP)
	} else {
		p.sars = append(p.sars, p.highEP)
	}
}

func (p *PSAR) incrementAccel() {
	if p.accel < p.maxStep {
		p.accel += p.step
	}
}

// IsRising returns the current trend direction.
func (p *PSAR) IsRising() bool { return p.isRising }

// Values returns the append-only stop value sequence. Empty until the
// warm-up window has closed.
func (p *PSAR) Values() []float64 { return p.sars }

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
