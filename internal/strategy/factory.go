package strategy

import (
	"fmt"

	"algotrader/internal/analyzer"
)

// Default analyzer lengths for factory-built strategies.
const (
	defaultShortLength = 10
	defaultLongLength  = 30
	defaultSlopeLength = 20
)

// Factory returns a constructor for the named strategy with its default
// analyzer parameters. Each call to the constructor builds an independent
// instance, one per symbol.
func Factory(name string) (func() Strategy, error) {
	switch name {
	case "trivial":
		return func() Strategy { return NewTrivial() }, nil
	case "ma_cross":
		return func() Strategy {
			return NewMACross(analyzer.NewEMA(defaultShortLength), analyzer.NewEMA(defaultLongLength))
		}, nil
	case "ma_slope":
		return func() Strategy {
			return NewMASlope(analyzer.NewEMA(defaultSlopeLength))
		}, nil
	case "macd_cross":
		return func() Strategy { return NewMACDCross(analyzer.NewMACD()) }, nil
	case "psar_cross":
		return func() Strategy {
			return NewPSARCross(analyzer.NewPSAR(),
				analyzer.NewEMA(defaultShortLength), analyzer.NewEMA(defaultLongLength))
		}, nil
	case "psar_only":
		return func() Strategy { return NewPSAROnly(analyzer.NewPSAR()) }, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}
