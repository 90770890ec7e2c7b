package perceptron_core

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// SigmoidClampBound limits the logistic input so the output never rounds to 0 or 1.
const SigmoidClampBound = 30.0

// BoundaryEpsilon is the smallest input weight treated as non-zero when drawing the boundary.
const BoundaryEpsilon = 0.001

func WeightedSum(w1 float64, w2 float64, b float64, x1 float64, x2 float64) float64 {
	dot_prod := floats.Dot([]float64{w1, w2}, []float64{x1, x2})
	return dot_prod + b
}

func HeavisideStep(z float64) int {
	if z >= 0 {
		return 1
	}
	return 0
}

// Sigmoid evaluates the logistic function without overflowing exp for large |z|.
func Sigmoid(z float64) float64 {
	if math.IsNaN(z) {
		return 0.5
	}
	if z > SigmoidClampBound {
		z = SigmoidClampBound
	} else if z < -SigmoidClampBound {
		z = -SigmoidClampBound
	}
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func SigmoidThreshold(probability float64) int {
	if probability >= 0.5 {
		return 1
	}
	return 0
}

// DeltaRule returns w + rate*err*x.
func DeltaRule(w float64, rate float64, err int, x float64) float64 {
	return w + rate*float64(err)*x
}

// ClampBinary rounds v and bounds it into {0,1}.
func ClampBinary(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	r := math.Round(v)
	if r <= 0 {
		return 0
	}
	return 1
}

func IsFinite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// BoundaryLine describes the set of points where w1*x1 + w2*x2 + b = 0.
// When Vertical is true the line is x1 = Intercept, otherwise x2 = Slope*x1 + Intercept.
type BoundaryLine struct {
	Defined   bool    `json:"defined"`
	Vertical  bool    `json:"vertical"`
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
}

func DecisionBoundary(w1 float64, w2 float64, b float64) BoundaryLine {
	if math.Abs(w1) <= BoundaryEpsilon && math.Abs(w2) <= BoundaryEpsilon {
		return BoundaryLine{}
	}
	if math.Abs(w2) > BoundaryEpsilon {
		return BoundaryLine{
			Defined:   true,
			Slope:     -w1 / w2,
			Intercept: -b / w2,
		}
	}
	return BoundaryLine{
		Defined:   true,
		Vertical:  true,
		Intercept: -b / w1,
	}
}
