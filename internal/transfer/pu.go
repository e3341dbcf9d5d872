package transfer

import "math"

// puGain controls the perceptual-uniform log curve's compression strength.
// Forward divides by log1p(puGain), so Forward(1) == 1 for any gain,
// matching the SDR transfer functions' normalization.
const puGain = 8.0

// PU is a perceptual-uniform tone curve for HDR color: a log-domain
// compression that maps unbounded positive linear-light values into a
// bounded range, unlike SRGB which assumes input already lies in [0,1].
type PU struct {
	scale float32
}

// NewPU builds a PU transfer function with the given input scale
// (autoexposure). A scale <= 0 is treated as 1.
func NewPU(scale float32) PU {
	if scale <= 0 {
		scale = 1
	}

	return PU{scale: scale}
}

func (p PU) InputScale() float32 { return p.scale }

func (p PU) Forward(v Vec3) Vec3 {
	return Vec3{puForward(v[0]), puForward(v[1]), puForward(v[2])}
}

func (p PU) Inverse(v Vec3) Vec3 {
	return Vec3{puInverse(v[0]), puInverse(v[1]), puInverse(v[2])}
}

func puForward(x float32) float32 {
	if x <= 0 {
		return 0
	}

	norm := math.Log1p(puGain)

	return float32(math.Log1p(puGain*float64(x)) / norm)
}

func puInverse(x float32) float32 {
	if x <= 0 {
		return 0
	}

	norm := math.Log1p(puGain)

	return float32(math.Expm1(float64(x)*norm) / puGain)
}
