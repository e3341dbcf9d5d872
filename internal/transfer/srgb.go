package transfer

import "math"

// SRGB is the standard sRGB EOTF/OETF pair used for SDR color tone mapping.
type SRGB struct {
	scale float32
}

// NewSRGB builds an SRGB transfer function with the given input scale
// (autoexposure). A scale <= 0 is treated as 1.
func NewSRGB(scale float32) SRGB {
	if scale <= 0 {
		scale = 1
	}

	return SRGB{scale: scale}
}

func (s SRGB) InputScale() float32 { return s.scale }

func (s SRGB) Forward(v Vec3) Vec3 {
	return Vec3{srgbForward(v[0]), srgbForward(v[1]), srgbForward(v[2])}
}

func (s SRGB) Inverse(v Vec3) Vec3 {
	return Vec3{srgbInverse(v[0]), srgbInverse(v[1]), srgbInverse(v[2])}
}

// srgbForward maps a linear-light value in [0,1] to gamma-encoded sRGB.
func srgbForward(x float32) float32 {
	if x <= 0 {
		return 0
	}

	xf := float64(x)
	if xf <= 0.0031308 {
		return float32(12.92 * xf)
	}

	return float32(1.055*math.Pow(xf, 1.0/2.4) - 0.055)
}

// srgbInverse maps a gamma-encoded sRGB value back to linear light.
func srgbInverse(x float32) float32 {
	if x <= 0 {
		return 0
	}

	xf := float64(x)
	if xf <= 0.04045 {
		return float32(xf / 12.92)
	}

	return float32(math.Pow((xf+0.055)/1.055, 2.4))
}
