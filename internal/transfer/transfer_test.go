package transfer

import "testing"

func closeEnough(a, b, tol float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}

	return d <= tol
}

func TestLinearIsIdentity(t *testing.T) {
	f := NewLinear(1)
	v := Vec3{0.2, 0.5, 0.9}

	if f.Forward(v) != v || f.Inverse(v) != v {
		t.Fatal("Linear.Forward/Inverse must be identity")
	}
}

func TestLinearDefaultsNonPositiveScale(t *testing.T) {
	if NewLinear(0).InputScale() != 1 {
		t.Fatal("NewLinear(0) should default to scale 1")
	}

	if NewLinear(-5).InputScale() != 1 {
		t.Fatal("NewLinear(-5) should default to scale 1")
	}
}

func TestSRGBRoundTrip(t *testing.T) {
	f := NewSRGB(1)

	for _, x := range []float32{0, 0.01, 0.18, 0.5, 1.0} {
		v := Vec3{x, x, x}
		enc := f.Forward(v)
		dec := f.Inverse(enc)

		for i := range dec {
			if !closeEnough(dec[i], v[i], 1e-5) {
				t.Fatalf("sRGB round trip at x=%v: got %v want %v", x, dec[i], v[i])
			}
		}
	}
}

func TestPURoundTrip(t *testing.T) {
	f := NewPU(1)

	for _, x := range []float32{0, 0.1, 1.0, 4.0, 100.0} {
		v := Vec3{x, x, x}
		enc := f.Forward(v)
		dec := f.Inverse(enc)

		for i := range dec {
			if !closeEnough(dec[i], v[i], 1e-3) {
				t.Fatalf("PU round trip at x=%v: got %v want %v", x, dec[i], v[i])
			}
		}
	}
}

func TestPUForwardOneIsOne(t *testing.T) {
	f := NewPU(1)

	got := f.Forward(Vec3{1, 1, 1})
	if !closeEnough(got[0], 1, 1e-6) {
		t.Fatalf("PU.Forward(1) = %v, want ~1", got[0])
	}
}
