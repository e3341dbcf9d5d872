// Package testutil provides shared skip helpers and numeric assertion
// helpers for denoisegraph's integration tests.
//
// RequireWeightsFile calls t.Skip with a clear human-readable reason when
// the named prerequisite is absent, so integration tests remain runnable in
// partial environments without failing noisily.
package testutil

import (
	"math"
	"os"
	"testing"
)

// RequireWeightsFile skips the test if no safetensors weights file can be
// found at path, or at the path given by the DENOISEGRAPH_WEIGHTS_PATH
// environment variable when path is empty.
func RequireWeightsFile(t testing.TB, path string) string {
	t.Helper()

	if path == "" {
		path = os.Getenv("DENOISEGRAPH_WEIGHTS_PATH")
	}

	if path == "" {
		t.Skip("no weights file configured; set DENOISEGRAPH_WEIGHTS_PATH to run this test")
	}

	if _, err := os.Stat(path); err != nil {
		t.Skipf("weights file not available at %q: %v", path, err)
	}

	return path
}

// AssertFloat32SliceClose fails the test if got and want differ in length,
// or in any element by more than tol.
func AssertFloat32SliceClose(t *testing.T, got, want []float32, tol float32) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}

	for i := range want {
		if diff := math.Abs(float64(got[i] - want[i])); diff > float64(tol) {
			t.Fatalf("index %d: got %v, want %v (diff %v > tol %v)", i, got[i], want[i], diff, tol)
		}
	}
}

// AssertNoNaNOrInf fails the test if any element of data is NaN or Inf.
func AssertNoNaNOrInf(t *testing.T, data []float32) {
	t.Helper()

	for i, v := range data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			t.Fatalf("index %d is non-finite: %v", i, v)
		}
	}
}
