package testutil_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/example/denoisegraph/internal/testutil"
)

func TestRequireWeightsFileSkipsWhenAbsent(t *testing.T) {
	t.Setenv("DENOISEGRAPH_WEIGHTS_PATH", "")

	if !captureSkip(func(tb testing.TB) { testutil.RequireWeightsFile(tb, "") }) {
		t.Error("expected RequireWeightsFile to skip when no path is configured")
	}
}

func TestRequireWeightsFileSkipsWhenMissing(t *testing.T) {
	if !captureSkip(func(tb testing.TB) {
		testutil.RequireWeightsFile(tb, filepath.Join(t.TempDir(), "missing.safetensors"))
	}) {
		t.Error("expected RequireWeightsFile to skip when the file does not exist")
	}
}

func TestRequireWeightsFileReturnsPathWhenPresent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.safetensors")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got := testutil.RequireWeightsFile(t, path)
	if got != path {
		t.Errorf("RequireWeightsFile = %q, want %q", got, path)
	}
}

func TestAssertFloat32SliceClose(t *testing.T) {
	testutil.AssertFloat32SliceClose(t, []float32{1.0001, 2}, []float32{1, 2}, 0.001)
}

func TestAssertNoNaNOrInf(t *testing.T) {
	testutil.AssertNoNaNOrInf(t, []float32{1, 2, 3})
}

// captureSkip runs fn in a fresh goroutine with a stub TB and returns true if
// the function called Skip/Skipf. Because the real testing.T.Skipf calls
// runtime.Goexit(), we run fn in an isolated goroutine so Goexit only
// terminates that goroutine and does not propagate to the parent test.
func captureSkip(fn func(testing.TB)) (skipped bool) {
	stub := &stubTB{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(stub)
	}()
	<-done
	return stub.skipped
}

// stubTB is a minimal testing.TB that records Skip calls and terminates the
// calling goroutine (via runtime.Goexit) exactly as the real testing.T does.
type stubTB struct {
	testing.TB // intentionally nil — only Skip/Helper methods are called
	skipped    bool
}

func (s *stubTB) Helper()                 {}
func (s *stubTB) Log(_ ...any)            {}
func (s *stubTB) Logf(_ string, _ ...any) {}

func (s *stubTB) Skip(_ ...any) {
	s.skipped = true
	runtime.Goexit()
}

func (s *stubTB) Skipf(_ string, _ ...any) {
	s.skipped = true
	runtime.Goexit()
}

func (s *stubTB) SkipNow() {
	s.skipped = true
	runtime.Goexit()
}
