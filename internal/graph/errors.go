package graph

import "errors"

// ErrUnsupported describes an op whose shapes or types cannot be executed by
// the bound Engine. IsSupported includes it in the reason it reports for each
// such op; no function returns it as an error. Non-fatal: callers may retry
// with a different tile size or fall back, as spec.md §7 describes.
var ErrUnsupported = errors.New("graph: unsupported configuration")

// ErrMisconfigured is wrapped and returned for precondition violations: an
// op referencing a source from another graph, adding an op after Finalize,
// running before Finalize, a scratch buffer too small for SetScratch. Fails
// fast rather than panicking, mirroring the teacher's tensor.New returning
// an error instead of crashing on a length mismatch.
var ErrMisconfigured = errors.New("graph: misconfigured")

// ErrCancelled is returned distinctly from Run when the Progress sink
// requests cancellation, so callers can tell a clean stop from a kernel
// failure.
var ErrCancelled = errors.New("graph: run cancelled")
