package ops

import "golang.org/x/sys/cpu"

// hasAVX2FMA mirrors the teacher's dot_amd64.go feature probe. HasAVX2FMA
// exposes it for internal/doctor's preflight report; the DotProduct loop
// does not branch on it.
var hasAVX2FMA = cpu.X86.HasAVX2 && cpu.X86.HasFMA

// HasAVX2FMA reports whether the running CPU has both AVX2 and FMA.
func HasAVX2FMA() bool { return hasAVX2FMA }
