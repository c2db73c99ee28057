//go:build amd64 && !noasm

package kernels

import "golang.org/x/sys/cpu"

// CPU feature flags for x86-64
var (
	hasAVX2   = cpu.X86.HasAVX2
	hasAVX512 = cpu.X86.HasAVX512F
)

func init() {
	// AVX2-class cores have the FMA throughput to benefit from the
	// split-accumulator inner loops; older cores do better with the
	// simple scalar chain.
	if simdDisabled() {
		return
	}
	if hasAVX2 || hasAVX512 {
		useWideDot()
	}
}
