//go:build arm64 && !noasm

package kernels

import "golang.org/x/sys/cpu"

// CPU feature flags for ARM64
var (
	hasNEON = cpu.ARM64.HasASIMD   // Advanced SIMD (NEON) - always available on ARM64
	hasSDOT = cpu.ARM64.HasASIMDDP // Dot Product instructions (ARMv8.2+)
)

func init() {
	if simdDisabled() {
		return
	}
	if hasNEON || hasSDOT {
		useWideDot()
	}
}
