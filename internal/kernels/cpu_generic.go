//go:build (!amd64 && !arm64) || noasm

package kernels

// No tuned inner loops on this platform; the scalar dot products stay
// bound.
var (
	hasAVX2   = false
	hasAVX512 = false
)
