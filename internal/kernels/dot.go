package kernels

import "os"

// Inner dot products for the portable kernels. Two variants each: a
// plain scalar loop, and a version split across four independent
// accumulator chains so the compiler can keep more FMA/multiply pipes
// busy on wide cores. The cpu_*.go files pick one pair at init based
// on golang.org/x/sys/cpu feature flags.

var (
	dotF32  func(a, b []float32) float32 = dotF32Scalar
	dotInt8 func(a, b []int8) int32      = dotInt8Scalar
	dotImpl                              = "scalar"
)

// noSimdEnv is the environment variable that pins the scalar inner
// loops regardless of detected CPU features.
const noSimdEnv = "QGEMM_NOSIMD"

func simdDisabled() bool {
	v := os.Getenv(noSimdEnv)
	return v != "" && v != "0"
}

func useWideDot() {
	dotF32 = dotF32Wide
	dotInt8 = dotInt8Wide
	dotImpl = "wide"
}

func dotF32Scalar(a, b []float32) float32 {
	sum := float32(0)
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func dotF32Wide(a, b []float32) float32 {
	var s0, s1, s2, s3 float32
	i := 0
	for ; i+4 <= len(a); i += 4 {
		s0 += a[i] * b[i]
		s1 += a[i+1] * b[i+1]
		s2 += a[i+2] * b[i+2]
		s3 += a[i+3] * b[i+3]
	}
	sum := s0 + s1 + s2 + s3
	for ; i < len(a); i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func dotInt8Scalar(a, b []int8) int32 {
	sum := int32(0)
	for i := range a {
		sum += int32(a[i]) * int32(b[i])
	}
	return sum
}

func dotInt8Wide(a, b []int8) int32 {
	var s0, s1, s2, s3 int32
	i := 0
	for ; i+4 <= len(a); i += 4 {
		s0 += int32(a[i]) * int32(b[i])
		s1 += int32(a[i+1]) * int32(b[i+1])
		s2 += int32(a[i+2]) * int32(b[i+2])
		s3 += int32(a[i+3]) * int32(b[i+3])
	}
	sum := s0 + s1 + s2 + s3
	for ; i < len(a); i++ {
		sum += int32(a[i]) * int32(b[i])
	}
	return sum
}
