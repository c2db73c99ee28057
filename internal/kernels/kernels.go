package kernels

// Kernels is the contract between the GEMM engine and a hardware
// target's micro-kernels. One implementation exists per supported
// target; the engine binds one at construction time and never consults
// global dispatch state afterwards.
//
// Shared call conventions:
//   - bData/bScale/bZeroPoint address one or more columns of the packed
//     4-bit B operand, already offset to the first column of interest
//     (see the BColumn* accessors). bZeroPoint may be nil.
//   - blockCountK is BlockCount(countK, blkLen); it doubles as the
//     per-column stride of bScale.
//   - Kernels write every element of the output range they are given
//     and nothing outside it.
type Kernels interface {
	// Name identifies the implementation for diagnostics.
	Name() string

	// SupportsFp32 reports whether the fp32 kernels (GemmM1Fp32,
	// DequantBFp32, GemmFp32) are implemented on this target.
	SupportsFp32() bool

	// SupportsInt8 reports whether the int8 kernels (GemmM1Int8,
	// QuantizeARowInt8) are implemented on this target.
	SupportsInt8() bool

	// GemmM1Fp32 computes one row of output directly from packed B:
	// c[n] = dot(aRow[:countK], dequant(column n)) for n < countN.
	GemmM1Fp32(blkLen int, aRow []float32, bData []byte, bScale []float32, bZeroPoint []byte, c []float32, countN, countK, blockCountK int)

	// DequantBFp32 expands countN columns of packed B into dst as a
	// dense row-major [countK x countN] matrix (row stride countN).
	DequantBFp32(blkLen int, dst []float32, bData []byte, bScale []float32, bZeroPoint []byte, countN, countK, blockCountK int)

	// GemmFp32 is the dense kernel used after DequantBFp32. It computes
	// up to countM rows of c = a x b, where a is [countM x countK] with
	// row stride lda, b is [countK x countN] with row stride ldb, and c
	// has row stride ldc. It returns the number of rows actually
	// handled, which may be fewer than countM; callers loop until the
	// full row range is consumed.
	GemmFp32(a, b, c []float32, countK, countM, countN, lda, ldb, ldc int) int

	// GemmM1Int8 is the int8 analogue of GemmM1Fp32: quantA holds
	// blockCountK Q8 blocks of the single A row.
	GemmM1Int8(blkLen int, quantA, bData []byte, bScale []float32, bZeroPoint []byte, c []float32, countN, countK, blockCountK int)

	// QuantizeARowInt8 quantizes countK values of aRow into
	// BlockCount(countK, blkLen) Q8 blocks at dst, zero-padding the
	// tail of a partial final block.
	QuantizeARowInt8(blkLen int, aRow []float32, countK int, dst []byte)
}

// Detect returns the kernel set bound for this process. The portable
// implementation covers every target; per-CPU tuning (accumulator
// fan-out for the inner dot products) is selected once at init from
// golang.org/x/sys/cpu feature flags.
func Detect() Kernels {
	return portable{}
}
