package gemm

import "github.com/headlands-org/go-qgemm/internal/kernels"

// ComputeType is the precision requested for the dot products of a
// batched call.
type ComputeType int32

const (
	// ComputeUndef leaves the precision choice to the engine; it
	// resolves identically to ComputeFp32.
	ComputeUndef ComputeType = iota
	ComputeFp32
	ComputeInt8
)

func (c ComputeType) String() string {
	switch c {
	case ComputeUndef:
		return "undef"
	case ComputeFp32:
		return "fp32"
	case ComputeInt8:
		return "int8"
	}
	return "unknown"
}

// Variant is one of the closed set of execution strategies. The zero
// value is VariantInvalid.
type Variant int32

const (
	VariantInvalid Variant = iota

	// VariantFp32: 4-bit B, float32 A, any M.
	VariantFp32

	// VariantInt8: 4-bit B, dynamically int8-quantized A, M == 1 only.
	VariantInt8
)

func (v Variant) String() string {
	switch v {
	case VariantFp32:
		return "width4/fp32"
	case VariantInt8:
		return "width4/int8"
	}
	return "invalid"
}

// ResolveVariant maps a problem shape and requested precision to an
// execution variant, or VariantInvalid for unsupported combinations.
//
// It is resolved once per batched call from the shared shape; all
// problems in the batch are assumed to match. The decision is a pure
// function of (blkBitWidth, blkLen, compute, m); n and k are reserved
// for future variants.
func ResolveVariant(m, n, k, blkBitWidth, blkLen int, compute ComputeType) Variant {
	_ = n
	_ = k

	if blkBitWidth != kernels.BlkBitWidth || !kernels.SupportedBlkLen(blkLen) {
		return VariantInvalid
	}

	switch {
	case compute == ComputeFp32 || compute == ComputeUndef:
		return VariantFp32
	case compute == ComputeInt8 && m == 1:
		return VariantInt8
	}
	return VariantInvalid
}
