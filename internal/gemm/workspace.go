package gemm

import (
	"unsafe"

	"github.com/headlands-org/go-qgemm/internal/kernels"
)

// Workspace planning. Only VariantInt8 consumes workspace: the
// preprocessor writes each problem's A rows into it as Q8 blocks. The
// caller allocates one contiguous buffer sized by BatchWorkspaceSize
// and the scheduler partitions it into aligned per-problem slices.

// workspaceAlignment returns the required alignment of the workspace
// for a variant.
func workspaceAlignment(v Variant) int {
	if v == VariantInt8 {
		return kernels.Q8BlkAlignment
	}
	return 1
}

// perProblemWorkspaceSize returns the scratch bytes one problem needs.
func perProblemWorkspaceSize(v Variant, m, n, k, blkLen int) int {
	_ = n
	if v != VariantInt8 {
		return 0
	}
	return m * kernels.BlockCount(k, blkLen) * kernels.Q8BlkSize(blkLen)
}

// perProblemWorkspaceStride is the per-problem size rounded up to the
// variant's alignment, so that every problem's slice starts aligned
// once the buffer base is aligned.
func perProblemWorkspaceStride(v Variant, m, n, k, blkLen int) int {
	size := perProblemWorkspaceSize(v, m, n, k, blkLen)
	return divRoundUp(size, workspaceAlignment(v)) * workspaceAlignment(v)
}

// BatchWorkspaceSize returns the total bytes the caller must allocate
// before RunBatch, including slack that guarantees an arbitrary buffer
// base can be aligned upward without overrun. Zero means the
// configuration needs no workspace (or does not resolve).
func BatchWorkspaceSize(m, n, k, batchN, blkBitWidth, blkLen int, compute ComputeType) int {
	v := ResolveVariant(m, n, k, blkBitWidth, blkLen, compute)

	stride := perProblemWorkspaceStride(v, m, n, k, blkLen)
	if stride == 0 {
		return 0
	}
	return batchN*stride + workspaceAlignment(v) - 1
}

// alignWorkspace advances ws to the first offset whose address is a
// multiple of alignment. BatchWorkspaceSize reserves the slack this
// can consume.
func alignWorkspace(ws []byte, alignment int) []byte {
	if len(ws) == 0 || alignment <= 1 {
		return ws
	}
	addr := uintptr(unsafe.Pointer(&ws[0]))
	off := int(-addr & uintptr(alignment-1))
	return ws[off:]
}

func divRoundUp(a, b int) int {
	return (a + b - 1) / b
}
