// Package qgemm is the public API for batched matrix multiplication
// with block-quantized weights: C = A x B where B is stored as 4-bit
// blocks with per-block scales and optional zero points, and A is
// float32 or dynamically int8-quantized.
//
// Typical use:
//
//	if !qgemm.IsAvailable(m, n, k, 4, blkLen, qgemm.ComputeFp32) {
//		// fall back to a dense path
//	}
//	ws := make([]byte, qgemm.WorkspaceSize(m, n, k, batchN, 4, blkLen, qgemm.ComputeFp32))
//	pool := qgemm.NewPool(runtime.GOMAXPROCS(0))
//	defer pool.Close()
//	qgemm.GemmBatch(m, n, k, batchN, 4, blkLen, qgemm.ComputeFp32, problems, ws, pool)
package qgemm

import (
	"github.com/headlands-org/go-qgemm/internal/gemm"
	"github.com/headlands-org/go-qgemm/internal/pool"
)

// ComputeType selects the dot-product precision of a batched call.
type ComputeType = gemm.ComputeType

const (
	// ComputeUndef resolves identically to ComputeFp32.
	ComputeUndef = gemm.ComputeUndef
	// ComputeFp32 dequantizes B and accumulates in float32; valid for
	// any M.
	ComputeFp32 = gemm.ComputeFp32
	// ComputeInt8 quantizes A on the fly and accumulates in int32;
	// valid only for M == 1.
	ComputeInt8 = gemm.ComputeInt8
)

// Problem describes one GEMM of a batched call. See the field docs on
// the underlying type for buffer layouts.
type Problem = gemm.Problem

// Pool is a worker pool accepted by GemmBatch. A nil Pool runs the
// batch serially.
type Pool interface {
	MaxThreads() int
	ForEach(n int, fn func(i int))
	Close()
}

// NewPool creates a pool with size workers, or returns nil for
// sizes <= 1 (serial execution).
func NewPool(size int) Pool {
	p := pool.New(size)
	if p == nil {
		return nil
	}
	return p
}

var defaultEngine = gemm.NewEngine(nil)

// IsAvailable reports whether the configuration is supported: the
// shape/precision combination resolves to a known variant and the
// micro-kernels that variant needs exist on this platform. Callers must
// check it before GemmBatch.
func IsAvailable(m, n, k, blkBitWidth, blkLen int, compute ComputeType) bool {
	return defaultEngine.IsAvailable(m, n, k, blkBitWidth, blkLen, compute)
}

// WorkspaceSize returns the bytes of scratch the caller must allocate
// for GemmBatch with the same parameters, including alignment slack.
// Zero means no workspace is needed.
func WorkspaceSize(m, n, k, batchN, blkBitWidth, blkLen int, compute ComputeType) int {
	return gemm.BatchWorkspaceSize(m, n, k, batchN, blkBitWidth, blkLen, compute)
}

// GemmBatch computes batchN GEMM problems sharing shape (m, n, k),
// quantization shape, and precision. The call is synchronous; all work
// completes before it returns. The configuration must have passed
// IsAvailable, and workspace must be at least WorkspaceSize bytes.
func GemmBatch(m, n, k, batchN, blkBitWidth, blkLen int, compute ComputeType, problems []Problem, workspace []byte, p Pool) {
	var wp gemm.WorkPool
	if p != nil {
		wp = p
	}
	defaultEngine.RunBatch(m, n, k, batchN, blkBitWidth, blkLen, compute, problems, workspace, wp)
}

// SetThreadComplexity overrides the scheduler's per-thread work
// estimate (multiply-accumulates per thread). The default,
// gemm.DefaultThreadComplexity, is an empirical tuning constant;
// adjust it only with benchmark evidence. Values <= 0 are ignored.
func SetThreadComplexity(c float64) {
	defaultEngine.SetThreadComplexity(c)
}

// KernelsName identifies the micro-kernel set bound for this process.
func KernelsName() string {
	return defaultEngine.Kernels().Name()
}
