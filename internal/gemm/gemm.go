// Package gemm implements the batched block-quantized GEMM engine:
// variant resolution, workspace planning, the A-operand preprocessing
// pass, the per-variant compute strategies, and the batch/tile
// scheduler that fans work out over a worker pool.
package gemm

import "github.com/headlands-org/go-qgemm/internal/kernels"

// Problem describes one GEMM of a batched call: C = A x B with B stored
// as packed 4-bit blocks. All problems of one batch share M, N, K, the
// quantization shape, and the compute type; only the buffers differ.
type Problem struct {
	// A is the dense left operand, row-major with row stride LDA. Only
	// the leading K elements of each of the M rows are read.
	A   []float32
	LDA int

	// QuantBData holds N columns of packed 4-bit blocks, each column
	// BlockCount(K, blkLen) blocks long.
	QuantBData []byte

	// QuantBScale holds one float32 scale per (column, block) pair,
	// column-major: column n's scales start at n*blockCount.
	QuantBScale []float32

	// QuantBZeroPoint holds packed 4-bit zero points with the same
	// column-major layout, or nil for symmetric quantization (implicit
	// zero point 8).
	QuantBZeroPoint []byte

	// C is the output, row-major with row stride LDC.
	C   []float32
	LDC int
}

// WorkPool abstracts the thread pool the scheduler fans out on. A nil
// WorkPool runs the batch serially. ForEach must not return until every
// unit has completed.
type WorkPool interface {
	MaxThreads() int
	ForEach(n int, fn func(i int))
}

// DefaultThreadComplexity is the per-thread work estimate used to size
// the parallel fan-out: the scheduler targets roughly one thread per
// DefaultThreadComplexity multiply-accumulates. The value is an
// empirical tuning constant, not a derived quantity; override it with
// Engine.SetThreadComplexity when profiling says otherwise.
const DefaultThreadComplexity = 65536

// Engine executes batched block-quantized GEMMs against one bound
// micro-kernel set. Engines are stateless across calls and safe for
// concurrent use.
type Engine struct {
	kern             kernels.Kernels
	threadComplexity float64
}

// NewEngine binds an engine to the given kernel set, or to the set
// detected for this CPU when k is nil.
func NewEngine(k kernels.Kernels) *Engine {
	if k == nil {
		k = kernels.Detect()
	}
	return &Engine{kern: k, threadComplexity: DefaultThreadComplexity}
}

// SetThreadComplexity overrides the per-thread work estimate used by
// the scheduler. Values <= 0 are ignored.
func (e *Engine) SetThreadComplexity(c float64) {
	if c > 0 {
		e.threadComplexity = c
	}
}

// Kernels returns the bound micro-kernel set.
func (e *Engine) Kernels() kernels.Kernels {
	return e.kern
}

// IsAvailable reports whether the given configuration resolves to a
// variant whose micro-kernels the bound set implements. Callers must
// check this before RunBatch: the compute path treats an unsupported
// configuration as a contract violation, not a recoverable error.
func (e *Engine) IsAvailable(m, n, k, blkBitWidth, blkLen int, compute ComputeType) bool {
	switch ResolveVariant(m, n, k, blkBitWidth, blkLen, compute) {
	case VariantFp32:
		return e.kern.SupportsFp32()
	case VariantInt8:
		return e.kern.SupportsInt8()
	}
	return false
}
