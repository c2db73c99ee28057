package gemm

import "github.com/headlands-org/go-qgemm/internal/kernels"

// prepareQuantA runs the int8 preprocessing pass: every problem's M
// rows of dense A are quantized into Q8 blocks in that problem's
// workspace slice. Problems are independent, touch only their own
// slice, and never read another problem's region, so the fan-out is one
// task per batch item with no synchronization beyond the join.
func (e *Engine) prepareQuantA(m, k, batchN, blkLen int, problems []Problem, ws []byte, stride int, pool WorkPool) {
	blockCount := kernels.BlockCount(k, blkLen)
	rowStride := blockCount * kernels.Q8BlkSize(blkLen)

	quantize := func(i int) {
		p := &problems[i]
		dst := ws[i*stride:]
		for mi := 0; mi < m; mi++ {
			e.kern.QuantizeARowInt8(blkLen, p.A[mi*p.LDA:], k, dst[mi*rowStride:])
		}
	}

	if pool == nil {
		for i := 0; i < batchN; i++ {
			quantize(i)
		}
		return
	}
	pool.ForEach(batchN, quantize)
}
