package gemm

import "github.com/headlands-org/go-qgemm/internal/kernels"

// Compute strategies. Each computes the output sub-block
// C[startM:startM+countM, startN:startN+countN] of one problem in
// place, reading nothing and writing nothing outside that range.

const (
	// m1ChunkCols is the N-chunk width of the single-row paths; the M1
	// micro-kernels consume packed B directly in chunks this wide.
	m1ChunkCols = 128

	// dequantChunkCols is the N-chunk width of the multi-row fp32 path.
	// Each chunk of B is dequantized once into scratch and then reused
	// across every row of A, amortizing the unpack cost.
	dequantChunkCols = 32
)

// compute dispatches a tile to its variant's strategy.
func (e *Engine) compute(v Variant, blkLen, countK int, p *Problem, quantA []byte, startM, countM, startN, countN int) {
	if countM == 0 || countN == 0 {
		return
	}
	switch v {
	case VariantFp32:
		e.computeFp32(blkLen, countK, p, startM, countM, startN, countN)
	case VariantInt8:
		e.computeInt8(blkLen, countK, p, quantA, startM, countM, startN, countN)
	default:
		panic("gemm: compute called with invalid variant")
	}
}

func (e *Engine) computeFp32(blkLen, countK int, p *Problem, startM, countM, startN, countN int) {
	blockCount := kernels.BlockCount(countK, blkLen)

	a := p.A[startM*p.LDA:]
	bData := kernels.BColumnData(p.QuantBData, startN, blockCount, blkLen)
	bScale := kernels.BColumnScales(p.QuantBScale, startN, blockCount)
	bZP := kernels.BColumnZeroPoints(p.QuantBZeroPoint, startN, blockCount)
	c := p.C[startM*p.LDC+startN:]

	if countM == 1 {
		// Single-row path: consume packed B directly, no dequantized
		// intermediate. This is the hot shape for decode-style M=1
		// workloads.
		for n := 0; n < countN; {
			chunk := min(countN-n, m1ChunkCols)
			e.kern.GemmM1Fp32(blkLen, a[:countK],
				kernels.BColumnData(bData, n, blockCount, blkLen),
				kernels.BColumnScales(bScale, n, blockCount),
				kernels.BColumnZeroPoints(bZP, n, blockCount),
				c[n:], chunk, countK, blockCount)
			n += chunk
		}
		return
	}

	// Multi-row path: dequantize a chunk of B columns, then run the
	// dense kernel over all rows before moving to the next chunk. The
	// scratch is owned by this call (one tile, one task), not shared
	// thread state.
	scratch := make([]float32, blockCount*blkLen*dequantChunkCols)

	for n := 0; n < countN; {
		chunk := min(countN-n, dequantChunkCols)

		e.kern.DequantBFp32(blkLen, scratch,
			kernels.BColumnData(bData, n, blockCount, blkLen),
			kernels.BColumnScales(bScale, n, blockCount),
			kernels.BColumnZeroPoints(bZP, n, blockCount),
			chunk, countK, blockCount)

		// The dense kernel reports how many rows it consumed per call;
		// loop until the full row range is done.
		aRow := a
		cBlk := c[n:]
		remaining := countM
		for remaining > 0 {
			handled := e.kern.GemmFp32(aRow, scratch, cBlk, countK, remaining, chunk, p.LDA, chunk, p.LDC)
			aRow = aRow[handled*p.LDA:]
			cBlk = cBlk[handled*p.LDC:]
			remaining -= handled
		}
		n += chunk
	}
}

func (e *Engine) computeInt8(blkLen, countK int, p *Problem, quantA []byte, startM, countM, startN, countN int) {
	if countM != 1 {
		panic("gemm: int8 strategy invoked with more than one row")
	}

	blockCount := kernels.BlockCount(countK, blkLen)
	lda := blockCount * kernels.Q8BlkSize(blkLen)

	// The A row comes from the preprocessed workspace, not from the
	// problem's dense A.
	aRow := quantA[startM*lda:]
	bData := kernels.BColumnData(p.QuantBData, startN, blockCount, blkLen)
	bScale := kernels.BColumnScales(p.QuantBScale, startN, blockCount)
	bZP := kernels.BColumnZeroPoints(p.QuantBZeroPoint, startN, blockCount)
	c := p.C[startM*p.LDC+startN:]

	for n := 0; n < countN; {
		chunk := min(countN-n, m1ChunkCols)
		e.kern.GemmM1Int8(blkLen, aRow,
			kernels.BColumnData(bData, n, blockCount, blkLen),
			kernels.BColumnScales(bScale, n, blockCount),
			kernels.BColumnZeroPoints(bZP, n, blockCount),
			c[n:], chunk, countK, blockCount)
		n += chunk
	}
}
