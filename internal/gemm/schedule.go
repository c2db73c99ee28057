package gemm

// Batch/tile scheduler. A batched call is split into independent
// (batch index, row tile, column tile) units: row tiles are a fixed 128
// rows, column tiles are sized so the tile count per problem roughly
// matches the thread budget estimated from problem complexity. Tiles
// never overlap and edge tiles are clipped, never padded; beyond the
// static sizing there is no load balancing.

const (
	// tileStrideM is the fixed row-tile stride.
	tileStrideM = 128

	// tileStrideNAlign is the granularity column-tile strides are
	// rounded up to, keeping tile edges friendly to vector widths.
	tileStrideNAlign = 16
)

// RunBatch executes batchN GEMM problems sharing shape (m, n, k) and
// quantization shape (blkBitWidth, blkLen) at the requested precision.
//
// workspace must be at least BatchWorkspaceSize bytes for the same
// parameters (it may be nil when that size is zero). pool may be nil to
// force serial execution. The call is synchronous: all tiles complete
// before it returns.
//
// The configuration must have passed IsAvailable; an unresolvable
// variant here is a programming error and panics.
func (e *Engine) RunBatch(m, n, k, batchN, blkBitWidth, blkLen int, compute ComputeType, problems []Problem, workspace []byte, pool WorkPool) {
	variant := ResolveVariant(m, n, k, blkBitWidth, blkLen, compute)
	if variant == VariantInvalid {
		panic("gemm: RunBatch called with unsupported configuration (check IsAvailable first)")
	}
	if batchN == 0 {
		return
	}

	ws := alignWorkspace(workspace, workspaceAlignment(variant))
	stride := perProblemWorkspaceStride(variant, m, n, k, blkLen)

	// Preprocessing completes for the whole batch before any compute
	// begins: every compute tile may read what this pass wrote.
	if variant == VariantInt8 {
		e.prepareQuantA(m, k, batchN, blkLen, problems, ws, stride, pool)
	}

	wsFor := func(i int) []byte {
		if stride == 0 {
			return nil
		}
		return ws[i*stride:]
	}

	if pool == nil {
		for i := 0; i < batchN; i++ {
			e.compute(variant, blkLen, k, &problems[i], wsFor(i), 0, m, 0, n)
		}
		return
	}

	// Thread budget from problem complexity; small requests stay close
	// to single threaded.
	complexity := float64(m) * float64(n) * float64(k) * float64(batchN)
	targetThreads := int(complexity/e.threadComplexity) + 1
	if maxThreads := pool.MaxThreads() * 8; targetThreads > maxThreads {
		targetThreads = maxThreads
	}

	threadsPerGemm := targetThreads / batchN
	if threadsPerGemm < 1 {
		threadsPerGemm = 1
	}

	strideN := chooseStrideN(m, n, threadsPerGemm)

	tilesM := divRoundUp(m, tileStrideM)
	tilesN := divRoundUp(n, strideN)
	tilesPerGemm := tilesM * tilesN

	e.runTiles(variant, blkLen, k, batchN, tilesPerGemm, tilesM, m, n, strideN, problems, wsFor, pool)
}

// chooseStrideN picks the column-tile stride: the full N as one tile
// when a single thread serves the problem, otherwise a stride such that
// rowTiles x colTiles approximates threadsPerGemm, rounded up to
// tileStrideNAlign.
func chooseStrideN(m, n, threadsPerGemm int) int {
	if threadsPerGemm <= 1 || n == 0 {
		if n == 0 {
			return 1
		}
		return n
	}
	blockedM := divRoundUp(m, tileStrideM)
	maxNC := divRoundUp(n*blockedM, threadsPerGemm)
	if maxNC >= n {
		return n
	}
	nc := divRoundUp(maxNC, tileStrideNAlign) * tileStrideNAlign
	if nc > n {
		nc = n
	}
	return nc
}

// tileRange clips tile idx of the given stride to the extent.
func tileRange(extent, stride, idx int) (start, count int) {
	start = idx * stride
	count = min(extent-start, stride)
	return start, count
}

func (e *Engine) runTiles(variant Variant, blkLen, k, batchN, tilesPerGemm, tilesM, m, n, strideN int, problems []Problem, wsFor func(int) []byte, pool WorkPool) {
	pool.ForEach(tilesPerGemm*batchN, func(tid int) {
		gemmIdx := tid / tilesPerGemm
		tileIdx := tid % tilesPerGemm

		tileN := tileIdx / tilesM
		tileM := tileIdx % tilesM

		startM, countM := tileRange(m, tileStrideM, tileM)
		startN, countN := tileRange(n, strideN, tileN)

		e.compute(variant, blkLen, k, &problems[gemmIdx], wsFor(gemmIdx), startM, countM, startN, countN)
	})
}
