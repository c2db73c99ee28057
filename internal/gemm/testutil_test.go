package gemm

import (
	"math/rand"

	"github.com/headlands-org/go-qgemm/internal/kernels"
)

// quantB is a randomly generated packed B operand plus the dense
// reference values it decodes to.
type quantB struct {
	data   []byte
	scales []float32
	zp     []byte
	dense  []float32 // [k x n] row-major reference
}

// makeQuantB builds n columns of packed 4-bit blocks with random
// values, scales, and (optionally) zero points.
func makeQuantB(rng *rand.Rand, n, k, blkLen int, withZP bool) quantB {
	blockCount := kernels.BlockCount(k, blkLen)
	colBytes := blockCount * kernels.BlkDataSize(blkLen)
	zpBytes := kernels.ZeroPointBytes(blockCount)

	b := quantB{
		data:   make([]byte, n*colBytes),
		scales: make([]float32, n*blockCount),
		dense:  make([]float32, k*n),
	}
	if withZP {
		b.zp = make([]byte, n*zpBytes)
	}

	for col := 0; col < n; col++ {
		for blk := 0; blk < blockCount; blk++ {
			b.scales[col*blockCount+blk] = rng.Float32() + 0.01
			if withZP {
				kernels.PutNibble(b.zp[col*zpBytes:], blk, uint8(rng.Intn(16)))
			}
		}
		for i := 0; i < k; i++ {
			v := uint8(rng.Intn(16))
			kernels.PutNibble(b.data[col*colBytes:], i, v)

			blk := i / blkLen
			zp := int32(kernels.DefaultZeroPoint)
			if withZP {
				zp = kernels.ZeroPointAt(b.zp[col*zpBytes:], blk)
			}
			b.dense[i*n+col] = float32(int32(v)-zp) * b.scales[col*blockCount+blk]
		}
	}
	return b
}

// makeProblem pairs a fresh random A and zeroed C with b.
func makeProblem(rng *rand.Rand, m, n, k int, b quantB) Problem {
	a := make([]float32, m*k)
	for i := range a {
		a[i] = rng.Float32()*2 - 1
	}
	return Problem{
		A:               a,
		LDA:             k,
		QuantBData:      b.data,
		QuantBScale:     b.scales,
		QuantBZeroPoint: b.zp,
		C:               make([]float32, m*n),
		LDC:             n,
	}
}

// refGemm computes the dense reference product of p.A against b.dense.
func refGemm(p Problem, b quantB, m, n, k int) []float32 {
	c := make([]float32, m*n)
	for mi := 0; mi < m; mi++ {
		for col := 0; col < n; col++ {
			sum := float32(0)
			for kk := 0; kk < k; kk++ {
				sum += p.A[mi*p.LDA+kk] * b.dense[kk*n+col]
			}
			c[mi*n+col] = sum
		}
	}
	return c
}
