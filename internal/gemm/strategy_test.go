package gemm

import (
	"math"
	"math/rand"
	"testing"

	"github.com/headlands-org/go-qgemm/internal/kernels"
)

func TestComputeFp32ZeroOperand(t *testing.T) {
	// Every B nibble equal to the zero point decodes to 0, so C must be
	// exactly zero regardless of A. Checked with explicit zero points
	// and with the implicit default of 8.
	const (
		m, n, k = 1, 4, 32
		blkLen  = 32
	)
	e := NewEngine(nil)
	rng := rand.New(rand.NewSource(1))

	for _, explicitZP := range []bool{true, false} {
		b := quantB{
			data:   make([]byte, n*kernels.BlkDataSize(blkLen)),
			scales: []float32{1, 1, 1, 1},
			dense:  make([]float32, k*n),
		}
		for col := 0; col < n; col++ {
			for i := 0; i < k; i++ {
				kernels.PutNibble(b.data[col*kernels.BlkDataSize(blkLen):], i, kernels.DefaultZeroPoint)
			}
		}
		if explicitZP {
			b.zp = make([]byte, n*kernels.ZeroPointBytes(1))
			for col := 0; col < n; col++ {
				kernels.PutNibble(b.zp[col*kernels.ZeroPointBytes(1):], 0, kernels.DefaultZeroPoint)
			}
		}

		p := makeProblem(rng, m, n, k, b)
		e.compute(VariantFp32, blkLen, k, &p, nil, 0, m, 0, n)

		for i, got := range p.C {
			if got != 0 {
				t.Errorf("explicitZP=%v: C[%d] = %v, want 0", explicitZP, i, got)
			}
		}
	}
}

func TestComputeFp32MatchesReference(t *testing.T) {
	e := NewEngine(nil)
	rng := rand.New(rand.NewSource(2))

	cases := []struct {
		m, n, k, blkLen int
		withZP          bool
	}{
		{1, 9, 80, 32, true},     // single-row path, partial tail block
		{3, 40, 64, 16, true},    // multi-row path across two dequant chunks
		{5, 33, 100, 32, false},  // symmetric, ragged N
		{2, 256, 64, 64, true},   // N beyond one M1 chunk
		{4, 7, 300, 256, false},  // two 256-blocks, second partial
	}
	for _, tc := range cases {
		b := makeQuantB(rng, tc.n, tc.k, tc.blkLen, tc.withZP)
		p := makeProblem(rng, tc.m, tc.n, tc.k, b)
		e.compute(VariantFp32, tc.blkLen, tc.k, &p, nil, 0, tc.m, 0, tc.n)

		want := refGemm(p, b, tc.m, tc.n, tc.k)
		for i := range want {
			tol := 1e-3 * (math.Abs(float64(want[i])) + 1)
			if diff := math.Abs(float64(p.C[i] - want[i])); diff > tol {
				t.Errorf("m=%d n=%d k=%d blkLen=%d: C[%d] = %v, want %v",
					tc.m, tc.n, tc.k, tc.blkLen, i, p.C[i], want[i])
			}
		}
	}
}

func TestComputeFp32SubtileAddressing(t *testing.T) {
	// Computing the output as one full tile and as a grid of subtiles
	// must produce bit-identical results: each output element's
	// summation order does not depend on the tiling.
	const (
		m, n, k = 6, 50, 96
		blkLen  = 32
	)
	e := NewEngine(nil)
	rng := rand.New(rand.NewSource(3))

	b := makeQuantB(rng, n, k, blkLen, true)
	full := makeProblem(rng, m, n, k, b)
	e.compute(VariantFp32, blkLen, k, &full, nil, 0, m, 0, n)

	tiled := full
	tiled.C = make([]float32, m*n)
	for startM := 0; startM < m; startM += 2 {
		for startN := 0; startN < n; startN += 17 {
			e.compute(VariantFp32, blkLen, k, &tiled, nil,
				startM, min(2, m-startM), startN, min(17, n-startN))
		}
	}

	for i := range full.C {
		if tiled.C[i] != full.C[i] {
			t.Fatalf("C[%d]: tiled %v != full %v", i, tiled.C[i], full.C[i])
		}
	}
}

func TestComputeInt8MatchesFp32(t *testing.T) {
	const (
		n, k   = 200, 128
		blkLen = 32
	)
	e := NewEngine(nil)
	rng := rand.New(rand.NewSource(4))

	b := makeQuantB(rng, n, k, blkLen, false)
	p := makeProblem(rng, 1, n, k, b)

	stride := perProblemWorkspaceStride(VariantInt8, 1, n, k, blkLen)
	ws := alignWorkspace(make([]byte, stride+kernels.Q8BlkAlignment-1), kernels.Q8BlkAlignment)
	e.prepareQuantA(1, k, 1, blkLen, []Problem{p}, ws, stride, nil)
	e.compute(VariantInt8, blkLen, k, &p, ws, 0, 1, 0, n)

	ref := makeProblem(rng, 1, n, k, b)
	ref.A = p.A
	e.compute(VariantFp32, blkLen, k, &ref, nil, 0, 1, 0, n)

	for i := range p.C {
		diff := math.Abs(float64(p.C[i] - ref.C[i]))
		limit := 0.05*math.Abs(float64(ref.C[i])) + 0.05
		if diff > limit {
			t.Errorf("C[%d]: int8 %v vs fp32 %v (diff %v > %v)", i, p.C[i], ref.C[i], diff, limit)
		}
	}
}

func TestComputeInt8RejectsMultiRow(t *testing.T) {
	e := NewEngine(nil)
	rng := rand.New(rand.NewSource(5))
	b := makeQuantB(rng, 4, 32, 32, false)
	p := makeProblem(rng, 2, 4, 32, b)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for int8 with countM > 1")
		}
	}()
	e.compute(VariantInt8, 32, 32, &p, make([]byte, 1024), 0, 2, 0, 4)
}
