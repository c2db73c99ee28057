package gemm

import (
	"math"
	"math/rand"
	"testing"

	"github.com/headlands-org/go-qgemm/internal/pool"
)

func TestTileRangeCoversExtent(t *testing.T) {
	for _, extent := range []int{1, 5, 16, 127, 128, 129, 1000} {
		for _, stride := range []int{1, 16, 100, 128, 2000} {
			tiles := divRoundUp(extent, stride)
			covered := 0
			for idx := 0; idx < tiles; idx++ {
				start, count := tileRange(extent, stride, idx)
				if start != covered {
					t.Fatalf("extent=%d stride=%d tile %d: start %d, want %d", extent, stride, idx, start, covered)
				}
				if count < 1 || count > stride || start+count > extent {
					t.Fatalf("extent=%d stride=%d tile %d: count %d out of range", extent, stride, idx, count)
				}
				covered += count
			}
			if covered != extent {
				t.Fatalf("extent=%d stride=%d: covered %d", extent, stride, covered)
			}
		}
	}
}

func TestChooseStrideN(t *testing.T) {
	// One thread per problem: the whole N is one tile.
	if got := chooseStrideN(4, 100, 1); got != 100 {
		t.Errorf("single thread: stride = %d, want 100", got)
	}
	// Degenerate N.
	if got := chooseStrideN(4, 0, 8); got != 1 {
		t.Errorf("n=0: stride = %d, want 1", got)
	}
	// Multi-threaded strides are multiples of 16 unless clamped to N.
	for _, n := range []int{17, 64, 500, 4096} {
		for _, threads := range []int{2, 4, 32} {
			got := chooseStrideN(1, n, threads)
			if got < 1 || got > n {
				t.Fatalf("n=%d threads=%d: stride %d out of range", n, threads, got)
			}
			if got != n && got%tileStrideNAlign != 0 {
				t.Errorf("n=%d threads=%d: stride %d not aligned to %d", n, threads, got, tileStrideNAlign)
			}
		}
	}
	// More threads never widen the tiles.
	prev := chooseStrideN(1, 4096, 2)
	for _, threads := range []int{4, 8, 16, 64} {
		got := chooseStrideN(1, 4096, threads)
		if got > prev {
			t.Errorf("threads=%d: stride %d grew from %d", threads, got, prev)
		}
		prev = got
	}
}

func TestRunBatchFp32(t *testing.T) {
	const (
		m, n, k = 2, 256, 64
		blkLen  = 64
		batchN  = 2
	)
	e := NewEngine(nil)
	rng := rand.New(rand.NewSource(21))

	bs := []quantB{makeQuantB(rng, n, k, blkLen, true), makeQuantB(rng, n, k, blkLen, false)}
	problems := []Problem{
		makeProblem(rng, m, n, k, bs[0]),
		makeProblem(rng, m, n, k, bs[1]),
	}

	p := pool.New(4)
	defer p.Close()
	e.RunBatch(m, n, k, batchN, 4, blkLen, ComputeFp32, problems, nil, p)

	for i, prob := range problems {
		want := refGemm(prob, bs[i], m, n, k)
		for j := range want {
			tol := 1e-3 * (math.Abs(float64(want[j])) + 1)
			if diff := math.Abs(float64(prob.C[j] - want[j])); diff > tol {
				t.Errorf("problem %d: C[%d] = %v, want %v", i, j, prob.C[j], want[j])
			}
		}
	}
}

func TestRunBatchInt8(t *testing.T) {
	const (
		n, k   = 300, 96
		blkLen = 32
		batchN = 3
	)
	e := NewEngine(nil)
	rng := rand.New(rand.NewSource(22))

	bs := make([]quantB, batchN)
	problems := make([]Problem, batchN)
	refs := make([]Problem, batchN)
	for i := range problems {
		bs[i] = makeQuantB(rng, n, k, blkLen, i%2 == 0)
		problems[i] = makeProblem(rng, 1, n, k, bs[i])
		refs[i] = problems[i]
		refs[i].C = make([]float32, n)
	}

	ws := make([]byte, BatchWorkspaceSize(1, n, k, batchN, 4, blkLen, ComputeInt8))
	e.RunBatch(1, n, k, batchN, 4, blkLen, ComputeInt8, problems, ws, nil)
	e.RunBatch(1, n, k, batchN, 4, blkLen, ComputeFp32, refs, nil, nil)

	for i := range problems {
		for j := range problems[i].C {
			got, want := problems[i].C[j], refs[i].C[j]
			diff := math.Abs(float64(got - want))
			limit := 0.05*math.Abs(float64(want)) + 0.05
			if diff > limit {
				t.Errorf("problem %d: C[%d] = %v, fp32 %v (diff %v > %v)", i, j, got, want, diff, limit)
			}
		}
	}
}

func TestRunBatchSerialAndPooledIdentical(t *testing.T) {
	// Per output element the summation order is fixed by the strategy,
	// not by the tiling, so a heavily tiled pooled run must match the
	// serial run bit for bit.
	const (
		m, n, k = 5, 333, 160
		blkLen  = 32
		batchN  = 2
	)
	rng := rand.New(rand.NewSource(23))

	bs := []quantB{makeQuantB(rng, n, k, blkLen, true), makeQuantB(rng, n, k, blkLen, false)}
	serial := []Problem{makeProblem(rng, m, n, k, bs[0]), makeProblem(rng, m, n, k, bs[1])}
	pooled := make([]Problem, batchN)
	for i := range pooled {
		pooled[i] = serial[i]
		pooled[i].C = make([]float32, m*n)
	}

	e := NewEngine(nil)
	e.RunBatch(m, n, k, batchN, 4, blkLen, ComputeFp32, serial, nil, nil)

	// Force maximal fan-out so tiles are as small as they get.
	et := NewEngine(nil)
	et.SetThreadComplexity(1)
	p := pool.New(4)
	defer p.Close()
	et.RunBatch(m, n, k, batchN, 4, blkLen, ComputeFp32, pooled, nil, p)

	for i := range serial {
		for j := range serial[i].C {
			if serial[i].C[j] != pooled[i].C[j] {
				t.Fatalf("problem %d: C[%d] serial %v != pooled %v", i, j, serial[i].C[j], pooled[i].C[j])
			}
		}
	}
}

func TestRunBatchMatchesIndependentRuns(t *testing.T) {
	// A batched serial call must equal running each problem on its own,
	// bit for bit.
	const (
		m, n, k = 2, 256, 64
		blkLen  = 64
		batchN  = 2
	)
	e := NewEngine(nil)
	rng := rand.New(rand.NewSource(25))

	bs := []quantB{makeQuantB(rng, n, k, blkLen, true), makeQuantB(rng, n, k, blkLen, false)}
	batched := []Problem{makeProblem(rng, m, n, k, bs[0]), makeProblem(rng, m, n, k, bs[1])}
	single := make([]Problem, batchN)
	for i := range single {
		single[i] = batched[i]
		single[i].C = make([]float32, m*n)
	}

	e.RunBatch(m, n, k, batchN, 4, blkLen, ComputeFp32, batched, nil, nil)
	for i := range single {
		e.RunBatch(m, n, k, 1, 4, blkLen, ComputeFp32, single[i:i+1], nil, nil)
	}

	for i := range batched {
		for j := range batched[i].C {
			if batched[i].C[j] != single[i].C[j] {
				t.Fatalf("problem %d: C[%d] batched %v != independent %v", i, j, batched[i].C[j], single[i].C[j])
			}
		}
	}
}

func TestRunBatchOverwritesOutput(t *testing.T) {
	// C is written, not accumulated: running twice gives the same
	// result.
	const (
		m, n, k = 2, 32, 64
		blkLen  = 32
	)
	e := NewEngine(nil)
	rng := rand.New(rand.NewSource(24))

	b := makeQuantB(rng, n, k, blkLen, true)
	problems := []Problem{makeProblem(rng, m, n, k, b)}

	e.RunBatch(m, n, k, 1, 4, blkLen, ComputeFp32, problems, nil, nil)
	first := make([]float32, len(problems[0].C))
	copy(first, problems[0].C)

	e.RunBatch(m, n, k, 1, 4, blkLen, ComputeFp32, problems, nil, nil)
	for i := range first {
		if problems[0].C[i] != first[i] {
			t.Fatalf("C[%d] changed on rerun: %v -> %v", i, first[i], problems[0].C[i])
		}
	}
}

func TestRunBatchEmptyBatch(t *testing.T) {
	e := NewEngine(nil)
	e.RunBatch(4, 16, 32, 0, 4, 32, ComputeFp32, nil, nil, nil)
}

func TestRunBatchPanicsOnInvalidConfig(t *testing.T) {
	e := NewEngine(nil)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unresolvable configuration")
		}
	}()
	// Int8 with M > 1 does not resolve.
	e.RunBatch(2, 16, 32, 1, 4, 32, ComputeInt8, make([]Problem, 1), nil, nil)
}
