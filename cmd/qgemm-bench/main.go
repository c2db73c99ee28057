// Command qgemm-bench benchmarks the batched quantized GEMM entry point
// across shapes and compute types.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"runtime"
	"time"

	"github.com/headlands-org/go-qgemm/pkg/qgemm"
)

var (
	flagM       = flag.Int("m", 1, "Rows of A per problem")
	flagN       = flag.Int("n", 4096, "Columns of B per problem")
	flagK       = flag.Int("k", 4096, "Shared inner dimension")
	flagBatch   = flag.Int("batch", 1, "Problems per batched call")
	flagBlkLen  = flag.Int("blklen", 32, "Quantization block length (16/32/64/128/256)")
	flagCompute = flag.String("compute", "fp32", "Compute type: fp32 or int8")
	flagThreads = flag.Int("threads", runtime.GOMAXPROCS(0), "Worker threads (1 = serial)")
	flagIters   = flag.Int("iters", 20, "Timed iterations")
	flagZP      = flag.Bool("zeropoints", false, "Generate per-block zero points")
	flagSeed    = flag.Int64("seed", 1, "RNG seed for operand generation")
)

func main() {
	flag.Parse()

	m, n, k := *flagM, *flagN, *flagK
	batch, blkLen := *flagBatch, *flagBlkLen

	var compute qgemm.ComputeType
	switch *flagCompute {
	case "fp32":
		compute = qgemm.ComputeFp32
	case "int8":
		compute = qgemm.ComputeInt8
	default:
		fmt.Fprintf(os.Stderr, "unknown compute type %q\n", *flagCompute)
		os.Exit(1)
	}

	if !qgemm.IsAvailable(m, n, k, 4, blkLen, compute) {
		log.Fatalf("configuration m=%d blklen=%d compute=%s is not available", m, blkLen, *flagCompute)
	}

	rng := rand.New(rand.NewSource(*flagSeed))
	problems := make([]qgemm.Problem, batch)
	for i := range problems {
		problems[i] = randomProblem(rng, m, n, k, blkLen, *flagZP)
	}
	workspace := make([]byte, qgemm.WorkspaceSize(m, n, k, batch, 4, blkLen, compute))

	pool := qgemm.NewPool(*flagThreads)
	if pool != nil {
		defer pool.Close()
	}

	fmt.Printf("qgemm-bench: m=%d n=%d k=%d batch=%d blklen=%d compute=%s threads=%d kernels=%s\n",
		m, n, k, batch, blkLen, *flagCompute, *flagThreads, qgemm.KernelsName())

	// Warmup
	qgemm.GemmBatch(m, n, k, batch, 4, blkLen, compute, problems, workspace, pool)

	iters := *flagIters
	cpuStart := cpuTimeNow()
	start := time.Now()
	for i := 0; i < iters; i++ {
		qgemm.GemmBatch(m, n, k, batch, 4, blkLen, compute, problems, workspace, pool)
	}
	wall := time.Since(start)
	cpu := cpuTimeNow() - cpuStart

	flops := 2 * float64(m) * float64(n) * float64(k) * float64(batch) * float64(iters)
	fmt.Printf("  wall: %v (%.2f ms/call)\n", wall, float64(wall.Microseconds())/1000/float64(iters))
	fmt.Printf("  throughput: %.2f GFLOP/s\n", flops/wall.Seconds()/1e9)
	if cpu > 0 {
		fmt.Printf("  cpu: %v (utilization %.1fx)\n", cpu, cpu.Seconds()/wall.Seconds())
	}
}

// randomProblem builds one problem with random packed B blocks, random
// scales, and random A.
func randomProblem(rng *rand.Rand, m, n, k, blkLen int, zeroPoints bool) qgemm.Problem {
	blockCount := (k + blkLen - 1) / blkLen

	bData := make([]byte, n*blockCount*blkLen/2)
	rng.Read(bData)

	bScale := make([]float32, n*blockCount)
	for i := range bScale {
		bScale[i] = rng.Float32() * 0.1
	}

	var bZP []byte
	if zeroPoints {
		zpBytes := (blockCount + 1) / 2
		bZP = make([]byte, n*zpBytes)
		rng.Read(bZP)
	}

	a := make([]float32, m*k)
	for i := range a {
		a[i] = rng.Float32()*2 - 1
	}

	return qgemm.Problem{
		A:               a,
		LDA:             k,
		QuantBData:      bData,
		QuantBScale:     bScale,
		QuantBZeroPoint: bZP,
		C:               make([]float32, m*n),
		LDC:             n,
	}
}
