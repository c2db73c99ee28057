// Package adapter provides loading and format validation for adapter
// parameter files: small binary containers of named tensors (dense or
// 4-bit block-quantized) layered on top of a base model. The package is
// a standalone I/O utility; it does not participate in GEMM execution
// beyond producing buffers in the layouts the engine consumes.
package adapter

import (
	"encoding/binary"
	"fmt"

	"github.com/headlands-org/go-qgemm/internal/kernels"
)

// Adapter file format constants
const (
	Magic   = 0x50444151 // "QADP" in little-endian
	Version = 1

	// dataAlign is the alignment of the data section and of every
	// parameter payload within it.
	dataAlign = 64

	headerSize = 24

	// maxDims bounds the rank of a parameter; anything larger is a
	// corrupt directory.
	maxDims = 8
)

// DType is the element type of a parameter.
type DType uint32

const (
	DTypeF32 DType = 0
	DTypeF16 DType = 1
	DTypeI8  DType = 2
	DTypeQ4  DType = 3
)

func (d DType) String() string {
	switch d {
	case DTypeF32:
		return "F32"
	case DTypeF16:
		return "F16"
	case DTypeI8:
		return "I8"
	case DTypeQ4:
		return "Q4"
	}
	return fmt.Sprintf("unknown(%d)", uint32(d))
}

// Param flags
const (
	// FlagHasZeroPoints marks a Q4 parameter whose payload carries
	// packed per-block zero points after the scales.
	FlagHasZeroPoints = 1 << 0
)

// Param describes one named tensor in an adapter file.
type Param struct {
	Name   string
	DType  DType
	Flags  uint32
	BlkLen int   // Q4 only, else 0
	Shape  []int
	Offset int64 // relative to the data section
	Size   int64
}

// HasZeroPoints reports whether a Q4 parameter carries zero points.
func (p *Param) HasZeroPoints() bool {
	return p.Flags&FlagHasZeroPoints != 0
}

func (p *Param) elemCount() int64 {
	n := int64(1)
	for _, d := range p.Shape {
		n *= int64(d)
	}
	return n
}

// expectedSize returns the payload size the directory entry must
// declare for its dtype and shape, or an error for malformed entries.
//
// Q4 parameters are [N, K] with the column-major block layout the GEMM
// engine consumes: N*blockCount packed blocks, then N*blockCount
// float32 scales, then (with FlagHasZeroPoints) N columns of packed
// zero points.
func (p *Param) expectedSize() (int64, error) {
	switch p.DType {
	case DTypeF32:
		return p.elemCount() * 4, nil
	case DTypeF16:
		return p.elemCount() * 2, nil
	case DTypeI8:
		return p.elemCount(), nil
	case DTypeQ4:
		if len(p.Shape) != 2 {
			return 0, fmt.Errorf("Q4 parameter must be 2-dimensional, got %d dims", len(p.Shape))
		}
		if !kernels.SupportedBlkLen(p.BlkLen) {
			return 0, fmt.Errorf("unsupported Q4 block length %d", p.BlkLen)
		}
		n, k := int64(p.Shape[0]), int64(p.Shape[1])
		bc := int64(kernels.BlockCount(int(k), p.BlkLen))
		size := n*bc*int64(kernels.BlkDataSize(p.BlkLen)) + n*bc*4
		if p.HasZeroPoints() {
			size += n * int64(kernels.ZeroPointBytes(int(bc)))
		}
		return size, nil
	}
	return 0, fmt.Errorf("unknown dtype %d", uint32(p.DType))
}

func blockCountOf(p *Param) int {
	return kernels.BlockCount(p.Shape[1], p.BlkLen)
}

func blkDataSizeOf(p *Param) int {
	return kernels.BlkDataSize(p.BlkLen)
}

var byteOrder = binary.LittleEndian

func alignUp(v int64, align int64) int64 {
	return (v + align - 1) / align * align
}
