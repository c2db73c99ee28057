// Package kernels provides the micro-kernel layer for block-quantized GEMM:
// the packed block formats, the per-column addressing helpers, and the
// portable kernel implementations behind the Kernels interface.
package kernels

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// 4-bit weight blocks. Each block covers blkLen consecutive K-dimension
// elements of one output column and shares a single float32 scale and,
// optionally, a 4-bit zero point. Two 4-bit values are packed per byte,
// low nibble first.

// BlkBitWidth is the only supported quantization bit width.
const BlkBitWidth = 4

// DefaultZeroPoint is the implicit zero point when a tensor carries no
// per-block zero points (symmetric quantization, mid-range of [0, 15]).
const DefaultZeroPoint = 8

// SupportedBlkLen reports whether blkLen is a supported block length.
func SupportedBlkLen(blkLen int) bool {
	switch blkLen {
	case 16, 32, 64, 128, 256:
		return true
	}
	return false
}

// BlockCount returns the number of blocks spanning a K dimension of countK.
func BlockCount(countK, blkLen int) int {
	return (countK + blkLen - 1) / blkLen
}

// BlkDataSize returns the packed byte size of one 4-bit block.
func BlkDataSize(blkLen int) int {
	return blkLen / 2
}

// ZeroPointBytes returns the packed byte size of blockCount 4-bit zero
// points. Zero points are packed two per byte, low nibble first.
func ZeroPointBytes(blockCount int) int {
	return (blockCount + 1) / 2
}

// Nibble extracts the i-th 4-bit value from packed data.
func Nibble(data []byte, i int) uint8 {
	b := data[i>>1]
	if i&1 == 0 {
		return b & 0x0F
	}
	return b >> 4
}

// PutNibble stores a 4-bit value at index i in packed data. v must be < 16.
func PutNibble(data []byte, i int, v uint8) {
	if i&1 == 0 {
		data[i>>1] = data[i>>1]&0xF0 | v
	} else {
		data[i>>1] = data[i>>1]&0x0F | v<<4
	}
}

// Per-column addressing. B data, scales, and zero points are laid out
// column-major over N: column n owns blockCount consecutive blocks of
// data, blockCount scales, and ZeroPointBytes(blockCount) zero-point
// bytes. Getting these strides wrong corrupts results silently, so all
// strategy code goes through these accessors.

// BColumnData returns the packed block data starting at column col.
func BColumnData(data []byte, col, blockCount, blkLen int) []byte {
	return data[col*blockCount*BlkDataSize(blkLen):]
}

// BColumnScales returns the per-block scales starting at column col.
func BColumnScales(scales []float32, col, blockCount int) []float32 {
	return scales[col*blockCount:]
}

// BColumnZeroPoints returns the packed zero points starting at column
// col, or nil if the tensor has no zero points.
func BColumnZeroPoints(zeroPoints []byte, col, blockCount int) []byte {
	if zeroPoints == nil {
		return nil
	}
	return zeroPoints[col*ZeroPointBytes(blockCount):]
}

// ZeroPointAt returns the zero point of block blk within one column's
// packed zero-point bytes, or DefaultZeroPoint if colZP is nil.
func ZeroPointAt(colZP []byte, blk int) int32 {
	if colZP == nil {
		return DefaultZeroPoint
	}
	return int32(Nibble(colZP, blk))
}

// Int8-quantized A blocks ("Q8 blocks"): a float32 scale followed by
// blkLen int8 values. The A-operand preprocessor writes these into the
// caller's workspace; the int8 compute strategy reads them back.

// Q8BlkAlignment is the required alignment of a Q8 block in the
// workspace, sized to the preferred vector width for int8 loads.
const Q8BlkAlignment = 16

// Q8BlkSize returns the byte footprint of one Q8 block.
func Q8BlkSize(blkLen int) int {
	return 4 + blkLen
}

// Q8BlkScale reads the scale of a Q8 block.
func Q8BlkScale(blk []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(blk))
}

// PutQ8BlkScale writes the scale of a Q8 block.
func PutQ8BlkScale(blk []byte, scale float32) {
	binary.LittleEndian.PutUint32(blk, math.Float32bits(scale))
}

// Q8BlkData returns the quantized values of a Q8 block as int8.
func Q8BlkData(blk []byte, blkLen int) []int8 {
	return unsafe.Slice((*int8)(unsafe.Pointer(&blk[4])), blkLen)
}
