package kernels

import "math"

// portable is the pure-Go kernel set. It is always available and serves
// as the reference semantics for every other implementation.
type portable struct{}

func (portable) Name() string {
	return "portable/" + dotImpl
}

func (portable) SupportsFp32() bool { return true }

func (portable) SupportsInt8() bool { return true }

func (portable) GemmM1Fp32(blkLen int, aRow []float32, bData []byte, bScale []float32, bZeroPoint []byte, c []float32, countN, countK, blockCountK int) {
	blkDataSize := BlkDataSize(blkLen)
	ldb := blockCountK * blkDataSize
	zpStride := ZeroPointBytes(blockCountK)

	// Dequantized values for one block at a time. blkLen <= 256.
	var tmp [256]float32

	for n := 0; n < countN; n++ {
		col := bData[n*ldb:]
		scales := bScale[n*blockCountK:]
		var colZP []byte
		if bZeroPoint != nil {
			colZP = bZeroPoint[n*zpStride:]
		}

		sum := float32(0)
		for blk := 0; blk < blockCountK; blk++ {
			kStart := blk * blkLen
			kLen := min(blkLen, countK-kStart)

			zp := ZeroPointAt(colZP, blk)
			blkData := col[blk*blkDataSize:]
			for i := 0; i < kLen; i++ {
				tmp[i] = float32(int32(Nibble(blkData, i)) - zp)
			}

			// Per-block scale hoisted out of the dot product.
			sum += scales[blk] * dotF32(aRow[kStart:kStart+kLen], tmp[:kLen])
		}
		c[n] = sum
	}
}

func (portable) DequantBFp32(blkLen int, dst []float32, bData []byte, bScale []float32, bZeroPoint []byte, countN, countK, blockCountK int) {
	blkDataSize := BlkDataSize(blkLen)
	ldb := blockCountK * blkDataSize
	zpStride := ZeroPointBytes(blockCountK)

	for n := 0; n < countN; n++ {
		col := bData[n*ldb:]
		scales := bScale[n*blockCountK:]
		var colZP []byte
		if bZeroPoint != nil {
			colZP = bZeroPoint[n*zpStride:]
		}

		for blk := 0; blk < blockCountK; blk++ {
			kStart := blk * blkLen
			kLen := min(blkLen, countK-kStart)

			scale := scales[blk]
			zp := ZeroPointAt(colZP, blk)
			blkData := col[blk*blkDataSize:]
			for i := 0; i < kLen; i++ {
				dst[(kStart+i)*countN+n] = scale * float32(int32(Nibble(blkData, i))-zp)
			}
		}
	}
}

// gemmFp32MaxRows bounds the rows handled per GemmFp32 call. Real SIMD
// kernels are register-blocked to a fixed row count and report how many
// rows they consumed; the portable kernel mirrors that contract.
const gemmFp32MaxRows = 4

func (portable) GemmFp32(a, b, c []float32, countK, countM, countN, lda, ldb, ldc int) int {
	rows := min(countM, gemmFp32MaxRows)
	for mi := 0; mi < rows; mi++ {
		aRow := a[mi*lda:]
		cRow := c[mi*ldc : mi*ldc+countN]
		for n := range cRow {
			cRow[n] = 0
		}
		for kk := 0; kk < countK; kk++ {
			av := aRow[kk]
			bRow := b[kk*ldb : kk*ldb+countN]
			for n, bv := range bRow {
				cRow[n] += av * bv
			}
		}
	}
	return rows
}

func (portable) GemmM1Int8(blkLen int, quantA, bData []byte, bScale []float32, bZeroPoint []byte, c []float32, countN, countK, blockCountK int) {
	blkDataSize := BlkDataSize(blkLen)
	ldb := blockCountK * blkDataSize
	zpStride := ZeroPointBytes(blockCountK)
	q8Size := Q8BlkSize(blkLen)

	// Unpacked, zero-point-adjusted B values for one block. The
	// adjusted range is [-15, 15] so int8 holds it.
	var tmp [256]int8

	for n := 0; n < countN; n++ {
		col := bData[n*ldb:]
		scales := bScale[n*blockCountK:]
		var colZP []byte
		if bZeroPoint != nil {
			colZP = bZeroPoint[n*zpStride:]
		}

		sum := float32(0)
		for blk := 0; blk < blockCountK; blk++ {
			aBlk := quantA[blk*q8Size:]
			aScale := Q8BlkScale(aBlk)
			aData := Q8BlkData(aBlk, blkLen)

			kLen := min(blkLen, countK-blk*blkLen)
			zp := ZeroPointAt(colZP, blk)
			blkData := col[blk*blkDataSize:]
			for i := 0; i < kLen; i++ {
				tmp[i] = int8(int32(Nibble(blkData, i)) - zp)
			}

			acc := dotInt8(aData[:kLen], tmp[:kLen])
			sum += float32(acc) * aScale * scales[blk]
		}
		c[n] = sum
	}
}

func (portable) QuantizeARowInt8(blkLen int, aRow []float32, countK int, dst []byte) {
	blkSize := Q8BlkSize(blkLen)
	blocks := BlockCount(countK, blkLen)

	for blk := 0; blk < blocks; blk++ {
		kStart := blk * blkLen
		kLen := min(blkLen, countK-kStart)
		src := aRow[kStart : kStart+kLen]

		absMax := float32(0)
		for _, v := range src {
			if v < 0 {
				v = -v
			}
			if v > absMax {
				absMax = v
			}
		}

		// scale maps [-absMax, absMax] onto [-127, 127]. An all-zero
		// block keeps scale 0 and contributes nothing to any dot
		// product, so no special casing is needed downstream.
		scale := absMax / 127

		out := dst[blk*blkSize : (blk+1)*blkSize]
		PutQ8BlkScale(out, scale)
		qs := out[4:]
		if scale != 0 {
			for i, v := range src {
				q := math.Round(float64(v / scale))
				if q > 127 {
					q = 127
				} else if q < -127 {
					q = -127
				}
				qs[i] = byte(int8(q))
			}
		} else {
			for i := range src {
				qs[i] = 0
			}
		}
		// Zero-pad a partial final block so kernels can run full-width.
		for i := kLen; i < blkLen; i++ {
			qs[i] = 0
		}
	}
}
