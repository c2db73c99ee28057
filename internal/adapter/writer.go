package adapter

import (
	"fmt"
	"os"

	"golang.org/x/text/unicode/norm"
)

// ParamSpec describes one parameter to write into an adapter file.
type ParamSpec struct {
	Name   string
	DType  DType
	Flags  uint32
	BlkLen int // Q4 only
	Shape  []int
	Data   []byte
}

// WriteFile writes an adapter file containing the given parameters.
// Specs are validated with the same rules the reader enforces, so a
// successful write always round-trips through Load.
func WriteFile(path string, specs []ParamSpec) error {
	type placed struct {
		p       Param
		data    []byte
		nameRaw []byte
	}

	seen := make(map[string]bool, len(specs))
	entries := make([]placed, 0, len(specs))

	dirSize := int64(0)
	dataSize := int64(0)
	for _, s := range specs {
		name := norm.NFC.String(s.Name)
		if name == "" {
			return fmt.Errorf("write adapter: empty parameter name")
		}
		if seen[name] {
			return fmt.Errorf("write adapter: duplicate parameter name %q", name)
		}
		seen[name] = true

		p := Param{
			Name:   name,
			DType:  s.DType,
			Flags:  s.Flags,
			BlkLen: s.BlkLen,
			Shape:  s.Shape,
			Offset: alignUp(dataSize, dataAlign),
		}
		want, err := p.expectedSize()
		if err != nil {
			return fmt.Errorf("write adapter: parameter %s: %w", name, err)
		}
		if int64(len(s.Data)) != want {
			return fmt.Errorf("write adapter: parameter %s: payload is %d bytes, format requires %d", name, len(s.Data), want)
		}
		p.Size = want
		dataSize = p.Offset + p.Size

		nameRaw := []byte(name)
		dirSize += 4 + int64(len(nameRaw)) + 16 + int64(len(p.Shape))*8 + 16
		entries = append(entries, placed{p: p, data: s.Data, nameRaw: nameRaw})
	}

	dataOff := alignUp(headerSize+dirSize, dataAlign)
	out := make([]byte, dataOff+dataSize)

	byteOrder.PutUint32(out[0:], Magic)
	byteOrder.PutUint32(out[4:], Version)
	byteOrder.PutUint64(out[8:], uint64(len(entries)))
	byteOrder.PutUint64(out[16:], uint64(dataOff))

	off := int64(headerSize)
	put32 := func(v uint32) {
		byteOrder.PutUint32(out[off:], v)
		off += 4
	}
	put64 := func(v uint64) {
		byteOrder.PutUint64(out[off:], v)
		off += 8
	}
	for _, e := range entries {
		put32(uint32(len(e.nameRaw)))
		copy(out[off:], e.nameRaw)
		off += int64(len(e.nameRaw))
		put32(uint32(e.p.DType))
		put32(e.p.Flags)
		put32(uint32(e.p.BlkLen))
		put32(uint32(len(e.p.Shape)))
		for _, d := range e.p.Shape {
			put64(uint64(d))
		}
		put64(uint64(e.p.Offset))
		put64(uint64(e.p.Size))

		copy(out[dataOff+e.p.Offset:], e.data)
	}

	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write adapter: %w", err)
	}
	return nil
}
