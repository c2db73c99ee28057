package adapter

import (
	"fmt"
	"math"
	"os"

	mmapgo "github.com/edsrzf/mmap-go"
	"golang.org/x/exp/mmap"
	"golang.org/x/text/unicode/norm"
)

// Adapter is a loaded adapter file. Parameter payloads are served
// either from an in-memory copy (Load) or from a read-only mapping
// (MemoryMap).
type Adapter struct {
	path    string
	data    []byte
	mapped  mmapgo.MMap // non-nil only for MemoryMap
	version uint32
	dataOff int64
	params  map[string]*Param
	names   []string // directory order
}

// Load reads an adapter file into memory and validates its format.
func Load(path string) (*Adapter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read adapter: %w", err)
	}

	a := &Adapter{path: path, data: data}
	if err := a.parse(); err != nil {
		return nil, fmt.Errorf("parse adapter %s: %w", path, err)
	}
	return a, nil
}

// MemoryMap maps an adapter file read-only and validates its format.
// Payload accessors return views into the mapping; they stay valid
// until Close.
func MemoryMap(path string) (*Adapter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open adapter: %w", err)
	}
	defer f.Close()

	m, err := mmapgo.Map(f, mmapgo.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap adapter: %w", err)
	}

	a := &Adapter{path: path, data: m, mapped: m}
	if err := a.parse(); err != nil {
		m.Unmap()
		return nil, fmt.Errorf("parse adapter %s: %w", path, err)
	}
	return a, nil
}

// Close releases the mapping, if any. The Adapter must not be used
// afterwards.
func (a *Adapter) Close() error {
	if a.mapped != nil {
		m := a.mapped
		a.mapped = nil
		a.data = nil
		return m.Unmap()
	}
	a.data = nil
	return nil
}

// Version returns the format version of the file.
func (a *Adapter) Version() uint32 {
	return a.version
}

// ParamNames returns the parameter names in directory order.
func (a *Adapter) ParamNames() []string {
	return a.names
}

// Param looks up a parameter by name. Lookups are insensitive to
// Unicode representation: both stored names and queries are
// NFC-normalized.
func (a *Adapter) Param(name string) (*Param, bool) {
	p, ok := a.params[norm.NFC.String(name)]
	return p, ok
}

// Data returns the raw payload of a parameter.
func (a *Adapter) Data(p *Param) []byte {
	off := a.dataOff + p.Offset
	return a.data[off : off+p.Size]
}

// Quant4Tensor is a Q4 parameter decomposed into the buffers the GEMM
// engine consumes directly.
type Quant4Tensor struct {
	N, K, BlkLen int
	Data         []byte
	Scales       []float32
	ZeroPoints   []byte // nil without FlagHasZeroPoints
}

// Quant4 decodes a Q4 parameter's payload. Scales are converted to a
// fresh []float32; data and zero points alias the underlying buffer.
func (a *Adapter) Quant4(p *Param) (*Quant4Tensor, error) {
	if p.DType != DTypeQ4 {
		return nil, fmt.Errorf("parameter %s is %s, not Q4", p.Name, p.DType)
	}
	payload := a.Data(p)

	n, k := p.Shape[0], p.Shape[1]
	bc := blockCountOf(p)
	dataLen := n * bc * blkDataSizeOf(p)
	scaleLen := n * bc

	t := &Quant4Tensor{
		N:      n,
		K:      k,
		BlkLen: p.BlkLen,
		Data:   payload[:dataLen],
		Scales: make([]float32, scaleLen),
	}
	scaleBytes := payload[dataLen : dataLen+scaleLen*4]
	for i := range t.Scales {
		t.Scales[i] = math.Float32frombits(byteOrder.Uint32(scaleBytes[i*4:]))
	}
	if p.HasZeroPoints() {
		t.ZeroPoints = payload[dataLen+scaleLen*4:]
	}
	return t, nil
}

// parse validates the header and directory of a.data.
func (a *Adapter) parse() error {
	version, dataOff, params, names, err := parseDirectory(a.data, int64(len(a.data)))
	if err != nil {
		return err
	}
	a.version = version
	a.dataOff = dataOff
	a.params = params
	a.names = names
	return nil
}

// Info is the result of ReadInfo: the directory of an adapter file
// without its payloads.
type Info struct {
	Path    string
	Version uint32
	Params  []Param
}

// ReadInfo reads only the header and directory of an adapter file,
// leaving payloads untouched on disk. Useful for inspection of large
// files.
func ReadInfo(path string) (*Info, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open adapter: %w", err)
	}
	defer r.Close()

	fileSize := int64(r.Len())
	if fileSize < headerSize {
		return nil, fmt.Errorf("parse adapter %s: file too small for header", path)
	}

	var hdr [headerSize]byte
	if _, err := r.ReadAt(hdr[:], 0); err != nil {
		return nil, fmt.Errorf("read adapter header: %w", err)
	}
	dataOff := int64(byteOrder.Uint64(hdr[16:]))
	if dataOff < headerSize || dataOff > fileSize {
		return nil, fmt.Errorf("parse adapter %s: data offset %d out of range", path, dataOff)
	}

	// The directory ends where the data section begins; reading that
	// prefix is enough to parse everything but the payloads.
	head := make([]byte, dataOff)
	if _, err := r.ReadAt(head, 0); err != nil {
		return nil, fmt.Errorf("read adapter directory: %w", err)
	}

	version, _, params, names, err := parseDirectory(head, fileSize)
	if err != nil {
		return nil, fmt.Errorf("parse adapter %s: %w", path, err)
	}

	info := &Info{Path: path, Version: version, Params: make([]Param, 0, len(names))}
	for _, name := range names {
		info.Params = append(info.Params, *params[name])
	}
	return info, nil
}

// parseDirectory parses and validates the header and directory in buf.
// fileSize is the full file length, which may exceed len(buf) when only
// the directory prefix was read.
func parseDirectory(buf []byte, fileSize int64) (version uint32, dataOff int64, params map[string]*Param, names []string, err error) {
	if len(buf) < headerSize {
		return 0, 0, nil, nil, fmt.Errorf("file too small for header")
	}

	magic := byteOrder.Uint32(buf[0:])
	if magic != Magic {
		return 0, 0, nil, nil, fmt.Errorf("invalid magic: 0x%08x", magic)
	}
	version = byteOrder.Uint32(buf[4:])
	if version != Version {
		return 0, 0, nil, nil, fmt.Errorf("unsupported version: %d", version)
	}
	paramCount := byteOrder.Uint64(buf[8:])
	dataOff = int64(byteOrder.Uint64(buf[16:]))

	if dataOff < headerSize || dataOff > fileSize || dataOff%dataAlign != 0 {
		return 0, 0, nil, nil, fmt.Errorf("data offset %d out of range or misaligned", dataOff)
	}
	if int64(len(buf)) < dataOff {
		return 0, 0, nil, nil, fmt.Errorf("directory truncated")
	}
	dataSize := fileSize - dataOff

	params = make(map[string]*Param, paramCount)
	names = make([]string, 0, paramCount)

	off := int64(headerSize)
	read := func(n int64) ([]byte, error) {
		if off+n > dataOff {
			return nil, fmt.Errorf("directory entry extends past data section")
		}
		b := buf[off : off+n]
		off += n
		return b, nil
	}

	for i := uint64(0); i < paramCount; i++ {
		b, rerr := read(4)
		if rerr != nil {
			return 0, 0, nil, nil, rerr
		}
		nameLen := int64(byteOrder.Uint32(b))
		b, rerr = read(nameLen)
		if rerr != nil {
			return 0, 0, nil, nil, rerr
		}
		name := norm.NFC.String(string(b))

		b, rerr = read(16)
		if rerr != nil {
			return 0, 0, nil, nil, rerr
		}
		p := &Param{
			Name:   name,
			DType:  DType(byteOrder.Uint32(b[0:])),
			Flags:  byteOrder.Uint32(b[4:]),
			BlkLen: int(byteOrder.Uint32(b[8:])),
		}
		nDims := byteOrder.Uint32(b[12:])
		if nDims > maxDims {
			return 0, 0, nil, nil, fmt.Errorf("parameter %s: rank %d exceeds limit", name, nDims)
		}
		p.Shape = make([]int, nDims)
		for d := range p.Shape {
			b, rerr = read(8)
			if rerr != nil {
				return 0, 0, nil, nil, rerr
			}
			p.Shape[d] = int(byteOrder.Uint64(b))
		}
		b, rerr = read(16)
		if rerr != nil {
			return 0, 0, nil, nil, rerr
		}
		p.Offset = int64(byteOrder.Uint64(b[0:]))
		p.Size = int64(byteOrder.Uint64(b[8:]))

		want, serr := p.expectedSize()
		if serr != nil {
			return 0, 0, nil, nil, fmt.Errorf("parameter %s: %w", name, serr)
		}
		if p.Size != want {
			return 0, 0, nil, nil, fmt.Errorf("parameter %s: declared size %d, expected %d", name, p.Size, want)
		}
		if p.Offset < 0 || p.Offset%dataAlign != 0 || p.Offset+p.Size > dataSize {
			return 0, 0, nil, nil, fmt.Errorf("parameter %s: payload [%d, %d) outside data section", name, p.Offset, p.Offset+p.Size)
		}
		if _, dup := params[name]; dup {
			return 0, 0, nil, nil, fmt.Errorf("duplicate parameter name %q", name)
		}
		params[name] = p
		names = append(names, name)
	}

	return version, dataOff, params, names, nil
}
