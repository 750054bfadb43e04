package geo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"cogentcore.org/core/math32"
	"golang.org/x/crypto/blake2b"
)

// File format constants
const (
	FileMagic   = "HPGE"
	FileVersion = 1

	hashSize = blake2b.Size256
)

// Errors
var (
	ErrBadMagic    = errors.New("geo: bad magic")
	ErrFileVersion = errors.New("geo: unsupported file version")
	ErrChecksum    = errors.New("geo: checksum mismatch")
	ErrTruncated   = errors.New("geo: truncated data")
)

// Encode serializes g to its binary form: a fixed header, the body
// sections, and a trailing BLAKE2b-256 sum over everything before it.
// Attribute and group sections are written in sorted name order so equal
// geometry always encodes to equal bytes.
func Encode(g *Geometry) []byte {
	buf := make([]byte, 0, 64+g.NumPoints()*12+g.NumPrims()*16)
	buf = append(buf, FileMagic...)
	buf = putU32(buf, FileVersion)

	buf = putU32(buf, uint32(len(g.positions)))
	for _, p := range g.positions {
		buf = putVec3(buf, p)
	}

	buf = putU32(buf, uint32(len(g.pointF)))
	for _, name := range sortedKeysF(g.pointF) {
		buf = putString(buf, name)
		for _, v := range g.pointF[name] {
			buf = putF32(buf, v)
		}
	}

	buf = putU32(buf, uint32(len(g.pointV)))
	for _, name := range sortedKeysV(g.pointV) {
		buf = putString(buf, name)
		for _, v := range g.pointV[name] {
			buf = putVec3(buf, v)
		}
	}

	buf = putU32(buf, uint32(len(g.prims)))
	for _, p := range g.prims {
		buf = append(buf, byte(p.Kind))
		buf = putU32(buf, uint32(len(p.Verts)))
		for _, v := range p.Verts {
			buf = putU32(buf, uint32(v))
		}
	}

	buf = putU32(buf, uint32(len(g.primI)))
	for _, name := range sortedKeysI(g.primI) {
		buf = putString(buf, name)
		for _, v := range g.primI[name] {
			buf = putU32(buf, uint32(v))
		}
	}

	groupNames := g.GroupNames()
	buf = putU32(buf, uint32(len(groupNames)))
	for _, name := range groupNames {
		buf = putString(buf, name)
		members := g.groups[name]
		buf = putU32(buf, uint32(len(members)))
		for _, m := range members {
			buf = putU32(buf, uint32(m))
		}
	}

	detailNames := make([]string, 0, len(g.detailI))
	for name := range g.detailI {
		detailNames = append(detailNames, name)
	}
	sort.Strings(detailNames)
	buf = putU32(buf, uint32(len(detailNames)))
	for _, name := range detailNames {
		buf = putString(buf, name)
		buf = putU32(buf, uint32(g.detailI[name]))
	}

	sum := blake2b.Sum256(buf)
	return append(buf, sum[:]...)
}

// ContentHash returns the BLAKE2b-256 sum of the encoded geometry body.
func ContentHash(g *Geometry) [hashSize]byte {
	data := Encode(g)
	var sum [hashSize]byte
	copy(sum[:], data[len(data)-hashSize:])
	return sum
}

// Decode deserializes geometry encoded by Encode, verifying the
// checksum.
func Decode(data []byte) (*Geometry, error) {
	if len(data) < len(FileMagic)+4+hashSize {
		return nil, ErrTruncated
	}
	if string(data[:len(FileMagic)]) != FileMagic {
		return nil, ErrBadMagic
	}

	body := data[:len(data)-hashSize]
	sum := blake2b.Sum256(body)
	var stored [hashSize]byte
	copy(stored[:], data[len(data)-hashSize:])
	if sum != stored {
		return nil, ErrChecksum
	}

	r := &reader{data: body, off: len(FileMagic)}
	version := r.u32()
	if r.err == nil && version != FileVersion {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrFileVersion, version, FileVersion)
	}

	g := New()

	npoints := int(r.u32())
	for i := 0; i < npoints && r.err == nil; i++ {
		g.positions = append(g.positions, r.vec3())
	}

	npf := int(r.u32())
	for a := 0; a < npf && r.err == nil; a++ {
		name := r.str()
		vals := make([]float32, 0, npoints)
		for i := 0; i < npoints && r.err == nil; i++ {
			vals = append(vals, r.f32())
		}
		g.pointF[name] = vals
	}

	npv := int(r.u32())
	for a := 0; a < npv && r.err == nil; a++ {
		name := r.str()
		vals := make([]math32.Vector3, 0, npoints)
		for i := 0; i < npoints && r.err == nil; i++ {
			vals = append(vals, r.vec3())
		}
		g.pointV[name] = vals
	}

	nprims := int(r.u32())
	for i := 0; i < nprims && r.err == nil; i++ {
		kind := PrimKind(r.u8())
		nverts := int(r.u32())
		verts := make([]int32, 0, nverts)
		for v := 0; v < nverts && r.err == nil; v++ {
			verts = append(verts, int32(r.u32()))
		}
		g.prims = append(g.prims, Prim{Kind: kind, Verts: verts})
	}

	npi := int(r.u32())
	for a := 0; a < npi && r.err == nil; a++ {
		name := r.str()
		vals := make([]int32, 0, nprims)
		for i := 0; i < nprims && r.err == nil; i++ {
			vals = append(vals, int32(r.u32()))
		}
		g.primI[name] = vals
	}

	ngroups := int(r.u32())
	for a := 0; a < ngroups && r.err == nil; a++ {
		name := r.str()
		count := int(r.u32())
		members := make([]int, 0, count)
		for i := 0; i < count && r.err == nil; i++ {
			members = append(members, int(r.u32()))
		}
		g.groups[name] = members
	}

	ndetail := int(r.u32())
	for a := 0; a < ndetail && r.err == nil; a++ {
		name := r.str()
		g.detailI[name] = int32(r.u32())
	}

	if r.err != nil {
		return nil, r.err
	}
	return g, nil
}

// WriteFile atomically writes g to path, creating parent directories.
func WriteFile(g *Geometry, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create geometry directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, Encode(g), 0644); err != nil {
		return fmt.Errorf("write geometry: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename geometry: %w", err)
	}
	return nil
}

// ReadFile reads and verifies a geometry file.
func ReadFile(path string) (*Geometry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read geometry: %w", err)
	}
	return Decode(data)
}

// Encoding helpers

func putU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func putF32(buf []byte, v float32) []byte {
	return putU32(buf, math.Float32bits(v))
}

func putVec3(buf []byte, v math32.Vector3) []byte {
	buf = putF32(buf, v.X)
	buf = putF32(buf, v.Y)
	return putF32(buf, v.Z)
}

func putString(buf []byte, s string) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], uint16(len(s)))
	buf = append(buf, b[:]...)
	return append(buf, s...)
}

func sortedKeysF(m map[string][]float32) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysV(m map[string][]math32.Vector3) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysI(m map[string][]int32) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// reader walks the encoded body with a sticky truncation error.
type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.data) {
		r.err = ErrTruncated
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) f32() float32 {
	return math.Float32frombits(r.u32())
}

func (r *reader) vec3() math32.Vector3 {
	x := r.f32()
	y := r.f32()
	z := r.f32()
	return math32.Vec3(x, y, z)
}

func (r *reader) str() string {
	b := r.take(2)
	if b == nil {
		return ""
	}
	n := int(binary.LittleEndian.Uint16(b))
	s := r.take(n)
	if s == nil {
		return ""
	}
	return string(s)
}
