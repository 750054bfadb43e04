// Package strokefmt implements the binary wire format for captured stroke
// samples.
//
// A sample is a fixed 76-byte little-endian block so downstream consumers
// can read fixed offsets. A record framing one or more mirror streams is
// [version:int32][count:int32] followed by each stream's samples
// back-to-back. The version is a compatibility tag; the current tag is 2.
package strokefmt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"cogentcore.org/core/math32"
)

// Version and layout constants
const (
	Version    = 2
	SampleSize = 76
	HeaderSize = 8
)

// Errors
var (
	ErrShortRecord = errors.New("strokefmt: record too short")
	ErrVersion     = errors.New("strokefmt: unsupported version")
	ErrCount       = errors.New("strokefmt: invalid sample count")
	ErrMisaligned  = errors.New("strokefmt: stream length not a multiple of the sample size")
)

// Sample is one pointer reading, immutable once encoded.
type Sample struct {
	// Ray origin in geometry space
	Pos math32.Vector3

	// Normalized ray direction
	Dir math32.Vector3

	// Device pressure, nominal 0..1
	Pressure float32

	// Seconds since stroke start
	Time float32

	// Tablet tilt, angle and roll
	Tilt  float32
	Angle float32
	Roll  float32

	// Projection result for this sample
	ProjPos  math32.Vector3
	ProjPrim int32
	ProjUVW  math32.Vector3
	Hit      bool
}

// AppendTo appends the fixed-layout encoding of s to buf and returns the
// extended slice. The appended length is always SampleSize.
func (s Sample) AppendTo(buf []byte) []byte {
	buf = appendVec3(buf, s.Pos)
	buf = appendVec3(buf, s.Dir)
	buf = appendF32(buf, s.Pressure)
	buf = appendF32(buf, s.Time)
	buf = appendF32(buf, s.Tilt)
	buf = appendF32(buf, s.Angle)
	buf = appendF32(buf, s.Roll)
	buf = appendVec3(buf, s.ProjPos)
	buf = appendI32(buf, s.ProjPrim)
	buf = appendVec3(buf, s.ProjUVW)
	if s.Hit {
		buf = appendI32(buf, 1)
	} else {
		buf = appendI32(buf, 0)
	}
	return buf
}

// EncodeSample returns the SampleSize-byte encoding of s.
func EncodeSample(s Sample) []byte {
	return s.AppendTo(make([]byte, 0, SampleSize))
}

// DecodeSample decodes one sample from the start of data.
func DecodeSample(data []byte) (Sample, error) {
	if len(data) < SampleSize {
		return Sample{}, ErrShortRecord
	}

	var s Sample
	offset := 0

	s.Pos, offset = vec3At(data, offset)
	s.Dir, offset = vec3At(data, offset)
	s.Pressure, offset = f32At(data, offset)
	s.Time, offset = f32At(data, offset)
	s.Tilt, offset = f32At(data, offset)
	s.Angle, offset = f32At(data, offset)
	s.Roll, offset = f32At(data, offset)
	s.ProjPos, offset = vec3At(data, offset)
	s.ProjPrim, offset = i32At(data, offset)
	s.ProjUVW, offset = vec3At(data, offset)

	hit, _ := i32At(data, offset)
	s.Hit = hit != 0

	return s, nil
}

// Record is a decoded stroke-set: one sample stream per mirror transform,
// each stream holding Count samples.
type Record struct {
	Version int32
	Count   int32
	Streams [][]Sample
}

// EncodeRecord serializes r as [version][count][stream...].
func EncodeRecord(r Record) []byte {
	size := HeaderSize + len(r.Streams)*int(r.Count)*SampleSize
	buf := make([]byte, 0, size)
	buf = appendI32(buf, r.Version)
	buf = appendI32(buf, r.Count)
	for _, stream := range r.Streams {
		for _, s := range stream {
			buf = s.AppendTo(buf)
		}
	}
	return buf
}

// FrameStream prefixes one already-encoded sample stream with the
// version/count header. This is the per-slot form the accumulator writes.
func FrameStream(count int32, stream []byte) []byte {
	buf := make([]byte, 0, HeaderSize+len(stream))
	buf = appendI32(buf, Version)
	buf = appendI32(buf, count)
	return append(buf, stream...)
}

// DecodeRecord decodes a record from data. The stream count is derived
// from the remaining length: it must be an exact multiple of
// count*SampleSize. A zero-count record decodes to zero streams.
func DecodeRecord(data []byte) (Record, error) {
	if len(data) < HeaderSize {
		return Record{}, ErrShortRecord
	}

	version, offset := i32At(data, 0)
	if version != Version {
		return Record{}, fmt.Errorf("%w: got %d, expected %d", ErrVersion, version, Version)
	}

	count, offset := i32At(data, offset)
	if count < 0 {
		return Record{}, fmt.Errorf("%w: %d", ErrCount, count)
	}

	rec := Record{Version: version, Count: count}
	rest := data[offset:]

	if count == 0 {
		// Empty streams contribute no bytes; the stream count is
		// unrecoverable and irrelevant.
		return rec, nil
	}

	streamSize := int(count) * SampleSize
	if len(rest)%streamSize != 0 {
		return Record{}, fmt.Errorf("%w: %d trailing bytes", ErrMisaligned, len(rest)%streamSize)
	}

	mirrors := len(rest) / streamSize
	rec.Streams = make([][]Sample, 0, mirrors)
	for m := 0; m < mirrors; m++ {
		stream := make([]Sample, 0, count)
		base := m * streamSize
		for i := 0; i < int(count); i++ {
			s, err := DecodeSample(rest[base+i*SampleSize:])
			if err != nil {
				return Record{}, err
			}
			stream = append(stream, s)
		}
		rec.Streams = append(rec.Streams, stream)
	}

	return rec, nil
}

// Encoding helpers

func appendF32(buf []byte, v float32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
	return append(buf, b[:]...)
}

func appendI32(buf []byte, v int32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	return append(buf, b[:]...)
}

func appendVec3(buf []byte, v math32.Vector3) []byte {
	buf = appendF32(buf, v.X)
	buf = appendF32(buf, v.Y)
	return appendF32(buf, v.Z)
}

func f32At(data []byte, offset int) (float32, int) {
	return math.Float32frombits(binary.LittleEndian.Uint32(data[offset:])), offset + 4
}

func i32At(data []byte, offset int) (int32, int) {
	return int32(binary.LittleEndian.Uint32(data[offset:])), offset + 4
}

func vec3At(data []byte, offset int) (math32.Vector3, int) {
	x, offset := f32At(data, offset)
	y, offset := f32At(data, offset)
	z, offset := f32At(data, offset)
	return math32.Vec3(x, y, z), offset
}
