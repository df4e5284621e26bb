// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package fory

import (
	"math"
)

// ByteBuffer is a growable little-endian byte buffer with independent
// reader/writer cursors. It is owned by exactly one stream at a time
// (see the concurrency model in SPEC_FULL.md §5) and is reset, not
// freed, between streams.
//
// Reads that run past the writer index, or varints that do not
// terminate within their byte budget, panic with an *EOFError /
// *OverflowError. The top-level entry points (Fory.Marshal/Unmarshal/
// Serialize/Deserialize) recover these and turn them into returned
// errors; callers driving a ByteBuffer directly must handle panics
// themselves.
type ByteBuffer struct {
	data   []byte
	reader int
	writer int
}

// NewByteBuffer wraps data for reading, or starts a fresh growable
// buffer for writing when data is nil.
func NewByteBuffer(data []byte) *ByteBuffer {
	if data == nil {
		return &ByteBuffer{data: make([]byte, 0, 64)}
	}
	return &ByteBuffer{data: data, writer: len(data)}
}

func (b *ByteBuffer) WriterIndex() int { return b.writer }
func (b *ByteBuffer) ReaderIndex() int { return b.reader }

func (b *ByteBuffer) SetWriterIndex(idx int) { b.writer = idx }
func (b *ByteBuffer) SetReaderIndex(idx int)  { b.reader = idx }

// GetByteSlice returns the backing bytes in [start, end).
func (b *ByteBuffer) GetByteSlice(start, end int) []byte {
	return b.data[start:end]
}

// Slice returns a new ByteBuffer sharing the underlying storage over
// [start, start+length), ready for reading from offset 0.
func (b *ByteBuffer) Slice(start, length int) *ByteBuffer {
	return &ByteBuffer{data: b.data[start : start+length], writer: length}
}

func (b *ByteBuffer) grow(n int) {
	need := b.writer + n
	if need <= cap(b.data) {
		b.data = b.data[:need]
		b.writer = need
		return
	}
	newCap := cap(b.data)*2 + n
	if newCap < need {
		newCap = need
	}
	newData := make([]byte, need, newCap)
	copy(newData, b.data[:b.writer])
	b.data = newData
	b.writer = need
}

func (b *ByteBuffer) requireRead(n int) {
	if b.reader+n > b.writer {
		panic(&EOFError{Offset: b.reader, Need: n, Have: b.writer - b.reader})
	}
}

// --- fixed-width primitives ---

func (b *ByteBuffer) WriteByte_(v byte) {
	b.grow(1)
	b.data[b.writer-1] = v
}

func (b *ByteBuffer) ReadByte_() byte {
	b.requireRead(1)
	v := b.data[b.reader]
	b.reader++
	return v
}

func (b *ByteBuffer) PeekByte() byte {
	b.requireRead(1)
	return b.data[b.reader]
}

func (b *ByteBuffer) WriteBool(v bool) {
	if v {
		b.WriteByte_(1)
	} else {
		b.WriteByte_(0)
	}
}

func (b *ByteBuffer) ReadBool() bool { return b.ReadByte_() != 0 }

func (b *ByteBuffer) WriteInt8(v int8) { b.WriteByte_(byte(v)) }
func (b *ByteBuffer) ReadInt8() int8   { return int8(b.ReadByte_()) }

func (b *ByteBuffer) WriteInt16(v int16) {
	b.grow(2)
	off := b.writer - 2
	b.data[off] = byte(v)
	b.data[off+1] = byte(v >> 8)
}

func (b *ByteBuffer) ReadInt16() int16 {
	b.requireRead(2)
	v := int16(b.data[b.reader]) | int16(b.data[b.reader+1])<<8
	b.reader += 2
	return v
}

func (b *ByteBuffer) WriteInt32(v int32) {
	b.grow(4)
	off := b.writer - 4
	b.data[off] = byte(v)
	b.data[off+1] = byte(v >> 8)
	b.data[off+2] = byte(v >> 16)
	b.data[off+3] = byte(v >> 24)
}

func (b *ByteBuffer) ReadInt32() int32 {
	b.requireRead(4)
	v := int32(b.data[b.reader]) | int32(b.data[b.reader+1])<<8 |
		int32(b.data[b.reader+2])<<16 | int32(b.data[b.reader+3])<<24
	b.reader += 4
	return v
}

func (b *ByteBuffer) WriteInt64(v int64) {
	b.grow(8)
	off := b.writer - 8
	for i := 0; i < 8; i++ {
		b.data[off+i] = byte(v >> (8 * uint(i)))
	}
}

func (b *ByteBuffer) ReadInt64() int64 {
	b.requireRead(8)
	var v int64
	for i := 0; i < 8; i++ {
		v |= int64(b.data[b.reader+i]) << (8 * uint(i))
	}
	b.reader += 8
	return v
}

func (b *ByteBuffer) WriteFloat32(v float32) { b.WriteInt32(int32(math.Float32bits(v))) }
func (b *ByteBuffer) ReadFloat32() float32   { return math.Float32frombits(uint32(b.ReadInt32())) }

func (b *ByteBuffer) WriteFloat64(v float64) { b.WriteInt64(int64(math.Float64bits(v))) }
func (b *ByteBuffer) ReadFloat64() float64   { return math.Float64frombits(uint64(b.ReadInt64())) }

// WriteBinary appends raw bytes with no length prefix; callers write
// the length themselves where the wire format calls for it.
func (b *ByteBuffer) WriteBinary(data []byte) {
	b.grow(len(data))
	copy(b.data[b.writer-len(data):], data)
}

func (b *ByteBuffer) ReadBinary(length int) []byte {
	b.requireRead(length)
	v := b.data[b.reader : b.reader+length]
	b.reader += length
	return v
}

// --- varint / zigzag codec ---

func zigzagEncode32(v int32) uint32 { return uint32((v << 1) ^ (v >> 31)) }
func zigzagDecode32(v uint32) int32 { return int32(v>>1) ^ -int32(v&1) }

func zigzagEncode64(v int64) uint64 { return uint64((v << 1) ^ (v >> 63)) }
func zigzagDecode64(v uint64) int64 { return int64(v>>1) ^ -int64(v&1) }

// WriteVarUint32 writes v as unsigned LEB128, 7 data bits per byte, up
// to 5 bytes.
func (b *ByteBuffer) WriteVarUint32(v uint32) int {
	n := 0
	for v >= 0x80 {
		b.WriteByte_(byte(v) | 0x80)
		v >>= 7
		n++
	}
	b.WriteByte_(byte(v))
	return n + 1
}

func (b *ByteBuffer) ReadVarUint32() uint32 {
	var result uint32
	var shift uint
	for i := 0; i < 5; i++ {
		off := b.reader
		bt := b.ReadByte_()
		result |= uint32(bt&0x7f) << shift
		if bt&0x80 == 0 {
			return result
		}
		shift += 7
		_ = off
	}
	panic(&OverflowError{Offset: b.reader, What: "varuint32"})
}

func (b *ByteBuffer) WriteVarInt32(v int32) int { return b.WriteVarUint32(zigzagEncode32(v)) }
func (b *ByteBuffer) ReadVarInt32() int32       { return zigzagDecode32(b.ReadVarUint32()) }

// WriteVarUint64 writes v as unsigned LEB128 up to 9 bytes, where the
// 9th byte (if reached) carries the remaining 8 raw bits with no
// continuation bit.
func (b *ByteBuffer) WriteVarUint64(v uint64) int {
	for i := 0; i < 8; i++ {
		if v>>7 == 0 {
			b.WriteByte_(byte(v))
			return i + 1
		}
		b.WriteByte_(byte(v&0x7f) | 0x80)
		v >>= 7
	}
	b.WriteByte_(byte(v))
	return 9
}

func (b *ByteBuffer) ReadVarUint64() uint64 {
	var result uint64
	for i := 0; i < 8; i++ {
		bt := b.ReadByte_()
		result |= uint64(bt&0x7f) << (7 * uint(i))
		if bt&0x80 == 0 {
			return result
		}
	}
	bt := b.ReadByte_()
	result |= uint64(bt) << 56
	return result
}

func (b *ByteBuffer) WriteVarInt64(v int64) int { return int(b.WriteVarUint64(zigzagEncode64(v))) }
func (b *ByteBuffer) ReadVarInt64() int64       { return zigzagDecode64(b.ReadVarUint64()) }

// WriteSliInt64 writes v using the "slow/small long int" compact
// encoding: if the zigzag-mapped value fits in 31 bits it is written as
// a single tagged 4-byte little-endian word (LSB=1); otherwise a 1-byte
// marker (0) is written followed by the raw 8-byte value. The encoding
// is deterministic and round-trips exactly, which is all SPEC_FULL.md
// requires of it.
func (b *ByteBuffer) WriteSliInt64(v int64) {
	zz := zigzagEncode64(v)
	if zz <= 0x7fffffff {
		tagged := uint32(zz)<<1 | 1
		b.WriteInt32(int32(tagged))
	} else {
		b.WriteInt8(0)
		b.WriteInt64(v)
	}
}

func (b *ByteBuffer) ReadSliInt64() int64 {
	first := b.PeekByte()
	if first&1 == 1 {
		tagged := uint32(b.ReadInt32())
		return zigzagDecode64(uint64(tagged >> 1))
	}
	b.ReadInt8()
	return b.ReadInt64()
}
