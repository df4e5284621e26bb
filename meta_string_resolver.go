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

import "github.com/apache/fory-sub004/meta"

// MetaStringBytes is the packed form of an interned identifier string:
// its alphabet tag, the packed body, and a hash of the tag and body.
// The write-side intern table dedupes on the tag and body bytes
// themselves (see key()); Hashcode is not consulted for that.
type MetaStringBytes struct {
	Data     []byte
	Encoding meta.Encoding
	NumChars int
	Hashcode int64
}

func newMetaStringBytes(ms meta.MetaString) *MetaStringBytes {
	return &MetaStringBytes{
		Data:     ms.Data,
		Encoding: ms.Encoding,
		NumChars: ms.NumChars,
		Hashcode: fnvHash(ms.Data, byte(ms.Encoding)),
	}
}

func fnvHash(data []byte, tag byte) int64 {
	var h int64 = 0xcbf29ce484222325
	const prime = 0x100000001b3
	h = (h ^ int64(tag)) * prime
	for _, b := range data {
		h = (h ^ int64(b)) * prime
	}
	if h < 0 {
		h = -h
	}
	return h
}

// MetaStringResolver owns one stream's namespace/type-name/field-name
// intern table (§4.B). A fresh resolver is created per top-level
// Marshal/Unmarshal (or Serialize/Deserialize) call and discarded, per
// SPEC_FULL.md §5's per-stream context rule.
type MetaStringResolver struct {
	writtenIndex map[string]int32 // keyed by encoding+data, see key()
	writtenOrder []*MetaStringBytes

	readTable []*MetaStringBytes
}

func newMetaStringResolver() *MetaStringResolver {
	return &MetaStringResolver{writtenIndex: make(map[string]int32)}
}

func (r *MetaStringResolver) Reset() {
	r.writtenIndex = make(map[string]int32)
	r.writtenOrder = r.writtenOrder[:0]
	r.readTable = r.readTable[:0]
}

func key(encoding meta.Encoding, data []byte) string {
	buf := make([]byte, 0, len(data)+1)
	buf = append(buf, byte(encoding))
	buf = append(buf, data...)
	return string(buf)
}

// GetOrCreateMetaStringBytes packs s (with the given encoder) into a
// MetaStringBytes, without recording it into the write-intern table.
// Callers that intend to emit it on the wire should go through
// WriteMetaStringBytes instead, which handles interning; this helper
// packs the string first (the TypeMeta field-entry writer uses it to
// pack a field name before handing it to WriteMetaStringBytes).
func (r *MetaStringResolver) GetOrCreateMetaStringBytes(enc *meta.Encoder, s string) (*MetaStringBytes, error) {
	ms, err := enc.Encode(s)
	if err != nil {
		return nil, err
	}
	return newMetaStringBytes(ms), nil
}

// WriteMetaStringBytes implements the §4.B intern write path: a prior
// occurrence (by encoding+body) is written as a back-reference;
// otherwise the full packed form is written and the table grows.
//
// Wire shape: varuint32 (byteLen<<1) [ref-bit 0] | (prevIndex<<1)|1
// [ref-bit 1], then — only for a new entry — one encoding-tag byte,
// then (for every encoding narrower than UTF-8) a varuint32 character
// count, then the packed body bytes. The character count is required
// because these alphabets pack fewer than 8 bits per character: the
// packed body is zero-padded out to a byte boundary, and that padding
// can by coincidence be wide enough to look like one more complete
// character code. Carrying the count explicitly removes the ambiguity;
// spec.md's wire text only fixes the byte-length field and leaves the
// decoder's recovery of the exact character count unspecified, so this
// is a documented resolution of that gap (see DESIGN.md).
func (r *MetaStringResolver) WriteMetaStringBytes(buf *ByteBuffer, msb *MetaStringBytes) {
	k := key(msb.Encoding, msb.Data)
	if idx, ok := r.writtenIndex[k]; ok {
		buf.WriteVarUint32(uint32(idx)<<1 | 1)
		return
	}
	buf.WriteVarUint32(uint32(len(msb.Data)) << 1)
	buf.WriteByte_(byte(msb.Encoding))
	if msb.Encoding != meta.UTF_8 {
		buf.WriteVarUint32(uint32(msb.NumChars))
	}
	buf.WriteBinary(msb.Data)
	r.writtenIndex[k] = int32(len(r.writtenOrder))
	r.writtenOrder = append(r.writtenOrder, msb)
}

// ReadMetaStringBytes implements the read side of WriteMetaStringBytes.
func (r *MetaStringResolver) ReadMetaStringBytes(buf *ByteBuffer) *MetaStringBytes {
	header := buf.ReadVarUint32()
	if header&1 == 1 {
		idx := int(header >> 1)
		if idx < 0 || idx >= len(r.readTable) {
			panic(&RefIntegrityError{RefID: int32(idx), Reason: "metastring intern index out of range"})
		}
		return r.readTable[idx]
	}
	byteLen := int(header >> 1)
	encoding := meta.Encoding(buf.ReadByte_())
	numChars := byteLen
	if encoding != meta.UTF_8 {
		numChars = int(buf.ReadVarUint32())
	}
	data := append([]byte(nil), buf.ReadBinary(byteLen)...)
	msb := &MetaStringBytes{Data: data, Encoding: encoding, NumChars: numChars, Hashcode: fnvHash(data, byte(encoding))}
	r.readTable = append(r.readTable, msb)
	return msb
}

// Decode turns a MetaStringBytes back into its original string using
// decoder d (which must carry the same special-char pair the string
// was encoded with).
func decodeMetaStringBytes(d *meta.Decoder, msb *MetaStringBytes) (string, error) {
	return d.Decode(msb.Data, msb.Encoding, msb.NumChars)
}
