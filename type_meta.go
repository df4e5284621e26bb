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
	"github.com/apache/fory-sub004/meta"
	"github.com/spaolacci/murmur3"
)

// fieldNameEncoder/Decoder pack field names the same way the type
// resolver packs namespace/type-name identifiers; field names have no
// second punctuation role to reserve, so '_' fills both special-char
// slots.
var (
	fieldNameEncoder = meta.NewEncoder('_', '_')
	fieldNameDecoder = meta.NewDecoder('_', '_')
)

// decodedFieldEntry is what readFieldEntry hands back: the wire's
// view of one field, used by the compatible-struct reader to align
// against the local FieldSpec list by sort-key.
type decodedFieldEntry struct {
	FieldID     int32 // -1 when by name
	Name        string
	WireTypeID  int32
	Nullable    bool
	TrackingRef bool
}

// metaDecoderSet bundles the three MetaString decoders a TypeMeta read
// needs: namespace, type-name, and field-name.
type metaDecoderSet struct {
	namespace *meta.Decoder
	typeName  *meta.Decoder
	fieldName *meta.Decoder
}

func newMetaDecoderSet(r *typeResolver) *metaDecoderSet {
	return &metaDecoderSet{namespace: r.namespaceDecoder, typeName: r.typeNameDecoder, fieldName: fieldNameDecoder}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// writeTypeMetaBody writes the body bytes that the 64-bit fingerprint
// header is computed over: the class header byte, type identity, and
// field entries (§4.E points 2-4). It does not write the header
// itself, since the header depends on this body's hash and length.
func writeTypeMetaBody(buf *ByteBuffer, msr *MetaStringResolver, info *TypeInfo) {
	n := len(info.Fields)
	classHeader := byte(0)
	if n <= 0b11111 {
		classHeader |= byte(n)
	} else {
		classHeader |= 0b11111
	}
	if info.named() {
		classHeader |= 1 << 5
	}
	buf.WriteByte_(classHeader)
	if n > 0b11111 {
		buf.WriteVarUint32(uint32(n - 0b11111))
	}

	if info.named() {
		msr.WriteMetaStringBytes(buf, info.NsBytes)
		msr.WriteMetaStringBytes(buf, info.NameBytes)
	} else {
		buf.WriteByte_(byte(COMPATIBLE_STRUCT))
		buf.WriteVarUint32(uint32(info.TypeID))
	}

	for _, f := range info.Fields {
		writeFieldEntry(buf, msr, f)
	}
}

func writeFieldEntry(buf *ByteBuffer, msr *MetaStringResolver, f *FieldSpec) {
	byFieldID := f.FieldID >= 0
	var size int
	if byFieldID {
		size = int(f.FieldID)
	} else {
		size = len(f.Name) - 1
		if size < 0 {
			size = 0
		}
	}
	tag := byte(0)
	if byFieldID {
		tag = 3
	}
	extra := size >= 0b1111
	header := tag<<6 | byte(minInt(size, 0b1111))<<2
	if f.Nullable {
		header |= 1 << 1
	}
	if f.TrackingRef {
		header |= 1
	}
	buf.WriteByte_(header)
	if extra {
		buf.WriteVarUint32(uint32(size - 0b1111))
	}

	wireTypeID := fieldTypeHashID(f.FieldType)
	buf.WriteByte_(byte(wireTypeID))
	switch f.FieldType.Kind {
	case KindList, KindSet:
		buf.WriteVarUint32(uint32(STRING)<<2 | boolBit(false)<<1 | boolBit(false))
	case KindMap:
		buf.WriteVarUint32(uint32(STRING)<<2 | boolBit(false)<<1 | boolBit(false))
		buf.WriteVarUint32(uint32(STRING)<<2 | boolBit(false)<<1 | boolBit(false))
	}

	if !byFieldID {
		msb, _ := msr.GetOrCreateMetaStringBytes(fieldNameEncoder, f.Name)
		msr.WriteMetaStringBytes(buf, msb)
	}
}

func boolBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func readFieldEntry(buf *ByteBuffer, msr *MetaStringResolver, dec *metaDecoderSet) *decodedFieldEntry {
	header := buf.ReadByte_()
	tag := header >> 6
	size := int((header >> 2) & 0b1111)
	nullable := header&(1<<1) != 0
	trackingRef := header&1 != 0
	if size == 0b1111 {
		size += int(buf.ReadVarUint32())
	}

	entry := &decodedFieldEntry{Nullable: nullable, TrackingRef: trackingRef, FieldID: -1}
	if tag == 3 {
		entry.FieldID = int32(size)
	}

	wireTypeID := int32(buf.ReadByte_())
	entry.WireTypeID = wireTypeID
	switch wireTypeID {
	case LIST, SET:
		buf.ReadVarUint32()
	case MAP:
		buf.ReadVarUint32()
		buf.ReadVarUint32()
	}

	if tag != 3 {
		msb := msr.ReadMetaStringBytes(buf)
		name, err := decodeMetaStringBytes(dec.fieldName, msb)
		if err == nil {
			entry.Name = name
		}
	}
	return entry
}

// --- 64-bit TypeMeta header & meta-share intern table ---

// typeDef is one fully-decoded TypeMeta emission: the identity plus
// its field list, kept around for the lifetime of the stream so later
// occurrences can be resolved by meta-share index.
type typeDef struct {
	ByID      bool
	TypeID    int32
	Namespace string
	TypeName  string
	Fields    []*decodedFieldEntry
}

// TypeMetaResolver owns one stream's meta-share intern table (§4.E).
// Like MetaStringResolver and RefResolver, a fresh instance is created
// per top-level call.
type TypeMetaResolver struct {
	writtenIndex map[*TypeInfo]int32
	writtenOrder []*TypeInfo

	readTable []*typeDef
}

func newTypeMetaResolver() *TypeMetaResolver {
	return &TypeMetaResolver{writtenIndex: make(map[*TypeInfo]int32)}
}

func (r *TypeMetaResolver) Reset() {
	r.writtenIndex = make(map[*TypeInfo]int32)
	r.writtenOrder = r.writtenOrder[:0]
	r.readTable = r.readTable[:0]
}

// WriteTypeMeta implements §4.E's meta-share write path: a prior
// emission of this exact TypeInfo is referenced by index; otherwise
// the full 64-bit header + body is written and the table grows.
func (r *TypeMetaResolver) WriteTypeMeta(buf *ByteBuffer, msr *MetaStringResolver, info *TypeInfo) {
	if idx, ok := r.writtenIndex[info]; ok {
		buf.WriteVarUint32(uint32(idx)<<1 | 1)
		return
	}
	idx := int32(len(r.writtenOrder))
	buf.WriteVarUint32(uint32(idx) << 1)

	body := NewByteBuffer(nil)
	writeTypeMetaBody(body, msr, info)
	bodyBytes := body.GetByteSlice(0, body.WriterIndex())

	buf.WriteInt64(typeMetaHeader(bodyBytes))
	if len(bodyBytes) >= 0xFF {
		buf.WriteVarUint32(uint32(len(bodyBytes) - 0xFF))
	}
	buf.WriteBinary(bodyBytes)

	r.writtenIndex[info] = idx
	r.writtenOrder = append(r.writtenOrder, info)
}

// typeMetaHeader computes the 64-bit TypeMeta header. Per spec.md
// §4.E the top 41 bits nominally hold the fingerprint while bit 63
// ("compressed") and bit 62 ("has-fields-meta") are also claimed as
// flags — an overlap spec.md's wire text leaves unresolved. This
// implementation resolves it by having the flags own the top 2 bits
// outright and folding the murmur3 fingerprint into the remaining 39
// of the nominal 41 (bits 61-23); bits 22-8 are reserved/zero, and the
// low 8 bits carry the saturating body length, exactly as specified.
// See DESIGN.md.
func typeMetaHeader(body []byte) int64 {
	h1, _ := murmur3.Sum128WithSeed(body, 47)
	fp := h1 & ((uint64(1) << 39) - 1)

	var header uint64
	header |= uint64(1) << 62 // has-fields-meta: this implementation always embeds fields
	header |= fp << 23

	saturated := len(body)
	if saturated > 0xFF {
		saturated = 0xFF
	}
	header |= uint64(saturated)
	return int64(header)
}

// ReadTypeMeta implements the read side of WriteTypeMeta.
func (r *TypeMetaResolver) ReadTypeMeta(buf *ByteBuffer, msr *MetaStringResolver, dec *metaDecoderSet) *typeDef {
	header := buf.ReadVarUint32()
	if header&1 == 1 {
		idx := int(header >> 1)
		if idx < 0 || idx >= len(r.readTable) {
			panic(&RefIntegrityError{RefID: int32(idx), Reason: "typemeta intern index out of range"})
		}
		return r.readTable[idx]
	}

	headerWord := uint64(buf.ReadInt64())
	bodyLen := int(headerWord & 0xFF)
	if bodyLen == 0xFF {
		bodyLen += int(buf.ReadVarUint32())
	}
	_ = bodyLen // the body is read field-by-field below; length is informational here

	classHeader := buf.ReadByte_()
	n := int(classHeader & 0b11111)
	if n == 0b11111 {
		n += int(buf.ReadVarUint32())
	}
	byName := classHeader&(1<<5) != 0

	td := &typeDef{}
	if byName {
		nsBytes := msr.ReadMetaStringBytes(buf)
		tnBytes := msr.ReadMetaStringBytes(buf)
		ns, _ := decodeMetaStringBytes(dec.namespace, nsBytes)
		tn, _ := decodeMetaStringBytes(dec.typeName, tnBytes)
		td.Namespace, td.TypeName = ns, tn
	} else {
		buf.ReadByte_()
		td.ByID = true
		td.TypeID = int32(buf.ReadVarUint32())
	}

	td.Fields = make([]*decodedFieldEntry, n)
	for i := 0; i < n; i++ {
		td.Fields[i] = readFieldEntry(buf, msr, dec)
	}

	r.readTable = append(r.readTable, td)
	return td
}
