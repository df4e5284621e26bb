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
	"fmt"
	"reflect"
)

// primitiveSerializers dispatches the scalar and fixed-primitive wire
// kinds; BINARY is handled separately by writeBinary/readBinary since
// it alone participates in the out-of-band path.
var primitiveSerializers = map[TypeId]Serializer{
	BOOL:       boolSerializer{},
	UINT8:      byteSerializer{},
	INT8:       int8Serializer{},
	INT16:      int16Serializer{},
	INT32:      int32Serializer{},
	INT64:      int64Serializer{},
	FLOAT:      float32Serializer{},
	DOUBLE:     float64Serializer{},
	STRING:     stringSerializer{},
	LOCAL_DATE: dateSerializer{},
	TIMESTAMP:  timeSerializer{},
}

// arraySerializers dispatches the typed primitive array wire kinds,
// which (unlike LIST/SET) never write per-element type ids.
var arraySerializers = map[TypeId]Serializer{
	BOOL_ARRAY:    boolSliceSerializer{},
	INT16_ARRAY:   int16SliceSerializer{},
	INT32_ARRAY:   int32SliceSerializer{},
	INT64_ARRAY:   int64SliceSerializer{},
	FLOAT32_ARRAY: float32SliceSerializer{},
	FLOAT64_ARRAY: float64SliceSerializer{},
}

// streamContext is the per-call cursor over a single Marshal/Unmarshal
// (or Serialize/Deserialize) invocation: its reference table, its
// MetaString and TypeMeta intern tables, and (optionally) its
// out-of-band plumbing. A fresh context is built for every top-level
// call, matching the per-stream lifetime SPEC_FULL.md §5 requires of
// RefResolver/MetaStringResolver/TypeMetaResolver.
type streamContext struct {
	fory  *Fory
	refs  *RefResolver
	strs  *MetaStringResolver
	metas *TypeMetaResolver
	dec   *metaDecoderSet

	oobCallback func(BufferObject) bool
	oobIndex    int32
	oobBuffers  []*ByteBuffer
}

func (f *Fory) newWriteContext() *streamContext {
	return &streamContext{
		fory:  f,
		refs:  newRefResolver(f.referenceTracking),
		strs:  newMetaStringResolver(),
		metas: newTypeMetaResolver(),
	}
}

func (f *Fory) newReadContext() *streamContext {
	return &streamContext{
		fory:  f,
		refs:  newRefResolver(f.referenceTracking),
		strs:  newMetaStringResolver(),
		metas: newTypeMetaResolver(),
		dec:   newMetaDecoderSet(f.types),
	}
}

// --- write path ---

// writeReferencable implements §4.C + §4.F together: the ref/null flag,
// then (only when a value body follows) the wire type identity and the
// body itself. Every value in the stream — the root, every struct
// field, every collection element, every map key/value — goes through
// this single entry point, so every value is fully self-describing.
func (ctx *streamContext) writeReferencable(buf *ByteBuffer, v reflect.Value) error {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			buf.WriteInt8(NullFlag)
			return nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		buf.WriteInt8(NullFlag)
		return nil
	}

	isNilPtr := v.Kind() == reflect.Ptr && v.IsNil()
	var identity interface{}
	var trackable bool
	if !isNilPtr {
		identity, trackable = refIdentity(v)
	}
	shouldWrite, _ := ctx.refs.WriteRefOrNull(buf, isNilPtr, identity, trackable)
	if !shouldWrite {
		return nil
	}
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	info, err := ctx.resolveValueTypeInfo(v)
	if err != nil {
		return err
	}
	if err := ctx.writeTypeIdentity(buf, info); err != nil {
		return err
	}
	return ctx.writeBody(buf, info, v)
}

// resolveValueTypeInfo maps a concrete (non-pointer, non-interface)
// reflect.Value onto the TypeInfo used to pick its wire identity and
// body encoding. Registered types resolve directly; unregistered
// slice/array/map types fall back to the generic heterogeneous LIST/MAP
// encoding, and unregistered struct types are an error (every struct
// that can appear as a Marshal root or a dynamically-typed field value
// must be registered first).
func (ctx *streamContext) resolveValueTypeInfo(v reflect.Value) (*TypeInfo, error) {
	t := v.Type()
	if info, ok := ctx.fory.types.getTypeInfoByGoType(t); ok {
		return info, nil
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return &TypeInfo{GoType: t, Kind: KindList, TypeID: int32(LIST)}, nil
	case reflect.Map:
		return &TypeInfo{GoType: t, Kind: KindMap, TypeID: int32(MAP)}, nil
	case reflect.Struct:
		return nil, &RegistrationError{Reason: fmt.Sprintf("type %s is not registered; call RegisterTagType or RegisterType first", t)}
	default:
		return nil, &UnknownTypeIdError{TypeID: int32(NA)}
	}
}

func structWireID(info *TypeInfo, compatible bool) TypeId {
	switch {
	case compatible && info.named():
		return NAMED_COMPATIBLE_STRUCT
	case compatible:
		return COMPATIBLE_STRUCT
	case info.named():
		return NAMED_STRUCT
	default:
		return STRUCT
	}
}

func (ctx *streamContext) writeTypeIdentity(buf *ByteBuffer, info *TypeInfo) error {
	if info.Kind != KindStruct {
		buf.WriteVarUint32(uint32(info.TypeID))
		return nil
	}
	wireID := structWireID(info, ctx.fory.compatible)
	buf.WriteVarUint32(uint32(wireID))
	if ctx.fory.compatible {
		ctx.metas.WriteTypeMeta(buf, ctx.strs, info)
		return nil
	}
	if info.named() {
		ctx.strs.WriteMetaStringBytes(buf, info.NsBytes)
		ctx.strs.WriteMetaStringBytes(buf, info.NameBytes)
	} else {
		buf.WriteVarUint32(uint32(info.TypeID))
	}
	buf.WriteInt32(info.StructureHash)
	return nil
}

func (ctx *streamContext) writeBody(buf *ByteBuffer, info *TypeInfo, v reflect.Value) error {
	switch info.Kind {
	case KindPrimitive, KindScalar:
		if TypeId(info.TypeID) == BINARY {
			return ctx.writeBinary(buf, v)
		}
		ser, ok := primitiveSerializers[TypeId(info.TypeID)]
		if !ok {
			return &UnknownTypeIdError{TypeID: info.TypeID}
		}
		return ser.Write(ctx.fory, buf, v)
	case KindList:
		if ser, ok := arraySerializers[TypeId(info.TypeID)]; ok {
			return ser.Write(ctx.fory, buf, v)
		}
		return ctx.writeCollection(buf, v)
	case KindSet:
		return ctx.writeCollection(buf, v)
	case KindMap:
		return ctx.writeMap(buf, v)
	case KindStruct:
		return ctx.writeStruct(buf, info, v)
	default:
		return &UnknownTypeIdError{TypeID: info.TypeID}
	}
}

func (ctx *streamContext) writeBinary(buf *ByteBuffer, v reflect.Value) error {
	b := v.Bytes()
	if ctx.oobCallback != nil {
		bo := &bufferObject{buf: NewByteBuffer(append([]byte(nil), b...))}
		if ctx.oobCallback(bo) {
			buf.WriteBool(true)
			buf.WriteVarUint32(uint32(ctx.oobIndex))
			ctx.oobIndex++
			return nil
		}
	}
	buf.WriteBool(false)
	return binarySerializer{}.Write(ctx.fory, buf, v)
}

// collectionHeader bits per §4.F: this implementation always writes
// elements self-describing (bit3 heterogeneous, bit2 element type not
// declared), trading the declared-homogeneous-type fast path for a
// uniform, always-correct encoding. See DESIGN.md.
const collectionHeaderHeterogeneous byte = 1<<3 | 1<<2

func (ctx *streamContext) collectionElements(v reflect.Value) []reflect.Value {
	if v.Type() == genericSetType {
		gs := v.Interface().(GenericSet)
		elems := make([]reflect.Value, len(gs.order))
		for i, it := range gs.order {
			elems[i] = reflect.ValueOf(it)
		}
		return elems
	}
	n := v.Len()
	elems := make([]reflect.Value, n)
	for i := 0; i < n; i++ {
		elems[i] = v.Index(i)
	}
	return elems
}

func (ctx *streamContext) writeCollection(buf *ByteBuffer, v reflect.Value) error {
	elems := ctx.collectionElements(v)
	buf.WriteVarUint32(uint32(len(elems)))
	buf.WriteByte_(collectionHeaderHeterogeneous)
	for _, e := range elems {
		if err := ctx.writeReferencable(buf, e); err != nil {
			return err
		}
	}
	return nil
}

func (ctx *streamContext) writeMap(buf *ByteBuffer, v reflect.Value) error {
	keys := v.MapKeys()
	buf.WriteVarUint32(uint32(len(keys)))
	for _, k := range keys {
		if err := ctx.writeReferencable(buf, k); err != nil {
			return err
		}
		if err := ctx.writeReferencable(buf, v.MapIndex(k)); err != nil {
			return err
		}
	}
	return nil
}

func (ctx *streamContext) writeStruct(buf *ByteBuffer, info *TypeInfo, v reflect.Value) error {
	for _, fs := range info.Fields {
		if err := ctx.writeReferencable(buf, v.Field(fs.FieldIndex)); err != nil {
			return err
		}
	}
	return nil
}

// --- read path ---

// resolvedType is what readTypeIdentity hands back: enough to pick a
// body reader (Kind/TypeID) plus, for structs, the local TypeInfo to
// populate (Info) and — in compatible mode — the wire-side field
// layout to align against it (Compatible).
type resolvedType struct {
	Kind       Kind
	TypeID     int32
	Info       *TypeInfo
	Compatible *typeDef
}

func kindForWireID(id int32) Kind {
	switch TypeId(id) {
	case LIST:
		return KindList
	case SET:
		return KindSet
	case MAP:
		return KindMap
	case BOOL_ARRAY, INT8_ARRAY, INT16_ARRAY, INT32_ARRAY, INT64_ARRAY, FLOAT32_ARRAY, FLOAT64_ARRAY:
		return KindList
	case STRING, LOCAL_DATE, TIMESTAMP, BINARY:
		return KindScalar
	default:
		return KindPrimitive
	}
}

func (ctx *streamContext) readTypeIdentity(buf *ByteBuffer) (*resolvedType, error) {
	wireID := int32(buf.ReadVarUint32())
	switch TypeId(wireID) {
	case STRUCT:
		id := int32(buf.ReadVarUint32())
		hash := buf.ReadInt32()
		info, ok := ctx.fory.types.getTypeInfoByNumericID(id)
		if !ok {
			return nil, &UnknownTypeIdError{TypeID: id}
		}
		if info.StructureHash != hash {
			return nil, &HashMismatchError{TypeName: info.GoType.String(), Expected: info.StructureHash, Received: hash}
		}
		return &resolvedType{Kind: KindStruct, TypeID: wireID, Info: info}, nil
	case NAMED_STRUCT:
		nsBytes := ctx.strs.ReadMetaStringBytes(buf)
		tnBytes := ctx.strs.ReadMetaStringBytes(buf)
		hash := buf.ReadInt32()
		ns, _ := decodeMetaStringBytes(ctx.fory.types.namespaceDecoder, nsBytes)
		tn, _ := decodeMetaStringBytes(ctx.fory.types.typeNameDecoder, tnBytes)
		info, ok := ctx.fory.types.getTypeInfoByName(ns, tn)
		if !ok {
			return nil, &UnknownNamedTypeError{Namespace: ns, TypeName: tn}
		}
		if info.StructureHash != hash {
			return nil, &HashMismatchError{TypeName: tn, Expected: info.StructureHash, Received: hash}
		}
		return &resolvedType{Kind: KindStruct, TypeID: wireID, Info: info}, nil
	case COMPATIBLE_STRUCT, NAMED_COMPATIBLE_STRUCT:
		td := ctx.metas.ReadTypeMeta(buf, ctx.strs, ctx.dec)
		var info *TypeInfo
		var ok bool
		if td.ByID {
			info, ok = ctx.fory.types.getTypeInfoByNumericID(td.TypeID)
		} else {
			info, ok = ctx.fory.types.getTypeInfoByName(td.Namespace, td.TypeName)
		}
		if !ok {
			if td.ByID {
				return nil, &UnknownTypeIdError{TypeID: td.TypeID}
			}
			return nil, &UnknownNamedTypeError{Namespace: td.Namespace, TypeName: td.TypeName}
		}
		return &resolvedType{Kind: KindStruct, TypeID: wireID, Info: info, Compatible: td}, nil
	default:
		return &resolvedType{Kind: kindForWireID(wireID), TypeID: wireID}, nil
	}
}

// readReferencable is the read-side mirror of writeReferencable.
// targetType guides reads whose wire representation is ambiguous on
// its own (e.g. a generic LIST's element Go type); interfaceType is
// passed when no better target is known, in which case the canonical
// Go type for the wire kind is produced instead.
func (ctx *streamContext) readReferencable(buf *ByteBuffer, targetType reflect.Type) (reflect.Value, error) {
	flag, resolved, refID := ctx.refs.ReadRefFlag(buf)
	switch flag {
	case NullFlag:
		return reflect.Value{}, nil
	case RefFlag:
		if resolved == nil {
			return reflect.Value{}, nil
		}
		return reflect.ValueOf(resolved), nil
	}

	rt, err := ctx.readTypeIdentity(buf)
	if err != nil {
		return reflect.Value{}, err
	}
	return ctx.readBody(buf, rt, targetType, refID, flag)
}

func (ctx *streamContext) readBody(buf *ByteBuffer, rt *resolvedType, targetType reflect.Type, refID int32, flag int8) (reflect.Value, error) {
	switch rt.Kind {
	case KindPrimitive, KindScalar:
		if TypeId(rt.TypeID) == BINARY {
			b, err := ctx.readBinary(buf)
			if err != nil {
				return reflect.Value{}, err
			}
			v := reflect.ValueOf(b)
			if flag == RefValueFlag {
				ctx.refs.RegisterReadRef(refID, v.Interface())
			}
			return v, nil
		}
		ser, ok := primitiveSerializers[TypeId(rt.TypeID)]
		if !ok {
			return reflect.Value{}, &UnknownTypeIdError{TypeID: rt.TypeID}
		}
		v, err := ser.Read(ctx.fory, buf, targetType)
		if err != nil {
			return reflect.Value{}, err
		}
		if flag == RefValueFlag {
			ctx.refs.RegisterReadRef(refID, v.Interface())
		}
		return v, nil
	case KindList, KindSet:
		return ctx.readCollection(buf, rt, targetType, refID, flag)
	case KindMap:
		return ctx.readMap(buf, targetType, refID, flag)
	case KindStruct:
		return ctx.readStructValue(buf, rt, refID, flag)
	default:
		return reflect.Value{}, &UnknownTypeIdError{TypeID: rt.TypeID}
	}
}

func (ctx *streamContext) readBinary(buf *ByteBuffer) ([]byte, error) {
	isOOB := buf.ReadBool()
	if isOOB {
		idx := int(buf.ReadVarUint32())
		if idx < 0 || idx >= len(ctx.oobBuffers) {
			return nil, &RefIntegrityError{RefID: int32(idx), Reason: "out-of-band buffer index out of range"}
		}
		ob := ctx.oobBuffers[idx]
		return append([]byte(nil), ob.GetByteSlice(0, ob.WriterIndex())...), nil
	}
	v, err := binarySerializer{}.Read(ctx.fory, buf, byteSliceType)
	if err != nil {
		return nil, err
	}
	return v.Interface().([]byte), nil
}

func (ctx *streamContext) readCollection(buf *ByteBuffer, rt *resolvedType, targetType reflect.Type, refID int32, flag int8) (reflect.Value, error) {
	if ser, ok := arraySerializers[TypeId(rt.TypeID)]; ok {
		v, err := ser.Read(ctx.fory, buf, targetType)
		if err != nil {
			return reflect.Value{}, err
		}
		if flag == RefValueFlag {
			ctx.refs.RegisterReadRef(refID, v.Interface())
		}
		return v, nil
	}

	n := int(buf.ReadVarUint32())
	buf.ReadByte_() // collection header: always heterogeneous/self-describing on this wire

	isSet := TypeId(rt.TypeID) == SET
	if isSet {
		gs := GenericSet{}
		for i := 0; i < n; i++ {
			ev, err := ctx.readReferencable(buf, interfaceType)
			if err != nil {
				return reflect.Value{}, err
			}
			if ev.IsValid() {
				gs.Add(ev.Interface())
			}
		}
		if flag == RefValueFlag {
			ctx.refs.RegisterReadRef(refID, gs)
		}
		return reflect.ValueOf(gs), nil
	}

	elemType := interfaceType
	sliceType := interfaceSliceType
	if targetType != nil && targetType != interfaceType &&
		(targetType.Kind() == reflect.Slice || targetType.Kind() == reflect.Array) {
		elemType = targetType.Elem()
		sliceType = reflect.SliceOf(elemType)
	}
	out := reflect.MakeSlice(sliceType, 0, n)
	for i := 0; i < n; i++ {
		ev, err := ctx.readReferencable(buf, elemType)
		if err != nil {
			return reflect.Value{}, err
		}
		if !ev.IsValid() {
			out = reflect.Append(out, reflect.Zero(elemType))
			continue
		}
		if ev.Type() != elemType && ev.Type().ConvertibleTo(elemType) {
			ev = ev.Convert(elemType)
		}
		out = reflect.Append(out, ev)
	}
	if flag == RefValueFlag {
		ctx.refs.RegisterReadRef(refID, out.Interface())
	}
	return out, nil
}

func (ctx *streamContext) readMap(buf *ByteBuffer, targetType reflect.Type, refID int32, flag int8) (reflect.Value, error) {
	n := int(buf.ReadVarUint32())
	keyType, valType := interfaceType, interfaceType
	mapType := interfaceMapType
	if targetType != nil && targetType != interfaceType && targetType.Kind() == reflect.Map {
		keyType, valType = targetType.Key(), targetType.Elem()
		mapType = targetType
	}
	m := reflect.MakeMapWithSize(mapType, n)
	if flag == RefValueFlag {
		ctx.refs.RegisterReadRef(refID, m.Interface())
	}
	for i := 0; i < n; i++ {
		kv, err := ctx.readReferencable(buf, keyType)
		if err != nil {
			return reflect.Value{}, err
		}
		vv, err := ctx.readReferencable(buf, valType)
		if err != nil {
			return reflect.Value{}, err
		}
		if !kv.IsValid() || !vv.IsValid() {
			continue
		}
		if kv.Type() != keyType && kv.Type().ConvertibleTo(keyType) {
			kv = kv.Convert(keyType)
		}
		if vv.Type() != valType && vv.Type().ConvertibleTo(valType) {
			vv = vv.Convert(valType)
		}
		m.SetMapIndex(kv, vv)
	}
	return m, nil
}

func (ctx *streamContext) readStructValue(buf *ByteBuffer, rt *resolvedType, refID int32, flag int8) (reflect.Value, error) {
	ptr := reflect.New(rt.Info.GoType)
	if flag == RefValueFlag {
		ctx.refs.RegisterReadRef(refID, ptr.Interface())
	}
	var err error
	if rt.Compatible != nil {
		err = ctx.fillCompatibleStructFields(buf, ptr.Elem(), rt.Info, rt.Compatible)
	} else {
		err = ctx.fillStructFields(buf, ptr.Elem(), rt.Info)
	}
	if err != nil {
		return reflect.Value{}, err
	}
	return ptr.Elem(), nil
}

func (ctx *streamContext) fillStructFields(buf *ByteBuffer, sv reflect.Value, info *TypeInfo) error {
	for _, fs := range info.Fields {
		ft := sv.Field(fs.FieldIndex).Type()
		fv, err := ctx.readReferencable(buf, ft)
		if err != nil {
			return err
		}
		if fv.IsValid() {
			assign(sv.Field(fs.FieldIndex), fv)
		}
	}
	return nil
}

func wireFieldSortKey(wf *decodedFieldEntry) string {
	if wf.FieldID >= 0 {
		return fmt.Sprintf("%020d", wf.FieldID)
	}
	return toSnakeCase(wf.Name)
}

func (ctx *streamContext) fillCompatibleStructFields(buf *ByteBuffer, sv reflect.Value, info *TypeInfo, td *typeDef) error {
	localByKey := make(map[string]*FieldSpec, len(info.Fields))
	for _, fs := range info.Fields {
		localByKey[fieldSortKey(fs)] = fs
	}
	for _, wf := range td.Fields {
		local := localByKey[wireFieldSortKey(wf)]
		targetType := interfaceType
		if local != nil {
			targetType = sv.Field(local.FieldIndex).Type()
		}
		fv, err := ctx.readReferencable(buf, targetType)
		if err != nil {
			return err
		}
		if local != nil && fv.IsValid() {
			assign(sv.Field(local.FieldIndex), fv)
		}
	}
	return nil
}

// assign copies src into dst, reconciling the two most common shape
// mismatches a dynamically-typed read can produce: a pointer where a
// value was wanted (or vice versa) and a distinct-but-convertible
// numeric or named type (e.g. wire int64 into a struct field of type
// int, or wire string into a named string type).
func assign(dst, src reflect.Value) {
	if !src.IsValid() {
		return
	}
	dt, st := dst.Type(), src.Type()

	if st.Kind() == reflect.Ptr && dt.Kind() != reflect.Ptr {
		if src.IsNil() {
			return
		}
		assign(dst, src.Elem())
		return
	}
	if dt.Kind() == reflect.Ptr && st.Kind() != reflect.Ptr {
		if dt.Elem() == st && src.CanAddr() {
			// src already lives at a stable address (e.g. the
			// reflect.New'd struct a readStructValue call filled in
			// place) — reuse it instead of copying, so that a
			// self-referential field resolved via RefFlag still
			// points at the same object the caller ends up with.
			dst.Set(src.Addr())
			return
		}
		ptr := reflect.New(dt.Elem())
		assign(ptr.Elem(), src)
		dst.Set(ptr)
		return
	}
	if dt == interfaceType {
		dst.Set(src)
		return
	}
	if st != dt && st.ConvertibleTo(dt) {
		dst.Set(src.Convert(dt))
		return
	}
	dst.Set(src)
}
