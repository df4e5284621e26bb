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

import "reflect"

// refIdentity returns a comparable key that identifies the underlying
// storage v points at, suitable for RefResolver's write-side dedup
// map, plus whether v's kind is one where identity dedup makes sense
// at all. Pointers, maps, slices and channels share storage across Go
// values that are == by reflect.DeepEqual but not by ==, so identity
// is taken from the runtime pointer rather than the reflect.Value
// itself. Struct and array values have no sharable storage — two
// occurrences of the same struct value are independent copies, not a
// cycle — and may not even be comparable (a struct embedding a slice
// or map field panics if used as a map key), so they are reported as
// untrackable rather than risking that panic. Every other kind
// (strings, numbers, bools) is keyed by its value, so equal scalars
// written twice in one stream share a single ref-id.
func refIdentity(v reflect.Value) (identity interface{}, trackable bool) {
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.UnsafePointer, reflect.Slice:
		return v.Pointer(), true
	case reflect.Struct, reflect.Array:
		return nil, false
	default:
		return v.Interface(), true
	}
}

// Reference flags written ahead of every reference-trackable value,
// per §4.C.
const (
	NullFlag         int8 = -3
	RefFlag          int8 = -2
	NotNullValueFlag int8 = -1
	RefValueFlag     int8 = 0
)

// RefResolver is the per-stream write/read cursor over previously seen
// values. It is created fresh for every top-level Marshal/Unmarshal
// call; trackingEnabled false collapses every non-null value to
// NotNullValueFlag so identity is never checked or recorded, matching
// a Fory instance constructed without reference tracking.
type RefResolver struct {
	trackingEnabled bool

	// write side: identity -> previously assigned ref-id.
	writtenRefs map[interface{}]int32
	nextWriteID int32

	// read side: ref-id -> object (possibly partially constructed).
	readObjects []interface{}
}

func newRefResolver(trackingEnabled bool) *RefResolver {
	r := &RefResolver{trackingEnabled: trackingEnabled}
	if trackingEnabled {
		r.writtenRefs = make(map[interface{}]int32)
	}
	return r
}

func (r *RefResolver) Reset() {
	if r.trackingEnabled {
		r.writtenRefs = make(map[interface{}]int32)
	}
	r.nextWriteID = 0
	r.readObjects = r.readObjects[:0]
}

// WriteRefOrNull writes the NULL/REF/NOT_NULL_VALUE flags for isNil
// and, when trackingEnabled, trackable and identity is a value already
// seen this stream, the REF flag plus its ref-id. It returns true when
// the caller must still serialize the value body (REF_VALUE or
// NOT_NULL_VALUE); identity is the value's reference identity (a
// pointer, map, or slice header — whatever comparably identifies the
// same underlying object across multiple visits) and is ignored when
// isNil is true, tracking is disabled, or trackable is false.
func (r *RefResolver) WriteRefOrNull(buf *ByteBuffer, isNil bool, identity interface{}, trackable bool) (shouldWrite bool, refID int32) {
	if isNil {
		buf.WriteInt8(NullFlag)
		return false, -1
	}
	if !r.trackingEnabled || !trackable {
		buf.WriteInt8(NotNullValueFlag)
		return true, -1
	}
	if prior, ok := r.writtenRefs[identity]; ok {
		buf.WriteInt8(RefFlag)
		buf.WriteVarUint32(uint32(prior))
		return false, prior
	}
	id := r.nextWriteID
	r.nextWriteID++
	r.writtenRefs[identity] = id
	buf.WriteInt8(RefValueFlag)
	return true, id
}

// ReadRefFlag reads the flag byte and, for REF, resolves and returns
// the previously registered object (second return true). For
// REF_VALUE it reserves the next read slot and returns its id via
// refID so the caller can RegisterReadRef once the container exists,
// before recursing into its fields. For NULL and NOT_NULL_VALUE no
// slot is reserved.
func (r *RefResolver) ReadRefFlag(buf *ByteBuffer) (flag int8, resolved interface{}, refID int32) {
	flag = buf.ReadInt8()
	switch flag {
	case NullFlag, NotNullValueFlag:
		return flag, nil, -1
	case RefFlag:
		idx := buf.ReadVarUint32()
		if int(idx) >= len(r.readObjects) || r.readObjects[idx] == nil {
			panic(&RefIntegrityError{RefID: int32(idx), Reason: "ref points to unregistered slot"})
		}
		return flag, r.readObjects[idx], -1
	case RefValueFlag:
		id := int32(len(r.readObjects))
		r.readObjects = append(r.readObjects, nil)
		return flag, nil, id
	default:
		panic(&RefIntegrityError{RefID: int32(flag), Reason: "unknown reference flag"})
	}
}

// RegisterReadRef fills a previously reserved REF_VALUE slot. It must
// be called before recursing into the container's fields so that a
// self-referential cycle resolves to the same (partially constructed)
// object.
func (r *RefResolver) RegisterReadRef(refID int32, obj interface{}) {
	r.readObjects[refID] = obj
}
