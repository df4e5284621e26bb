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

// Numeric range constants mirrored from the teacher's math/bits-derived
// set, used by field ordering, date-range checks, and test fixtures.
const (
	MaxInt8  = 1<<7 - 1
	MinInt8  = -1 << 7
	MaxUint8 = 1<<8 - 1
	MaxInt16 = 1<<15 - 1
	MinInt16 = -1 << 15
	MaxInt32 = 1<<31 - 1
	MinInt32 = -1 << 31
	MaxInt64 = int64(1)<<63 - 1
	MinInt64 = -int64(1) << 63
	MaxInt   = int(^uint(0) >> 1)
	MinInt   = -MaxInt - 1
)

// Language identifies which Fory peer implementation wrote a stream.
// This module only ever writes and expects XLANG.
type Language uint8

const XLANG Language = 0

const (
	headerNullFlag      byte = 1 << 0
	headerCrossLanguage byte = 1 << 1
	headerOutOfBand     byte = 1 << 2
)

// Int16Slice is a named []int16 type used to exercise generic-LIST
// encoding of a named slice type, as opposed to the unnamed []int16
// which maps onto the dedicated INT16_ARRAY wire kind.
type Int16Slice []int16

// GenericSet is the Go representation of a cross-language SET value: an
// insertion-ordered collection of distinct elements, compared by ==.
type GenericSet struct {
	items map[interface{}]struct{}
	order []interface{}
}

// NewGenericSet returns an empty set ready for Add.
func NewGenericSet() *GenericSet {
	return &GenericSet{items: make(map[interface{}]struct{})}
}

// Add inserts v, a no-op if v is already present.
func (s *GenericSet) Add(v interface{}) {
	if s.items == nil {
		s.items = make(map[interface{}]struct{})
	}
	if _, ok := s.items[v]; ok {
		return
	}
	s.items[v] = struct{}{}
	s.order = append(s.order, v)
}

// Len reports the number of distinct elements.
func (s *GenericSet) Len() int { return len(s.order) }

// Values returns the elements in insertion order. Callers must not
// mutate the returned slice.
func (s *GenericSet) Values() []interface{} { return s.order }

// BufferObject is a chunk of binary data a Serialize call has chosen
// to hand to its callback instead of inlining, per §6's zero-copy path.
type BufferObject interface {
	ToBuffer() *ByteBuffer
}

type bufferObject struct{ buf *ByteBuffer }

func (b *bufferObject) ToBuffer() *ByteBuffer { return b.buf }

// Fory is one configured serialization endpoint: its type registry,
// reference-tracking policy, and schema-evolution mode. All of its
// state is fixed at construction and registration time; Marshal/
// Unmarshal/Serialize/Deserialize are safe to call concurrently once
// registration is complete (SPEC_FULL.md §5).
type Fory struct {
	language          Language
	referenceTracking bool
	compatible        bool
	types             *typeResolver
}

// NewFory returns a schema-consistent Fory instance: structs are
// identified by a 32-bit structure hash and both peers must agree on
// field layout exactly.
func NewFory(referenceTracking bool) *Fory {
	f := &Fory{language: XLANG, referenceTracking: referenceTracking}
	f.types = newTypeResolver(f)
	return f
}

// NewForyWithCompatible returns a Fory instance in compatible
// (schema-evolution) mode: structs carry a full TypeMeta descriptor so
// readers missing or gaining fields relative to the writer still decode.
func NewForyWithCompatible(referenceTracking bool) *Fory {
	f := NewFory(referenceTracking)
	f.compatible = true
	return f
}

// RegisterTagType registers instance's type under a dotted cross-language
// tag, e.g. "example.Foo"; the last '.'-separated component becomes the
// type name, everything before it the namespace.
func (f *Fory) RegisterTagType(tag string, instance interface{}) error {
	return f.types.RegisterTagType(tag, instance)
}

// RegisterType registers instance's type under a plain numeric id
// (>=64; ids below that are reserved for built-ins).
func (f *Fory) RegisterType(id int32, instance interface{}) error {
	return f.types.RegisterType(id, instance)
}

func toError(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("fory: %v", r)
}

// Marshal serializes value into a new byte slice.
func (f *Fory) Marshal(value interface{}) ([]byte, error) {
	buf := NewByteBuffer(nil)
	if err := f.Serialize(buf, value, nil); err != nil {
		return nil, err
	}
	return buf.GetByteSlice(0, buf.WriterIndex()), nil
}

// Unmarshal decodes data into out, which must be a non-nil pointer.
// A pointer-to-pointer (e.g. **Node) is accepted, so the caller can end
// up holding a populated *Node.
func (f *Fory) Unmarshal(data []byte, out interface{}) error {
	return f.Deserialize(NewByteBuffer(data), out, nil)
}

// Serialize writes value into buf. When callback is non-nil, every
// []byte-typed BINARY value encountered is offered to it; a true
// return takes the bytes out-of-band (only the buffer's index is
// inlined), a false return inlines them as usual.
func (f *Fory) Serialize(buf *ByteBuffer, value interface{}, callback func(BufferObject) bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = toError(r)
		}
	}()

	v := reflect.ValueOf(value)
	if v.IsValid() && v.Kind() == reflect.Ptr && !v.IsNil() {
		switch v.Elem().Kind() {
		case reflect.Ptr:
			return &InvalidValueError{Reason: "pointer to pointer is not allowed"}
		case reflect.Interface:
			return &InvalidValueError{Reason: "pointer to interface is not allowed"}
		}
	}

	header := headerCrossLanguage
	isNil := !v.IsValid() || isNilableKind(v.Kind()) && v.IsNil()
	if isNil {
		buf.WriteByte_(header | headerNullFlag)
		return nil
	}
	buf.WriteByte_(header)

	ctx := f.newWriteContext()
	ctx.oobCallback = callback
	return ctx.writeReferencable(buf, v)
}

// Deserialize reads one value from buf into out. buffers supplies the
// out-of-band BINARY payloads a matching Serialize call offered to its
// callback, indexed in the order they were produced.
func (f *Fory) Deserialize(buf *ByteBuffer, out interface{}, buffers []*ByteBuffer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = toError(r)
		}
	}()

	outVal := reflect.ValueOf(out)
	if outVal.Kind() != reflect.Ptr || outVal.IsNil() {
		return &InvalidValueError{Reason: "Deserialize target must be a non-nil pointer"}
	}

	header := buf.ReadByte_()
	if header&headerCrossLanguage == 0 {
		return &UnsupportedStreamError{Reason: "stream does not assert cross-language"}
	}
	if header&headerOutOfBand != 0 {
		return &UnsupportedStreamError{Reason: "out-of-band streams are not supported"}
	}
	if header&headerNullFlag != 0 {
		outVal.Elem().Set(reflect.Zero(outVal.Elem().Type()))
		return nil
	}

	ctx := f.newReadContext()
	ctx.oobBuffers = buffers
	v, err := ctx.readReferencable(buf, outVal.Elem().Type())
	if err != nil {
		return err
	}
	if v.IsValid() {
		assign(outVal.Elem(), v)
	}
	return nil
}

func isNilableKind(k reflect.Kind) bool {
	switch k {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return true
	default:
		return false
	}
}

// Default package-level Fory instance backing the Marshal/Unmarshal
// convenience functions, with reference tracking enabled.
var defaultFory = NewFory(true)

// Marshal serializes value using the shared default Fory instance.
func Marshal(value interface{}) ([]byte, error) { return defaultFory.Marshal(value) }

// Unmarshal decodes data using the shared default Fory instance.
func Unmarshal(data []byte, out interface{}) error { return defaultFory.Unmarshal(data, out) }

// RegisterTagType registers instance on the shared default Fory instance.
func RegisterTagType(tag string, instance interface{}) error {
	return defaultFory.RegisterTagType(tag, instance)
}

// RegisterType registers instance on the shared default Fory instance.
func RegisterType(id int32, instance interface{}) error {
	return defaultFory.RegisterType(id, instance)
}
