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
	"reflect"
	"time"
)

// Serializer writes and reads the body bytes for one wire kind. The
// driver (fory.go) owns the surrounding flag/ref/type-id bytes (§4.F);
// a Serializer only ever sees the body.
type Serializer interface {
	TypeId() TypeId
	Write(f *Fory, buf *ByteBuffer, v reflect.Value) error
	Read(f *Fory, buf *ByteBuffer, type_ reflect.Type) (reflect.Value, error)
}

// --- primitives ---

type boolSerializer struct{}

func (boolSerializer) TypeId() TypeId { return BOOL }
func (boolSerializer) Write(f *Fory, buf *ByteBuffer, v reflect.Value) error {
	buf.WriteBool(v.Bool())
	return nil
}
func (boolSerializer) Read(f *Fory, buf *ByteBuffer, t reflect.Type) (reflect.Value, error) {
	return reflect.ValueOf(buf.ReadBool()), nil
}

type byteSerializer struct{}

func (byteSerializer) TypeId() TypeId { return UINT8 }
func (byteSerializer) Write(f *Fory, buf *ByteBuffer, v reflect.Value) error {
	buf.WriteByte_(byte(v.Uint()))
	return nil
}
func (byteSerializer) Read(f *Fory, buf *ByteBuffer, t reflect.Type) (reflect.Value, error) {
	return reflect.ValueOf(buf.ReadByte_()), nil
}

type int8Serializer struct{}

func (int8Serializer) TypeId() TypeId { return INT8 }
func (int8Serializer) Write(f *Fory, buf *ByteBuffer, v reflect.Value) error {
	buf.WriteInt8(int8(v.Int()))
	return nil
}
func (int8Serializer) Read(f *Fory, buf *ByteBuffer, t reflect.Type) (reflect.Value, error) {
	return reflect.ValueOf(buf.ReadInt8()), nil
}

type int16Serializer struct{}

func (int16Serializer) TypeId() TypeId { return INT16 }
func (int16Serializer) Write(f *Fory, buf *ByteBuffer, v reflect.Value) error {
	buf.WriteInt16(int16(v.Int()))
	return nil
}
func (int16Serializer) Read(f *Fory, buf *ByteBuffer, t reflect.Type) (reflect.Value, error) {
	return reflect.ValueOf(buf.ReadInt16()), nil
}

type int32Serializer struct{}

func (int32Serializer) TypeId() TypeId { return INT32 }
func (int32Serializer) Write(f *Fory, buf *ByteBuffer, v reflect.Value) error {
	buf.WriteInt32(int32(v.Int()))
	return nil
}
func (int32Serializer) Read(f *Fory, buf *ByteBuffer, t reflect.Type) (reflect.Value, error) {
	return reflect.ValueOf(buf.ReadInt32()), nil
}

type int64Serializer struct{}

func (int64Serializer) TypeId() TypeId { return INT64 }
func (int64Serializer) Write(f *Fory, buf *ByteBuffer, v reflect.Value) error {
	buf.WriteInt64(v.Int())
	return nil
}
func (int64Serializer) Read(f *Fory, buf *ByteBuffer, t reflect.Type) (reflect.Value, error) {
	return reflect.ValueOf(buf.ReadInt64()), nil
}

type float32Serializer struct{}

func (float32Serializer) TypeId() TypeId { return FLOAT }
func (float32Serializer) Write(f *Fory, buf *ByteBuffer, v reflect.Value) error {
	buf.WriteFloat32(float32(v.Float()))
	return nil
}
func (float32Serializer) Read(f *Fory, buf *ByteBuffer, t reflect.Type) (reflect.Value, error) {
	return reflect.ValueOf(buf.ReadFloat32()), nil
}

type float64Serializer struct{}

func (float64Serializer) TypeId() TypeId { return DOUBLE }
func (float64Serializer) Write(f *Fory, buf *ByteBuffer, v reflect.Value) error {
	buf.WriteFloat64(v.Float())
	return nil
}
func (float64Serializer) Read(f *Fory, buf *ByteBuffer, t reflect.Type) (reflect.Value, error) {
	return reflect.ValueOf(buf.ReadFloat64()), nil
}

type stringSerializer struct{}

func (stringSerializer) TypeId() TypeId { return STRING }
func (stringSerializer) Write(f *Fory, buf *ByteBuffer, v reflect.Value) error {
	s := v.String()
	buf.WriteVarUint32(uint32(len(s)))
	buf.WriteBinary([]byte(s))
	return nil
}
func (stringSerializer) Read(f *Fory, buf *ByteBuffer, t reflect.Type) (reflect.Value, error) {
	n := buf.ReadVarUint32()
	b := buf.ReadBinary(int(n))
	return reflect.ValueOf(string(b)), nil
}

type binarySerializer struct{}

func (binarySerializer) TypeId() TypeId { return BINARY }
func (binarySerializer) Write(f *Fory, buf *ByteBuffer, v reflect.Value) error {
	b := v.Bytes()
	buf.WriteVarUint32(uint32(len(b)))
	buf.WriteBinary(b)
	return nil
}
func (binarySerializer) Read(f *Fory, buf *ByteBuffer, t reflect.Type) (reflect.Value, error) {
	n := buf.ReadVarUint32()
	b := append([]byte(nil), buf.ReadBinary(int(n))...)
	return reflect.ValueOf(b), nil
}

// --- date / timestamp ---

// Date is a wall-clock calendar date with no time-of-day or timezone
// component, wire-encoded as a signed 32-bit epoch-day count.
type Date struct {
	Year  int
	Month int
	Day   int
}

func (d Date) toTime() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

func dateFromEpochDay(days int32) Date {
	t := time.Unix(int64(days)*86400, 0).UTC()
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

func (d Date) epochDay() (int32, error) {
	days := d.toTime().Unix() / 86400
	if days > int64(MaxInt32) || days < int64(MinInt32) {
		return 0, &InvalidValueError{Reason: "date outside int32 epoch-day range"}
	}
	return int32(days), nil
}

type dateSerializer struct{}

func (dateSerializer) TypeId() TypeId { return LOCAL_DATE }
func (dateSerializer) Write(f *Fory, buf *ByteBuffer, v reflect.Value) error {
	d := v.Interface().(Date)
	days, err := d.epochDay()
	if err != nil {
		return err
	}
	buf.WriteInt32(days)
	return nil
}
func (dateSerializer) Read(f *Fory, buf *ByteBuffer, t reflect.Type) (reflect.Value, error) {
	return reflect.ValueOf(dateFromEpochDay(buf.ReadInt32())), nil
}

type timeSerializer struct{}

func (timeSerializer) TypeId() TypeId { return TIMESTAMP }
func (timeSerializer) Write(f *Fory, buf *ByteBuffer, v reflect.Value) error {
	t := v.Interface().(time.Time)
	nanos := t.Nanosecond()
	if nanos < 0 || nanos >= 1e9 {
		return &InvalidValueError{Reason: "timestamp nanoseconds out of range"}
	}
	buf.WriteInt64(t.Unix())
	buf.WriteInt32(int32(nanos))
	return nil
}
func (timeSerializer) Read(f *Fory, buf *ByteBuffer, t reflect.Type) (reflect.Value, error) {
	secs := buf.ReadInt64()
	nanos := buf.ReadInt32()
	return reflect.ValueOf(time.Unix(secs, int64(nanos)).UTC()), nil
}

// --- typed primitive arrays (§4.F): varuint32 length then raw LE elements ---

type boolSliceSerializer struct{}

func (boolSliceSerializer) TypeId() TypeId { return BOOL_ARRAY }
func (boolSliceSerializer) Write(f *Fory, buf *ByteBuffer, v reflect.Value) error {
	n := v.Len()
	buf.WriteVarUint32(uint32(n))
	for i := 0; i < n; i++ {
		buf.WriteBool(v.Index(i).Bool())
	}
	return nil
}
func (boolSliceSerializer) Read(f *Fory, buf *ByteBuffer, t reflect.Type) (reflect.Value, error) {
	n := int(buf.ReadVarUint32())
	out := make([]bool, n)
	for i := range out {
		out[i] = buf.ReadBool()
	}
	return reflect.ValueOf(out), nil
}

type int16SliceSerializer struct{}

func (int16SliceSerializer) TypeId() TypeId { return INT16_ARRAY }
func (int16SliceSerializer) Write(f *Fory, buf *ByteBuffer, v reflect.Value) error {
	n := v.Len()
	buf.WriteVarUint32(uint32(n))
	for i := 0; i < n; i++ {
		buf.WriteInt16(int16(v.Index(i).Int()))
	}
	return nil
}
func (int16SliceSerializer) Read(f *Fory, buf *ByteBuffer, t reflect.Type) (reflect.Value, error) {
	n := int(buf.ReadVarUint32())
	out := make([]int16, n)
	for i := range out {
		out[i] = buf.ReadInt16()
	}
	return reflect.ValueOf(out), nil
}

type int32SliceSerializer struct{}

func (int32SliceSerializer) TypeId() TypeId { return INT32_ARRAY }
func (int32SliceSerializer) Write(f *Fory, buf *ByteBuffer, v reflect.Value) error {
	n := v.Len()
	buf.WriteVarUint32(uint32(n))
	for i := 0; i < n; i++ {
		buf.WriteInt32(int32(v.Index(i).Int()))
	}
	return nil
}
func (int32SliceSerializer) Read(f *Fory, buf *ByteBuffer, t reflect.Type) (reflect.Value, error) {
	n := int(buf.ReadVarUint32())
	out := make([]int32, n)
	for i := range out {
		out[i] = buf.ReadInt32()
	}
	return reflect.ValueOf(out), nil
}

type int64SliceSerializer struct{}

func (int64SliceSerializer) TypeId() TypeId { return INT64_ARRAY }
func (int64SliceSerializer) Write(f *Fory, buf *ByteBuffer, v reflect.Value) error {
	n := v.Len()
	buf.WriteVarUint32(uint32(n))
	for i := 0; i < n; i++ {
		buf.WriteInt64(v.Index(i).Int())
	}
	return nil
}
func (int64SliceSerializer) Read(f *Fory, buf *ByteBuffer, t reflect.Type) (reflect.Value, error) {
	n := int(buf.ReadVarUint32())
	out := make([]int64, n)
	for i := range out {
		out[i] = buf.ReadInt64()
	}
	return reflect.ValueOf(out), nil
}

type float32SliceSerializer struct{}

func (float32SliceSerializer) TypeId() TypeId { return FLOAT32_ARRAY }
func (float32SliceSerializer) Write(f *Fory, buf *ByteBuffer, v reflect.Value) error {
	n := v.Len()
	buf.WriteVarUint32(uint32(n))
	for i := 0; i < n; i++ {
		buf.WriteFloat32(float32(v.Index(i).Float()))
	}
	return nil
}
func (float32SliceSerializer) Read(f *Fory, buf *ByteBuffer, t reflect.Type) (reflect.Value, error) {
	n := int(buf.ReadVarUint32())
	out := make([]float32, n)
	for i := range out {
		out[i] = buf.ReadFloat32()
	}
	return reflect.ValueOf(out), nil
}

type float64SliceSerializer struct{}

func (float64SliceSerializer) TypeId() TypeId { return FLOAT64_ARRAY }
func (float64SliceSerializer) Write(f *Fory, buf *ByteBuffer, v reflect.Value) error {
	n := v.Len()
	buf.WriteVarUint32(uint32(n))
	for i := 0; i < n; i++ {
		buf.WriteFloat64(v.Index(i).Float())
	}
	return nil
}
func (float64SliceSerializer) Read(f *Fory, buf *ByteBuffer, t reflect.Type) (reflect.Value, error) {
	n := int(buf.ReadVarUint32())
	out := make([]float64, n)
	for i := range out {
		out[i] = buf.ReadFloat64()
	}
	return reflect.ValueOf(out), nil
}
