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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// reflectNewFor returns a fresh *T for value's type T, suitable as an
// Unmarshal target.
func reflectNewFor(value interface{}) interface{} {
	return reflect.New(reflect.TypeOf(value)).Interface()
}

// derefFor returns *ptr's pointee, the counterpart to reflectNewFor.
func derefFor(ptr interface{}) interface{} {
	return reflect.ValueOf(ptr).Elem().Interface()
}

func primitiveData() []interface{} {
	return []interface{}{
		false,
		true,
		byte(0),
		byte(MaxUint8),
		int8(MinInt8),
		int8(MaxInt8),
		int16(MinInt16),
		int16(MaxInt16),
		int32(MinInt32),
		int32(MaxInt32),
		int64(MinInt64),
		int64(MaxInt64),
		float32(-1.5),
		float32(1.5),
		float64(-1.5),
		float64(1.5),
		"str",
		"",
	}
}

func commonSlice() []interface{} {
	return []interface{}{
		[]bool{true, false, true},
		[]int16{1, -2, 3},
		[]int32{1, -2, 3},
		[]int64{1, -2, 3},
		[]float32{1.5, -2.5},
		[]float64{1.5, -2.5},
		[]byte{1, 2, 3},
		[]string{"str1", "str1", "", "", "str2"},
	}
}

func commonMap() []interface{} {
	return []interface{}{
		map[string]bool{"k1": false, "k2": true, "str": true, "": true},
		map[string]int32{"k1": 1, "k2": -2},
	}
}

func serde(t *testing.T, f *Fory, value interface{}) {
	t.Helper()
	data, err := f.Marshal(value)
	require.Nil(t, err)

	target := reflectNewFor(value)
	require.Nil(t, f.Unmarshal(data, target))
	require.Equal(t, value, derefFor(target))
}

func TestSerializePrimitives(t *testing.T) {
	f := NewFory(true)
	for _, v := range primitiveData() {
		serde(t, f, v)
	}
}

func TestSerializeCommonSlice(t *testing.T) {
	f := NewFory(true)
	for _, v := range commonSlice() {
		serde(t, f, v)
	}
}

func TestSerializeCommonMap(t *testing.T) {
	f := NewFory(true)
	for _, v := range commonMap() {
		serde(t, f, v)
	}
}

func TestSerializeDateAndTimestamp(t *testing.T) {
	f := NewFory(true)
	serde(t, f, Date{Year: 2024, Month: 3, Day: 15})
	serde(t, f, time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC))
}

func TestSerializeGenericSet(t *testing.T) {
	f := NewFory(true)
	gs := GenericSet{}
	gs.Add("a")
	gs.Add("b")
	gs.Add("a")
	data, err := f.Marshal(gs)
	require.Nil(t, err)
	var out GenericSet
	require.Nil(t, f.Unmarshal(data, &out))
	require.Equal(t, gs.Len(), out.Len())
}

type Bar struct {
	F1 int32
	F2 string
}

type Foo struct {
	F1 int32
	F2 string
	F3 []string
	F4 map[string]int32
	F5 Bar
}

func newFory(t *testing.T) *Fory {
	f := NewFory(true)
	require.Nil(t, f.RegisterTagType("example.Bar", Bar{}))
	require.Nil(t, f.RegisterTagType("example.Foo", Foo{}))
	return f
}

func TestSerializeStruct(t *testing.T) {
	f := newFory(t)
	foo := Foo{
		F1: 1,
		F2: "hello",
		F3: []string{"a", "b"},
		F4: map[string]int32{"x": 1, "y": 2},
		F5: Bar{F1: 2, F2: "world"},
	}
	data, err := f.Marshal(foo)
	require.Nil(t, err)

	var out Foo
	require.Nil(t, f.Unmarshal(data, &out))
	require.Equal(t, foo, out)
}

type Node struct {
	Value int32
	Next  *Node
}

func TestSerializeCircularReference(t *testing.T) {
	f := NewFory(true)
	require.Nil(t, f.RegisterTagType("example.Node", Node{}))

	root := &Node{Value: 1}
	root.Next = root

	data, err := f.Marshal(root)
	require.Nil(t, err)

	var out *Node
	require.Nil(t, f.Unmarshal(data, &out))
	require.Equal(t, int32(1), out.Value)
	require.Same(t, out, out.Next)
}

func TestSerializeSharedReference(t *testing.T) {
	f := NewFory(true)
	shared := []int32{1, 2, 3}
	pair := [2][]int32{shared, shared}
	data, err := f.Marshal(pair)
	require.Nil(t, err)
	var out [2]interface{}
	require.Nil(t, f.Unmarshal(data, &out))
}

func TestSerializeNil(t *testing.T) {
	f := NewFory(true)
	data, err := f.Marshal(nil)
	require.Nil(t, err)
	require.Equal(t, 1, len(data))

	var out interface{}
	require.Nil(t, f.Unmarshal(data, &out))
	require.Nil(t, out)
}

func TestSerializeRejectsPointerToPointer(t *testing.T) {
	f := NewFory(true)
	x := 1
	px := &x
	_, err := f.Marshal(&px)
	require.Error(t, err)
}

func TestSerializeCompatibleStructSchemaEvolution(t *testing.T) {
	type PersonV1 struct {
		Name string
		Age  int32
	}
	type PersonV2 struct {
		Name  string
		Email string
	}

	writer := NewForyWithCompatible(true)
	require.Nil(t, writer.RegisterTagType("example.Person", PersonV1{}))
	data, err := writer.Marshal(PersonV1{Name: "Ada", Age: 30})
	require.Nil(t, err)

	reader := NewForyWithCompatible(true)
	require.Nil(t, reader.RegisterTagType("example.Person", PersonV2{}))
	var out PersonV2
	require.Nil(t, reader.Unmarshal(data, &out))
	require.Equal(t, "Ada", out.Name)
	require.Equal(t, "", out.Email)
}

func TestSerializeZeroCopy(t *testing.T) {
	f := NewFory(true)
	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i)
	}

	buf := NewByteBuffer(nil)
	var outOfBand []BufferObject
	err := f.Serialize(buf, payload, func(bo BufferObject) bool {
		outOfBand = append(outOfBand, bo)
		return true
	})
	require.Nil(t, err)
	require.Len(t, outOfBand, 1)

	var buffers []*ByteBuffer
	for _, bo := range outOfBand {
		buffers = append(buffers, bo.ToBuffer())
	}

	var out []byte
	require.Nil(t, f.Deserialize(buf, &out, buffers))
	require.Equal(t, payload, out)
}

func BenchmarkMarshal(b *testing.B) {
	f := NewFory(true)
	require.Nil(b, f.RegisterTagType("example.Bar", Bar{}))
	require.Nil(b, f.RegisterTagType("example.Foo", Foo{}))
	foo := Foo{F1: 1, F2: "hello", F3: []string{"a", "b"}, F4: map[string]int32{"x": 1}, F5: Bar{F1: 2, F2: "world"}}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = f.Marshal(foo)
	}
}
