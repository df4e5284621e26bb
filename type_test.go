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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypeResolverRegistration(t *testing.T) {
	f := NewFory(false)

	type A struct {
		F1 string
	}
	require.Nil(t, f.RegisterTagType("example.A", A{}))
	require.Error(t, f.RegisterTagType("example.A", A{}))

	info, ok := f.types.getTypeInfoByName("example", "A")
	require.True(t, ok)
	require.Equal(t, reflect.TypeOf(A{}), info.GoType)
	require.True(t, info.named())

	type B struct {
		F1 int32
	}
	require.Nil(t, f.RegisterType(64, B{}))
	require.Error(t, f.RegisterType(64, struct{ X int }{}))

	bInfo, ok := f.types.getTypeInfoByNumericID(64)
	require.True(t, ok)
	require.False(t, bInfo.named())
}

func TestFieldOrdering(t *testing.T) {
	f := NewFory(false)

	type Ordered struct {
		Name    string
		Tags    []string
		Active  bool
		Count   int32
		Ratio   float64
		Nested  *Ordered
		Lookup  map[string]int32
		Friends GenericSet
	}
	require.Nil(t, f.RegisterTagType("example.Ordered", Ordered{}))
	info, _ := f.types.getTypeInfoByName("example", "Ordered")

	// Primitive, non-nullable fields must sort before every other bin.
	require.Equal(t, KindPrimitive, info.Fields[0].FieldType.Kind)
	require.False(t, info.Fields[0].Nullable)

	// Bins must be non-decreasing across the whole ordering.
	lastBin := 0
	for _, fs := range info.Fields {
		bin := fieldBin(fs)
		require.GreaterOrEqual(t, bin, lastBin)
		lastBin = bin
	}
}

func TestStructureHashStableAcrossFieldOrder(t *testing.T) {
	f1 := NewFory(false)
	type First struct {
		A int32
		B string
	}
	require.Nil(t, f1.RegisterTagType("example.Same", First{}))
	info1, _ := f1.types.getTypeInfoByName("example", "Same")

	f2 := NewFory(false)
	type Second struct {
		B string
		A int32
	}
	require.Nil(t, f2.RegisterTagType("example.Same", Second{}))
	info2, _ := f2.types.getTypeInfoByName("example", "Same")

	require.Equal(t, info1.StructureHash, info2.StructureHash)
}

// Test slice type classification and serialization behavior
func TestSliceTypeClassification(t *testing.T) {
	t.Run("Type reflection properties", func(t *testing.T) {
		primitiveSlice := []int16{1, 2, 3}
		primitiveType := reflect.TypeOf(primitiveSlice)
		require.Equal(t, "", primitiveType.Name(), "[]int16 should have empty Name()")
		require.Equal(t, reflect.Slice, primitiveType.Kind())
		require.Equal(t, reflect.Int16, primitiveType.Elem().Kind())

		namedSlice := Int16Slice{4, 5, 6}
		namedType := reflect.TypeOf(namedSlice)
		require.Equal(t, "Int16Slice", namedType.Name(), "Int16Slice should have non-empty Name()")
		require.Equal(t, reflect.Slice, namedType.Kind())
		require.Equal(t, reflect.Int16, namedType.Elem().Kind())

		var f12 Int16Slice
		f12 = []int16{-1, 4}
		require.Equal(t, Int16Slice{-1, 4}, f12)
		require.Equal(t, "Int16Slice", reflect.TypeOf(f12).Name())
	})

	t.Run("Primitive slice array classification", func(t *testing.T) {
		testCases := []struct {
			name     string
			value    interface{}
			expected bool
			comment  string
		}{
			{"[]int16", []int16{1, 2, 3}, true, "primitive slice -> array"},
			{"Int16Slice", Int16Slice{4, 5, 6}, false, "named type -> list"},
			{"[]int", []int{1, 2, 3}, false, "generic type -> list"},
			{"[]int32", []int32{1, 2}, true, "primitive slice -> array"},
			{"[]float32", []float32{1.0, 2.0}, true, "primitive slice -> array"},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				typ := reflect.TypeOf(tc.value)
				result := isPrimitiveSliceOrArrayType(typ)
				require.Equal(t, tc.expected, result,
					fmt.Sprintf("%s: %s", tc.name, tc.comment))
			})
		}
	})
}

// Test serialization behavior of different slice types
func TestPrimitiveSliceArrayMapping(t *testing.T) {
	fory_ := NewFory(true)

	t.Run("Primitive slice serialization", func(t *testing.T) {
		primitiveSlice := []int16{1, 2, 3}
		buffer := NewByteBuffer(nil)
		err := fory_.Serialize(buffer, primitiveSlice, nil)
		require.Nil(t, err, "Primitive slice should serialize successfully")
	})

	t.Run("Named slice serialization", func(t *testing.T) {
		namedSlice := Int16Slice{4, 5, 6}
		buffer := NewByteBuffer(nil)
		err := fory_.Serialize(buffer, namedSlice, nil)
		require.Nil(t, err, "Named slice should serialize successfully")
	})
}
