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
	"sort"
	"strings"
	"time"

	"github.com/apache/fory-sub004/meta"
)

type TypeId = int16

const (
	NA                      TypeId = iota // NA = 0
	BOOL                           = 1
	INT8                           = 2
	INT16                          = 3
	INT32                          = 4
	VAR_INT32                      = 5
	INT64                          = 6
	VAR_INT64                      = 7
	SLI_INT64                      = 8
	UINT8                          = 9
	FLOAT                          = 10
	DOUBLE                         = 11
	STRING                         = 12
	ENUM                           = 13
	NAMED_ENUM                     = 14
	STRUCT                         = 15
	COMPATIBLE_STRUCT              = 16
	NAMED_STRUCT                   = 17
	NAMED_COMPATIBLE_STRUCT        = 18
	EXT                            = 19
	NAMED_EXT                      = 20
	LIST                           = 21
	SET                            = 22
	MAP                            = 23
	DURATION                       = 24
	TIMESTAMP                      = 25
	LOCAL_DATE                     = 26
	DECIMAL128                     = 27
	BINARY                         = 28
	ARRAY                          = 29

	BOOL_ARRAY    = 30
	INT8_ARRAY    = 31
	INT16_ARRAY   = 32
	INT32_ARRAY   = 33
	INT64_ARRAY   = 34
	FLOAT32_ARRAY = 35
	FLOAT64_ARRAY = 36

	DECIMAL = DECIMAL128
)

var namedTypes = map[TypeId]struct{}{
	NAMED_EXT:               {},
	NAMED_ENUM:              {},
	NAMED_STRUCT:            {},
	NAMED_COMPATIBLE_STRUCT: {},
}

// IsNamespacedType reports whether typeID's identity on the wire is
// carried by a namespace/type-name MetaString pair rather than a plain
// numeric id.
func IsNamespacedType(typeID TypeId) bool {
	_, exists := namedTypes[typeID]
	return exists
}

func isPrimitiveType(typeID int16) bool {
	switch typeID {
	case BOOL, INT8, INT16, INT32, INT64, FLOAT, DOUBLE:
		return true
	default:
		return false
	}
}

func isListType(typeID int16) bool { return typeID == LIST }
func isMapType(typeID int16) bool  { return typeID == MAP }

func isPrimitiveArrayType(typeID int16) bool {
	switch typeID {
	case BOOL_ARRAY, INT8_ARRAY, INT16_ARRAY, INT32_ARRAY, INT64_ARRAY, FLOAT32_ARRAY, FLOAT64_ARRAY:
		return true
	default:
		return false
	}
}

var primitiveTypeSizes = map[int16]int{
	BOOL:      1,
	INT8:      1,
	INT16:     2,
	INT32:     4,
	VAR_INT32: 4,
	INT64:     8,
	VAR_INT64: 8,
	FLOAT:     4,
	DOUBLE:    8,
}

func getPrimitiveTypeSize(typeID int16) int {
	if sz, ok := primitiveTypeSizes[typeID]; ok {
		return sz
	}
	return -1
}

// isCompressedType reports whether typeID uses a variable-width
// encoding (var-int32/var-int64), the tie-break spec.md's field
// ordering calls "compressed".
func isCompressedType(typeID int16) bool {
	return typeID == VAR_INT32 || typeID == VAR_INT64
}

// computeStringHash reproduces the fold-on-overflow recurrence
// structure hashing is built on: hash = hash*31 + x, dividing by 7
// whenever the accumulator would leave the signed 32-bit range.
func computeStringHash(str string) int32 {
	var hash int64 = 17
	for i := 0; i < len(str); i++ {
		hash = hash*31 + int64(str[i])
		for hash >= int64(MaxInt32) {
			hash = hash / 7
		}
	}
	return int32(hash)
}

// Kind classifies a registered TypeInfo the way spec.md's data model
// does; it drives both field-bin placement and serializer dispatch.
type Kind int

const (
	KindPrimitive Kind = iota
	KindBoxed          // pointer-to-primitive: nullable primitive
	KindScalar         // string, date, timestamp, binary
	KindList
	KindSet
	KindMap
	KindStruct
	KindEnum
	KindExt
)

// FieldSpec describes one field of a registered struct: its wire
// type, nullability, ref-tracking, and optional numeric field id.
// Exactly one of FieldID (>=0) or Name (non-empty) determines its
// sort-key; see fieldSortKey.
type FieldSpec struct {
	Name        string
	FieldIndex  int // index into the Go struct's fields
	FieldType   *TypeInfo
	Nullable    bool
	TrackingRef bool
	FieldID     int32 // -1 when absent
}

func fieldSortKey(f *FieldSpec) string {
	if f.FieldID >= 0 {
		return fmt.Sprintf("%020d", f.FieldID)
	}
	return toSnakeCase(f.Name)
}

func toSnakeCase(s string) string {
	var sb strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				sb.WriteByte('_')
			}
			sb.WriteRune(r - 'A' + 'a')
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// TypeInfo is the immutable, post-registration description of a
// user or built-in type: its wire identity, kind, and — for structs —
// its sorted field list and structure hash. TypeInfos never change
// after registerType returns; they may be shared freely across
// streams (§5).
type TypeInfo struct {
	GoType reflect.Type
	Kind   Kind
	TypeID int32 // 0 when named; the wire type-id for built-ins, or the user-assigned id (>=64) otherwise

	Namespace string
	TypeName  string
	NsBytes   *MetaStringBytes
	NameBytes *MetaStringBytes

	Fields        []*FieldSpec // sorted per spec.md §4.D; structs only
	StructureHash int32        // schema-consistent mode tripwire; structs only

	Serializer Serializer
}

func (t *TypeInfo) named() bool { return t.NameBytes != nil }

type namedKey struct {
	Namespace string
	TypeName  string
}

// typeResolver is the per-Fory-instance type registry (§4.D). It is
// read-only once streams are active (§5); registration must complete
// before the first Marshal/Unmarshal call on the instance.
type typeResolver struct {
	fory *Fory

	byGoType    map[reflect.Type]*TypeInfo
	byNumericID map[int32]*TypeInfo
	byName      map[namedKey]*TypeInfo

	nextUserTypeID int32

	namespaceEncoder *meta.Encoder
	namespaceDecoder *meta.Decoder
	typeNameEncoder  *meta.Encoder
	typeNameDecoder  *meta.Decoder
}

func newTypeResolver(fory *Fory) *typeResolver {
	r := &typeResolver{
		fory:             fory,
		byGoType:         make(map[reflect.Type]*TypeInfo),
		byNumericID:      make(map[int32]*TypeInfo),
		byName:           make(map[namedKey]*TypeInfo),
		nextUserTypeID:   64,
		namespaceEncoder: meta.NewEncoder('.', '_'),
		namespaceDecoder: meta.NewDecoder('.', '_'),
		typeNameEncoder:  meta.NewEncoder('$', '_'),
		typeNameDecoder:  meta.NewDecoder('$', '_'),
	}
	r.registerBuiltins()
	return r
}

func (r *typeResolver) registerBuiltins() {
	builtins := []struct {
		t    reflect.Type
		id   int32
		kind Kind
	}{
		{boolType, BOOL, KindPrimitive},
		{byteType, UINT8, KindPrimitive},
		{int8Type, INT8, KindPrimitive},
		{int16Type, INT16, KindPrimitive},
		{int32Type, INT32, KindPrimitive},
		{int64Type, INT64, KindPrimitive},
		{intType, INT64, KindPrimitive},
		{float32Type, FLOAT, KindPrimitive},
		{float64Type, DOUBLE, KindPrimitive},
		{stringType, STRING, KindScalar},
		{dateType, LOCAL_DATE, KindScalar},
		{timestampType, TIMESTAMP, KindScalar},
		{boolSliceType, BOOL_ARRAY, KindList},
		{int16SliceType, INT16_ARRAY, KindList},
		{int32SliceType, INT32_ARRAY, KindList},
		{int64SliceType, INT64_ARRAY, KindList},
		{float32SliceType, FLOAT32_ARRAY, KindList},
		{float64SliceType, FLOAT64_ARRAY, KindList},
		{byteSliceType, BINARY, KindScalar},
		{genericSetType, SET, KindSet},
	}
	for _, b := range builtins {
		r.byGoType[b.t] = &TypeInfo{GoType: b.t, Kind: b.kind, TypeID: b.id}
	}
}

// RegisterTagType adapts the teacher's dotted-tag struct registration
// entry point onto the real (namespace, type-name) split: tag is
// split on its last '.' into namespace and type name.
func (r *typeResolver) RegisterTagType(tag string, instance interface{}) error {
	namespace := ""
	typeName := tag
	if i := strings.LastIndex(tag, "."); i >= 0 {
		namespace, typeName = tag[:i], tag[i+1:]
	}
	return r.registerNamedStruct(reflect.TypeOf(instance), namespace, typeName)
}

// RegisterType registers a struct under a plain numeric user type id
// (no namespace/name at all), the sibling of RegisterTagType for
// STRUCT/COMPATIBLE_STRUCT wire ids.
func (r *typeResolver) RegisterType(id int32, instance interface{}) error {
	t := reflect.TypeOf(instance)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return &RegistrationError{Reason: fmt.Sprintf("RegisterType requires a struct, got %s", t.Kind())}
	}
	if _, exists := r.byNumericID[id]; exists {
		return &RegistrationError{Reason: fmt.Sprintf("type id %d already registered", id)}
	}
	if _, exists := r.byGoType[t]; exists {
		return &RegistrationError{Reason: fmt.Sprintf("type %s already registered", t)}
	}
	info, err := r.buildStructTypeInfo(t, id, "", "")
	if err != nil {
		return err
	}
	r.byGoType[t] = info
	r.byNumericID[id] = info
	return nil
}

func (r *typeResolver) registerNamedStruct(t reflect.Type, namespace, typeName string) error {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return &RegistrationError{Reason: fmt.Sprintf("RegisterTagType requires a struct, got %s", t.Kind())}
	}
	key := namedKey{namespace, typeName}
	if _, exists := r.byName[key]; exists {
		return &RegistrationError{Reason: fmt.Sprintf("type %s.%s already registered", namespace, typeName)}
	}
	if _, exists := r.byGoType[t]; exists {
		return &RegistrationError{Reason: fmt.Sprintf("type %s already registered", t)}
	}
	info, err := r.buildStructTypeInfo(t, 0, namespace, typeName)
	if err != nil {
		return err
	}
	r.byGoType[t] = info
	r.byName[key] = info
	return nil
}

func (r *typeResolver) buildStructTypeInfo(t reflect.Type, id int32, namespace, typeName string) (*TypeInfo, error) {
	fields, err := r.buildFieldSpecs(t)
	if err != nil {
		return nil, err
	}
	orderFields(fields)
	info := &TypeInfo{
		GoType:        t,
		Kind:          KindStruct,
		TypeID:        id,
		Namespace:     namespace,
		TypeName:      typeName,
		Fields:        fields,
		StructureHash: structureHash(fields),
	}
	if typeName != "" {
		nsMS, err := r.namespaceEncoder.Encode(namespace)
		if err != nil {
			return nil, err
		}
		tnMS, err := r.typeNameEncoder.Encode(typeName)
		if err != nil {
			return nil, err
		}
		info.NsBytes = newMetaStringBytes(nsMS)
		info.NameBytes = newMetaStringBytes(tnMS)
	}
	return info, nil
}

func (r *typeResolver) buildFieldSpecs(t reflect.Type) ([]*FieldSpec, error) {
	specs := make([]*FieldSpec, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" { // unexported
			continue
		}
		ft := sf.Type
		nullable := ft.Kind() == reflect.Ptr
		trackingRef := ft.Kind() == reflect.Ptr || ft.Kind() == reflect.Map || ft.Kind() == reflect.Slice
		fieldTypeInfo, err := r.resolveFieldType(ft)
		if err != nil {
			return nil, err
		}
		specs = append(specs, &FieldSpec{
			Name:        sf.Name,
			FieldIndex:  i,
			FieldType:   fieldTypeInfo,
			Nullable:    nullable,
			TrackingRef: trackingRef,
			FieldID:     -1,
		})
	}
	return specs, nil
}

// resolveFieldType maps a Go field type to the TypeInfo used for
// bin-classification and structure hashing. Unregistered struct types
// referenced as fields resolve to a generic "other" bucket (bin 7 /
// KindStruct, wire id STRUCT) that carries no field list of its own;
// they do not need to be separately registered for this purpose, only
// for being the top-level value of a Marshal call.
func (r *typeResolver) resolveFieldType(ft reflect.Type) (*TypeInfo, error) {
	base := ft
	for base.Kind() == reflect.Ptr {
		base = base.Elem()
	}
	if info, ok := r.byGoType[base]; ok {
		return info, nil
	}
	switch base.Kind() {
	case reflect.Slice, reflect.Array:
		return &TypeInfo{GoType: base, Kind: KindList, TypeID: LIST}, nil
	case reflect.Map:
		return &TypeInfo{GoType: base, Kind: KindMap, TypeID: MAP}, nil
	case reflect.Struct:
		return &TypeInfo{GoType: base, Kind: KindStruct, TypeID: STRUCT}, nil
	case reflect.Interface:
		return &TypeInfo{GoType: base, Kind: KindStruct, TypeID: NA}, nil
	default:
		return &TypeInfo{GoType: base, Kind: KindPrimitive, TypeID: STRING}, nil
	}
}

// --- field ordering (§4.D) ---

func fieldBin(f *FieldSpec) int {
	k := f.FieldType.Kind
	switch {
	case k == KindPrimitive && !f.Nullable:
		return 1
	case k == KindPrimitive && f.Nullable:
		return 2
	case k == KindScalar:
		return 3
	case k == KindList:
		return 4
	case k == KindSet:
		return 5
	case k == KindMap:
		return 6
	default:
		return 7
	}
}

// orderFields sorts fields in place per spec.md §4.D: bins 1-7 in
// order; within primitive bins (1,2) non-compressed before compressed,
// then declared size descending, then raw type-id descending, then
// sort-key ascending; within every other bin, type-id ascending then
// sort-key ascending.
func orderFields(fields []*FieldSpec) {
	sort.SliceStable(fields, func(i, j int) bool {
		a, b := fields[i], fields[j]
		binA, binB := fieldBin(a), fieldBin(b)
		if binA != binB {
			return binA < binB
		}
		if binA == 1 || binA == 2 {
			ca, cb := isCompressedType(a.FieldType.TypeID), isCompressedType(b.FieldType.TypeID)
			if ca != cb {
				return !ca // non-compressed first
			}
			sa, sb := getPrimitiveTypeSize(a.FieldType.TypeID), getPrimitiveTypeSize(b.FieldType.TypeID)
			if sa != sb {
				return sa > sb // descending
			}
			if a.FieldType.TypeID != b.FieldType.TypeID {
				return a.FieldType.TypeID > b.FieldType.TypeID // descending
			}
			return fieldSortKey(a) < fieldSortKey(b)
		}
		if a.FieldType.TypeID != b.FieldType.TypeID {
			return a.FieldType.TypeID < b.FieldType.TypeID
		}
		return fieldSortKey(a) < fieldSortKey(b)
	})
}

// fieldTypeHashID collapses wire type-id variants that must hash
// identically: every list/set kind shares LIST's id, every map kind
// shares MAP's id, unsigned integer types share their signed sibling.
func fieldTypeHashID(info *TypeInfo) int32 {
	switch info.Kind {
	case KindList, KindSet:
		return LIST
	case KindMap:
		return MAP
	}
	switch info.TypeID {
	case UINT8:
		return INT8
	default:
		return int32(info.TypeID)
	}
}

// structureHash implements spec.md §4.D/§9's fold-on-overflow
// recurrence over the sorted field list, used only in schema-consistent
// mode as a compatibility tripwire.
func structureHash(fields []*FieldSpec) int32 {
	var hash int64 = 17
	for _, f := range fields {
		hash = hash*31 + int64(fieldTypeHashID(f.FieldType))
		for hash >= int64(MaxInt32) || hash <= int64(MinInt32) {
			hash = hash / 7
		}
	}
	h := int32(hash)
	if h == 0 {
		return 1
	}
	return h
}

// --- lookups used by the driver ---

func (r *typeResolver) getTypeInfoByGoType(t reflect.Type) (*TypeInfo, bool) {
	info, ok := r.byGoType[t]
	return info, ok
}

func (r *typeResolver) getTypeInfoByNumericID(id int32) (*TypeInfo, bool) {
	info, ok := r.byNumericID[id]
	return info, ok
}

func (r *typeResolver) getTypeInfoByName(namespace, typeName string) (*TypeInfo, bool) {
	info, ok := r.byName[namedKey{namespace, typeName}]
	return info, ok
}

var (
	interfaceType      = reflect.TypeOf((*interface{})(nil)).Elem()
	stringType         = reflect.TypeOf((*string)(nil)).Elem()
	stringPtrType      = reflect.TypeOf((*string)(nil))
	byteSliceType      = reflect.TypeOf((*[]byte)(nil)).Elem()
	boolSliceType      = reflect.TypeOf((*[]bool)(nil)).Elem()
	int16SliceType     = reflect.TypeOf((*[]int16)(nil)).Elem()
	int32SliceType     = reflect.TypeOf((*[]int32)(nil)).Elem()
	int64SliceType     = reflect.TypeOf((*[]int64)(nil)).Elem()
	float32SliceType   = reflect.TypeOf((*[]float32)(nil)).Elem()
	float64SliceType   = reflect.TypeOf((*[]float64)(nil)).Elem()
	interfaceSliceType = reflect.TypeOf((*[]interface{})(nil)).Elem()
	interfaceMapType   = reflect.TypeOf((*map[interface{}]interface{})(nil)).Elem()
	boolType           = reflect.TypeOf((*bool)(nil)).Elem()
	byteType           = reflect.TypeOf((*byte)(nil)).Elem()
	int8Type           = reflect.TypeOf((*int8)(nil)).Elem()
	int16Type          = reflect.TypeOf((*int16)(nil)).Elem()
	int32Type          = reflect.TypeOf((*int32)(nil)).Elem()
	int64Type          = reflect.TypeOf((*int64)(nil)).Elem()
	intType            = reflect.TypeOf((*int)(nil)).Elem()
	float32Type        = reflect.TypeOf((*float32)(nil)).Elem()
	float64Type        = reflect.TypeOf((*float64)(nil)).Elem()
	dateType           = reflect.TypeOf((*Date)(nil)).Elem()
	timestampType      = reflect.TypeOf((*time.Time)(nil)).Elem()
	genericSetType     = reflect.TypeOf((*GenericSet)(nil)).Elem()
)

// isPrimitiveSliceOrArrayType reports whether t is an unnamed slice or
// array whose element kind is bool, int16, int32, int64, float32 or
// float64, as opposed to a user-named slice type or another element
// kind. The resolver's typed-array built-ins (BOOL_ARRAY, INT16_ARRAY,
// ..., FLOAT64_ARRAY) are the unnamed slice forms only; fixed-size
// arrays are reported true here but are encoded through LIST.
func isPrimitiveSliceOrArrayType(t reflect.Type) bool {
	if t.Kind() != reflect.Slice && t.Kind() != reflect.Array {
		return false
	}
	if t.Name() != "" {
		return false
	}
	switch t.Elem().Kind() {
	case reflect.Bool, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
