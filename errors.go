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

import "fmt"

// EOFError is raised when a read runs past the buffer's writer index.
type EOFError struct {
	Offset int
	Need   int
	Have   int
}

func (e *EOFError) Error() string {
	return fmt.Sprintf("fory: EOF at offset %d: need %d bytes, have %d", e.Offset, e.Need, e.Have)
}

// OverflowError is raised when a varint fails to terminate within its
// byte budget, or a decoded size is negative/absurd.
type OverflowError struct {
	Offset int
	What   string
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("fory: overflow at offset %d decoding %s", e.Offset, e.What)
}

// UnsupportedStreamError is raised when the stream header does not
// assert CROSS_LANGUAGE, or asserts OUT_OF_BAND.
type UnsupportedStreamError struct {
	Reason string
}

func (e *UnsupportedStreamError) Error() string {
	return fmt.Sprintf("fory: unsupported stream: %s", e.Reason)
}

// UnknownTypeIdError is raised when a wire type id has no registered
// decoder and the value cannot be skipped.
type UnknownTypeIdError struct {
	TypeID int32
	Offset int
}

func (e *UnknownTypeIdError) Error() string {
	return fmt.Sprintf("fory: unknown type id %d at offset %d", e.TypeID, e.Offset)
}

// UnknownNamedTypeError is raised when a (namespace, typeName) pair has
// no registered decoder and the value cannot be skipped.
type UnknownNamedTypeError struct {
	Namespace string
	TypeName  string
	Offset    int
}

func (e *UnknownNamedTypeError) Error() string {
	return fmt.Sprintf("fory: unknown named type %q.%q at offset %d", e.Namespace, e.TypeName, e.Offset)
}

// HashMismatchError is raised in schema-consistent mode when the 32-bit
// structure hash does not match the consumer's locally computed value.
type HashMismatchError struct {
	TypeName string
	Expected int32
	Received int32
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("fory: struct hash mismatch for %s: expected %d, received %d",
		e.TypeName, e.Expected, e.Received)
}

// InvalidValueError covers domain violations, e.g. a date outside the
// int32 epoch-day range, or nanoseconds outside [0, 1e9).
type InvalidValueError struct {
	Reason string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("fory: invalid value: %s", e.Reason)
}

// RefIntegrityError is raised when a ref-id is out of range, or
// references a slot whose object has not yet been registered.
type RefIntegrityError struct {
	RefID  int32
	Reason string
}

func (e *RefIntegrityError) Error() string {
	return fmt.Sprintf("fory: reference integrity violation for ref %d: %s", e.RefID, e.Reason)
}

// RegistrationError is raised for illegal registrations: both an id and
// a name supplied, or a duplicate key.
type RegistrationError struct {
	Reason string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("fory: registration error: %s", e.Reason)
}
