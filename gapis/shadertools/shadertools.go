// Copyright (C) 2020 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package shadertools exposes the shader bytecode editing surface that the
// pixel history engine drives. Parsing and rewriting the bytecode itself is
// the backend's job; this package only names the operations and the
// instruction views the side-effect-stripping policy needs to see.
package shadertools

// ID is a bytecode-level result id.
type ID uint32

// NilID is the zero id.
const NilID = ID(0)

// FuncID identifies a function within a module.
type FuncID uint32

// InstrID identifies one instruction within an editing session. Ids stay
// valid across Remove and Insert calls within the same session.
type InstrID uint32

// Op classifies the instructions the stripping policy cares about. The
// editor reports every other opcode as OpOther.
type Op int

const (
	OpOther Op = iota
	OpFunctionCall
	OpStore
	OpCopyMemory
	OpAtomicStore
	OpImageWrite

	// Value-producing atomic read-modify-writes.
	OpAtomicExchange
	OpAtomicCompareExchange
	OpAtomicIIncrement
	OpAtomicIDecrement
	OpAtomicIAdd
	OpAtomicISub
	OpAtomicSMin
	OpAtomicUMin
	OpAtomicSMax
	OpAtomicUMax
	OpAtomicAnd
	OpAtomicOr
	OpAtomicXor
)

// IsAtomicRMW reports whether the op is a value-producing atomic
// read-modify-write.
func (o Op) IsAtomicRMW() bool {
	return o >= OpAtomicExchange && o <= OpAtomicXor
}

// StorageClass is the storage class behind a pointer operand.
type StorageClass int

const (
	StorageOther StorageClass = iota
	StorageUniform
	StorageBuffer
	StorageWorkgroup
	StorageImage
)

// Writable reports whether stores through the class leak outside the
// invocation and must be stripped.
func (s StorageClass) Writable() bool {
	return s == StorageUniform || s == StorageBuffer
}

// EntryPoint is one entry point declared by a module.
type EntryPoint struct {
	Name     string
	Function FuncID
}

// Instr is the editor's view of one instruction. Operand fields are only
// populated where the Op defines them.
type Instr struct {
	ID InstrID
	Op Op

	// OpFunctionCall.
	Callee FuncID

	// Stores and atomics.
	Pointer ID

	// Atomic read-modify-writes.
	ResultType ID
	Result     ID
	Scope      ID
	Semantics  ID
}

// Editor is one editing session over a shader module's bytecode. Sessions
// are cheap; the backend materializes a new module from the edited words
// when Bytecode is consumed.
type Editor interface {
	// EntryPoints lists the module's entry points.
	EntryPoints() []EntryPoint

	// Instructions returns the body of the function in order.
	Instructions(f FuncID) []Instr

	// PointerStorageClass resolves the storage class behind a pointer id.
	PointerStorageClass(p ID) StorageClass

	// Remove deletes the instruction.
	Remove(i InstrID)

	// InsertAtomicLoad inserts an atomic load producing (resultType,
	// result) from pointer at the removed instruction's position, keeping
	// the original memory scope and semantics.
	InsertAtomicLoad(at InstrID, resultType, result, pointer, scope, semantics ID)

	// Bytecode returns the module's current (possibly edited) words.
	Bytecode() []uint32
}

// Builtin names the synthetic fragment shaders the backend can produce.
type Builtin int

const (
	// BuiltinFixedColor writes an opaque fixed color to one output slot.
	BuiltinFixedColor Builtin = iota
	// BuiltinPrimitiveID writes the primitive id to one output slot.
	BuiltinPrimitiveID
)
